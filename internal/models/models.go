package models

import "time"

// Role identifies the author of a message within a chat.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Chat represents a single conversation owned by a user within a client workspace.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ClientID  string    `json:"client_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is the persisted unit of conversation. Messages are append-only:
// once written they are never mutated, except that tool results are
// back-filled as separate tool-role rows referencing the originating call.
type Message struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// User represents an authenticated principal. Users belong to a client
// workspace; all conversation data is scoped by (user, client).
type User struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
