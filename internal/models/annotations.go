package models

import "time"

// EntityType categorizes a value extracted from conversation text.
type EntityType string

const (
	EntityEmail   EntityType = "email"
	EntityPhone   EntityType = "phone"
	EntityDate    EntityType = "date"
	EntityAddress EntityType = "address"
	EntityName    EntityType = "name"
)

// ConversationEntity is a best-effort annotation extracted from a chat's
// history. Entities are written out-of-band after a turn completes and may
// be stale or absent; readers must not depend on them being current.
type ConversationEntity struct {
	ID        int64      `json:"id"`
	ChatID    string     `json:"chat_id"`
	UserID    string     `json:"user_id"`
	Type      EntityType `json:"type"`
	Value     string     `json:"value"`
	CreatedAt time.Time  `json:"created_at"`
}

// ConversationSummary is a rolling summary of older turns in a chat.
// Only the most recent row per chat is consulted when building context.
type ConversationSummary struct {
	ID           int64     `json:"id"`
	ChatID       string    `json:"chat_id"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileReference records a file that was attached to or mentioned in a chat.
type FileReference struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	FileURL   string    `json:"file_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is a generated artifact (report, draft, outline) produced by the
// create_document tool and persisted for later retrieval.
type Document struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
