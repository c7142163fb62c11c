package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/quibitai/quibit-rag/internal/llm"
	"github.com/quibitai/quibit-rag/internal/models"
	"github.com/quibitai/quibit-rag/internal/storage"
)

// CreateDocumentTool drafts a markdown artifact with the model and persists
// it as a Document row scoped to the current chat and user.
type CreateDocumentTool struct {
	storage storage.Storage
	llm     llm.Client
	model   string
	chatID  string
	userID  string
}

func NewCreateDocumentTool(store storage.Storage, llmClient llm.Client, model, chatID, userID string) *CreateDocumentTool {
	return &CreateDocumentTool{
		storage: store,
		llm:     llmClient,
		model:   model,
		chatID:  chatID,
		userID:  userID,
	}
}

func (t *CreateDocumentTool) Name() string { return "create_document" }

func (t *CreateDocumentTool) Description() string {
	return "Generate a document (report, outline, draft) from instructions and save it for the user."
}

func (t *CreateDocumentTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"title":        map[string]any{"type": "string", "description": "Document title"},
		"instructions": map[string]any{"type": "string", "description": "What the document should contain"},
	}, []string{"title", "instructions"})
}

func (t *CreateDocumentTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Title        string `json:"title"`
		Instructions string `json:"instructions"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Instructions) == "" {
		return "", fmt.Errorf("invalid tool arguments: title and instructions are required")
	}

	resp, err := t.llm.Complete(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Write a well-structured markdown document. Respond with the document body only, no preamble.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Title: %s\n\nInstructions: %s", in.Title, in.Instructions),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate document: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generate document: empty response")
	}

	doc := &models.Document{
		ID:      uuid.New().String(),
		ChatID:  t.chatID,
		UserID:  t.userID,
		Title:   in.Title,
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
	}
	if err := t.storage.CreateDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("save document: %w", err)
	}

	return fmt.Sprintf("Created document %q (id %s, %d characters).", doc.Title, doc.ID, len(doc.Content)), nil
}
