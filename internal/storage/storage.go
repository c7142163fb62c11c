package storage

import (
	"context"

	"github.com/quibitai/quibit-rag/internal/models"
)

// Storage is the persistence boundary for conversation state. Chats and
// messages are the source of truth; entities, summaries and file references
// are derived annotations written by best-effort background work.
type Storage interface {
	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChat(ctx context.Context, chatID, userID string) (*models.Chat, error)
	ListChats(ctx context.Context, userID, clientID string) ([]*models.Chat, error)
	UpdateChatTitle(ctx context.Context, chatID, title string) error

	CreateMessage(ctx context.Context, msg *models.Message) error
	// GetRecentMessages returns up to limit messages, most recent first.
	GetRecentMessages(ctx context.Context, chatID string, limit int) ([]*models.Message, error)
	// ListMessages returns the chat's full history in chronological order.
	ListMessages(ctx context.Context, chatID string) ([]*models.Message, error)
	CountMessages(ctx context.Context, chatID string) (int, error)

	UpsertEntity(ctx context.Context, entity *models.ConversationEntity) error
	ListEntities(ctx context.Context, chatID, userID string) ([]*models.ConversationEntity, error)

	SaveSummary(ctx context.Context, summary *models.ConversationSummary) error
	// GetLatestSummary returns the most recent summary row, or nil when the
	// chat has never been summarized.
	GetLatestSummary(ctx context.Context, chatID, userID string) (*models.ConversationSummary, error)

	AddFileReference(ctx context.Context, ref *models.FileReference) error
	ListFileReferences(ctx context.Context, chatID, userID string) ([]*models.FileReference, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, docID, userID string) (*models.Document, error)

	Close() error
}
