// Package contextwindow assembles bounded conversational context for a
// request: recent turns, extracted entities, the rolling summary and file
// references, with an approximate token estimate.
package contextwindow

import (
	"context"

	"go.uber.org/zap"

	"github.com/quibitai/quibit-rag/internal/models"
	"github.com/quibitai/quibit-rag/internal/storage"
)

type Config struct {
	// MaxRecentMessages caps how many persisted turns are loaded verbatim.
	MaxRecentMessages int
	// CharsPerToken is the fixed characters-per-token heuristic divisor.
	CharsPerToken int
	// FileTokenOverhead is the flat per-file estimate added for each reference.
	FileTokenOverhead int
}

func DefaultConfig() Config {
	return Config{
		MaxRecentMessages: 20,
		CharsPerToken:     4,
		FileTokenOverhead: 50,
	}
}

type Builder struct {
	storage storage.Storage
	config  Config
	logger  *zap.Logger
}

func NewBuilder(storage storage.Storage, config Config, logger *zap.Logger) *Builder {
	if config.MaxRecentMessages <= 0 {
		config.MaxRecentMessages = DefaultConfig().MaxRecentMessages
	}
	if config.CharsPerToken <= 0 {
		config.CharsPerToken = DefaultConfig().CharsPerToken
	}
	return &Builder{storage: storage, config: config, logger: logger}
}

// Build returns a read-only context snapshot for one request. History load
// failures are fatal; entity, summary and file lookups are best-effort and
// degrade to partial context.
func (b *Builder) Build(ctx context.Context, chatID, userID, clientID string) (*models.ContextWindow, error) {
	recent, err := b.storage.GetRecentMessages(ctx, chatID, b.config.MaxRecentMessages)
	if err != nil {
		return nil, err
	}

	// Storage returns most-recent-first; consumers need chronological order.
	history := make([]*models.Message, len(recent))
	for i, msg := range recent {
		history[len(recent)-1-i] = msg
	}

	window := &models.ContextWindow{RecentHistory: history}

	entities, err := b.storage.ListEntities(ctx, chatID, userID)
	if err != nil {
		b.logger.Warn("failed to load entities, continuing without",
			zap.String("chat_id", chatID), zap.String("client_id", clientID), zap.Error(err))
	} else {
		window.KeyEntities = entities
	}

	summary, err := b.storage.GetLatestSummary(ctx, chatID, userID)
	if err != nil {
		b.logger.Warn("failed to load summary, continuing without",
			zap.String("chat_id", chatID), zap.Error(err))
	} else {
		window.Summary = summary
	}

	files, err := b.storage.ListFileReferences(ctx, chatID, userID)
	if err != nil {
		b.logger.Warn("failed to load file references, continuing without",
			zap.String("chat_id", chatID), zap.Error(err))
	} else {
		window.FileReferences = files
	}

	window.TokenCount = b.estimateTokens(window)
	return window, nil
}

// estimateTokens sums a chars/4-style estimate over history, entities and the
// summary, plus a flat overhead per file reference. It is a soft budget
// signal only and is never enforced precisely.
func (b *Builder) estimateTokens(window *models.ContextWindow) int {
	chars := 0
	for _, msg := range window.RecentHistory {
		chars += len(msg.Content)
	}
	for _, entity := range window.KeyEntities {
		chars += len(entity.Type) + len(entity.Value)
	}
	if window.Summary != nil {
		chars += len(window.Summary.Content)
	}

	tokens := (chars + b.config.CharsPerToken - 1) / b.config.CharsPerToken
	tokens += len(window.FileReferences) * b.config.FileTokenOverhead
	return tokens
}
