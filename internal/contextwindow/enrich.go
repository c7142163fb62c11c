package contextwindow

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/quibitai/quibit-rag/internal/llm"
	"github.com/quibitai/quibit-rag/internal/models"
	"github.com/quibitai/quibit-rag/internal/storage"
)

// Enricher performs the out-of-band annotation work that runs after a turn
// completes: entity extraction, rolling summary regeneration and chat
// auto-titling. All of it is best-effort; failures are logged and swallowed
// and never reach the request path.
type Enricher struct {
	storage      storage.Storage
	llm          llm.Client
	model        string
	summaryEvery int
	logger       *zap.Logger
}

func NewEnricher(storage storage.Storage, llmClient llm.Client, model string, summaryEvery int, logger *zap.Logger) *Enricher {
	if summaryEvery <= 0 {
		summaryEvery = 10
	}
	return &Enricher{
		storage:      storage,
		llm:          llmClient,
		model:        model,
		summaryEvery: summaryEvery,
		logger:       logger,
	}
}

// AfterTurn is intended to run in its own goroutine with a background context.
func (e *Enricher) AfterTurn(ctx context.Context, chat *models.Chat, userText string) {
	e.extractAndStore(ctx, chat, userText)
	e.maybeSummarize(ctx, chat)
	e.maybeTitle(ctx, chat, userText)
}

func (e *Enricher) extractAndStore(ctx context.Context, chat *models.Chat, text string) {
	for _, entity := range ExtractEntities(text) {
		entity.ChatID = chat.ID
		entity.UserID = chat.UserID
		if err := e.storage.UpsertEntity(ctx, entity); err != nil {
			e.logger.Warn("entity upsert failed",
				zap.String("chat_id", chat.ID), zap.String("type", string(entity.Type)), zap.Error(err))
		}
	}
}

// maybeSummarize regenerates the rolling summary once enough new messages
// accumulated since the previous summary row.
func (e *Enricher) maybeSummarize(ctx context.Context, chat *models.Chat) {
	count, err := e.storage.CountMessages(ctx, chat.ID)
	if err != nil {
		e.logger.Warn("message count failed", zap.String("chat_id", chat.ID), zap.Error(err))
		return
	}

	previous, err := e.storage.GetLatestSummary(ctx, chat.ID, chat.UserID)
	if err != nil {
		e.logger.Warn("summary lookup failed", zap.String("chat_id", chat.ID), zap.Error(err))
		return
	}
	lastCount := 0
	if previous != nil {
		lastCount = previous.MessageCount
	}
	if count-lastCount < e.summaryEvery {
		return
	}

	recent, err := e.storage.GetRecentMessages(ctx, chat.ID, e.summaryEvery*2)
	if err != nil {
		e.logger.Warn("history load for summary failed", zap.String("chat_id", chat.ID), zap.Error(err))
		return
	}

	var transcript strings.Builder
	if previous != nil {
		transcript.WriteString("Previous summary:\n" + previous.Content + "\n\nRecent messages:\n")
	}
	for i := len(recent) - 1; i >= 0; i-- {
		fmt.Fprintf(&transcript, "%s: %s\n", recent[i].Role, recent[i].Content)
	}

	resp, err := e.llm.Complete(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Summarize the conversation below in at most four sentences. Keep concrete facts the assistant may need later (names, dates, decisions, open items).",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: transcript.String(),
			},
		},
	})
	if err != nil {
		e.logger.Warn("summary generation failed", zap.String("chat_id", chat.ID), zap.Error(err))
		return
	}
	if len(resp.Choices) == 0 {
		return
	}

	summary := &models.ConversationSummary{
		ChatID:       chat.ID,
		UserID:       chat.UserID,
		Content:      strings.TrimSpace(resp.Choices[0].Message.Content),
		MessageCount: count,
	}
	if err := e.storage.SaveSummary(ctx, summary); err != nil {
		e.logger.Warn("summary save failed", zap.String("chat_id", chat.ID), zap.Error(err))
	}
}

func (e *Enricher) maybeTitle(ctx context.Context, chat *models.Chat, userText string) {
	if chat.Title != "" {
		return
	}

	resp, err := e.llm.Complete(ctx, openai.ChatCompletionRequest{
		Model:     e.model,
		MaxTokens: 20,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Produce a short title (max six words) for a conversation that starts with the following message. Respond with the title only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userText,
			},
		},
	})
	if err != nil {
		e.logger.Warn("title generation failed", zap.String("chat_id", chat.ID), zap.Error(err))
		return
	}
	if len(resp.Choices) == 0 {
		return
	}

	title := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), "\"'.")
	if title == "" {
		return
	}
	if err := e.storage.UpdateChatTitle(ctx, chat.ID, title); err != nil {
		e.logger.Warn("title save failed", zap.String("chat_id", chat.ID), zap.Error(err))
	}
}
