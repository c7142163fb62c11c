package contextwindow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quibitai/quibit-rag/internal/models"
	"github.com/quibitai/quibit-rag/internal/storage"
)

func newTestBuilder(t *testing.T) (*Builder, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	builder := NewBuilder(store, Config{
		MaxRecentMessages: 5,
		CharsPerToken:     4,
		FileTokenOverhead: 50,
	}, zap.NewNop())
	return builder, store
}

func seedChat(t *testing.T, store *storage.MemoryStorage, chatID, userID string) *models.Chat {
	t.Helper()
	chat := &models.Chat{ID: chatID, UserID: userID, ClientID: "client-1"}
	require.NoError(t, store.CreateChat(context.Background(), chat))
	return chat
}

func TestBuildEmptyChat(t *testing.T) {
	builder, store := newTestBuilder(t)
	seedChat(t, store, "chat-1", "user-1")

	window, err := builder.Build(context.Background(), "chat-1", "user-1", "client-1")
	require.NoError(t, err)

	assert.Empty(t, window.RecentHistory)
	assert.Nil(t, window.Summary)
	assert.Empty(t, window.KeyEntities)
	assert.Equal(t, 0, window.TokenCount)
}

func TestBuildEmptyChatWithFilesCountsFlatOverhead(t *testing.T) {
	builder, store := newTestBuilder(t)
	seedChat(t, store, "chat-1", "user-1")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.NoError(t, store.AddFileReference(ctx, &models.FileReference{
			ChatID:   "chat-1",
			UserID:   "user-1",
			FileName: fmt.Sprintf("file-%d.pdf", i),
			FileType: "pdf",
		}))
	}

	window, err := builder.Build(ctx, "chat-1", "user-1", "client-1")
	require.NoError(t, err)

	assert.Empty(t, window.RecentHistory)
	assert.Len(t, window.FileReferences, 2)
	assert.Equal(t, 100, window.TokenCount)
}

func TestBuildCapsRecentHistory(t *testing.T) {
	builder, store := newTestBuilder(t)
	seedChat(t, store, "chat-1", "user-1")

	ctx := context.Background()
	for i := 0; i < 30; i++ {
		require.NoError(t, store.CreateMessage(ctx, &models.Message{
			ID:      fmt.Sprintf("msg-%02d", i),
			ChatID:  "chat-1",
			Role:    models.RoleUser,
			Content: fmt.Sprintf("message %02d", i),
		}))
	}

	window, err := builder.Build(ctx, "chat-1", "user-1", "client-1")
	require.NoError(t, err)

	require.Len(t, window.RecentHistory, 5)
	// Chronological order: the five most recent, oldest of them first.
	assert.Equal(t, "message 25", window.RecentHistory[0].Content)
	assert.Equal(t, "message 29", window.RecentHistory[4].Content)
}

func TestBuildTokenEstimate(t *testing.T) {
	builder, store := newTestBuilder(t)
	chat := seedChat(t, store, "chat-1", "user-1")

	ctx := context.Background()
	// 8 chars -> 2 tokens at 4 chars per token
	require.NoError(t, store.CreateMessage(ctx, &models.Message{
		ID: "msg-1", ChatID: chat.ID, Role: models.RoleUser, Content: "12345678",
	}))
	// entity contributes len(type)+len(value) = 5+16 = 21 chars
	require.NoError(t, store.UpsertEntity(ctx, &models.ConversationEntity{
		ChatID: chat.ID, UserID: "user-1", Type: models.EntityEmail, Value: "a@b.example.com1",
	}))
	require.NoError(t, store.AddFileReference(ctx, &models.FileReference{
		ChatID: chat.ID, UserID: "user-1", FileName: "notes.txt", FileType: "txt",
	}))

	window, err := builder.Build(ctx, chat.ID, "user-1", "client-1")
	require.NoError(t, err)

	// ceil((8+21)/4) = 8, plus one file at 50
	assert.Equal(t, 58, window.TokenCount)
}

func TestBuildIncludesLatestSummaryOnly(t *testing.T) {
	builder, store := newTestBuilder(t)
	chat := seedChat(t, store, "chat-1", "user-1")

	ctx := context.Background()
	require.NoError(t, store.SaveSummary(ctx, &models.ConversationSummary{
		ChatID: chat.ID, UserID: "user-1", Content: "old summary", MessageCount: 4,
	}))
	require.NoError(t, store.SaveSummary(ctx, &models.ConversationSummary{
		ChatID: chat.ID, UserID: "user-1", Content: "new summary", MessageCount: 8,
	}))

	window, err := builder.Build(ctx, chat.ID, "user-1", "client-1")
	require.NoError(t, err)

	require.NotNil(t, window.Summary)
	assert.Equal(t, "new summary", window.Summary.Content)
}
