package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quibitai/quibit-rag/internal/models"
)

func newChatWithMessages(t *testing.T, store *MemoryStorage, n int) *models.Chat {
	t.Helper()
	ctx := context.Background()
	chat := &models.Chat{ID: "chat-1", UserID: "user-1", ClientID: "client-1"}
	require.NoError(t, store.CreateChat(ctx, chat))
	for i := 0; i < n; i++ {
		require.NoError(t, store.CreateMessage(ctx, &models.Message{
			ID:      fmt.Sprintf("msg-%02d", i),
			ChatID:  chat.ID,
			Role:    models.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		}))
	}
	return chat
}

func TestCreateMessageTouchesChatUpdatedAt(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	chat := &models.Chat{ID: "chat-1", UserID: "user-1", ClientID: "client-1"}
	require.NoError(t, store.CreateChat(ctx, chat))
	before, err := store.GetChat(ctx, chat.ID, chat.UserID)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	require.NoError(t, store.CreateMessage(ctx, &models.Message{
		ID: "msg-1", ChatID: chat.ID, Role: models.RoleUser, Content: "hello",
	}))

	after, err := store.GetChat(ctx, chat.ID, chat.UserID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt),
		"appending a message must advance the chat's updated_at")
}

func TestListMessagesReturnsFullHistoryChronologically(t *testing.T) {
	store := NewMemoryStorage()
	chat := newChatWithMessages(t, store, 30)

	msgs, err := store.ListMessages(context.Background(), chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 30)
	assert.Equal(t, "message 0", msgs[0].Content)
	assert.Equal(t, "message 29", msgs[29].Content)
}

func TestGetRecentMessagesCapsAndOrders(t *testing.T) {
	store := NewMemoryStorage()
	chat := newChatWithMessages(t, store, 30)

	msgs, err := store.GetRecentMessages(context.Background(), chat.ID, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, "message 29", msgs[0].Content, "most recent first")
	assert.Equal(t, "message 25", msgs[4].Content)
}
