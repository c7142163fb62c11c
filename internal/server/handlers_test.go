package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quibitai/quibit-rag/internal/agent"
	"github.com/quibitai/quibit-rag/internal/classifier"
	"github.com/quibitai/quibit-rag/internal/contextwindow"
	"github.com/quibitai/quibit-rag/internal/llm"
	"github.com/quibitai/quibit-rag/internal/models"
	"github.com/quibitai/quibit-rag/internal/storage"
	"github.com/quibitai/quibit-rag/internal/tools"
)

// fakeStream replays scripted chunks and then io.EOF.
type fakeStream struct {
	chunks []openai.ChatCompletionStreamResponse
	pos    int
}

func (f *fakeStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	if f.pos >= len(f.chunks) {
		return openai.ChatCompletionStreamResponse{}, io.EOF
	}
	chunk := f.chunks[f.pos]
	f.pos++
	return chunk, nil
}

func (f *fakeStream) Close() error { return nil }

type fakeLLM struct {
	streams []*fakeStream
	calls   int
}

func (f *fakeLLM) StreamChat(_ context.Context, _ openai.ChatCompletionRequest) (llm.Stream, error) {
	if f.calls >= len(f.streams) {
		return nil, fmt.Errorf("unexpected LLM call %d", f.calls+1)
	}
	stream := f.streams[f.calls]
	f.calls++
	return stream, nil
}

func (f *fakeLLM) Complete(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{}, fmt.Errorf("not scripted")
}

// inertLLM fails every call; used for the enrichment path, whose failures are
// swallowed, so the background goroutine never touches scripted state.
type inertLLM struct{}

func (inertLLM) StreamChat(context.Context, openai.ChatCompletionRequest) (llm.Stream, error) {
	return nil, fmt.Errorf("not configured")
}

func (inertLLM) Complete(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{}, fmt.Errorf("not configured")
}

func tokenChunk(content string) openai.ChatCompletionStreamResponse {
	return openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{Delta: openai.ChatCompletionStreamChoiceDelta{Content: content}},
		},
	}
}

type testEnv struct {
	server  *Server
	router  http.Handler
	storage *storage.MemoryStorage
}

func newTestEnv(t *testing.T, llmClient llm.Client) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := storage.NewMemoryStorage()

	builder := contextwindow.NewBuilder(store, contextwindow.Config{
		MaxRecentMessages: 20,
		CharsPerToken:     4,
		FileTokenOverhead: 50,
	}, logger)
	enricher := contextwindow.NewEnricher(store, inertLLM{}, "gpt-4o-mini", 10, logger)
	factory := tools.NewFactory(nil, nil, nil, nil, store, llmClient, "gpt-4o-mini", 5)

	srv := New(Deps{
		Storage:      store,
		Classifier:   classifier.NewPatternClassifier(0.6, 0.3),
		Builder:      builder,
		Enricher:     enricher,
		ToolFactory:  factory,
		LLM:          llmClient,
		AgentConfig:  agent.Config{Model: "gpt-4o-mini", EnableMultiStep: true, MaxRounds: 5},
		SystemPrompt: "You are a helpful assistant.",
		JWTSecret:    "test-secret",
		Logger:       logger,
	})
	return &testEnv{server: srv, router: srv.Router(), storage: store}
}

func (e *testEnv) login(t *testing.T, userID, clientID string) string {
	t.Helper()
	body := fmt.Sprintf(`{"user_id":%q,"client_id":%q}`, userID, clientID)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func parseSSE(t *testing.T, body string) []agent.Event {
	t.Helper()
	var events []agent.Event
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event agent.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	rec := env.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	rec := env.do(http.MethodPost, "/api/login", "", map[string]string{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})

	rec := env.do(http.MethodGet, "/api/chats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/chats", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndListChats(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	token := env.login(t, "user-1", "client-1")

	rec := env.do(http.MethodPost, "/api/chats", token, map[string]string{"title": "Budget"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var chat models.Chat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))
	assert.NotEmpty(t, chat.ID)
	assert.Equal(t, "user-1", chat.UserID)
	assert.Equal(t, "Budget", chat.Title)

	rec = env.do(http.MethodGet, "/api/chats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var chats []*models.Chat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chats))
	require.Len(t, chats, 1)
	assert.Equal(t, chat.ID, chats[0].ID)
}

func TestGetChatReturnsFullHistory(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	token := env.login(t, "user-1", "client-1")

	rec := env.do(http.MethodPost, "/api/chats", token, map[string]string{"title": "Long"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var chat models.Chat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	// More messages than the context window's recent cap (20).
	for i := 0; i < 25; i++ {
		require.NoError(t, env.storage.CreateMessage(context.Background(), &models.Message{
			ID:      fmt.Sprintf("msg-%02d", i),
			ChatID:  chat.ID,
			Role:    models.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		}))
	}

	rec = env.do(http.MethodGet, "/api/chats/"+chat.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []*models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 25)
	assert.Equal(t, "message 0", resp.Messages[0].Content)
	assert.Equal(t, "message 24", resp.Messages[24].Content)
}

func TestGetChatNotFound(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	token := env.login(t, "user-1", "client-1")

	rec := env.do(http.MethodGet, "/api/chats/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatsAreScopedToUser(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	token := env.login(t, "user-1", "client-1")

	rec := env.do(http.MethodPost, "/api/chats", token, map[string]string{"title": "Private"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var chat models.Chat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	other := env.login(t, "user-2", "client-1")
	rec = env.do(http.MethodGet, "/api/chats/"+chat.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatMessageStreamsAndPersists(t *testing.T) {
	llmClient := &fakeLLM{streams: []*fakeStream{
		{chunks: []openai.ChatCompletionStreamResponse{
			tokenChunk("Hello"),
			tokenChunk(" there"),
		}},
	}}
	env := newTestEnv(t, llmClient)
	token := env.login(t, "user-1", "client-1")

	rec := env.do(http.MethodPost, "/api/chats", token, map[string]string{"title": "Greetings"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var chat models.Chat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = env.do(http.MethodPost, "/api/chats/"+chat.ID+"/messages", token,
		map[string]string{"content": "Say hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)

	var tokens []string
	for _, event := range events[:len(events)-1] {
		require.Equal(t, agent.EventToken, event.Type)
		tokens = append(tokens, event.Token)
	}
	assert.Equal(t, []string{"Hello", " there"}, tokens)

	last := events[len(events)-1]
	require.Equal(t, agent.EventFinish, last.Type)
	assert.Equal(t, "Hello there", last.Answer)

	// The user turn and the assistant answer are both persisted by the time
	// the response body is complete.
	msgs, err := env.storage.GetRecentMessages(context.Background(), chat.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Hello there", msgs[0].Content)
	assert.Equal(t, models.RoleUser, msgs[1].Role)
	assert.Equal(t, "Say hello", msgs[1].Content)
}

func TestChatMessageValidation(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	token := env.login(t, "user-1", "client-1")

	rec := env.do(http.MethodPost, "/api/chats", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var chat models.Chat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = env.do(http.MethodPost, "/api/chats/"+chat.ID+"/messages", token,
		map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/chats/missing/messages", token,
		map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLLMFailureStreamsErrorEvent(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}) // no scripted streams: first call fails
	token := env.login(t, "user-1", "client-1")

	rec := env.do(http.MethodPost, "/api/chats", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var chat models.Chat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = env.do(http.MethodPost, "/api/chats/"+chat.ID+"/messages", token,
		map[string]string{"content": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, agent.EventError, last.Type)
	assert.NotContains(t, last.Error, "unexpected LLM call")
}

func TestAddFileReference(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	token := env.login(t, "user-1", "client-1")

	rec := env.do(http.MethodPost, "/api/chats", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var chat models.Chat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = env.do(http.MethodPost, "/api/chats/"+chat.ID+"/files", token, map[string]string{
		"file_name": "report.pdf",
		"file_type": "application/pdf",
		"file_url":  "https://example.com/report.pdf",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	refs, err := env.storage.ListFileReferences(context.Background(), chat.ID, "user-1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "report.pdf", refs[0].FileName)

	rec = env.do(http.MethodPost, "/api/chats/"+chat.ID+"/files", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestKnowledgeUnconfigured(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	token := env.login(t, "user-1", "client-1")

	rec := env.do(http.MethodPost, "/api/knowledge", token, map[string]string{"content": "doc"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetDocumentNotFound(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	token := env.login(t, "user-1", "client-1")

	rec := env.do(http.MethodGet, "/api/documents/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
