package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quibitai/quibit-rag/internal/agent"
	"github.com/quibitai/quibit-rag/internal/models"
)

type createChatRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.Title = ""
	}

	chat := &models.Chat{
		ID:       uuid.New().String(),
		UserID:   identity.UserID,
		ClientID: identity.ClientID,
		Title:    req.Title,
	}
	if err := s.storage.CreateChat(r.Context(), chat); err != nil {
		s.logger.Error("create chat failed", zap.Error(err))
		http.Error(w, "Failed to create chat", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, chat)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chats, err := s.storage.ListChats(r.Context(), identity.UserID, identity.ClientID)
	if err != nil {
		s.logger.Error("list chats failed", zap.Error(err))
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}
	if chats == nil {
		chats = []*models.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID := chi.URLParam(r, "chatID")
	chat, err := s.storage.GetChat(r.Context(), chatID, identity.UserID)
	if err != nil {
		s.logger.Error("get chat failed", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Failed to get chat", http.StatusInternalServerError)
		return
	}
	if chat == nil {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}

	messages, err := s.storage.ListMessages(r.Context(), chatID)
	if err != nil {
		s.logger.Error("load chat history failed", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Failed to load chat history", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chat":     chat,
		"messages": messages,
	})
}

type chatMessageRequest struct {
	Content string `json:"content"`
}

// handleChatMessage is the main conversational endpoint. It persists the user
// turn, classifies it, assembles the context window, routes execution and
// streams the normalized event vocabulary back as SSE.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID := chi.URLParam(r, "chatID")
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	chat, err := s.storage.GetChat(ctx, chatID, identity.UserID)
	if err != nil {
		s.logger.Error("get chat failed", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Failed to load chat", http.StatusInternalServerError)
		return
	}
	if chat == nil {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}

	// Context is built before the new turn is persisted so the input is not
	// duplicated into the history it will be answered against.
	window, err := s.builder.Build(ctx, chatID, identity.UserID, identity.ClientID)
	if err != nil {
		s.logger.Error("context build failed", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Failed to build context", http.StatusInternalServerError)
		return
	}

	userMsg := &models.Message{
		ID:      uuid.New().String(),
		ChatID:  chatID,
		Role:    models.RoleUser,
		Content: req.Content,
	}
	if err := s.storage.CreateMessage(ctx, userMsg); err != nil {
		s.logger.Error("persist user message failed", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Failed to save message", http.StatusInternalServerError)
		return
	}

	classification := s.classifier.Classify(req.Content)
	s.logger.Info("classified request",
		zap.String("chat_id", chatID),
		zap.Bool("multi_step", classification.ShouldUseMultiStep),
		zap.String("force_tool", classification.ForceToolCall),
		zap.Float64("confidence", classification.Confidence),
		zap.Strings("patterns", classification.MatchedPatterns))

	registry := s.toolFactory.ForRequest(chatID, identity.UserID, identity.ClientID)
	a := agent.New(s.systemPrompt, s.agentConfig, s.llm, registry, s.logger)

	sse, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	var answer string
	var toolMessages []*models.Message
	for event := range a.Execute(ctx, req.Content, classification, window) {
		sse.send(event)
		switch event.Type {
		case agent.EventToolCallResult:
			toolMessages = append(toolMessages, &models.Message{
				ID:         uuid.New().String(),
				ChatID:     chatID,
				Role:       models.RoleTool,
				Content:    event.ToolResult,
				ToolName:   event.ToolName,
				ToolCallID: event.ToolCallID,
			})
		case agent.EventFinish:
			answer = event.Answer
		}
	}

	// Back-fill tool results and the assistant answer. A cancelled request
	// leaves the turn without an assistant row, which is fine: history stays
	// append-only and consistent.
	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, toolMsg := range toolMessages {
		if err := s.storage.CreateMessage(persistCtx, toolMsg); err != nil {
			s.logger.Warn("persist tool message failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}
	if answer != "" {
		assistantMsg := &models.Message{
			ID:      uuid.New().String(),
			ChatID:  chatID,
			Role:    models.RoleAssistant,
			Content: answer,
		}
		if err := s.storage.CreateMessage(persistCtx, assistantMsg); err != nil {
			s.logger.Warn("persist assistant message failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}

	// Fire-and-forget enrichment; never blocks or fails the request path.
	go func() {
		enrichCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.enricher.AfterTurn(enrichCtx, chat, req.Content)
	}()
}

type fileReferenceRequest struct {
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileURL  string `json:"file_url"`
}

func (s *Server) handleAddFileReference(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID := chi.URLParam(r, "chatID")
	var req fileReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileName == "" {
		http.Error(w, "file_name is required", http.StatusBadRequest)
		return
	}

	chat, err := s.storage.GetChat(r.Context(), chatID, identity.UserID)
	if err != nil || chat == nil {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}

	ref := &models.FileReference{
		ChatID:   chatID,
		UserID:   identity.UserID,
		FileName: req.FileName,
		FileType: req.FileType,
		FileURL:  req.FileURL,
	}
	if err := s.storage.AddFileReference(r.Context(), ref); err != nil {
		s.logger.Error("add file reference failed", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Failed to save file reference", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

type ingestRequest struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleIngestKnowledge(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if s.knowledge == nil {
		http.Error(w, "Knowledge base is not configured", http.StatusServiceUnavailable)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	if err := s.knowledge.Upsert(r.Context(), identity.ClientID, req.ID, req.Content, req.Metadata); err != nil {
		s.logger.Error("knowledge ingest failed", zap.String("doc_id", req.ID), zap.Error(err))
		http.Error(w, "Failed to ingest document", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	docID := chi.URLParam(r, "docID")
	doc, err := s.storage.GetDocument(r.Context(), docID, identity.UserID)
	if err != nil {
		s.logger.Error("get document failed", zap.String("doc_id", docID), zap.Error(err))
		http.Error(w, "Failed to get document", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
