package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/quibitai/quibit-rag/internal/agent"
	"github.com/quibitai/quibit-rag/internal/classifier"
	"github.com/quibitai/quibit-rag/internal/contextwindow"
	"github.com/quibitai/quibit-rag/internal/knowledge"
	"github.com/quibitai/quibit-rag/internal/llm"
	"github.com/quibitai/quibit-rag/internal/storage"
	"github.com/quibitai/quibit-rag/internal/tools"
)

// Deps carries everything the HTTP layer needs. All state is request-scoped
// or injected here; handlers read nothing ambient.
type Deps struct {
	Storage      storage.Storage
	Classifier   classifier.Classifier
	Builder      *contextwindow.Builder
	Enricher     *contextwindow.Enricher
	ToolFactory  *tools.Factory
	LLM          llm.Client
	Knowledge    *knowledge.Store
	AgentConfig  agent.Config
	SystemPrompt string
	JWTSecret    string
	Logger       *zap.Logger
}

type Server struct {
	storage      storage.Storage
	classifier   classifier.Classifier
	builder      *contextwindow.Builder
	enricher     *contextwindow.Enricher
	toolFactory  *tools.Factory
	llm          llm.Client
	knowledge    *knowledge.Store
	agentConfig  agent.Config
	systemPrompt string
	jwtSecret    string
	logger       *zap.Logger
}

func New(deps Deps) *Server {
	return &Server{
		storage:      deps.Storage,
		classifier:   deps.Classifier,
		builder:      deps.Builder,
		enricher:     deps.Enricher,
		toolFactory:  deps.ToolFactory,
		llm:          deps.LLM,
		knowledge:    deps.Knowledge,
		agentConfig:  deps.AgentConfig,
		systemPrompt: deps.SystemPrompt,
		jwtSecret:    deps.JWTSecret,
		logger:       deps.Logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/chats", s.handleCreateChat)
			r.Get("/chats", s.handleListChats)
			r.Get("/chats/{chatID}", s.handleGetChat)
			r.Post("/chats/{chatID}/messages", s.handleChatMessage)
			r.Post("/chats/{chatID}/files", s.handleAddFileReference)

			r.Post("/knowledge", s.handleIngestKnowledge)
			r.Get("/documents/{docID}", s.handleGetDocument)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
