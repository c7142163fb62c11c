package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/quibitai/quibit-rag/internal/agent"
	"github.com/quibitai/quibit-rag/internal/classifier"
	"github.com/quibitai/quibit-rag/internal/contextwindow"
	"github.com/quibitai/quibit-rag/internal/knowledge"
	"github.com/quibitai/quibit-rag/internal/llm"
	"github.com/quibitai/quibit-rag/internal/server"
	"github.com/quibitai/quibit-rag/internal/storage"
	"github.com/quibitai/quibit-rag/internal/tools"
	"github.com/quibitai/quibit-rag/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Best-effort .env load before viper reads the environment
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// LLM client shared by the agent, the enricher and the document tool
	llmClient := llm.NewOpenAI(cfg.OpenAI.APIKey)

	// Knowledge base (vector store) with OpenAI embeddings
	embedFn := chromem.NewEmbeddingFuncOpenAI(cfg.OpenAI.APIKey, chromem.EmbeddingModelOpenAI(cfg.Knowledge.EmbeddingModel))
	knowledgeStore, err := knowledge.New(cfg.Knowledge.DataDir, embedFn)
	if err != nil {
		logger.Fatal("Failed to initialize knowledge store", zap.Error(err))
	}

	// External tool clients; unconfigured ones stay nil and their tools are
	// simply not registered.
	var tasksClient *tools.TasksClient
	if cfg.Tools.Tasks.BaseURL != "" {
		tasksClient = tools.NewTasksClient(cfg.Tools.Tasks.BaseURL, cfg.Tools.Tasks.Token, cfg.Tools.Tasks.Workspace)
	}
	var calendarClient *tools.CalendarClient
	if cfg.Tools.Calendar.BaseURL != "" {
		calendarClient = tools.NewCalendarClient(cfg.Tools.Calendar.BaseURL, cfg.Tools.Calendar.Token, cfg.Tools.Calendar.CalendarID)
	}
	var webSearch *tools.WebSearchTool
	if cfg.Tools.Search.Endpoint != "" {
		webSearch = tools.NewWebSearchTool(cfg.Tools.Search.Endpoint, cfg.Tools.Search.APIKey, cfg.Tools.Search.MaxResults)
	}

	toolFactory := tools.NewFactory(
		tasksClient,
		calendarClient,
		webSearch,
		knowledgeStore,
		store,
		llmClient,
		cfg.OpenAI.Model,
		cfg.Knowledge.TopK,
	)

	// Request classifier and context window builder
	clf := classifier.NewPatternClassifier(cfg.Classifier.ForceThreshold, cfg.Classifier.MultiStepThreshold)
	builder := contextwindow.NewBuilder(store, contextwindow.Config{
		MaxRecentMessages: cfg.Context.MaxRecentMessages,
		CharsPerToken:     cfg.Context.CharsPerToken,
		FileTokenOverhead: cfg.Context.FileTokenOverhead,
	}, logger)
	enricher := contextwindow.NewEnricher(store, llmClient, cfg.OpenAI.Model, cfg.Context.SummaryEvery, logger)

	srv := server.New(server.Deps{
		Storage:     store,
		Classifier:  clf,
		Builder:     builder,
		Enricher:    enricher,
		ToolFactory: toolFactory,
		LLM:         llmClient,
		Knowledge:   knowledgeStore,
		AgentConfig: agent.Config{
			Model:           cfg.OpenAI.Model,
			EnableMultiStep: cfg.Agent.EnableMultiStep,
			MaxRounds:       cfg.Agent.MaxRounds,
			Temperature:     float32(cfg.OpenAI.Temperature),
		},
		SystemPrompt: cfg.Agent.SystemPrompt,
		JWTSecret:    cfg.Auth.JWTSecret,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("Starting server", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
}
