package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/novamindhealth/ketamine-assistant/internal/api"
	"github.com/novamindhealth/ketamine-assistant/internal/config"
	"github.com/novamindhealth/ketamine-assistant/internal/core"
	"github.com/novamindhealth/ketamine-assistant/internal/llm"
	"github.com/novamindhealth/ketamine-assistant/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup structured logging
	logger := newLogger(config.AppConfig.LogLevel)
	defer logger.Sync()

	// Command line flag for local file ingestion
	ingestPath := flag.String("ingest", "", "Ingest a local .txt/.md file into the knowledge base and exit")
	flag.Parse()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer dbStore.Close()

	// Initialize the hosted model provider
	provider, err := newProvider(logger)
	if err != nil {
		logger.Fatal("failed to initialize LLM provider", zap.Error(err))
	}
	defer provider.Close()

	// Build the ingestion pipeline
	classifier := core.NewClassifier(provider, logger)
	chunker := core.NewWordChunker(180, 30)
	ingestion := core.NewIngestionService(dbStore, provider, classifier, chunker, config.AppConfig.EmbeddingDim, logger)

	// Handle local ingestion if the flag is set
	if *ingestPath != "" {
		data, err := os.ReadFile(*ingestPath)
		if err != nil {
			logger.Fatal("failed to read ingest file", zap.String("path", *ingestPath), zap.Error(err))
		}
		doc, err := ingestion.ProcessUpload(context.Background(), filepath.Base(*ingestPath), data, "cli")
		if err != nil {
			logger.Fatal("ingestion failed", zap.String("path", *ingestPath), zap.Error(err))
		}
		logger.Info("ingestion complete",
			zap.String("doc_id", doc.ID),
			zap.String("status", doc.Status))
		return
	}

	// Build the RAG pipeline and chat service
	genOpts := llm.CompleteOptions{
		MaxTokens:   config.AppConfig.MaxTokens,
		Temperature: float32(config.AppConfig.Temperature),
	}
	callTimeout := time.Duration(config.AppConfig.TimeoutSeconds) * time.Second
	ragService := core.NewRAGService(dbStore, provider, provider, config.AppConfig.TopK, genOpts, callTimeout, logger)
	chatService := core.NewChatService(dbStore, ragService, logger)

	// Initialize API handler and router
	apiHandler := api.NewAPIHandler(chatService, ingestion, dbStore, dbStore, logger)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting gracefully")
}

func newLogger(level string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if level == "DEBUG" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func newProvider(logger *zap.Logger) (llm.Provider, error) {
	cfg := config.AppConfig
	switch cfg.Provider {
	case "gemini":
		logger.Info("using gemini provider", zap.String("chat_model", cfg.ChatModel))
		return llm.NewGeminiProvider(context.Background(), cfg.GeminiAPIKey, cfg.ChatModel, cfg.EmbeddingModel)
	default:
		logger.Info("using openai-compatible provider",
			zap.String("chat_model", cfg.ChatModel),
			zap.String("base_url", cfg.OpenAIBaseURL))
		return llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel, cfg.EmbeddingModel, cfg.EmbeddingDim)
	}
}
