// Package main provides the QA release-analysis RAG service entry point.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/qa-insight/qa-rag-server/internal/answer"
	"github.com/qa-insight/qa-rag-server/internal/config"
	"github.com/qa-insight/qa-rag-server/internal/dataset"
	"github.com/qa-insight/qa-rag-server/internal/embedding"
	"github.com/qa-insight/qa-rag-server/internal/indexer"
	"github.com/qa-insight/qa-rag-server/internal/qagen"
	"github.com/qa-insight/qa-rag-server/internal/server"
	"github.com/qa-insight/qa-rag-server/internal/storage"
	"github.com/qa-insight/qa-rag-server/internal/watcher"
)

func main() {
	// Load .env if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store, err := storage.NewQdrantStorage(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	openaiClient, err := embedding.NewClient(cfg.OpenAIKey)
	if err != nil {
		log.Fatalf("failed to create OpenAI client: %v", err)
	}
	embedder := embedding.NewEmbedder(openaiClient, 0)

	loader := dataset.NewLoader(cfg.DocsDir)
	generator := qagen.NewGenerator(openaiClient.Client(), cfg.ChatModel, logger)
	pipeline := indexer.NewPipeline(loader, generator, embedder, store, logger)

	runner := indexer.NewRunner(pipeline.IngestAll, func(res *indexer.IngestResult) {
		logger.Info("index rebuilt", "documents", res.TotalDocuments, "duration", res.Duration)
	}, logger)
	runner.Start(ctx)

	// First run on an empty deployment blocks readiness; with an existing
	// index the service serves immediately.
	ready, err := store.IndexReady(ctx)
	if err != nil {
		log.Fatalf("failed to check index state: %v", err)
	}
	if !ready {
		logger.Info("no existing index found, running initial ingestion")
		if _, err := runner.RunOnce(ctx); err != nil {
			log.Fatalf("initial ingestion failed: %v", err)
		}
	}

	docsWatcher, err := watcher.New(cfg.DocsDir, runner, logger)
	if err != nil {
		log.Fatalf("failed to watch documents directory: %v", err)
	}
	docsWatcher.Start(ctx)
	logger.Info("watching documents directory", "dir", cfg.DocsDir)

	svc := answer.NewService(embedder, store, openaiClient.Client(), cfg.ChatModel, logger)
	app := &server.App{
		Index:     store,
		Answerer:  svc,
		Runner:    runner,
		ChatModel: cfg.ChatModel,
		Logger:    logger,
	}

	httpServer := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: app.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("API ready", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server error: %v", err)
	}
}
