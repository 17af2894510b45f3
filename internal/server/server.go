// Package server exposes the HTTP API: health, ingestion trigger, question
// answering, and retrieval debugging.
package server

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/qa-insight/qa-rag-server/internal/answer"
	"github.com/qa-insight/qa-rag-server/internal/storage"
)

// IndexStatus reports index state for health checks and query gating;
// storage.QdrantStorage implements it.
type IndexStatus interface {
	Health(ctx context.Context) error
	IndexReady(ctx context.Context) (bool, error)
	CountDocuments(ctx context.Context) (uint64, error)
}

// Answerer is the retrieval/query pipeline; answer.Service implements it.
type Answerer interface {
	Answer(ctx context.Context, question string, filter storage.SearchFilter, k int) (*answer.Result, error)
	Retrieve(ctx context.Context, question string, filter storage.SearchFilter, k int) ([]*storage.ScoredDocument, error)
}

// IngestRunner is the single-flight ingestion guard; indexer.Runner
// implements it.
type IngestRunner interface {
	Trigger() error
	Running() bool
}

// App is the service context handed to every request handler. It is built
// once at startup; there is no package-level mutable state.
type App struct {
	Index     IndexStatus
	Answerer  Answerer
	Runner    IngestRunner
	ChatModel string
	Logger    *slog.Logger
}

// Router builds the gin engine with all routes registered.
func (a *App) Router() *gin.Engine {
	if a.Logger == nil {
		a.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())

	r.GET("/health", a.handleHealth)
	r.POST("/ingest", a.handleIngest)
	r.POST("/query", a.handleQuery)
	r.GET("/debug", a.handleDebug)

	return r
}

// corsMiddleware allows a local frontend origin to call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "http://localhost:3000")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
