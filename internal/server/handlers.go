package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qa-insight/qa-rag-server/internal/indexer"
	"github.com/qa-insight/qa-rag-server/internal/storage"
)

// ErrorResponse carries a human-readable failure reason.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports service liveness and index state.
type HealthResponse struct {
	Status        string `json:"status"`
	IndexReady    bool   `json:"index_ready"`
	TotalDocs     uint64 `json:"total_docs"`
	IngestRunning bool   `json:"ingest_running"`
	LLMModel      string `json:"llm_model"`
	Qdrant        string `json:"qdrant"`
}

// QueryRequest is the /query body. Release and DocType are optional
// filters; placeholder values are normalized away by the filter builder.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	Release  string `json:"release"`  // ReleaseA | ReleaseB
	DocType  string `json:"doc_type"` // defect | test_execution | metadata | comparison
	K        int    `json:"k"`
}

// SourceDocument is one supporting document in a query response.
type SourceDocument struct {
	Content  string         `json:"content"`
	Metadata SourceMetadata `json:"metadata"`
}

// SourceMetadata mirrors the payload stored with each document.
type SourceMetadata struct {
	Source    string    `json:"source"`
	DocType   string    `json:"doc_type"`
	Release   string    `json:"release"`
	Question  string    `json:"question"`
	IndexedAt time.Time `json:"indexed_at"`
}

// QueryResponse is the synthesized answer plus its sources.
type QueryResponse struct {
	Answer  string           `json:"answer"`
	Sources []SourceDocument `json:"sources"`
}

// DebugEntry is one ranked retrieval result in a /debug response.
type DebugEntry struct {
	Rank     int            `json:"rank"`
	Score    float64        `json:"score"`
	Metadata SourceMetadata `json:"metadata"`
	Content  string         `json:"content"`
}

// DebugResponse is a raw retrieval dump without synthesis.
type DebugResponse struct {
	TotalDocsInDB uint64       `json:"total_docs_in_db"`
	Query         string       `json:"query"`
	Retrieved     []DebugEntry `json:"retrieved"`
}

// handleHealth reports liveness, index readiness, and ingestion state.
func (a *App) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	qdrantState := "connected"
	if err := a.Index.Health(ctx); err != nil {
		qdrantState = "disconnected"
	}

	ready, err := a.Index.IndexReady(ctx)
	if err != nil {
		ready = false
	}
	total, err := a.Index.CountDocuments(ctx)
	if err != nil {
		total = 0
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		IndexReady:    ready,
		TotalDocs:     total,
		IngestRunning: a.Runner.Running(),
		LLMModel:      a.ChatModel,
		Qdrant:        qdrantState,
	})
}

// handleIngest triggers a background ingestion run. The response is always
// asynchronous; callers poll /health for completion.
func (a *App) handleIngest(c *gin.Context) {
	if err := a.Runner.Trigger(); err != nil {
		if errors.Is(err, indexer.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "Ingestion already in progress."})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "ingestion started - call GET /health to check when complete.",
	})
}

// handleQuery answers a natural-language question over the ingested Q&A
// documents. Rejected with 503 while no index exists or an ingestion is
// rewriting it, so a query never runs against torn state.
func (a *App) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if a.Runner.Running() {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Ingestion in progress - please retry shortly."})
		return
	}

	ctx := c.Request.Context()
	ready, err := a.Index.IndexReady(ctx)
	if err != nil || !ready {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Service not ready."})
		return
	}

	filter := storage.NewSearchFilter(req.Release, req.DocType)
	result, err := a.Answerer.Answer(ctx, req.Question, filter, req.K)
	if err != nil {
		if errors.Is(err, storage.ErrNoCollection) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Service not ready."})
			return
		}
		a.Logger.Error("query failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	sources := make([]SourceDocument, 0, len(result.Sources))
	for _, doc := range result.Sources {
		sources = append(sources, SourceDocument{
			Content:  doc.Document.Content,
			Metadata: toSourceMetadata(doc.Document.Metadata),
		})
	}

	c.JSON(http.StatusOK, QueryResponse{
		Answer:  result.Answer,
		Sources: sources,
	})
}

// handleDebug dumps what retrieval returns for a query, with scores and no
// synthesis.
func (a *App) handleDebug(c *gin.Context) {
	query := c.DefaultQuery("q", "defect categories")

	ctx := c.Request.Context()
	ready, err := a.Index.IndexReady(ctx)
	if err != nil || !ready {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Index not loaded."})
		return
	}

	total, err := a.Index.CountDocuments(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	docs, err := a.Answerer.Retrieve(ctx, query, storage.SearchFilter{}, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	retrieved := make([]DebugEntry, 0, len(docs))
	for i, doc := range docs {
		retrieved = append(retrieved, DebugEntry{
			Rank:     i + 1,
			Score:    doc.Score,
			Metadata: toSourceMetadata(doc.Document.Metadata),
			Content:  doc.Document.Content,
		})
	}

	c.JSON(http.StatusOK, DebugResponse{
		TotalDocsInDB: total,
		Query:         query,
		Retrieved:     retrieved,
	})
}

func toSourceMetadata(m storage.DocumentMetadata) SourceMetadata {
	return SourceMetadata{
		Source:    m.Source,
		DocType:   m.DocType,
		Release:   m.Release,
		Question:  m.Question,
		IndexedAt: m.IndexedAt,
	}
}
