// Package indexer orchestrates the full ingestion run: dataset loading,
// multi-pass Q&A generation, embedding, and the full-replace index rebuild.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qa-insight/qa-rag-server/internal/dataset"
	"github.com/qa-insight/qa-rag-server/internal/prompt"
	"github.com/qa-insight/qa-rag-server/internal/qagen"
	"github.com/qa-insight/qa-rag-server/internal/stats"
	"github.com/qa-insight/qa-rag-server/internal/storage"
)

// Comparison pass metadata values.
const (
	comparisonSource  = "cross_release"
	comparisonDocType = "comparison"
	comparisonRelease = "all"
)

// DatasetLoader loads the six required datasets for a run.
type DatasetLoader interface {
	LoadAll() (*dataset.Bundle, error)
}

// PairGenerator produces Q&A pairs for a built prompt.
type PairGenerator interface {
	Generate(ctx context.Context, userPrompt string) ([]qagen.QAPair, error)
}

// EmbeddingProvider embeds document contents, one vector per text in order.
type EmbeddingProvider interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexWriter atomically replaces the persisted index with a document set.
type IndexWriter interface {
	Rebuild(ctx context.Context, docs []*storage.Document) error
}

// IngestResult contains statistics about a completed ingestion run.
type IngestResult struct {
	TotalDocuments int
	DocsByPass     map[string]int
	FailedPasses   []FailedPass
	Duration       time.Duration
}

// FailedPass records a generation pass that contributed zero documents.
type FailedPass struct {
	Name   string
	Reason string
}

// Pipeline runs the fixed generation sequence and commits the result.
type Pipeline struct {
	loader    DatasetLoader
	generator PairGenerator
	embedder  EmbeddingProvider
	index     IndexWriter
	logger    *slog.Logger
}

// NewPipeline creates an ingestion pipeline with the given components.
func NewPipeline(
	loader DatasetLoader,
	generator PairGenerator,
	embedder EmbeddingProvider,
	index IndexWriter,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		loader:    loader,
		generator: generator,
		embedder:  embedder,
		index:     index,
		logger:    logger,
	}
}

// IngestAll performs a full ingestion run.
//
// The six datasets are loaded up front; a resolution or read failure aborts
// the run before any model call, leaving the existing index untouched. Each
// generation pass is independent: a pass that fails contributes zero
// documents while its siblings proceed. Only after every pass has run is the
// aggregated document set embedded and committed as the new index in one
// full-replace operation.
func (p *Pipeline) IngestAll(ctx context.Context) (*IngestResult, error) {
	start := time.Now()
	result := &IngestResult{DocsByPass: make(map[string]int)}

	bundle, err := p.loader.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load datasets: %w", err)
	}
	p.logger.Info("datasets loaded", "count", len(bundle.All()))

	indexedAt := time.Now()
	var all []*storage.Document

	for _, ds := range bundle.All() {
		passName := fmt.Sprintf("%s/%s", ds.Release, ds.Kind)
		docs, err := p.perFilePass(ctx, ds, indexedAt)
		if err != nil {
			p.logger.Warn("generation pass failed, contributing zero documents",
				"pass", passName, "error", err)
			result.FailedPasses = append(result.FailedPasses, FailedPass{
				Name:   passName,
				Reason: err.Error(),
			})
			continue
		}
		p.logger.Info("generation pass complete", "pass", passName, "docs", len(docs))
		result.DocsByPass[passName] = len(docs)
		all = append(all, docs...)
	}

	docs, err := p.comparisonPass(ctx, bundle, indexedAt)
	if err != nil {
		p.logger.Warn("comparison pass failed, contributing zero documents", "error", err)
		result.FailedPasses = append(result.FailedPasses, FailedPass{
			Name:   comparisonSource,
			Reason: err.Error(),
		})
	} else {
		p.logger.Info("comparison pass complete", "docs", len(docs))
		result.DocsByPass[comparisonSource] = len(docs)
		all = append(all, docs...)
	}

	if err := p.embedDocuments(ctx, all); err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}

	if err := p.index.Rebuild(ctx, all); err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	result.TotalDocuments = len(all)
	result.Duration = time.Since(start)
	p.logger.Info("ingestion complete",
		"documents", result.TotalDocuments,
		"failed_passes", len(result.FailedPasses),
		"duration", result.Duration,
	)

	return result, nil
}

// perFilePass generates and packages documents for one dataset.
func (p *Pipeline) perFilePass(ctx context.Context, ds *dataset.Dataset, indexedAt time.Time) ([]*storage.Document, error) {
	userPrompt, err := buildPrompt(ds)
	if err != nil {
		return nil, err
	}

	pairs, err := p.generator.Generate(ctx, userPrompt)
	if err != nil {
		return nil, err
	}

	return qagen.PackageDocuments(pairs, qagen.PassMetadata{
		Source:  ds.SourceFile,
		DocType: string(ds.Kind),
		Release: string(ds.Release),
	}, indexedAt), nil
}

// comparisonPass generates cross-release comparison documents from the
// statistics of all six datasets.
func (p *Pipeline) comparisonPass(ctx context.Context, bundle *dataset.Bundle, indexedAt time.Time) ([]*storage.Document, error) {
	in, err := comparisonInput(bundle)
	if err != nil {
		return nil, err
	}

	pairs, err := p.generator.Generate(ctx, prompt.ForComparison(in))
	if err != nil {
		return nil, err
	}

	return qagen.PackageDocuments(pairs, qagen.PassMetadata{
		Source:  comparisonSource,
		DocType: comparisonDocType,
		Release: comparisonRelease,
	}, indexedAt), nil
}

// embedDocuments fills in the embedding vector of every document in place.
func (p *Pipeline) embedDocuments(ctx context.Context, docs []*storage.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, err := p.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(docs) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d documents",
			len(embeddings), len(docs))
	}

	for i := range docs {
		docs[i].Embedding = embeddings[i]
	}
	return nil
}

// buildPrompt picks the prompt variant for the dataset's kind.
func buildPrompt(ds *dataset.Dataset) (string, error) {
	switch ds.Kind {
	case dataset.KindDefect:
		statsText, err := stats.DefectStats(ds)
		if err != nil {
			return "", err
		}
		return prompt.ForDefects(ds, statsText), nil
	case dataset.KindTestExecution:
		statsText, err := stats.TestStats(ds)
		if err != nil {
			return "", err
		}
		return prompt.ForTests(ds, statsText), nil
	case dataset.KindMetadata:
		metaText, err := stats.MetadataText(ds)
		if err != nil {
			return "", err
		}
		return prompt.ForMetadata(ds, metaText), nil
	default:
		return "", fmt.Errorf("unknown dataset kind %q", ds.Kind)
	}
}

// comparisonInput computes the six statistic blocks the comparison prompt
// needs. Any data-shape error fails the comparison pass as a whole.
func comparisonInput(bundle *dataset.Bundle) (prompt.ComparisonInput, error) {
	var in prompt.ComparisonInput
	var err error

	if in.DefectStatsA, err = stats.DefectStats(bundle.DefectsA); err != nil {
		return in, err
	}
	if in.DefectStatsB, err = stats.DefectStats(bundle.DefectsB); err != nil {
		return in, err
	}
	if in.TestStatsA, err = stats.TestStats(bundle.TestsA); err != nil {
		return in, err
	}
	if in.TestStatsB, err = stats.TestStats(bundle.TestsB); err != nil {
		return in, err
	}
	if in.MetadataA, err = stats.MetadataText(bundle.MetaA); err != nil {
		return in, err
	}
	if in.MetadataB, err = stats.MetadataText(bundle.MetaB); err != nil {
		return in, err
	}
	return in, nil
}
