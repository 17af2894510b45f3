package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qa-insight/qa-rag-server/internal/dataset"
	"github.com/qa-insight/qa-rag-server/internal/qagen"
	"github.com/qa-insight/qa-rag-server/internal/storage"
)

func defects(release dataset.Release) *dataset.Dataset {
	return &dataset.Dataset{
		Release:    release,
		Kind:       dataset.KindDefect,
		SourceFile: string(release) + "_Defects.xlsx",
		Columns:    []string{"Issue Key", "Component", "Severity", "Priority", "Status", "Created Date"},
		Rows: []dataset.Row{
			{"Issue Key": "QA-1", "Component": "Auth", "Severity": "High", "Priority": "P1", "Status": "Open", "Created Date": "2026-01-05"},
		},
	}
}

func tests(release dataset.Release) *dataset.Dataset {
	return &dataset.Dataset{
		Release:    release,
		Kind:       dataset.KindTestExecution,
		SourceFile: string(release) + "_TestExecution.xlsx",
		Columns:    []string{"Test ID", "Suite", "Status", "Tester", "Automation", "Linked Defect ID"},
		Rows: []dataset.Row{
			{"Test ID": "T-1", "Suite": "Smoke", "Status": "Pass", "Tester": "Dana", "Automation": "Yes", "Linked Defect ID": ""},
		},
	}
}

func meta(release dataset.Release) *dataset.Dataset {
	return &dataset.Dataset{
		Release:    release,
		Kind:       dataset.KindMetadata,
		SourceFile: string(release) + "_Meta.xlsx",
		Columns:    []string{"Metric", "Value"},
		Rows: []dataset.Row{
			{"Metric": "Release Name", "Value": string(release)},
		},
	}
}

func validBundle() *dataset.Bundle {
	return &dataset.Bundle{
		DefectsA: defects(dataset.ReleaseA),
		TestsA:   tests(dataset.ReleaseA),
		MetaA:    meta(dataset.ReleaseA),
		DefectsB: defects(dataset.ReleaseB),
		TestsB:   tests(dataset.ReleaseB),
		MetaB:    meta(dataset.ReleaseB),
	}
}

type fakeLoader struct {
	bundle *dataset.Bundle
	err    error
}

func (f *fakeLoader) LoadAll() (*dataset.Bundle, error) { return f.bundle, f.err }

// fakeGenerator returns perFile pairs for per-file prompts and comparison
// pairs for the cross-release prompt, with optional per-prompt failures.
type fakeGenerator struct {
	perFile    int
	comparison int
	failOn     string // substring of prompts that should error
	calls      int
}

func (f *fakeGenerator) Generate(_ context.Context, userPrompt string) ([]qagen.QAPair, error) {
	f.calls++
	if f.failOn != "" && strings.Contains(userPrompt, f.failOn) {
		return nil, errors.New("parse Q&A array: unexpected token")
	}

	n := f.perFile
	if strings.Contains(userPrompt, "comparing two software releases") {
		n = f.comparison
	}
	pairs := make([]qagen.QAPair, n)
	for i := range pairs {
		pairs[i] = qagen.QAPair{
			Question: fmt.Sprintf("Q%d", i+1),
			Answer:   fmt.Sprintf("A%d", i+1),
		}
	}
	return pairs, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, storage.VectorDimension)
	}
	return out, nil
}

type fakeIndex struct {
	rebuilds int
	lastDocs []*storage.Document
	err      error
}

func (f *fakeIndex) Rebuild(_ context.Context, docs []*storage.Document) error {
	if f.err != nil {
		return f.err
	}
	f.rebuilds++
	f.lastDocs = docs
	return nil
}

// TestIngestAll_FullRun verifies the six per-file passes plus the comparison
// pass aggregate into one rebuild: 6*5 + 3 = 33 documents with the expected
// doc_type distribution.
func TestIngestAll_FullRun(t *testing.T) {
	gen := &fakeGenerator{perFile: 5, comparison: 3}
	index := &fakeIndex{}
	p := NewPipeline(&fakeLoader{bundle: validBundle()}, gen, &fakeEmbedder{}, index, nil)

	result, err := p.IngestAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 33, result.TotalDocuments)
	assert.Empty(t, result.FailedPasses)
	assert.Equal(t, 7, gen.calls, "six per-file passes plus one comparison pass")

	require.Equal(t, 1, index.rebuilds, "exactly one full-replace rebuild")
	require.Len(t, index.lastDocs, 33)

	byType := map[string]int{}
	for _, doc := range index.lastDocs {
		byType[doc.Metadata.DocType]++
		assert.NotEmpty(t, doc.Metadata.Release)
		assert.Len(t, doc.Embedding, storage.VectorDimension)
	}
	assert.Equal(t, map[string]int{
		"defect":         10,
		"test_execution": 10,
		"metadata":       10,
		"comparison":     3,
	}, byType)
}

// TestIngestAll_ComparisonMetadata verifies the cross-release pass tags its
// documents with the fixed comparison metadata.
func TestIngestAll_ComparisonMetadata(t *testing.T) {
	index := &fakeIndex{}
	p := NewPipeline(&fakeLoader{bundle: validBundle()},
		&fakeGenerator{perFile: 0, comparison: 2}, &fakeEmbedder{}, index, nil)

	_, err := p.IngestAll(context.Background())
	require.NoError(t, err)

	require.Len(t, index.lastDocs, 2)
	for _, doc := range index.lastDocs {
		assert.Equal(t, "cross_release", doc.Metadata.Source)
		assert.Equal(t, "comparison", doc.Metadata.DocType)
		assert.Equal(t, "all", doc.Metadata.Release)
	}
}

// TestIngestAll_PassFailureDegrades verifies a single failing pass
// contributes zero documents while sibling passes and the commit proceed.
func TestIngestAll_PassFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{perFile: 5, comparison: 3, failOn: "ReleaseA_Defects.xlsx"}
	index := &fakeIndex{}
	p := NewPipeline(&fakeLoader{bundle: validBundle()}, gen, &fakeEmbedder{}, index, nil)

	result, err := p.IngestAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 28, result.TotalDocuments)
	require.Len(t, result.FailedPasses, 1)
	assert.Equal(t, "ReleaseA/defect", result.FailedPasses[0].Name)
	assert.Equal(t, 1, index.rebuilds, "sibling documents still get committed")
}

// TestIngestAll_LoaderFailureAborts verifies a dataset resolution failure
// aborts before any generation or rebuild.
func TestIngestAll_LoaderFailureAborts(t *testing.T) {
	gen := &fakeGenerator{perFile: 5, comparison: 3}
	index := &fakeIndex{}
	p := NewPipeline(&fakeLoader{err: dataset.ErrDatasetNotFound}, gen, &fakeEmbedder{}, index, nil)

	_, err := p.IngestAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrDatasetNotFound)
	assert.Zero(t, gen.calls, "no LLM calls after a resolution failure")
	assert.Zero(t, index.rebuilds, "existing index untouched")
}

// TestIngestAll_BadShapeFailsPassOnly verifies a data-shape error in one
// dataset degrades that pass and the comparison pass, but not siblings.
func TestIngestAll_BadShapeFailsPassOnly(t *testing.T) {
	bundle := validBundle()
	bundle.DefectsB.Columns = []string{"Issue Key"} // missing tally columns

	index := &fakeIndex{}
	p := NewPipeline(&fakeLoader{bundle: bundle},
		&fakeGenerator{perFile: 5, comparison: 3}, &fakeEmbedder{}, index, nil)

	result, err := p.IngestAll(context.Background())
	require.NoError(t, err)

	// ReleaseB defects pass and the comparison pass (which needs ReleaseB
	// defect stats) both degrade; five per-file passes remain.
	assert.Equal(t, 25, result.TotalDocuments)
	require.Len(t, result.FailedPasses, 2)
	assert.Equal(t, 1, index.rebuilds)
}

// TestIngestAll_EmbedFailureAborts verifies an embedding failure aborts the
// run without touching the index.
func TestIngestAll_EmbedFailureAborts(t *testing.T) {
	index := &fakeIndex{}
	p := NewPipeline(&fakeLoader{bundle: validBundle()},
		&fakeGenerator{perFile: 1, comparison: 1},
		&fakeEmbedder{err: errors.New("rate limited")}, index, nil)

	_, err := p.IngestAll(context.Background())
	require.Error(t, err)
	assert.Zero(t, index.rebuilds)
}

// TestIngestAll_RebuildFailure propagates storage failures.
func TestIngestAll_RebuildFailure(t *testing.T) {
	p := NewPipeline(&fakeLoader{bundle: validBundle()},
		&fakeGenerator{perFile: 1, comparison: 1}, &fakeEmbedder{},
		&fakeIndex{err: errors.New("qdrant down")}, nil)

	_, err := p.IngestAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rebuild index")
}
