package storage

import "time"

// Document is one indexable Q&A record. Content is the canonical two-line
// "Q: ...\nA: ..." rendering that gets embedded and searched.
type Document struct {
	ID        string // UUID
	Content   string
	Metadata  DocumentMetadata
	Embedding []float32 // 1536-dim vector (text-embedding-3-small)
}

// DocumentMetadata carries the filterable payload attached to a document.
type DocumentMetadata struct {
	Source    string    // workbook base name, or "cross_release"
	DocType   string    // defect | test_execution | metadata | comparison
	Release   string    // ReleaseA | ReleaseB | all
	Question  string    // the generated question, without the answer
	IndexedAt time.Time // when the rebuild that produced this document ran
}

// ScoredDocument pairs a retrieved document with its similarity score.
type ScoredDocument struct {
	Document *Document
	Score    float64
}

// AliasName is the stable, reader-visible name of the Q&A collection.
// Physical collections are versioned; the alias always points at the most
// recently completed rebuild.
const AliasName = "qa_documents"

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536
