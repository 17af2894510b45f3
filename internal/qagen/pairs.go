package qagen

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qa-insight/qa-rag-server/internal/storage"
)

// QAPair is one generated question with its computed answer. Pairs are
// transient; they only exist between generation and packaging.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ErrNoJSONArray indicates the model response contained no JSON array at
// all. Callers treat this as a soft failure worth a warning, not an abort.
var ErrNoJSONArray = errors.New("no JSON array in model response")

// ExtractPairs pulls a JSON array of Q&A pairs out of a possibly noisy model
// response. The array is located as the span from the first '[' to the last
// ']' so surrounding prose or markdown fences do not break parsing.
//
// A missing array returns ErrNoJSONArray. A located span that fails to parse
// as []QAPair is a hard error. The returned slice is never partially parsed.
func ExtractPairs(raw string) ([]QAPair, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil, ErrNoJSONArray
	}

	var pairs []QAPair
	if err := json.Unmarshal([]byte(raw[start:end+1]), &pairs); err != nil {
		return nil, fmt.Errorf("parse Q&A array: %w", err)
	}

	return pairs, nil
}

// PassMetadata is the fixed metadata attached to every document a
// generation pass produces.
type PassMetadata struct {
	Source  string
	DocType string
	Release string
}

// PackageDocuments converts pairs into indexable documents. Pairs whose
// trimmed question or answer is empty are dropped. No deduplication is
// performed; duplicate Q&A content may coexist in the index.
func PackageDocuments(pairs []QAPair, meta PassMetadata, indexedAt time.Time) []*storage.Document {
	docs := make([]*storage.Document, 0, len(pairs))
	for _, pair := range pairs {
		q := strings.TrimSpace(pair.Question)
		a := strings.TrimSpace(pair.Answer)
		if q == "" || a == "" {
			continue
		}
		docs = append(docs, &storage.Document{
			ID:      uuid.New().String(),
			Content: fmt.Sprintf("Q: %s\nA: %s", q, a),
			Metadata: storage.DocumentMetadata{
				Source:    meta.Source,
				DocType:   meta.DocType,
				Release:   meta.Release,
				Question:  q,
				IndexedAt: indexedAt,
			},
		})
	}
	return docs
}
