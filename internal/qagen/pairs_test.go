package qagen

import (
	"errors"
	"testing"
	"time"
)

// TestExtractPairs_ProseWrapped verifies the array is found even when the
// model wraps it in commentary.
func TestExtractPairs_ProseWrapped(t *testing.T) {
	raw := `Sure, here it is: [{"question":"Q1","answer":"A1"}] thanks!`

	pairs, err := ExtractPairs(raw)
	if err != nil {
		t.Fatalf("ExtractPairs failed: %v", err)
	}

	if len(pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Question != "Q1" {
		t.Errorf("Expected question 'Q1', got %q", pairs[0].Question)
	}
	if pairs[0].Answer != "A1" {
		t.Errorf("Expected answer 'A1', got %q", pairs[0].Answer)
	}
}

// TestExtractPairs_MarkdownFence verifies code fences around the array do
// not break extraction.
func TestExtractPairs_MarkdownFence(t *testing.T) {
	raw := "```json\n[{\"question\":\"Q\",\"answer\":\"A\"},{\"question\":\"Q2\",\"answer\":\"A2\"}]\n```"

	pairs, err := ExtractPairs(raw)
	if err != nil {
		t.Fatalf("ExtractPairs failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("Expected 2 pairs, got %d", len(pairs))
	}
}

// TestExtractPairs_NoArray verifies a response without brackets is the soft
// ErrNoJSONArray case, not a panic or a parse error.
func TestExtractPairs_NoArray(t *testing.T) {
	pairs, err := ExtractPairs("I could not generate any questions for this data.")
	if !errors.Is(err, ErrNoJSONArray) {
		t.Fatalf("Expected ErrNoJSONArray, got %v", err)
	}
	if len(pairs) != 0 {
		t.Errorf("Expected no pairs, got %d", len(pairs))
	}
}

// TestExtractPairs_MalformedArray verifies a located but unparseable array
// is a hard error with no partial result.
func TestExtractPairs_MalformedArray(t *testing.T) {
	pairs, err := ExtractPairs(`[{"question":"Q1","answer":}]`)
	if err == nil {
		t.Fatal("Expected parse error, got nil")
	}
	if errors.Is(err, ErrNoJSONArray) {
		t.Fatal("Malformed array must not be classified as missing array")
	}
	if pairs != nil {
		t.Errorf("Expected nil pairs on parse failure, got %v", pairs)
	}
}

// TestExtractPairs_ReversedBrackets verifies "]" before "[" is treated as
// no array.
func TestExtractPairs_ReversedBrackets(t *testing.T) {
	_, err := ExtractPairs("] nothing here [")
	if !errors.Is(err, ErrNoJSONArray) {
		t.Fatalf("Expected ErrNoJSONArray, got %v", err)
	}
}

// TestPackageDocuments_DropsEmptyPairs verifies pairs with an empty trimmed
// question or answer are dropped.
func TestPackageDocuments_DropsEmptyPairs(t *testing.T) {
	pairs := []QAPair{
		{Question: "Q", Answer: ""},
		{Question: "Q2", Answer: "A2"},
		{Question: "   ", Answer: "A3"},
	}

	docs := PackageDocuments(pairs, PassMetadata{
		Source:  "ReleaseA_Defects.xlsx",
		DocType: "defect",
		Release: "ReleaseA",
	}, time.Now())

	if len(docs) != 1 {
		t.Fatalf("Expected exactly 1 document, got %d", len(docs))
	}
	if docs[0].Content != "Q: Q2\nA: A2" {
		t.Errorf("Unexpected content: %q", docs[0].Content)
	}
	if docs[0].Metadata.Question != "Q2" {
		t.Errorf("Expected question metadata 'Q2', got %q", docs[0].Metadata.Question)
	}
}

// TestPackageDocuments_Metadata verifies the fixed pass metadata is attached
// to every document and IDs are unique.
func TestPackageDocuments_Metadata(t *testing.T) {
	pairs := []QAPair{
		{Question: "How many defects?", Answer: "42"},
		{Question: "Which component has most?", Answer: "Auth"},
	}
	indexedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	docs := PackageDocuments(pairs, PassMetadata{
		Source:  "cross_release",
		DocType: "comparison",
		Release: "all",
	}, indexedAt)

	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.Metadata.Source != "cross_release" {
			t.Errorf("Expected source 'cross_release', got %q", doc.Metadata.Source)
		}
		if doc.Metadata.DocType != "comparison" {
			t.Errorf("Expected doc_type 'comparison', got %q", doc.Metadata.DocType)
		}
		if doc.Metadata.Release != "all" {
			t.Errorf("Expected release 'all', got %q", doc.Metadata.Release)
		}
		if !doc.Metadata.IndexedAt.Equal(indexedAt) {
			t.Errorf("Expected indexed_at %v, got %v", indexedAt, doc.Metadata.IndexedAt)
		}
	}
	if docs[0].ID == docs[1].ID {
		t.Error("Document IDs must be unique")
	}
}

// TestPackageDocuments_TrimsWhitespace verifies question and answer are
// trimmed before rendering.
func TestPackageDocuments_TrimsWhitespace(t *testing.T) {
	docs := PackageDocuments([]QAPair{
		{Question: "  How many?  ", Answer: "\n12\n"},
	}, PassMetadata{Source: "f.xlsx", DocType: "defect", Release: "ReleaseA"}, time.Now())

	if len(docs) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(docs))
	}
	if docs[0].Content != "Q: How many?\nA: 12" {
		t.Errorf("Unexpected content: %q", docs[0].Content)
	}
}
