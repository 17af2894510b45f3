// Package answer implements the retrieval/query pipeline: filtered top-k
// document retrieval, context assembly, and answer synthesis.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/qa-insight/qa-rag-server/internal/storage"
)

const (
	// DefaultK is the number of documents retrieved when the caller does
	// not specify one.
	DefaultK = 8

	// MaxK bounds the context handed to the synthesizer.
	MaxK = 50

	// contextSeparator joins retrieved document contents into one block.
	contextSeparator = "\n\n---\n\n"

	// noDocsSentinel stands in for the context when retrieval is empty.
	noDocsSentinel = "No relevant documents were found."
)

// synthesisInstruction directs the model to combine the retrieved Q&A pairs
// into one coherent answer rather than deflecting.
const synthesisInstruction = `You are a QA analyst assistant helping users understand test management data across software releases.

The context below contains Q&A pairs pre-generated from the actual data. Use them to synthesise a helpful, accurate answer. The user's question may be phrased differently from the stored questions - use your judgement to find and combine relevant information across all the provided pairs.

Rules:
- Always try to give a useful answer by combining related Q&A pairs from the context.
- If multiple Q&A pairs are relevant, synthesise them into one coherent response.
- If the context genuinely contains no relevant information, say so briefly.
- Do not say "cannot be determined" when the context clearly contains related facts.

Context:
%s`

// Embedder embeds query text.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher performs filtered similarity search against the index.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, filter storage.SearchFilter, k int) ([]*storage.ScoredDocument, error)
}

// Result is a synthesized answer with the documents that produced it. The
// source list is exactly the retrieval result, in rank order.
type Result struct {
	Answer  string
	Sources []*storage.ScoredDocument
}

// Service answers questions over the Q&A index.
type Service struct {
	embedder Embedder
	searcher Searcher
	client   *openai.Client
	model    string
	logger   *slog.Logger
}

// NewService creates a retrieval service using the given chat model for
// synthesis.
func NewService(embedder Embedder, searcher Searcher, client *openai.Client, model string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder: embedder,
		searcher: searcher,
		client:   client,
		model:    model,
		logger:   logger,
	}
}

// Retrieve returns the top-k documents matching the question under the
// filter, in rank order, without synthesis. k is normalized to [1, MaxK]
// with DefaultK for unset values.
func (s *Service) Retrieve(ctx context.Context, question string, filter storage.SearchFilter, k int) ([]*storage.ScoredDocument, error) {
	k = normalizeK(k)

	embeddings, err := s.embedder.GenerateEmbeddings(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docs, err := s.searcher.Search(ctx, embeddings[0], filter, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return docs, nil
}

// Answer retrieves context for the question and synthesizes a single
// response. The returned sources are exactly the retrieved documents.
func (s *Service) Answer(ctx context.Context, question string, filter storage.SearchFilter, k int) (*Result, error) {
	docs, err := s.Retrieve(ctx, question, filter, k)
	if err != nil {
		return nil, err
	}

	contextBlock := BuildContext(docs)
	s.logger.Debug("retrieved context", "documents", len(docs), "chars", len(contextBlock))

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(synthesisInstruction, contextBlock)),
			openai.UserMessage(question),
		},
		Model: s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty synthesis response")
	}

	return &Result{
		Answer:  resp.Choices[0].Message.Content,
		Sources: docs,
	}, nil
}

// BuildContext joins retrieved document contents with the fixed separator,
// or returns the no-documents sentinel for an empty retrieval.
func BuildContext(docs []*storage.ScoredDocument) string {
	if len(docs) == 0 {
		return noDocsSentinel
	}
	contents := make([]string, len(docs))
	for i, doc := range docs {
		contents[i] = doc.Document.Content
	}
	return strings.Join(contents, contextSeparator)
}

func normalizeK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	if k > MaxK {
		return MaxK
	}
	return k
}
