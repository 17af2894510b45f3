// Package qagen generates question/answer pairs from dataset prompts using
// the OpenAI chat API and packages them into indexable documents.
package qagen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// systemInstruction pins the model to a machine-readable output shape.
const systemInstruction = "You are a QA analyst assistant. " +
	"Generate comprehensive, accurate question-and-answer pairs from the provided data. " +
	"Return ONLY a valid JSON array - no markdown fences, no commentary:\n" +
	`[{"question": "...", "answer": "..."}, ...]`

// Generator produces Q&A pairs from a built prompt.
type Generator struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewGenerator creates a generator using the given OpenAI client and chat
// model.
func NewGenerator(client *openai.Client, model string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client: client,
		model:  model,
		logger: logger,
	}
}

// Generate sends the prompt to the model and extracts the resulting Q&A
// pairs. A response with no JSON array at all is a soft failure: a warning
// is logged and an empty list returned. A response whose array fails to
// parse is a hard error for the calling pass. The result is always a list,
// possibly empty, never partially parsed.
func (g *Generator) Generate(ctx context.Context, userPrompt string) ([]QAPair, error) {
	raw, err := g.completeWithRetry(ctx, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	pairs, err := ExtractPairs(raw)
	if err != nil {
		if errors.Is(err, ErrNoJSONArray) {
			g.logger.Warn("could not locate JSON array in model response, skipping pass")
			return []QAPair{}, nil
		}
		return nil, err
	}

	return pairs, nil
}

// completeWithRetry runs the chat completion, retrying on rate limit errors
// (HTTP 429) with exponential backoff. Other errors are permanent.
func (g *Generator) completeWithRetry(ctx context.Context, userPrompt string) (string, error) {
	var raw string

	operation := func() error {
		resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemInstruction),
				openai.UserMessage(userPrompt),
			},
			Model: g.model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("empty completion response"))
		}
		raw = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return raw, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
