package embedding

import (
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client shared by embedding generation and the
// chat-based components (Q&A generation, answer synthesis).
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client with the given API key.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is empty")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for use in other packages
// (Q&A generation and answer synthesis share the connection).
func (c *Client) Client() *openai.Client {
	return c.client
}
