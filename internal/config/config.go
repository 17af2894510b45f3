// Package config collects service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults for optional settings.
const (
	DefaultQdrantHost = "localhost"
	DefaultQdrantPort = 6334
	DefaultDocsDir    = "./docs"
	DefaultPort       = "8080"
	DefaultChatModel  = "gpt-4o-mini"
)

// Config holds every runtime setting for the service. It is built once at
// process start and passed explicitly to the components that need it.
type Config struct {
	OpenAIKey  string // required
	QdrantHost string
	QdrantPort int
	DocsDir    string // directory holding the release workbooks
	Port       string // HTTP listen port
	ChatModel  string // model used for Q&A generation and answer synthesis
}

// Load reads configuration from environment variables.
// OPENAI_API_KEY is the single required credential; a missing key is a
// startup-fatal configuration error.
func Load() (*Config, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	return &Config{
		OpenAIKey:  apiKey,
		QdrantHost: getEnv("QDRANT_HOST", DefaultQdrantHost),
		QdrantPort: getEnvInt("QDRANT_PORT", DefaultQdrantPort),
		DocsDir:    getEnv("DOCS_DIR", DefaultDocsDir),
		Port:       getEnv("PORT", DefaultPort),
		ChatModel:  getEnv("QA_CHAT_MODEL", DefaultChatModel),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
