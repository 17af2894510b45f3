// Package main provides the qactl CLI for managing and inspecting the Q&A
// index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/qa-insight/qa-rag-server/internal/answer"
	"github.com/qa-insight/qa-rag-server/internal/config"
	"github.com/qa-insight/qa-rag-server/internal/dataset"
	"github.com/qa-insight/qa-rag-server/internal/embedding"
	"github.com/qa-insight/qa-rag-server/internal/indexer"
	"github.com/qa-insight/qa-rag-server/internal/qagen"
	"github.com/qa-insight/qa-rag-server/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "qactl",
	Short: "QA release-analysis index management tool",
	Long:  "CLI tool for rebuilding and inspecting the Q&A document index in Qdrant",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Rebuild the Q&A index from the documents directory",
	Long: `Runs the full ingestion pipeline and replaces the existing index.

This command:
1. Connects to Qdrant and verifies health
2. Loads the six release workbooks from the documents directory
3. Generates Q&A pairs per file and across releases
4. Embeds every document
5. Writes the new index and atomically swaps it in

Environment variables:
  OPENAI_API_KEY OpenAI API key (required)
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  DOCS_DIR       Documents directory (default: ./docs)
  QA_CHAT_MODEL  Generation/synthesis model (default: gpt-4o-mini)`,
	RunE: runIngest,
}

var (
	debugRelease string
	debugDocType string
	debugK       int
)

var debugCmd = &cobra.Command{
	Use:   "debug <question>",
	Short: "Inspect what retrieval returns for a question",
	Long:  "Prints the ranked documents and the exact context block the synthesizer would receive, without calling the LLM.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebug,
}

func init() {
	debugCmd.Flags().StringVar(&debugRelease, "release", "", "filter by release: ReleaseA or ReleaseB")
	debugCmd.Flags().StringVar(&debugDocType, "doc-type", "", "filter by doc_type: defect, test_execution, metadata, comparison")
	debugCmd.Flags().IntVar(&debugK, "k", 8, "number of documents to retrieve")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(debugCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// deps bundles the wired components both subcommands need.
type deps struct {
	cfg      *config.Config
	store    *storage.QdrantStorage
	client   *embedding.Client
	embedder *embedding.Embedder
}

func wire() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
	store, err := storage.NewQdrantStorage(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	client, err := embedding.NewClient(cfg.OpenAIKey)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	return &deps{
		cfg:      cfg,
		store:    store,
		client:   client,
		embedder: embedding.NewEmbedder(client, 0),
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	d, err := wire()
	if err != nil {
		return err
	}
	defer d.store.Close()

	fmt.Printf("Documents directory: %s\n", d.cfg.DocsDir)
	fmt.Printf("Generation model:    %s\n", d.cfg.ChatModel)
	fmt.Println()

	loader := dataset.NewLoader(d.cfg.DocsDir)
	generator := qagen.NewGenerator(d.client.Client(), d.cfg.ChatModel, slog.Default())
	pipeline := indexer.NewPipeline(loader, generator, d.embedder, d.store, slog.Default())

	result, err := pipeline.IngestAll(ctx)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Documents: %d\n", result.TotalDocuments)
	for pass, n := range result.DocsByPass {
		fmt.Printf("    %-28s %d\n", pass, n)
	}
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))

	if len(result.FailedPasses) > 0 {
		fmt.Println()
		fmt.Println("Failed passes (contributed zero documents):")
		for _, failed := range result.FailedPasses {
			fmt.Printf("  - %s: %s\n", failed.Name, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runDebug(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := args[0]

	d, err := wire()
	if err != nil {
		return err
	}
	defer d.store.Close()

	total, err := d.store.CountDocuments(ctx)
	if err != nil {
		return err
	}
	if total == 0 {
		return fmt.Errorf("index is empty; run 'qactl ingest' first")
	}
	fmt.Printf("Total documents in index: %d\n\n", total)

	filter := storage.NewSearchFilter(debugRelease, debugDocType)
	svc := answer.NewService(d.embedder, d.store, d.client.Client(), d.cfg.ChatModel, slog.Default())

	docs, err := svc.Retrieve(ctx, question, filter, debugK)
	if err != nil {
		return err
	}

	divider := strings.Repeat("-", 70)
	fmt.Printf("Retrieved %d document(s):\n\n", len(docs))
	for i, doc := range docs {
		fmt.Println(divider)
		fmt.Printf("  Document %d  |  Score: %.4f  |  release=%s  doc_type=%s\n",
			i+1, doc.Score, doc.Document.Metadata.Release, doc.Document.Metadata.DocType)
		fmt.Println(divider)
		fmt.Println(doc.Document.Content)
		fmt.Println()
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("  FULL CONTEXT PASSED TO LLM")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()
	fmt.Println(answer.BuildContext(docs))

	return nil
}
