// Package main provides the evidence_agent CLI: chunk compilation, ingestion, hybrid search,
// token budget planning and coverage-checked assembly.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-evidence/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "evidence_agent",
	Short: "Evidence retrieval and budget-aware resume assembly",
	Long: "evidence_agent compiles career records into atomic evidence chunks, retrieves them with hybrid " +
		"dense and lexical search, fits them into a token budget and assembles output whose must-have " +
		"requirements are backed by cited evidence.",
	SilenceUsage: true,
}

var configPath string

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flags.Bool("verbose", false, "Print formatted stage output")
	flags.Bool("json-log", false, "Emit structured logs as JSON")
	flags.Bool("debug", false, "Enable debug logging")

	d := config.Default()
	flags.String("vector-store", d.VectorStore, "Chunk store: memory, postgres or qdrant")
	flags.String("database-url", "", "Postgres connection string (or EVIDENCE_DATABASE_URL)")
	flags.String("llm-provider", d.LLMProvider, "Generation backend: gemini or openai")
	flags.String("embedding-provider", d.EmbeddingProvider, "Embedding backend: gemini, openai or hash")
	flags.String("rerank-provider", d.RerankProvider, "Reranker: none, overlap, cohere or llm")
	flags.String("token-estimator", d.TokenEstimator, "Token estimator: heuristic or tiktoken")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
