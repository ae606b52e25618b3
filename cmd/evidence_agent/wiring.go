package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jonathan/resume-evidence/internal/assembly"
	"github.com/jonathan/resume-evidence/internal/cache"
	"github.com/jonathan/resume-evidence/internal/compression"
	"github.com/jonathan/resume-evidence/internal/config"
	"github.com/jonathan/resume-evidence/internal/db"
	"github.com/jonathan/resume-evidence/internal/embedding"
	"github.com/jonathan/resume-evidence/internal/experience"
	"github.com/jonathan/resume-evidence/internal/llm"
	"github.com/jonathan/resume-evidence/internal/logger"
	"github.com/jonathan/resume-evidence/internal/observability"
	"github.com/jonathan/resume-evidence/internal/pipeline"
	"github.com/jonathan/resume-evidence/internal/ranking"
	"github.com/jonathan/resume-evidence/internal/retrieval"
	"github.com/jonathan/resume-evidence/internal/tokens"
	"github.com/jonathan/resume-evidence/internal/vectorstore"
)

// metricsNamespace prefixes every exported metric
const metricsNamespace = "evidence"

// app holds the collaborators built from configuration for one CLI invocation
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	estimator tokens.Estimator
	registry  *prometheus.Registry
	sink      observability.Sink
	printer   *observability.Printer
	out       io.Writer

	embedder embedding.Embedder
	dense    retrieval.DenseIndex
	lexical  retrieval.LexicalIndex
	stores   []pipeline.ChunkStore

	closers []func()
}

// addBudgetFlags registers the options that shape retrieval and the token budget
func addBudgetFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.Int("top-k-dense", d.TopKDense, "Dense candidates per query")
	fs.Int("top-k-lexical", d.TopKLexical, "Lexical candidates per query")
	fs.Float64("hybrid-mix-weight", d.HybridMixWeight, "Weight of the dense score in [0,1]")
	fs.Float64("min-relevance-score", d.MinRelevanceScore, "Drop fused results below this score")
	fs.Int("keep-after-rerank", d.KeepAfterRerank, "Items kept after reranking")
	fs.Int("evidence-token-budget", d.EvidenceTokenBudget, "Tokens requested for evidence")
	fs.Int("model-context-tokens", d.ModelContextTokens, "Context window of the generation model")
	fs.Float64("context-safety-headroom", d.ContextSafetyHeadroom, "Fraction of the context held back")
	fs.Int("system-prompt-tokens", d.SystemPromptTokens, "System prompt tokens (0 measures the prompt)")
	fs.Int("layout-tokens", d.LayoutTokens, "Layout instruction tokens")
	fs.Bool("require-all-must-haves", d.RequireAllMustHaves, "Fail instead of generating when a must-have lacks evidence")
}

// newApp loads configuration and builds the ambient collaborators. Stores are opened by openStores.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.JSONLog, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	est, err := tokens.New(cfg.TokenEstimator, llm.ConfigFor(cfg.LLMProvider).GetModel(llm.TierStandard))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	a := &app{
		cfg:       cfg,
		logger:    log,
		estimator: est,
		registry:  reg,
		sink:      observability.NewPrometheusSink(reg, metricsNamespace),
		out:       cmd.OutOrStdout(),
	}
	if cfg.Verbose {
		a.printer = observability.NewPrinter(a.out)
	}
	a.closers = append(a.closers, func() { _ = log.Sync() })
	return a, nil
}

// Close releases every opened backend in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// compiler builds the chunk compiler
func (a *app) compiler() *experience.Compiler {
	opts := experience.DefaultCompilerOptions()
	return experience.NewCompiler(opts, a.estimator, a.logger.Named("compiler"))
}

// openEmbedder picks the embedding backend. Remote providers without a key fall back to hashing.
func (a *app) openEmbedder(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.EmbeddingProvider {
	case "gemini":
		if cfg.GeminiAPIKey != "" {
			e, err := embedding.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDims)
			if err != nil {
				return err
			}
			a.embedder = e
			a.closers = append(a.closers, func() { _ = e.Close() })
			return nil
		}
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			e, err := embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.LLMBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDims)
			if err != nil {
				return err
			}
			a.embedder = e
			return nil
		}
	case "hash":
		a.embedder = embedding.NewHashEmbedder(cfg.EmbeddingDims)
		return nil
	}
	a.logger.Warn("no API key for embedding provider, using hash embeddings",
		zap.String("provider", cfg.EmbeddingProvider))
	a.embedder = embedding.NewHashEmbedder(cfg.EmbeddingDims)
	return nil
}

// openStores connects the configured chunk store and sets the dense and lexical search paths.
// Qdrant serves dense search only; Postgres adds the lexical path when a database URL is set.
func (a *app) openStores(ctx context.Context) error {
	cfg := a.cfg
	if err := a.openEmbedder(ctx); err != nil {
		return err
	}

	switch cfg.VectorStore {
	case "postgres":
		database, err := a.openPostgres(ctx)
		if err != nil {
			return err
		}
		a.dense, a.lexical = database, database
		a.stores = []pipeline.ChunkStore{database}

	case "qdrant":
		q, err := vectorstore.NewQdrant(ctx, vectorstore.Config{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			Collection: cfg.QdrantCollection,
			VectorSize: a.embedder.Dimensions(),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		a.closers = append(a.closers, func() { _ = q.Close() })
		a.dense = q
		a.stores = []pipeline.ChunkStore{q}
		if cfg.DatabaseURL != "" {
			database, err := a.openPostgres(ctx)
			if err != nil {
				return err
			}
			a.lexical = database
			a.stores = append(a.stores, database)
		} else {
			a.logger.Warn("qdrant store without database_url: lexical search disabled")
		}

	default:
		idx := retrieval.NewMemoryIndex()
		a.dense, a.lexical = idx, idx
		a.stores = []pipeline.ChunkStore{idx}
	}
	return nil
}

func (a *app) openPostgres(ctx context.Context) (*db.DB, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, errors.New("database_url is not set (use --database-url or EVIDENCE_DATABASE_URL)")
	}
	database, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	database.SetMinSimilarity(a.cfg.MinRelevanceScore)
	a.closers = append(a.closers, database.Close)
	return database, nil
}

// persistent reports whether the configured store outlives the process
func (a *app) persistent() bool {
	return a.cfg.VectorStore == "postgres" || a.cfg.VectorStore == "qdrant"
}

// ingestor builds an ingestor over the opened stores
func (a *app) ingestor() *pipeline.Ingestor {
	return pipeline.NewIngestor(a.compiler(), a.embedder, pipeline.IngestOptions{
		EmbedBatchSize:   32,
		EmbedConcurrency: 2,
	}, a.logger.Named("ingest"), a.sink, a.stores...)
}

// engine builds the hybrid retrieval engine
func (a *app) engine() *retrieval.Engine {
	return retrieval.NewEngine(a.embedder, a.dense, a.lexical, retrieval.Options{
		MixWeight:         a.cfg.HybridMixWeight,
		MinRelevanceScore: a.cfg.MinRelevanceScore,
		Timeout:           a.cfg.RetrievalTimeout(),
	}, a.logger.Named("retrieval"))
}

// openLLM creates the generation client; it fails when the provider key is missing
func (a *app) openLLM(ctx context.Context) (llm.Client, error) {
	key := a.cfg.APIKeyFor(a.cfg.LLMProvider)
	if key == "" {
		return nil, fmt.Errorf("no API key for llm provider %q (set GEMINI_API_KEY or OPENAI_API_KEY)", a.cfg.LLMProvider)
	}
	lc := llm.ConfigFor(a.cfg.LLMProvider)
	lc.BaseURL = a.cfg.LLMBaseURL
	client, err := llm.NewClient(ctx, lc, key)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return client, nil
}

// rerankClient opens a generation client only when the llm reranker needs one
func (a *app) rerankClient(ctx context.Context) (llm.Client, error) {
	if a.cfg.RerankProvider != "llm" {
		return nil, nil
	}
	return a.openLLM(ctx)
}

// reranker picks the configured reranker; client may be nil unless the llm reranker is chosen
func (a *app) reranker(client llm.Client) (ranking.Reranker, error) {
	switch a.cfg.RerankProvider {
	case "cohere":
		return ranking.NewCohereReranker(a.cfg.CohereAPIKey, "")
	case "llm":
		if client == nil {
			return nil, errors.New("the llm reranker needs a generation backend")
		}
		return ranking.NewLLMReranker(client), nil
	case "overlap":
		return ranking.NewOverlapReranker(), nil
	default:
		return nil, nil
	}
}

// openCache returns Redis when redis_addr is set, the in-process TTL cache otherwise, or nil when disabled
func (a *app) openCache(ctx context.Context) (cache.Cache, error) {
	if !a.cfg.CacheEnabled {
		return nil, nil
	}
	if a.cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, a.cfg.RedisAddr, a.cfg.CacheTTL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		return rc, nil
	}
	tc := cache.NewTTLCache(a.cfg.CacheCapacity, a.cfg.CacheTTL())
	a.closers = append(a.closers, func() { _ = tc.Close() })
	return tc, nil
}

// newPipeline wires a pipeline over the opened stores. A nil client limits it to planning.
func (a *app) newPipeline(ctx context.Context, client llm.Client, onProgress pipeline.ProgressCallback) (*pipeline.Pipeline, error) {
	rr, err := a.reranker(client)
	if err != nil {
		return nil, err
	}
	c, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Dependencies{
		Retriever:  a.engine(),
		Reranker:   rr,
		Compressor: compression.NewCompressor(a.estimator),
		Expander:   retrieval.NewQueryExpander(0),
		Estimator:  a.estimator,
		Cache:      c,
		Sink:       a.sink,
		Logger:     a.logger.Named("pipeline"),
		Printer:    a.printer,
		OnProgress: onProgress,
	}
	if client != nil {
		deps.Generator = assembly.NewAssembler(client, assembly.Options{
			MaxCompletionTokens: a.cfg.MaxCompletionTokens,
			Temperature:         float32(a.cfg.Temperature),
			RequireAllMustHaves: a.cfg.RequireAllMustHaves,
		}, a.logger.Named("assembly"))
		deps.Extractor = pipeline.LLMExtractor{Client: client}
	}
	return pipeline.New(deps, pipeline.OptionsFromConfig(a.cfg))
}

// writeMetrics dumps the registry in the Prometheus text format when path is set
func (a *app) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
