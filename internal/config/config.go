// Package config provides configuration loading and validation for the CLI.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every option when read from the environment,
// e.g. EVIDENCE_TOP_K_DENSE.
const EnvPrefix = "EVIDENCE"

// Config carries every pipeline option. Load seeds every key from Default, so an explicit zero
// in a file, the environment or a flag is kept as written.
type Config struct {
	// Retrieval
	TopKDense          int     `mapstructure:"top_k_dense" json:"top_k_dense" validate:"gte=0"`
	TopKLexical        int     `mapstructure:"top_k_lexical" json:"top_k_lexical" validate:"gte=0"`
	HybridMixWeight    float64 `mapstructure:"hybrid_mix_weight" json:"hybrid_mix_weight" validate:"gte=0,lte=1"`
	MinRelevanceScore  float64 `mapstructure:"min_relevance_score" json:"min_relevance_score" validate:"gte=0,lte=1"`
	RetrievalTimeoutMs int     `mapstructure:"retrieval_timeout_ms" json:"retrieval_timeout_ms" validate:"gte=0"`

	// Rerank and compression
	RerankCandidates int     `mapstructure:"rerank_candidates" json:"rerank_candidates" validate:"gte=0"`
	KeepAfterRerank  int     `mapstructure:"keep_after_rerank" json:"keep_after_rerank" validate:"gte=0"`
	DedupeThreshold  float64 `mapstructure:"dedupe_threshold" json:"dedupe_threshold" validate:"gte=0,lte=1"`

	// Budget
	EvidenceTokenBudget        int     `mapstructure:"evidence_token_budget" json:"evidence_token_budget" validate:"gte=0"`
	RequirementSummaryMaxWords int     `mapstructure:"requirement_summary_max_words" json:"requirement_summary_max_words" validate:"gte=0"`
	ContextSafetyHeadroom      float64 `mapstructure:"context_safety_headroom" json:"context_safety_headroom" validate:"gte=0,lt=1"`
	ModelContextTokens         int     `mapstructure:"model_context_tokens" json:"model_context_tokens" validate:"gte=0"`
	SystemPromptTokens         int     `mapstructure:"system_prompt_tokens" json:"system_prompt_tokens" validate:"gte=0"`
	LayoutTokens               int     `mapstructure:"layout_tokens" json:"layout_tokens" validate:"gte=0"`
	MinViableTokens            int     `mapstructure:"min_viable_tokens" json:"min_viable_tokens" validate:"gte=0"`
	TokenEstimator             string  `mapstructure:"token_estimator" json:"token_estimator" validate:"omitempty,oneof=heuristic tiktoken"`

	// Generation
	MaxCompletionTokens int     `mapstructure:"max_completion_tokens" json:"max_completion_tokens" validate:"gte=0"`
	Temperature         float64 `mapstructure:"temperature" json:"temperature" validate:"gte=0,lte=2"`
	RequireAllMustHaves bool    `mapstructure:"require_all_must_haves" json:"require_all_must_haves"`
	RequestTimeoutMs    int     `mapstructure:"request_timeout_ms" json:"request_timeout_ms" validate:"gte=0"`

	// Caching
	CacheEnabled             bool `mapstructure:"cache_enabled" json:"cache_enabled"`
	CacheTTLSeconds          int  `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds" validate:"gte=0"`
	RetrievalCacheTTLSeconds int  `mapstructure:"retrieval_cache_ttl_seconds" json:"retrieval_cache_ttl_seconds" validate:"gte=0"`
	CacheCapacity            int  `mapstructure:"cache_capacity" json:"cache_capacity" validate:"gte=0"`

	// Backends
	LLMProvider       string `mapstructure:"llm_provider" json:"llm_provider" validate:"omitempty,oneof=gemini openai"`
	LLMBaseURL        string `mapstructure:"llm_base_url" json:"llm_base_url,omitempty"`
	EmbeddingProvider string `mapstructure:"embedding_provider" json:"embedding_provider" validate:"omitempty,oneof=gemini openai hash"`
	EmbeddingModel    string `mapstructure:"embedding_model" json:"embedding_model,omitempty"`
	EmbeddingDims     int    `mapstructure:"embedding_dims" json:"embedding_dims" validate:"gte=0"`
	RerankProvider    string `mapstructure:"rerank_provider" json:"rerank_provider" validate:"omitempty,oneof=none overlap cohere llm"`
	VectorStore       string `mapstructure:"vector_store" json:"vector_store" validate:"omitempty,oneof=postgres qdrant memory"`

	// Connections
	DatabaseURL      string `mapstructure:"database_url" json:"database_url,omitempty"`
	QdrantHost       string `mapstructure:"qdrant_host" json:"qdrant_host,omitempty"`
	QdrantPort       int    `mapstructure:"qdrant_port" json:"qdrant_port" validate:"gte=0,lte=65535"`
	QdrantCollection string `mapstructure:"qdrant_collection" json:"qdrant_collection,omitempty"`
	RedisAddr        string `mapstructure:"redis_addr" json:"redis_addr,omitempty"`

	// Secrets are read from the environment only and never serialized
	GeminiAPIKey string `mapstructure:"gemini_api_key" json:"-"`
	OpenAIAPIKey string `mapstructure:"openai_api_key" json:"-"`
	CohereAPIKey string `mapstructure:"cohere_api_key" json:"-"`

	// Output
	Verbose bool `mapstructure:"verbose" json:"verbose,omitempty"`
	JSONLog bool `mapstructure:"json_log" json:"json_log,omitempty"`
	Debug   bool `mapstructure:"debug" json:"debug,omitempty"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		TopKDense:                  50,
		TopKLexical:                50,
		HybridMixWeight:            0.7,
		RetrievalTimeoutMs:         5000,
		RerankCandidates:           100,
		KeepAfterRerank:            15,
		DedupeThreshold:            0.92,
		EvidenceTokenBudget:        2000,
		RequirementSummaryMaxWords: 350,
		ContextSafetyHeadroom:      0.10,
		ModelContextTokens:         8192,
		LayoutTokens:               200,
		MinViableTokens:            50,
		TokenEstimator:             "heuristic",
		MaxCompletionTokens:        1500,
		Temperature:                0.3,
		RequestTimeoutMs:           120000,
		CacheEnabled:               true,
		CacheTTLSeconds:            3600,
		RetrievalCacheTTLSeconds:   600,
		CacheCapacity:              100,
		LLMProvider:                "gemini",
		EmbeddingProvider:          "gemini",
		EmbeddingDims:              768,
		RerankProvider:             "overlap",
		VectorStore:                "memory",
		QdrantHost:                 "localhost",
		QdrantPort:                 6334,
		QdrantCollection:           "evidence_chunks",
		RedisAddr:                  "",
	}
}

// secretEnv maps secret options to the conventional provider variables
var secretEnv = map[string][]string{
	"gemini_api_key": {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai_api_key": {"OPENAI_API_KEY"},
	"cohere_api_key": {"COHERE_API_KEY", "CO_API_KEY"},
}

// Load reads configuration from defaults, then the optional file at path (YAML or JSON),
// then EVIDENCE_* environment variables, then any flags in fs that were set.
// The result is validated.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for key, names := range secretEnv {
		if err := v.BindEnv(append([]string{key, EnvPrefix + "_" + strings.ToUpper(key)}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if v.IsSet(key) {
				if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
					bindErr = err
				}
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.KeepAfterRerank > 0 && c.RerankCandidates > 0 && c.KeepAfterRerank > c.RerankCandidates {
		return fmt.Errorf("config error: 'keep_after_rerank' (%d) exceeds 'rerank_candidates' (%d)", c.KeepAfterRerank, c.RerankCandidates)
	}
	if c.VectorStore == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'database_url' is required for the postgres vector store")
	}
	if c.RerankProvider == "cohere" && c.CohereAPIKey == "" {
		return fmt.Errorf("config error: COHERE_API_KEY is required for the cohere reranker")
	}
	return nil
}

// RetrievalTimeout returns the retrieval deadline as a duration
func (c *Config) RetrievalTimeout() time.Duration {
	return time.Duration(c.RetrievalTimeoutMs) * time.Millisecond
}

// RequestTimeout returns the end-to-end request deadline as a duration
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// CacheTTL returns the cache entry lifetime as a duration
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RetrievalCacheTTL returns the lifetime of cached retrieval results; zero keeps CacheTTL
func (c *Config) RetrievalCacheTTL() time.Duration {
	return time.Duration(c.RetrievalCacheTTLSeconds) * time.Second
}

// APIKeyFor returns the generation key for the configured provider
func (c *Config) APIKeyFor(provider string) string {
	if provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("top_k_dense", d.TopKDense)
	v.SetDefault("top_k_lexical", d.TopKLexical)
	v.SetDefault("hybrid_mix_weight", d.HybridMixWeight)
	v.SetDefault("min_relevance_score", d.MinRelevanceScore)
	v.SetDefault("retrieval_timeout_ms", d.RetrievalTimeoutMs)
	v.SetDefault("rerank_candidates", d.RerankCandidates)
	v.SetDefault("keep_after_rerank", d.KeepAfterRerank)
	v.SetDefault("dedupe_threshold", d.DedupeThreshold)
	v.SetDefault("evidence_token_budget", d.EvidenceTokenBudget)
	v.SetDefault("requirement_summary_max_words", d.RequirementSummaryMaxWords)
	v.SetDefault("context_safety_headroom", d.ContextSafetyHeadroom)
	v.SetDefault("model_context_tokens", d.ModelContextTokens)
	v.SetDefault("system_prompt_tokens", d.SystemPromptTokens)
	v.SetDefault("layout_tokens", d.LayoutTokens)
	v.SetDefault("min_viable_tokens", d.MinViableTokens)
	v.SetDefault("token_estimator", d.TokenEstimator)
	v.SetDefault("max_completion_tokens", d.MaxCompletionTokens)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("require_all_must_haves", d.RequireAllMustHaves)
	v.SetDefault("request_timeout_ms", d.RequestTimeoutMs)
	v.SetDefault("cache_enabled", d.CacheEnabled)
	v.SetDefault("cache_ttl_seconds", d.CacheTTLSeconds)
	v.SetDefault("retrieval_cache_ttl_seconds", d.RetrievalCacheTTLSeconds)
	v.SetDefault("cache_capacity", d.CacheCapacity)
	v.SetDefault("llm_provider", d.LLMProvider)
	v.SetDefault("llm_base_url", d.LLMBaseURL)
	v.SetDefault("embedding_provider", d.EmbeddingProvider)
	v.SetDefault("embedding_model", d.EmbeddingModel)
	v.SetDefault("embedding_dims", d.EmbeddingDims)
	v.SetDefault("rerank_provider", d.RerankProvider)
	v.SetDefault("vector_store", d.VectorStore)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("qdrant_host", d.QdrantHost)
	v.SetDefault("qdrant_port", d.QdrantPort)
	v.SetDefault("qdrant_collection", d.QdrantCollection)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("json_log", d.JSONLog)
	v.SetDefault("debug", d.Debug)
}
