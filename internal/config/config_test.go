package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, Default().TopKDense, cfg.TopKDense)
	assert.Equal(t, 0.7, cfg.HybridMixWeight)
	assert.Equal(t, 15, cfg.KeepAfterRerank)
	assert.Equal(t, 0.10, cfg.ContextSafetyHeadroom)
	assert.True(t, cfg.CacheEnabled)
	assert.False(t, cfg.RequireAllMustHaves)
	assert.Equal(t, "memory", cfg.VectorStore)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "evidence.yaml", `
top_k_dense: 20
hybrid_mix_weight: 0.5
require_all_must_haves: true
vector_store: qdrant
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.TopKDense)
	assert.Equal(t, 0.5, cfg.HybridMixWeight)
	assert.True(t, cfg.RequireAllMustHaves)
	assert.Equal(t, "qdrant", cfg.VectorStore)
	assert.Equal(t, 50, cfg.TopKLexical)
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "evidence.json", `{"evidence_token_budget": 1200, "dedupe_threshold": 0.8}`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 1200, cfg.EvidenceTokenBudget)
	assert.Equal(t, 0.8, cfg.DedupeThreshold)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "evidence.yaml", "top_k_lexical: 10\n")
	t.Setenv("EVIDENCE_TOP_K_LEXICAL", "30")
	t.Setenv("COHERE_API_KEY", "co-key")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.TopKLexical)
	assert.Equal(t, "co-key", cfg.CohereAPIKey)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("EVIDENCE_KEEP_AFTER_RERANK", "12")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("keep-after-rerank", 15, "")
	fs.Int("top-k-dense", 99, "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--keep-after-rerank=8"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.KeepAfterRerank)
	// unchanged flag defaults do not beat the config defaults
	assert.Equal(t, 50, cfg.TopKDense)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		file    string
		errMsg  string
	}{
		{"missing file", "", "/nonexistent/evidence.yaml", "failed to read config file"},
		{"invalid weight", "hybrid_mix_weight: 1.5\n", "", "config error"},
		{"unknown store", "vector_store: sqlite\n", "", "config error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.file
			if path == "" {
				path = writeFile(t, "evidence.yaml", tt.content)
			}
			cfg, err := Load(path, nil)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"negative top k", func(c *Config) { c.TopKDense = -1 }, "TopKDense"},
		{"headroom of one", func(c *Config) { c.ContextSafetyHeadroom = 1 }, "ContextSafetyHeadroom"},
		{"keep exceeds candidates", func(c *Config) { c.KeepAfterRerank = 200 }, "'keep_after_rerank' (200) exceeds"},
		{"postgres without url", func(c *Config) { c.VectorStore = "postgres" }, "'database_url' is required"},
		{"cohere without key", func(c *Config) { c.RerankProvider = "cohere" }, "COHERE_API_KEY"},
		{"bad estimator", func(c *Config) { c.TokenEstimator = "words" }, "TokenEstimator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ExplicitZerosAreKept(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "evidence.yaml", content: "hybrid_mix_weight: 0\ncontext_safety_headroom: 0\nretrieval_cache_ttl_seconds: 0\n"},
		{name: "json", file: "evidence.json", content: `{"hybrid_mix_weight": 0, "context_safety_headroom": 0, "retrieval_cache_ttl_seconds": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.content), nil)
			require.NoError(t, err)
			assert.Equal(t, 0.0, cfg.HybridMixWeight)
			assert.Equal(t, 0.0, cfg.ContextSafetyHeadroom)
			assert.Equal(t, time.Duration(0), cfg.RetrievalCacheTTL())
			assert.Equal(t, Default().DedupeThreshold, cfg.DedupeThreshold)
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5*time.Second, cfg.RetrievalTimeout())
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout())
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, 10*time.Minute, cfg.RetrievalCacheTTL())
}

func TestAPIKeyFor(t *testing.T) {
	cfg := Config{GeminiAPIKey: "g", OpenAIAPIKey: "o"}
	assert.Equal(t, "o", cfg.APIKeyFor("openai"))
	assert.Equal(t, "g", cfg.APIKeyFor("gemini"))
	assert.Equal(t, "g", cfg.APIKeyFor(""))
}
