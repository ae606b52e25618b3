package llm

import (
	"context"
	"fmt"

	"github.com/jonathan/resume-evidence/internal/types"
)

// CompletionRequest is one call to the generation backend
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	Tier        ModelTier
	JSON        bool // ask the provider for a JSON response body
}

// Completion is the backend's answer plus its reported token usage
type Completion struct {
	Text  string
	Usage types.TokenUsage
	Model string
}

// Client is an abstraction over LLM providers
type Client interface {
	// Complete runs a single system+user completion. Implementations do not retry.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	// GenerateJSON runs a single-prompt completion that must return JSON
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GetModel returns the provider model name for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates an LLM client for the configured provider
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, config, apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", config.Provider)
	}
}
