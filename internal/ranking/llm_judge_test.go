package ranking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-evidence/internal/llm"
)

// MockLLMClient implements llm.Client for testing
type MockLLMClient struct {
	GenerateJSONFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	lastPrompt       string
}

func (m *MockLLMClient) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.Completion, error) {
	return nil, errors.New("not used")
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	m.lastPrompt = prompt
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return `[]`, nil
}

func (m *MockLLMClient) GetModel(_ llm.ModelTier) string { return "mock-model" }

func (m *MockLLMClient) Close() error { return nil }

func TestLLMReranker_Success(t *testing.T) {
	mock := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, _ string, tier llm.ModelTier) (string, error) {
			assert.Equal(t, llm.TierLite, tier)
			return "```json\n[{\"index\": 0, \"score\": 0.2}, {\"index\": 1, \"score\": 1.7}, {\"index\": 7, \"score\": 0.9}]\n```", nil
		},
	}

	results, err := NewLLMReranker(mock).Rerank(context.Background(), "Go, Kubernetes", []string{"first\n passage", "second", "third"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, RerankResult{Index: 1, Score: 1.0}, results[0], "scores clamped")
	assert.Equal(t, RerankResult{Index: 0, Score: 0.2}, results[1])

	assert.Contains(t, mock.lastPrompt, "Go, Kubernetes")
	assert.Contains(t, mock.lastPrompt, "[0] first passage")
	assert.Contains(t, mock.lastPrompt, "[2] third")
	assert.NotContains(t, mock.lastPrompt, "{{.")
}

func TestLLMReranker_Errors(t *testing.T) {
	tests := []struct {
		name string
		resp string
		err  error
	}{
		{name: "backend error", err: errors.New("quota")},
		{name: "not json", resp: "I think the first one"},
		{name: "no valid index", resp: `[{"index": 5, "score": 1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockLLMClient{
				GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
					return tt.resp, tt.err
				},
			}
			_, err := NewLLMReranker(mock).Rerank(context.Background(), "q", []string{"a", "b"}, 2)
			assert.Error(t, err)
		})
	}
}

func TestLLMReranker_EmptyInputSkipsCall(t *testing.T) {
	mock := &MockLLMClient{}
	results, err := NewLLMReranker(mock).Rerank(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, mock.lastPrompt)
}
