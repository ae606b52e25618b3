package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns canned responses and records prompts
type fakeClient struct {
	jsonResponse string
	err          error
	prompts      []string
}

func (f *fakeClient) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	f.prompts = append(f.prompts, req.User)
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Text: f.jsonResponse}, nil
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, _ ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.jsonResponse, f.err
}

func (f *fakeClient) GetModel(ModelTier) string { return "fake" }
func (f *fakeClient) Close() error             { return nil }

func TestBuildExtractionPrompt(t *testing.T) {
	prompt := BuildExtractionPrompt(RequirementSetSchema(), "We need a Go engineer.")

	assert.Contains(t, prompt, `"role_title": "string" (required)`)
	assert.Contains(t, prompt, `"must_haves": ["string"] (required)`)
	assert.Contains(t, prompt, "We need a Go engineer.")
	assert.Contains(t, prompt, "Return ONLY valid JSON")
}

func TestExtractRequirements(t *testing.T) {
	t.Run("valid response in code fence", func(t *testing.T) {
		client := &fakeClient{jsonResponse: "```json\n{\"role_title\":\"Backend Engineer\",\"must_haves\":[\"Go\",\"PostgreSQL\"]}\n```"}

		reqs, err := ExtractRequirements(context.Background(), client, "Backend Engineer posting")
		require.NoError(t, err)
		assert.Equal(t, "Backend Engineer", reqs.RoleTitle)
		assert.Equal(t, []string{"Go", "PostgreSQL"}, reqs.MustHaves)
		require.Len(t, client.prompts, 1)
	})

	t.Run("empty input", func(t *testing.T) {
		client := &fakeClient{}
		_, err := ExtractRequirements(context.Background(), client, "  ")
		require.Error(t, err)
		assert.Empty(t, client.prompts)
	})

	t.Run("backend error", func(t *testing.T) {
		boom := errors.New("quota exceeded")
		_, err := ExtractRequirements(context.Background(), &fakeClient{err: boom}, "posting")
		require.ErrorIs(t, err, boom)
	})

	t.Run("missing role title", func(t *testing.T) {
		client := &fakeClient{jsonResponse: `{"must_haves":["Go"]}`}
		_, err := ExtractRequirements(context.Background(), client, "posting")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid requirement set")
	})

	t.Run("not json", func(t *testing.T) {
		client := &fakeClient{jsonResponse: "I cannot do that"}
		_, err := ExtractRequirements(context.Background(), client, "posting")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})
}
