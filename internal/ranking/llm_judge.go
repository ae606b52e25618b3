package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/resume-evidence/internal/llm"
	"github.com/jonathan/resume-evidence/internal/prompts"
)

// llmJudgeScore is one entry of the JSON array the model returns
type llmJudgeScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// LLMReranker asks a language model to score all candidates in one JSON call
type LLMReranker struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMReranker creates a reranker that uses the lite tier of client
func NewLLMReranker(client llm.Client) *LLMReranker {
	return &LLMReranker{client: client, tier: llm.TierLite}
}

// Rerank implements Reranker. Candidates the model skips score 0; scores are clamped to [0,1].
func (l *LLMReranker) Rerank(ctx context.Context, query string, texts []string, topK int) ([]RerankResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	raw, err := l.client.GenerateJSON(ctx, buildJudgePrompt(query, texts), l.tier)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	raw = llm.CleanJSONBlock(raw)

	var scores []llmJudgeScore
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w (content: %s)", err, raw)
	}

	byIndex := make(map[int]float64, len(texts))
	for _, s := range scores {
		if s.Index < 0 || s.Index >= len(texts) {
			continue
		}
		// Validate score is in valid range
		if s.Score < 0.0 {
			s.Score = 0.0
		}
		if s.Score > 1.0 {
			s.Score = 1.0
		}
		byIndex[s.Index] = s.Score
	}
	if len(byIndex) == 0 {
		return nil, fmt.Errorf("LLM response scored no candidates")
	}

	results := make([]RerankResult, len(texts))
	for i := range texts {
		results[i] = RerankResult{Index: i, Score: byIndex[i]}
	}
	return sortResults(results, topK), nil
}

// buildJudgePrompt constructs the batch scoring prompt
func buildJudgePrompt(query string, texts []string) string {
	lines := make([]string, len(texts))
	for i, t := range texts {
		lines[i] = fmt.Sprintf("[%d] %s", i, strings.Join(strings.Fields(t), " "))
	}

	if strings.TrimSpace(query) == "" {
		query = "Not specified"
	}

	template := prompts.MustGet("ranking.json", "rerank-evidence")
	return prompts.Format(template, map[string]string{
		"Query":    query,
		"Passages": strings.Join(lines, "\n"),
	})
}
