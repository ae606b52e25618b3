package ranking

import (
	"context"
	"strings"

	"github.com/jonathan/resume-evidence/internal/parsing"
)

// Default weights for overlap scoring components
const (
	queryCoverageWeight    = 0.5
	termDensityWeight      = 0.3
	evidenceStrengthWeight = 0.2
)

// OverlapReranker is the offline reranker: it scores each text by canonical term overlap with
// the query, plus a bonus for quantified claims. Texts sharing no term with the query score 0.
type OverlapReranker struct{}

// NewOverlapReranker creates an overlap reranker
func NewOverlapReranker() *OverlapReranker {
	return &OverlapReranker{}
}

// Rerank implements Reranker
func (o *OverlapReranker) Rerank(ctx context.Context, query string, texts []string, topK int) ([]RerankResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := canonicalTerms(query)
	results := make([]RerankResult, 0, len(texts))
	for i, text := range texts {
		results = append(results, RerankResult{Index: i, Score: overlapScore(queryTerms, text)})
	}
	return sortResults(results, topK), nil
}

// overlapScore combines how much of the query a text covers, how focused the text is on
// the query, and whether it carries a metric.
func overlapScore(queryTerms map[string]bool, text string) float64 {
	textTerms := canonicalTerms(text)
	if len(queryTerms) == 0 || len(textTerms) == 0 {
		return 0
	}

	matched := 0
	for t := range textTerms {
		if queryTerms[t] {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	coverage := float64(matched) / float64(len(queryTerms))
	density := float64(matched) / float64(len(textTerms))

	// Quantified claims are strong evidence; everything else counts as medium
	strength := 0.6
	if parsing.HasMetric(text) {
		strength = 1.0
	}

	score := queryCoverageWeight*coverage + termDensityWeight*density + evidenceStrengthWeight*strength
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// canonicalTerms returns the distinct terms of text with skill aliases folded to one spelling
func canonicalTerms(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range parsing.Terms(text) {
		set[strings.ToLower(parsing.NormalizeSkillName(t))] = true
	}
	return set
}
