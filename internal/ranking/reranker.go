// Package ranking re-scores a retrieval shortlist and maps evidence to requirements.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jonathan/resume-evidence/internal/types"
)

// ErrRerankUnavailable marks a reranker failure. Apply logs it and keeps the hybrid order.
var ErrRerankUnavailable = errors.New("reranker unavailable")

// RerankResult is one re-scored candidate. Index points into the texts passed to Rerank.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker scores candidate texts against a query and returns the best topK, best first
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string, topK int) ([]RerankResult, error)
}

// Apply reranks the first candidates items and keeps the best keep of them with RerankScore set.
// A nil reranker, a backend error or a malformed answer leaves the hybrid order untouched;
// failures are logged, never returned.
func Apply(ctx context.Context, r Reranker, query string, items []types.RetrievedItem, candidates, keep int, logger *zap.Logger) []types.RetrievedItem {
	if logger == nil {
		logger = zap.NewNop()
	}
	if candidates <= 0 || candidates > len(items) {
		candidates = len(items)
	}
	if keep <= 0 || keep > candidates {
		keep = candidates
	}
	shortlist := items[:candidates]

	fallback := func() []types.RetrievedItem {
		out := make([]types.RetrievedItem, keep)
		copy(out, shortlist[:keep])
		return out
	}

	if r == nil || len(shortlist) == 0 {
		return fallback()
	}

	texts := make([]string, len(shortlist))
	for i, it := range shortlist {
		texts[i] = it.Chunk.Text
	}

	results, err := r.Rerank(ctx, query, texts, keep)
	if err == nil {
		err = checkResults(results, len(texts))
	}
	if err != nil {
		logger.Warn("rerank failed, keeping hybrid order",
			zap.Error(fmt.Errorf("%w: %w", ErrRerankUnavailable, err)),
			zap.Int("candidates", len(texts)))
		return fallback()
	}

	results = sortResults(results, keep)

	out := make([]types.RetrievedItem, 0, len(results))
	for _, res := range results {
		it := shortlist[res.Index]
		score := res.Score
		it.RerankScore = &score
		out = append(out, it)
	}

	logger.Debug("reranked evidence",
		zap.Int("candidates", len(texts)),
		zap.Int("kept", len(out)))
	return out
}

func checkResults(results []RerankResult, n int) error {
	if len(results) == 0 && n > 0 {
		return errors.New("empty rerank result")
	}
	seen := make(map[int]bool, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= n {
			return fmt.Errorf("rerank index %d out of range [0,%d)", r.Index, n)
		}
		if seen[r.Index] {
			return fmt.Errorf("rerank index %d returned twice", r.Index)
		}
		seen[r.Index] = true
	}
	return nil
}

// sortResults orders results best first with ties by index and cuts them to topK
func sortResults(results []RerankResult, topK int) []RerankResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
