package selection

import "github.com/jonathan/resume-evidence/internal/types"

// TrimEvidence fits evidence into maxTokens by relevance alone: items are admitted whole in
// descending relevance, the first one that does not fit is truncated to a prefix of its lines
// when more than minViable tokens remain, and everything after it is dropped.
func TrimEvidence(evidence []types.CompressedEvidence, maxTokens, minViable int) TrimResult {
	if maxTokens < 0 {
		maxTokens = 0
	}
	admitted, used, dropped := fill(byRelevance(evidence), maxTokens, minViable)
	return TrimResult{Retained: admitted, DroppedIDs: nonNil(dropped), UsedTokens: used}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
