package selection

import (
	"sort"
	"strings"

	"github.com/jonathan/resume-evidence/internal/ranking"
	"github.com/jonathan/resume-evidence/internal/types"
)

// DefaultMinViableTokens is the smallest remaining budget worth filling with a truncated item
const DefaultMinViableTokens = 50

// TrimResult is the outcome of fitting evidence into a token budget
type TrimResult struct {
	Retained   []types.CompressedEvidence
	DroppedIDs []string
	UsedTokens int
}

// byRelevance returns a copy sorted by relevance descending; ties keep input order
func byRelevance(evidence []types.CompressedEvidence) []types.CompressedEvidence {
	sorted := make([]types.CompressedEvidence, len(evidence))
	copy(sorted, evidence)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RelevanceScore > sorted[j].RelevanceScore
	})
	return sorted
}

// truncate keeps the header and the longest prefix of lines that fits in budget.
// It reports false when not even one line fits.
func truncate(ev types.CompressedEvidence, budget int) (types.CompressedEvidence, bool) {
	used := ev.HeaderTokens
	n := 0
	for n < len(ev.Lines) && used+ev.LineTokens[n] <= budget {
		used += ev.LineTokens[n]
		n++
	}
	if n == 0 {
		return ev, false
	}

	out := ev
	out.Lines = append([]string(nil), ev.Lines[:n]...)
	out.LineTokens = append([]int(nil), ev.LineTokens[:n]...)
	out.Tokens = used
	out.Truncated = n < len(ev.Lines)
	if out.Truncated {
		out.MappedRequirements = remap(out)
	}
	return out, true
}

// remap keeps only the requirements the remaining lines still support on their own,
// so a truncated item never claims coverage its text no longer shows.
func remap(ev types.CompressedEvidence) []string {
	chunk := types.EvidenceChunk{Text: strings.Join(ev.Lines, " ")}
	var kept []string
	for _, req := range ev.MappedRequirements {
		if ranking.ScoreChunkAgainstRequirement(&chunk, req) >= ranking.MappingThreshold {
			kept = append(kept, req)
		}
	}
	return kept
}

// fill admits items in order while they fit. The first item that does not fit is truncated
// when more than minViable tokens remain, and filling stops there.
func fill(items []types.CompressedEvidence, remaining, minViable int) (admitted []types.CompressedEvidence, used int, dropped []string) {
	for i, ev := range items {
		if ev.Tokens <= remaining {
			admitted = append(admitted, ev)
			used += ev.Tokens
			remaining -= ev.Tokens
			continue
		}

		if remaining > minViable {
			if cut, ok := truncate(ev, remaining); ok {
				admitted = append(admitted, cut)
				used += cut.Tokens
				i++
			}
		}
		for _, rest := range items[i:] {
			dropped = append(dropped, rest.ID)
		}
		return admitted, used, dropped
	}
	return admitted, used, nil
}
