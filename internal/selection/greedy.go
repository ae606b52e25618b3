package selection

import (
	"sort"

	"github.com/jonathan/resume-evidence/internal/types"
)

// OptimizeForCoverage fits evidence into maxTokens while guaranteeing, budget permitting,
// at least one retained item per must-have requirement.
//
// Pass one walks the must-haves in order. For each one not yet covered it takes the most
// relevant unused item mapped to it, as long as enough budget stays reserved for the
// smallest candidate of every later uncovered must-have. Pass two fills what is left with
// the most relevant remaining items, exactly like TrimEvidence.
//
// Retained items are returned in descending relevance.
func OptimizeForCoverage(evidence []types.CompressedEvidence, reqs *types.RequirementSet, maxTokens, minViable int) TrimResult {
	if maxTokens < 0 {
		maxTokens = 0
	}
	pool := byRelevance(evidence)
	if reqs == nil || len(reqs.MustHaves) == 0 {
		return TrimEvidence(pool, maxTokens, minViable)
	}

	used := make([]bool, len(pool))
	covered := make(map[string]bool)
	remaining := maxTokens
	var retained []types.CompressedEvidence

	mustHaves := uniqueStrings(reqs.MustHaves)

	// Pass one: coverage
	for i, mh := range mustHaves {
		if covered[mh] {
			continue
		}

		reserve := 0
		for _, later := range mustHaves[i+1:] {
			if !covered[later] {
				reserve += smallestCandidate(pool, used, later)
			}
		}

		pick := -1
		for j, ev := range pool {
			if used[j] || !ev.Maps(mh) {
				continue
			}
			if ev.Tokens <= remaining-reserve {
				pick = j
				break
			}
		}
		if pick < 0 {
			// Reservations cannot all be honored; still cover this one if anything fits
			pick = smallestFitting(pool, used, mh, remaining)
		}
		if pick < 0 {
			continue
		}

		used[pick] = true
		remaining -= pool[pick].Tokens
		retained = append(retained, pool[pick])
		for _, r := range pool[pick].MappedRequirements {
			covered[r] = true
		}
	}

	// Pass two: relevance fill
	leftover := make([]types.CompressedEvidence, 0, len(pool))
	for j, ev := range pool {
		if !used[j] {
			leftover = append(leftover, ev)
		}
	}
	admitted, _, dropped := fill(leftover, remaining, minViable)
	retained = append(retained, admitted...)

	sort.SliceStable(retained, func(a, b int) bool {
		return retained[a].RelevanceScore > retained[b].RelevanceScore
	})

	total := 0
	for _, ev := range retained {
		total += ev.Tokens
	}
	return TrimResult{Retained: retained, DroppedIDs: nonNil(dropped), UsedTokens: total}
}

// CoveredMustHaves returns the must-haves mapped by at least one retained item, in requirement order
func CoveredMustHaves(retained []types.CompressedEvidence, reqs *types.RequirementSet) []string {
	var out []string
	for _, mh := range uniqueStrings(reqs.MustHaves) {
		for _, ev := range retained {
			if ev.Maps(mh) {
				out = append(out, mh)
				break
			}
		}
	}
	return out
}

// smallestCandidate returns the token size of the smallest unused item mapped to req, or 0 if none
func smallestCandidate(pool []types.CompressedEvidence, used []bool, req string) int {
	best := 0
	for j, ev := range pool {
		if used[j] || !ev.Maps(req) {
			continue
		}
		if best == 0 || ev.Tokens < best {
			best = ev.Tokens
		}
	}
	return best
}

// smallestFitting returns the index of the smallest unused item mapped to req that fits, or -1
func smallestFitting(pool []types.CompressedEvidence, used []bool, req string, budget int) int {
	pick := -1
	for j, ev := range pool {
		if used[j] || !ev.Maps(req) || ev.Tokens > budget {
			continue
		}
		if pick < 0 || ev.Tokens < pool[pick].Tokens {
			pick = j
		}
	}
	return pick
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
