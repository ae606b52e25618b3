package assembly

import "github.com/jonathan/resume-evidence/internal/types"

// BuildCoverageReport returns one entry per distinct must-have, in requirement order.
// An entry is present only when a retained item maps to it; its evidence IDs are those items.
func BuildCoverageReport(reqs *types.RequirementSet, retained []types.CompressedEvidence) []types.CoverageEntry {
	if reqs == nil {
		return []types.CoverageEntry{}
	}

	seen := make(map[string]bool, len(reqs.MustHaves))
	report := make([]types.CoverageEntry, 0, len(reqs.MustHaves))
	for _, mh := range reqs.MustHaves {
		if seen[mh] {
			continue
		}
		seen[mh] = true

		entry := types.CoverageEntry{Requirement: mh, EvidenceIDs: []string{}}
		for _, ev := range retained {
			if ev.Maps(mh) {
				entry.EvidenceIDs = append(entry.EvidenceIDs, ev.ID)
			}
		}
		entry.Present = len(entry.EvidenceIDs) > 0
		report = append(report, entry)
	}
	return report
}
