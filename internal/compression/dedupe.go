package compression

import (
	"github.com/jonathan/resume-evidence/internal/parsing"
	"github.com/jonathan/resume-evidence/internal/types"
)

// SuppressNearDuplicates drops items whose term-set Jaccard similarity to an earlier kept
// item is at least threshold. Order is preserved; the earlier (better ranked) item wins.
// A threshold outside (0,1] disables suppression.
func SuppressNearDuplicates(items []types.RetrievedItem, threshold float64) (kept []types.RetrievedItem, dropped []string) {
	if threshold <= 0 || threshold > 1 {
		return items, nil
	}

	kept = make([]types.RetrievedItem, 0, len(items))
	for _, it := range items {
		dup := false
		for _, k := range kept {
			if parsing.Jaccard(it.Chunk.Text, k.Chunk.Text) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			dropped = append(dropped, it.Chunk.ID)
			continue
		}
		kept = append(kept, it)
	}
	return kept, dropped
}
