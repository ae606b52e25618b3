package retrieval

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/resume-evidence/internal/parsing"
	"github.com/jonathan/resume-evidence/internal/types"
)

const scoreEpsilon = 1e-12

// Fuse merges dense and lexical hits into one ranked list.
// Each path is min-max normalized, then finalScore = w*dense + (1-w)*lexical.
// When one path returned nothing the other path carries the full weight.
// Chunks found by both paths appear once, tagged hybrid, with both component scores.
// Ties are broken by the number of exact skill-tag matches, then by recency, then by ID.
func Fuse(dense, lexical []types.SearchHit, weight float64, querySkills []string) []types.RetrievedItem {
	switch {
	case len(dense) == 0:
		weight = 0
	case len(lexical) == 0:
		weight = 1
	}

	denseNorm := normalize(dense)
	lexicalNorm := normalize(lexical)

	byID := make(map[string]*types.RetrievedItem, len(dense)+len(lexical))
	var order []string

	for _, h := range dense {
		s := denseNorm[h.Chunk.ID]
		if it, ok := byID[h.Chunk.ID]; ok {
			it.DenseScore = math.Max(it.DenseScore, s)
			continue
		}
		byID[h.Chunk.ID] = &types.RetrievedItem{Chunk: h.Chunk, DenseScore: s, Method: types.MethodDense}
		order = append(order, h.Chunk.ID)
	}
	for _, h := range lexical {
		s := lexicalNorm[h.Chunk.ID]
		if it, ok := byID[h.Chunk.ID]; ok {
			if it.Method == types.MethodDense {
				it.Method = types.MethodHybrid
			}
			it.LexicalScore = math.Max(it.LexicalScore, s)
			continue
		}
		byID[h.Chunk.ID] = &types.RetrievedItem{Chunk: h.Chunk, LexicalScore: s, Method: types.MethodLexical}
		order = append(order, h.Chunk.ID)
	}

	items := make([]types.RetrievedItem, 0, len(order))
	for _, id := range order {
		it := byID[id]
		it.Score = weight*it.DenseScore + (1-weight)*it.LexicalScore
		items = append(items, *it)
	}

	SortItems(items, querySkills)
	return items
}

// SortItems orders items by score, then skill-tag specificity, then recency, then ID
func SortItems(items []types.RetrievedItem, querySkills []string) {
	matches := make(map[string]int, len(items))
	rec := make(map[string]time.Time, len(items))
	for _, it := range items {
		matches[it.Chunk.ID] = TagMatches(it.Chunk.Meta, querySkills)
		rec[it.Chunk.ID] = Recency(it.Chunk.Meta)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if math.Abs(a.Score-b.Score) > scoreEpsilon {
			return a.Score > b.Score
		}
		if sa, sb := matches[a.Chunk.ID], matches[b.Chunk.ID]; sa != sb {
			return sa > sb
		}
		if ra, rb := rec[a.Chunk.ID], rec[b.Chunk.ID]; !ra.Equal(rb) {
			return ra.After(rb)
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}

// normalize min-max scales the scores of one path to [0,1], keyed by chunk ID.
// A path whose scores are all equal maps every hit to 1.
func normalize(hits []types.SearchHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		lo = math.Min(lo, h.Score)
		hi = math.Max(hi, h.Score)
	}
	span := hi - lo
	for _, h := range hits {
		s := 1.0
		if span > scoreEpsilon {
			s = (h.Score - lo) / span
		}
		if prev, ok := out[h.Chunk.ID]; ok {
			s = math.Max(prev, s)
		}
		out[h.Chunk.ID] = s
	}
	return out
}

// TagMatches counts query skills that exactly match one of the chunk's skill tags
func TagMatches(meta types.ChunkMeta, querySkills []string) int {
	n := 0
	for _, q := range querySkills {
		for _, s := range meta.Skills {
			if parsing.SameSkill(q, s) {
				n++
				break
			}
		}
	}
	return n
}

// Recency returns the point in time a chunk's evidence was last current.
// Open-ended or "present" end dates count as now; unparseable dates fall back to the start date.
func Recency(meta types.ChunkMeta) time.Time {
	end := strings.ToLower(strings.TrimSpace(meta.EndDate))
	switch end {
	case "", "present", "current", "now":
		if meta.StartDate != "" || end != "" {
			return time.Now().UTC().Truncate(24 * time.Hour)
		}
		return time.Time{}
	}
	if t, ok := parseDate(end); ok {
		return t
	}
	if t, ok := parseDate(meta.StartDate); ok {
		return t
	}
	return time.Time{}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
