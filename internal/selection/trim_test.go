package selection

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-evidence/internal/types"
)

// evidence builds an item with a 4-token header and lines of the given sizes
func evidence(id string, relevance float64, lineTokens []int, mapped ...string) types.CompressedEvidence {
	ev := types.CompressedEvidence{
		ID:                 id,
		Header:             "Engineer @ Acme",
		HeaderTokens:       4,
		RelevanceScore:     relevance,
		MappedRequirements: mapped,
	}
	ev.Tokens = ev.HeaderTokens
	for i, n := range lineTokens {
		ev.Lines = append(ev.Lines, fmt.Sprintf("%s line %d", id, i))
		ev.LineTokens = append(ev.LineTokens, n)
		ev.Tokens += n
	}
	return ev
}

func retainedIDs(r TrimResult) []string {
	ids := make([]string, len(r.Retained))
	for i, ev := range r.Retained {
		ids[i] = ev.ID
	}
	return ids
}

func TestTrimEvidence_WholeItemsByRelevance(t *testing.T) {
	in := []types.CompressedEvidence{
		evidence("low", 0.1, []int{26}),
		evidence("high", 0.9, []int{46}),
		evidence("mid", 0.5, []int{36}),
	}

	got := TrimEvidence(in, 100, 50)

	assert.Equal(t, []string{"high", "mid"}, retainedIDs(got))
	assert.Equal(t, 90, got.UsedTokens)
	assert.Equal(t, []string{"low"}, got.DroppedIDs)
}

func TestTrimEvidence_TruncatesFirstMisfit(t *testing.T) {
	in := []types.CompressedEvidence{
		evidence("a", 0.9, []int{36}),
		evidence("b", 0.8, []int{30, 30, 30}),
		evidence("c", 0.7, []int{5}),
	}

	got := TrimEvidence(in, 110, 50)

	require.Equal(t, []string{"a", "b"}, retainedIDs(got))
	cut := got.Retained[1]
	assert.True(t, cut.Truncated)
	assert.Len(t, cut.Lines, 2)
	assert.Equal(t, []int{30, 30}, cut.LineTokens)
	assert.Equal(t, 64, cut.Tokens)
	assert.Equal(t, 104, got.UsedTokens)
	assert.Equal(t, []string{"c"}, got.DroppedIDs, "trimming stops after the first misfit")
}

func TestTrimEvidence_NoTruncationBelowMinimum(t *testing.T) {
	in := []types.CompressedEvidence{
		evidence("a", 0.9, []int{56}),
		evidence("b", 0.8, []int{20, 20, 20}),
	}

	got := TrimEvidence(in, 110, 50)
	assert.Equal(t, []string{"a"}, retainedIDs(got))
	assert.Equal(t, []string{"b"}, got.DroppedIDs)

	// enough room but no whole line fits
	in = []types.CompressedEvidence{evidence("big", 0.9, []int{80, 10})}
	got = TrimEvidence(in, 70, 50)
	assert.Empty(t, got.Retained)
	assert.Equal(t, []string{"big"}, got.DroppedIDs)
}

func TestTrimEvidence_TruncationDropsUnsupportedMappings(t *testing.T) {
	ev := evidence("a", 0.9, []int{30, 30})
	ev.Lines = []string{"Mentored three engineers", "Rewrote the scheduler in Go"}
	ev.MappedRequirements = []string{"Go", "Mentored engineers"}

	got := TrimEvidence([]types.CompressedEvidence{ev}, 60, 50)

	require.Len(t, got.Retained, 1)
	assert.True(t, got.Retained[0].Truncated)
	assert.Equal(t, []string{"Mentored engineers"}, got.Retained[0].MappedRequirements)
}

func TestTrimEvidence_NeverExceedsBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		var in []types.CompressedEvidence
		n := rng.Intn(25)
		for i := 0; i < n; i++ {
			lines := make([]int, 1+rng.Intn(4))
			for j := range lines {
				lines[j] = 1 + rng.Intn(60)
			}
			in = append(in, evidence(fmt.Sprintf("e%d", i), rng.Float64(), lines))
		}
		budget := rng.Intn(400)

		got := TrimEvidence(in, budget, DefaultMinViableTokens)

		sum := 0
		for _, ev := range got.Retained {
			sum += ev.Tokens
		}
		require.LessOrEqual(t, sum, budget)
		require.Equal(t, sum, got.UsedTokens)
		require.Equal(t, len(in), len(got.Retained)+len(got.DroppedIDs))
	}
}
