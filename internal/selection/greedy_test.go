package selection

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-evidence/internal/types"
)

func TestOptimizeForCoverage_ThreeMustHaveScenario(t *testing.T) {
	reqs := &types.RequirementSet{RoleTitle: "SRE", MustHaves: []string{"Go", "Kubernetes", "PostgreSQL"}}

	var pool []types.CompressedEvidence
	for i, mh := range reqs.MustHaves {
		for k := 0; k < 5; k++ {
			pool = append(pool, evidence(fmt.Sprintf("%s-%d", mh, k), 0.5-float64(i)*0.1-float64(k)*0.01, []int{96}, mh))
		}
	}
	for k := 0; k < 5; k++ {
		pool = append(pool, evidence(fmt.Sprintf("filler-%d", k), 0.9-float64(k)*0.01, []int{96}))
	}

	got := OptimizeForCoverage(pool, reqs, 450, 50)

	require.Len(t, got.Retained, 4)
	assert.ElementsMatch(t, []string{"Go-0", "Kubernetes-0", "PostgreSQL-0", "filler-0"}, retainedIDs(got))
	assert.Equal(t, 400, got.UsedTokens)
	assert.Equal(t, reqs.MustHaves, CoveredMustHaves(got.Retained, reqs))
	assert.Equal(t, "filler-0", got.Retained[0].ID, "retained in relevance order")
	assert.Len(t, got.DroppedIDs, 16)

	// plain relevance trimming would have spent the budget on filler
	plain := TrimEvidence(pool, 450, 50)
	assert.Empty(t, CoveredMustHaves(plain.Retained, reqs))
}

func TestOptimizeForCoverage_ReservesForLaterMustHaves(t *testing.T) {
	reqs := &types.RequirementSet{RoleTitle: "SRE", MustHaves: []string{"Go", "Rust"}}
	pool := []types.CompressedEvidence{
		evidence("go-big", 0.9, []int{76}, "Go"),
		evidence("go-small", 0.2, []int{26}, "Go"),
		evidence("rust", 0.5, []int{46}, "Rust"),
	}

	got := OptimizeForCoverage(pool, reqs, 90, 50)

	assert.ElementsMatch(t, []string{"go-small", "rust"}, retainedIDs(got))
	assert.Equal(t, reqs.MustHaves, CoveredMustHaves(got.Retained, reqs))
}

func TestOptimizeForCoverage_MultiRequirementItemCoversBoth(t *testing.T) {
	reqs := &types.RequirementSet{RoleTitle: "SRE", MustHaves: []string{"Go", "Kafka"}}
	pool := []types.CompressedEvidence{
		evidence("both", 0.7, []int{36}, "Go", "Kafka"),
		evidence("kafka", 0.9, []int{36}, "Kafka"),
	}

	got := OptimizeForCoverage(pool, reqs, 45, 50)

	assert.Equal(t, []string{"both"}, retainedIDs(got))
	assert.Equal(t, []string{"kafka"}, got.DroppedIDs)
}

func TestOptimizeForCoverage_UncoverableMustHave(t *testing.T) {
	reqs := &types.RequirementSet{RoleTitle: "SRE", MustHaves: []string{"Go", "COBOL"}}
	pool := []types.CompressedEvidence{
		evidence("go", 0.4, []int{16}, "Go"),
		evidence("other", 0.9, []int{16}),
	}

	got := OptimizeForCoverage(pool, reqs, 100, 50)

	assert.ElementsMatch(t, []string{"go", "other"}, retainedIDs(got))
	assert.Equal(t, []string{"Go"}, CoveredMustHaves(got.Retained, reqs))
}

func TestOptimizeForCoverage_NoMustHavesMatchesTrim(t *testing.T) {
	pool := []types.CompressedEvidence{
		evidence("a", 0.3, []int{20}),
		evidence("b", 0.6, []int{20}),
	}
	got := OptimizeForCoverage(pool, &types.RequirementSet{RoleTitle: "x"}, 30, 50)
	assert.Equal(t, TrimEvidence(pool, 30, 50), got)
}

func TestOptimizeForCoverage_GuaranteeProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 300; round++ {
		n := 1 + rng.Intn(5)
		reqs := &types.RequirementSet{RoleTitle: "r"}
		for i := 0; i < n; i++ {
			reqs.MustHaves = append(reqs.MustHaves, fmt.Sprintf("skill-%d", i))
		}

		var pool []types.CompressedEvidence
		minimal := 0
		for _, mh := range reqs.MustHaves {
			smallest := 0
			candidates := 1 + rng.Intn(4)
			for k := 0; k < candidates; k++ {
				ev := evidence(fmt.Sprintf("%s-%d", mh, k), rng.Float64(), []int{1 + rng.Intn(120)}, mh)
				pool = append(pool, ev)
				if smallest == 0 || ev.Tokens < smallest {
					smallest = ev.Tokens
				}
			}
			minimal += smallest
		}
		noise := rng.Intn(10)
		for k := 0; k < noise; k++ {
			pool = append(pool, evidence(fmt.Sprintf("noise-%d", k), rng.Float64(), []int{1 + rng.Intn(120)}))
		}
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

		budget := minimal + rng.Intn(200)
		got := OptimizeForCoverage(pool, reqs, budget, DefaultMinViableTokens)

		require.Equal(t, reqs.MustHaves, CoveredMustHaves(got.Retained, reqs), "round %d", round)
		require.LessOrEqual(t, got.UsedTokens, budget)
		require.Equal(t, len(pool), len(got.Retained)+len(got.DroppedIDs))
	}
}
