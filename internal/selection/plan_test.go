package selection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanBudget_ReferenceScenario(t *testing.T) {
	plan, err := PlanBudget(BudgetInput{
		ModelContextTokens: 4096,
		SystemTokens:       300,
		LayoutTokens:       200,
		RequirementTokens:  400,
		EvidenceTokens:     2000,
		HeadroomFraction:   0.20,
	})
	require.NoError(t, err)

	assert.Equal(t, 820, plan.Allocations.Buffer)
	assert.Equal(t, 3276, plan.Allocations.Available)
	assert.Equal(t, 2376, plan.AvailableForEvidence)
	assert.Equal(t, 2000, plan.Allocations.Evidence)
	assert.Equal(t, 2900, plan.Allocations.Total)
	assert.True(t, plan.WithinBudget)
	assert.Zero(t, plan.ExcessTokens)
	assert.Empty(t, plan.Recommendations)
	assert.False(t, plan.Clamped)
}

func TestPlanBudget_OverBudgetRecommendations(t *testing.T) {
	plan, err := PlanBudget(BudgetInput{
		ModelContextTokens: 4096,
		SystemTokens:       300,
		LayoutTokens:       200,
		RequirementTokens:  600,
		EvidenceTokens:     3000,
		HeadroomFraction:   0.25,
	})
	require.NoError(t, err)

	// buffer 1024, available 3072, fixed 1100, evidence room 1972
	assert.False(t, plan.WithinBudget)
	assert.Equal(t, 1028, plan.ExcessTokens)
	assert.Equal(t, 1972, plan.Allocations.Evidence)
	assert.Equal(t, plan.Allocations.Available, plan.Allocations.Total)
	require.Len(t, plan.Recommendations, 3)
	assert.Contains(t, plan.Recommendations[0], "reduce evidence by 1028 tokens (from 3000 to 1972)")
	assert.Contains(t, plan.Recommendations[1], "requirement summary from 600")
	assert.Contains(t, plan.Recommendations[2], "free 204 tokens")
}

func TestPlanBudget_FixedCostsExceedContext(t *testing.T) {
	plan, err := PlanBudget(BudgetInput{
		ModelContextTokens: 1000,
		SystemTokens:       600,
		LayoutTokens:       200,
		RequirementTokens:  200,
		EvidenceTokens:     100,
		HeadroomFraction:   0.10,
	})

	var exceeded *TokenBudgetExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, 1000, exceeded.Required)
	assert.Equal(t, 900, exceeded.Available)

	require.NotNil(t, plan, "clamped plan is still reported")
	assert.True(t, plan.Clamped)
	assert.Zero(t, plan.AvailableForEvidence)
	assert.Zero(t, plan.Allocations.Evidence)
	assert.Contains(t, plan.Recommendations[0], "fixed costs (1000 tokens)")
}

func TestPlanBudget_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   BudgetInput
	}{
		{name: "zero context", in: BudgetInput{}},
		{name: "negative system", in: BudgetInput{ModelContextTokens: 100, SystemTokens: -1}},
		{name: "headroom above one", in: BudgetInput{ModelContextTokens: 100, HeadroomFraction: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanBudget(tt.in)
			var selErr *Error
			assert.True(t, errors.As(err, &selErr))
		})
	}
}

func TestPlanBudget_ArithmeticIsExact(t *testing.T) {
	for ctx := 512; ctx <= 8192; ctx += 509 {
		for _, headroom := range []float64{0, 0.05, 0.1, 0.15, 0.2, 0.33} {
			for _, ev := range []int{0, 150, 1200, 5000} {
				in := BudgetInput{ModelContextTokens: ctx, SystemTokens: 120, LayoutTokens: 80, RequirementTokens: 210, EvidenceTokens: ev, HeadroomFraction: headroom}
				plan, err := PlanBudget(in)
				if err != nil {
					continue
				}
				a := plan.Allocations
				assert.Equal(t, a.System+a.Requirements+a.Evidence+a.Layout, a.Total)
				assert.LessOrEqual(t, a.Total, a.Available)
				assert.Equal(t, ctx, a.Available+a.Buffer)
				assert.GreaterOrEqual(t, plan.AvailableForEvidence, 0)
			}
		}
	}
}

func TestFinalizePlan(t *testing.T) {
	plan, err := PlanBudget(BudgetInput{ModelContextTokens: 4096, SystemTokens: 300, LayoutTokens: 200, RequirementTokens: 400, EvidenceTokens: 3000, HeadroomFraction: 0.2})
	require.NoError(t, err)

	final, err := FinalizePlan(plan, TrimResult{UsedTokens: 2300, DroppedIDs: []string{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, 2300, final.Allocations.Evidence)
	assert.Equal(t, 3200, final.Allocations.Total)
	assert.Equal(t, []string{"x", "y"}, final.DroppedEvidenceIDs)
	assert.Equal(t, 2376, plan.Allocations.Evidence, "input plan untouched")

	_, err = FinalizePlan(plan, TrimResult{UsedTokens: 2400})
	var selErr *Error
	assert.True(t, errors.As(err, &selErr))

	_, err = FinalizePlan(nil, TrimResult{})
	assert.Error(t, err)
}
