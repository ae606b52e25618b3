package selection

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/resume-evidence/internal/types"
)

const (
	// requirementSummaryWarnTokens is the requirement size above which shortening it is recommended
	requirementSummaryWarnTokens = 500
	// maxRecommendedHeadroom is the headroom above which reducing it is recommended
	maxRecommendedHeadroom = 0.20
)

// BudgetInput holds the token counts a plan is computed from
type BudgetInput struct {
	ModelContextTokens int     `validate:"gt=0"`
	SystemTokens       int     `validate:"gte=0"`
	LayoutTokens       int     `validate:"gte=0"`
	RequirementTokens  int     `validate:"gte=0"`
	EvidenceTokens     int     `validate:"gte=0"` // tokens the caller would like to spend on evidence
	HeadroomFraction   float64 `validate:"gte=0,lte=1"`
}

var validate = validator.New()

// PlanBudget allocates the context window of one request.
//
// Buffer is ceil(context * headroom) and is excluded from Total. Evidence is allocated
// whatever remains after the fixed costs, up to the requested amount. When the fixed costs
// alone exceed the usable context, the evidence allocation is clamped to zero and the plan is
// returned together with a *TokenBudgetExceededError.
func PlanBudget(in BudgetInput) (*types.BudgetPlan, error) {
	if err := validate.Struct(in); err != nil {
		return nil, &Error{Message: "invalid budget input", Cause: err}
	}

	buffer := ceilTokens(float64(in.ModelContextTokens) * in.HeadroomFraction)
	available := in.ModelContextTokens - buffer
	fixed := in.SystemTokens + in.LayoutTokens + in.RequirementTokens

	plan := &types.BudgetPlan{
		ModelContextTokens:      in.ModelContextTokens,
		HeadroomFraction:        in.HeadroomFraction,
		RequestedEvidenceTokens: in.EvidenceTokens,
		AvailableForEvidence:    available - fixed,
		DroppedEvidenceIDs:      []string{},
	}
	if plan.AvailableForEvidence < 0 {
		plan.AvailableForEvidence = 0
		plan.Clamped = true
	}

	plan.Allocations = types.Allocations{
		System:       in.SystemTokens,
		Requirements: in.RequirementTokens,
		Evidence:     min(in.EvidenceTokens, plan.AvailableForEvidence),
		Layout:       in.LayoutTokens,
		Buffer:       buffer,
		Available:    available,
	}
	plan.Allocations.Total = fixed + plan.Allocations.Evidence

	if excess := fixed + in.EvidenceTokens - available; excess > 0 {
		plan.ExcessTokens = excess
	}
	plan.WithinBudget = plan.ExcessTokens == 0
	plan.Recommendations = recommend(in, plan, buffer)

	if plan.Clamped {
		return plan, &TokenBudgetExceededError{Required: fixed, Available: available}
	}
	return plan, nil
}

// FinalizePlan records the evidence actually retained by trimming and checks the plan arithmetic
func FinalizePlan(plan *types.BudgetPlan, trimmed TrimResult) (*types.BudgetPlan, error) {
	if plan == nil {
		return nil, &Error{Message: "nil budget plan"}
	}

	out := *plan
	out.Allocations.Evidence = trimmed.UsedTokens
	out.Allocations.Total = out.Allocations.System + out.Allocations.Requirements + out.Allocations.Evidence + out.Allocations.Layout
	out.DroppedEvidenceIDs = append([]string{}, trimmed.DroppedIDs...)
	out.Recommendations = append([]string(nil), plan.Recommendations...)

	if out.Allocations.Total > out.Allocations.Available {
		fixed := out.Allocations.Total - out.Allocations.Evidence
		if fixed > out.Allocations.Available {
			return nil, &TokenBudgetExceededError{Required: fixed, Available: out.Allocations.Available}
		}
		return nil, &Error{Message: fmt.Sprintf("retained evidence (%d tokens) exceeds the %d tokens available for evidence",
			trimmed.UsedTokens, out.AvailableForEvidence)}
	}
	return &out, nil
}

// recommend lists the concrete changes that would bring an over-budget plan back in bounds
func recommend(in BudgetInput, plan *types.BudgetPlan, buffer int) []string {
	if plan.WithinBudget {
		return nil
	}

	var recs []string
	if plan.Clamped {
		recs = append(recs, fmt.Sprintf("fixed costs (%d tokens) exceed the usable context (%d tokens): use a larger model context or cut system, layout or requirement tokens",
			plan.Allocations.Total, plan.Allocations.Available))
	} else {
		recs = append(recs, fmt.Sprintf("reduce evidence by %d tokens (from %d to %d)",
			plan.ExcessTokens, in.EvidenceTokens, in.EvidenceTokens-plan.ExcessTokens))
	}
	if in.RequirementTokens > requirementSummaryWarnTokens {
		recs = append(recs, fmt.Sprintf("shorten the requirement summary from %d to at most %d tokens",
			in.RequirementTokens, requirementSummaryWarnTokens))
	}
	if in.HeadroomFraction > maxRecommendedHeadroom {
		freed := buffer - ceilTokens(float64(in.ModelContextTokens)*maxRecommendedHeadroom)
		recs = append(recs, fmt.Sprintf("reduce context headroom from %.0f%% to %.0f%% to free %d tokens",
			in.HeadroomFraction*100, maxRecommendedHeadroom*100, freed))
	}
	return recs
}

func ceilTokens(v float64) int {
	return int(math.Ceil(v - 1e-9))
}
