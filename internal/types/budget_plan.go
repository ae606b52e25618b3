// Package types provides type definitions for structured data used throughout the resume-evidence system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// BudgetPlan is the token allocation computed once per request
type BudgetPlan struct {
	Allocations Allocations `json:"allocations"`

	ModelContextTokens      int     `json:"model_context_tokens"`
	HeadroomFraction        float64 `json:"headroom_fraction"`
	RequestedEvidenceTokens int     `json:"requested_evidence_tokens"`
	AvailableForEvidence    int     `json:"available_for_evidence"`
	ExcessTokens            int     `json:"excess_tokens"`
	WithinBudget            bool    `json:"within_budget"`
	Clamped                 bool    `json:"clamped,omitempty"`

	DroppedEvidenceIDs []string `json:"dropped_evidence_ids"`
	Recommendations    []string `json:"recommendations,omitempty"`
}

// Allocations is the per-component token breakdown.
// Total is System + Requirements + Evidence + Layout; Buffer is excluded.
type Allocations struct {
	System       int `json:"system"`
	Requirements int `json:"requirements"`
	Evidence     int `json:"evidence"`
	Layout       int `json:"layout"`
	Buffer       int `json:"buffer"`
	Total        int `json:"total"`
	Available    int `json:"available"`
}

// Utilization returns Total / Available, or 0 when nothing is available
func (p *BudgetPlan) Utilization() float64 {
	if p == nil || p.Allocations.Available <= 0 {
		return 0
	}
	return float64(p.Allocations.Total) / float64(p.Allocations.Available)
}
