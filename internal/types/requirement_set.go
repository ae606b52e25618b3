// Package types provides type definitions for structured data used throughout the resume-evidence system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "github.com/go-playground/validator/v10"

// RequirementSet is the structured form of a target role, produced by an external extractor
type RequirementSet struct {
	RoleTitle           string   `json:"role_title" validate:"required"`
	Seniority           string   `json:"seniority,omitempty"`
	MustHaves           []string `json:"must_haves" validate:"dive,required"`
	NiceToHaves         []string `json:"nice_to_haves,omitempty" validate:"dive,required"`
	TopResponsibilities []string `json:"top_responsibilities,omitempty"`
	HardConstraints     []string `json:"hard_constraints,omitempty"`
	Domain              []string `json:"domain,omitempty"`
	ConciseSummary      string   `json:"concise_summary,omitempty"`
}

// Validate validates the RequirementSet using the validator.
func (r *RequirementSet) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// AllRequirements returns must-haves followed by nice-to-haves
func (r *RequirementSet) AllRequirements() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.MustHaves)+len(r.NiceToHaves))
	out = append(out, r.MustHaves...)
	out = append(out, r.NiceToHaves...)
	return out
}
