// Package types provides type definitions for structured data used throughout the resume-evidence system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// GenerationResult is the terminal output of the pipeline
type GenerationResult struct {
	ResumeMarkdown string          `json:"resume_markdown"`
	CoverageReport []CoverageEntry `json:"coverage_report"`
	TokensUsed     TokenUsage      `json:"tokens_used"`
	Model          string          `json:"model,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// CoverageEntry records whether a must-have requirement is backed by retained evidence
type CoverageEntry struct {
	Requirement string   `json:"requirement"`
	Present     bool     `json:"present"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// TokenUsage holds the generation backend's reported token counts
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// Missing returns the requirements whose entries are not present
func Missing(report []CoverageEntry) []string {
	var out []string
	for _, e := range report {
		if !e.Present {
			out = append(out, e.Requirement)
		}
	}
	return out
}
