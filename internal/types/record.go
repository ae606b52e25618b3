// Package types provides type definitions for structured data used throughout the resume-evidence system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// RecordBank is the canonical store of career records fed to the chunk compiler
type RecordBank struct {
	Records []Record `json:"records"`
}

// Record represents one structured career record (a role held at an organization)
type Record struct {
	ID           string        `json:"id" validate:"required"`
	Organization string        `json:"organization"`
	Role         string        `json:"role" validate:"required"`
	Seniority    string        `json:"seniority,omitempty"`
	Domains      []string      `json:"domains,omitempty"`
	StartDate    string        `json:"start_date,omitempty"`
	EndDate      string        `json:"end_date,omitempty"`
	Skills       []string      `json:"skills,omitempty"`
	Achievements []Achievement `json:"achievements,omitempty"`
	Context      []string      `json:"context,omitempty"`     // programs, team scope, charter
	Description  string        `json:"description,omitempty"` // optional free text
}

// Achievement represents a single accomplishment statement with its own skill tags and metrics
type Achievement struct {
	Text    string   `json:"text"`
	Skills  []string `json:"skills,omitempty"`
	Metrics []string `json:"metrics,omitempty"`
}
