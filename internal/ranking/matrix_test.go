package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/resume-evidence/internal/types"
)

func TestScoreChunkAgainstRequirement(t *testing.T) {
	chunk := &types.EvidenceChunk{
		Text: "Designed distributed payment systems in Go and ran them on k8s",
		Meta: types.ChunkMeta{Skills: []string{"PostgreSQL"}},
	}

	tests := []struct {
		name        string
		requirement string
		want        float64
	}{
		{name: "tag match", requirement: "postgres", want: 1.0},
		{name: "text match", requirement: "Go", want: 0.8},
		{name: "alias in text", requirement: "Kubernetes", want: 0.8},
		{name: "keyword overlap", requirement: "distributed systems design", want: 0.6},
		{name: "weak overlap", requirement: "distributed ledger accounting", want: 0.0},
		{name: "no match", requirement: "Rust", want: 0.0},
		{name: "blank", requirement: "  ", want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreChunkAgainstRequirement(chunk, tt.requirement))
		})
	}
}

func TestMapRequirements(t *testing.T) {
	chunk := &types.EvidenceChunk{
		Text: "Ran Kafka pipelines in Go",
		Meta: types.ChunkMeta{Skills: []string{"Kafka"}},
	}
	reqs := &types.RequirementSet{
		RoleTitle:   "Data Engineer",
		MustHaves:   []string{"Go", "SQL", "Kafka"},
		NiceToHaves: []string{"Go", "Airflow"},
	}

	assert.Equal(t, []string{"Go", "Kafka"}, MapRequirements(chunk, reqs))
	assert.Empty(t, MapRequirements(&types.EvidenceChunk{Text: "Planned the roadmap"}, reqs))
}
