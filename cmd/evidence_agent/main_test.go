package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-evidence/internal/types"
)

const (
	recordsFile      = "testdata/records.json"
	requirementsFile = "testdata/requirements.json"
)

// clearKeys hides provider credentials so every test runs offline
func clearKeys(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "COHERE_API_KEY", "CO_API_KEY",
		"EVIDENCE_GEMINI_API_KEY", "EVIDENCE_OPENAI_API_KEY", "EVIDENCE_COHERE_API_KEY",
		"EVIDENCE_VECTOR_STORE", "EVIDENCE_DATABASE_URL", "EVIDENCE_REDIS_ADDR",
	} {
		t.Setenv(name, "")
	}
}

// resetFlags restores every flag of cmd and its children to its default between runs
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command in-process and returns its stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	clearKeys(t)
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCompileCommand(t *testing.T) {
	out, err := execute(t, "compile", "--records", recordsFile)
	require.NoError(t, err)

	var doc compileOutput
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 3, doc.Records)
	require.NotEmpty(t, doc.Chunks)

	seen := map[string]bool{}
	for _, ch := range doc.Chunks {
		assert.NotEmpty(t, ch.ID)
		assert.False(t, seen[ch.ID], "duplicate chunk id %s", ch.ID)
		seen[ch.ID] = true
		assert.LessOrEqual(t, ch.Tokens, 180)
	}
}

func TestCompileCommand_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.json")
	out, err := execute(t, "compile", "--records", recordsFile, "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Compiled 3 records")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"chunks"`)
}

func TestIngestCommand_Memory(t *testing.T) {
	out, err := execute(t, "ingest", "--records", recordsFile, "--embedding-provider", "hash")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 3 records")
	assert.Contains(t, out, "memory store")
}

func TestSearchCommand(t *testing.T) {
	out, err := execute(t, "search",
		"--records", recordsFile,
		"--requirements", requirementsFile,
		"--embedding-provider", "hash",
		"--rerank-provider", "overlap",
		"--keep-after-rerank", "5")
	require.NoError(t, err)

	var doc searchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.NotEmpty(t, doc.Items)
	assert.LessOrEqual(t, len(doc.Items), 5)
	assert.NotEmpty(t, doc.Query.Text)
	for _, it := range doc.Items {
		assert.NotNil(t, it.RerankScore)
	}
}

func TestSearchCommand_Filter(t *testing.T) {
	out, err := execute(t, "search",
		"--records", recordsFile,
		"--requirements", requirementsFile,
		"--embedding-provider", "hash",
		"--record", "initech-backend")
	require.NoError(t, err)

	var doc searchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.NotEmpty(t, doc.Items)
	for _, it := range doc.Items {
		assert.Equal(t, "initech-backend", it.Chunk.Meta.SourceRecordID)
	}
}

func TestBudgetCommand(t *testing.T) {
	out, err := execute(t, "budget",
		"--records", recordsFile,
		"--requirements", requirementsFile,
		"--embedding-provider", "hash")
	require.NoError(t, err)

	var doc budgetOutput
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.NotNil(t, doc.Plan)
	assert.True(t, doc.Plan.WithinBudget)
	assert.LessOrEqual(t, doc.Plan.Allocations.Total, doc.Plan.Allocations.Available)
	assert.NotEmpty(t, doc.Retained)
	assert.Empty(t, doc.Missing)
	assert.Len(t, doc.Coverage, 3)
}

func TestBudgetCommand_FixedCostsTooLarge(t *testing.T) {
	out, err := execute(t, "budget",
		"--records", recordsFile,
		"--requirements", requirementsFile,
		"--embedding-provider", "hash",
		"--model-context-tokens", "300",
		"--system-prompt-tokens", "400")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token budget exceeded")

	var doc budgetOutput
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.NotNil(t, doc.Plan)
	assert.True(t, doc.Plan.Clamped)
	assert.NotEmpty(t, doc.Plan.Recommendations)
}

func TestBudgetCommand_WritesMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.prom")
	_, err := execute(t, "budget",
		"--records", recordsFile,
		"--requirements", requirementsFile,
		"--embedding-provider", "hash",
		"--metrics-file", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "evidence_stage_total")
	assert.Contains(t, string(data), "evidence_budget_utilization")
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "compile without records", args: []string{"compile"}, wantErr: "required flag"},
		{name: "search on empty memory store", args: []string{"search", "--requirements", requirementsFile}, wantErr: "starts empty"},
		{name: "assemble without input", args: []string{"assemble", "--records", recordsFile}, wantErr: "--requirements or --job"},
		{name: "assemble without key", args: []string{"assemble", "--records", recordsFile, "--requirements", requirementsFile}, wantErr: "no API key"},
		{name: "migrate memory store", args: []string{"migrate"}, wantErr: "nothing to migrate"},
		{name: "postgres without url", args: []string{"ingest", "--records", recordsFile, "--vector-store", "postgres"}, wantErr: "database_url"},
		{name: "bad estimator", args: []string{"compile", "--records", recordsFile, "--token-estimator", "words"}, wantErr: "config error"},
		{name: "bad records file", args: []string{"compile", "--records", requirementsFile}, wantErr: "records"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFilterFlags(t *testing.T) {
	f := filterFlags{records: []string{"r1"}, kinds: []string{" Achievement "}, skills: []string{"go"}}
	got := f.filter()
	assert.Equal(t, types.SearchFilter{
		SourceRecordIDs: []string{"r1"},
		Kinds:           []types.ChunkKind{types.KindAchievement},
		Skills:          []string{"go"},
	}, got)
}
