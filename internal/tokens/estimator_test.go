package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristic_Count(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "whitespace only", text: "   \n\t", want: 0},
		// 1 word, 2 chars: (1.3 + 0.5)/2 = 0.9 -> 1
		{name: "single short word", text: "Go", want: 1},
		// 5 words, 21 chars: (6.5 + 5.25)/2 = 5.875 -> 6
		{name: "short sentence", text: "Built a Go service ok", want: 6},
		// 10 words, 39 chars: (13 + 9.75)/2 = 11.375 -> 12
		{name: "ten words", text: strings.TrimSpace(strings.Repeat("abc ", 10)), want: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultHeuristic.Count(tt.text))
		})
	}
}

func TestHeuristic_ZeroValueUsesDefaults(t *testing.T) {
	text := "Reduced deployment time by 40% across twelve services"
	assert.Equal(t, DefaultHeuristic.Count(text), Heuristic{}.Count(text))
	assert.Equal(t, DefaultHeuristic.Count(text), Estimate(text))
}

func TestHeuristic_Deterministic(t *testing.T) {
	text := "Led migration of the payments ledger to PostgreSQL with zero downtime."
	first := Estimate(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Estimate(text))
	}
}

func TestSum(t *testing.T) {
	assert.Equal(t, Estimate("one two")+Estimate("three"), Sum(DefaultHeuristic, "one two", "three"))
	assert.Equal(t, 0, Sum(DefaultHeuristic))
}

func TestNew(t *testing.T) {
	est, err := New("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultHeuristic, est)

	_, err = New("bogus", "")
	assert.Error(t, err)
}

func TestHeuristic_ConcatenationNeverExceedsParts(t *testing.T) {
	parts := []string{"\n[c-1] SRE @ Acme (2020 - 2022)\n", "- Cut p99 latency by 40%.\n", "- Led the migration to Go.\n", "x"}
	assert.LessOrEqual(t, Estimate(strings.Join(parts, "")), Sum(DefaultHeuristic, parts...))

	// 3 words, 14 chars incl. both newlines: (3.9 + 3.5)/2 = 3.7 -> 4
	assert.Equal(t, 4, Estimate("\n- Go service\n"))
}
