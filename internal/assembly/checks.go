package assembly

import (
	"strings"

	"github.com/jonathan/resume-evidence/internal/parsing"
	"github.com/jonathan/resume-evidence/internal/types"
)

// UnsupportedMetrics returns the figures in the generated text that appear in no retained
// evidence header or line, in order of first appearance
func UnsupportedMetrics(output string, evidence []types.CompressedEvidence) []string {
	found := parsing.ExtractMetrics(output)
	if len(found) == 0 {
		return nil
	}

	known := make(map[string]bool)
	for _, ev := range evidence {
		for _, line := range append([]string{ev.Header}, ev.Lines...) {
			for _, m := range parsing.ExtractMetrics(line) {
				known[normalizeMetric(m)] = true
			}
		}
	}

	var unsupported []string
	seen := make(map[string]bool)
	for _, m := range found {
		key := normalizeMetric(m)
		if known[key] || seen[key] {
			continue
		}
		seen[key] = true
		unsupported = append(unsupported, m)
	}
	return unsupported
}

func normalizeMetric(m string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimRight(m, ".,"), " ", ""))
}
