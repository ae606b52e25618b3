// Package observability provides pipeline telemetry sinks and formatted output for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/resume-evidence/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to at most n runes, ending in "..." when cut
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// listItems writes up to limit bulleted items followed by an overflow line
func listItems(sb *strings.Builder, items []string, limit int) {
	count := min(len(items), limit)
	for i := 0; i < count; i++ {
		fmt.Fprintf(sb, "  • %s\n", items[i])
	}
	if len(items) > limit {
		fmt.Fprintf(sb, "  ... and %d more\n", len(items)-limit)
	}
}

// PrintRequirements outputs a human-readable summary of the requirement set.
func (p *Printer) PrintRequirements(reqs *types.RequirementSet) {
	if reqs == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Role:      %s\n", reqs.RoleTitle)
	if reqs.Seniority != "" {
		fmt.Fprintf(&sb, "Seniority: %s\n", reqs.Seniority)
	}
	sb.WriteString("\n")

	if len(reqs.MustHaves) > 0 {
		sb.WriteString("Must-haves:\n")
		listItems(&sb, reqs.MustHaves, maxItemsToShow)
		sb.WriteString("\n")
	}
	if len(reqs.NiceToHaves) > 0 {
		sb.WriteString("Nice-to-haves:\n")
		listItems(&sb, reqs.NiceToHaves, 3)
	}

	p.printBox("REQUIREMENTS", strings.TrimSuffix(strings.TrimSuffix(sb.String(), "\n"), "\n"))
}

// PrintRetrieval outputs the top retrieved items with their fused and rerank scores.
func (p *Printer) PrintRetrieval(items []types.RetrievedItem) {
	if len(items) == 0 {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total chunks retrieved: %d\n\n", len(items))

	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		item := items[i]
		fmt.Fprintf(&sb, "#%d  %s (%s)\n", i+1, item.Chunk.ID, item.Method)
		fmt.Fprintf(&sb, "    Score: %.2f", item.Score)
		if item.RerankScore != nil {
			fmt.Fprintf(&sb, " (rerank: %.2f)", *item.RerankScore)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "    %s\n", clip(item.Chunk.Text, 48))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(items) > maxItemsToShow {
		fmt.Fprintf(&sb, "\n... and %d more chunks", len(items)-maxItemsToShow)
	}

	p.printBox("RETRIEVED EVIDENCE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintEvidence outputs the retained evidence in prompt order.
func (p *Printer) PrintEvidence(evidence []types.CompressedEvidence) {
	if len(evidence) == 0 {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Retained %d evidence items:\n\n", len(evidence))

	count := min(len(evidence), maxItemsToShow)
	for i := 0; i < count; i++ {
		ev := evidence[i]
		marker := ""
		if ev.Truncated {
			marker = " ✂"
		}
		fmt.Fprintf(&sb, "• %s  %d tokens%s\n", ev.ID, ev.Tokens, marker)
		if ev.Header != "" {
			fmt.Fprintf(&sb, "  %s\n", ev.Header)
		}
		if len(ev.MappedRequirements) > 0 {
			fmt.Fprintf(&sb, "  [%s]\n", clip(strings.Join(ev.MappedRequirements, ", "), 40))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(evidence) > maxItemsToShow {
		fmt.Fprintf(&sb, "\n... and %d more items", len(evidence)-maxItemsToShow)
	}

	p.printBox("RETAINED EVIDENCE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBudgetPlan outputs the token allocation and any recommendations.
func (p *Printer) PrintBudgetPlan(plan *types.BudgetPlan) {
	if plan == nil {
		return
	}

	a := plan.Allocations
	var sb strings.Builder
	fmt.Fprintf(&sb, "Context:      %d (headroom %.0f%%)\n", plan.ModelContextTokens, plan.HeadroomFraction*100)
	fmt.Fprintf(&sb, "Available:    %d\n", a.Available)
	fmt.Fprintf(&sb, "System:       %d\n", a.System)
	fmt.Fprintf(&sb, "Requirements: %d\n", a.Requirements)
	fmt.Fprintf(&sb, "Layout:       %d\n", a.Layout)
	fmt.Fprintf(&sb, "Evidence:     %d / %d\n", a.Evidence, plan.AvailableForEvidence)
	fmt.Fprintf(&sb, "Total:        %d (%.0f%% used)\n", a.Total, plan.Utilization()*100)

	if !plan.WithinBudget {
		fmt.Fprintf(&sb, "\n⚠ over budget by %d tokens\n", plan.ExcessTokens)
	}
	if len(plan.DroppedEvidenceIDs) > 0 {
		fmt.Fprintf(&sb, "\nDropped %d evidence items\n", len(plan.DroppedEvidenceIDs))
	}
	if len(plan.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		listItems(&sb, plan.Recommendations, 3)
	}

	p.printBox("TOKEN BUDGET", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCoverage outputs the must-have coverage report.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintCoverage(report []types.CoverageEntry) {
	if len(report) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "NO MUST-HAVE REQUIREMENTS")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	missing := types.Missing(report)
	fmt.Fprintf(&sb, "Covered %d of %d must-haves:\n\n", len(report)-len(missing), len(report))

	for i, e := range report {
		if e.Present {
			fmt.Fprintf(&sb, "✓ %s\n", e.Requirement)
			fmt.Fprintf(&sb, "  %s\n", strings.Join(e.EvidenceIDs, ", "))
		} else {
			fmt.Fprintf(&sb, "⚠ %s\n", e.Requirement)
			sb.WriteString("  no retained evidence\n")
		}
		if i < len(report)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("MUST-HAVE COVERAGE", strings.TrimSuffix(sb.String(), "\n"))
}
