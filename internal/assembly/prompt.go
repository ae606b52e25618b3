package assembly

import (
	"fmt"
	"strings"

	"github.com/jonathan/resume-evidence/internal/compression"
	"github.com/jonathan/resume-evidence/internal/prompts"
	"github.com/jonathan/resume-evidence/internal/types"
)

// DefaultSummaryMaxWords bounds the requirement summary when no limit is configured
const DefaultSummaryMaxWords = 350

// Prompt is the rendered generation input
type Prompt struct {
	System string
	User   string
}

// SystemPrompt returns the fixed system instructions
func SystemPrompt() string {
	return prompts.MustGet("assembly.json", "system")
}

// DefaultLayout returns the built-in layout instructions
func DefaultLayout() string {
	return prompts.MustGet("assembly.json", "layout")
}

// SummarizeRequirements returns the requirement summary capped at maxWords words.
// Without a concise summary it falls back to the top responsibilities, domains and constraints,
// and to the role and must-haves when none of those are given.
func SummarizeRequirements(reqs *types.RequirementSet, maxWords int) string {
	if reqs == nil {
		return ""
	}
	if maxWords <= 0 {
		maxWords = DefaultSummaryMaxWords
	}

	text := strings.TrimSpace(reqs.ConciseSummary)
	if text == "" {
		var parts []string
		if len(reqs.TopResponsibilities) > 0 {
			parts = append(parts, "Responsibilities: "+strings.Join(reqs.TopResponsibilities, "; ")+".")
		}
		if len(reqs.Domain) > 0 {
			parts = append(parts, "Domain: "+strings.Join(reqs.Domain, ", ")+".")
		}
		if len(reqs.HardConstraints) > 0 {
			parts = append(parts, "Constraints: "+strings.Join(reqs.HardConstraints, "; ")+".")
		}
		if len(parts) == 0 {
			if role := strings.TrimSpace(reqs.RoleTitle); role != "" {
				parts = append(parts, role+" role.")
			}
			if len(reqs.MustHaves) > 0 {
				parts = append(parts, "Key requirements: "+strings.Join(reqs.MustHaves, "; ")+".")
			}
		}
		text = strings.Join(parts, " ")
	}

	words := strings.Fields(text)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + " ..."
}

// RequirementSection renders everything of the user prompt that describes the target role.
// Its token count is the requirement cost of the budget plan.
func RequirementSection(reqs *types.RequirementSet, summary string) string {
	data := requirementData(reqs, summary)
	return fmt.Sprintf("%s%s\nMust have: %s\nNice to have: %s\n\n%s",
		data["RoleTitle"], data["Seniority"], data["MustHaves"], data["NiceToHaves"], data["Summary"])
}

// PromptScaffold is the user prompt with every section left empty. Its token count is charged
// to the layout cost, so requirement, evidence and layout costs only cover what fills the sections.
func PromptScaffold() string {
	empty := map[string]string{"Evidence": RenderEvidence(nil)}
	for _, name := range prompts.Placeholders(prompts.MustGet("assembly.json", "user")) {
		if _, ok := empty[name]; !ok {
			empty[name] = ""
		}
	}
	return prompts.Format(prompts.MustGet("assembly.json", "user"), empty)
}

// RenderEvidence renders retained evidence blocks, one per item, citing the chunk ID
func RenderEvidence(evidence []types.CompressedEvidence) string {
	if len(evidence) == 0 {
		return "(no evidence retained)"
	}

	var sb strings.Builder
	for i, ev := range evidence {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(compression.CitationLine(ev.ID, ev.Header) + "\n")
		for _, line := range ev.Lines {
			sb.WriteString(compression.BulletLine(line) + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// BuildPrompt renders the system and user prompts from the requirement summary,
// the retained evidence and the layout instructions.
func BuildPrompt(reqs *types.RequirementSet, summary string, evidence []types.CompressedEvidence, layout string) (Prompt, error) {
	if reqs == nil {
		return Prompt{}, fmt.Errorf("requirement set is required")
	}
	if strings.TrimSpace(layout) == "" {
		layout = DefaultLayout()
	}

	data := requirementData(reqs, summary)
	data["Evidence"] = RenderEvidence(evidence)
	data["Layout"] = layout

	user, err := prompts.FormatStrict(prompts.MustGet("assembly.json", "user"), data)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: SystemPrompt(), User: user}, nil
}

func requirementData(reqs *types.RequirementSet, summary string) map[string]string {
	seniority := ""
	if reqs.Seniority != "" {
		seniority = " (" + reqs.Seniority + ")"
	}
	return map[string]string{
		"RoleTitle":   reqs.RoleTitle,
		"Seniority":   seniority,
		"MustHaves":   joinOrNone(reqs.MustHaves),
		"NiceToHaves": joinOrNone(reqs.NiceToHaves),
		"Summary":     summary,
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, "; ")
}
