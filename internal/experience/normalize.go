package experience

import (
	"fmt"
	"strings"

	"github.com/jonathan/resume-evidence/internal/parsing"
	"github.com/jonathan/resume-evidence/internal/types"
)

// NormalizeRecord returns a copy of rec with canonical skill names, trimmed text and empty entries removed
func NormalizeRecord(rec types.Record) types.Record {
	out := rec
	out.ID = strings.TrimSpace(rec.ID)
	out.Role = strings.TrimSpace(rec.Role)
	out.Organization = strings.TrimSpace(rec.Organization)
	out.Description = strings.TrimSpace(rec.Description)
	out.Skills = parsing.NormalizeSkills(rec.Skills)
	out.Domains = compact(rec.Domains)
	out.Context = compact(rec.Context)

	out.Achievements = make([]types.Achievement, 0, len(rec.Achievements))
	for _, a := range rec.Achievements {
		text := strings.TrimSpace(a.Text)
		if text == "" {
			continue
		}
		out.Achievements = append(out.Achievements, types.Achievement{
			Text:    text,
			Skills:  parsing.NormalizeSkills(a.Skills),
			Metrics: compact(a.Metrics),
		})
	}
	return out
}

// ValidateBank checks that every record has an ID and a role and that IDs are unique
func ValidateBank(bank *types.RecordBank) error {
	seen := make(map[string]bool, len(bank.Records))
	for i, rec := range bank.Records {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			return &RecordError{Message: fmt.Sprintf("record at index %d has no id", i)}
		}
		if seen[id] {
			return &RecordError{RecordID: id, Message: "duplicate record id"}
		}
		seen[id] = true
		if strings.TrimSpace(rec.Role) == "" {
			return &RecordError{RecordID: id, Message: "role is required"}
		}
	}
	return nil
}

func compact(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
