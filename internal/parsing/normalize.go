// Package parsing provides text and skill normalization shared by the compiler, retrieval and ranking stages.
package parsing

import (
	"strings"
)

// skillNormalizations maps common skill name variants to canonical names
var skillNormalizations = map[string]string{
	"golang":       "Go",
	"go lang":      "Go",
	"javascript":   "JavaScript",
	"js":           "JavaScript",
	"typescript":   "TypeScript",
	"ts":           "TypeScript",
	"k8s":          "Kubernetes",
	"kubernetes":   "Kubernetes",
	"postgres":     "PostgreSQL",
	"postgresql":   "PostgreSQL",
	"psql":         "PostgreSQL",
	"aws":          "AWS",
	"gcp":          "GCP",
	"react.js":     "React",
	"reactjs":      "React",
	"node.js":      "Node.js",
	"nodejs":       "Node.js",
	"ci/cd":        "CI/CD",
	"ml":           "Machine Learning",
	"sql":          "SQL",
	"grpc":         "gRPC",
	"tf":           "Terraform",
	"terraform":    "Terraform",
	"kafka":        "Kafka",
	"apache kafka": "Kafka",
}

// NormalizeSkillName normalizes a skill name to its canonical form
func NormalizeSkillName(skillName string) string {
	normalized := strings.TrimSpace(skillName)
	if normalized == "" {
		return ""
	}

	lower := strings.ToLower(normalized)
	if canonical, ok := skillNormalizations[lower]; ok {
		return canonical
	}

	// All-caps single words that are not known acronyms get title case
	if normalized == strings.ToUpper(normalized) && len(normalized) > 1 && !strings.Contains(lower, " ") {
		return strings.ToUpper(normalized[:1]) + strings.ToLower(normalized[1:])
	}

	// All lowercase single word: capitalize first letter
	if normalized == lower && !strings.Contains(normalized, " ") {
		return strings.ToUpper(normalized[:1]) + normalized[1:]
	}

	return normalized
}

// NormalizeSkills canonicalizes and deduplicates a skill list, keeping first-seen order
func NormalizeSkills(skills []string) []string {
	if len(skills) == 0 {
		return nil
	}
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		n := NormalizeSkillName(s)
		if n == "" || seen[strings.ToLower(n)] {
			continue
		}
		seen[strings.ToLower(n)] = true
		out = append(out, n)
	}
	return out
}

// SkillAliases returns the known lowercase variants that normalize to the same canonical skill,
// including the canonical name itself. Unknown skills return just their lowercase form.
func SkillAliases(skill string) []string {
	canonical := NormalizeSkillName(skill)
	if canonical == "" {
		return nil
	}
	aliases := []string{strings.ToLower(canonical)}
	for variant, c := range skillNormalizations {
		if c == canonical && variant != aliases[0] {
			aliases = append(aliases, variant)
		}
	}
	// map iteration order is random
	sortStrings(aliases[1:])
	return aliases
}

// SameSkill reports whether two skill names normalize to the same canonical skill
func SameSkill(a, b string) bool {
	na, nb := NormalizeSkillName(a), NormalizeSkillName(b)
	return na != "" && strings.EqualFold(na, nb)
}

// MentionsSkill reports whether text mentions skill or one of its known aliases as whole terms
func MentionsSkill(text, skill string) bool {
	haystack := " " + strings.Join(Terms(text), " ") + " "
	for _, alias := range SkillAliases(skill) {
		needle := strings.Join(Terms(alias), " ")
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, " "+needle+" ") {
			return true
		}
	}
	return false
}
