package retrieval

import (
	"strings"

	"github.com/jonathan/resume-evidence/internal/types"
)

// BuildQuery turns a requirement set into a hybrid query.
// The lexical side gets every requirement phrase with aliases expanded; the dense side
// embeds the role title with the summary, or the must-haves and responsibilities when
// there is no summary.
func BuildQuery(reqs *types.RequirementSet, expander *QueryExpander, topKDense, topKLexical int, filter types.SearchFilter) Query {
	if expander == nil {
		expander = NewQueryExpander(0)
	}

	var phrases []string
	phrases = append(phrases, reqs.MustHaves...)
	phrases = append(phrases, reqs.NiceToHaves...)
	phrases = append(phrases, reqs.TopResponsibilities...)
	phrases = append(phrases, reqs.Domain...)
	phrases = append(phrases, reqs.RoleTitle)

	dense := reqs.RoleTitle
	if strings.TrimSpace(reqs.ConciseSummary) != "" {
		dense += ". " + reqs.ConciseSummary
	} else {
		parts := append(append([]string{}, reqs.MustHaves...), reqs.TopResponsibilities...)
		if len(parts) > 0 {
			dense += ". " + strings.Join(parts, "; ")
		}
	}

	return Query{
		Text:        expander.Expand(phrases...),
		DenseText:   strings.TrimSpace(dense),
		Skills:      reqs.AllRequirements(),
		TopKDense:   topKDense,
		TopKLexical: topKLexical,
		Filter:      filter,
	}
}
