package parsing

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	sentenceBoundary = regexp.MustCompile(`([.!?;])\s+`)
	clauseBoundary   = regexp.MustCompile(`(,|\s+-\s+|\s+and\s+|\s+while\s+|\s+which\s+)`)
	metricPattern    = regexp.MustCompile(`(?i)(\$\s?\d[\d,.]*\s?[kmb]?|\d[\d,.]*\s?(%|x\b|ms\b|k\b|m\b|\+)|\b\d{2,}[\d,.]*\b)`)
)

// stopwords are dropped by Terms
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true, "to": true, "in": true,
	"for": true, "on": true, "with": true, "by": true, "at": true, "as": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "from": true, "that": true, "this": true, "it": true,
	"its": true, "into": true, "over": true, "across": true, "our": true, "their": true, "we": true,
	"i": true, "using": true, "experience": true, "years": true, "strong": true,
}

// NormalizeText returns the dedup key for a piece of prose: lowercase, single-spaced,
// trailing punctuation removed.
func NormalizeText(text string) string {
	key := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return strings.TrimRight(key, ".;!? ")
}

// SplitSentences splits prose into sentences at terminal punctuation and semicolons.
// Terminators stay attached to their sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00")
	var out []string
	for _, s := range strings.Split(marked, "\x00") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SplitClauses splits one sentence at clause boundaries (commas, dashes, coordinating words).
// The boundary text is kept at the end of the left clause so rejoining restores the sentence.
func SplitClauses(sentence string) []string {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return nil
	}
	locs := clauseBoundary.FindAllStringIndex(sentence, -1)
	if len(locs) == 0 {
		return []string{sentence}
	}
	var out []string
	start := 0
	for _, loc := range locs {
		if piece := strings.TrimSpace(sentence[start:loc[1]]); piece != "" {
			out = append(out, piece)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(sentence[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// Terms lowercases text and returns its significant terms in order, without stopwords.
// Characters such as + # . / inside a token are kept so "c++", "node.js" and "ci/cd" survive.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' || r == '/')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "./")
		if f == "" || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TermSet returns the distinct Terms of text
func TermSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Terms(text) {
		set[t] = true
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b| over the term sets of two texts. Two empty texts score 1.
func Jaccard(a, b string) float64 {
	sa, sb := TermSet(a), TermSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for t := range sa {
		if sb[t] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// ExtractMetrics returns the quantitative fragments (percentages, money, multipliers, counts) found in text
func ExtractMetrics(text string) []string {
	matches := metricPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// HasMetric reports whether text contains a quantitative fragment
func HasMetric(text string) bool {
	return metricPattern.MatchString(text)
}

// CountClaims counts the sentences in text; a non-empty text has at least one claim
func CountClaims(text string) int {
	return len(SplitSentences(text))
}

func sortStrings(s []string) {
	sort.Strings(s)
}
