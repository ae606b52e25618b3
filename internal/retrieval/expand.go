package retrieval

import (
	"strings"
	"sync"

	"github.com/jonathan/resume-evidence/internal/parsing"
)

// QueryExpander expands requirement phrases with known skill aliases.
// Expansions are memoized in a small bounded cache shared by all requests of the process;
// the oldest entry is evicted first.
type QueryExpander struct {
	mu       sync.Mutex
	capacity int
	cache    map[string][]string
	order    []string
}

// NewQueryExpander creates an expander holding at most capacity cached phrases (default 512)
func NewQueryExpander(capacity int) *QueryExpander {
	if capacity <= 0 {
		capacity = 512
	}
	return &QueryExpander{capacity: capacity, cache: make(map[string][]string, capacity)}
}

// ExpandPhrase returns the lexical terms for a phrase plus the aliases of every skill it names
func (q *QueryExpander) ExpandPhrase(phrase string) []string {
	key := strings.ToLower(strings.TrimSpace(phrase))
	if key == "" {
		return nil
	}

	q.mu.Lock()
	if terms, ok := q.cache[key]; ok {
		q.mu.Unlock()
		return terms
	}
	q.mu.Unlock()

	terms := expand(key)

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.cache[key]; !ok {
		if len(q.order) >= q.capacity {
			oldest := q.order[0]
			q.order = q.order[1:]
			delete(q.cache, oldest)
		}
		q.order = append(q.order, key)
	}
	q.cache[key] = terms
	return terms
}

// Expand joins the expansions of several phrases into one deduplicated lexical query
func (q *QueryExpander) Expand(phrases ...string) string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range phrases {
		for _, t := range q.ExpandPhrase(p) {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return strings.Join(out, " ")
}

// Len returns the number of cached phrases
func (q *QueryExpander) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cache)
}

func expand(phrase string) []string {
	terms := parsing.Terms(phrase)
	out := append([]string(nil), terms...)

	candidates := append([]string{phrase}, terms...)
	for _, c := range candidates {
		for _, alias := range parsing.SkillAliases(c) {
			out = append(out, parsing.Terms(alias)...)
		}
	}
	return uniqueTerms(out)
}
