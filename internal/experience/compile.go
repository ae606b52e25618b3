package experience

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-evidence/internal/parsing"
	"github.com/jonathan/resume-evidence/internal/tokens"
	"github.com/jonathan/resume-evidence/internal/types"
)

// chunkNamespace seeds content-derived chunk IDs
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("resume-evidence.evidence-chunk"))

// CompilerOptions controls the token window of compiled chunks
type CompilerOptions struct {
	TargetMinTokens   int     // lower edge of the target window
	TargetMaxTokens   int     // merged and split pieces stay at or under this
	HardCeilingTokens int     // facets above this are split at clause boundaries
	MergeBelowTokens  int     // facets under this merge with the next facet of the same kind
	MaxClaims         int     // upper bound of claims per chunk
	DedupeThreshold   float64 // term-set Jaccard at or above this drops a chunk; >= 1 means exact keys only
}

// DefaultCompilerOptions returns the standard 80-150 token window with a 180 token ceiling
func DefaultCompilerOptions() CompilerOptions {
	return CompilerOptions{
		TargetMinTokens:   80,
		TargetMaxTokens:   150,
		HardCeilingTokens: 180,
		MergeBelowTokens:  50,
		MaxClaims:         3,
		DedupeThreshold:   1,
	}
}

// Compiler turns career records into atomic evidence chunks
type Compiler struct {
	opts   CompilerOptions
	est    tokens.Estimator
	logger *zap.Logger
}

// NewCompiler creates a compiler. Zero option fields take their defaults; a nil estimator uses the heuristic.
func NewCompiler(opts CompilerOptions, est tokens.Estimator, logger *zap.Logger) *Compiler {
	def := DefaultCompilerOptions()
	if opts.TargetMinTokens <= 0 {
		opts.TargetMinTokens = def.TargetMinTokens
	}
	if opts.TargetMaxTokens <= 0 {
		opts.TargetMaxTokens = def.TargetMaxTokens
	}
	if opts.HardCeilingTokens < opts.TargetMaxTokens {
		opts.HardCeilingTokens = max(def.HardCeilingTokens, opts.TargetMaxTokens)
	}
	if opts.MergeBelowTokens <= 0 {
		opts.MergeBelowTokens = def.MergeBelowTokens
	}
	if opts.MaxClaims <= 0 {
		opts.MaxClaims = def.MaxClaims
	}
	if opts.DedupeThreshold <= 0 {
		opts.DedupeThreshold = def.DedupeThreshold
	}
	if est == nil {
		est = tokens.DefaultHeuristic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{opts: opts, est: est, logger: logger}
}

// facet is one semantic unit of a record before it becomes a chunk
type facet struct {
	kind    types.ChunkKind
	text    string
	skills  []string
	metrics []string
	claims  int
	tokens  int
}

// Compile splits one record into ordered evidence chunks. It never rejects a record:
// a record with no usable content yields a single minimal context chunk.
func (c *Compiler) Compile(rec types.Record) []types.EvidenceChunk {
	rec = NormalizeRecord(rec)

	facets := c.dedupe(c.extractFacets(rec))
	facets = c.splitOversized(facets)
	facets = c.dedupe(c.mergeSmall(facets))

	if len(facets) == 0 {
		c.logger.Debug("record has no extractable content, emitting minimal chunk",
			zap.String("record_id", rec.ID))
		facets = []facet{c.minimalFacet(rec)}
	}

	chunks := make([]types.EvidenceChunk, 0, len(facets))
	short := 0
	for _, f := range facets {
		if f.tokens < c.opts.TargetMinTokens {
			short++
		}
		chunks = append(chunks, c.buildChunk(rec, f))
	}
	c.logger.Debug("compiled record",
		zap.String("record_id", rec.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int("below_target", short))
	return chunks
}

// CompileAll compiles every record in the bank, preserving record order
func (c *Compiler) CompileAll(bank *types.RecordBank) []types.EvidenceChunk {
	var out []types.EvidenceChunk
	for _, rec := range bank.Records {
		out = append(out, c.Compile(rec)...)
	}
	return out
}

// ChunkID derives the stable identifier of a chunk from its source record, kind and normalized text
func ChunkID(recordID string, kind types.ChunkKind, text string) string {
	name := recordID + "\x00" + string(kind) + "\x00" + parsing.NormalizeText(text)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

func (c *Compiler) extractFacets(rec types.Record) []facet {
	var facets []facet
	mentioned := make(map[string]bool)

	add := func(kind types.ChunkKind, text string, tagged, metrics []string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		skills := c.skillsFor(text, tagged, rec.Skills)
		for _, s := range skills {
			mentioned[strings.ToLower(s)] = true
		}
		facets = append(facets, c.newFacet(kind, text, skills, mergeUnique(metrics, parsing.ExtractMetrics(text))))
	}

	for _, a := range rec.Achievements {
		add(types.KindAchievement, a.Text, a.Skills, a.Metrics)
	}

	for _, sentence := range parsing.SplitSentences(rec.Description) {
		switch {
		case parsing.HasMetric(sentence):
			add(types.KindAchievement, sentence, nil, nil)
		case len(c.skillsFor(sentence, nil, rec.Skills)) > 0:
			add(types.KindSkill, sentence, nil, nil)
		default:
			add(types.KindContext, sentence, nil, nil)
		}
	}

	for _, line := range rec.Context {
		add(types.KindContext, line, nil, nil)
	}

	// skills never mentioned by another facet get a statement of their own
	var unmentioned []string
	for _, s := range rec.Skills {
		if !mentioned[strings.ToLower(s)] {
			unmentioned = append(unmentioned, s)
		}
	}
	if len(unmentioned) > 0 {
		text := "Worked hands-on with " + joinList(unmentioned) + "."
		facets = append(facets, c.newFacet(types.KindSkill, text, unmentioned, nil))
	}

	return facets
}

// skillsFor returns the explicitly tagged skills plus record skills the text mentions
func (c *Compiler) skillsFor(text string, tagged, recordSkills []string) []string {
	out := parsing.NormalizeSkills(tagged)
	for _, s := range recordSkills {
		if parsing.MentionsSkill(text, s) {
			out = mergeUnique(out, []string{s})
		}
	}
	return out
}

func (c *Compiler) newFacet(kind types.ChunkKind, text string, skills, metrics []string) facet {
	claims := parsing.CountClaims(text)
	if claims == 0 {
		claims = 1
	}
	return facet{
		kind:    kind,
		text:    text,
		skills:  skills,
		metrics: metrics,
		claims:  claims,
		tokens:  c.est.Count(text),
	}
}

// splitOversized breaks facets above the hard ceiling into pieces no larger than TargetMaxTokens.
// Sentences are tried first, then clauses, then plain word runs.
func (c *Compiler) splitOversized(facets []facet) []facet {
	out := make([]facet, 0, len(facets))
	for _, f := range facets {
		if f.tokens <= c.opts.HardCeilingTokens {
			out = append(out, f)
			continue
		}

		var units []string
		for _, sentence := range parsing.SplitSentences(f.text) {
			if c.est.Count(sentence) <= c.opts.TargetMaxTokens {
				units = append(units, sentence)
				continue
			}
			for _, clause := range parsing.SplitClauses(sentence) {
				if c.est.Count(clause) <= c.opts.TargetMaxTokens {
					units = append(units, clause)
					continue
				}
				units = append(units, c.splitWords(clause)...)
			}
		}

		pieces := c.pack(units)
		for i, p := range pieces {
			var tagged, metrics []string
			for _, s := range f.skills {
				if i == 0 || parsing.MentionsSkill(p, s) {
					tagged = append(tagged, s)
				}
			}
			if i == 0 {
				metrics = f.metrics
			}
			nf := c.newFacet(f.kind, p, tagged, mergeUnique(metrics, parsing.ExtractMetrics(p)))
			out = append(out, nf)
		}
		c.logger.Debug("split oversized facet",
			zap.String("kind", string(f.kind)),
			zap.Int("tokens", f.tokens),
			zap.Int("pieces", len(pieces)))
	}
	return out
}

// splitWords cuts text into word runs that each fit TargetMaxTokens
func (c *Compiler) splitWords(text string) []string {
	words := strings.Fields(text)
	var out []string
	var cur []string
	for _, w := range words {
		candidate := append(append([]string(nil), cur...), w)
		if len(cur) > 0 && c.est.Count(strings.Join(candidate, " ")) > c.opts.TargetMaxTokens {
			out = append(out, strings.Join(cur, " "))
			cur = []string{w}
			continue
		}
		cur = candidate
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// pack greedily joins consecutive units while the joined text fits TargetMaxTokens and MaxClaims
func (c *Compiler) pack(units []string) []string {
	var out []string
	cur := ""
	for _, u := range units {
		if cur == "" {
			cur = u
			continue
		}
		joined := cur + " " + u
		if c.est.Count(joined) > c.opts.TargetMaxTokens || parsing.CountClaims(joined) > c.opts.MaxClaims {
			out = append(out, cur)
			cur = u
			continue
		}
		cur = joined
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// mergeSmall folds facets under MergeBelowTokens into the next facet of the same kind,
// as long as the result stays within TargetMaxTokens and MaxClaims.
// Facet order is preserved by kind of first appearance.
func (c *Compiler) mergeSmall(facets []facet) []facet {
	var order []types.ChunkKind
	groups := make(map[types.ChunkKind][]facet)
	for _, f := range facets {
		if _, ok := groups[f.kind]; !ok {
			order = append(order, f.kind)
		}
		groups[f.kind] = append(groups[f.kind], f)
	}

	var out []facet
	for _, kind := range order {
		var merged []facet
		for _, f := range groups[kind] {
			n := len(merged)
			if n > 0 && merged[n-1].tokens < c.opts.MergeBelowTokens && c.canMerge(merged[n-1], f) {
				merged[n-1] = c.merge(merged[n-1], f)
				continue
			}
			merged = append(merged, f)
		}

		// a small trailing facet folds back into its predecessor
		if n := len(merged); n > 1 && merged[n-1].tokens < c.opts.MergeBelowTokens && c.canMerge(merged[n-2], merged[n-1]) {
			merged[n-2] = c.merge(merged[n-2], merged[n-1])
			merged = merged[:n-1]
		}
		out = append(out, merged...)
	}
	return out
}

func (c *Compiler) canMerge(a, b facet) bool {
	if a.claims+b.claims > c.opts.MaxClaims {
		return false
	}
	return c.est.Count(joinClaims(a.text, b.text)) <= c.opts.TargetMaxTokens
}

func (c *Compiler) merge(a, b facet) facet {
	text := joinClaims(a.text, b.text)
	return facet{
		kind:    a.kind,
		text:    text,
		skills:  mergeUnique(a.skills, b.skills),
		metrics: mergeUnique(a.metrics, b.metrics),
		claims:  a.claims + b.claims,
		tokens:  c.est.Count(text),
	}
}

// dedupe drops facets whose normalized text repeats an earlier one, or whose
// term overlap with an earlier facet reaches DedupeThreshold
func (c *Compiler) dedupe(facets []facet) []facet {
	seen := make(map[string]bool, len(facets))
	out := make([]facet, 0, len(facets))
	for _, f := range facets {
		key := parsing.NormalizeText(f.text)
		if seen[key] {
			continue
		}
		if c.opts.DedupeThreshold < 1 && c.nearDuplicate(f, out) {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func (c *Compiler) nearDuplicate(f facet, kept []facet) bool {
	for _, k := range kept {
		if parsing.Jaccard(f.text, k.text) >= c.opts.DedupeThreshold {
			return true
		}
	}
	return false
}

func (c *Compiler) minimalFacet(rec types.Record) facet {
	text := "Professional experience record."
	if rec.Role != "" {
		text = "Served as " + rec.Role + "."
	}
	return c.newFacet(types.KindContext, text, nil, nil)
}

func (c *Compiler) buildChunk(rec types.Record, f facet) types.EvidenceChunk {
	return types.EvidenceChunk{
		ID:     ChunkID(rec.ID, f.kind, f.text),
		Text:   f.text,
		Tokens: f.tokens,
		Meta: types.ChunkMeta{
			SourceRecordID: rec.ID,
			Kind:           f.kind,
			Role:           rec.Role,
			Organization:   rec.Organization,
			Seniority:      rec.Seniority,
			Domains:        rec.Domains,
			Skills:         f.skills,
			Metrics:        f.metrics,
			StartDate:      rec.StartDate,
			EndDate:        rec.EndDate,
			Claims:         f.claims,
		},
	}
}

// joinClaims concatenates two claims, terminating the first with a period if it has no punctuation
func joinClaims(a, b string) string {
	a = strings.TrimSpace(a)
	if a != "" && !strings.ContainsAny(a[len(a)-1:], ".!?;") {
		a += "."
	}
	return a + " " + strings.TrimSpace(b)
}

// joinList renders ["a","b","c"] as "a, b and c"
func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}

func mergeUnique(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := append([]string(nil), a...)
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range b {
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}
