// Package compression turns retrieved chunks into token-accounted, prompt-ready evidence.
package compression

import (
	"fmt"
	"strings"

	"github.com/jonathan/resume-evidence/internal/parsing"
	"github.com/jonathan/resume-evidence/internal/ranking"
	"github.com/jonathan/resume-evidence/internal/tokens"
	"github.com/jonathan/resume-evidence/internal/types"
)

// Compressor splits evidence into one-claim lines and counts their tokens.
// It is stateless and deterministic: the same chunk always compresses to the same evidence.
type Compressor struct {
	est tokens.Estimator
}

// NewCompressor creates a compressor; a nil estimator means the shared heuristic
func NewCompressor(est tokens.Estimator) *Compressor {
	if est == nil {
		est = tokens.DefaultHeuristic
	}
	return &Compressor{est: est}
}

// Compress converts retrieved items in order. Relevance is the rerank score when present.
func (c *Compressor) Compress(items []types.RetrievedItem, reqs *types.RequirementSet) []types.CompressedEvidence {
	out := make([]types.CompressedEvidence, 0, len(items))
	for _, it := range items {
		out = append(out, c.CompressChunk(it.Chunk, it.Relevance(), reqs))
	}
	return out
}

// CompressChunk converts one chunk
func (c *Compressor) CompressChunk(chunk types.EvidenceChunk, relevance float64, reqs *types.RequirementSet) types.CompressedEvidence {
	ev := types.CompressedEvidence{
		ID:             chunk.ID,
		SourceRecordID: chunk.Meta.SourceRecordID,
		Header:         Header(chunk.Meta),
		RelevanceScore: relevance,
	}
	// counted as rendered: the separating blank line and the cited header line, then one bullet per line
	ev.HeaderTokens = c.est.Count("\n" + CitationLine(ev.ID, ev.Header) + "\n")

	ev.Lines = Lines(chunk.Text)
	ev.LineTokens = make([]int, len(ev.Lines))
	ev.Tokens = ev.HeaderTokens
	for i, line := range ev.Lines {
		ev.LineTokens[i] = c.est.Count(BulletLine(line) + "\n")
		ev.Tokens += ev.LineTokens[i]
	}

	if reqs != nil {
		ev.MappedRequirements = ranking.MapRequirements(&chunk, reqs)
	}
	return ev
}

// Lines splits chunk text into one claim per line. Each sentence is a claim.
func Lines(text string) []string {
	sentences := parsing.SplitSentences(text)
	lines := make([]string, 0, len(sentences))
	for _, s := range sentences {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

// CitationLine is the first line of a rendered evidence block: the chunk ID in brackets, then the header
func CitationLine(id, header string) string {
	if header == "" {
		return "[" + id + "]"
	}
	return "[" + id + "] " + header
}

// BulletLine renders one claim line of an evidence block
func BulletLine(line string) string {
	return "- " + line
}

// Header renders the provenance line of a chunk: "Role @ Organization (start - end)".
// Missing parts are left out; a chunk with no provenance has no header.
func Header(meta types.ChunkMeta) string {
	var who string
	switch {
	case meta.Role != "" && meta.Organization != "":
		who = fmt.Sprintf("%s @ %s", meta.Role, meta.Organization)
	case meta.Role != "":
		who = meta.Role
	default:
		who = meta.Organization
	}

	var when string
	switch {
	case meta.StartDate != "" && meta.EndDate != "":
		when = fmt.Sprintf("%s - %s", meta.StartDate, meta.EndDate)
	case meta.StartDate != "":
		when = meta.StartDate + " - present"
	default:
		when = meta.EndDate
	}

	switch {
	case who != "" && when != "":
		return fmt.Sprintf("%s (%s)", who, when)
	case who != "":
		return who
	default:
		return when
	}
}

// Recount recomputes Tokens from the header and line counts
func Recount(ev *types.CompressedEvidence) {
	ev.Tokens = ev.HeaderTokens
	for _, n := range ev.LineTokens {
		ev.Tokens += n
	}
}
