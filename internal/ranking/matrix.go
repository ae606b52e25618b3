package ranking

import (
	"strings"

	"github.com/jonathan/resume-evidence/internal/parsing"
	"github.com/jonathan/resume-evidence/internal/types"
)

// MappingThreshold is the minimum ScoreChunkAgainstRequirement score for a chunk to count
// as evidence for a requirement.
const MappingThreshold = 0.6

// keywordOverlapFloor is the share of a requirement's terms a chunk must contain
// for a keyword match
const keywordOverlapFloor = 0.6

// ScoreChunkAgainstRequirement returns a score (0.0 to 1.0) representing how well
// a chunk supports one requirement phrase.
//
// An explicit skill tag scores 1.0, the phrase or one of its aliases in the text 0.8,
// and a text containing at least 60% of the requirement's terms 0.6.
func ScoreChunkAgainstRequirement(chunk *types.EvidenceChunk, requirement string) float64 {
	req := strings.TrimSpace(requirement)
	if req == "" {
		return 0.0
	}

	// Check if the skill is explicitly tagged on the chunk
	for _, tag := range chunk.Meta.Skills {
		if parsing.SameSkill(tag, req) {
			return 1.0
		}
	}

	if parsing.MentionsSkill(chunk.Text, req) {
		return 0.8 // Slightly lower confidence if just text match
	}

	reqTerms := parsing.TermSet(req)
	if len(reqTerms) == 0 {
		return 0.0
	}
	text := canonicalTerms(chunk.Text)
	for _, tag := range chunk.Meta.Skills {
		for t := range canonicalTerms(tag) {
			text[t] = true
		}
	}
	hits := 0
	for t := range reqTerms {
		if text[strings.ToLower(parsing.NormalizeSkillName(t))] {
			hits++
		}
	}
	if float64(hits)/float64(len(reqTerms)) >= keywordOverlapFloor {
		return 0.6
	}

	return 0.0
}

// MapRequirements returns the requirements (must-haves first, then nice-to-haves, in
// RequirementSet order) that the chunk plausibly satisfies.
func MapRequirements(chunk *types.EvidenceChunk, reqs *types.RequirementSet) []string {
	var mapped []string
	seen := make(map[string]bool)
	for _, req := range reqs.AllRequirements() {
		if seen[req] {
			continue
		}
		if ScoreChunkAgainstRequirement(chunk, req) >= MappingThreshold {
			mapped = append(mapped, req)
			seen[req] = true
		}
	}
	return mapped
}
