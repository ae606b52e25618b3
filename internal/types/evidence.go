// Package types provides type definitions for structured data used throughout the resume-evidence system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// ChunkKind identifies the facet an evidence chunk was compiled from
type ChunkKind string

const (
	// KindAchievement is an accomplishment or metric statement
	KindAchievement ChunkKind = "achievement"
	// KindSkill is a statement about hands-on use of skills
	KindSkill ChunkKind = "skill"
	// KindContext is a program, scope or charter statement
	KindContext ChunkKind = "context"
)

// EvidenceChunk is a small, independently retrievable claim plus structured metadata.
// Chunks are immutable: a changed source record produces a new chunk set.
type EvidenceChunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Tokens    int       `json:"tokens"`
	Embedding []float32 `json:"embedding,omitempty"`
	Meta      ChunkMeta `json:"meta"`
}

// ChunkMeta holds the structured fields of a chunk. None of it is repeated in Text.
type ChunkMeta struct {
	SourceRecordID string    `json:"source_record_id"`
	Kind           ChunkKind `json:"kind"`
	Role           string    `json:"role,omitempty"`
	Organization   string    `json:"organization,omitempty"`
	Seniority      string    `json:"seniority,omitempty"`
	Domains        []string  `json:"domains,omitempty"`
	Skills         []string  `json:"skills,omitempty"`
	Metrics        []string  `json:"metrics,omitempty"`
	StartDate      string    `json:"start_date,omitempty"`
	EndDate        string    `json:"end_date,omitempty"`
	Claims         int       `json:"claims"`
}

// RetrievalMethod records which retrieval path found an item
type RetrievalMethod string

const (
	MethodDense   RetrievalMethod = "dense"
	MethodLexical RetrievalMethod = "lexical"
	MethodHybrid  RetrievalMethod = "hybrid"
)

// SearchHit is a raw result from a dense or lexical index, before normalization
type SearchHit struct {
	Chunk EvidenceChunk `json:"chunk"`
	Score float64       `json:"score"`
}

// SearchFilter restricts the chunks an index may return. Empty fields do not filter.
type SearchFilter struct {
	SourceRecordIDs []string    `json:"source_record_ids,omitempty"`
	Kinds           []ChunkKind `json:"kinds,omitempty"`
	Domains         []string    `json:"domains,omitempty"`
	Skills          []string    `json:"skills,omitempty"`
}

// IsEmpty reports whether the filter places no restriction
func (f SearchFilter) IsEmpty() bool {
	return len(f.SourceRecordIDs) == 0 && len(f.Kinds) == 0 && len(f.Domains) == 0 && len(f.Skills) == 0
}

// RetrievedItem is a scored chunk produced by hybrid retrieval for one request
type RetrievedItem struct {
	Chunk        EvidenceChunk   `json:"chunk"`
	Score        float64         `json:"score"`
	DenseScore   float64         `json:"dense_score"`
	LexicalScore float64         `json:"lexical_score"`
	Method       RetrievalMethod `json:"retrieval_method"`
	RerankScore  *float64        `json:"rerank_score,omitempty"`
}

// Relevance returns the rerank score when present, otherwise the hybrid score
func (r RetrievedItem) Relevance() float64 {
	if r.RerankScore != nil {
		return *r.RerankScore
	}
	return r.Score
}

// CompressedEvidence is the token-accounted, prompt-ready form of one evidence chunk
type CompressedEvidence struct {
	ID                 string   `json:"id"`
	SourceRecordID     string   `json:"source_record_id"`
	Header             string   `json:"header,omitempty"`
	HeaderTokens       int      `json:"header_tokens"`
	Lines              []string `json:"lines"`
	LineTokens         []int    `json:"line_tokens"`
	Tokens             int      `json:"tokens"`
	RelevanceScore     float64  `json:"relevance_score"`
	MappedRequirements []string `json:"mapped_requirements"`
	Truncated          bool     `json:"truncated,omitempty"`
}

// Maps reports whether the evidence supports the given requirement string
func (e CompressedEvidence) Maps(requirement string) bool {
	for _, r := range e.MappedRequirements {
		if r == requirement {
			return true
		}
	}
	return false
}
