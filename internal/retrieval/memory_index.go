package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/jonathan/resume-evidence/internal/parsing"
	"github.com/jonathan/resume-evidence/internal/types"
)

// BM25 parameters
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// MemoryIndex is an in-process chunk store serving both retrieval paths:
// cosine similarity over stored embeddings and BM25 over chunk text and skill tags.
type MemoryIndex struct {
	mu sync.RWMutex

	chunks  map[string]types.EvidenceChunk
	retired map[string]bool

	termFreq map[string]map[string]int // chunk ID -> term -> count
	docLen   map[string]int
	docFreq  map[string]int // term -> active chunks containing it
	totalLen int
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		chunks:   make(map[string]types.EvidenceChunk),
		retired:  make(map[string]bool),
		termFreq: make(map[string]map[string]int),
		docLen:   make(map[string]int),
		docFreq:  make(map[string]int),
	}
}

// UpsertChunks adds chunks. Chunks are immutable, so an ID already present is left as is
// unless it was retired, in which case it is reactivated.
func (m *MemoryIndex) UpsertChunks(_ context.Context, chunks []types.EvidenceChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range chunks {
		if _, ok := m.chunks[ch.ID]; ok {
			if m.retired[ch.ID] {
				delete(m.retired, ch.ID)
				m.indexTerms(ch.ID)
			}
			continue
		}
		m.chunks[ch.ID] = ch
		terms := indexTerms(ch)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		m.termFreq[ch.ID] = tf
		m.docLen[ch.ID] = len(terms)
		m.indexTerms(ch.ID)
	}
	return nil
}

// RetireChunks marks chunks as superseded; they stop matching searches
func (m *MemoryIndex) RetireChunks(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if _, ok := m.chunks[id]; !ok || m.retired[id] {
			continue
		}
		m.retired[id] = true
		for t := range m.termFreq[id] {
			m.docFreq[t]--
			if m.docFreq[t] <= 0 {
				delete(m.docFreq, t)
			}
		}
		m.totalLen -= m.docLen[id]
	}
	return nil
}

// ActiveChunkIDs returns the IDs of non-retired chunks compiled from recordID, sorted
func (m *MemoryIndex) ActiveChunkIDs(_ context.Context, recordID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, ch := range m.chunks {
		if !m.retired[id] && ch.Meta.SourceRecordID == recordID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of active chunks
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks) - len(m.retired)
}

// SearchVector implements DenseIndex with cosine similarity. Chunks without embeddings are skipped.
func (m *MemoryIndex) SearchVector(_ context.Context, vector []float32, topK int, filter types.SearchFilter) ([]types.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []types.SearchHit
	for id, ch := range m.chunks {
		if m.retired[id] || len(ch.Embedding) != len(vector) || !MatchesFilter(ch, filter) {
			continue
		}
		hits = append(hits, types.SearchHit{Chunk: ch, Score: cosine(vector, ch.Embedding)})
	}
	return topHits(hits, topK), nil
}

// SearchText implements LexicalIndex with Okapi BM25
func (m *MemoryIndex) SearchText(_ context.Context, query string, topK int, filter types.SearchFilter) ([]types.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	qterms := uniqueTerms(parsing.Terms(query))
	active := len(m.chunks) - len(m.retired)
	if len(qterms) == 0 || active == 0 {
		return nil, nil
	}
	avgLen := float64(m.totalLen) / float64(active)

	var hits []types.SearchHit
	for id, ch := range m.chunks {
		if m.retired[id] || !MatchesFilter(ch, filter) {
			continue
		}
		tf := m.termFreq[id]
		dl := float64(m.docLen[id])
		score := 0.0
		for _, t := range qterms {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			df := float64(m.docFreq[t])
			idf := math.Log(1 + (float64(active)-df+0.5)/(df+0.5))
			score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*dl/avgLen))
		}
		if score > 0 {
			hits = append(hits, types.SearchHit{Chunk: ch, Score: score})
		}
	}
	return topHits(hits, topK), nil
}

// indexTerms adds a chunk's terms to the document frequencies; caller holds the lock
func (m *MemoryIndex) indexTerms(id string) {
	for t := range m.termFreq[id] {
		m.docFreq[t]++
	}
	m.totalLen += m.docLen[id]
}

// indexTerms returns the searchable terms of a chunk: text terms plus canonical skill tags
func indexTerms(ch types.EvidenceChunk) []string {
	terms := parsing.Terms(ch.Text)
	for _, s := range ch.Meta.Skills {
		terms = append(terms, parsing.Terms(s)...)
	}
	return terms
}

// MatchesFilter reports whether a chunk satisfies every non-empty filter field
func MatchesFilter(ch types.EvidenceChunk, f types.SearchFilter) bool {
	if f.IsEmpty() {
		return true
	}
	if len(f.SourceRecordIDs) > 0 && !containsFold(f.SourceRecordIDs, ch.Meta.SourceRecordID) {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == ch.Meta.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Domains) > 0 && !anyFold(f.Domains, ch.Meta.Domains) {
		return false
	}
	if len(f.Skills) > 0 {
		found := false
		for _, want := range f.Skills {
			for _, have := range ch.Meta.Skills {
				if parsing.SameSkill(want, have) {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func anyFold(want, have []string) bool {
	for _, w := range want {
		if containsFold(have, w) {
			return true
		}
	}
	return false
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topHits sorts by score descending (ID ascending on ties) and keeps topK
func topHits(hits []types.SearchHit, topK int) []types.SearchHit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
