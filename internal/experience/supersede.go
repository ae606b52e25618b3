package experience

import "github.com/jonathan/resume-evidence/internal/types"

// Supersede compares the stored chunk IDs of a record with a freshly compiled set.
// Chunks are never edited in place: retire lists old IDs absent from the new set,
// added lists new chunks not stored yet.
func Supersede(storedIDs []string, compiled []types.EvidenceChunk) (retire []string, added []types.EvidenceChunk) {
	current := make(map[string]bool, len(compiled))
	for _, ch := range compiled {
		current[ch.ID] = true
	}
	stored := make(map[string]bool, len(storedIDs))
	for _, id := range storedIDs {
		stored[id] = true
		if !current[id] {
			retire = append(retire, id)
		}
	}
	for _, ch := range compiled {
		if !stored[ch.ID] {
			added = append(added, ch)
		}
	}
	return retire, added
}

// ChunkIDs returns the IDs of chunks in order
func ChunkIDs(chunks []types.EvidenceChunk) []string {
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	return ids
}
