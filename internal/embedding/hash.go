package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/jonathan/resume-evidence/internal/parsing"
)

// HashEmbedder is a deterministic feature-hashing embedder for offline use and tests.
// Terms are canonicalized through the skill alias table so "k8s" and "Kubernetes" share a bucket.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder with the given width (default 256)
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

// Embed implements Embedder
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, term := range parsing.Terms(text) {
		key := strings.ToLower(parsing.NormalizeSkillName(term))
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(key))
		sum := hasher.Sum64()
		idx := int(sum % uint64(h.dims))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// EmbedBatch implements Embedder
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions implements Embedder
func (h *HashEmbedder) Dimensions() int {
	return h.dims
}
