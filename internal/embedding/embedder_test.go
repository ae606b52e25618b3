package embedding

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func TestHashEmbedder(t *testing.T) {
	h := NewHashEmbedder(128)
	ctx := context.Background()

	a, err := h.Embed(ctx, "Operated Kubernetes clusters")
	require.NoError(t, err)
	b, err := h.Embed(ctx, "operated k8s clusters")
	require.NoError(t, err)
	c, err := h.Embed(ctx, "Negotiated vendor contracts")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.Equal(t, 128, h.Dimensions())
	assert.InDelta(t, 1.0, cosine(a, b), 1e-6, "aliases share buckets")
	assert.Less(t, cosine(a, c), 0.5)

	empty, err := h.Embed(ctx, "the and of")
	require.NoError(t, err)
	assert.Len(t, empty, 128)
}

// countingEmbedder records batch sizes
type countingEmbedder struct {
	*HashEmbedder
	calls atomic.Int32
	fail  bool
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	if c.fail {
		return nil, errors.New("backend down")
	}
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestEmbedAll(t *testing.T) {
	texts := []string{"go", "rust", "kafka", "postgres", "terraform"}
	e := &countingEmbedder{HashEmbedder: NewHashEmbedder(32)}

	vecs, err := EmbedAll(context.Background(), e, texts, 2, 2)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	assert.Equal(t, int32(3), e.calls.Load())

	for i, text := range texts {
		want, _ := e.Embed(context.Background(), text)
		assert.Equal(t, want, vecs[i], "result is index aligned")
	}
}

func TestEmbedAll_Error(t *testing.T) {
	e := &countingEmbedder{HashEmbedder: NewHashEmbedder(32), fail: true}
	_, err := EmbedAll(context.Background(), e, []string{"a", "b"}, 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestEmbedAll_Empty(t *testing.T) {
	vecs, err := EmbedAll(context.Background(), NewHashEmbedder(8), nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
