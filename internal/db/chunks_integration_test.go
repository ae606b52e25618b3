//go:build integration

package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-evidence/internal/types"
)

// These tests require a running PostgreSQL database with the pgvector extension available.
// Set TEST_DATABASE_URL environment variable to run them.

func getTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, 3))
	_, _ = db.pool.Exec(ctx, "DELETE FROM evidence_chunks WHERE source_record_id LIKE 'test-%'")

	return db
}

func testChunks() []types.EvidenceChunk {
	return []types.EvidenceChunk{
		{
			ID: "test-c1", Text: "Operated Kubernetes clusters for payments", Tokens: 8,
			Embedding: []float32{1, 0, 0},
			Meta:      types.ChunkMeta{SourceRecordID: "test-r1", Kind: types.KindSkill, Skills: []string{"Kubernetes"}, Domains: []string{"Payments"}},
		},
		{
			ID: "test-c2", Text: "Cut deploy time by 40% with a new pipeline", Tokens: 11,
			Embedding: []float32{0, 1, 0},
			Meta:      types.ChunkMeta{SourceRecordID: "test-r1", Kind: types.KindAchievement, Skills: []string{"CI/CD"}},
		},
	}
}

func TestIntegration_Chunks_Lifecycle(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.UpsertChunks(ctx, testChunks()))
	require.NoError(t, db.UpsertChunks(ctx, testChunks()[:1]))

	ids, err := db.ActiveChunkIDs(ctx, "test-r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"test-c1", "test-c2"}, ids)

	require.NoError(t, db.RetireChunks(ctx, []string{"test-c2"}))
	ids, err = db.ActiveChunkIDs(ctx, "test-r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"test-c1"}, ids)

	require.NoError(t, db.UpsertChunks(ctx, testChunks()[1:]))
	ids, err = db.ActiveChunkIDs(ctx, "test-r1")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	chunks, err := db.GetChunks(ctx, []string{"test-c1", "missing"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"Kubernetes"}, chunks[0].Meta.Skills)
}

func TestIntegration_Chunks_Search(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, db.UpsertChunks(ctx, testChunks()))

	hits, err := db.SearchVector(ctx, []float32{0.9, 0.1, 0}, 5, types.SearchFilter{SourceRecordIDs: []string{"test-r1"}})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "test-c1", hits[0].Chunk.ID)

	hits, err = db.SearchText(ctx, "kubernetes clusters", 5, types.SearchFilter{Skills: []string{"k8s"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "test-c1", hits[0].Chunk.ID)
	assert.Greater(t, hits[0].Score, 0.0)

	require.NoError(t, db.RetireChunks(ctx, []string{"test-c1"}))
	hits, err = db.SearchText(ctx, "kubernetes", 5, types.SearchFilter{})
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "test-c1", h.Chunk.ID)
	}
}
