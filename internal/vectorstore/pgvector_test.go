package vectorstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docreader/internal/config"
	"github.com/nikhilbhutani/docreader/internal/database"
	"github.com/nikhilbhutani/docreader/internal/models"
)

func TestPgVectorStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := database.NewPool(ctx, config.DatabaseConfig{URL: url, MaxConns: 2, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool, ""))

	store := NewPgVectorStore(pool)
	idx := uuid.New()
	t.Cleanup(func() { _ = store.DeleteIndex(context.Background(), idx) })

	require.NoError(t, store.Upsert(ctx, []Chunk{
		{IndexID: idx, Content: "east", Embedding: []float32{1, 0}, Source: models.SourceRef{Filename: "a.pdf", PageNum: 1}},
		{IndexID: idx, Content: "north", Embedding: []float32{0, 1}, Source: models.SourceRef{Filename: "a.pdf", PageNum: 2}},
	}))

	results, err := store.SimilaritySearch(ctx, []float32{1, 0.1}, SearchOptions{IndexID: idx, TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "east", results[0].Content)
	assert.Equal(t, models.SourceRef{Filename: "a.pdf", PageNum: 1}, results[0].Source)

	require.NoError(t, store.DeleteIndex(ctx, idx))
	results, err = store.SimilaritySearch(ctx, []float32{1, 0}, SearchOptions{IndexID: idx})
	require.NoError(t, err)
	assert.Empty(t, results)
}
