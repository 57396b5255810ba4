package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/store"
)

func entry(id, text string, vector ...float32) models.IndexEntry {
	return models.IndexEntry{
		Chunk: models.Chunk{
			ID:               id,
			DocumentID:       "docs/" + id + ".mdx",
			ParentSourcePath: "docs/" + id + ".mdx",
			Extension:        models.ExtMDX,
			Text:             text,
		},
		Vector: vector,
	}
}

func TestMemoryStore_QueryOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	err := s.Upsert(ctx, "docs", []models.IndexEntry{
		entry("visit", "cy.visit", 1, 0, 0),
		entry("get", "cy.get", 0, 1, 0),
		entry("both", "visit then get", 1, 1, 0),
	})
	require.NoError(t, err)

	chunks, err := s.Query(ctx, "docs", []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "visit", chunks[0].ID)
	assert.Equal(t, "both", chunks[1].ID)

	chunks, err = s.Query(ctx, "docs", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.Upsert(ctx, "docs", []models.IndexEntry{entry("a", "old", 1, 0)}))
	require.NoError(t, s.Upsert(ctx, "docs", []models.IndexEntry{entry("a", "new", 1, 0)}))

	assert.Equal(t, 1, s.Len("docs"))
	chunks, err := s.Query(ctx, "docs", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "new", chunks[0].Text)
}

func TestMemoryStore_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.Upsert(ctx, "cypress", []models.IndexEntry{entry("a", "x", 1, 0)}))

	chunks, err := s.Query(ctx, "playwright", []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Equal(t, 0, s.Len("playwright"))
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.Upsert(ctx, "docs", []models.IndexEntry{entry("a", "x", 1, 0, 0)}))

	err := s.Upsert(ctx, "docs", []models.IndexEntry{entry("b", "y", 1, 0)})
	assert.ErrorIs(t, err, types.ErrStore)

	_, err = s.Query(ctx, "docs", []float32{1}, 1)
	assert.ErrorIs(t, err, types.ErrStore)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := store.Open(ctx, store.StoreConfig{URL: "memory://"})
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, s)
	assert.NoError(t, s.Close())

	_, err = store.Open(ctx, store.StoreConfig{URL: "redis://localhost:6379"})
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = store.Open(ctx, store.StoreConfig{URL: "qdrant://localhost:notaport"})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
