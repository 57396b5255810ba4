package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/store"
)

// exerciseStore runs the same round trip against any live backend.
func exerciseStore(t *testing.T, s types.VectorStore) {
	t.Helper()
	ctx := context.Background()
	collection := fmt.Sprintf("test_docs_%d", time.Now().UnixNano())

	chunks, err := s.Query(ctx, collection, []float32{1, 0, 0}, 4)
	require.NoError(t, err, "querying a missing collection is not an error")
	assert.Empty(t, chunks)

	e := entry("11111111-2222-3333-4444-555555555555", "cy.visit() loads a page", 1, 0, 0)
	e.Chunk.Metadata = map[string]string{"source": e.Chunk.ParentSourcePath}
	other := entry("66666666-7777-8888-9999-000000000000", "cy.get() finds elements", 0, 1, 0)

	require.NoError(t, s.Upsert(ctx, collection, []models.IndexEntry{e, other}))

	chunks, err = s.Query(ctx, collection, []float32{1, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, e.Chunk.Text, chunks[0].Text)
	assert.Equal(t, e.Chunk.ParentSourcePath, chunks[0].ParentSourcePath)
	assert.Equal(t, models.ExtMDX, chunks[0].Extension)
	assert.Equal(t, e.Chunk.Metadata, chunks[0].Metadata)
}

func TestPGVectorStore(t *testing.T) {
	connString := os.Getenv("DOCCHAT_TEST_PG_URL")
	if connString == "" {
		t.Skip("DOCCHAT_TEST_PG_URL not set")
	}

	s, err := store.NewPGVector(context.Background(), store.VectorStoreConfig{ConnString: connString, Lists: 1})
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)

	err = s.Upsert(context.Background(), "bad-name; drop table", []models.IndexEntry{entry("a", "x", 1)})
	assert.ErrorIs(t, err, types.ErrStore)
}

func TestQdrantStore(t *testing.T) {
	addr := os.Getenv("DOCCHAT_TEST_QDRANT_ADDR")
	if addr == "" {
		t.Skip("DOCCHAT_TEST_QDRANT_ADDR not set")
	}

	s, err := store.Open(context.Background(), store.StoreConfig{URL: "qdrant://" + addr})
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	exerciseStore(t, store.NewMemory())
}
