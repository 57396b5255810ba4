package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

func TestCheckText(t *testing.T) {
	assert.NoError(t, checkText("cy.visit() loads a page ✓"))
	assert.ErrorContains(t, checkText("bad\xffbyte"), "UTF-8")
	assert.ErrorContains(t, checkText("nul\x00byte"), "NUL")
}

func TestPGVectorUpsertRejectsUnstorableText(t *testing.T) {
	// Rejected before the pool is touched, so no database is needed.
	vs := &PGVectorStore{created: map[string]bool{}}
	err := vs.Upsert(context.Background(), "docs", []models.IndexEntry{
		{Chunk: models.Chunk{ID: "a", Text: "nul\x00byte"}, Vector: []float32{1}},
	})
	assert.ErrorIs(t, err, types.ErrStore)
	assert.ErrorContains(t, err, "NUL")
}
