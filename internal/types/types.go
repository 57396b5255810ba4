package types

import (
	"context"

	"github.com/xhad/docchat/internal/models"
)

// Core interfaces
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore creates a collection on the first upsert addressed to it.
// Querying a collection that does not exist yields no chunks.
type VectorStore interface {
	Upsert(ctx context.Context, collection string, entries []models.IndexEntry) error
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]models.Chunk, error)
	Close() error
}

type Generator interface {
	Generate(ctx context.Context, question string, context []models.Chunk, history []models.Turn) (string, error)
}

// Condenser rewrites a follow-up question into one that can be retrieved
// for without the conversation. Generators may implement it.
type Condenser interface {
	Condense(ctx context.Context, question string, history []models.Turn) (string, error)
}

// Tracker remembers which document contents have already been indexed.
type Tracker interface {
	Indexed(collection, documentID, hash string) (bool, error)
	MarkIndexed(collection, documentID, hash string) error
}
