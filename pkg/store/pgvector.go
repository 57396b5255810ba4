package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type VectorStoreConfig struct {
	ConnString string
	Lists      int
}

// PGVectorStore keeps one table per collection in Postgres with pgvector.
type PGVectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool

	mu      sync.Mutex
	created map[string]bool
}

func NewPGVector(ctx context.Context, config VectorStoreConfig) (*PGVectorStore, error) {
	if config.Lists == 0 {
		config.Lists = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, types.Wrap(types.ErrStore, "connect", err)
	}

	vs := &PGVectorStore{
		config:  config,
		pool:    pool,
		created: make(map[string]bool),
	}

	// Enable pgvector extension
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, types.Wrap(types.ErrStore, "create vector extension", err)
	}

	return vs, nil
}

func (vs *PGVectorStore) ensureCollection(ctx context.Context, collection string, dim int) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.created[collection] {
		return nil
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			source TEXT NOT NULL,
			extension TEXT,
			chunk_index INTEGER,
			overlap INTEGER,
			content TEXT,
			embedding vector(%d),
			metadata JSONB
		)`, collection, dim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = %d)`,
		collection, collection, vs.config.Lists)

	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	vs.created[collection] = true
	return nil
}

func (vs *PGVectorStore) Upsert(ctx context.Context, collection string, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if !identifierPattern.MatchString(collection) {
		return types.Wrap(types.ErrStore, "upsert", fmt.Errorf("invalid collection name %q", collection))
	}
	for _, entry := range entries {
		if err := checkText(entry.Chunk.Text); err != nil {
			return types.Wrap(types.ErrStore, "upsert", fmt.Errorf("chunk %s: %w", entry.Chunk.ID, err))
		}
	}
	if err := vs.ensureCollection(ctx, collection, len(entries[0].Vector)); err != nil {
		return types.Wrap(types.ErrStore, "upsert", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, source, extension, chunk_index, overlap, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			overlap = EXCLUDED.overlap,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		collection)

	batch := &pgx.Batch{}
	for _, entry := range entries {
		c := entry.Chunk
		batch.Queue(stmt,
			c.ID,
			c.DocumentID,
			c.ParentSourcePath,
			string(c.Extension),
			c.SequenceIndex,
			c.OverlapWithPrevious,
			c.Text,
			pgvector.NewVector(entry.Vector),
			c.Metadata,
		)
	}

	// One document's chunks are stored atomically.
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return types.Wrap(types.ErrStore, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return types.Wrap(types.ErrStore, "insert chunks", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Wrap(types.ErrStore, "commit transaction", err)
	}

	return nil
}

func (vs *PGVectorStore) Query(ctx context.Context, collection string, queryEmbedding []float32, limit int) ([]models.Chunk, error) {
	if !identifierPattern.MatchString(collection) {
		return nil, types.Wrap(types.ErrStore, "query", fmt.Errorf("invalid collection name %q", collection))
	}

	var exists bool
	if err := vs.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", collection).Scan(&exists); err != nil {
		return nil, types.Wrap(types.ErrStore, "query", err)
	}
	if !exists {
		return nil, nil
	}

	// Query similar chunks
	query := fmt.Sprintf(`
		SELECT id, document_id, source, extension, chunk_index, overlap, content, metadata
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		collection)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, types.Wrap(types.ErrStore, "query", fmt.Errorf("failed to query chunks: %w", err))
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		var ext string
		err := rows.Scan(
			&c.ID,
			&c.DocumentID,
			&c.ParentSourcePath,
			&ext,
			&c.SequenceIndex,
			&c.OverlapWithPrevious,
			&c.Text,
			&c.Metadata,
		)
		if err != nil {
			return nil, types.Wrap(types.ErrStore, "query", fmt.Errorf("failed to scan row: %w", err))
		}
		c.Extension = models.Extension(ext)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Wrap(types.ErrStore, "query", err)
	}

	return chunks, nil
}

func (vs *PGVectorStore) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}

// checkText rejects text Postgres TEXT cannot hold. The loader strips both
// cases, so stored content always matches the split chunk.
func checkText(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("text is not valid UTF-8")
	}
	if strings.ContainsRune(s, 0) {
		return fmt.Errorf("text contains a NUL byte")
	}
	return nil
}
