package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

type QdrantConfig struct {
	Host   string
	Port   int // gRPC port
	APIKey string
	UseTLS bool
}

// QdrantStore maps each collection onto a Qdrant collection using cosine
// distance.
type QdrantStore struct {
	client *qdrant.Client

	mu      sync.Mutex
	created map[string]bool
}

func NewQdrant(config QdrantConfig) (*QdrantStore, error) {
	if config.Port == 0 {
		config.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, types.Wrap(types.ErrStore, "connect qdrant", err)
	}
	return &QdrantStore{client: client, created: make(map[string]bool)}, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, collection string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created[collection] {
		return nil
	}
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", collection, err)
		}

		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      "document_id",
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("create document_id index: %w", err)
		}
	}
	s.created[collection] = true
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection, len(entries[0].Vector)); err != nil {
		return types.Wrap(types.ErrStore, "upsert", err)
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, entry := range entries {
		c := entry.Chunk
		metadata := make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			metadata[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(c.ID),
			Vectors: qdrant.NewVectorsDense(entry.Vector),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": c.DocumentID,
				"source":      c.ParentSourcePath,
				"extension":   string(c.Extension),
				"chunk_index": c.SequenceIndex,
				"overlap":     c.OverlapWithPrevious,
				"content":     c.Text,
				"metadata":    metadata,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return types.Wrap(types.ErrStore, "upsert", err)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, topK int) ([]models.Chunk, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, types.Wrap(types.ErrStore, "query", err)
	}
	if !exists {
		return nil, nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, types.Wrap(types.ErrStore, "query", err)
	}

	chunks := make([]models.Chunk, 0, len(points))
	for _, point := range points {
		chunks = append(chunks, chunkFromPayload(point.GetId().GetUuid(), point.GetPayload()))
	}
	return chunks, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) models.Chunk {
	c := models.Chunk{
		ID:                  id,
		DocumentID:          payload["document_id"].GetStringValue(),
		ParentSourcePath:    payload["source"].GetStringValue(),
		Extension:           models.Extension(payload["extension"].GetStringValue()),
		SequenceIndex:       int(payload["chunk_index"].GetIntegerValue()),
		OverlapWithPrevious: int(payload["overlap"].GetIntegerValue()),
		Text:                payload["content"].GetStringValue(),
	}
	if fields := payload["metadata"].GetStructValue().GetFields(); len(fields) > 0 {
		c.Metadata = make(map[string]string, len(fields))
		for k, v := range fields {
			c.Metadata[k] = v.GetStringValue()
		}
	}
	return c
}
