package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

// MemoryStore is an in-process vector store using brute-force cosine
// similarity. Nothing survives a restart.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension int
	order     []string
	entries   map[string]models.IndexEntry
}

func NewMemory() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		col = &memoryCollection{
			dimension: len(entries[0].Vector),
			entries:   make(map[string]models.IndexEntry),
		}
	}
	for _, e := range entries {
		if len(e.Vector) != col.dimension {
			return types.Wrap(types.ErrStore, "upsert",
				fmt.Errorf("vector dimension mismatch: got %d, want %d", len(e.Vector), col.dimension))
		}
	}
	for _, e := range entries {
		if _, seen := col.entries[e.Chunk.ID]; !seen {
			col.order = append(col.order, e.Chunk.ID)
		}
		e.Collection = collection
		col.entries[e.Chunk.ID] = e
	}
	s.collections[collection] = col
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, vector []float32, topK int) ([]models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok || topK <= 0 {
		return nil, nil
	}
	if len(vector) != col.dimension {
		return nil, types.Wrap(types.ErrStore, "query",
			fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vector), col.dimension))
	}

	type scored struct {
		chunk models.Chunk
		score float64
	}
	results := make([]scored, 0, len(col.order))
	for _, id := range col.order {
		e := col.entries[id]
		results = append(results, scored{chunk: e.Chunk, score: cosine(e.Vector, vector)})
	}
	// Ties keep insertion order.
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if topK > len(results) {
		topK = len(results)
	}
	chunks := make([]models.Chunk, topK)
	for i := range chunks {
		chunks[i] = results[i].chunk
	}
	return chunks, nil
}

// Len reports how many entries a collection holds.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if col, ok := s.collections[collection]; ok {
		return len(col.entries)
	}
	return 0
}

func (s *MemoryStore) Close() error { return nil }

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
