package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// MemoryStore keeps chunks in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	indexes map[uuid.UUID][]memChunk
}

type memChunk struct {
	Chunk
	vec  []float64
	norm float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[uuid.UUID][]memChunk)}
}

func (s *MemoryStore) Upsert(_ context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		vec := toFloat64(c.Embedding)
		mc := memChunk{Chunk: c, vec: vec, norm: floats.Norm(vec, 2)}

		existing := s.indexes[c.IndexID]
		replaced := false
		for i := range existing {
			if existing[i].ID == c.ID {
				existing[i] = mc
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, mc)
		}
		s.indexes[c.IndexID] = existing
	}
	return nil
}

func (s *MemoryStore) SimilaritySearch(_ context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	q := toFloat64(query)
	qNorm := floats.Norm(q, 2)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, c := range s.indexes[opts.IndexID] {
		if len(c.vec) != len(q) {
			return nil, fmt.Errorf("similarity search: query has %d dimensions, chunk %s has %d", len(q), c.ID, len(c.vec))
		}
		score := 0.0
		if qNorm > 0 && c.norm > 0 {
			score = floats.Dot(q, c.vec) / (qNorm * c.norm)
		}
		if opts.MinScore > 0 && score < opts.MinScore {
			continue
		}
		results = append(results, SearchResult{
			ChunkID:    c.ID,
			IndexID:    c.IndexID,
			Content:    c.Content,
			Score:      score,
			ChunkIndex: c.ChunkIndex,
			Source:     c.Source,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

func (s *MemoryStore) DeleteIndex(_ context.Context, indexID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, indexID)
	return nil
}

// Len reports how many chunks are held across all indexes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, chunks := range s.indexes {
		n += len(chunks)
	}
	return n
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
