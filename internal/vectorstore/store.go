package vectorstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docreader/internal/models"
)

// Chunk is an embedded slice of one page. IndexID scopes it to the
// short-lived index built for a single query.
type Chunk struct {
	ID         uuid.UUID
	IndexID    uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
	TokenCount int
	Source     models.SourceRef
}

type SearchOptions struct {
	IndexID  uuid.UUID
	TopK     int
	MinScore float64
}

type SearchResult struct {
	ChunkID    uuid.UUID        `json:"chunk_id"`
	IndexID    uuid.UUID        `json:"index_id"`
	Content    string           `json:"content"`
	Score      float64          `json:"score"`
	ChunkIndex int              `json:"chunk_index"`
	Source     models.SourceRef `json:"source"`
}

type VectorStore interface {
	Upsert(ctx context.Context, chunks []Chunk) error
	// SimilaritySearch returns the TopK chunks of one index by cosine
	// similarity, best first.
	SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error)
	// DeleteIndex drops every chunk stored under indexID.
	DeleteIndex(ctx context.Context, indexID uuid.UUID) error
}
