package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore keeps chunks in the document_chunks table. Rows live only
// as long as the index that owns them.
type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Upsert(ctx context.Context, chunks []Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, index_id, filename, page_num, chunk_index, content, embedding, token_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET content = $6, embedding = $7, token_count = $8`,
			id, c.IndexID, c.Source.Filename, c.Source.PageNum, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), c.TokenCount,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgVectorStore) SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, index_id, content, chunk_index, filename, page_num,
		        1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 WHERE index_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(query), opts.IndexID, opts.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.IndexID, &r.Content, &r.ChunkIndex, &r.Source.Filename, &r.Source.PageNum, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if opts.MinScore > 0 && r.Score < opts.MinScore {
			continue
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PgVectorStore) DeleteIndex(ctx context.Context, indexID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM document_chunks WHERE index_id = $1", indexID); err != nil {
		return fmt.Errorf("delete index %s: %w", indexID, err)
	}
	return nil
}

// PurgeStale removes chunks left behind by indexes that were never closed,
// e.g. after a crash mid-query.
func (s *PgVectorStore) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM document_chunks WHERE created_at < now() - make_interval(secs => $1)",
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge stale chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}
