// Package app assembles the document reader from configuration for the
// API server, the queue worker and the CLIs.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/docreader/internal/config"
	"github.com/nikhilbhutani/docreader/internal/database"
	"github.com/nikhilbhutani/docreader/internal/document"
	"github.com/nikhilbhutani/docreader/internal/llm"
	"github.com/nikhilbhutani/docreader/internal/rag"
	"github.com/nikhilbhutani/docreader/internal/reader"
	"github.com/nikhilbhutani/docreader/internal/vectorstore"
)

// SetupLogging installs a JSON slog handler at LOG_LEVEL as the default.
func SetupLogging(cfg *config.Config, w io.Writer) {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
}

type Services struct {
	Reader *reader.Reader
	// Pool is nil unless RAG_VECTOR_STORE=pgvector.
	Pool  *pgxpool.Pool
	store vectorstore.VectorStore
}

func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	s := &Services{}

	switch cfg.RAG.VectorStore {
	case "pgvector":
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect vector store: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, cfg.Database.MigrationsPath); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate vector store: %w", err)
		}
		s.Pool = pool
		s.store = vectorstore.NewPgVectorStore(pool)
	default:
		s.store = vectorstore.NewMemoryStore()
	}

	gw := llm.NewGatewayFromConfig(cfg)
	pipeline := rag.NewPipelineFromConfig(cfg, s.store, gw)
	extractor := document.NewExtractorFromConfig(cfg.OCR)
	s.Reader = reader.New(extractor, pipeline, rag.QueryOptionsFromConfig(cfg.RAG))

	slog.Info("document reader ready",
		"vector_store", cfg.RAG.VectorStore,
		"synth_provider", cfg.Synthesis.Provider,
		"response_mode", cfg.RAG.ResponseMode,
	)
	return s, nil
}

// PurgeStale periodically removes pgvector rows from indexes that were never
// closed. It returns when ctx is done and is a no-op for the memory store.
func (s *Services) PurgeStale(ctx context.Context, every, olderThan time.Duration) {
	pg, ok := s.store.(*vectorstore.PgVectorStore)
	if !ok {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.PurgeStale(ctx, olderThan)
			if err != nil {
				slog.Warn("stale chunk purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged stale chunks", "rows", n)
			}
		}
	}
}

func (s *Services) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
