package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/docreader/internal/llm"
)

type Service struct {
	gateway   llm.Gateway
	model     string
	batchSize int
	workers   int
}

type Option func(*Service)

// WithWorkers bounds how many batches are in flight at once.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewService embeds through gw. An empty model lets the provider use its
// configured embedding deployment.
func NewService(gw llm.Gateway, model string, opts ...Option) *Service {
	s := &Service{gateway: gw, model: model, batchSize: 100, workers: 3}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Embed returns one vector per text, in input order.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		batch := texts[start:end]
		offset := start

		g.Go(func() error {
			resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
				Model: s.model,
				Input: batch,
			})
			if err != nil {
				return fmt.Errorf("embed batch %d: %w", offset/s.batchSize, err)
			}
			if len(resp.Embeddings) != len(batch) {
				return fmt.Errorf("embed batch %d: got %d vectors for %d inputs", offset/s.batchSize, len(resp.Embeddings), len(batch))
			}
			copy(out[offset:], resp.Embeddings)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}
