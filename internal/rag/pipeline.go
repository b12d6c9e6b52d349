package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docreader/internal/apperr"
	"github.com/nikhilbhutani/docreader/internal/config"
	"github.com/nikhilbhutani/docreader/internal/embedding"
	"github.com/nikhilbhutani/docreader/internal/llm"
	"github.com/nikhilbhutani/docreader/internal/models"
	"github.com/nikhilbhutani/docreader/internal/vectorstore"
	"github.com/nikhilbhutani/docreader/pkg/chunker"
)

// Pipeline is the Retriever backed by a vector store: chunk, embed, store,
// then per query retrieve, rerank and synthesize.
type Pipeline struct {
	store       vectorstore.VectorStore
	embedSvc    *embedding.Service
	chunkOpts   chunker.ChunkOptions
	reranker    Reranker
	synthesizer *Synthesizer
	rewriter    QueryRewriter
	hyde        *HyDE
}

type PipelineOptions struct {
	ChunkOpts   chunker.ChunkOptions
	Reranker    Reranker
	Synthesizer SynthesizerOptions
}

func NewPipeline(store vectorstore.VectorStore, embedSvc *embedding.Service, gw llm.Gateway, opts PipelineOptions) *Pipeline {
	if opts.ChunkOpts.ChunkSize == 0 {
		opts.ChunkOpts = chunker.DefaultOptions()
	}
	if opts.Reranker == nil {
		opts.Reranker = NewLLMReranker(gw, opts.Synthesizer.Provider, opts.Synthesizer.Model)
	}
	return &Pipeline{
		store:       store,
		embedSvc:    embedSvc,
		chunkOpts:   opts.ChunkOpts,
		reranker:    opts.Reranker,
		synthesizer: NewSynthesizer(gw, opts.Synthesizer),
		rewriter:    NewLLMQueryRewriter(gw, opts.Synthesizer.Provider, opts.Synthesizer.Model),
		hyde:        NewHyDE(gw, opts.Synthesizer.Provider, opts.Synthesizer.Model),
	}
}

// NewPipelineFromConfig uses the RAG_* and SYNTH_* settings.
func NewPipelineFromConfig(cfg *config.Config, store vectorstore.VectorStore, gw llm.Gateway) *Pipeline {
	embedSvc := embedding.NewService(gw, "", embedding.WithWorkers(cfg.RAG.EmbedWorkers))
	return NewPipeline(store, embedSvc, gw, PipelineOptions{
		ChunkOpts: chunker.ChunkOptions{
			ChunkSize:    cfg.RAG.ChunkSize,
			ChunkOverlap: cfg.RAG.ChunkOverlap,
			Strategy:     "sentence",
		},
		Synthesizer: SynthesizerOptions{
			Provider:    cfg.Synthesis.Provider,
			Model:       cfg.Synthesis.Model,
			Temperature: cfg.Synthesis.Temperature,
		},
	})
}

// Ingest chunks and embeds docs into a fresh index. Blank pages contribute
// nothing; a document set with no text at all is rejected.
func (p *Pipeline) Ingest(ctx context.Context, docs []models.Document) (Index, error) {
	chunks := ChunkDocuments(docs, p.chunkOpts)
	if len(chunks) == 0 {
		return nil, apperr.ExtractionFailure(nil, "no chunks generated from %d documents", len(docs))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := p.embedSvc.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}

	indexID := uuid.New()
	stored := make([]vectorstore.Chunk, len(chunks))
	for i, c := range chunks {
		stored[i] = vectorstore.Chunk{
			ID:         uuid.New(),
			IndexID:    indexID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Embedding:  embeddings[i],
			TokenCount: c.TokenCount,
			Source:     c.Source,
		}
	}

	idx := &index{id: indexID, p: p}
	if err := p.store.Upsert(ctx, stored); err != nil {
		// Partial writes must not outlive the failed ingest.
		_ = idx.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	slog.Info("index built", "index_id", indexID, "documents", len(docs), "chunks", len(stored))
	return idx, nil
}

type index struct {
	id        uuid.UUID
	p         *Pipeline
	closeOnce sync.Once
	closeErr  error
	closed    bool
	mu        sync.Mutex
}

func (i *index) Query(ctx context.Context, question string, opts QueryOptions) (*Response, error) {
	i.mu.Lock()
	closed := i.closed
	i.mu.Unlock()
	if closed {
		return nil, errors.New("query closed index")
	}
	if strings.TrimSpace(question) == "" {
		return nil, apperr.InvalidRequest("question is empty")
	}

	defaults := DefaultQueryOptions()
	if opts.TopK <= 0 {
		opts.TopK = defaults.TopK
	}
	if opts.RerankTopN <= 0 {
		opts.RerankTopN = defaults.RerankTopN
	}
	if opts.Mode == "" {
		opts.Mode = defaults.Mode
	}

	results, err := i.retrieve(ctx, question, opts)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	results, err = i.p.reranker.Rerank(ctx, question, results, opts.RerankTopN)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	syn, err := i.p.synthesizer.Synthesize(ctx, question, results, opts.Mode)
	if err != nil {
		return nil, err
	}

	sources := make([]SourceNode, len(results))
	for n, r := range results {
		sources[n] = SourceNode{Source: r.Source, Content: r.Content, Score: r.Score}
	}
	return &Response{
		Answer:  syn.Answer,
		Sources: sources,
		Tokens:  syn.Tokens,
		CostUSD: syn.CostUSD,
	}, nil
}

func (i *index) retrieve(ctx context.Context, question string, opts QueryOptions) ([]vectorstore.SearchResult, error) {
	searchOpts := vectorstore.SearchOptions{IndexID: i.id, TopK: opts.TopK, MinScore: opts.MinScore}

	if opts.HyDE {
		hypo, err := i.p.hyde.GenerateHypothetical(ctx, question)
		if err == nil && hypo != "" {
			results, err := i.search(ctx, hypo, searchOpts)
			if err == nil && len(results) > 0 {
				return results, nil
			}
		}
	}

	if opts.Rewrite {
		if queries := i.p.rewriter.Rewrite(ctx, question); len(queries) > 1 {
			return i.multiQuery(ctx, queries, searchOpts)
		}
	}

	return i.search(ctx, question, searchOpts)
}

func (i *index) search(ctx context.Context, text string, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	vec, err := i.p.embedSvc.EmbedSingle(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return i.p.store.SimilaritySearch(ctx, vec, opts)
}

// multiQuery retrieves for every variant and merges, first hit wins.
func (i *index) multiQuery(ctx context.Context, queries []string, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	seen := make(map[uuid.UUID]bool)
	var all []vectorstore.SearchResult
	var firstErr error

	for _, q := range queries {
		results, err := i.search(ctx, q, opts)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, r := range results {
			if !seen[r.ChunkID] {
				seen[r.ChunkID] = true
				all = append(all, r)
			}
		}
	}
	if len(all) == 0 && firstErr != nil {
		return nil, firstErr
	}
	if len(all) > opts.TopK {
		all = all[:opts.TopK]
	}
	return all, nil
}

func (i *index) Close(ctx context.Context) error {
	i.closeOnce.Do(func() {
		i.mu.Lock()
		i.closed = true
		i.mu.Unlock()
		i.closeErr = i.p.store.DeleteIndex(ctx, i.id)
		if i.closeErr != nil {
			slog.Error("failed to drop index", "index_id", i.id, "error", i.closeErr)
		}
	})
	return i.closeErr
}
