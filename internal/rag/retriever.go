// Package rag builds a throwaway vector index over a document's pages and
// answers questions against it.
package rag

import (
	"context"

	"github.com/nikhilbhutani/docreader/internal/config"
	"github.com/nikhilbhutani/docreader/internal/models"
)

// Retriever turns documents into a queryable Index.
type Retriever interface {
	Ingest(ctx context.Context, docs []models.Document) (Index, error)
}

// Index answers questions over the documents it was built from. Close
// releases everything it stored; an Index is not usable afterwards.
type Index interface {
	Query(ctx context.Context, question string, opts QueryOptions) (*Response, error)
	Close(ctx context.Context) error
}

type ResponseMode string

const (
	// TreeSummarize answers each packed group of chunks, then combines the
	// partial answers until one remains.
	TreeSummarize ResponseMode = "tree_summarize"
	// Compact answers from the first packed group and refines that answer
	// with each following group.
	Compact ResponseMode = "compact"
)

type QueryOptions struct {
	TopK       int
	RerankTopN int
	Mode       ResponseMode
	MinScore   float64
	Rewrite    bool // expand the question into variants before retrieval
	HyDE       bool // retrieve with a hypothetical answer's embedding
}

// DefaultQueryOptions retrieves 15 chunks, keeps the best 5 after
// reranking and answers with tree summarization.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{TopK: 15, RerankTopN: 5, Mode: TreeSummarize}
}

// QueryOptionsFromConfig overlays the RAG_* settings onto the defaults.
func QueryOptionsFromConfig(cfg config.RAGConfig) QueryOptions {
	opts := DefaultQueryOptions()
	if cfg.TopK > 0 {
		opts.TopK = cfg.TopK
	}
	if cfg.RerankTopN > 0 {
		opts.RerankTopN = cfg.RerankTopN
	}
	if cfg.ResponseMode != "" {
		opts.Mode = ResponseMode(cfg.ResponseMode)
	}
	return opts
}

type SourceNode struct {
	Source  models.SourceRef `json:"source"`
	Content string           `json:"content"`
	Score   float64          `json:"score"`
}

type Response struct {
	Answer  string       `json:"answer"`
	Sources []SourceNode `json:"sources"`
	Tokens  int          `json:"tokens"`
	CostUSD float64      `json:"cost_usd"`
}
