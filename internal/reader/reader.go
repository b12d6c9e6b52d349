// Package reader answers a question about a single PDF: extract its pages,
// index them, query the index, then drop it.
package reader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/docreader/internal/apperr"
	"github.com/nikhilbhutani/docreader/internal/document"
	"github.com/nikhilbhutani/docreader/internal/models"
	"github.com/nikhilbhutani/docreader/internal/rag"
)

// PageSource produces per-page text; *document.Extractor satisfies it.
type PageSource interface {
	Extract(ctx context.Context, src document.Source) (document.PageText, error)
}

type Reader struct {
	extractor PageSource
	retriever rag.Retriever
	opts      rag.QueryOptions
}

func New(extractor PageSource, retriever rag.Retriever, opts rag.QueryOptions) *Reader {
	return &Reader{extractor: extractor, retriever: retriever, opts: opts}
}

type ReadRequest struct {
	Filename string
	Source   document.Source
	Question string
}

// Read returns the answer with its sources in retrieval order. The index
// built for the request is always closed before Read returns.
func (r *Reader) Read(ctx context.Context, req ReadRequest) (*models.AnswerResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, apperr.InvalidRequest("question is empty")
	}
	start := time.Now()

	pages, err := r.extractor.Extract(ctx, req.Source)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	if pages.Blank() {
		return nil, apperr.ExtractionFailure(nil, "no text recovered from %q", req.Filename)
	}

	docs := Documents(req.Filename, pages)
	idx, err := r.retriever.Ingest(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	defer func() {
		if err := idx.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("failed to close index", "filename", req.Filename, "error", err)
		}
	}()

	resp, err := idx.Query(ctx, req.Question, r.opts)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	result := &models.AnswerResult{
		Answer:  resp.Answer,
		Sources: make([]models.SourceRef, len(resp.Sources)),
	}
	for i, s := range resp.Sources {
		result.Sources[i] = s.Source
	}

	slog.Info("document question answered",
		"filename", req.Filename,
		"pages", len(pages),
		"sources", len(result.Sources),
		"tokens", resp.Tokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Documents makes one Document per page, blank pages included.
func Documents(filename string, pages document.PageText) []models.Document {
	docs := make([]models.Document, len(pages))
	for i, p := range pages {
		docs[i] = models.Document{
			Text:     p.Text,
			Metadata: models.SourceRef{Filename: filename, PageNum: p.Number},
		}
	}
	return docs
}
