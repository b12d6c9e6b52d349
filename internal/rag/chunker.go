package rag

import (
	"github.com/nikhilbhutani/docreader/internal/models"
	"github.com/nikhilbhutani/docreader/pkg/chunker"
	"github.com/nikhilbhutani/docreader/pkg/tokenizer"
)

type ChunkResult struct {
	Content    string
	Index      int
	TokenCount int
	Source     models.SourceRef
}

// ChunkDocuments splits each page into token-sized chunks that keep the
// page's source reference. Index runs across all documents.
func ChunkDocuments(docs []models.Document, opts chunker.ChunkOptions) []ChunkResult {
	if opts.Length == nil {
		opts.Length = tokenizer.CountTokens
	}
	c := chunker.New()

	var results []ChunkResult
	for _, doc := range docs {
		for _, ch := range c.Chunk(doc.Text, opts) {
			results = append(results, ChunkResult{
				Content:    ch.Content,
				Index:      len(results),
				TokenCount: tokenizer.CountTokens(ch.Content),
				Source:     doc.Metadata,
			})
		}
	}
	return results
}
