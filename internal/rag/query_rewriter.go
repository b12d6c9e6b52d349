package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/docreader/internal/llm"
)

// QueryRewriter expands a question into variants for multi-query retrieval.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string) []string
}

type LLMQueryRewriter struct {
	gateway  llm.Gateway
	provider string
	model    string
}

func NewLLMQueryRewriter(gw llm.Gateway, provider, model string) *LLMQueryRewriter {
	return &LLMQueryRewriter{gateway: gw, provider: provider, model: model}
}

// Rewrite always returns the original question first. Model failures
// reduce it to just that question.
func (r *LLMQueryRewriter) Rewrite(ctx context.Context, query string) []string {
	resp, err := r.gateway.Chat(ctx, llm.ChatRequest{
		Provider: r.provider,
		Model:    r.model,
		Messages: []llm.Message{
			llm.SystemMessage(`You are a search query optimizer. Given a user question, generate 3 alternative
versions of the question that would help retrieve relevant passages from a document.
Each alternative should approach the question from a different angle.
Return ONLY the 3 questions, one per line, no numbering or bullets.`),
			llm.UserMessage(query),
		},
		Temperature: 0.7,
	})
	if err != nil {
		slog.Warn("query rewrite failed", "error", err)
		return []string{query}
	}

	queries := []string{query}
	for _, line := range strings.Split(strings.TrimSpace(resp.Content), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && line != query {
			queries = append(queries, line)
		}
	}
	return queries
}

// HyDE writes a hypothetical passage answering the question; its embedding
// often lands closer to the relevant chunks than the question's does.
type HyDE struct {
	gateway  llm.Gateway
	provider string
	model    string
}

func NewHyDE(gw llm.Gateway, provider, model string) *HyDE {
	return &HyDE{gateway: gw, provider: provider, model: model}
}

func (h *HyDE) GenerateHypothetical(ctx context.Context, query string) (string, error) {
	resp, err := h.gateway.Chat(ctx, llm.ChatRequest{
		Provider: h.provider,
		Model:    h.model,
		Messages: []llm.Message{
			llm.SystemMessage(`Write a short, factual paragraph that would perfectly answer the following question.
Write as if you are writing a passage from a reference document. Do not mention the question itself.`),
			llm.UserMessage(query),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate hypothetical document: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
