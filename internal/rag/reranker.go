package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/nikhilbhutani/docreader/internal/llm"
	"github.com/nikhilbhutani/docreader/internal/vectorstore"
)

// Reranker re-scores retrieved chunks and keeps the best topN.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []vectorstore.SearchResult, topN int) ([]vectorstore.SearchResult, error)
}

// LLMReranker asks a chat model to judge each chunk's relevance in one call.
type LLMReranker struct {
	gateway  llm.Gateway
	provider string
	model    string
}

func NewLLMReranker(gw llm.Gateway, provider, model string) *LLMReranker {
	return &LLMReranker{gateway: gw, provider: provider, model: model}
}

const rerankPrompt = `You are a relevance scoring assistant. Given a query and a list of text chunks,
score each chunk from 0.0 to 1.0 based on how relevant it is to the query.
Return ONLY a JSON object of the form {"scores": [{"index": 0, "score": 0.95}, {"index": 1, "score": 0.3}]}.`

// Rerank keeps the retrieval order when the model call or its output is
// unusable, so a flaky reranker degrades to plain similarity ranking.
func (r *LLMReranker) Rerank(ctx context.Context, query string, results []vectorstore.SearchResult, topN int) ([]vectorstore.SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}
	if topN <= 0 || topN > len(results) {
		topN = len(results)
	}

	var sb strings.Builder
	for i, res := range results {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i, truncate(res.Content, 500))
	}

	resp, err := r.gateway.Chat(ctx, llm.ChatRequest{
		Provider: r.provider,
		Model:    r.model,
		Messages: []llm.Message{
			llm.SystemMessage(rerankPrompt),
			llm.UserMessage(fmt.Sprintf("Query: %s\n\nChunks:\n%s", query, sb.String())),
		},
		JSONObject: true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("rerank failed, keeping similarity order", "error", err)
		return results[:topN], nil
	}

	scores, err := parseScores(resp.Content)
	if err != nil {
		slog.Warn("rerank output unusable, keeping similarity order", "error", err)
		return results[:topN], nil
	}

	// Chunks the model judged come first by its score; the rest keep their
	// similarity order behind them.
	scored := make([]vectorstore.SearchResult, 0, len(results))
	var unscored []vectorstore.SearchResult
	for i, res := range results {
		if score, ok := scores[i]; ok {
			res.Score = score
			scored = append(scored, res)
		} else {
			unscored = append(unscored, res)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return append(scored, unscored...)[:topN], nil
}

func parseScores(content string) (map[int]float64, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	type scored struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	var wrapped struct {
		Scores []scored `json:"scores"`
	}
	var list []scored
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && len(wrapped.Scores) > 0 {
		list = wrapped.Scores
	} else if err := json.Unmarshal([]byte(content), &list); err != nil {
		return nil, fmt.Errorf("parse rerank scores: %w", err)
	}

	scores := make(map[int]float64, len(list))
	for _, s := range list {
		scores[s.Index] = s.Score
	}
	return scores, nil
}

// SimilarityReranker only truncates; results are already in similarity
// order.
type SimilarityReranker struct{}

func (SimilarityReranker) Rerank(_ context.Context, _ string, results []vectorstore.SearchResult, topN int) ([]vectorstore.SearchResult, error) {
	if topN > 0 && topN < len(results) {
		return results[:topN], nil
	}
	return results, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
