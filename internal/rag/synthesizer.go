package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/docreader/internal/llm"
	"github.com/nikhilbhutani/docreader/internal/vectorstore"
	"github.com/nikhilbhutani/docreader/pkg/tokenizer"
)

const (
	synthSystemPrompt = "You read books and answer questions over it."

	answerTemplate = `Context information from multiple sources is below.
---------------------
%s
---------------------
Given the information from multiple sources and not prior knowledge, answer the query.
If the context does not contain the answer, say so.
Query: %s
Answer: `

	refineTemplate = `The original query is as follows: %s
We have provided an existing answer: %s
We have the opportunity to refine the existing answer (only if needed) with some more context below.
------------
%s
------------
Given the new context, refine the original answer to better answer the query. If the context isn't useful, return the original answer.
Refined Answer: `
)

// Synthesizer writes an answer from retrieved chunks.
type Synthesizer struct {
	gateway       llm.Gateway
	provider      string
	model         string
	temperature   float64
	contextTokens int
}

type SynthesizerOptions struct {
	Provider    string
	Model       string
	Temperature float64
	// ContextTokens caps the context packed into a single prompt.
	ContextTokens int
}

func NewSynthesizer(gw llm.Gateway, opts SynthesizerOptions) *Synthesizer {
	if opts.ContextTokens <= 0 {
		opts.ContextTokens = 3000
	}
	return &Synthesizer{
		gateway:       gw,
		provider:      opts.Provider,
		model:         opts.Model,
		temperature:   opts.Temperature,
		contextTokens: opts.ContextTokens,
	}
}

type Synthesis struct {
	Answer  string
	Tokens  int
	CostUSD float64
}

func (s *Synthesizer) Synthesize(ctx context.Context, query string, chunks []vectorstore.SearchResult, mode ResponseMode) (Synthesis, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = fmt.Sprintf("[Source %d] %s page %d\n%s", i+1, c.Source.Filename, c.Source.PageNum, c.Content)
	}

	if len(texts) == 0 {
		texts = []string{"(no relevant context was found)"}
	}

	var (
		out    Synthesis
		answer string
		err    error
	)
	switch mode {
	case Compact:
		answer, err = s.compact(ctx, query, s.pack(texts), &out)
	case TreeSummarize, "":
		answer, err = s.treeSummarize(ctx, query, s.pack(texts), &out)
	default:
		err = fmt.Errorf("unknown response mode %q", mode)
	}
	out.Answer = answer
	return out, err
}

func (s *Synthesizer) compact(ctx context.Context, query string, groups []string, out *Synthesis) (string, error) {
	answer, err := s.ask(ctx, fmt.Sprintf(answerTemplate, groups[0], query), out)
	if err != nil {
		return "", err
	}
	for _, g := range groups[1:] {
		answer, err = s.ask(ctx, fmt.Sprintf(refineTemplate, query, answer, g), out)
		if err != nil {
			return "", err
		}
	}
	return answer, nil
}

func (s *Synthesizer) treeSummarize(ctx context.Context, query string, groups []string, out *Synthesis) (string, error) {
	for {
		answers := make([]string, len(groups))
		for i, g := range groups {
			a, err := s.ask(ctx, fmt.Sprintf(answerTemplate, g, query), out)
			if err != nil {
				return "", err
			}
			answers[i] = a
		}
		if len(answers) == 1 {
			return answers[0], nil
		}

		next := s.pack(answers)
		if len(next) >= len(groups) {
			// Partial answers no longer shrink; pair them off to guarantee progress.
			next = pairUp(answers)
		}
		groups = next
	}
}

func (s *Synthesizer) ask(ctx context.Context, prompt string, out *Synthesis) (string, error) {
	resp, err := s.gateway.Chat(ctx, llm.ChatRequest{
		Provider: s.provider,
		Model:    s.model,
		Messages: []llm.Message{
			llm.SystemMessage(synthSystemPrompt),
			llm.UserMessage(prompt),
		},
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	out.Tokens += resp.TotalTokens
	out.CostUSD += resp.CostUSD
	return strings.TrimSpace(resp.Content), nil
}

// pack joins texts greedily into groups of at most contextTokens. A text
// larger than the budget forms a group on its own.
func (s *Synthesizer) pack(texts []string) []string {
	var groups []string
	var current []string
	size := 0
	for _, t := range texts {
		n := tokenizer.CountTokens(t)
		if len(current) > 0 && size+n > s.contextTokens {
			groups = append(groups, strings.Join(current, "\n\n"))
			current, size = nil, 0
		}
		current = append(current, t)
		size += n
	}
	if len(current) > 0 {
		groups = append(groups, strings.Join(current, "\n\n"))
	}
	return groups
}

func pairUp(texts []string) []string {
	var out []string
	for i := 0; i < len(texts); i += 2 {
		if i+1 < len(texts) {
			out = append(out, texts[i]+"\n\n"+texts[i+1])
		} else {
			out = append(out, texts[i])
		}
	}
	return out
}
