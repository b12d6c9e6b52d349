package completion

import (
	"sync"

	"github.com/nikhilbhutani/docreader/internal/llm"
)

// Usage is a cumulative token count for one Caller. Snapshots returned by
// the extraction calls always carry the running totals, so the cost of a
// single call is the difference between two successive snapshots.
type Usage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Model            string `json:"model"`
}

func (u Usage) TotalTokens() int { return u.PromptTokens + u.CompletionTokens }

// CostUSD estimates the spend represented by u, priced at u.Model.
func (u Usage) CostUSD() float64 {
	return llm.CalculateCost(u.Model, u.PromptTokens, u.CompletionTokens)
}

// Sub returns the per-call delta between u and an earlier snapshot.
func (u Usage) Sub(earlier Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens - earlier.PromptTokens,
		CompletionTokens: u.CompletionTokens - earlier.CompletionTokens,
		Model:            u.Model,
	}
}

type usageCounter struct {
	mu    sync.Mutex
	total Usage
}

func (c *usageCounter) add(prompt, completion int, model string) Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prompt > 0 {
		c.total.PromptTokens += prompt
	}
	if completion > 0 {
		c.total.CompletionTokens += completion
	}
	if model != "" {
		c.total.Model = model
	}
	return c.total
}

func (c *usageCounter) snapshot() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
