package llm

import (
	"context"
	"time"
)

// Provider is one chat/embedding backend, registered with a Gateway under
// Name().
type Provider interface {
	Name() string
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}

// Gateway picks a provider per request, retries transient failures and
// falls back to a second provider for chat.
type Gateway interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
	Provider(name string) (Provider, error)
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// ChatRequest leaves Provider and Model empty to use the gateway's and the
// provider's defaults.
type ChatRequest struct {
	Provider    string
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSONObject asks for a single JSON object as the reply.
	JSONObject bool
}

type ChatResponse struct {
	Provider     string
	Model        string
	Content      string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
	Elapsed      time.Duration
}

type EmbeddingRequest struct {
	Provider string
	Model    string
	Input    []string
}

// EmbeddingResponse holds one vector per input, in input order.
type EmbeddingResponse struct {
	Provider   string
	Model      string
	Embeddings [][]float32
	Tokens     int
	CostUSD    float64
}
