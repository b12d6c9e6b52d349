package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/docreader/internal/config"
	"github.com/nikhilbhutani/docreader/internal/retry"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	embedProvider    string
	policy           retry.Policy
}

// GatewayOptions wires already-constructed providers into a Gateway.
type GatewayOptions struct {
	Default  string
	Fallback string
	// Embeddings names the provider used for Embed when the request does
	// not pick one; defaults to "openai".
	Embeddings string
	Policy     retry.Policy
}

func NewGateway(opts GatewayOptions, providers ...Provider) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider, len(providers)),
		defaultProvider:  opts.Default,
		fallbackProvider: opts.Fallback,
		embedProvider:    opts.Embeddings,
		policy:           opts.Policy,
	}
	if g.embedProvider == "" {
		g.embedProvider = "openai"
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		return g.chatWithRetry(ctx, g.fallbackProvider, req)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var resp *ChatResponse
	err = retry.Do(ctx, g.policy, IsTransient, func(ctx context.Context, attempt int) error {
		var callErr error
		resp, callErr = p.ChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", providerName, err)
	}
	slog.Debug("chat completed",
		"provider", providerName,
		"model", resp.Model,
		"tokens", resp.TotalTokens,
		"elapsed_ms", resp.Elapsed.Milliseconds(),
	)
	return resp, nil
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.embedProvider
	}

	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var resp *EmbeddingResponse
	err = retry.Do(ctx, g.policy, IsTransient, func(ctx context.Context, attempt int) error {
		var callErr error
		resp, callErr = p.GenerateEmbedding(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("%s embed: %w", providerName, err)
	}
	return resp, nil
}

// NewGatewayFromConfig registers the Azure OpenAI provider, plus Anthropic
// when a key is configured. Azure OpenAI is the fallback for synthesis.
func NewGatewayFromConfig(cfg *config.Config) Gateway {
	providers := []Provider{NewOpenAIProvider(cfg.Azure, cfg.Embedding)}
	if cfg.Synthesis.AnthropicKey != "" {
		model := cfg.Synthesis.Model
		if !strings.HasPrefix(model, "claude") {
			model = ""
		}
		providers = append(providers, NewAnthropicProvider(cfg.Synthesis.AnthropicKey, model))
	}
	return NewGateway(GatewayOptions{
		Default:    cfg.Synthesis.Provider,
		Fallback:   "openai",
		Embeddings: "openai",
		Policy:     retry.FromConfig(cfg.Retry),
	}, providers...)
}
