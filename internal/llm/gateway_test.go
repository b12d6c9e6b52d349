package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docreader/internal/apperr"
	"github.com/nikhilbhutani/docreader/internal/retry"
)

type fakeProvider struct {
	name      string
	chatErrs  []error
	chatCalls int
	embedErr  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ChatCompletion(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	f.chatCalls++
	if len(f.chatErrs) > 0 {
		err := f.chatErrs[0]
		f.chatErrs = f.chatErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &ChatResponse{Provider: f.name, Content: "ok from " + f.name}, nil
}

func (f *fakeProvider) GenerateEmbedding(_ context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(req.Input))
	for i := range req.Input {
		out[i] = []float32{float32(i), 1}
	}
	return &EmbeddingResponse{Provider: f.name, Embeddings: out}, nil
}

func instantPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

var unavailable = &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable, Message: "busy"}

func TestGatewayRetriesTransientChatErrors(t *testing.T) {
	p := &fakeProvider{name: "openai", chatErrs: []error{unavailable, unavailable}}
	gw := NewGateway(GatewayOptions{Default: "openai", Policy: instantPolicy()}, p)

	resp, err := gw.Chat(context.Background(), ChatRequest{Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "ok from openai", resp.Content)
	assert.Equal(t, 3, p.chatCalls)
}

func TestGatewayDoesNotRetryPermanentErrors(t *testing.T) {
	bad := &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "bad"}
	p := &fakeProvider{name: "openai", chatErrs: []error{bad}}
	gw := NewGateway(GatewayOptions{Default: "openai", Policy: instantPolicy()}, p)

	_, err := gw.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, p.chatCalls)
	assert.False(t, errors.Is(err, apperr.ErrTransientFailure))
}

func TestGatewayFallsBack(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", chatErrs: []error{unavailable, unavailable, unavailable}}
	fallback := &fakeProvider{name: "openai"}
	gw := NewGateway(GatewayOptions{Default: "anthropic", Fallback: "openai", Policy: instantPolicy()}, primary, fallback)

	resp, err := gw.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 3, primary.chatCalls)
	assert.Equal(t, 1, fallback.chatCalls)
}

func TestGatewayUnknownProvider(t *testing.T) {
	gw := NewGateway(GatewayOptions{Default: "openai", Policy: instantPolicy()})

	_, err := gw.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `provider "openai" not configured`)
}

func TestGatewayEmbedUsesEmbeddingProvider(t *testing.T) {
	gw := NewGateway(GatewayOptions{Default: "anthropic", Policy: instantPolicy()},
		&fakeProvider{name: "anthropic", embedErr: errors.New("unsupported")},
		&fakeProvider{name: "openai"},
	)

	resp, err := gw.Embed(context.Background(), EmbeddingRequest{Input: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Provider)
	assert.Len(t, resp.Embeddings, 2)
}
