package embedding

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docreader/internal/llm"
)

// countingGateway embeds "n" as the vector {n} and tracks concurrency.
type countingGateway struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int32
	failOn   string
}

func (g *countingGateway) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func (g *countingGateway) Provider(string) (llm.Provider, error) { return nil, errors.New("not used") }

func (g *countingGateway) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.inFlight++
	g.peak = max(g.peak, g.inFlight)
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()
	time.Sleep(5 * time.Millisecond)

	out := make([][]float32, len(req.Input))
	for i, in := range req.Input {
		if in == g.failOn {
			return nil, errors.New("quota exceeded")
		}
		n, _ := strconv.Atoi(in)
		out[i] = []float32{float32(n)}
	}
	return &llm.EmbeddingResponse{Embeddings: out}, nil
}

func inputs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

func TestEmbedKeepsOrderWithBoundedWorkers(t *testing.T) {
	gw := &countingGateway{}
	svc := NewService(gw, "", WithBatchSize(2), WithWorkers(3))

	vecs, err := svc.Embed(context.Background(), inputs(21))
	require.NoError(t, err)
	require.Len(t, vecs, 21)
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i)}, v)
	}
	assert.Equal(t, int32(11), gw.calls.Load())
	assert.LessOrEqual(t, gw.peak, 3)
}

func TestEmbedPropagatesBatchError(t *testing.T) {
	svc := NewService(&countingGateway{failOn: "7"}, "", WithBatchSize(4))

	_, err := svc.Embed(context.Background(), inputs(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed batch 1")
}

func TestEmbedSingle(t *testing.T) {
	v, err := NewService(&countingGateway{}, "").EmbedSingle(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, []float32{5}, v)
}
