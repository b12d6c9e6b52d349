package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client), mr
}

func TestSetGetDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type answer struct {
		Text  string `json:"text"`
		Pages []int  `json:"pages"`
	}
	require.NoError(t, c.Set(ctx, "k", answer{Text: "42", Pages: []int{2}}, time.Minute))

	var got answer
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, answer{Text: "42", Pages: []int{2}}, got)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)
}

func TestSetHonoursTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	var v string
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrMiss)
}

func TestIncrWindow(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.IncrWindow(ctx, "rl:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, time.Minute, mr.TTL("docreader:rl:1.2.3.4"))

	mr.FastForward(time.Minute + time.Second)
	n, err := c.IncrWindow(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAnswerKey(t *testing.T) {
	doc := []byte("%PDF-1.4 body")
	assert.Equal(t, AnswerKey(doc, "What is due?"), AnswerKey(doc, "  what is due? "))
	assert.NotEqual(t, AnswerKey(doc, "What is due?"), AnswerKey(doc, "Who paid?"))
	assert.NotEqual(t, AnswerKey(doc, "q"), AnswerKey([]byte("other"), "q"))
}

func TestPing(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))
	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}
