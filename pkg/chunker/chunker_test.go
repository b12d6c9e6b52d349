package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(s string) int { return len(strings.Fields(s)) }

func TestSentenceChunksRespectSizeAndOverlap(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine. Ten eleven twelve."
	chunks := New().Chunk(text, ChunkOptions{ChunkSize: 6, ChunkOverlap: 3, Strategy: "sentence", Length: words})

	require.Len(t, chunks, 3)
	assert.Equal(t, "One two three. Four five six.", chunks[0].Content)
	assert.Equal(t, "Four five six. Seven eight nine.", chunks[1].Content)
	assert.Equal(t, "Seven eight nine. Ten eleven twelve.", chunks[2].Content)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, words(c.Content), 6)
	}
}

func TestShortTextIsOneChunk(t *testing.T) {
	chunks := New().Chunk("  Just a line.  ", DefaultOptions())
	require.Len(t, chunks, 1)
	assert.Equal(t, "Just a line.", chunks[0].Content)
}

func TestBlankTextHasNoChunks(t *testing.T) {
	assert.Empty(t, New().Chunk(" \n\t ", DefaultOptions()))
}

func TestLongSentenceIsSplitOnWords(t *testing.T) {
	text := strings.Repeat("word ", 25)
	chunks := New().Chunk(text, ChunkOptions{ChunkSize: 10, ChunkOverlap: 2, Length: words})

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, words(c.Content), 10)
	}
}

func TestFixedWindowsOverlap(t *testing.T) {
	text := "a b c d e f g h i j"
	chunks := New().Chunk(text, ChunkOptions{ChunkSize: 4, ChunkOverlap: 1, Strategy: "fixed", Length: words})

	require.Len(t, chunks, 3)
	assert.Equal(t, "a b c d", chunks[0].Content)
	assert.Equal(t, "d e f g", chunks[1].Content)
	assert.Equal(t, "g h i j", chunks[2].Content)
}

func TestRecursivePrefersParagraphs(t *testing.T) {
	text := "first paragraph here\n\nsecond paragraph here"
	chunks := New().Chunk(text, ChunkOptions{ChunkSize: 3, Strategy: "recursive", Length: words})

	require.Len(t, chunks, 2)
	assert.Equal(t, "first paragraph here", chunks[0].Content)
	assert.Equal(t, "second paragraph here", chunks[1].Content)
}
