package chunker

import (
	"strings"
	"unicode/utf8"
)

type Chunker interface {
	Chunk(text string, opts ChunkOptions) []TextChunk
}

type ChunkOptions struct {
	ChunkSize    int    // target chunk size, measured by Length
	ChunkOverlap int    // overlap carried into the next chunk, measured by Length
	Strategy     string // "sentence", "recursive" or "fixed"

	// Length measures text. Defaults to the rune count; pass a token
	// counter to chunk by tokens.
	Length func(string) int
}

type TextChunk struct {
	Content string
	Index   int
}

// DefaultOptions splits into sentences packed to 512 tokens-or-runes with
// 50 of overlap.
func DefaultOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize:    512,
		ChunkOverlap: 50,
		Strategy:     "sentence",
	}
}

type defaultChunker struct{}

func New() Chunker {
	return &defaultChunker{}
}

func (c *defaultChunker) Chunk(text string, opts ChunkOptions) []TextChunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 512
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}
	if opts.Length == nil {
		opts.Length = utf8.RuneCountInString
	}

	var parts []string
	switch opts.Strategy {
	case "fixed":
		parts = chunkFixed(text, opts)
	case "recursive":
		parts = splitRecursive(text, []string{"\n\n", "\n", ". ", " "}, opts)
	default:
		parts = chunkBySentence(text, opts)
	}

	var chunks []TextChunk
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		chunks = append(chunks, TextChunk{Content: p, Index: len(chunks)})
	}
	return chunks
}

// chunkFixed cuts on word boundaries into windows of ChunkSize, each
// starting ChunkOverlap before the end of the previous one.
func chunkFixed(text string, opts ChunkOptions) []string {
	words := strings.Fields(text)
	var out []string
	for start := 0; start < len(words); {
		end := start
		for end < len(words) && opts.Length(strings.Join(words[start:end+1], " ")) <= opts.ChunkSize {
			end++
		}
		if end == start {
			end = start + 1
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}

		next := end
		for next > start+1 && opts.Length(strings.Join(words[next-1:end], " ")) <= opts.ChunkOverlap {
			next--
		}
		start = next
	}
	return out
}

func splitRecursive(text string, separators []string, opts ChunkOptions) []string {
	if opts.Length(text) <= opts.ChunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return chunkFixed(text, opts)
	}

	sep := separators[0]
	parts := strings.Split(text, sep)
	var result []string
	var current strings.Builder

	for _, part := range parts {
		if current.Len() > 0 && opts.Length(current.String()+sep+part) > opts.ChunkSize {
			result = append(result, splitRecursive(current.String(), separators[1:], opts)...)
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}

	if current.Len() > 0 {
		result = append(result, splitRecursive(current.String(), separators[1:], opts)...)
	}
	return result
}

// chunkBySentence packs whole sentences up to ChunkSize. Each new chunk
// starts with as many trailing sentences of the previous one as fit in
// ChunkOverlap. A sentence longer than ChunkSize is split on words.
func chunkBySentence(text string, opts ChunkOptions) []string {
	var sentences []string
	for _, s := range splitSentences(text) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if opts.Length(s) > opts.ChunkSize {
			sentences = append(sentences, chunkFixed(s, ChunkOptions{ChunkSize: opts.ChunkSize, Length: opts.Length})...)
			continue
		}
		sentences = append(sentences, s)
	}

	var out []string
	var current []string
	for _, s := range sentences {
		if len(current) > 0 && opts.Length(strings.Join(append(current, s), " ")) > opts.ChunkSize {
			out = append(out, strings.Join(current, " "))
			current = overlapTail(current, opts)
			for len(current) > 0 && opts.Length(strings.Join(append(current, s), " ")) > opts.ChunkSize {
				current = current[1:]
			}
		}
		current = append(current, s)
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

func overlapTail(sentences []string, opts ChunkOptions) []string {
	if opts.ChunkOverlap == 0 {
		return nil
	}
	start := len(sentences)
	for start > 0 && opts.Length(strings.Join(sentences[start-1:], " ")) <= opts.ChunkOverlap {
		start--
	}
	return append([]string(nil), sentences[start:]...)
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		end := r == '.' || r == '!' || r == '?'
		if end && (i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n') {
			sentences = append(sentences, current.String())
			current.Reset()
		} else if r == '\n' && i+1 < len(text) && text[i+1] == '\n' {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}
