package document

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docreader/internal/apperr"
	"github.com/nikhilbhutani/docreader/internal/pdftest"
)

type fakePages struct {
	pages []string
	err   error
	calls int
}

func (f *fakePages) ExtractPages(context.Context, Source) ([]string, error) {
	f.calls++
	return f.pages, f.err
}

func TestExtractUsesTextLayer(t *testing.T) {
	optical := &fakePages{pages: []string{"should not be used"}}
	ex := NewExtractor(TextLayer{}, optical)

	got, err := ex.Extract(context.Background(), Bytes(pdftest.Build("First page body", "Second page body")))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"page_1", "page_2"}, got.Labels())
	assert.Contains(t, got[0].Text, "First page body")
	assert.Contains(t, got[1].Text, "Second page body")
	assert.Zero(t, optical.calls)
}

func TestExtractFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.Build("stored on disk"), 0o600))

	got, err := NewExtractor(TextLayer{}, &fakePages{}).Extract(context.Background(), Path(path))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "stored on disk")
}

func TestExtractFallsBackForScannedDocument(t *testing.T) {
	optical := &fakePages{pages: []string{"  scanned one \n", "scanned two"}}
	ex := NewExtractor(TextLayer{}, optical)

	got, err := ex.Extract(context.Background(), Bytes(pdftest.Build("", "")))
	require.NoError(t, err)
	assert.Equal(t, 1, optical.calls)
	assert.Equal(t, map[string]string{"page_1": "scanned one", "page_2": "scanned two"}, got.Map())
}

func TestExtractFallsBackOnStructuralError(t *testing.T) {
	structural := &fakePages{err: errors.New("xref table corrupt")}
	optical := &fakePages{pages: []string{"ocr text"}}

	got, err := NewExtractor(structural, optical).Extract(context.Background(), Bytes("%PDF-1.4 junk"))
	require.NoError(t, err)
	assert.Equal(t, PageText{{Number: 1, Text: "ocr text"}}, got)
}

func TestExtractBothStrategiesFail(t *testing.T) {
	structural := &fakePages{err: errors.New("bad xref")}
	optical := &fakePages{err: errors.New("pdftoppm: exit status 1")}

	got, err := NewExtractor(structural, optical).Extract(context.Background(), Bytes("junk"))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, got.Blank())

	_, err = NewExtractor(structural, optical, WithStrictFailures()).Extract(context.Background(), Bytes("junk"))
	assert.ErrorIs(t, err, apperr.ErrExtractionFailure)
}

func TestExtractRejectsMissingSourceAfterSuccess(t *testing.T) {
	structural := &fakePages{pages: []string{"text"}}
	optical := &fakePages{}
	ex := NewExtractor(structural, optical)

	_, err := ex.Extract(context.Background(), Bytes("pdf"))
	require.NoError(t, err)

	for _, src := range []Source{nil, Bytes(nil), Path("")} {
		_, err = ex.Extract(context.Background(), src)
		assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	}
	assert.Equal(t, 1, structural.calls)
	assert.Zero(t, optical.calls)
}

func TestSourceFrom(t *testing.T) {
	src, err := SourceFrom([]byte("pdf"), "")
	require.NoError(t, err)
	assert.Equal(t, Bytes("pdf"), src)

	src, err = SourceFrom(nil, "/tmp/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, Path("/tmp/a.pdf"), src)

	_, err = SourceFrom([]byte("pdf"), "/tmp/a.pdf")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	_, err = SourceFrom(nil, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestPageTextJSONKeepsPageOrder(t *testing.T) {
	pages := make([]string, 11)
	for i := range pages {
		pages[i] = string(rune('a' + i))
	}
	pt := newPageText(pages)

	b, err := json.Marshal(pt)
	require.NoError(t, err)
	assert.Equal(t,
		`{"page_1":"a","page_2":"b","page_3":"c","page_4":"d","page_5":"e","page_6":"f","page_7":"g","page_8":"h","page_9":"i","page_10":"j","page_11":"k"}`,
		string(b))
}
