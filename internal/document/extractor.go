// Package document turns a PDF into per-page plain text, reading the
// embedded text layer first and falling back to OCR for scanned documents.
package document

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/nikhilbhutani/docreader/internal/apperr"
	"github.com/nikhilbhutani/docreader/internal/config"
	"github.com/nikhilbhutani/docreader/pkg/textextract"
)

// PageExtractor reads the embedded text layer of a PDF.
type PageExtractor interface {
	ExtractPages(ctx context.Context, src Source) ([]string, error)
}

// TextLayer is the PageExtractor backed by pkg/textextract.
type TextLayer struct{}

func (TextLayer) ExtractPages(_ context.Context, src Source) ([]string, error) {
	switch s := src.(type) {
	case Bytes:
		return textextract.PDFPages(bytes.NewReader(s), int64(len(s)))
	case Path:
		return textextract.PDFPagesFromFile(string(s))
	default:
		return nil, validateSource(src)
	}
}

type Extractor struct {
	structural PageExtractor
	optical    OpticalExtractor
	strict     bool
}

type Option func(*Extractor)

// WithStrictFailures makes Extract return ErrExtractionFailure when both
// strategies fail, instead of logging and returning empty PageText.
func WithStrictFailures() Option {
	return func(e *Extractor) { e.strict = true }
}

func NewExtractor(structural PageExtractor, optical OpticalExtractor, opts ...Option) *Extractor {
	e := &Extractor{structural: structural, optical: optical}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewExtractorFromConfig wires the text layer reader with pdftoppm and
// tesseract.
func NewExtractorFromConfig(cfg config.OCRConfig, opts ...Option) *Extractor {
	runner := ExecRunner{}
	optical := NewOptical(
		NewPdftoppm(runner, cfg.PdftoppmPath, cfg.DPI, cfg.MaxPages),
		NewTesseract(runner, cfg.TesseractPath, cfg.Language),
	)
	return NewExtractor(TextLayer{}, optical, opts...)
}

// Extract returns the text of every page of src. The text layer is used
// unless it fails or every page is blank, in which case the OCR result
// replaces it entirely.
func (e *Extractor) Extract(ctx context.Context, src Source) (PageText, error) {
	if err := validateSource(src); err != nil {
		return nil, err
	}

	pages, err := e.structural.ExtractPages(ctx, src)
	switch {
	case err != nil:
		slog.Warn("text layer extraction failed, falling back to OCR", "error", err)
	case !newPageText(pages).Blank():
		return newPageText(pages), nil
	default:
		slog.Info("no text layer found, treating as scanned", "pages", len(pages))
	}

	pages, err = e.optical.ExtractPages(ctx, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if e.strict {
			return nil, apperr.ExtractionFailure(err, "extract PDF text")
		}
		slog.Error("exception while getting pdf text data", "error", err)
		return PageText{}, nil
	}
	return newPageText(pages), nil
}
