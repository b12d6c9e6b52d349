package document

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// OpticalExtractor recovers page text from rendered page images.
type OpticalExtractor interface {
	ExtractPages(ctx context.Context, src Source) ([]string, error)
}

type Optical struct {
	raster Rasterizer
	ocr    OCR
}

func NewOptical(raster Rasterizer, ocr OCR) *Optical {
	return &Optical{raster: raster, ocr: ocr}
}

// ExtractPages fails only when the document cannot be rendered. A page
// whose OCR fails contributes "".
func (o *Optical) ExtractPages(ctx context.Context, src Source) ([]string, error) {
	dir, err := os.MkdirTemp("", "docreader-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}()

	images, err := o.raster.Rasterize(ctx, src, dir)
	if err != nil {
		return nil, fmt.Errorf("rasterize PDF: %w", err)
	}

	pages := make([]string, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := o.ocr.Recognize(ctx, img)
		if err != nil {
			slog.Warn("OCR failed for page, recording empty text", "page", i+1, "error", err)
			continue
		}
		pages[i] = text
	}
	return pages, nil
}
