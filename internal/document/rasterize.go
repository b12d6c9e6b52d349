package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Rasterizer renders every page of a PDF to an image file inside dir and
// returns the image paths in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, src Source, dir string) ([]string, error)
}

type Pdftoppm struct {
	runner   Runner
	path     string
	dpi      int
	maxPages int
}

func NewPdftoppm(runner Runner, path string, dpi, maxPages int) *Pdftoppm {
	if path == "" {
		path = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 200
	}
	return &Pdftoppm{runner: runner, path: path, dpi: dpi, maxPages: maxPages}
}

func (p *Pdftoppm) Rasterize(ctx context.Context, src Source, dir string) ([]string, error) {
	input, err := materialize(src, dir)
	if err != nil {
		return nil, err
	}

	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(p.dpi), "-png"}
	if p.maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(p.maxPages))
	}
	args = append(args, input, prefix)

	// pdftoppm -r <dpi> -png <in.pdf> <dir/page>
	if _, errb, err := p.runner.Run(ctx, p.path, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	images, err := pageImages(prefix)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	return images, nil
}

// materialize returns a filesystem path for src, writing in-memory bytes
// into dir first.
func materialize(src Source, dir string) (string, error) {
	switch s := src.(type) {
	case Path:
		return string(s), nil
	case Bytes:
		path := filepath.Join(dir, "input.pdf")
		if err := os.WriteFile(path, s, 0o600); err != nil {
			return "", fmt.Errorf("write temp PDF: %w", err)
		}
		return path, nil
	default:
		return "", validateSource(src)
	}
}

// pageImages collects prefix-N.png files ordered by N. pdftoppm zero-pads N
// to the width of the page count, so lexical order is not enough.
func pageImages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("list page images: %w", err)
	}
	num := func(path string) int {
		s := strings.TrimSuffix(strings.TrimPrefix(path, prefix+"-"), ".png")
		n, _ := strconv.Atoi(s)
		return n
	}
	sort.Slice(matches, func(i, j int) bool { return num(matches[i]) < num(matches[j]) })
	return matches, nil
}
