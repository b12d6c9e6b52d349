package document

import (
	"context"
	"fmt"
	"strings"
)

// OCR turns one page image into text.
type OCR interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

type Tesseract struct {
	runner Runner
	path   string
	lang   string
}

func NewTesseract(runner Runner, path, lang string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{runner: runner, path: path, lang: lang}
}

// IsAvailable reports whether the tesseract binary can be executed.
func (t *Tesseract) IsAvailable(ctx context.Context) bool {
	_, _, err := t.runner.Run(ctx, t.path, "--version")
	return err == nil
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	// tesseract <img> stdout -l <lang>
	out, errb, err := t.runner.Run(ctx, t.path, imagePath, "stdout", "-l", t.lang)
	if err != nil {
		return "", fmt.Errorf("tesseract OCR: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return strings.TrimSpace(string(out)), nil
}
