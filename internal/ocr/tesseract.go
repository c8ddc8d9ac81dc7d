package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs recognition through the gosseract client. A fresh client is
// created per call; gosseract clients are not safe for concurrent reuse.
type Tesseract struct {
	languages []string
}

// NewTesseract constructs a Tesseract-backed engine with optional default
// language hints.
func NewTesseract(languages ...string) *Tesseract {
	return &Tesseract{languages: languages}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Recognize implements Engine. Per-input language hints override the engine
// defaults.
func (t *Tesseract) Recognize(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	langs := in.Languages
	if len(langs) == 0 {
		langs = t.languages
	}
	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}
	return Result{InputID: in.ID, PlainText: strings.TrimSpace(text)}, nil
}
