// Package ocr defines the optical-character-recognition collaborator contract
// used by text extraction. Engines are best-effort: an engine may return
// empty text, and callers degrade rather than fail when recognition is
// unavailable.
package ocr

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by engines that cannot perform recognition at
// all (no provider configured, runtime missing). Callers treat it as "degrade
// to partial extraction", not as a document failure.
var ErrUnavailable = errors.New("ocr engine unavailable")

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Input is a single encoded image submitted for recognition.
type Input struct {
	// ID is echoed back in the Result for correlation.
	ID string
	// Image is the encoded payload in the format declared by Format.
	Image []byte
	// Format declares the image content type.
	Format ImageFormat
	// PageIndex links the input to the zero-based page it came from.
	PageIndex int
	// Languages holds trained-data hints (e.g. "eng"); empty means default.
	Languages []string
}

// Result is the recognition output for one input.
type Result struct {
	InputID   string
	PlainText string
}

// Engine is the OCR provider contract: one image in, one result out. The
// context bounds the call; engines must not block past its deadline.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// Noop is the engine used when no OCR provider is configured. Every call
// reports ErrUnavailable so extraction degrades to partial.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Recognize(context.Context, Input) (Result, error) {
	return Result{}, ErrUnavailable
}
