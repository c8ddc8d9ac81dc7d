package fingerprint

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/ruralcare/docproof/internal/ocr"
	"github.com/ruralcare/docproof/internal/pdf"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// Extraction method labels.
const (
	MethodText    = "text"    // embedded text only
	MethodOCR     = "ocr"     // at least one page recovered through OCR
	MethodPartial = "partial" // OCR needed but it failed on every such page
)

// Extraction describes how the text of a document was recovered.
type Extraction struct {
	Method         string `json:"method"`
	PagesProcessed int    `json:"pages_processed"`
	OCRPages       int    `json:"ocr_pages"`
}

// minOCRWidth is the width below which page images are upscaled before OCR.
// Tesseract accuracy drops sharply on low-resolution input.
const minOCRWidth = 1000

// ExtractText returns the concatenated text of all pages. Pages with
// embedded text contribute it directly; pages without text have their
// embedded images run through OCR. OCR failures are per-page and non-fatal,
// which is reflected in the extraction method.
func (e *Engine) ExtractText(ctx context.Context, data []byte) (string, Extraction, error) {
	doc, err := pdf.Parse(data)
	if err != nil {
		return "", Extraction{}, err
	}
	var (
		parts      []string
		ocrNeeded  int
		ocrFailed  int
		extraction Extraction
	)
	for _, page := range doc.Pages() {
		extraction.PagesProcessed++
		if text := strings.TrimSpace(page.Text()); text != "" {
			parts = append(parts, text)
			continue
		}
		images := page.Images()
		if len(images) == 0 {
			continue
		}
		ocrNeeded++
		text, err := e.recognizePage(ctx, page.Index(), images)
		if err != nil {
			ocrFailed++
			if e.logger != nil {
				e.logger.Warn("page OCR failed (non-fatal)",
					zap.Int("page", page.Index()),
					zap.Error(err))
			}
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
		extraction.OCRPages++
	}
	switch {
	case ocrNeeded == 0:
		extraction.Method = MethodText
	case ocrFailed == ocrNeeded:
		extraction.Method = MethodPartial
	default:
		extraction.Method = MethodOCR
	}
	return strings.Join(parts, "\n"), extraction, nil
}

// recognizePage OCRs every image on a page and joins the results. Returns an
// error only when no image on the page could be recognized.
func (e *Engine) recognizePage(ctx context.Context, pageIndex int, images []pdf.ImageAsset) (string, error) {
	var (
		parts   []string
		lastErr error
	)
	for _, asset := range images {
		img, err := asset.ToImage()
		if err != nil {
			lastErr = err
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, upscale(img)); err != nil {
			lastErr = err
			continue
		}
		res, err := e.ocr.Recognize(ctx, ocr.Input{
			ID:        fmt.Sprintf("page-%d-%s", pageIndex, asset.ResourceName),
			Image:     buf.Bytes(),
			Format:    ocr.ImageFormatPNG,
			PageIndex: pageIndex,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if text := strings.TrimSpace(res.PlainText); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 && lastErr != nil {
		return "", lastErr
	}
	return strings.Join(parts, "\n"), nil
}

// upscale enlarges small images to minOCRWidth using Catmull-Rom
// interpolation. Images at or above the threshold pass through unchanged.
func upscale(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() >= minOCRWidth || bounds.Dx() == 0 {
		return img
	}
	scale := minOCRWidth / bounds.Dx()
	if scale < 2 {
		scale = 2
	}
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*scale, bounds.Dy()*scale))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
