// Package fingerprint derives stable identity fingerprints from PDF content:
// an exact digest over the full byte stream, a content digest over embedded
// raster images for re-scanned copies, and the text-vs-scan classification
// that decides which of the two applies.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/ruralcare/docproof/internal/ocr"
	"github.com/ruralcare/docproof/internal/pdf"
	"go.uber.org/zap"
)

// Fingerprint returns the hex-encoded SHA-256 of the full byte stream.
// Deterministic for identical input; empty input is accepted and yields the
// digest of the empty string.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// imageHashLen is the per-image hash truncation used inside the content
// fingerprint. Truncation keeps the combined preimage short; the outer
// SHA-256 restores full collision resistance for the set.
const imageHashLen = 16

// ContentFingerprint hashes each embedded raster image independently, sorts
// the per-image hashes lexicographically so a re-scan that reorders images
// fingerprints identically, and digests the concatenation.
//
// Returns "" when the document embeds no images; callers must treat "" as
// "no content fingerprint available", never as a valid fingerprint.
func ContentFingerprint(data []byte) (string, error) {
	doc, err := pdf.Parse(data)
	if err != nil {
		return "", fmt.Errorf("content fingerprint: %w", err)
	}
	var hashes []string
	for _, page := range doc.Pages() {
		for _, img := range page.Images() {
			sum := sha256.Sum256(img.Data)
			hashes = append(hashes, hex.EncodeToString(sum[:])[:imageHashLen])
		}
	}
	if len(hashes) == 0 {
		return "", nil
	}
	sort.Strings(hashes)
	sum := sha256.Sum256([]byte(strings.Join(hashes, "")))
	return hex.EncodeToString(sum[:]), nil
}

// Engine bundles the scan/extraction operations with their collaborators.
// The OCR engine may be ocr.Noop; extraction then degrades to partial.
type Engine struct {
	ocr    ocr.Engine
	policy Policy
	logger *zap.Logger
}

// New creates an Engine. Zero-valued policy fields fall back to defaults.
func New(ocrEngine ocr.Engine, policy Policy, logger *zap.Logger) *Engine {
	if ocrEngine == nil {
		ocrEngine = ocr.Noop{}
	}
	return &Engine{ocr: ocrEngine, policy: policy.withDefaults(), logger: logger}
}
