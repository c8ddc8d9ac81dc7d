package verify

import (
	"regexp"
	"strings"
)

const uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

var (
	labeledIDRe = regexp.MustCompile(`(?i)Prescription\s+ID:\s*(` + uuidPattern + `)`)
	// Variant for text with whitespace stripped, where the label runs
	// together.
	collapsedIDRe = regexp.MustCompile(`(?i)PrescriptionID:?(` + uuidPattern + `)`)
	bareIDRe      = regexp.MustCompile(uuidPattern)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// RecoverSubjectID scans document text for a subject identifier. It prefers
// the label-anchored form, then any bare identifier, then retries on text
// with all whitespace collapsed, since OCR and line wraps can split an
// identifier mid-token. Returns "" when nothing matches.
func RecoverSubjectID(text string) string {
	if m := labeledIDRe.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}
	if m := bareIDRe.FindString(text); m != "" {
		return strings.ToLower(m)
	}
	collapsed := spaceRe.ReplaceAllString(text, "")
	if m := collapsedIDRe.FindStringSubmatch(collapsed); m != nil {
		return strings.ToLower(m[1])
	}
	if m := bareIDRe.FindString(collapsed); m != "" {
		return strings.ToLower(m)
	}
	return ""
}
