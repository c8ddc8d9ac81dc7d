package fingerprint

import "github.com/ruralcare/docproof/internal/pdf"

// Policy holds the thresholds for scan classification. The defaults match
// the calibration used for prescription documents; both knobs are exposed
// through configuration for other document classes.
type Policy struct {
	// PageTextThreshold is the character count below which a page that also
	// carries at least one image counts as image-heavy.
	PageTextThreshold int

	// AvgTextThreshold is the average per-page character count below which a
	// document with any embedded images is classified as scanned.
	AvgTextThreshold int
}

func (p Policy) withDefaults() Policy {
	if p.PageTextThreshold <= 0 {
		p.PageTextThreshold = 100
	}
	if p.AvgTextThreshold <= 0 {
		p.AvgTextThreshold = 200
	}
	return p
}

// ScanStats reports the raw measurements behind a classification decision.
type ScanStats struct {
	Pages          int `json:"pages"`
	ImageHeavy     int `json:"image_heavy_pages"`
	TotalImages    int `json:"total_images"`
	TotalTextChars int `json:"total_text_chars"`
}

// ClassifyScan reports whether the document is a scanned copy rather than a
// born-digital one. A page is image-heavy when its extractable text is below
// the page threshold and it embeds at least one image. The document is
// scanned when strictly more than half its pages are image-heavy, or when
// average text per page is below the average threshold and the document
// embeds any images at all.
func (e *Engine) ClassifyScan(data []byte) (bool, ScanStats, error) {
	doc, err := pdf.Parse(data)
	if err != nil {
		return false, ScanStats{}, err
	}
	var stats ScanStats
	for _, page := range doc.Pages() {
		text := page.Text()
		images := len(page.Images())
		stats.Pages++
		stats.TotalImages += images
		stats.TotalTextChars += len(text)
		if len(text) < e.policy.PageTextThreshold && images > 0 {
			stats.ImageHeavy++
		}
	}
	return decideScan(stats, e.policy), stats, nil
}

func decideScan(stats ScanStats, policy Policy) bool {
	pages := stats.Pages
	if pages < 1 {
		pages = 1
	}
	if stats.ImageHeavy*2 > pages {
		return true
	}
	avg := stats.TotalTextChars / pages
	return avg < policy.AvgTextThreshold && stats.TotalImages > 0
}
