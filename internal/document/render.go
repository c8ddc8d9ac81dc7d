// Package document renders prescription documents. Layout is deterministic:
// the same subject and chain details always produce identical bytes, which
// the fingerprinting pipeline depends on.
package document

import (
	"fmt"

	"github.com/ruralcare/docproof/internal/anchor"
	"github.com/ruralcare/docproof/internal/pdf"
	"github.com/ruralcare/docproof/internal/record"
)

// PrescriptionRenderer renders the issued prescription PDF.
type PrescriptionRenderer struct {
	// Network names the chain the anchors live on, e.g. "polygon-amoy".
	Network string
	// ExplorerBase is the block-explorer root for transaction links.
	// Empty disables the explorer line.
	ExplorerBase string
}

const (
	marginX    = 56.0
	titleSize  = 18.0
	headerSize = 12.0
	bodySize   = 10.0
	lineGap    = 16.0
)

// Render implements anchor.Renderer. The chain section is included only for
// the fields actually present, so registration renders and final renders
// differ exactly by the fingerprint line.
func (r *PrescriptionRenderer) Render(s *record.Subject, chain anchor.ChainInfo) ([]byte, error) {
	b := pdf.NewBuilder()
	page := b.AddPage()
	y := 780.0
	line := func(size float64, text string) {
		page.Text(marginX, y, size, text)
		y -= lineGap
	}

	line(titleSize, "RuralCare Telemedicine")
	line(bodySize, "Medical Prescription")
	y -= lineGap

	line(bodySize, fmt.Sprintf("Prescription ID: %s", s.ID))
	line(bodySize, fmt.Sprintf("Sequence: %d", s.Sequence))
	y -= lineGap / 2

	line(headerSize, "Parties")
	line(bodySize, fmt.Sprintf("Doctor: %s", s.DoctorName))
	line(bodySize, fmt.Sprintf("Patient: %s", s.PatientName))
	y -= lineGap / 2

	line(headerSize, "Prescribed Items")
	if len(s.ItemNames) == 0 {
		line(bodySize, "(none)")
	}
	for i, item := range s.ItemNames {
		line(bodySize, fmt.Sprintf("%d. %s", i+1, item))
	}
	y -= lineGap / 2

	if chain.TxRef != "" || chain.Fingerprint != "" {
		line(headerSize, "Blockchain Verification")
		if r.Network != "" {
			line(bodySize, fmt.Sprintf("Network: %s", r.Network))
		}
		if chain.TxRef != "" {
			line(bodySize, fmt.Sprintf("Transaction Hash: %s", chain.TxRef))
			if u := anchor.ExplorerURL(r.ExplorerBase, chain.TxRef); u != "" {
				line(bodySize, fmt.Sprintf("Explorer: %s", u))
			}
		}
		if chain.Fingerprint != "" {
			line(bodySize, fmt.Sprintf("Document Fingerprint: %s", chain.Fingerprint))
		}
		y -= lineGap / 2
	}

	line(bodySize, "This document is digitally anchored. Verify it at any")
	line(bodySize, "RuralCare unit by uploading the file or a scanned copy.")

	return b.Bytes()
}
