package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/ruralcare/docproof/internal/anchor"
	"github.com/ruralcare/docproof/internal/document"
	"github.com/ruralcare/docproof/internal/record"
)

// haltingLedger fails every write after the first, forcing an anchor to
// stay pending.
type haltingLedger struct {
	inner  anchor.Ledger
	writes int
}

func (h *haltingLedger) Write(ctx context.Context, p anchor.Proof) (anchor.Proof, error) {
	h.writes++
	if h.writes > 1 {
		return anchor.Proof{}, fmt.Errorf("%w: connection refused", anchor.ErrLedgerUnavailable)
	}
	return h.inner.Write(ctx, p)
}

func (h *haltingLedger) Read(ctx context.Context, fp string) (anchor.Proof, error) {
	return h.inner.Read(ctx, fp)
}

func (h *haltingLedger) Ping(ctx context.Context) error { return h.inner.Ping(ctx) }

func issueSubject(t *testing.T, ledger anchor.Ledger, renderer anchor.Renderer) (*record.Subject, *anchor.Status, record.Repository) {
	t.Helper()
	ctx := context.Background()
	store := record.NewMemoryRepository()
	svc := anchor.NewService(ledger, store, renderer, anchor.ConfirmationPolicy{}, nil)
	subject := &record.Subject{
		PatientName: "Ana Souza",
		DoctorName:  "Dr. Carlos Lima",
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		ItemNames:   []string{"Amoxicillin 500mg"},
	}
	if err := store.Create(ctx, subject); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	status, err := svc.Anchor(ctx, subject)
	if err != nil {
		t.Fatalf("anchor subject: %v", err)
	}
	return subject, status, store
}

func TestRecomputeFingerprintReproducesIssuedDocument(t *testing.T) {
	ledger, err := anchor.OpenMem()
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer ledger.Close()
	renderer := &document.PrescriptionRenderer{Network: "polygon-amoy", ExplorerBase: "https://amoy.polygonscan.com"}
	subject, status, store := issueSubject(t, ledger, renderer)

	got, err := store.GetByID(context.Background(), subject.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	fp, ok, err := recomputeFingerprint(got, renderer)
	if err != nil {
		t.Fatalf("recomputeFingerprint: %v", err)
	}
	if !ok {
		t.Fatal("anchored subject rejected as unreproducible")
	}
	if fp != status.StoredFingerprint {
		t.Errorf("recomputed fingerprint %s does not match stored %s", fp, status.StoredFingerprint)
	}
}

// A subject whose second ledger write failed still carries the fingerprint
// embedded in the copy the holder received; recomputation must reproduce
// that copy, not a render with the fingerprint row blank.
func TestRecomputeFingerprintPendingAnchor(t *testing.T) {
	inner, err := anchor.OpenMem()
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer inner.Close()
	renderer := &document.PrescriptionRenderer{Network: "polygon-amoy", ExplorerBase: "https://amoy.polygonscan.com"}
	subject, status, store := issueSubject(t, &haltingLedger{inner: inner}, renderer)
	if status.Finalized {
		t.Fatal("anchor unexpectedly finalized")
	}

	got, err := store.GetByID(context.Background(), subject.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	fp, ok, err := recomputeFingerprint(got, renderer)
	if err != nil {
		t.Fatalf("recomputeFingerprint: %v", err)
	}
	if !ok {
		t.Fatal("pending anchor with recorded fingerprint rejected as unreproducible")
	}
	if fp != got.Fingerprint {
		t.Errorf("recomputed fingerprint %s would overwrite correct stored fingerprint %s", fp, got.Fingerprint)
	}
}

func TestRecomputeFingerprintSkipsUnreproducible(t *testing.T) {
	renderer := &document.PrescriptionRenderer{Network: "polygon-amoy", ExplorerBase: "https://amoy.polygonscan.com"}
	cases := []struct {
		name    string
		subject *record.Subject
	}{
		{"no anchor", &record.Subject{PatientName: "Ana Souza"}},
		{"no recorded fingerprint", &record.Subject{
			PatientName: "Ana Souza",
			Anchor:      &record.Anchor{TxRef: "0xabc", State: record.AnchorPending},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok, err := recomputeFingerprint(tc.subject, renderer); err != nil || ok {
				t.Errorf("ok = %v, err = %v; want skip", ok, err)
			}
		})
	}
}
