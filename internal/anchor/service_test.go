package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ruralcare/docproof/internal/record"
)

// flakyLedger wraps another ledger and fails writes after failAfter calls.
type flakyLedger struct {
	inner     Ledger
	writes    int
	failAfter int
}

func (f *flakyLedger) Write(ctx context.Context, p Proof) (Proof, error) {
	f.writes++
	if f.writes > f.failAfter {
		return Proof{}, fmt.Errorf("%w: connection refused", ErrLedgerUnavailable)
	}
	return f.inner.Write(ctx, p)
}

func (f *flakyLedger) Read(ctx context.Context, fp string) (Proof, error) {
	return f.inner.Read(ctx, fp)
}

func (f *flakyLedger) Ping(ctx context.Context) error { return f.inner.Ping(ctx) }

// textRenderer is a deterministic stand-in for the PDF renderer.
type textRenderer struct{}

func (textRenderer) Render(s *record.Subject, chain ChainInfo) ([]byte, error) {
	return []byte(fmt.Sprintf("doc:%s:tx:%s:fp:%s", s.ID, chain.TxRef, chain.Fingerprint)), nil
}

func newTestSubject(t *testing.T, store record.Repository) *record.Subject {
	t.Helper()
	s := &record.Subject{
		PatientName: "Ana Souza",
		DoctorName:  "Dr. Carlos Lima",
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		ItemNames:   []string{"Amoxicillin 500mg"},
	}
	if err := store.Create(context.Background(), s); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	return s
}

func TestAnchorHappyPath(t *testing.T) {
	ctx := context.Background()
	ledger, err := OpenMem()
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer ledger.Close()
	store := record.NewMemoryRepository()
	svc := NewService(ledger, store, textRenderer{}, ConfirmationPolicy{}, nil)
	subject := newTestSubject(t, store)

	status, err := svc.Anchor(ctx, subject)
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	if !status.Finalized {
		t.Errorf("status not finalized: warning %q", status.FinalizeWarning)
	}
	if status.Record.State != record.AnchorConfirmed {
		t.Errorf("anchor state = %s, want confirmed", status.Record.State)
	}
	if status.Record.TxRef == "" || status.Record.FinalTxRef == "" {
		t.Errorf("missing transaction refs: %+v", status.Record)
	}

	// The registration fingerprint must be readable on the ledger.
	regFP := RegistrationFingerprint(subject)
	if _, err := ledger.Read(ctx, regFP); err != nil {
		t.Errorf("registration fingerprint not on ledger: %v", err)
	}
	// So must the fingerprint embedded in the final document.
	if _, err := ledger.Read(ctx, status.Record.FinalFingerprint); err != nil {
		t.Errorf("final fingerprint not on ledger: %v", err)
	}
	if !strings.Contains(string(status.Document), status.Record.FinalFingerprint) {
		t.Error("final document does not embed the anchored fingerprint")
	}

	// The stored fingerprint is the exact hash of the returned document.
	sum := sha256.Sum256(status.Document)
	if hex.EncodeToString(sum[:]) != status.StoredFingerprint {
		t.Error("stored fingerprint does not match the final document bytes")
	}
	stored, err := store.GetByID(ctx, subject.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Fingerprint != status.StoredFingerprint {
		t.Errorf("repository fingerprint = %s, want %s", stored.Fingerprint, status.StoredFingerprint)
	}
}

func TestAnchorPhaseTwoFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	inner, err := OpenMem()
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer inner.Close()
	ledger := &flakyLedger{inner: inner, failAfter: 1}
	store := record.NewMemoryRepository()
	svc := NewService(ledger, store, textRenderer{}, ConfirmationPolicy{}, nil)
	subject := newTestSubject(t, store)

	status, err := svc.Anchor(ctx, subject)
	if err != nil {
		t.Fatalf("Anchor with failing phase two: %v", err)
	}
	if status.Finalized {
		t.Error("status reported finalized despite phase-two failure")
	}
	if status.FinalizeWarning == "" {
		t.Error("missing finalize warning")
	}
	if status.Record.State != record.AnchorPending {
		t.Errorf("anchor state = %s, want pending", status.Record.State)
	}
	if len(status.Document) == 0 || status.StoredFingerprint == "" {
		t.Error("document was not produced despite registration success")
	}
	// Registration anchor must still stand.
	if _, err := inner.Read(ctx, RegistrationFingerprint(subject)); err != nil {
		t.Errorf("registration fingerprint lost: %v", err)
	}
	// The fingerprint embedded in the served render is recorded even though
	// the phase-two write never landed, so tooling can reproduce the bytes.
	got, err := store.GetByID(ctx, subject.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Anchor == nil || got.Anchor.FinalFingerprint == "" {
		t.Fatalf("embedded fingerprint not persisted: %+v", got.Anchor)
	}
	if !strings.Contains(string(status.Document), got.Anchor.FinalFingerprint) {
		t.Error("persisted fingerprint differs from the one embedded in the document")
	}
	reproduced, err := textRenderer{}.Render(subject, ChainInfo{
		TxRef:       got.Anchor.TxRef,
		Fingerprint: got.Anchor.FinalFingerprint,
	})
	if err != nil {
		t.Fatalf("re-render: %v", err)
	}
	sum := sha256.Sum256(reproduced)
	if hex.EncodeToString(sum[:]) != status.StoredFingerprint {
		t.Error("re-render from the anchor record does not reproduce the stored fingerprint")
	}
}

func TestAnchorPhaseOneFailureAborts(t *testing.T) {
	ctx := context.Background()
	inner, _ := OpenMem()
	defer inner.Close()
	ledger := &flakyLedger{inner: inner, failAfter: 0}
	store := record.NewMemoryRepository()
	svc := NewService(ledger, store, textRenderer{}, ConfirmationPolicy{}, nil)
	subject := newTestSubject(t, store)

	if _, err := svc.Anchor(ctx, subject); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("Anchor error = %v, want ErrLedgerUnavailable", err)
	}
	got, err := store.GetByID(ctx, subject.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Anchor != nil {
		t.Errorf("anchor record saved despite phase-one failure: %+v", got.Anchor)
	}
}

func TestRegistrationFingerprintStable(t *testing.T) {
	store := record.NewMemoryRepository()
	subject := newTestSubject(t, store)
	first := RegistrationFingerprint(subject)
	subject.Fingerprint = "changed later"
	if RegistrationFingerprint(subject) != first {
		t.Error("registration fingerprint changed with mutable fields")
	}
	if len(first) != 64 {
		t.Errorf("registration fingerprint length = %d, want 64", len(first))
	}
}

func TestExplorerURL(t *testing.T) {
	if got := ExplorerURL("https://scan.example/", "0xabc"); got != "https://scan.example/tx/0xabc" {
		t.Errorf("ExplorerURL = %q", got)
	}
	if got := ExplorerURL("", "0xabc"); got != "" {
		t.Errorf("ExplorerURL without base = %q, want empty", got)
	}
}
