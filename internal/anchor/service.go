package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ruralcare/docproof/internal/record"
	"go.uber.org/zap"
)

// Renderer produces the document bytes for a subject with the given ledger
// details embedded. Rendering must be deterministic for identical input.
type Renderer interface {
	Render(s *record.Subject, chain ChainInfo) ([]byte, error)
}

// ChainInfo is the ledger state a rendered document carries.
type ChainInfo struct {
	TxRef       string
	Fingerprint string
}

// ConfirmationPolicy controls how long Anchor waits for the phase-two write
// to become readable before reporting the anchor as finalized.
type ConfirmationPolicy struct {
	// AwaitFinality makes Anchor poll the ledger until the final
	// fingerprint is readable. When false (the default), a successful
	// write is trusted immediately.
	AwaitFinality bool
	PollInterval  time.Duration
	PollTimeout   time.Duration
}

func (p ConfirmationPolicy) withDefaults() ConfirmationPolicy {
	if p.PollInterval <= 0 {
		p.PollInterval = 500 * time.Millisecond
	}
	if p.PollTimeout <= 0 {
		p.PollTimeout = 15 * time.Second
	}
	return p
}

// Service drives the two-phase anchoring flow.
type Service struct {
	ledger   Ledger
	store    record.Repository
	renderer Renderer
	policy   ConfirmationPolicy
	logger   *zap.Logger
}

// NewService creates an anchoring service.
func NewService(ledger Ledger, store record.Repository, renderer Renderer, policy ConfirmationPolicy, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger:   ledger,
		store:    store,
		renderer: renderer,
		policy:   policy.withDefaults(),
		logger:   logger,
	}
}

// Status is the outcome of one anchoring run.
type Status struct {
	Record            *record.Anchor `json:"record"`
	Document          []byte         `json:"-"`
	StoredFingerprint string         `json:"stored_fingerprint"`
	Finalized         bool           `json:"finalized"`
	FinalizeWarning   string         `json:"finalize_warning,omitempty"`
}

// RegistrationFingerprint derives the phase-one fingerprint from the
// subject's stable identity fields. It depends only on values fixed at
// creation time, so it can be recomputed for any subject at any point.
func RegistrationFingerprint(s *record.Subject) string {
	preimage := fmt.Sprintf("token:%s:doctor:%s:patient:%s:num:%d",
		s.ID, HashIdentifier(s.DoctorID), HashIdentifier(s.PatientID), s.Sequence)
	sum := sha256.Sum256([]byte(preimage))
	return hex.EncodeToString(sum[:])
}

// Anchor runs the two-phase flow for a subject: write the registration
// fingerprint, render the document with the resulting transaction reference
// embedded, anchor that render's fingerprint, and re-render with the final
// fingerprint embedded. The second write is best effort; when it fails the
// anchor stays pending and the returned status carries a warning.
//
// Phase one failure aborts with an error and leaves no anchor record. The
// flow is not atomic across phases; callers must serialize Anchor calls per
// subject.
func (s *Service) Anchor(ctx context.Context, subject *record.Subject) (*Status, error) {
	partyA := HashIdentifier(subject.DoctorID)
	partyB := HashIdentifier(subject.PatientID)

	regFP := RegistrationFingerprint(subject)
	regProof, err := s.ledger.Write(ctx, Proof{
		Fingerprint: regFP,
		PartyHashA:  partyA,
		PartyHashB:  partyB,
		Sequence:    subject.Sequence,
		Metadata:    map[string]string{"phase": "registration"},
	})
	if err != nil {
		return nil, fmt.Errorf("anchor registration: %w", err)
	}

	anchorRec := &record.Anchor{
		SubjectID:   subject.ID,
		Fingerprint: regFP,
		PartyHashA:  partyA,
		PartyHashB:  partyB,
		TxRef:       regProof.TxRef,
		State:       record.AnchorPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveAnchor(ctx, anchorRec); err != nil {
		return nil, fmt.Errorf("save anchor: %w", err)
	}

	// Render with the registration reference embedded; the hash of this
	// render is what gets anchored in phase two.
	rendered, err := s.renderer.Render(subject, ChainInfo{TxRef: regProof.TxRef})
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	realSum := sha256.Sum256(rendered)
	realFP := hex.EncodeToString(realSum[:])

	status := &Status{Record: anchorRec}

	// The final render embeds realFP whether or not phase two lands, so the
	// anchor row records it either way; repair tooling re-renders from this
	// value and must be able to reproduce the served bytes.
	anchorRec.FinalFingerprint = realFP

	// Phase two only applies when the content fingerprint actually differs
	// from the registration one and phase one produced a reference.
	if realFP != regFP && regProof.TxRef != "" {
		finalProof, err := s.ledger.Write(ctx, Proof{
			Fingerprint: realFP,
			PartyHashA:  partyA,
			PartyHashB:  partyB,
			Sequence:    subject.Sequence,
			Metadata:    map[string]string{"phase": "final", "registration_tx": regProof.TxRef},
		})
		if err != nil {
			// The registration anchor already stands; losing phase two only
			// downgrades verification from exact to content matching.
			s.logger.Warn("final fingerprint anchor failed (non-fatal)",
				zap.String("subject_id", subject.ID.String()),
				zap.Error(err))
			status.FinalizeWarning = fmt.Sprintf("final anchor failed: %v", err)
		} else if err := s.confirm(ctx, realFP); err != nil {
			s.logger.Warn("final anchor not confirmed (non-fatal)",
				zap.String("subject_id", subject.ID.String()),
				zap.Error(err))
			status.FinalizeWarning = fmt.Sprintf("final anchor unconfirmed: %v", err)
		} else {
			now := time.Now().UTC()
			anchorRec.FinalTxRef = finalProof.TxRef
			anchorRec.State = record.AnchorConfirmed
			anchorRec.ConfirmedAt = &now
			status.Finalized = true
		}
	}
	if err := s.store.SaveAnchor(ctx, anchorRec); err != nil {
		if status.Finalized {
			return nil, fmt.Errorf("save confirmed anchor: %w", err)
		}
		s.logger.Warn("save pending anchor failed (non-fatal)",
			zap.String("subject_id", subject.ID.String()),
			zap.Error(err))
	}

	// Final render carries its own anchored fingerprint so holders can
	// check the ledger without recomputing anything.
	final, err := s.renderer.Render(subject, ChainInfo{TxRef: regProof.TxRef, Fingerprint: realFP})
	if err != nil {
		return nil, fmt.Errorf("final render: %w", err)
	}
	finalSum := sha256.Sum256(final)
	storedFP := hex.EncodeToString(finalSum[:])
	if err := s.store.UpdateFingerprint(ctx, subject.ID, storedFP); err != nil {
		return nil, fmt.Errorf("store fingerprint: %w", err)
	}
	subject.Fingerprint = storedFP

	status.Document = final
	status.StoredFingerprint = storedFP
	return status, nil
}

// confirm waits for the fingerprint to become readable when the policy asks
// for finality; otherwise the write itself is the confirmation.
func (s *Service) confirm(ctx context.Context, fingerprint string) error {
	if !s.policy.AwaitFinality {
		return nil
	}
	deadline := time.Now().Add(s.policy.PollTimeout)
	for {
		if _, err := s.ledger.Read(ctx, fingerprint); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("fingerprint not readable after %s", s.policy.PollTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.policy.PollInterval):
		}
	}
}

// LookupByFingerprint reads the ledger proof for a fingerprint.
func (s *Service) LookupByFingerprint(ctx context.Context, fingerprint string) (Proof, error) {
	return s.ledger.Read(ctx, fingerprint)
}

// Ping reports ledger reachability.
func (s *Service) Ping(ctx context.Context) error { return s.ledger.Ping(ctx) }

// ExplorerURL builds a block-explorer link for a transaction reference.
// Returns "" when no explorer base is configured.
func ExplorerURL(base, txRef string) string {
	if base == "" || txRef == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/tx/" + txRef
}
