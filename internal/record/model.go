// Package record holds the persistent subject records that anchoring and
// verification operate on, together with their storage backends.
package record

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a subject lookup finds no matching record.
var ErrNotFound = errors.New("subject not found")

// Anchor lifecycle states.
const (
	AnchorPending   = "pending"
	AnchorConfirmed = "confirmed"
)

// Subject is a document whose authenticity the service vouches for. The
// fingerprint always refers to the last rendered form of the document, so a
// byte-identical upload of the issued file matches exactly.
type Subject struct {
	ID          uuid.UUID `json:"id"`
	Sequence    int64     `json:"sequence"`
	PatientName string    `json:"patient_name"`
	DoctorName  string    `json:"doctor_name"`
	PatientID   string    `json:"patient_id"`
	DoctorID    string    `json:"doctor_id"`
	ItemNames   []string  `json:"item_names"`
	Fingerprint string    `json:"fingerprint"`
	Anchor      *Anchor   `json:"anchor,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Anchor records the ledger side of a subject: the fingerprint written in
// phase one, the transaction reference it produced, and the fingerprint
// embedded in the issued document. FinalFingerprint is recorded even when
// the phase-two write fails; FinalTxRef and a confirmed state mean the
// write landed.
type Anchor struct {
	SubjectID        uuid.UUID  `json:"subject_id"`
	Fingerprint      string     `json:"fingerprint"`
	FinalFingerprint string     `json:"final_fingerprint,omitempty"`
	PartyHashA       string     `json:"party_hash_a"`
	PartyHashB       string     `json:"party_hash_b"`
	TxRef            string     `json:"tx_ref"`
	FinalTxRef       string     `json:"final_tx_ref,omitempty"`
	State            string     `json:"state"`
	CreatedAt        time.Time  `json:"created_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
}

// Repository provides persistence for subjects and their anchors.
type Repository interface {
	// Create inserts a new subject. Sets ID, Sequence, CreatedAt, UpdatedAt.
	Create(ctx context.Context, s *Subject) error

	// GetByID retrieves a subject with its anchor, if one exists.
	GetByID(ctx context.Context, id uuid.UUID) (*Subject, error)

	// GetByFingerprint retrieves the subject whose current fingerprint
	// matches exactly.
	GetByFingerprint(ctx context.Context, fingerprint string) (*Subject, error)

	// UpdateFingerprint replaces the subject's stored fingerprint after a
	// re-render.
	UpdateFingerprint(ctx context.Context, id uuid.UUID, fingerprint string) error

	// SaveAnchor upserts the anchor row for a subject.
	SaveAnchor(ctx context.Context, a *Anchor) error
}
