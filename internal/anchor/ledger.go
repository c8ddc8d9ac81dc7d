// Package anchor writes document fingerprints to a blockchain-style ledger
// and drives the two-phase anchoring flow for newly issued documents.
package anchor

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a fingerprint has no ledger entry. It means
// the ledger answered and the fingerprint is genuinely absent.
var ErrNotFound = errors.New("fingerprint not anchored")

// ErrLedgerUnavailable is returned when the ledger could not be reached or
// answered with a server-side failure. Callers must never conflate it with
// ErrNotFound: absence is an answer, unavailability is not.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// Proof is a ledger entry for one anchored fingerprint.
type Proof struct {
	Fingerprint string            `json:"fingerprint"`
	TxRef       string            `json:"tx_ref"`
	Timestamp   time.Time         `json:"timestamp"`
	PartyHashA  string            `json:"party_hash_a,omitempty"`
	PartyHashB  string            `json:"party_hash_b,omitempty"`
	Sequence    int64             `json:"sequence,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Ledger is the anchoring backend. Implementations are the embedded
// LevelDB ledger and the HTTP client for an external ledger node.
type Ledger interface {
	// Write anchors a proof and returns it with TxRef and Timestamp set.
	Write(ctx context.Context, p Proof) (Proof, error)

	// Read returns the proof for a fingerprint, ErrNotFound if absent.
	Read(ctx context.Context, fingerprint string) (Proof, error)

	// Ping reports whether the ledger can be reached.
	Ping(ctx context.Context) error
}
