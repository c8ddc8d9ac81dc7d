// Package verify decides whether an uploaded document matches an anchored
// record. The decision procedure is an ordered tree; the first matching
// branch wins, and every path produces an explainable Result.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ruralcare/docproof/internal/anchor"
	"github.com/ruralcare/docproof/internal/fingerprint"
	"github.com/ruralcare/docproof/internal/record"
	"go.uber.org/zap"
)

// Decision methods, in the order the tree can produce them.
const (
	MethodExactHash       = "exact-hash"
	MethodHashMismatch    = "hash-mismatch"
	MethodContentMatch    = "content-match"
	MethodContentMismatch = "content-mismatch"
	MethodOCRFailed       = "ocr-failed"
	MethodBlockchainHash  = "blockchain-hash"
	MethodHashNotFound    = "hash-not-found"
	MethodError           = "error"
)

// Result statuses. StatusUnavailable means the ledger could not be consulted
// and the document is neither verified nor rejected.
const (
	StatusOK          = "ok"
	StatusUnavailable = "service-unavailable"
)

// Result is the outcome of one verification call. It is produced fresh per
// call and never mutated after return.
type Result struct {
	Status              string         `json:"status"`
	Verified            bool           `json:"verified"`
	Method              string         `json:"method"`
	FingerprintMatch    bool           `json:"fingerprint_match"`
	UploadedFingerprint string         `json:"uploaded_fingerprint"`
	OriginalFingerprint string         `json:"original_fingerprint,omitempty"`
	SubjectID           string         `json:"subject_id,omitempty"`
	MatchPercent        int            `json:"match_percent,omitempty"`
	LooksScanned        bool           `json:"looks_scanned"`
	Details             map[string]any `json:"details,omitempty"`
	Warnings            []string       `json:"warnings,omitempty"`
}

// Policy holds the verification thresholds.
type Policy struct {
	// MatchThreshold is the minimum content-match percentage, inclusive,
	// for a scanned document to verify.
	MatchThreshold int
}

func (p Policy) withDefaults() Policy {
	if p.MatchThreshold <= 0 {
		p.MatchThreshold = 70
	}
	return p
}

// Verifier runs the decision procedure.
type Verifier struct {
	engine *fingerprint.Engine
	ledger anchor.Ledger
	store  record.Repository
	policy Policy
	logger *zap.Logger
}

// New creates a Verifier.
func New(engine *fingerprint.Engine, ledger anchor.Ledger, store record.Repository, policy Policy, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		engine: engine,
		ledger: ledger,
		store:  store,
		policy: policy.withDefaults(),
		logger: logger,
	}
}

// Verify decides whether data matches an anchored record. subjectID may be
// empty; the verifier then tries to recover one from the document text.
// Verify never returns an error: every failure mode maps to a Result, and a
// panic anywhere in the tree is reported as method "error".
func (v *Verifier) Verify(ctx context.Context, data []byte, subjectID string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("verification panic", zap.Any("panic", r))
			res = Result{
				Status:              StatusOK,
				Method:              MethodError,
				UploadedFingerprint: res.UploadedFingerprint,
				Warnings:            []string{fmt.Sprintf("internal error: %v", r)},
			}
		}
	}()

	res = Result{Status: StatusOK, Details: map[string]any{}}
	res.UploadedFingerprint = fingerprint.Fingerprint(data)

	subject, err := v.resolveSubject(ctx, data, subjectID, res.UploadedFingerprint)
	if err != nil {
		res.Method = MethodError
		res.Warnings = append(res.Warnings, fmt.Sprintf("subject lookup failed: %v", err))
		return res
	}

	if subject != nil {
		return v.decideWithSubject(ctx, data, subject, res)
	}
	return v.decideByLedger(ctx, res)
}

// resolveSubject finds the local record: by the supplied id, by an id
// recovered from the document text, or by the uploaded fingerprint. A nil
// subject with nil error means no local record exists.
func (v *Verifier) resolveSubject(ctx context.Context, data []byte, subjectID, uploadedFP string) (*record.Subject, error) {
	if subjectID == "" {
		if text, _, err := v.engine.ExtractText(ctx, data); err == nil {
			subjectID = RecoverSubjectID(text)
		}
	}
	if subjectID != "" {
		id, err := uuid.Parse(subjectID)
		if err == nil {
			s, err := v.store.GetByID(ctx, id)
			if err == nil {
				return s, nil
			}
			if !errors.Is(err, record.ErrNotFound) {
				return nil, err
			}
		}
	}
	s, err := v.store.GetByFingerprint(ctx, uploadedFP)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, record.ErrNotFound) {
		return nil, nil
	}
	return nil, err
}

func (v *Verifier) decideWithSubject(ctx context.Context, data []byte, subject *record.Subject, res Result) Result {
	res.SubjectID = subject.ID.String()
	res.OriginalFingerprint = subject.Fingerprint

	if res.UploadedFingerprint == subject.Fingerprint {
		res.Verified = true
		res.Method = MethodExactHash
		res.FingerprintMatch = true
		return res
	}

	isScan, stats, err := v.engine.ClassifyScan(data)
	if err != nil {
		res.Method = MethodError
		res.Warnings = append(res.Warnings, fmt.Sprintf("document unreadable: %v", err))
		return res
	}
	res.LooksScanned = isScan
	res.Details["scan_stats"] = stats

	if !isScan {
		// A text-native PDF with the wrong hash is tampered, not a scan
		// artifact.
		res.Method = MethodHashMismatch
		res.Warnings = append(res.Warnings, "document bytes do not match the issued document")
		return res
	}

	text, extraction, err := v.engine.ExtractText(ctx, data)
	if err != nil {
		res.Method = MethodError
		res.Warnings = append(res.Warnings, fmt.Sprintf("text extraction failed: %v", err))
		return res
	}
	res.Details["extraction"] = extraction
	if strings.TrimSpace(text) == "" {
		res.Method = MethodOCRFailed
		res.Warnings = append(res.Warnings, "no text could be recovered from the scanned document")
		return res
	}

	percent, fields := scoreContent(text, subject)
	res.MatchPercent = percent
	res.Details["matched_fields"] = fields
	if percent >= v.policy.MatchThreshold {
		res.Verified = true
		res.Method = MethodContentMatch
		res.Warnings = append(res.Warnings,
			"fingerprint differs because the document was re-scanned; content fields match the issued document")
	} else {
		res.Method = MethodContentMismatch
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("only %d%% of expected content found (threshold %d%%)", percent, v.policy.MatchThreshold))
	}
	return res
}

func (v *Verifier) decideByLedger(ctx context.Context, res Result) Result {
	proof, err := v.ledger.Read(ctx, res.UploadedFingerprint)
	switch {
	case err == nil:
		res.Verified = true
		res.Method = MethodBlockchainHash
		res.FingerprintMatch = true
		res.Details["tx_ref"] = proof.TxRef
		res.Warnings = append(res.Warnings,
			"no local record for this document, but its fingerprint is anchored on the ledger")
	case errors.Is(err, anchor.ErrNotFound):
		res.Method = MethodHashNotFound
		res.Warnings = append(res.Warnings,
			"fingerprint is not anchored on the ledger; the document may be fraudulent")
	case errors.Is(err, anchor.ErrLedgerUnavailable):
		res.Status = StatusUnavailable
		res.Method = ""
		res.Warnings = append(res.Warnings,
			"ledger is unreachable; verification is inconclusive and may be retried")
	default:
		res.Method = MethodError
		res.Warnings = append(res.Warnings, fmt.Sprintf("ledger lookup failed: %v", err))
	}
	return res
}

// maxScoredItems caps how many item names contribute to the content score.
const maxScoredItems = 3

// scoreContent checks the extracted text for the subject's counterparty
// names, its id, and up to three item names. Each field contributes one unit
// to a found/total percentage. Matching is case-insensitive.
func scoreContent(text string, subject *record.Subject) (int, map[string]bool) {
	haystack := strings.ToLower(text)
	fields := map[string]bool{}
	found, total := 0, 0
	check := func(label, needle string) {
		if needle == "" {
			return
		}
		total++
		ok := strings.Contains(haystack, strings.ToLower(needle))
		fields[label] = ok
		if ok {
			found++
		}
	}
	check("doctor_name", subject.DoctorName)
	check("patient_name", subject.PatientName)
	check("subject_id", subject.ID.String())
	for i, item := range subject.ItemNames {
		if i >= maxScoredItems {
			break
		}
		check(fmt.Sprintf("item_%d", i+1), item)
	}
	if total == 0 {
		return 0, fields
	}
	return found * 100 / total, fields
}
