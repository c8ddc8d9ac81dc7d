package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository persists subjects in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new subject record. Sets ID, Sequence, CreatedAt,
// UpdatedAt on the subject.
func (r *PostgresRepository) Create(ctx context.Context, s *Subject) error {
	s.ID = uuid.New()
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	q := `
		INSERT INTO subjects (id, patient_name, doctor_name, patient_id, doctor_id, item_names, fingerprint, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING sequence`
	err := r.db.QueryRow(ctx, q,
		s.ID, s.PatientName, s.DoctorName, s.PatientID, s.DoctorID,
		s.ItemNames, s.Fingerprint, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.Sequence)
	if err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// GetByID retrieves a subject by its UUID, anchor included.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Subject, error) {
	return r.scanOne(ctx, `SELECT id, sequence, patient_name, doctor_name, patient_id, doctor_id, item_names, fingerprint, created_at, updated_at FROM subjects WHERE id = $1`, id)
}

// GetByFingerprint retrieves the subject whose stored fingerprint matches.
func (r *PostgresRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*Subject, error) {
	return r.scanOne(ctx, `SELECT id, sequence, patient_name, doctor_name, patient_id, doctor_id, item_names, fingerprint, created_at, updated_at FROM subjects WHERE fingerprint = $1`, fingerprint)
}

// UpdateFingerprint replaces the stored fingerprint for a subject.
func (r *PostgresRepository) UpdateFingerprint(ctx context.Context, id uuid.UUID, fingerprint string) error {
	q := `UPDATE subjects SET fingerprint = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, fingerprint, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update fingerprint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveAnchor upserts the anchor row for a subject.
func (r *PostgresRepository) SaveAnchor(ctx context.Context, a *Anchor) error {
	q := `
		INSERT INTO anchors (subject_id, fingerprint, final_fingerprint, party_hash_a, party_hash_b, tx_ref, final_tx_ref, state, created_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (subject_id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			final_fingerprint = EXCLUDED.final_fingerprint,
			tx_ref = EXCLUDED.tx_ref,
			final_tx_ref = EXCLUDED.final_tx_ref,
			state = EXCLUDED.state,
			confirmed_at = EXCLUDED.confirmed_at`
	_, err := r.db.Exec(ctx, q,
		a.SubjectID, a.Fingerprint, a.FinalFingerprint, a.PartyHashA, a.PartyHashB,
		a.TxRef, a.FinalTxRef, a.State, a.CreatedAt, a.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("save anchor: %w", err)
	}
	return nil
}

// List returns subjects in sequence order, anchors included. Used by
// maintenance tooling; the serving path only needs point lookups.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*Subject, error) {
	q := `SELECT id, sequence, patient_name, doctor_name, patient_id, doctor_id, item_names, fingerprint, created_at, updated_at
		FROM subjects ORDER BY sequence LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var out []*Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(
			&s.ID, &s.Sequence, &s.PatientName, &s.DoctorName, &s.PatientID,
			&s.DoctorID, &s.ItemNames, &s.Fingerprint, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	for _, s := range out {
		if anchor, err := r.anchorFor(ctx, s.ID); err == nil {
			s.Anchor = anchor
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return out, nil
}

func (r *PostgresRepository) scanOne(ctx context.Context, q string, args ...any) (*Subject, error) {
	var s Subject
	err := r.db.QueryRow(ctx, q, args...).Scan(
		&s.ID, &s.Sequence, &s.PatientName, &s.DoctorName, &s.PatientID,
		&s.DoctorID, &s.ItemNames, &s.Fingerprint, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query subject: %w", err)
	}
	if anchor, err := r.anchorFor(ctx, s.ID); err == nil {
		s.Anchor = anchor
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) anchorFor(ctx context.Context, subjectID uuid.UUID) (*Anchor, error) {
	var a Anchor
	q := `SELECT subject_id, fingerprint, final_fingerprint, party_hash_a, party_hash_b, tx_ref, final_tx_ref, state, created_at, confirmed_at FROM anchors WHERE subject_id = $1`
	err := r.db.QueryRow(ctx, q, subjectID).Scan(
		&a.SubjectID, &a.Fingerprint, &a.FinalFingerprint, &a.PartyHashA,
		&a.PartyHashB, &a.TxRef, &a.FinalTxRef, &a.State, &a.CreatedAt, &a.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query anchor: %w", err)
	}
	return &a, nil
}
