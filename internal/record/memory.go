package record

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests and single-node
// deployments without PostgreSQL.
type MemoryRepository struct {
	mu       sync.RWMutex
	subjects map[uuid.UUID]*Subject
	anchors  map[uuid.UUID]*Anchor
	seq      int64
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		subjects: make(map[uuid.UUID]*Subject),
		anchors:  make(map[uuid.UUID]*Anchor),
	}
}

// Create inserts a new subject. Sets ID, Sequence, CreatedAt, UpdatedAt.
func (r *MemoryRepository) Create(_ context.Context, s *Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	s.ID = uuid.New()
	s.Sequence = r.seq
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	cp := *s
	r.subjects[s.ID] = &cp
	return nil
}

// GetByID retrieves a subject by UUID.
func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subjects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.withAnchor(s), nil
}

// GetByFingerprint retrieves the subject whose stored fingerprint matches.
func (r *MemoryRepository) GetByFingerprint(_ context.Context, fingerprint string) (*Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subjects {
		if s.Fingerprint == fingerprint {
			return r.withAnchor(s), nil
		}
	}
	return nil, ErrNotFound
}

// UpdateFingerprint replaces the stored fingerprint for a subject.
func (r *MemoryRepository) UpdateFingerprint(_ context.Context, id uuid.UUID, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subjects[id]
	if !ok {
		return ErrNotFound
	}
	s.Fingerprint = fingerprint
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveAnchor upserts the anchor for a subject.
func (r *MemoryRepository) SaveAnchor(_ context.Context, a *Anchor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.anchors[a.SubjectID] = &cp
	return nil
}

// List returns subjects in sequence order, anchors included.
func (r *MemoryRepository) List(_ context.Context, limit, offset int) ([]*Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Subject, 0, len(r.subjects))
	for _, s := range r.subjects {
		all = append(all, r.withAnchor(s))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Sequence < all[j].Sequence })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepository) withAnchor(s *Subject) *Subject {
	cp := *s
	if a, ok := r.anchors[s.ID]; ok {
		ac := *a
		cp.Anchor = &ac
	}
	return &cp
}
