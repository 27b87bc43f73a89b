// Package memory implements the grade-hub repositories in process memory.
// Used by tests and by the "memory" store backend.
package memory

import (
	"context"
	"sync"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/identity"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

var (
	_ grade.Repository       = (*RecordRepository)(nil)
	_ grade.MarkerRepository = (*MarkerRepository)(nil)
	_ identity.Repository    = (*IdentityRepository)(nil)
)

// ─────────────────────────────────────────────────────────────────────────────
// Records
// ─────────────────────────────────────────────────────────────────────────────

// RecordRepository implements grade.Repository.
type RecordRepository struct {
	mu      sync.RWMutex
	records map[string]*grade.Record

	// writes counts successful write calls.
	writes int
}

// NewRecordRepository creates an empty RecordRepository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{records: map[string]*grade.Record{}}
}

// Writes returns the number of successful writes so far.
func (s *RecordRepository) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *RecordRepository) Get(_ context.Context, internalID string) (*grade.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[internalID]
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	return r.Clone(), nil
}

func (s *RecordRepository) List(_ context.Context) ([]*grade.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*grade.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *RecordRepository) Insert(_ context.Context, r *grade.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.InternalID]; ok {
		return shared.ErrRecordAlreadyExists
	}
	s.records[r.InternalID] = r.Clone()
	s.writes++
	return nil
}

func (s *RecordRepository) ReplaceField(_ context.Context, internalID, field string, value any) error {
	if err := grade.CheckField(field, value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[internalID]
	if !ok {
		return shared.ErrRecordNotFound
	}
	grade.ApplyField(r, field, value)
	s.records[internalID] = r.Clone()
	s.writes++
	return nil
}

func (s *RecordRepository) Delete(_ context.Context, internalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[internalID]; !ok {
		return shared.ErrRecordNotFound
	}
	delete(s.records, internalID)
	s.writes++
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Identity mapping
// ─────────────────────────────────────────────────────────────────────────────

// IdentityRepository implements identity.Repository.
type IdentityRepository struct {
	mu       sync.RWMutex
	external map[string]*identity.Entry
	internal map[string]*identity.Entry
}

// NewIdentityRepository creates an empty IdentityRepository.
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		external: map[string]*identity.Entry{},
		internal: map[string]*identity.Entry{},
	}
}

func (s *IdentityRepository) FindByExternal(_ context.Context, externalID string) (*identity.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.external[externalID]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *IdentityRepository) FindByInternal(_ context.Context, internalID string) (*identity.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.internal[internalID]
	if !ok {
		return nil, shared.ErrInternalIDNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *IdentityRepository) Create(_ context.Context, e *identity.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.external[e.ExternalID]; ok {
		return shared.ErrStudentAlreadyExists
	}
	cp := *e
	s.external[e.ExternalID] = &cp
	s.internal[e.InternalID] = &cp
	return nil
}

func (s *IdentityRepository) UpdateExternal(_ context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.external[oldID]
	if !ok {
		return shared.ErrStudentNotFound
	}
	if _, taken := s.external[newID]; taken {
		return shared.ErrStudentAlreadyExists
	}
	delete(s.external, oldID)
	e.ExternalID = newID
	s.external[newID] = e
	return nil
}

func (s *IdentityRepository) Delete(_ context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.external[externalID]
	if !ok {
		return shared.ErrStudentNotFound
	}
	delete(s.external, externalID)
	delete(s.internal, e.InternalID)
	return nil
}

func (s *IdentityRepository) List(_ context.Context) ([]*identity.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*identity.Entry, 0, len(s.external))
	for _, e := range s.external {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Session markers
// ─────────────────────────────────────────────────────────────────────────────

// MarkerRepository implements grade.MarkerRepository.
type MarkerRepository struct {
	mu      sync.RWMutex
	session grade.Session
}

// NewMarkerRepository creates a MarkerRepository with no markers set.
func NewMarkerRepository() *MarkerRepository {
	return &MarkerRepository{}
}

func (s *MarkerRepository) CurrentSession(_ context.Context) (grade.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, nil
}

func (s *MarkerRepository) SetMarker(_ context.Context, stream grade.Stream, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = s.session.With(stream, key)
	return nil
}
