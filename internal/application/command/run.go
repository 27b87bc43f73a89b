// Package command contains the write operations of grade-hub (CQRS - Commands).
// Every batch command merges one input file into the per-student grade
// records under the single-writer lock and reports per-row outcomes.
package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/identity"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// RowError is one row that could not be merged. The run continues.
type RowError struct {
	Line      int    `json:"line,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	Err       error  `json:"-"`
	Message   string `json:"error"`
}

func (e RowError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d (student %s): %s", e.Line, e.StudentID, e.Message)
	}
	return fmt.Sprintf("student %s: %s", e.StudentID, e.Message)
}

func (e RowError) cause() error {
	if e.Err != nil {
		return e.Err
	}
	return errors.New(e.Message)
}

// RunStats summarizes one batch run.
type RunStats struct {
	// Total is the number of students the run looked at.
	Total int `json:"total"`

	// Merged counts records whose stored field changed.
	Merged int `json:"merged"`

	// Unchanged counts records already holding the batch's values.
	Unchanged int `json:"unchanged"`

	// Skipped counts students without an identity mapping.
	Skipped int `json:"skipped"`

	// Failed counts unusable rows.
	Failed int `json:"failed"`

	Errors []RowError `json:"errors,omitempty"`
}

// AddFailure records one unusable row.
func (s *RunStats) AddFailure(line int, studentID string, err error) {
	s.Failed++
	s.Errors = append(s.Errors, RowError{Line: line, StudentID: studentID, Err: err, Message: err.Error()})
}

// Count adds a merge outcome.
func (s *RunStats) Count(changed bool) {
	if changed {
		s.Merged++
	} else {
		s.Unchanged++
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SINGLE-WRITER LOCK
// ══════════════════════════════════════════════════════════════════════════════

// LockResource is the lock name shared by every batch command.
const LockResource = "ingest"

// Locker grants exclusive access to the store for the length of a run.
// Acquire fails with shared.ErrLocked when another run holds the resource.
type Locker interface {
	Acquire(ctx context.Context, resource string) (release func(context.Context) error, err error)
}

// LocalLocker is an in-process Locker, used when no Redis is configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]bool{}}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(_ context.Context, resource string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[resource] {
		return nil, shared.NewDomainError("lock", "Acquire", shared.ErrLocked, resource+" is held by another run")
	}
	l.held[resource] = true

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, resource)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Deps bundles the stores every batch command works against.
type Deps struct {
	Records  grade.Repository
	Markers  grade.MarkerRepository
	Resolver *identity.Resolver
	Locker   Locker
	Logger   *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = NewLocalLocker()
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return d
}

// locked runs fn while holding the ingest lock.
func (d Deps) locked(ctx context.Context, op string, fn func() error) (err error) {
	release, err := d.Locker.Acquire(ctx, LockResource)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			d.Logger.Warn("lock release failed", logger.Operation(op), logger.Err(rerr))
			if err == nil {
				err = fmt.Errorf("%s: release lock: %w", op, rerr)
			}
		}
	}()
	return fn()
}

// resolve maps an external id, turning NotFound into a skipped row.
// ok is false when the caller should move on to the next student.
func (d Deps) resolve(ctx context.Context, log *logger.Logger, stats *RunStats, line int, externalID string) (string, bool, error) {
	internalID, err := d.Resolver.Resolve(ctx, externalID)
	switch {
	case err == nil:
		return internalID, true, nil
	case shared.IsNotFound(err):
		stats.Skipped++
		log.Warn("student not enrolled, row skipped", logger.StudentID(externalID), logger.Row(line))
		return "", false, nil
	case shared.IsValidation(err):
		stats.AddFailure(line, externalID, err)
		return "", false, nil
	default:
		return "", false, fmt.Errorf("resolve %s: %w", externalID, err)
	}
}

// load fetches the record behind a mapping. A mapping without a record is
// treated like an unknown student.
func (d Deps) load(ctx context.Context, log *logger.Logger, stats *RunStats, line int, externalID, internalID string) (*grade.Record, bool, error) {
	rec, err := d.Records.Get(ctx, internalID)
	switch {
	case err == nil:
		return rec, true, nil
	case shared.IsNotFound(err):
		stats.Skipped++
		log.Warn("grade record missing for enrolled student, row skipped",
			logger.StudentID(externalID), logger.InternalID(internalID), logger.Row(line))
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("load record of %s: %w", externalID, err)
	}
}

// replace writes one whole field unless the run is a dry run.
func (d Deps) replace(ctx context.Context, dryRun bool, internalID, field string, value any) error {
	if dryRun {
		return nil
	}
	return d.Records.ReplaceField(ctx, internalID, field, value)
}

// setMarker records the session of a stream unless the run is a dry run.
func (d Deps) setMarker(ctx context.Context, dryRun bool, stream grade.Stream, key string) error {
	if dryRun {
		return nil
	}
	if err := d.Markers.SetMarker(ctx, stream, key); err != nil {
		return fmt.Errorf("set %s marker: %w", stream, err)
	}
	return nil
}
