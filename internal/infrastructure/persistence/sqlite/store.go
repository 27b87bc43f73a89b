package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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
	db *sql.DB
}

// NewRecordRepository creates a RecordRepository on db.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

const selectRecord = `SELECT internal_id, name, surname, written_grades, project_grades, rejected FROM grade_records`

func (r *RecordRepository) Get(ctx context.Context, internalID string) (*grade.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectRecord+` WHERE internal_id = ?`, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRecordNotFound
	}
	return rec, err
}

func (r *RecordRepository) List(ctx context.Context) ([]*grade.Record, error) {
	rows, err := r.db.QueryContext(ctx, selectRecord+` ORDER BY internal_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list records: %w", err)
	}
	defer rows.Close()

	var out []*grade.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecordRepository) Insert(ctx context.Context, rec *grade.Record) error {
	written, err := json.Marshal(rec.WrittenGrades)
	if err != nil {
		return fmt.Errorf("sqlite: marshal written_grades: %w", err)
	}
	project, err := json.Marshal(rec.ProjectGrades)
	if err != nil {
		return fmt.Errorf("sqlite: marshal project_grades: %w", err)
	}
	rejected, err := json.Marshal(rec.Rejected)
	if err != nil {
		return fmt.Errorf("sqlite: marshal rejected: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO grade_records (internal_id, name, surname, written_grades, project_grades, rejected, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.InternalID, rec.Name, rec.Surname, string(written), string(project), string(rejected), time.Now().Unix())
	if isUniqueViolation(err) {
		return shared.ErrRecordAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("sqlite: insert record: %w", err)
	}
	return nil
}

func (r *RecordRepository) ReplaceField(ctx context.Context, internalID, field string, value any) error {
	if err := grade.CheckField(field, value); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlite: marshal %s: %w", field, err)
	}

	// field is one of the checked column names above
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE grade_records SET %s = ?, updated_at = ? WHERE internal_id = ?`, field),
		string(data), time.Now().Unix(), internalID)
	if err != nil {
		return fmt.Errorf("sqlite: update %s: %w", field, err)
	}
	return requireRow(res, shared.ErrRecordNotFound)
}

func (r *RecordRepository) Delete(ctx context.Context, internalID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grade_records WHERE internal_id = ?`, internalID)
	if err != nil {
		return fmt.Errorf("sqlite: delete record: %w", err)
	}
	return requireRow(res, shared.ErrRecordNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*grade.Record, error) {
	var (
		rec                        grade.Record
		written, project, rejected string
	)
	if err := row.Scan(&rec.InternalID, &rec.Name, &rec.Surname, &written, &project, &rejected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan record: %w", err)
	}
	if err := json.Unmarshal([]byte(written), &rec.WrittenGrades); err != nil {
		return nil, fmt.Errorf("sqlite: written_grades of %s: %w", rec.InternalID, err)
	}
	if err := json.Unmarshal([]byte(project), &rec.ProjectGrades); err != nil {
		return nil, fmt.Errorf("sqlite: project_grades of %s: %w", rec.InternalID, err)
	}
	if err := json.Unmarshal([]byte(rejected), &rec.Rejected); err != nil {
		return nil, fmt.Errorf("sqlite: rejected of %s: %w", rec.InternalID, err)
	}
	return &rec, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Identity mapping
// ─────────────────────────────────────────────────────────────────────────────

// IdentityRepository implements identity.Repository.
type IdentityRepository struct {
	db *sql.DB
}

// NewIdentityRepository creates an IdentityRepository on db.
func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

const selectEntry = `SELECT external_id, internal_id, name, surname FROM student_ids`

func (r *IdentityRepository) FindByExternal(ctx context.Context, externalID string) (*identity.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectEntry+` WHERE external_id = ?`, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrStudentNotFound
	}
	return e, err
}

func (r *IdentityRepository) FindByInternal(ctx context.Context, internalID string) (*identity.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectEntry+` WHERE internal_id = ?`, internalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrInternalIDNotFound
	}
	return e, err
}

func (r *IdentityRepository) Create(ctx context.Context, e *identity.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO student_ids (external_id, internal_id, name, surname) VALUES (?, ?, ?, ?)`,
		e.ExternalID, e.InternalID, e.Name, e.Surname)
	if isUniqueViolation(err) {
		return shared.ErrStudentAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("sqlite: create student id: %w", err)
	}
	return nil
}

func (r *IdentityRepository) UpdateExternal(ctx context.Context, oldID, newID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE student_ids SET external_id = ? WHERE external_id = ?`, newID, oldID)
	if isUniqueViolation(err) {
		return shared.ErrStudentAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("sqlite: rename student id: %w", err)
	}
	return requireRow(res, shared.ErrStudentNotFound)
}

func (r *IdentityRepository) Delete(ctx context.Context, externalID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM student_ids WHERE external_id = ?`, externalID)
	if err != nil {
		return fmt.Errorf("sqlite: delete student id: %w", err)
	}
	return requireRow(res, shared.ErrStudentNotFound)
}

func (r *IdentityRepository) List(ctx context.Context) ([]*identity.Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectEntry+` ORDER BY external_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list student ids: %w", err)
	}
	defer rows.Close()

	var out []*identity.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row scanner) (*identity.Entry, error) {
	var e identity.Entry
	if err := row.Scan(&e.ExternalID, &e.InternalID, &e.Name, &e.Surname); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan student id: %w", err)
	}
	return &e, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Session markers
// ─────────────────────────────────────────────────────────────────────────────

// MarkerRepository implements grade.MarkerRepository.
type MarkerRepository struct {
	db *sql.DB
}

// NewMarkerRepository creates a MarkerRepository on db.
func NewMarkerRepository(db *sql.DB) *MarkerRepository {
	return &MarkerRepository{db: db}
}

func (r *MarkerRepository) CurrentSession(ctx context.Context) (grade.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT stream, session_key FROM session_markers`)
	if err != nil {
		return grade.Session{}, fmt.Errorf("sqlite: read markers: %w", err)
	}
	defer rows.Close()

	var s grade.Session
	for rows.Next() {
		var stream, key string
		if err := rows.Scan(&stream, &key); err != nil {
			return grade.Session{}, fmt.Errorf("sqlite: scan marker: %w", err)
		}
		s = s.With(grade.Stream(stream), key)
	}
	return s, rows.Err()
}

func (r *MarkerRepository) SetMarker(ctx context.Context, stream grade.Stream, key string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_markers (stream, session_key) VALUES (?, ?)
		ON CONFLICT (stream) DO UPDATE SET session_key = excluded.session_key`,
		string(stream), key)
	if err != nil {
		return fmt.Errorf("sqlite: set %s marker: %w", stream, err)
	}
	return nil
}
