package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE RECORD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements grade.Repository for PostgreSQL.
type RecordRepository struct {
	conn *Connection
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(conn *Connection) *RecordRepository {
	return &RecordRepository{conn: conn}
}

var _ grade.Repository = (*RecordRepository)(nil)

const selectRecord = `
	SELECT internal_id, name, surname, written_grades, project_grades, rejected
	FROM grade_records
`

// ─────────────────────────────────────────────────────────────────────────────
// Read operations
// ─────────────────────────────────────────────────────────────────────────────

// Get returns a record by internal id.
func (r *RecordRepository) Get(ctx context.Context, internalID string) (*grade.Record, error) {
	row := r.conn.QueryRow(ctx, selectRecord+" WHERE internal_id = $1", internalID)
	rec, err := scanRecord(row)
	if IsNoRows(err) {
		return nil, shared.ErrRecordNotFound
	}
	return rec, err
}

// List returns every record ordered by internal id.
func (r *RecordRepository) List(ctx context.Context) ([]*grade.Record, error) {
	rows, err := r.conn.Query(ctx, selectRecord+" ORDER BY internal_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
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

// ─────────────────────────────────────────────────────────────────────────────
// Write operations
// ─────────────────────────────────────────────────────────────────────────────

// Insert stores a new record.
func (r *RecordRepository) Insert(ctx context.Context, rec *grade.Record) error {
	written, err := encodeField(grade.FieldWrittenGrades, rec.WrittenGrades)
	if err != nil {
		return err
	}
	project, err := encodeField(grade.FieldProjectGrades, rec.ProjectGrades)
	if err != nil {
		return err
	}
	rejected, err := encodeField(grade.FieldRejected, rec.Rejected)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO grade_records (internal_id, name, surname, written_grades, project_grades, rejected)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.InternalID, rec.Name, rec.Surname, written, project, rejected)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrRecordAlreadyExists
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// ReplaceField overwrites one JSONB column of a record.
func (r *RecordRepository) ReplaceField(ctx context.Context, internalID, field string, value any) error {
	if err := grade.CheckField(field, value); err != nil {
		return err
	}
	data, err := encodeField(field, value)
	if err != nil {
		return err
	}

	// field is one of the checked column names above
	query := fmt.Sprintf("UPDATE grade_records SET %s = $2, updated_at = NOW() WHERE internal_id = $1", field)
	tag, err := r.conn.Exec(ctx, query, internalID, data)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", field, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRecordNotFound
	}
	return nil
}

// Delete removes a record.
func (r *RecordRepository) Delete(ctx context.Context, internalID string) error {
	tag, err := r.conn.Exec(ctx, "DELETE FROM grade_records WHERE internal_id = $1", internalID)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRecordNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanRecord(row pgx.Row) (*grade.Record, error) {
	var (
		rec                        grade.Record
		written, project, rejected []byte
	)
	err := row.Scan(&rec.InternalID, &rec.Name, &rec.Surname, &written, &project, &rejected)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	if err := decodeRecord(&rec, written, project, rejected); err != nil {
		return nil, err
	}
	return &rec, nil
}

func encodeField(field string, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", field, err)
	}
	return data, nil
}

func decodeRecord(rec *grade.Record, written, project, rejected []byte) error {
	if err := json.Unmarshal(written, &rec.WrittenGrades); err != nil {
		return fmt.Errorf("failed to unmarshal written_grades of %s: %w", rec.InternalID, err)
	}
	if err := json.Unmarshal(project, &rec.ProjectGrades); err != nil {
		return fmt.Errorf("failed to unmarshal project_grades of %s: %w", rec.InternalID, err)
	}
	if err := json.Unmarshal(rejected, &rec.Rejected); err != nil {
		return fmt.Errorf("failed to unmarshal rejected of %s: %w", rec.InternalID, err)
	}
	return nil
}
