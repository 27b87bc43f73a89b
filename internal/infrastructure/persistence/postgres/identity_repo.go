package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dsl-grades/grade-hub/internal/domain/identity"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// IdentityRepository implements identity.Repository for PostgreSQL.
type IdentityRepository struct {
	conn *Connection
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(conn *Connection) *IdentityRepository {
	return &IdentityRepository{conn: conn}
}

var _ identity.Repository = (*IdentityRepository)(nil)

const selectEntry = "SELECT external_id, internal_id, name, surname FROM student_ids"

func (r *IdentityRepository) FindByExternal(ctx context.Context, externalID string) (*identity.Entry, error) {
	e, err := scanEntry(r.conn.QueryRow(ctx, selectEntry+" WHERE external_id = $1", externalID))
	if IsNoRows(err) {
		return nil, shared.ErrStudentNotFound
	}
	return e, err
}

func (r *IdentityRepository) FindByInternal(ctx context.Context, internalID string) (*identity.Entry, error) {
	e, err := scanEntry(r.conn.QueryRow(ctx, selectEntry+" WHERE internal_id = $1", internalID))
	if IsNoRows(err) {
		return nil, shared.ErrInternalIDNotFound
	}
	return e, err
}

func (r *IdentityRepository) Create(ctx context.Context, e *identity.Entry) error {
	_, err := r.conn.Exec(ctx,
		"INSERT INTO student_ids (external_id, internal_id, name, surname) VALUES ($1, $2, $3, $4)",
		e.ExternalID, e.InternalID, e.Name, e.Surname)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student id: %w", err)
	}
	return nil
}

func (r *IdentityRepository) UpdateExternal(ctx context.Context, oldID, newID string) error {
	tag, err := r.conn.Exec(ctx, "UPDATE student_ids SET external_id = $2 WHERE external_id = $1", oldID, newID)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to rename student id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

func (r *IdentityRepository) Delete(ctx context.Context, externalID string) error {
	tag, err := r.conn.Exec(ctx, "DELETE FROM student_ids WHERE external_id = $1", externalID)
	if err != nil {
		return fmt.Errorf("failed to delete student id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

func (r *IdentityRepository) List(ctx context.Context) ([]*identity.Entry, error) {
	rows, err := r.conn.Query(ctx, selectEntry+" ORDER BY external_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list student ids: %w", err)
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

func scanEntry(row pgx.Row) (*identity.Entry, error) {
	var e identity.Entry
	if err := row.Scan(&e.ExternalID, &e.InternalID, &e.Name, &e.Surname); err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan student id: %w", err)
	}
	return &e, nil
}
