package grade

import (
	"context"
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// Repository is the document store holding one Record per student.
// Each call is an independent atomic write; there are no cross-record
// transactions.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Read operations
	// ─────────────────────────────────────────────────────────────────────────

	// Get returns the record or shared.ErrRecordNotFound.
	Get(ctx context.Context, internalID string) (*Record, error)

	// List returns every record, in no particular order.
	List(ctx context.Context) ([]*Record, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Write operations
	// ─────────────────────────────────────────────────────────────────────────

	// Insert stores a new record; shared.ErrRecordAlreadyExists if the id is taken.
	Insert(ctx context.Context, r *Record) error

	// ReplaceField overwrites one whole field (FieldWrittenGrades,
	// FieldProjectGrades or FieldRejected). value must be the field's Go type.
	ReplaceField(ctx context.Context, internalID, field string, value any) error

	// Delete removes the record; shared.ErrRecordNotFound if absent.
	Delete(ctx context.Context, internalID string) error
}

// CheckField validates a ReplaceField call before it reaches a backend.
func CheckField(field string, value any) error {
	var ok bool
	switch field {
	case FieldWrittenGrades:
		_, ok = value.([]WrittenEntry)
	case FieldProjectGrades:
		_, ok = value.([]ProjectEntry)
	case FieldRejected:
		_, ok = value.(Rejection)
	default:
		return errUnknownField(field)
	}
	if !ok {
		return errFieldType(field, value)
	}
	return nil
}

// ApplyField sets field on r. CheckField must have passed.
func ApplyField(r *Record, field string, value any) {
	switch field {
	case FieldWrittenGrades:
		r.WrittenGrades = value.([]WrittenEntry)
	case FieldProjectGrades:
		r.ProjectGrades = value.([]ProjectEntry)
	case FieldRejected:
		r.Rejected = value.(Rejection)
	}
}

func errUnknownField(field string) error {
	return shared.WrapError("grade", "ReplaceField", shared.ErrInvalidInput,
		"unknown record field", fmt.Errorf("%q", field))
}

func errFieldType(field string, value any) error {
	return shared.NewDomainError("grade", "ReplaceField", shared.ErrInvalidInput,
		fmt.Sprintf("field %s cannot hold %T", field, value))
}
