// Package query contains the read operations of grade-hub (CQRS - Queries).
// Queries never write; they read the grade records through the identity
// directory so results are keyed by the current external ids.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/identity"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// Deps bundles the stores queries read from.
type Deps struct {
	Records  grade.Repository
	Markers  grade.MarkerRepository
	Resolver *identity.Resolver
	Logger   *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return d
}

// StudentDTO identifies a student in query results.
type StudentDTO struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name,omitempty"`
	Surname   string `json:"surname,omitempty"`
}

// enrolled is a record joined with its identity entry.
type enrolled struct {
	StudentDTO
	record *grade.Record
}

// gradebook loads every record that still has an identity mapping, sorted
// by external id. Orphan records are logged and left out.
func (d Deps) gradebook(ctx context.Context, op string) ([]enrolled, error) {
	dir, err := d.Resolver.Directory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: load identity directory: %w", op, err)
	}
	records, err := d.Records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: list records: %w", op, err)
	}

	out := make([]enrolled, 0, len(records))
	for _, r := range records {
		e, ok := dir[r.InternalID]
		if !ok {
			d.Logger.Warn("grade record without identity mapping",
				logger.Operation(op), logger.InternalID(r.InternalID))
			continue
		}
		name, surname := r.Name, r.Surname
		if name == "" {
			name = e.Name
		}
		if surname == "" {
			surname = e.Surname
		}
		out = append(out, enrolled{
			StudentDTO: StudentDTO{StudentID: e.ExternalID, Name: name, Surname: surname},
			record:     r,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// session reads the stored markers, letting explicit keys win.
func (d Deps) session(ctx context.Context, written, project string) (grade.Session, error) {
	s, err := d.Markers.CurrentSession(ctx)
	if err != nil {
		return grade.Session{}, fmt.Errorf("read session markers: %w", err)
	}
	if written != "" {
		s.Written = written
	}
	if project != "" {
		s.Project = project
	}
	return s, nil
}
