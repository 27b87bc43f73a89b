package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL STUDENTS COMMAND
// Registers new students and creates their empty grade records.
// ══════════════════════════════════════════════════════════════════════════════

// Enrollee is one row of the enrollment list.
type Enrollee struct {
	Line    int
	ID      string
	Name    string
	Surname string
}

// EnrollStudentsCommand contains the students to enroll.
type EnrollStudentsCommand struct {
	Students []Enrollee

	// DryRun counts outcomes without writing.
	DryRun bool
}

// Validate validates the command.
func (c EnrollStudentsCommand) Validate() error {
	if len(c.Students) == 0 {
		return shared.Malformed("EnrollStudents", "enrollment list is empty")
	}
	return nil
}

// EnrollStudentsResult contains the outcome of an enrollment run.
type EnrollStudentsResult struct {
	RunStats

	// Created lists the external ids registered by this run.
	Created []string `json:"created,omitempty"`
}

// EnrollStudentsHandler handles the EnrollStudentsCommand.
type EnrollStudentsHandler struct {
	deps Deps
}

// NewEnrollStudentsHandler creates a new EnrollStudentsHandler.
func NewEnrollStudentsHandler(deps Deps) *EnrollStudentsHandler {
	return &EnrollStudentsHandler{deps: deps.withDefaults()}
}

// Handle executes the enrollment. Known students are left untouched, so
// running the same list twice is a no-op.
func (h *EnrollStudentsHandler) Handle(ctx context.Context, cmd EnrollStudentsCommand) (*EnrollStudentsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("enroll_students: %w", err)
	}

	log := h.deps.Logger.With(logger.Component("enroll_students"))
	result := &EnrollStudentsResult{}

	err := h.deps.locked(ctx, "enroll_students", func() error {
		for _, s := range cmd.Students {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.Total++
			if err := h.enrollOne(ctx, log, cmd.DryRun, s, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("enroll_students: %w", err)
	}

	log.Info("enrollment finished",
		logger.Int("total", result.Total),
		logger.Int("created", result.Merged),
		logger.Int("known", result.Unchanged),
		logger.Int("failed", result.Failed),
		logger.Bool("dry_run", cmd.DryRun))
	return result, nil
}

func (h *EnrollStudentsHandler) enrollOne(ctx context.Context, log *logger.Logger, dryRun bool, s Enrollee, result *EnrollStudentsResult) error {
	id, err := shared.NewExternalID(s.ID)
	if err != nil {
		result.AddFailure(s.Line, s.ID, err)
		return nil
	}

	if dryRun {
		_, err := h.deps.Resolver.Resolve(ctx, id.String())
		switch {
		case err == nil:
			result.Unchanged++
		case shared.IsNotFound(err):
			result.Merged++
			result.Created = append(result.Created, id.String())
		default:
			return fmt.Errorf("resolve %s: %w", id, err)
		}
		return nil
	}

	internalID, created, err := h.deps.Resolver.Register(ctx, id.String(), s.Name, s.Surname)
	if err != nil {
		return err
	}

	rec, err := grade.NewRecord(internalID, s.Name, s.Surname)
	if err != nil {
		return err
	}
	err = h.deps.Records.Insert(ctx, rec)
	switch {
	case err == nil:
		// A mapping left behind by an interrupted run gets its record now.
		created = true
	case errors.Is(err, shared.ErrAlreadyExists):
	default:
		return fmt.Errorf("insert record of %s: %w", id, err)
	}

	if created {
		result.Merged++
		result.Created = append(result.Created, id.String())
		log.Debug("student enrolled", logger.StudentID(id.String()), logger.InternalID(internalID))
	} else {
		result.Unchanged++
	}
	return nil
}
