package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RENAME STUDENT COMMAND
// Moves a student to a new external id. The internal id and every grade
// recorded under it are kept.
// ══════════════════════════════════════════════════════════════════════════════

// RenameStudentCommand contains the old and new external ids.
type RenameStudentCommand struct {
	OldID  string
	NewID  string
	DryRun bool
}

// Validate validates the command.
func (c RenameStudentCommand) Validate() error {
	if c.OldID == "" || c.NewID == "" {
		return errors.New("rename_student: both old and new student ids must be provided")
	}
	return nil
}

// RenameStudentResult contains the outcome of a rename.
type RenameStudentResult struct {
	OldID      string `json:"old_id"`
	NewID      string `json:"new_id"`
	InternalID string `json:"internal_id"`
}

// RenameStudentHandler handles the RenameStudentCommand.
type RenameStudentHandler struct {
	deps Deps
}

// NewRenameStudentHandler creates a new RenameStudentHandler.
func NewRenameStudentHandler(deps Deps) *RenameStudentHandler {
	return &RenameStudentHandler{deps: deps.withDefaults()}
}

// Handle executes the rename.
func (h *RenameStudentHandler) Handle(ctx context.Context, cmd RenameStudentCommand) (*RenameStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &RenameStudentResult{OldID: cmd.OldID, NewID: cmd.NewID}
	err := h.deps.locked(ctx, "rename_student", func() error {
		internalID, err := h.deps.Resolver.Resolve(ctx, cmd.OldID)
		if err != nil {
			return err
		}
		if cmd.DryRun {
			err = h.deps.Resolver.CheckRename(ctx, cmd.OldID, cmd.NewID)
		} else {
			err = h.deps.Resolver.Rename(ctx, cmd.OldID, cmd.NewID)
		}
		if err != nil {
			return err
		}
		result.InternalID = internalID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rename_student: %w", err)
	}

	h.deps.Logger.Info("student renamed",
		logger.Component("rename_student"),
		logger.String("old_id", cmd.OldID),
		logger.String("new_id", cmd.NewID),
		logger.InternalID(result.InternalID),
		logger.Bool("dry_run", cmd.DryRun))
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REMOVE STUDENT COMMAND
// Deletes a student's identity mapping together with the grade record.
// ══════════════════════════════════════════════════════════════════════════════

// RemoveStudentCommand contains the student to remove.
type RemoveStudentCommand struct {
	StudentID string
	DryRun    bool
}

// Validate validates the command.
func (c RemoveStudentCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("remove_student: student_id must be provided")
	}
	return nil
}

// RemoveStudentResult contains the outcome of a removal.
type RemoveStudentResult struct {
	StudentID  string `json:"student_id"`
	InternalID string `json:"internal_id"`

	// RecordDeleted is false when the mapping had no grade record. On a dry
	// run it reports whether the record would be deleted.
	RecordDeleted bool `json:"record_deleted"`
}

// RemoveStudentHandler handles the RemoveStudentCommand.
type RemoveStudentHandler struct {
	deps Deps
}

// NewRemoveStudentHandler creates a new RemoveStudentHandler.
func NewRemoveStudentHandler(deps Deps) *RemoveStudentHandler {
	return &RemoveStudentHandler{deps: deps.withDefaults()}
}

// Handle executes the removal. The mapping goes first so a failure halfway
// leaves an orphan record, never a mapping pointing at nothing.
func (h *RemoveStudentHandler) Handle(ctx context.Context, cmd RemoveStudentCommand) (*RemoveStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewExternalID(cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("remove_student: %w", err)
	}

	result := &RemoveStudentResult{StudentID: id.String()}
	err = h.deps.locked(ctx, "remove_student", func() error {
		if cmd.DryRun {
			return h.preview(ctx, id.String(), result)
		}
		internalID, err := h.deps.Resolver.Remove(ctx, id.String())
		if err != nil {
			return err
		}
		result.InternalID = internalID

		err = h.deps.Records.Delete(ctx, internalID)
		switch {
		case err == nil:
			result.RecordDeleted = true
		case shared.IsNotFound(err):
		default:
			return fmt.Errorf("delete record %s: %w", internalID, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove_student: %w", err)
	}

	h.deps.Logger.Info("student removed",
		logger.Component("remove_student"),
		logger.StudentID(result.StudentID),
		logger.InternalID(result.InternalID),
		logger.Bool("record_deleted", result.RecordDeleted),
		logger.Bool("dry_run", cmd.DryRun))
	return result, nil
}

// preview fills result with what a removal would do.
func (h *RemoveStudentHandler) preview(ctx context.Context, externalID string, result *RemoveStudentResult) error {
	internalID, err := h.deps.Resolver.Resolve(ctx, externalID)
	if err != nil {
		return err
	}
	result.InternalID = internalID

	_, err = h.deps.Records.Get(ctx, internalID)
	switch {
	case err == nil:
		result.RecordDeleted = true
	case shared.IsNotFound(err):
	default:
		return fmt.Errorf("load record %s: %w", internalID, err)
	}
	return nil
}
