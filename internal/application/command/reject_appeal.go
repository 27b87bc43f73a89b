package command

import (
	"context"
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REJECT APPEAL COMMAND
// Rolls back the current appeal for students who refused their outcome.
// ══════════════════════════════════════════════════════════════════════════════

// RejectAppealCommand lists the students refusing the current appeal.
type RejectAppealCommand struct {
	StudentIDs []string
	DryRun     bool
}

// Validate validates the command.
func (c RejectAppealCommand) Validate() error {
	if len(c.StudentIDs) == 0 {
		return shared.NewDomainError("command", "RejectAppeal", shared.ErrEmptyValue, "no students to reject")
	}
	return nil
}

// RejectAppealResult contains the outcome of a rejection run.
type RejectAppealResult struct {
	RunStats
	Session grade.Session `json:"session"`
}

// RejectAppealHandler handles the RejectAppealCommand.
type RejectAppealHandler struct {
	deps Deps
}

// NewRejectAppealHandler creates a new RejectAppealHandler.
func NewRejectAppealHandler(deps Deps) *RejectAppealHandler {
	return &RejectAppealHandler{deps: deps.withDefaults()}
}

// Handle executes the rejection against the stored markers. Rejecting the
// same student twice leaves the record as the first call left it.
func (h *RejectAppealHandler) Handle(ctx context.Context, cmd RejectAppealCommand) (*RejectAppealResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("reject_appeal: %w", err)
	}

	result := &RejectAppealResult{}
	err := h.deps.locked(ctx, "reject_appeal", func() error {
		session, err := h.deps.Markers.CurrentSession(ctx)
		if err != nil {
			return fmt.Errorf("read session markers: %w", err)
		}
		if session.Written == "" && session.Project == "" {
			return shared.ErrSessionNotSet
		}
		result.Session = session

		log := h.deps.Logger.With(logger.Component("reject_appeal"),
			logger.String("written_session", session.Written),
			logger.String("project_session", session.Project))

		for i, externalID := range cmd.StudentIDs {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.Total++
			if err := h.rejectOne(ctx, log, cmd.DryRun, session, i+1, externalID, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("reject_appeal: %w", err)
	}
	return result, nil
}

func (h *RejectAppealHandler) rejectOne(ctx context.Context, log *logger.Logger, dryRun bool, session grade.Session, line int, externalID string, result *RejectAppealResult) error {
	internalID, ok, err := h.deps.resolve(ctx, log, &result.RunStats, line, externalID)
	if err != nil || !ok {
		return err
	}
	rec, ok, err := h.deps.load(ctx, log, &result.RunStats, line, externalID, internalID)
	if err != nil || !ok {
		return err
	}

	res := grade.Reject(rec, session)
	if !res.Changed() {
		result.Count(false)
		return nil
	}

	if res.WrittenRemoved != nil {
		if err := h.deps.replace(ctx, dryRun, internalID, grade.FieldWrittenGrades, rec.WrittenGrades); err != nil {
			return fmt.Errorf("store written grades of %s: %w", externalID, err)
		}
	}
	if res.ProjectRemoved != nil {
		if err := h.deps.replace(ctx, dryRun, internalID, grade.FieldProjectGrades, rec.ProjectGrades); err != nil {
			return fmt.Errorf("store project grades of %s: %w", externalID, err)
		}
	}
	if res.Marked {
		if err := h.deps.replace(ctx, dryRun, internalID, grade.FieldRejected, rec.Rejected); err != nil {
			return fmt.Errorf("store rejection of %s: %w", externalID, err)
		}
	}

	result.Count(true)
	log.Info("appeal rejected",
		logger.StudentID(externalID),
		logger.Bool("written_removed", res.WrittenRemoved != nil),
		logger.Bool("project_removed", res.ProjectRemoved != nil))
	return nil
}
