package command

import (
	"context"
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// INGEST REPORT COMMAND
// Merges manually graded reports into the current project session.
// ══════════════════════════════════════════════════════════════════════════════

// ReportLine is one graded report for one student.
type ReportLine struct {
	Line      int
	StudentID string
	Row       grade.ReportRow
}

// IngestReportCommand contains one batch of graded reports.
type IngestReportCommand struct {
	Reports []ReportLine

	// Session overrides the stored project marker when set.
	Session string

	DryRun bool
}

// Validate validates the command.
func (c IngestReportCommand) Validate() error {
	if len(c.Reports) == 0 {
		return shared.Malformed("IngestReport", "report batch is empty")
	}
	seen := make(map[string]int, len(c.Reports))
	for _, r := range c.Reports {
		if prev, dup := seen[r.StudentID]; dup {
			return shared.Malformed("IngestReport", "student %s graded on lines %d and %d", r.StudentID, prev, r.Line)
		}
		seen[r.StudentID] = r.Line
	}
	return nil
}

// IngestReportResult contains the outcome of a report run.
type IngestReportResult struct {
	RunStats
	Session string `json:"session"`

	// Completed counts entries that reached OK with this batch.
	Completed int `json:"completed"`
}

// IngestReportHandler handles the IngestReportCommand.
type IngestReportHandler struct {
	deps Deps
}

// NewIngestReportHandler creates a new IngestReportHandler.
func NewIngestReportHandler(deps Deps) *IngestReportHandler {
	return &IngestReportHandler{deps: deps.withDefaults()}
}

// Handle executes the report merge. Reports are tagged with the stored
// project marker; without one the run fails with shared.ErrSessionNotSet.
func (h *IngestReportHandler) Handle(ctx context.Context, cmd IngestReportCommand) (*IngestReportResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("ingest_report: %w", err)
	}

	result := &IngestReportResult{}
	err := h.deps.locked(ctx, "ingest_report", func() error {
		session, err := h.session(ctx, cmd)
		if err != nil {
			return err
		}
		result.Session = session
		log := h.deps.Logger.With(logger.Component("ingest_report"), logger.Session(session))

		for _, line := range cmd.Reports {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.Total++
			if err := h.mergeOne(ctx, log, cmd.DryRun, session, line, result); err != nil {
				return err
			}
		}

		log.Info("reports merged",
			logger.Int("total", result.Total),
			logger.Int("merged", result.Merged),
			logger.Int("completed", result.Completed),
			logger.Int("skipped", result.Skipped),
			logger.Bool("dry_run", cmd.DryRun))
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("ingest_report: %w", err)
	}
	return result, nil
}

func (h *IngestReportHandler) session(ctx context.Context, cmd IngestReportCommand) (string, error) {
	if cmd.Session != "" {
		return grade.Override(grade.StreamProject, cmd.Session)
	}
	current, err := h.deps.Markers.CurrentSession(ctx)
	if err != nil {
		return "", fmt.Errorf("read session markers: %w", err)
	}
	if current.Project == "" {
		return "", shared.ErrSessionNotSet
	}
	return current.Project, nil
}

func (h *IngestReportHandler) mergeOne(ctx context.Context, log *logger.Logger, dryRun bool, session string, line ReportLine, result *IngestReportResult) error {
	internalID, ok, err := h.deps.resolve(ctx, log, &result.RunStats, line.Line, line.StudentID)
	if err != nil || !ok {
		return err
	}
	rec, ok, err := h.deps.load(ctx, log, &result.RunStats, line.Line, line.StudentID, internalID)
	if err != nil || !ok {
		return err
	}

	history, changed, err := grade.AmendReport(rec.ProjectGrades, session, line.Row)
	if err != nil {
		return fmt.Errorf("student %s: %w", line.StudentID, err)
	}
	if !changed {
		result.Count(false)
		return nil
	}
	if err := h.deps.replace(ctx, dryRun, internalID, grade.FieldProjectGrades, history); err != nil {
		return fmt.Errorf("store project grades of %s: %w", line.StudentID, err)
	}
	result.Count(true)
	if entry, ok := grade.CurrentProject(history, session); ok && entry.SessionKey == session {
		result.Completed++
	}
	return nil
}
