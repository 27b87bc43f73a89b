package command

import (
	"context"
	"fmt"
	"slices"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// INGEST WRITTEN COMMAND
// Merges one written exam sitting into every registered student's history.
// ══════════════════════════════════════════════════════════════════════════════

// IngestWrittenCommand contains one written exam batch.
type IngestWrittenCommand struct {
	// Session is the batch's session key, already tagged or overridden.
	Session string

	// Roster lists the external ids registered for the sitting.
	Roster []string

	// Rows holds one row per student who sat the exam, by external id.
	Rows map[string]*grade.WrittenRow

	// Unreadable lists export rows that could not be parsed. Their students
	// are counted as failed and left untouched instead of being recorded
	// ABSENT. A row whose student id is unknown makes the batch malformed.
	Unreadable []RowError

	DryRun bool
}

// Validate validates the command.
func (c IngestWrittenCommand) Validate() error {
	if c.Session == "" {
		return shared.Malformed("IngestWritten", "written session key is empty")
	}
	if len(c.Roster) == 0 {
		return shared.Malformed("IngestWritten", "roster is empty")
	}
	for _, u := range c.Unreadable {
		if u.StudentID == "" {
			return shared.Malformed("IngestWritten",
				"line %d cannot be attributed to a student: %s", u.Line, u.cause())
		}
	}
	return nil
}

// IngestWrittenResult contains the outcome of a written run.
type IngestWrittenResult struct {
	RunStats
	Session string `json:"session"`

	// Statuses counts the derived status of every merged roster student.
	Statuses map[grade.WrittenStatus]int `json:"statuses"`

	// NotOnRoster lists students who sat the exam without being registered.
	NotOnRoster []string `json:"not_on_roster,omitempty"`
}

// IngestWrittenHandlerConfig contains configuration for the handler.
type IngestWrittenHandlerConfig struct {
	// Threshold is the minimum passing score. Zero accepts any score.
	Threshold float64
}

// DefaultIngestWrittenHandlerConfig returns default configuration.
func DefaultIngestWrittenHandlerConfig() IngestWrittenHandlerConfig {
	return IngestWrittenHandlerConfig{Threshold: grade.DefaultWrittenThreshold}
}

// IngestWrittenHandler handles the IngestWrittenCommand.
type IngestWrittenHandler struct {
	deps      Deps
	threshold float64
}

// NewIngestWrittenHandler creates a new IngestWrittenHandler.
func NewIngestWrittenHandler(deps Deps, config IngestWrittenHandlerConfig) *IngestWrittenHandler {
	if config.Threshold < 0 {
		config = DefaultIngestWrittenHandlerConfig()
	}
	return &IngestWrittenHandler{deps: deps.withDefaults(), threshold: config.Threshold}
}

// Handle executes the written merge. The written marker is set before any
// record is touched; a roster student missing from Rows and Unreadable is
// recorded ABSENT.
func (h *IngestWrittenHandler) Handle(ctx context.Context, cmd IngestWrittenCommand) (*IngestWrittenResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("ingest_written: %w", err)
	}

	log := h.deps.Logger.With(logger.Component("ingest_written"), logger.Session(cmd.Session))
	result := &IngestWrittenResult{
		Session:  cmd.Session,
		Statuses: map[grade.WrittenStatus]int{},
	}

	for id := range cmd.Rows {
		if !slices.Contains(cmd.Roster, id) {
			result.NotOnRoster = append(result.NotOnRoster, id)
		}
	}
	slices.Sort(result.NotOnRoster)
	for _, id := range result.NotOnRoster {
		log.Warn("student sat the exam but is not on the roster", logger.StudentID(id))
	}

	unreadable := make(map[string]RowError, len(cmd.Unreadable))
	for _, u := range cmd.Unreadable {
		unreadable[u.StudentID] = u
	}

	err := h.deps.locked(ctx, "ingest_written", func() error {
		if err := h.deps.setMarker(ctx, cmd.DryRun, grade.StreamWritten, cmd.Session); err != nil {
			return err
		}
		for i, externalID := range cmd.Roster {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.Total++
			if u, bad := unreadable[externalID]; bad {
				delete(unreadable, externalID)
				result.AddFailure(u.Line, externalID, u.cause())
				log.Warn("unreadable exam row, student left untouched",
					logger.StudentID(externalID), logger.Row(u.Line), logger.Err(u.cause()))
				continue
			}
			if err := h.mergeOne(ctx, log, cmd, i+1, externalID, result); err != nil {
				return err
			}
		}
		// unreadable rows of students outside the roster
		for _, u := range cmd.Unreadable {
			if _, left := unreadable[u.StudentID]; left {
				result.Total++
				result.AddFailure(u.Line, u.StudentID, u.cause())
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("ingest_written: %w", err)
	}

	log.Info("written session merged",
		logger.Int("total", result.Total),
		logger.Int("merged", result.Merged),
		logger.Int("unchanged", result.Unchanged),
		logger.Int("skipped", result.Skipped),
		logger.Int("failed", result.Failed),
		logger.Bool("dry_run", cmd.DryRun))
	return result, nil
}

func (h *IngestWrittenHandler) mergeOne(ctx context.Context, log *logger.Logger, cmd IngestWrittenCommand, line int, externalID string, result *IngestWrittenResult) error {
	internalID, ok, err := h.deps.resolve(ctx, log, &result.RunStats, line, externalID)
	if err != nil || !ok {
		return err
	}
	rec, ok, err := h.deps.load(ctx, log, &result.RunStats, line, externalID, internalID)
	if err != nil || !ok {
		return err
	}

	entry := grade.NewWrittenEntry(cmd.Session, cmd.Rows[externalID], h.threshold)
	history, changed, err := grade.AmendWritten(rec.WrittenGrades, entry)
	if err != nil {
		return fmt.Errorf("student %s: %w", externalID, err)
	}
	if changed {
		if err := h.deps.replace(ctx, cmd.DryRun, internalID, grade.FieldWrittenGrades, history); err != nil {
			return fmt.Errorf("store written grades of %s: %w", externalID, err)
		}
		log.Debug("written entry merged", logger.StudentID(externalID), logger.String("status", string(entry.Status)))
	}
	result.Statuses[entry.Status]++
	result.Count(changed)
	return nil
}
