package command

import (
	"context"
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// INGEST LEADERBOARD COMMAND
// Aggregates leaderboard submissions per team and folds the best team score
// into every member's project history.
// ══════════════════════════════════════════════════════════════════════════════

// IngestLeaderboardCommand contains one project session's team declarations
// and leaderboard submissions.
type IngestLeaderboardCommand struct {
	// Session is the project session key, already tagged or overridden.
	Session string

	Teams       []grade.TeamRow
	Submissions []grade.Submission

	DryRun bool
}

// Validate validates the command.
func (c IngestLeaderboardCommand) Validate() error {
	if c.Session == "" {
		return shared.Malformed("IngestLeaderboard", "project session key is empty")
	}
	if len(c.Teams) == 0 && len(c.Submissions) == 0 {
		return shared.Malformed("IngestLeaderboard", "no teams and no submissions")
	}
	return nil
}

// IngestLeaderboardResult contains the outcome of a leaderboard run.
type IngestLeaderboardResult struct {
	RunStats
	Session string `json:"session"`

	// Teams is the number of teams built, synthesized singletons included.
	Teams int `json:"teams"`

	// Synthesized counts singleton teams created for undeclared submitters.
	Synthesized int `json:"synthesized"`

	// NoSubmission counts declared teams that never reached the leaderboard.
	NoSubmission int `json:"no_submission"`
}

// IngestLeaderboardHandler handles the IngestLeaderboardCommand.
type IngestLeaderboardHandler struct {
	deps Deps
}

// NewIngestLeaderboardHandler creates a new IngestLeaderboardHandler.
func NewIngestLeaderboardHandler(deps Deps) *IngestLeaderboardHandler {
	return &IngestLeaderboardHandler{deps: deps.withDefaults()}
}

// Handle executes the leaderboard merge. Teams are built before the lock is
// taken so a malformed batch aborts without any write.
func (h *IngestLeaderboardHandler) Handle(ctx context.Context, cmd IngestLeaderboardCommand) (*IngestLeaderboardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("ingest_leaderboard: %w", err)
	}

	teams, err := grade.BuildTeams(cmd.Session, cmd.Teams, cmd.Submissions)
	if err != nil {
		return nil, fmt.Errorf("ingest_leaderboard: %w", err)
	}

	log := h.deps.Logger.With(logger.Component("ingest_leaderboard"), logger.Session(cmd.Session))
	result := &IngestLeaderboardResult{Session: cmd.Session, Teams: len(teams)}
	for _, t := range teams {
		if t.Synthesized {
			result.Synthesized++
		}
		if !t.Submitted() {
			result.NoSubmission++
		}
	}

	err = h.deps.locked(ctx, "ingest_leaderboard", func() error {
		if err := h.deps.setMarker(ctx, cmd.DryRun, grade.StreamProject, cmd.Session); err != nil {
			return err
		}
		for i, team := range teams {
			for _, externalID := range team.MemberIDs() {
				if err := ctx.Err(); err != nil {
					return err
				}
				result.Total++
				if err := h.mergeMember(ctx, log, cmd.DryRun, i+1, externalID, team, result); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("ingest_leaderboard: %w", err)
	}

	log.Info("leaderboard merged",
		logger.Int("teams", result.Teams),
		logger.Int("synthesized", result.Synthesized),
		logger.Int("no_submission", result.NoSubmission),
		logger.Int("merged", result.Merged),
		logger.Int("unchanged", result.Unchanged),
		logger.Int("skipped", result.Skipped),
		logger.Bool("dry_run", cmd.DryRun))
	return result, nil
}

func (h *IngestLeaderboardHandler) mergeMember(ctx context.Context, log *logger.Logger, dryRun bool, teamNo int, externalID string, team grade.Team, result *IngestLeaderboardResult) error {
	internalID, ok, err := h.deps.resolve(ctx, log, &result.RunStats, teamNo, externalID)
	if err != nil || !ok {
		return err
	}
	rec, ok, err := h.deps.load(ctx, log, &result.RunStats, teamNo, externalID, internalID)
	if err != nil || !ok {
		return err
	}

	history, changed, err := grade.AmendTeam(rec.ProjectGrades, team)
	if err != nil {
		return fmt.Errorf("student %s: %w", externalID, err)
	}
	if changed {
		if err := h.deps.replace(ctx, dryRun, internalID, grade.FieldProjectGrades, history); err != nil {
			return fmt.Errorf("store project grades of %s: %w", externalID, err)
		}
	}
	result.Count(changed)
	return nil
}
