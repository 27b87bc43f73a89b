package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dsl-grades/grade-hub/internal/application/command"
	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/infrastructure/ingest"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// result drops typed nil pointers so nothing is printed for a failed run.
func result[T any](res *T, err error) (any, error) {
	if res == nil {
		return nil, err
	}
	return res, err
}

// unreadable records the rows the ingest readers rejected as run failures.
func unreadable(ctx context.Context, stats *command.RunStats, file string, rows []ingest.RowError) {
	log := logger.FromContext(ctx)
	for _, r := range rows {
		stats.Total++
		stats.AddFailure(r.Line, r.StudentID, r.Err)
		log.Warn("row rejected", logger.File(file), logger.Row(r.Line), logger.StudentID(r.StudentID), logger.Err(r.Err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// enroll
// ─────────────────────────────────────────────────────────────────────────────

func newEnrollCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <students.csv>",
		Short: "Register students and create their empty grade records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) (any, error) {
				t, err := ingest.ReadCSV(args[0])
				if err != nil {
					return nil, err
				}
				students, bad, err := ingest.ReadEnrollment(t, app.Schema.Enrollment)
				if err != nil {
					return nil, err
				}

				c := command.EnrollStudentsCommand{DryRun: opts.dryRun}
				for _, s := range students {
					c.Students = append(c.Students, command.Enrollee{Line: s.Line, ID: s.ID, Name: s.Name, Surname: s.Surname})
				}
				res, err := command.NewEnrollStudentsHandler(app.CommandDeps()).Handle(ctx, c)
				if res != nil {
					unreadable(ctx, &res.RunStats, args[0], bad)
				}
				return result(res, err)
			})
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// written
// ─────────────────────────────────────────────────────────────────────────────

func newWrittenCommand(opts *options) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "written <exam.csv> <roster.csv>",
		Short: "Merge a written exam sitting into every registered student's history",
		Long: `Merge a written exam sitting. The exam export holds one row per student
who sat the exam; the roster lists every registered student. Registered
students missing from the export are recorded ABSENT.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) (any, error) {
				exam, err := ingest.ReadCSV(args[0])
				if err != nil {
					return nil, err
				}
				sheet, badRows, err := ingest.ReadWritten(exam, app.Schema.Written)
				if err != nil {
					return nil, err
				}
				rosterTable, err := ingest.ReadCSV(args[1])
				if err != nil {
					return nil, err
				}
				roster, badRoster, err := ingest.ReadRoster(rosterTable, app.Schema.Roster)
				if err != nil {
					return nil, err
				}

				key, err := sessionKey(grade.StreamWritten, session, sheet.Session)
				if err != nil {
					return nil, err
				}

				c := command.IngestWrittenCommand{
					Session: key,
					Roster:  roster,
					Rows:    sheet.ByStudent,
					DryRun:  opts.dryRun,
				}
				for _, r := range badRows {
					c.Unreadable = append(c.Unreadable, command.RowError{Line: r.Line, StudentID: r.StudentID, Err: r.Err})
				}
				res, err := command.NewIngestWrittenHandler(app.CommandDeps(), command.IngestWrittenHandlerConfig{
					Threshold: app.Config.Grading.WrittenThreshold,
				}).Handle(ctx, c)
				if res != nil {
					unreadable(ctx, &res.RunStats, args[1], badRoster)
				}
				return result(res, err)
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session key to use instead of the one read from the export")
	return cmd
}

// sessionKey prefers an operator override over the key tagged from the batch.
func sessionKey(stream grade.Stream, override string, tag func() (string, error)) (string, error) {
	if override != "" {
		return grade.Override(stream, override)
	}
	return tag()
}

// ─────────────────────────────────────────────────────────────────────────────
// leaderboard
// ─────────────────────────────────────────────────────────────────────────────

func newLeaderboardCommand(opts *options) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "leaderboard <teams.csv> <leaderboard.csv>",
		Short: "Merge the best leaderboard score of every team into its members' histories",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) (any, error) {
				teamsTable, err := ingest.ReadCSV(args[0])
				if err != nil {
					return nil, err
				}
				teams, badTeams, err := ingest.ReadTeams(teamsTable, app.Schema.Teams)
				if err != nil {
					return nil, err
				}
				boardTable, err := ingest.ReadCSV(args[1])
				if err != nil {
					return nil, err
				}
				subs, badSubs, err := ingest.ReadLeaderboard(boardTable, app.Schema.Leaderboard)
				if err != nil {
					return nil, err
				}

				key, err := sessionKey(grade.StreamProject, session, teams.Session)
				if err != nil {
					return nil, err
				}

				res, err := command.NewIngestLeaderboardHandler(app.CommandDeps()).Handle(ctx, command.IngestLeaderboardCommand{
					Session:     key,
					Teams:       teams.Teams,
					Submissions: subs,
					DryRun:      opts.dryRun,
				})
				if res != nil {
					unreadable(ctx, &res.RunStats, args[0], badTeams)
					unreadable(ctx, &res.RunStats, args[1], badSubs)
				}
				return result(res, err)
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "project session key to use instead of the one read from the team form")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// report
// ─────────────────────────────────────────────────────────────────────────────

func newReportCommand(opts *options) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "report <reports.csv>",
		Short: "Merge graded reports into the current project session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) (any, error) {
				t, err := ingest.ReadCSV(args[0])
				if err != nil {
					return nil, err
				}
				lines, bad, err := ingest.ReadReports(t, app.Schema.Report)
				if err != nil {
					return nil, err
				}

				c := command.IngestReportCommand{Session: session, DryRun: opts.dryRun}
				for _, l := range lines {
					c.Reports = append(c.Reports, command.ReportLine{Line: l.Line, StudentID: l.StudentID, Row: l.Row})
				}
				res, err := command.NewIngestReportHandler(app.CommandDeps()).Handle(ctx, c)
				if res != nil {
					unreadable(ctx, &res.RunStats, args[0], bad)
				}
				return result(res, err)
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "project session key to use instead of the stored marker")
	return cmd
}
