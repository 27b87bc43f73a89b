package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dsl-grades/grade-hub/internal/application/command"
	"github.com/dsl-grades/grade-hub/internal/application/query"
)

// ─────────────────────────────────────────────────────────────────────────────
// Student management
// ─────────────────────────────────────────────────────────────────────────────

func newRenameCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old-id> <new-id>",
		Short: "Move a student to a new student id, keeping every grade",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) (any, error) {
				return result(command.NewRenameStudentHandler(app.CommandDeps()).Handle(ctx,
					command.RenameStudentCommand{OldID: args[0], NewID: args[1], DryRun: opts.dryRun}))
			})
		},
	}
}

func newRemoveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <student-id>",
		Short: "Delete a student's id mapping and grade record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) (any, error) {
				return result(command.NewRemoveStudentHandler(app.CommandDeps()).Handle(ctx,
					command.RemoveStudentCommand{StudentID: args[0], DryRun: opts.dryRun}))
			})
		},
	}
}

func newRejectCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <student-id>...",
		Short: "Roll back the current appeal for students who refused their outcome",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) (any, error) {
				return result(command.NewRejectAppealHandler(app.CommandDeps()).Handle(ctx,
					command.RejectAppealCommand{StudentIDs: args, DryRun: opts.dryRun}))
			})
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

func newToCorrectCommand(opts *options) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "to-correct",
		Short: "List the students whose project report still has to be graded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) (any, error) {
				h := query.NewReportsToCorrectHandler(app.QueryDeps(), app.Config.Grading.ReportThreshold)
				list, err := h.Handle(ctx, query.ReportsToCorrectQuery{ProjectSession: session})
				if err != nil {
					return nil, err
				}
				return list, nil
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "project session key instead of the stored marker")
	return cmd
}

func newFinalCommand(opts *options) *cobra.Command {
	var q query.FinalGradesQuery
	cmd := &cobra.Command{
		Use:   "final [student-id...]",
		Short: "Compute the appeal verdict of every student, or of the given ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			q.StudentIDs = args
			return opts.run(cmd, func(ctx context.Context, app *App) (any, error) {
				return result(query.NewFinalGradesHandler(app.QueryDeps(), app.Config.Grading.PassMark).Handle(ctx, q))
			})
		},
	}
	cmd.Flags().StringVar(&q.WrittenSession, "written-session", "", "written session key instead of the stored marker")
	cmd.Flags().StringVar(&q.ProjectSession, "project-session", "", "project session key instead of the stored marker")
	return cmd
}

func newProjectSessionCommand(opts *options) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "project-session",
		Short: "List the completed project evaluations of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) (any, error) {
				return result(query.NewProjectSessionHandler(app.QueryDeps()).Handle(ctx, query.ProjectSessionQuery{Session: session}))
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "project session key instead of the stored marker")
	return cmd
}
