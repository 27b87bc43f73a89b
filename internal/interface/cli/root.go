// Package cli is the command-line surface of grade-hub: one cobra command
// per batch ingestion or query, all sharing the store wiring in App.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dsl-grades/grade-hub/config"
	"github.com/dsl-grades/grade-hub/pkg/logger"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	schemaPath string
	dryRun     bool
	out        string
	logLevel   string

	stdout io.Writer
}

// NewRootCommand builds the gradehub command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdout)
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	opts := &options{stdout: stdout}

	root := &cobra.Command{
		Use:   "gradehub",
		Short: "Merge course grade exports into per-student records and compute final grades",
		Long: `gradehub ingests the batch exports of a course (enrollment lists, written
exam results, team forms, leaderboards and report sheets) into one grade
record per student, and answers the questions asked at every exam appeal.

The store is selected with STORE_BACKEND (memory, postgres, sqlite, mongo).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.schemaPath, "config", "", "YAML column schema (overrides GRADEHUB_SCHEMA)")
	pf.BoolVar(&opts.dryRun, "dry-run", false, "report what would change without writing")
	pf.StringVarP(&opts.out, "out", "o", "-", "write the JSON result to this file (- for stdout)")
	pf.StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		newEnrollCommand(opts),
		newWrittenCommand(opts),
		newLeaderboardCommand(opts),
		newReportCommand(opts),
		newRenameCommand(opts),
		newRemoveCommand(opts),
		newRejectCommand(opts),
		newToCorrectCommand(opts),
		newFinalCommand(opts),
		newProjectSessionCommand(opts),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// run loads the configuration, wires the stores and calls fn. Connections
// are closed whatever fn returns.
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, app *App) (any, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}

	log, err := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: cfg.Observability.LogFormat,
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(logger.Operation(cmd.Name()))

	schemaPath := cfg.SchemaPath
	if o.schemaPath != "" {
		schemaPath = o.schemaPath
	}
	schema, err := config.LoadSchema(schemaPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if cfg.App.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.App.RunTimeout)
		defer cancel()
	}
	ctx = logger.WithContext(ctx, log)

	app, err := Bootstrap(ctx, cfg, schema, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn("closing store failed", logger.Err(cerr))
		}
	}()

	result, err := fn(ctx, app)
	if result != nil {
		if werr := o.write(result); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// write encodes v as indented JSON to --out.
func (o *options) write(v any) error {
	w := o.stdout
	if o.out != "" && o.out != "-" {
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", o.out, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
