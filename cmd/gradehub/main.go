// Package main is the entry point of the gradehub command-line tool.
//
// Every invocation ingests one batch export or answers one query against
// the configured document store, then exits:
//
//	gradehub enroll students.csv
//	gradehub written exam.csv roster.csv
//	gradehub leaderboard teams.csv leaderboard.csv
//	gradehub report reports.csv
//	gradehub final --out final.json
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dsl-grades/grade-hub/internal/interface/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "gradehub: %v\n", err)
		stop()
		os.Exit(1)
	}
}
