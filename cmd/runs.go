package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
)

// Runs lists the recorded passes, newest first.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	s, err := r.services()
	if err != nil {
		return err
	}

	runs, err := s.runs.List(map[string]any{
		"action": cmd.String("action"),
		"module": cmd.String("module"),
		"status": cmd.String("status"),
		"limit":  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		r.writePlain("No runs recorded.\n")
		return nil
	}

	r.writePlain("%-5s %-7s %-14s %-8s %9s %6s  %-19s %s\n",
		"#", "action", "module", "status", "processed", "failed", "started", "duration")
	for _, run := range runs {
		r.writePlain("%-5d %-7s %-14s %-8s %9d %6d  %-19s %s\n",
			run.Sequence, run.Action, run.Module, run.Status, run.Processed, run.Failed,
			run.StartedAt.Local().Format(time.DateTime), run.Duration().Round(time.Second))
		if run.ErrorMessage != "" {
			r.writePlain("      error: %s\n", run.ErrorMessage)
		}
	}
	return nil
}
