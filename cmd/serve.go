package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/scheduler"
	"github.com/desertthunder/wlsync/internal/server"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP command surface until interrupted, with an optional recurring pass.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := *r.config
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("schedule") {
		cfg.Scheduler.Spec = cmd.String("schedule")
	}
	if cmd.IsSet("schedule-action") {
		cfg.Scheduler.Action = cmd.String("schedule-action")
	}

	s, err := r.services()
	if err != nil {
		return err
	}

	if n, err := s.runs.MarkInterrupted(); err != nil {
		r.logger.Warn("failed to mark interrupted runs", "error", err)
	} else if n > 0 {
		r.logger.Warn("runs interrupted by a previous shutdown", "count", n)
	}
	r.provisionProxies(ctx, s.proxies)

	if cfg.Scheduler.Spec != "" {
		action, err := models.ParseAction(cfg.Scheduler.Action)
		if err != nil {
			return fmt.Errorf("%w: scheduler action: %v", shared.ErrInvalidConfig, err)
		}
		sched := scheduler.NewScheduler(r.logger)
		if err := sched.AddJob(cfg.Scheduler.Spec, scheduler.NewPassJob(action, s.orch, r.logger)); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := server.New(server.ServerOpts{Config: &cfg, Commands: s.orch, Logger: r.logger})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writePlain("Listening on http://%s\n", srv.Addr())
	return srv.Run(ctx)
}
