package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/wlsync/internal/command"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Parse runs a scrape pass in the foreground.
func (r *Runner) Parse(ctx context.Context, cmd *cli.Command) error {
	return r.pass(ctx, cmd, models.ActionParse)
}

// Export runs an export pass in the foreground.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	return r.pass(ctx, cmd, models.ActionExport)
}

// pass starts action through the orchestrator and follows it until the task is done.
//
// An interrupt sends the stop command; titles completed before it stay in the dump.
func (r *Runner) pass(ctx context.Context, cmd *cli.Command, action models.Action) error {
	s, err := r.services()
	if err != nil {
		return err
	}

	if err := r.selectModules(ctx, s, cmd, action); err != nil {
		return err
	}
	r.provisionProxies(ctx, s.proxies)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := s.orch.Start(ctx, cliSession, action)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", action, err)
	}
	r.logger.Info("pass started", "action", action, "task", id)

	info, err := r.waitTask(ctx, s, action, id, cmd.Duration("interval"), cmd.Bool("quiet"))
	if err != nil {
		return err
	}
	return r.report(info, cmd.Bool("json"))
}

// selectModules stores the modules and cookies of the pass for the command line session.
func (r *Runner) selectModules(ctx context.Context, s *stack, cmd *cli.Command, action models.Action) error {
	type selection struct {
		action  models.Action
		module  string
		cookies string
	}

	selections := []selection{{action, cmd.String("module"), cmd.String("cookies")}}
	if action == models.ActionExport {
		selections = append(selections, selection{models.ActionParse, cmd.String("source"), cmd.String("source-cookies")})
	}

	for _, sel := range selections {
		module := sel.module
		if module == "" {
			module = s.orch.SelectedModule(ctx, cliSession, sel.action.Module())
		}
		req := models.SetupRequest{Action: sel.action, Module: module, Cookies: sel.cookies}
		if resp := s.orch.Setup(ctx, cliSession, req); resp.Status == models.ResponseFail {
			return fmt.Errorf("%w: %s module %q", shared.ErrModuleDisabled, sel.action.Module(), module)
		}
		r.logger.Debug("module selected", "role", sel.action.Module(), "module", module)
	}
	return nil
}

// waitTask polls the task until it is done, printing progress unless quiet.
func (r *Runner) waitTask(ctx context.Context, s *stack, action models.Action, id string, interval time.Duration, quiet bool) (command.TaskInfo, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bg := context.WithoutCancel(ctx)
	for {
		info, err := s.runner.Status(bg, id)
		if err != nil {
			return info, err
		}
		if info.State.Done() {
			return info, nil
		}

		if !quiet {
			if p, err := s.orch.Progress(bg, cliSession, action); err == nil && p.Running {
				r.writePlain("%s\n", progressLine(p))
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Warn("interrupted, stopping pass", "action", action, "task", id)
			resp := s.orch.Handle(bg, cliSession, models.CommandRequest{Action: action, Command: models.CommandStop})
			if resp.Status == models.ResponseFail {
				r.logger.Error("stop command failed", "action", action)
			}
			s.runner.Wait()
			return s.runner.Status(bg, id)
		case <-ticker.C:
		}
	}
}

func progressLine(p models.ProgressState) string {
	return fmt.Sprintf("[%3d%%] %d/%d  %s %d/%d",
		p.Percent(), p.Overall.Now, p.Overall.Max, p.Current.Watchlist, p.Current.Now, p.Current.Max)
}

// report prints the outcome of a finished task.
func (r *Runner) report(info command.TaskInfo, asJSON bool) error {
	if asJSON {
		if err := r.writeJSON(info, true); err != nil {
			return err
		}
	}

	switch info.State {
	case models.TaskFailure:
		return fmt.Errorf("%s pass failed: %s", info.Action, info.Error)
	case models.TaskRevoked:
		if !asJSON {
			r.writePlain("Pass stopped, completed titles were kept.\n")
		}
		return nil
	}
	if asJSON {
		return nil
	}

	res := info.Result
	if res == nil {
		r.writePlain("Pass finished without a result.\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("%s: %s", res.Action, res.Module))
	r.writePlain("%-10s %8s %8s %8s %8s %8s\n", "kind", "listed", "stored", "skipped", "failed", "deleted")
	for _, k := range res.Kinds {
		r.writePlain("%-10s %8d %8d %8d %8d %8d\n", k.Kind, k.Enumerated, k.Stored, k.Skipped, k.Failed, k.Deleted)
	}
	r.writePlainln("Processed %d titles, %d failed", res.Processed, res.Failed)
	return nil
}
