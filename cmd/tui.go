package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch launches the interactive progress monitor for one action of a session.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	action, err := models.ParseAction(cmd.String("action"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	path := filepath.Join(r.config.Paths.LogsDir, "watch.log")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.closers = append(r.closers, f)
	r.SetLogger(shared.NewLogger(f))

	s, err := r.services()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, s.orch, ui.Options{
		Session:    cmd.String("session"),
		Action:     action,
		ExitOnDone: cmd.Bool("exit-on-done"),
	})
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return model.Err()
}
