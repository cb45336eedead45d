package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/wlsync/internal/command"
	"github.com/desertthunder/wlsync/internal/proxy"
	"github.com/desertthunder/wlsync/internal/repositories"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/store"
	"github.com/desertthunder/wlsync/internal/tasks"
	"github.com/desertthunder/wlsync/internal/web"
)

// stack is the set of long-lived services shared by the pass, serve, dump and watch commands.
type stack struct {
	db      *sql.DB
	state   *repositories.StateRepository
	runs    *repositories.RunRepository
	stores  *store.Factory
	proxies *proxy.Pool
	actions *tasks.ActionService
	runner  *command.LocalRunner
	orch    *command.Orchestrator
}

// services opens the database and builds the stack on first use.
func (r *Runner) services() (*stack, error) {
	if r.stack != nil {
		return r.stack, nil
	}
	if err := r.config.EnsureDirs(); err != nil {
		return nil, err
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}

	s := &stack{
		db:      db,
		state:   repositories.NewStateRepository(db),
		runs:    repositories.NewRunRepository(db),
		stores:  store.NewFactory(r.config, db, r.logger),
		proxies: r.pool(),
	}
	s.actions = tasks.NewActionService(tasks.ServiceOpts{
		Config:    r.config,
		Registry:  r.registry,
		Stores:    s.stores,
		Proxies:   s.proxies,
		State:     s.state,
		Transport: r.transport,
		Logger:    r.logger,
	})
	s.runner = command.NewLocalRunner(command.LocalRunnerOpts{
		State:  s.state,
		Runs:   s.runs,
		Logger: r.logger,
	})
	s.orch = command.NewOrchestrator(command.OrchestratorOpts{
		Config:   r.config,
		Runner:   s.runner,
		Passes:   s.actions,
		State:    s.state,
		Renderer: web.NewRenderer(r.config.Server.TitlesLimit),
		Logger:   r.logger,
	})

	r.stack = s
	return s, nil
}

// pool builds the proxy pool over the configured list directory.
func (r *Runner) pool() *proxy.Pool {
	return proxy.NewPool(proxy.PoolOpts{
		Dir:       r.config.Paths.ProxyListsDir,
		Protocols: r.config.Proxy.Protocols,
		Lists:     r.config.Proxy.OnlineLists,
		Timeout:   r.config.Proxy.CheckTimeout.Duration,
		Workers:   r.config.Workers(),
		Logger:    r.logger,
	})
}

// provisionProxies downloads fresh candidate lists when features.download_proxy_lists is set.
func (r *Runner) provisionProxies(ctx context.Context, pool *proxy.Pool) {
	if !r.config.Features.DownloadProxyLists {
		return
	}
	counts, err := pool.Download(ctx)
	if err != nil {
		r.logger.Warn("proxy list download failed", "error", err)
		return
	}
	r.logger.Info("proxy lists downloaded", "counts", counts)
}

// close waits for the background passes and closes the database.
func (s *stack) close() error {
	var errs []error
	if err := s.runner.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop task runner: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}
