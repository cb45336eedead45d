package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// ProxyDownload fetches the online candidate lists into the proxy directory.
func (r *Runner) ProxyDownload(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.EnsureDirs(); err != nil {
		return err
	}

	pool := r.pool()
	counts, err := pool.Download(ctx)
	if err != nil {
		return fmt.Errorf("failed to download proxy lists: %w", err)
	}

	protocols := make([]string, 0, len(counts))
	for p := range counts {
		protocols = append(protocols, p)
	}
	sort.Strings(protocols)

	r.writePlainHeader("Proxy lists")
	for _, p := range protocols {
		r.writePlain("%-8s %5d  %s\n", p, counts[p], pool.CandidateFile(p))
	}
	return nil
}

// ProxyCheck validates every candidate against the module and writes the survivors.
func (r *Runner) ProxyCheck(ctx context.Context, cmd *cli.Command) error {
	site, err := r.site(cmd.StringArg("module"))
	if err != nil {
		return err
	}
	cfg := site.Config()

	if !r.config.Features.CheckProxies && !cmd.Bool("force") {
		return fmt.Errorf("%w: features.check_proxies is off, use --force", shared.ErrInvalidConfig)
	}

	pool := r.pool()
	candidates, err := pool.Candidates()
	if err != nil {
		return err
	}

	target := cfg.GeneralURL
	if r.config.Proxy.CheckURL != "" {
		target = r.config.Proxy.CheckURL
	}

	r.logger.Info("checking proxies", "module", cfg.Name, "candidates", len(candidates), "target", target)
	survivors, err := pool.Refresh(ctx, cfg.Name, candidates, target)
	if err != nil {
		return fmt.Errorf("failed to check proxies: %w", err)
	}

	r.writePlain("✓ %d of %d proxies work for %s\n", len(survivors), len(candidates), cfg.Name)
	r.writePlain("Saved to: %s\n", pool.SurvivorFile(cfg.Name))
	return nil
}

// ProxyList prints the validated proxies of a module.
func (r *Runner) ProxyList(ctx context.Context, cmd *cli.Command) error {
	site, err := r.site(cmd.StringArg("module"))
	if err != nil {
		return err
	}

	list, err := r.pool().Load(site.Config().Name)
	if err != nil {
		return err
	}
	for _, p := range list {
		r.writePlain("%s\n", p)
	}
	return nil
}
