package main

import (
	"context"

	"github.com/desertthunder/wlsync/internal/fetch"
	"github.com/urfave/cli/v3"
)

// CacheList prints the pages cached for a module's domain.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	site, err := r.site(cmd.StringArg("module"))
	if err != nil {
		return err
	}
	domain := site.Config().Domain

	pages, err := fetch.NewCache(r.config.Paths.WebPagesDir).Pages(domain)
	if err != nil {
		return err
	}

	r.writePlainHeader("Cached pages: " + domain)
	for _, p := range pages {
		r.writePlain("%s\n", p)
	}
	r.writePlainln("%d pages in %s", len(pages), fetch.DomainDir(r.config.Paths.WebPagesDir, domain))
	return nil
}

// CacheClear removes the pages cached for a module's domain.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	site, err := r.site(cmd.StringArg("module"))
	if err != nil {
		return err
	}
	domain := site.Config().Domain

	n, err := fetch.NewCache(r.config.Paths.WebPagesDir).Clear(domain)
	if err != nil {
		return err
	}

	r.logger.Info("page cache cleared", "domain", domain, "pages", n)
	r.writePlain("✓ Removed %d cached pages of %s\n", n, domain)
	return nil
}
