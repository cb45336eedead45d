package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
	} else {
		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	statuses, err := shared.Migrations(db)
	if err != nil {
		return err
	}

	r.writePlainHeader("Migrations: " + r.config.Database.Path)
	for _, m := range statuses {
		mark := " "
		if m.Applied {
			mark = "✓"
		}
		r.writePlain("%s %03d %s\n", mark, m.Version, m.Name)
	}
	return nil
}

// SetupCookies stores a module's cookies in the .env file.
//
// The cookies are read from a cURL command copied from the browser and written under the
// environment variables the module reads them from.
func (r *Runner) SetupCookies(ctx context.Context, cmd *cli.Command) error {
	site, err := r.site(cmd.StringArg("module"))
	if err != nil {
		return err
	}
	cfg := site.Config()

	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	user := cmd.String("user")

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}
	if curlCmd == "" && curlFile == "" && user == "" {
		return fmt.Errorf("%w: one of --curl, --curl-file or --user must be provided", shared.ErrMissingArgument)
	}

	values := map[string]string{}

	if curlCmd != "" || curlFile != "" {
		var curlHeaders *shared.CurlHeaders
		if curlFile != "" {
			curlHeaders, err = shared.ParseCurlFile(curlFile)
		} else {
			curlHeaders, err = shared.ParseCurlCommand([]byte(curlCmd))
		}
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}

		cookies := curlHeaders.Cookies()
		for name, env := range cfg.CookieEnv {
			if v, ok := cookies[name]; ok && v != "" {
				values[env] = v
			}
		}
		if len(values) == 0 {
			return fmt.Errorf("%w: no %s cookies in the cURL command", shared.ErrMissingSecret, cfg.Name)
		}
	}

	if user != "" {
		if cfg.UserEnv == "" {
			return fmt.Errorf("%w: %s derives the user number on its own", shared.ErrInvalidArgument, cfg.Name)
		}
		values[cfg.UserEnv] = user
	}

	path := cmd.String("env")
	if err := shared.WriteEnv(path, values); err != nil {
		return err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r.logger.Info("cookies saved", "module", cfg.Name, "path", path, "keys", len(keys))
	r.writePlain("✓ %s credentials saved to %s\n", cfg.Name, path)
	for _, k := range keys {
		r.writePlain("  %s\n", k)
	}
	return nil
}
