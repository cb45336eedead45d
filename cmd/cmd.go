// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// setupCommand handles setup operations for configuration, database and cookies.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the default config.toml to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the latest applied migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "cookies",
				Usage: "Store a site's cookies in .env from a browser cURL command",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "module"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "user",
						Usage: "User number stored for modules that read it from the environment",
					},
					&cli.StringFlag{
						Name:  "env",
						Usage: "Path of the .env file to update",
						Value: ".env",
					},
				},
				Action: r.SetupCookies,
			},
		},
	}
}

// proxyCommand handles proxy list provisioning.
func proxyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "proxy",
		Usage: "Download and validate proxy lists",
		Commands: []*cli.Command{
			{
				Name:   "download",
				Usage:  "Download the online candidate lists",
				Action: r.ProxyDownload,
			},
			{
				Name:  "check",
				Usage: "Validate the candidates against a module and store the survivors",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "module"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Check even when features.check_proxies is off",
					},
				},
				Action: r.ProxyCheck,
			},
			{
				Name:  "list",
				Usage: "Print a module's validated proxies",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "module"},
				},
				Action: r.ProxyList,
			},
		},
	}
}

func passFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:    "module",
			Aliases: []string{"m"},
			Usage:   "Site module, defaults to the configured default",
		},
		&cli.StringFlag{
			Name:  "cookies",
			Usage: "Raw cookies of the module, the environment is used otherwise",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "Progress polling interval",
			Value: time.Second,
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Only print the result",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output the result as JSON",
		},
	}, extra...)
}

// parseCommand runs a scrape pass of a source module.
func parseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "parse",
		Usage:  "Scrape every watchlist of a source site into its dump",
		Flags:  passFlags(),
		Action: r.Parse,
	}
}

// exportCommand runs an export pass from a source dump to a target site.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Put the titles of a source dump into the watchlists of a target site",
		Flags: passFlags(
			&cli.StringFlag{
				Name:  "source",
				Usage: "Source module whose dump is exported",
			},
			&cli.StringFlag{
				Name:  "source-cookies",
				Usage: "Raw cookies of the source module",
			},
		),
		Action: r.Export,
	}
}

// serveCommand runs the HTTP command surface and the scheduler.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the command endpoints, progress stream and scheduled passes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host, defaults to server.host",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port, defaults to server.port",
			},
			&cli.StringFlag{
				Name:  "schedule",
				Usage: "Cron spec of a recurring pass, defaults to scheduler.spec",
			},
			&cli.StringFlag{
				Name:  "schedule-action",
				Usage: "Action of the recurring pass, defaults to scheduler.action",
			},
		},
		Action: r.Serve,
	}
}

// dumpCommand reads and converts stored dumps.
func dumpCommand(r *Runner) *cli.Command {
	flags := func(format string) []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "module",
				Aliases: []string{"m"},
				Usage:   "Site module, defaults to the configured default parser",
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "User number, defaults to the module's environment or its last pass",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: json, csv, markdown or txt",
				Value:   format,
			},
		}
	}

	return &cli.Command{
		Name:  "dump",
		Usage: "Inspect stored title dumps",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print a dump",
				Flags:  flags("txt"),
				Action: r.DumpShow,
			},
			{
				Name:  "export",
				Usage: "Write a dump to a file",
				Flags: append(flags("json"), &cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "Output file path, defaults to <user>_<module>.<ext>",
				}),
				Action: r.DumpExport,
			},
		},
	}
}

// runsCommand lists the pass history.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded passes",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "action",
				Usage: "Only runs of this action",
			},
			&cli.StringFlag{
				Name:  "module",
				Usage: "Only runs of this module",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only runs in this state",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Runs,
	}
}

// cacheCommand handles the cached web pages of a module.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear cached web pages",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the pages cached for a module",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "module"},
				},
				Action: r.CacheList,
			},
			{
				Name:  "clear",
				Usage: "Remove the pages cached for a module",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "module"},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// watchCommand returns the progress monitor command.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive progress monitor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "action",
				Aliases: []string{"a"},
				Usage:   "Action to monitor: parse or export",
				Value:   "parse",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Command session to monitor",
				Value: cliSession,
			},
			&cli.BoolFlag{
				Name:  "exit-on-done",
				Usage: "Quit when the pass finishes",
			},
		},
		Action: r.Watch,
	}
}
