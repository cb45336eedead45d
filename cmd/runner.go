package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/sites"
	"github.com/desertthunder/wlsync/internal/sites/animebuff"
	"github.com/desertthunder/wlsync/internal/sites/animego"
	"github.com/urfave/cli/v3"
)

// cliSession is the command session used by passes started from the command line.
const cliSession = "cli"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	registry   *sites.Registry
	transport  http.RoundTripper
	logger     *log.Logger
	output     io.Writer
	closers    []io.Closer
	stack      *stack
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Registry   *sites.Registry   // defaults to every built-in site adapter
	Transport  http.RoundTripper // direct transport of the page fetchers, nil for the default
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Registry == nil {
		opts.Registry = sites.NewRegistry(animebuff.New, animego.New)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		registry:   opts.Registry,
		transport:  opts.Transport,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// Before loads the configuration named by the root --config flag.
//
// A missing file leaves the defaults in place; an unreadable or invalid one is an error.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	if err := r.loadConfig(path); err != nil {
		return ctx, err
	}

	if r.config.Features.WriteLogToFile {
		if err := r.config.EnsureDirs(); err != nil {
			return ctx, err
		}
		logger, closer, err := shared.NewFileLogger(r.config.LogFile())
		if err != nil {
			return ctx, err
		}
		logger.SetLevel(r.logger.GetLevel())
		r.SetLogger(logger)
		r.closers = append(r.closers, closer)
	}
	return ctx, nil
}

// After releases the database and the log file opened by the commands.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	var errs []error
	if r.stack != nil {
		errs = append(errs, r.stack.close())
		r.stack = nil
	}
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runner) loadConfig(path string) error {
	if path == "" {
		return nil
	}
	r.configPath = path

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("config file not found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	r.config = config
	return nil
}

// SetLogger replaces the logger used by the runner and every component it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, proxyCommand, parseCommand, exportCommand, serveCommand,
		dumpCommand, runsCommand, cacheCommand, watchCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// site returns the adapter of a module named on the command line.
func (r *Runner) site(module string) (sites.Site, error) {
	if module == "" {
		return nil, fmt.Errorf("%w: module", shared.ErrMissingArgument)
	}
	return r.registry.New(module)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
