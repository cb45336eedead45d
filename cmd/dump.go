package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/wlsync/internal/formatter"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/state"
	"github.com/urfave/cli/v3"
)

// DumpShow prints a stored dump in the requested format.
func (r *Runner) DumpShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	dump, ref, err := r.loadDump(ctx, cmd)
	if err != nil {
		return err
	}
	if dump.Empty() {
		r.writePlain("No titles stored for %s (%s)\n", ref.Module, ref.User)
		return nil
	}

	data, err := formatter.Export(dump, format, fmt.Sprintf("%s (%s)", ref.Module, ref.User))
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// DumpExport writes a stored dump to a file.
func (r *Runner) DumpExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	dump, ref, err := r.loadDump(ctx, cmd)
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(dump, ref, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("dump exported", "module", ref.Module, "user", ref.User, "format", format, "path", path)
	r.writePlain("✓ Exported %d titles to %s\n", dump.Total(), path)
	return nil
}

func (r *Runner) loadDump(ctx context.Context, cmd *cli.Command) (models.TitlesDump, models.DumpRef, error) {
	s, err := r.services()
	if err != nil {
		return nil, models.DumpRef{}, err
	}

	ref, err := r.dumpRef(ctx, s, cmd.String("module"), cmd.String("user"))
	if err != nil {
		return nil, ref, err
	}

	dump, err := s.actions.Dump(ctx, ref)
	if err != nil {
		return nil, ref, fmt.Errorf("failed to read dump: %w", err)
	}
	return dump, ref, nil
}

// dumpRef locates a module's dump. Without an explicit user the module's environment is
// consulted, then the dump last used by a command line pass.
func (r *Runner) dumpRef(ctx context.Context, s *stack, module, user string) (models.DumpRef, error) {
	if module == "" {
		module = r.config.Modules.DefaultParser
	}
	site, err := r.site(module)
	if err != nil {
		return models.DumpRef{}, err
	}

	if user == "" && site.Config().UserEnv != "" {
		user = os.Getenv(site.Config().UserEnv)
	}
	if user != "" {
		return models.DumpRef{Module: module, User: user}, nil
	}

	for _, role := range r.registry.Roles(module) {
		var ref models.DumpRef
		ok, err := state.GetJSON(ctx, s.state, state.Key(cliSession, role, state.FieldDump), &ref)
		if err != nil {
			r.logger.Warn("failed to read last dump", "role", role, "error", err)
			continue
		}
		if ok && ref.Module == module {
			return ref, nil
		}
	}
	return models.DumpRef{}, fmt.Errorf("%w: --user for %s", shared.ErrMissingArgument, module)
}
