package command

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/state"
	"github.com/desertthunder/wlsync/internal/tasks"
	"github.com/desertthunder/wlsync/internal/web"
)

// PassRunner runs passes and reads their dumps. [tasks.ActionService] implements it.
type PassRunner interface {
	Run(ctx context.Context, req tasks.PassRequest, progress chan<- tasks.ProgressUpdate) (*tasks.PassResult, error)
	Dump(ctx context.Context, ref models.DumpRef) (models.TitlesDump, error)
}

// Alert messages of the command responses.
const (
	msgFailCommon = "Something went wrong."
	msgFailTask   = "Action failed."
	msgUnknown    = "Unknown command."
	msgNotRunning = "The action is not in progress."
	msgStopped    = "Action stopped."
	msgStarted    = "Action started."
	msgFinished   = "Completed."
	msgSaved      = "Settings saved."
)

// Orchestrator answers the command protocol: start, ask and stop of one action per session.
//
// The stop flag, the task handle, the selected modules and the progress of a session live in the
// shared state store; the orchestrator itself keeps nothing between calls.
type Orchestrator struct {
	cfg      *shared.Config
	runner   TaskRunner
	passes   PassRunner
	state    state.Store
	renderer *web.Renderer
	logger   *log.Logger
}

// OrchestratorOpts contains the dependencies of an [Orchestrator].
type OrchestratorOpts struct {
	Config   *shared.Config
	Runner   TaskRunner
	Passes   PassRunner
	State    state.Store
	Renderer *web.Renderer
	Logger   *log.Logger
}

// NewOrchestrator creates an [Orchestrator].
func NewOrchestrator(opts OrchestratorOpts) *Orchestrator {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Renderer == nil {
		opts.Renderer = web.NewRenderer(opts.Config.Server.TitlesLimit)
	}
	return &Orchestrator{
		cfg:      opts.Config,
		runner:   opts.Runner,
		passes:   opts.Passes,
		state:    opts.State,
		renderer: opts.Renderer,
		logger:   shared.WithLogger(opts.Logger, "component", "commands"),
	}
}

// call is one command being answered.
type call struct {
	ctx     context.Context
	session string
	action  models.Action
	role    models.ActionModule
	args    models.OptionalArgs
}

// Handle answers one command. It never fails; errors are logged and reported in the response.
func (o *Orchestrator) Handle(ctx context.Context, session string, req models.CommandRequest) models.CommandResponse {
	c := call{ctx: ctx, session: session, action: req.Action, role: req.Action.Module(), args: req.OptionalArgs}

	switch req.Command {
	case models.CommandStart, models.CommandAsk, models.CommandStop:
	default:
		o.logger.Warn("unknown command", "command", req.Command, "action", req.Action)
		return o.unknown()
	}

	if _, err := models.ParseAction(string(req.Action)); err != nil {
		o.logger.Warn("invalid command request", "command", req.Command, "error", err)
		return o.failCommon()
	}

	switch req.Command {
	case models.CommandStart:
		if _, err := o.Start(ctx, session, req.Action); err != nil {
			o.logger.Error("action not started", "action", req.Action, "error", err)
			return o.failCommon()
		}
		return o.doneStarted(c)
	case models.CommandAsk:
		return o.ask(c)
	default:
		return o.stop(c)
	}
}

// Start submits a pass of action for the session and records its task handle.
func (o *Orchestrator) Start(ctx context.Context, session string, action models.Action) (string, error) {
	role := action.Module()
	if id, ok := o.taskID(ctx, session, role); ok {
		if info, err := o.runner.Status(ctx, id); err == nil && !info.State.Done() {
			return "", fmt.Errorf("%w: %s", shared.ErrAlreadyActive, action)
		}
	}

	req := tasks.PassRequest{
		Session:  session,
		Action:   action,
		Parser:   o.SelectedModule(ctx, session, models.ModuleParser),
		Exporter: o.SelectedModule(ctx, session, models.ModuleExporter),
		Cookies: map[models.ActionModule]string{
			models.ModuleParser:   o.setup(ctx, session, models.ModuleParser).Cookies,
			models.ModuleExporter: o.setup(ctx, session, models.ModuleExporter).Cookies,
		},
	}
	module := req.Parser
	if action == models.ActionExport {
		module = req.Exporter
	}
	if module == "" {
		return "", fmt.Errorf("%w: no module selected for %s", shared.ErrMissingArgument, role)
	}

	if err := o.state.Delete(ctx, state.Key(session, role, state.FieldStopped)); err != nil {
		return "", err
	}

	id, err := o.runner.Submit(ctx, action, module, func(ctx context.Context) (*tasks.PassResult, error) {
		return o.passes.Run(ctx, req, nil)
	})
	if err != nil {
		return "", err
	}
	if err := state.SetJSON(ctx, o.state, state.Key(session, role, state.FieldTask), id); err != nil {
		return "", err
	}
	return id, nil
}

func (o *Orchestrator) ask(c call) models.CommandResponse {
	stoppedKey := state.Key(c.session, c.role, state.FieldStopped)
	var stopped bool
	if _, err := state.GetJSON(c.ctx, o.state, stoppedKey, &stopped); err != nil {
		o.logger.Warn("failed to read stop flag", "key", stoppedKey, "error", err)
	}
	if stopped {
		resp := o.infoStopped(c)
		if err := o.state.Delete(c.ctx, stoppedKey); err != nil {
			o.logger.Warn("failed to clear stop flag", "key", stoppedKey, "error", err)
		}
		return resp
	}

	id, ok := o.taskID(c.ctx, c.session, c.role)
	if !ok {
		return o.failCommon()
	}
	info, err := o.runner.Status(c.ctx, id)
	if err != nil {
		o.logger.Warn("task status unavailable", "id", id, "error", err)
		return o.failCommon()
	}

	switch info.State {
	case models.TaskRevoked:
		return o.infoStopped(c)
	case models.TaskPending, models.TaskRunning:
		return o.processed(c)
	case models.TaskSuccess:
		return o.doneFinished(c)
	case models.TaskFailure:
		return o.failTask()
	default:
		return o.failCommon()
	}
}

func (o *Orchestrator) stop(c call) models.CommandResponse {
	if err := state.SetJSON(c.ctx, o.state, state.Key(c.session, c.role, state.FieldStopped), true); err != nil {
		o.logger.Error("failed to set stop flag", "action", c.action, "error", err)
		return o.failCommon()
	}

	id, ok := o.taskID(c.ctx, c.session, c.role)
	if !ok {
		return o.warnNotRunning(c)
	}
	if err := o.runner.Revoke(c.ctx, id); err != nil {
		o.logger.Error("failed to revoke task", "id", id, "error", err)
		return o.failCommon()
	}
	return o.doneStopped(c)
}

// Setup stores the module and cookies selected for an action.
func (o *Orchestrator) Setup(ctx context.Context, session string, req models.SetupRequest) models.CommandResponse {
	if _, err := models.ParseAction(string(req.Action)); err != nil {
		o.logger.Warn("invalid setup request", "error", err)
		return o.failCommon()
	}
	role := req.Action.Module()
	enabled := o.cfg.ParserEnabled(req.Module)
	if role == models.ModuleExporter {
		enabled = o.cfg.ExporterEnabled(req.Module)
	}
	if !enabled {
		o.logger.Warn("setup for disabled module", "role", role, "module", req.Module)
		return o.failCommon()
	}

	if err := state.SetJSON(ctx, o.state, state.Key(session, role, state.FieldSetup), req); err != nil {
		o.logger.Error("failed to store setup", "role", role, "error", err)
		return o.failCommon()
	}
	return models.CommandResponse{Status: models.ResponseDone, Message: o.alert(models.ResponseDone, msgSaved)}
}

// SelectedModule returns the module chosen for role, falling back to the configured default.
func (o *Orchestrator) SelectedModule(ctx context.Context, session string, role models.ActionModule) string {
	if m := o.setup(ctx, session, role).Module; m != "" {
		return m
	}
	def, list := o.cfg.Modules.DefaultParser, o.cfg.Modules.Parser
	if role == models.ModuleExporter {
		def, list = o.cfg.Modules.DefaultExporter, o.cfg.Modules.Exporter
	}
	if def != "" {
		return def
	}
	if len(list) > 0 {
		return list[0]
	}
	return ""
}

// Progress returns the progress of the session's action.
func (o *Orchestrator) Progress(ctx context.Context, session string, action models.Action) (models.ProgressState, error) {
	var p models.ProgressState
	_, err := state.GetJSON(ctx, o.state, state.Key(session, action.Module(), state.FieldProgress), &p)
	return p, err
}

// Titles returns the dump last used by the session for role. It is empty before the first pass.
func (o *Orchestrator) Titles(ctx context.Context, session string, role models.ActionModule) (models.TitlesDump, error) {
	var ref models.DumpRef
	ok, err := state.GetJSON(ctx, o.state, state.Key(session, role, state.FieldDump), &ref)
	if err != nil || !ok {
		return models.TitlesDump{}, err
	}
	return o.passes.Dump(ctx, ref)
}

// Renderer returns the fragment renderer.
func (o *Orchestrator) Renderer() *web.Renderer { return o.renderer }

func (o *Orchestrator) setup(ctx context.Context, session string, role models.ActionModule) models.SetupRequest {
	var req models.SetupRequest
	if _, err := state.GetJSON(ctx, o.state, state.Key(session, role, state.FieldSetup), &req); err != nil {
		o.logger.Warn("failed to read setup", "role", role, "error", err)
	}
	return req
}

func (o *Orchestrator) taskID(ctx context.Context, session string, role models.ActionModule) (string, bool) {
	var id string
	ok, err := state.GetJSON(ctx, o.state, state.Key(session, role, state.FieldTask), &id)
	if err != nil {
		o.logger.Warn("failed to read task handle", "role", role, "error", err)
		return "", false
	}
	return id, ok && id != ""
}
