package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"mime"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/command"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/web"
)

// Commands is the command protocol as seen by the web interface. [command.Orchestrator] implements it.
type Commands interface {
	Handle(ctx context.Context, session string, req models.CommandRequest) models.CommandResponse
	Setup(ctx context.Context, session string, req models.SetupRequest) models.CommandResponse
	SelectedModule(ctx context.Context, session string, role models.ActionModule) string
	Progress(ctx context.Context, session string, action models.Action) (models.ProgressState, error)
	Titles(ctx context.Context, session string, role models.ActionModule) (models.TitlesDump, error)
	Renderer() *web.Renderer
}

// AppHandler serves the index page and the command endpoints.
type AppHandler struct {
	cfg    *shared.Config
	cmds   Commands
	logger *log.Logger
}

// NewAppHandler creates an [AppHandler].
func NewAppHandler(cfg *shared.Config, cmds Commands, logger *log.Logger) *AppHandler {
	return &AppHandler{cfg: cfg, cmds: cmds, logger: logger}
}

// Register adds the routes of the handler to the router.
func (h *AppHandler) Register(r Router) {
	r.Handle(http.MethodGet, "/{$}", http.HandlerFunc(h.Index))
	r.Handle(http.MethodPost, "/action", http.HandlerFunc(h.Action))
	r.Handle(http.MethodPost, "/settingup", http.HandlerFunc(h.Settingup))
	r.Handle(http.MethodGet, "/titles", http.HandlerFunc(h.TitlesFragment))
}

// Index renders both action panels with the session's current progress and titles.
func (h *AppHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := SessionFrom(ctx)
	renderer := h.cmds.Renderer()

	data := web.IndexData{}
	for _, action := range []models.Action{models.ActionParse, models.ActionExport} {
		role := action.Module()
		view := web.ActionView{
			Action:   action,
			Role:     role,
			Modules:  h.modules(role),
			Selected: h.cmds.SelectedModule(ctx, session, role),
		}

		progress, err := h.cmds.Progress(ctx, session, action)
		if err != nil {
			h.logger.Warn("failed to read progress", "action", action, "error", err)
		}
		if bar, err := renderer.StatusBar(action, false, progress); err == nil {
			view.StatusBar = template.HTML(bar)
		}

		dump, err := h.cmds.Titles(ctx, session, role)
		if err != nil {
			h.logger.Warn("failed to read titles", "role", role, "error", err)
		}
		if titles, err := renderer.Titles(role, string(models.KindWatch), dump); err == nil {
			view.Titles = template.HTML(titles)
		}
		data.Actions = append(data.Actions, view)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderer.Index(w, data); err != nil {
		h.logger.Error("failed to render index", "error", err)
	}
}

// Action answers one command of the protocol.
//
// The request is either a form with the fields action, cmd and optional_args (JSON), or a JSON
// [models.CommandRequest].
func (h *AppHandler) Action(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCommand(r)
	if err != nil {
		h.logger.Warn("bad command request", "error", err)
		writeJSON(w, command.FailCommon(h.cmds.Renderer()))
		return
	}
	writeJSON(w, h.cmds.Handle(r.Context(), SessionFrom(r.Context()), req))
}

// Settingup stores the module and cookies selected for an action.
func (h *AppHandler) Settingup(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSetup(r)
	if err != nil {
		h.logger.Warn("bad setup request", "error", err)
		writeJSON(w, command.FailCommon(h.cmds.Renderer()))
		return
	}
	writeJSON(w, h.cmds.Setup(r.Context(), SessionFrom(r.Context()), req))
}

// TitlesFragment renders the titles list of one tab, selected with ?action=&tab=.
func (h *AppHandler) TitlesFragment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	action, err := models.ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	role := action.Module()
	dump, err := h.cmds.Titles(ctx, SessionFrom(ctx), role)
	if err != nil {
		h.logger.Error("failed to read titles", "role", role, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	fragment, err := h.cmds.Renderer().Titles(role, r.URL.Query().Get("tab"), dump)
	if err != nil {
		h.logger.Error("failed to render titles", "role", role, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, fragment)
}

func (h *AppHandler) modules(role models.ActionModule) []string {
	if role == models.ModuleExporter {
		return h.cfg.Modules.Exporter
	}
	return h.cfg.Modules.Parser
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func decodeCommand(r *http.Request) (models.CommandRequest, error) {
	var req models.CommandRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	req.Action = models.Action(r.PostForm.Get("action"))
	req.Command = models.Command(r.PostForm.Get("cmd"))
	if raw := r.PostForm.Get("optional_args"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.OptionalArgs); err != nil {
			return req, fmt.Errorf("%w: optional_args: %v", shared.ErrInvalidInput, err)
		}
	}
	return req, nil
}

func decodeSetup(r *http.Request) (models.SetupRequest, error) {
	var req models.SetupRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	req.Action = models.Action(r.PostForm.Get("action"))
	req.Module = r.PostForm.Get("module")
	if req.Module == "" {
		req.Module = r.PostForm.Get("selected_module")
	}
	req.Cookies = r.PostForm.Get("cookies")
	return req, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
