package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/fetch"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/proxy"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/desertthunder/wlsync/internal/sites"
	"github.com/desertthunder/wlsync/internal/state"
	"github.com/desertthunder/wlsync/internal/store"
)

// PassRequest selects the modules and credentials of one pass.
type PassRequest struct {
	Session  string
	Action   models.Action
	Parser   string                         // source module
	Exporter string                         // target module, export only
	Cookies  map[models.ActionModule]string // raw cookie input per role
}

// FetcherFunc builds the fetcher of a prepared module.
type FetcherFunc func(cfg *sites.SiteConfig, proxies []proxy.Proxy, cookie string) fetch.Fetcher

// ServiceOpts contains the dependencies of an [ActionService].
type ServiceOpts struct {
	Config    *shared.Config
	Registry  *sites.Registry
	Stores    *store.Factory
	Proxies   *proxy.Pool // nil disables proxies
	State     state.Store
	Fetchers  FetcherFunc       // defaults to a [fetch.PageFetcher] per module
	Transport http.RoundTripper // direct transport of the default fetchers
	Logger    *log.Logger
}

// ActionService drives whole passes: module checks, preparation, store selection and the engines.
type ActionService struct {
	cfg       *shared.Config
	registry  *sites.Registry
	stores    *store.Factory
	proxies   *proxy.Pool
	state     state.Store
	fetchers  FetcherFunc
	transport http.RoundTripper
	logger    *log.Logger
}

// NewActionService creates an [ActionService].
func NewActionService(opts ServiceOpts) *ActionService {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.State == nil {
		opts.State = state.NewMemoryStore()
	}
	s := &ActionService{
		cfg:       opts.Config,
		registry:  opts.Registry,
		stores:    opts.Stores,
		proxies:   opts.Proxies,
		state:     opts.State,
		fetchers:  opts.Fetchers,
		transport: opts.Transport,
		logger:    shared.WithLogger(opts.Logger, "component", "actions"),
	}
	if s.fetchers == nil {
		s.fetchers = s.pageFetcher
	}
	return s
}

// Run performs the request's action.
func (s *ActionService) Run(ctx context.Context, req PassRequest, progress chan<- ProgressUpdate) (*PassResult, error) {
	switch req.Action {
	case models.ActionParse:
		return s.Parse(ctx, req, progress)
	case models.ActionExport:
		return s.Export(ctx, req, progress)
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownAction, req.Action)
	}
}

// Parse scrapes the source module into its dump.
func (s *ActionService) Parse(ctx context.Context, req PassRequest, progress chan<- ProgressUpdate) (*PassResult, error) {
	tracker := NewProgressTracker(s.state, req.Session, models.ModuleParser)
	if err := tracker.Initialize(ctx, true, 0, 0); err != nil {
		return nil, err
	}
	defer s.finish(tracker)

	return s.parse(ctx, req, tracker, progress)
}

func (s *ActionService) parse(ctx context.Context, req PassRequest, tracker *ProgressTracker, progress chan<- ProgressUpdate) (*PassResult, error) {
	site, f, err := s.prepare(ctx, models.ModuleParser, req.Parser, req.Cookies[models.ModuleParser], true, progress)
	if err != nil {
		return nil, err
	}
	src, ok := site.(sites.Source)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be parsed", shared.ErrNotSupported, req.Parser)
	}
	s.remember(ctx, req.Session, models.ModuleParser, site)

	ts, err := s.stores.Open(ctx, req.Parser, site.Config().UserNum)
	if err != nil {
		return nil, err
	}
	defer ts.Close()

	engine := NewScrapeEngine(src, f, ts, tracker, s.logger, s.engineOpts())
	return engine.Run(ctx, progress)
}

// Export replays the source module's dump onto the target module.
//
// An empty source dump triggers one parse of the source module before giving up with
// [shared.ErrEmptyDump].
func (s *ActionService) Export(ctx context.Context, req PassRequest, progress chan<- ProgressUpdate) (*PassResult, error) {
	tracker := NewProgressTracker(s.state, req.Session, models.ModuleExporter)
	if err := tracker.Initialize(ctx, true, 0, 0); err != nil {
		return nil, err
	}
	defer s.finish(tracker)

	site, f, err := s.prepare(ctx, models.ModuleExporter, req.Exporter, req.Cookies[models.ModuleExporter], true, progress)
	if err != nil {
		return nil, err
	}
	tgt, ok := site.(sites.Target)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be exported to", shared.ErrNotSupported, req.Exporter)
	}
	s.remember(ctx, req.Session, models.ModuleExporter, site)

	dump, err := s.sourceDump(ctx, req)
	if err != nil {
		return nil, err
	}
	if dump.Empty() {
		s.logger.Warn("source dump is empty, parsing source first", "module", req.Parser)
		parseTracker := NewProgressTracker(s.state, req.Session, models.ModuleParser)
		if err := parseTracker.Initialize(ctx, true, 0, 0); err != nil {
			return nil, err
		}
		if _, err := s.parse(ctx, req, parseTracker, progress); err != nil {
			s.logger.Error("source parse failed", "module", req.Parser, "error", err)
		}
		s.finish(parseTracker)
		if dump, err = s.sourceDump(ctx, req); err != nil {
			return nil, err
		}
	}
	if dump.Empty() {
		s.logger.Error("export aborted, source dump is empty", "module", req.Parser)
		return nil, fmt.Errorf("%w: %s", shared.ErrEmptyDump, req.Parser)
	}

	ts, err := s.stores.Open(ctx, req.Exporter, site.Config().UserNum)
	if err != nil {
		return nil, err
	}
	defer ts.Close()

	engine := NewExportEngine(tgt, f, ts, tracker, s.logger, s.engineOpts())
	return engine.Run(ctx, dump, progress)
}

// sourceDump reads the parser module's dump. The source site is prepared without proxies to learn
// the user the dump belongs to.
func (s *ActionService) sourceDump(ctx context.Context, req PassRequest) (models.TitlesDump, error) {
	site, _, err := s.prepare(ctx, models.ModuleParser, req.Parser, req.Cookies[models.ModuleParser], false, nil)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, req.Session, models.ModuleParser, site)
	ts, err := s.stores.Open(ctx, req.Parser, site.Config().UserNum)
	if err != nil {
		return nil, err
	}
	defer ts.Close()
	return ts.Snapshot(ctx)
}

// Prepare checks that module is enabled for role and prepares its adapter and fetcher.
func (s *ActionService) Prepare(ctx context.Context, role models.ActionModule, module, cookie string) (sites.Site, fetch.Fetcher, error) {
	return s.prepare(ctx, role, module, cookie, true, nil)
}

func (s *ActionService) prepare(ctx context.Context, role models.ActionModule, module, rawCookie string, withProxies bool, progress chan<- ProgressUpdate) (sites.Site, fetch.Fetcher, error) {
	if !s.enabled(role, module) {
		s.logger.Error("module disabled", "role", role, "module", module)
		return nil, nil, fmt.Errorf("%w: %s for %s", shared.ErrModuleDisabled, module, role)
	}
	sendProgress(progress, prepareUpdate(module))

	site, err := s.registry.New(module)
	if err != nil {
		return nil, nil, err
	}
	cfg := site.Config()

	var proxies []proxy.Proxy
	if withProxies && cfg.UseProxy {
		proxies = s.loadProxies(ctx, cfg)
	}

	f := s.fetchers(cfg, proxies, cfg.CookieHeader(rawCookie))
	if p, ok := site.(sites.Preparer); ok {
		if err := p.Prepare(ctx, f); err != nil {
			s.logger.Error("module preparation failed", "module", module, "error", err)
			if errors.Is(err, shared.ErrModuleNotReady) {
				return nil, nil, err
			}
			return nil, nil, fmt.Errorf("%w: %s: %v", shared.ErrModuleNotReady, module, err)
		}
	}
	s.logger.Info("module prepared", "module", module, "user", cfg.UserNum, "proxies", len(proxies))
	return site, f, nil
}

// loadProxies returns the module's survivors, refreshing them first when checks are enabled.
func (s *ActionService) loadProxies(ctx context.Context, cfg *sites.SiteConfig) []proxy.Proxy {
	if s.proxies == nil {
		return nil
	}
	if s.cfg.Features.CheckProxies {
		list, err := s.refreshProxies(ctx, cfg)
		if err == nil {
			return list
		}
		s.logger.Warn("proxy refresh failed, using stored list", "module", cfg.Name, "error", err)
	}
	list, err := s.proxies.Load(cfg.Name)
	if err != nil {
		s.logger.Warn("no proxies loaded", "module", cfg.Name, "error", err)
		return nil
	}
	return list
}

func (s *ActionService) refreshProxies(ctx context.Context, cfg *sites.SiteConfig) ([]proxy.Proxy, error) {
	candidates, err := s.proxies.Candidates()
	if err != nil {
		return nil, err
	}
	target := cfg.GeneralURL
	if s.cfg.Proxy.CheckURL != "" {
		target = s.cfg.Proxy.CheckURL
	}
	return s.proxies.Refresh(ctx, cfg.Name, candidates, target)
}

// remember records where the session's dump for role lives, for callers rendering titles.
func (s *ActionService) remember(ctx context.Context, session string, role models.ActionModule, site sites.Site) {
	if session == "" {
		return
	}
	ref := models.DumpRef{Module: site.Config().Name, User: site.Config().UserNum}
	if err := state.SetJSON(ctx, s.state, state.Key(session, role, state.FieldDump), ref); err != nil {
		s.logger.Warn("failed to record dump location", "role", role, "error", err)
	}
}

// Dump returns the dump at ref.
func (s *ActionService) Dump(ctx context.Context, ref models.DumpRef) (models.TitlesDump, error) {
	ts, err := s.stores.Open(ctx, ref.Module, ref.User)
	if err != nil {
		return nil, err
	}
	defer ts.Close()
	return ts.Snapshot(ctx)
}

func (s *ActionService) pageFetcher(cfg *sites.SiteConfig, proxies []proxy.Proxy, cookie string) fetch.Fetcher {
	f := fetch.NewPageFetcher(fetch.Options{
		Module:    cfg.Name,
		Domain:    cfg.Domain,
		CacheDir:  s.cfg.Paths.WebPagesDir,
		Reload:    s.cfg.Features.ReloadWebPages,
		UseProxy:  cfg.UseProxy,
		Timeout:   s.cfg.Fetch.Timeout.Duration,
		RateLimit: s.cfg.Fetch.RateLimit,
		UserAgent: s.cfg.Fetch.UserAgent,
		Headers:   cfg.Headers,
		Cookie:    cookie,
		Transport: s.transport,
		Logger:    s.logger,
	})
	f.SetProxies(proxies)
	return f
}

func (s *ActionService) enabled(role models.ActionModule, module string) bool {
	if role == models.ModuleExporter {
		return s.cfg.ExporterEnabled(module)
	}
	return s.cfg.ParserEnabled(module)
}

func (s *ActionService) engineOpts() EngineOpts {
	return EngineOpts{
		Workers:     s.cfg.Workers(),
		Multithread: s.cfg.Features.UseMultithreads,
		ForceUpdate: s.cfg.Features.UpdateJSONDumps,
	}
}

// finish clears the running flag even when the pass context is already cancelled.
func (s *ActionService) finish(t *ProgressTracker) {
	if err := t.Finish(context.Background()); err != nil {
		s.logger.Warn("failed to finish progress", "key", t.Key(), "error", err)
	}
}
