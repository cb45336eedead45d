// Package fetch resolves site pages: from the local page cache when possible, otherwise over the
// network through the module's validated proxies with a direct attempt as the last resort.
//
// The cache is keyed by a URL-derived filename, not by time. Staleness is controlled by the caller
// through [Request.Reload] or the reload_web_pages feature flag.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/proxy"
	"github.com/desertthunder/wlsync/internal/shared"
	"github.com/gocolly/colly"
	"golang.org/x/time/rate"
)

// Request describes one page to resolve.
type Request struct {
	Kind     models.WatchlistKind
	URL      string
	Method   string // GET (default) or POST
	Filename string // explicit cache key; derived from URL and Kind when empty
	Body     []byte
	NoSave   bool // do not persist the response body
	Reload   bool // bypass the cache for this request
}

// Page is a resolved page body.
type Page struct {
	URL        string
	Body       []byte
	StatusCode int
	FromCache  bool
}

// Fetcher resolves pages.
type Fetcher interface {
	Get(ctx context.Context, req Request) (*Page, error)
}

// Options configures a [PageFetcher].
type Options struct {
	Module    string
	Domain    string // cache directory name; the request host when empty
	CacheDir  string
	Reload    bool // reload_web_pages
	UseProxy  bool
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	UserAgent string
	Headers   map[string]string
	Cookie    string
	Transport http.RoundTripper // direct-connection transport, defaults to a clone of [http.DefaultTransport]
	Logger    *log.Logger
}

// PageFetcher is the [Fetcher] used by site modules.
type PageFetcher struct {
	opts    Options
	cache   *Cache
	limiter *rate.Limiter
	logger  *log.Logger

	mu      sync.RWMutex
	proxies []proxy.Proxy
	cookie  string
}

// NewPageFetcher creates a [PageFetcher], defaulting unset options.
func NewPageFetcher(opts Options) *PageFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &PageFetcher{
		opts:    opts,
		cache:   NewCache(opts.CacheDir),
		limiter: limiter,
		logger:  shared.WithLogger(opts.Logger, "module", opts.Module),
		cookie:  opts.Cookie,
	}
}

// SetProxies replaces the proxies tried before the direct attempt.
func (f *PageFetcher) SetProxies(list []proxy.Proxy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proxies = append([]proxy.Proxy(nil), list...)
}

// SetCookie replaces the Cookie header sent with every request.
func (f *PageFetcher) SetCookie(cookie string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookie = cookie
}

// Cache returns the page cache.
func (f *PageFetcher) Cache() *Cache {
	return f.cache
}

// Get resolves req.
//
// A cached page is returned unchanged unless a reload is requested. Otherwise each proxy is tried in
// order until one yields HTTP 200, then one direct attempt is made. The first successful body is
// cached and returned. When every attempt fails the error wraps [shared.ErrFetchFailed].
func (f *PageFetcher) Get(ctx context.Context, req Request) (*Page, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownMethod, req.Method)
	}

	domain, name, err := f.cacheKey(req)
	if err != nil {
		return nil, err
	}

	if req.Method == http.MethodGet && !req.Reload && !f.opts.Reload {
		if body, ok := f.cache.Read(domain, name); ok {
			f.logger.Debug("page taken from cache", "url", req.URL, "file", name)
			return &Page{URL: req.URL, Body: body, StatusCode: http.StatusOK, FromCache: true}, nil
		}
	}

	page, err := f.fetch(ctx, req)
	if err != nil {
		f.logger.Error("failed to get page", "url", req.URL, "method", req.Method, "error", err)
		return nil, err
	}

	if !req.NoSave && req.Method == http.MethodGet {
		if err := f.cache.Write(domain, name, page.Body); err != nil {
			f.logger.Warn("failed to cache page", "url", req.URL, "error", err)
		}
	}
	return page, nil
}

func (f *PageFetcher) fetch(ctx context.Context, req Request) (*Page, error) {
	f.mu.RLock()
	proxies := f.proxies
	cookie := f.cookie
	f.mu.RUnlock()

	if f.opts.UseProxy {
		for _, px := range proxies {
			transport, err := proxy.Transport(px, f.opts.Timeout)
			if err != nil {
				f.logger.Debug("skipping proxy", "proxy", px, "error", err)
				continue
			}

			page, err := f.attempt(ctx, transport, req, cookie)
			transport.CloseIdleConnections()
			if err == nil {
				return page, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("proxy attempt failed", "proxy", px, "url", req.URL, "error", err)
		}
	}

	page, err := f.attempt(ctx, f.opts.Transport, req, cookie)
	if err == nil {
		return page, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("%w: %s: %v", shared.ErrFetchFailed, req.URL, err)
}

// attempt performs one request through a fresh collector bound to rt.
func (f *PageFetcher) attempt(ctx context.Context, rt http.RoundTripper, req Request, cookie string) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.AllowURLRevisit(), colly.UserAgent(f.opts.UserAgent))
	c.SetRequestTimeout(f.opts.Timeout)
	c.WithTransport(&contextTransport{ctx: ctx, base: rt})

	var page *Page
	status := 0
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		page = &Page{URL: req.URL, Body: append([]byte(nil), r.Body...), StatusCode: r.StatusCode}
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	hdr := http.Header{}
	if f.opts.UserAgent != "" {
		hdr.Set("User-Agent", f.opts.UserAgent)
	}
	for k, v := range f.opts.Headers {
		hdr.Set(k, v)
	}
	if cookie != "" {
		hdr.Set("Cookie", cookie)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	if err := c.Request(req.Method, req.URL, body, nil, hdr); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrTimeout, err)
		}
		if status != 0 {
			return nil, fmt.Errorf("%w: %d", shared.ErrBadStatus, status)
		}
		return nil, err
	}

	if page == nil || page.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", shared.ErrBadStatus, status)
	}
	return page, nil
}

func (f *PageFetcher) cacheKey(req Request) (domain, name string, err error) {
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: url %q", shared.ErrInvalidInput, req.URL)
	}

	domain = f.opts.Domain
	if domain == "" {
		domain = u.Hostname()
	}

	name = req.Filename
	if name == "" {
		name = ListingFilename(req.URL, req.Kind)
	} else {
		name = Sanitize(name)
	}
	return domain, name, nil
}

// contextTransport binds every request of one attempt to the caller's context.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(r.WithContext(t.ctx))
}
