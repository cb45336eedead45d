// Package sites defines the contract between the pass engines and the per-platform site adapters.
//
// A source adapter enumerates a watchlist page and parses title pages into records. A target
// adapter additionally parses search results and locates the action control that puts a title
// into a watchlist. Adapters hold no network code: pages are fetched by the caller and handed in
// as bytes.
package sites

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/desertthunder/wlsync/internal/fetch"
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
)

// SiteConfig holds the per-platform constants and the state filled in while preparing a module.
type SiteConfig struct {
	Name       string // module name, e.g. animebuff_ru
	Domain     string
	GeneralURL string
	UseProxy   bool
	Headers    map[string]string
	Cookies    []string          // cookie names sent with every request
	CookieEnv  map[string]string // cookie name -> environment variable holding its value
	UserEnv    string            // environment variable holding the user number

	UserNum  string
	Username string
}

// CookieHeader builds the Cookie header value from raw user input, falling back to the environment.
//
// raw may hold any format accepted by [shared.CookieValue]. Cookies without a value are omitted.
func (c *SiteConfig) CookieHeader(raw string) string {
	parts := make([]string, 0, len(c.Cookies))
	for _, name := range c.Cookies {
		value, ok := "", false
		if raw != "" {
			value, ok = shared.CookieValue(name, raw)
		}
		if !ok {
			if env, exists := c.CookieEnv[name]; exists {
				value = os.Getenv(env)
				ok = value != ""
			}
		}
		if ok {
			parts = append(parts, name+"="+value)
		}
	}
	return strings.Join(parts, "; ")
}

// Absolute resolves href against the general URL.
func (c *SiteConfig) Absolute(href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(c.GeneralURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// Site is implemented by every adapter.
type Site interface {
	Config() *SiteConfig
}

// Source is a platform whose watchlists are read.
type Source interface {
	Site
	// WatchlistURL returns the listing page of a kind. ok is false when the platform has no such list.
	WatchlistURL(kind models.WatchlistKind) (u string, ok bool)
	// Enumerate lists {title key: title URL} from a listing page.
	Enumerate(kind models.WatchlistKind, page []byte) (map[string]string, error)
	// Parse extracts the record of a title page.
	Parse(page []byte) (models.LinkedAnimeRecord, error)
	// CountTitles reports the account's total title count from a listing page, 0 when unknown.
	CountTitles(page []byte) int
}

// Target is a platform where watchlist entries are created.
type Target interface {
	Site
	Parse(page []byte) (models.LinkedAnimeRecord, error)
	SearchURL(query string) string
	// ParseSearchResults returns records with Name, OriginalName, Type, Year and Link filled.
	ParseSearchResults(page []byte) ([]models.LinkedAnimeRecord, error)
	// LocateAction returns the URL that puts the title into the kind's list.
	LocateAction(page []byte, kind models.WatchlistKind) (string, error)
	// SupportsAction reports whether the kind has a corresponding action on the platform.
	SupportsAction(kind models.WatchlistKind) bool
}

// Preparer is implemented by adapters that need a setup step before a pass, such as reading the
// user identity from a profile page.
type Preparer interface {
	Prepare(ctx context.Context, f fetch.Fetcher) error
}

// Constructor creates a fresh adapter.
type Constructor func() Site

// Registry maps module names to adapter constructors.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry registers the given constructors under their config names.
func NewRegistry(ctors ...Constructor) *Registry {
	r := &Registry{ctors: make(map[string]Constructor, len(ctors))}
	for _, c := range ctors {
		r.ctors[c().Config().Name] = c
	}
	return r
}

// Names returns every registered module name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates a fresh adapter for the module.
func (r *Registry) New(name string) (Site, error) {
	c, ok := r.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownModule, name)
	}
	return c(), nil
}

// Source creates the module's adapter as a [Source].
func (r *Registry) Source(name string) (Source, error) {
	s, err := r.New(name)
	if err != nil {
		return nil, err
	}
	src, ok := s.(Source)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be parsed", shared.ErrNotSupported, name)
	}
	return src, nil
}

// Target creates the module's adapter as a [Target].
func (r *Registry) Target(name string) (Target, error) {
	s, err := r.New(name)
	if err != nil {
		return nil, err
	}
	tgt, ok := s.(Target)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be exported to", shared.ErrNotSupported, name)
	}
	return tgt, nil
}

// Roles reports which action modules the named adapter can serve.
func (r *Registry) Roles(name string) []models.ActionModule {
	s, err := r.New(name)
	if err != nil {
		return nil
	}
	var roles []models.ActionModule
	if _, ok := s.(Source); ok {
		roles = append(roles, models.ModuleParser)
	}
	if _, ok := s.(Target); ok {
		roles = append(roles, models.ModuleExporter)
	}
	return slices.Clip(roles)
}
