package sites

import (
	"errors"
	"testing"

	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/shared"
)

type stubSource struct{ cfg *SiteConfig }

func (s *stubSource) Config() *SiteConfig { return s.cfg }
func (s *stubSource) WatchlistURL(models.WatchlistKind) (string, bool) { return "", false }
func (s *stubSource) CountTitles([]byte) int { return 0 }
func (s *stubSource) Parse([]byte) (models.LinkedAnimeRecord, error) {
	return models.LinkedAnimeRecord{}, nil
}
func (s *stubSource) Enumerate(models.WatchlistKind, []byte) (map[string]string, error) {
	return nil, nil
}

type stubSite struct{ cfg *SiteConfig }

func (s *stubSite) Config() *SiteConfig { return s.cfg }

func TestSiteConfig(t *testing.T) {
	t.Run("CookieHeader", func(t *testing.T) {
		cfg := &SiteConfig{
			Cookies:   []string{"session", "token"},
			CookieEnv: map[string]string{"token": "WLSYNC_TEST_TOKEN"},
		}
		t.Setenv("WLSYNC_TEST_TOKEN", "from-env")

		tests := []struct {
			name string
			raw  string
			want string
		}{
			{"header form", "session=abc; token=xyz", "session=abc; token=xyz"},
			{"env fallback", "session=abc", "session=abc; token=from-env"},
			{"empty input", "", "token=from-env"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := cfg.CookieHeader(tt.raw); got != tt.want {
					t.Errorf("CookieHeader(%q) = %q, want %q", tt.raw, got, tt.want)
				}
			})
		}
	})

	t.Run("Absolute", func(t *testing.T) {
		cfg := &SiteConfig{GeneralURL: "https://example.org"}
		tests := map[string]string{
			"/anime/one":            "https://example.org/anime/one",
			"https://other.org/x":   "https://other.org/x",
			"":                      "",
			"/search/anime?q=a%20b": "https://example.org/search/anime?q=a%20b",
		}
		for in, want := range tests {
			if got := cfg.Absolute(in); got != want {
				t.Errorf("Absolute(%q) = %q, want %q", in, got, want)
			}
		}
	})
}

func TestHelpers(t *testing.T) {
	t.Run("LastSegment", func(t *testing.T) {
		tests := map[string]string{
			"/anime/one-piece":     "one-piece",
			"/anime/one-piece/":    "one-piece",
			"/anime/type/tv?x=1":   "tv",
			"/anime/naruto/?ref=1": "naruto",
			"/anime/naruto/#top":   "naruto",
			"plain":                "plain",
		}
		for in, want := range tests {
			if got := LastSegment(in); got != want {
				t.Errorf("LastSegment(%q) = %q, want %q", in, got, want)
			}
		}
	})

	t.Run("FirstNumber", func(t *testing.T) {
		if n, ok := FirstNumber("Весна 2021"); !ok || n != 2021 {
			t.Errorf("FirstNumber = %d, %v", n, ok)
		}
		if _, ok := FirstNumber("none"); ok {
			t.Error("expected no number")
		}
	})

	t.Run("Required", func(t *testing.T) {
		doc, err := Document([]byte(`<div class="a"><p>x</p></div>`))
		if err != nil {
			t.Fatalf("Document() error = %v", err)
		}
		if _, err := Required(doc.Selection, ".a p"); err != nil {
			t.Errorf("Required() error = %v", err)
		}
		if _, err := Required(doc.Selection, ".missing"); !errors.Is(err, shared.ErrParseFailed) {
			t.Errorf("Required() error = %v, want ErrParseFailed", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(
		func() Site { return &stubSource{cfg: &SiteConfig{Name: "src"}} },
		func() Site { return &stubSite{cfg: &SiteConfig{Name: "plain"}} },
	)

	t.Run("Names", func(t *testing.T) {
		names := reg.Names()
		if len(names) != 2 || names[0] != "plain" || names[1] != "src" {
			t.Errorf("Names() = %v", names)
		}
	})

	t.Run("fresh instances", func(t *testing.T) {
		a, _ := reg.New("src")
		b, _ := reg.New("src")
		a.Config().UserNum = "1"
		if b.Config().UserNum != "" {
			t.Error("adapters share config")
		}
	})

	t.Run("unknown module", func(t *testing.T) {
		if _, err := reg.New("nope"); !errors.Is(err, shared.ErrUnknownModule) {
			t.Errorf("New() error = %v, want ErrUnknownModule", err)
		}
	})

	t.Run("roles", func(t *testing.T) {
		if _, err := reg.Source("src"); err != nil {
			t.Errorf("Source() error = %v", err)
		}
		if _, err := reg.Target("src"); !errors.Is(err, shared.ErrNotSupported) {
			t.Errorf("Target() error = %v, want ErrNotSupported", err)
		}
		if _, err := reg.Source("plain"); !errors.Is(err, shared.ErrNotSupported) {
			t.Errorf("Source() error = %v, want ErrNotSupported", err)
		}
		roles := reg.Roles("src")
		if len(roles) != 1 || roles[0] != models.ModuleParser {
			t.Errorf("Roles() = %v", roles)
		}
	})
}
