package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/proxy"
	"github.com/desertthunder/wlsync/internal/shared"
)

func newFetcher(t *testing.T, opts Options) *PageFetcher {
	t.Helper()
	if opts.CacheDir == "" {
		opts.CacheDir = t.TempDir()
	}
	opts.Logger = shared.NewLogger(&bytes.Buffer{})
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	return NewPageFetcher(opts)
}

func TestFilenames(t *testing.T) {
	tt := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "listing",
			got:  ListingFilename("https://animebuff.ru/users/4718/watchlist?type=%D0%A1", models.KindWatch),
			want: "users_4718_watchlist_watch",
		},
		{
			name: "listing without kind",
			got:  ListingFilename("https://animego.org/user/name/mylist/anime", ""),
			want: "user_name_mylist_anime",
		},
		{
			name: "from url",
			got:  FilenameFromURL("https://animego.org/search/anime?q=Hagane%20no%20Renkinjutsushi"),
			want: "anime_q_Hagane_no_Renkinjutsushi",
		},
		{
			name: "title page",
			got:  FilenameFromURL("https://animego.org/anime/stalnoy-alhimik-1"),
			want: "stalnoy-alhimik-1",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %q, want %q", tc.got, tc.want)
			}
		})
	}

	if got := DomainDir("/var/web_pages", "animebuff.ru"); got != "/var/web_pages/animebuff_ru" {
		t.Errorf("unexpected domain dir %s", got)
	}
}

func TestPageFetcher(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches and caches", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			io.WriteString(w, "<html>watchlist</html>")
		}))
		defer srv.Close()

		f := newFetcher(t, Options{Module: "animebuff_ru", Domain: "animebuff.ru"})
		req := Request{Kind: models.KindWatch, URL: srv.URL + "/users/1/watchlist"}

		page, err := f.Get(ctx, req)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if page.FromCache || !strings.Contains(string(page.Body), "watchlist") {
			t.Errorf("unexpected first page %+v", page)
		}

		if _, err := os.Stat(f.Cache().Path("animebuff.ru", "users_1_watchlist_watch")); err != nil {
			t.Errorf("expected cached file: %v", err)
		}

		page, err = f.Get(ctx, req)
		if err != nil {
			t.Fatalf("second Get failed: %v", err)
		}
		if !page.FromCache {
			t.Error("expected the second page to come from cache")
		}
		if hits.Load() != 1 {
			t.Errorf("expected 1 network hit, got %d", hits.Load())
		}
	})

	t.Run("reload bypasses the cache", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			io.WriteString(w, "fresh")
		}))
		defer srv.Close()

		f := newFetcher(t, Options{})
		req := Request{URL: srv.URL + "/anime/x", Filename: "x"}
		f.Get(ctx, req)

		req.Reload = true
		page, err := f.Get(ctx, req)
		if err != nil || page.FromCache {
			t.Errorf("expected network page, got %+v (%v)", page, err)
		}
		if hits.Load() != 2 {
			t.Errorf("expected 2 hits, got %d", hits.Load())
		}
	})

	t.Run("global reload flag", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			io.WriteString(w, "fresh")
		}))
		defer srv.Close()

		f := newFetcher(t, Options{Reload: true})
		req := Request{URL: srv.URL + "/anime/x"}
		f.Get(ctx, req)
		f.Get(ctx, req)

		if hits.Load() != 2 {
			t.Errorf("expected 2 hits, got %d", hits.Load())
		}
	})

	t.Run("non-200 fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer srv.Close()

		f := newFetcher(t, Options{})
		_, err := f.Get(ctx, Request{URL: srv.URL + "/anime/x"})
		if !errors.Is(err, shared.ErrFetchFailed) {
			t.Errorf("expected ErrFetchFailed, got %v", err)
		}
	})

	t.Run("sends headers cookie and body", func(t *testing.T) {
		var gotCookie, gotUA, gotBody, gotMethod string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			gotUA = r.Header.Get("User-Agent")
			gotMethod = r.Method
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			io.WriteString(w, `{"status":"success"}`)
		}))
		defer srv.Close()

		f := newFetcher(t, Options{UserAgent: "wlsync-test", Cookie: "REMEMBERME=abc"})
		_, err := f.Get(ctx, Request{URL: srv.URL + "/animelist/1/add", Method: http.MethodPost, Body: []byte("type=watch")})
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if gotMethod != http.MethodPost || gotBody != "type=watch" {
			t.Errorf("unexpected request %s %q", gotMethod, gotBody)
		}
		if gotCookie != "REMEMBERME=abc" || gotUA != "wlsync-test" {
			t.Errorf("unexpected headers cookie=%q ua=%q", gotCookie, gotUA)
		}

		f.SetCookie("REMEMBERME=def")
		f.Get(ctx, Request{URL: srv.URL + "/animelist/1/add", Method: http.MethodPost})
		if gotCookie != "REMEMBERME=def" {
			t.Errorf("expected updated cookie, got %q", gotCookie)
		}
	})

	t.Run("rejects unknown methods", func(t *testing.T) {
		f := newFetcher(t, Options{})
		_, err := f.Get(ctx, Request{URL: "https://animego.org/", Method: http.MethodDelete})
		if !errors.Is(err, shared.ErrUnknownMethod) {
			t.Errorf("expected ErrUnknownMethod, got %v", err)
		}
	})

	t.Run("rejects relative urls", func(t *testing.T) {
		f := newFetcher(t, Options{})
		_, err := f.Get(ctx, Request{URL: "/anime/x"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("first working proxy wins", func(t *testing.T) {
		var direct atomic.Int32
		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			direct.Add(1)
			io.WriteString(w, "direct")
		}))
		defer origin.Close()

		forward := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "via proxy")
		}))
		defer forward.Close()

		l, _ := net.Listen("tcp", "127.0.0.1:0")
		dead := l.Addr().String()
		l.Close()

		f := newFetcher(t, Options{UseProxy: true})
		f.SetProxies([]proxy.Proxy{
			{Protocol: "http", Addr: dead},
			{Protocol: "http", Addr: forward.Listener.Addr().String()},
		})

		page, err := f.Get(ctx, Request{URL: origin.URL + "/anime/x", NoSave: true})
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(page.Body) != "via proxy" {
			t.Errorf("expected proxied body, got %q", page.Body)
		}
		if direct.Load() != 0 {
			t.Error("direct attempt should not run after a proxy succeeds")
		}
	})

	t.Run("falls back to direct", func(t *testing.T) {
		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "direct")
		}))
		defer origin.Close()

		forward := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer forward.Close()

		f := newFetcher(t, Options{UseProxy: true})
		f.SetProxies([]proxy.Proxy{{Protocol: "http", Addr: forward.Listener.Addr().String()}})

		page, err := f.Get(ctx, Request{URL: origin.URL + "/anime/x", NoSave: true})
		if err != nil || string(page.Body) != "direct" {
			t.Errorf("expected direct body, got %v (%v)", page, err)
		}
	})

	t.Run("NoSave skips the cache", func(t *testing.T) {
		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "body")
		}))
		defer origin.Close()

		f := newFetcher(t, Options{Domain: "animego.org"})
		f.Get(ctx, Request{URL: origin.URL + "/anime/x", Filename: "x", NoSave: true})

		if _, ok := f.Cache().Read("animego.org", "x"); ok {
			t.Error("expected nothing cached")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFetcher(t, Options{})
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := f.Get(cctx, Request{URL: "http://127.0.0.1:1/anime/x"}); err == nil {
			t.Error("expected an error for a cancelled context")
		}
	})
}

func TestCache(t *testing.T) {
	c := NewCache(t.TempDir())

	if _, ok := c.Read("animego.org", "missing"); ok {
		t.Error("expected a miss")
	}
	if err := c.Write("animego.org", "page", []byte("<html/>")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	body, ok := c.Read("animego.org", "page")
	if !ok || string(body) != "<html/>" {
		t.Errorf("unexpected cached body %q", body)
	}
	if err := c.Remove("animego.org", "page"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := c.Remove("animego.org", "page"); err != nil {
		t.Errorf("removing a missing page should not fail: %v", err)
	}

	t.Run("pages and clear", func(t *testing.T) {
		c := NewCache(t.TempDir())
		if names, err := c.Pages("animebuff.ru"); err != nil || len(names) != 0 {
			t.Fatalf("expected no pages, got %v, %v", names, err)
		}

		for _, name := range []string{"b_watch", "a_viewed"} {
			if err := c.Write("animebuff.ru", name, []byte("<html/>")); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
		}

		names, err := c.Pages("animebuff.ru")
		if err != nil {
			t.Fatalf("Pages failed: %v", err)
		}
		if strings.Join(names, ",") != "a_viewed,b_watch" {
			t.Errorf("unexpected pages %v", names)
		}

		n, err := c.Clear("animebuff.ru")
		if err != nil || n != 2 {
			t.Fatalf("expected 2 pages cleared, got %d, %v", n, err)
		}
		if _, ok := c.Read("animebuff.ru", "b_watch"); ok {
			t.Error("expected page to be removed")
		}
	})
}
