package proxy

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/wlsync/internal/shared"
)

// newForwardProxy returns a server acting as an HTTP forward proxy that answers
// 200 for requests to good.test and 403 for everything else.
func newForwardProxy(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Host == "good.test" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	return NewPool(PoolOpts{
		Dir:       t.TempDir(),
		Protocols: []string{"socks4", "socks5"},
		Timeout:   2 * time.Second,
		Workers:   2,
		Logger:    shared.NewLogger(&bytes.Buffer{}),
	})
}

func TestParse(t *testing.T) {
	tt := []struct {
		name    string
		in      string
		want    Proxy
		wantErr bool
	}{
		{name: "bare", in: "10.0.0.1:1080", want: Proxy{Protocol: "socks5", Addr: "10.0.0.1:1080"}},
		{name: "with protocol", in: "http://10.0.0.1:3128", want: Proxy{Protocol: "http", Addr: "10.0.0.1:3128"}},
		{name: "upper case protocol", in: "SOCKS4://10.0.0.1:1080", want: Proxy{Protocol: "socks4", Addr: "10.0.0.1:1080"}},
		{name: "missing port", in: "10.0.0.1", wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in, "socks5")
			if tc.wantErr {
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("Parse(%q) = %v (%v), want %v", tc.in, got, err, tc.want)
			}
		})
	}
}

func TestTransport(t *testing.T) {
	t.Run("socks5", func(t *testing.T) {
		tr, err := Transport(Proxy{Protocol: "socks5", Addr: "127.0.0.1:1080"}, time.Second)
		if err != nil || tr.DialContext == nil {
			t.Errorf("expected a dialing transport, got %v", err)
		}
	})

	t.Run("http", func(t *testing.T) {
		tr, err := Transport(Proxy{Protocol: "http", Addr: "127.0.0.1:3128"}, time.Second)
		if err != nil || tr.Proxy == nil {
			t.Errorf("expected a proxying transport, got %v", err)
		}
	})

	t.Run("socks4 is not supported", func(t *testing.T) {
		_, err := Transport(Proxy{Protocol: "socks4", Addr: "127.0.0.1:1080"}, time.Second)
		if !errors.Is(err, shared.ErrNotSupported) {
			t.Errorf("expected ErrNotSupported, got %v", err)
		}
	})
}

func TestPool(t *testing.T) {
	ctx := context.Background()

	t.Run("Validate accepts only 200", func(t *testing.T) {
		srv := newForwardProxy(t)
		pool := newTestPool(t)
		px := Proxy{Protocol: "http", Addr: srv.Listener.Addr().String()}

		if err := pool.Validate(ctx, px, "http://good.test/"); err != nil {
			t.Errorf("expected proxy to pass, got %v", err)
		}

		err := pool.Validate(ctx, px, "http://bad.test/")
		if !errors.Is(err, shared.ErrBadStatus) {
			t.Errorf("expected ErrBadStatus, got %v", err)
		}
	})

	t.Run("Validate reports unreachable proxies", func(t *testing.T) {
		pool := newTestPool(t)
		err := pool.Validate(ctx, Proxy{Protocol: "http", Addr: closedAddr(t)}, "http://good.test/")
		if err == nil {
			t.Error("expected an error for an unreachable proxy")
		}
	})

	t.Run("Refresh keeps order and persists survivors", func(t *testing.T) {
		first := newForwardProxy(t)
		second := newForwardProxy(t)
		pool := newTestPool(t)

		candidates := []Proxy{
			{Protocol: "http", Addr: first.Listener.Addr().String()},
			{Protocol: "http", Addr: closedAddr(t)},
			{Protocol: "socks4", Addr: "127.0.0.1:1"},
			{Protocol: "http", Addr: second.Listener.Addr().String()},
		}

		survivors, err := pool.Refresh(ctx, "animebuff_ru", candidates, "http://good.test/")
		if err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}

		if len(survivors) != 2 || survivors[0] != candidates[0] || survivors[1] != candidates[3] {
			t.Fatalf("unexpected survivors %v", survivors)
		}

		data, err := os.ReadFile(pool.SurvivorFile("animebuff_ru"))
		if err != nil {
			t.Fatalf("survivor file missing: %v", err)
		}
		if lines := strings.Split(string(data), "\n"); len(lines) != 2 {
			t.Errorf("expected 2 lines, got %q", data)
		}

		loaded, err := pool.Load("animebuff_ru")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(loaded) != 2 || loaded[0] != candidates[0] {
			t.Errorf("unexpected loaded proxies %v", loaded)
		}
	})

	t.Run("Refresh overwrites the previous list", func(t *testing.T) {
		pool := newTestPool(t)
		os.WriteFile(pool.SurvivorFile("animego_org"), []byte("socks5://10.0.0.1:1080"), 0644)

		survivors, err := pool.Refresh(ctx, "animego_org", []Proxy{{Protocol: "http", Addr: closedAddr(t)}}, "http://good.test/")
		if err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if len(survivors) != 0 {
			t.Errorf("expected no survivors, got %v", survivors)
		}

		loaded, _ := pool.Load("animego_org")
		if len(loaded) != 0 {
			t.Errorf("expected an empty list after refresh, got %v", loaded)
		}

		entries, err := os.ReadDir(filepath.Dir(pool.SurvivorFile("animego_org")))
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				t.Errorf("temporary file left behind: %s", e.Name())
			}
		}
	})

	t.Run("Load without a file", func(t *testing.T) {
		pool := newTestPool(t)
		loaded, err := pool.Load("unknown")
		if err != nil || len(loaded) != 0 {
			t.Errorf("expected an empty list, got %v (%v)", loaded, err)
		}
	})

	t.Run("Download and Candidates", func(t *testing.T) {
		lists := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/socks5.txt":
				w.Write([]byte("10.0.0.1:1080\n# comment\n\nnot-a-proxy\n10.0.0.2:1080\n"))
			default:
				http.NotFound(w, r)
			}
		}))
		defer lists.Close()

		pool := NewPool(PoolOpts{
			Dir:       t.TempDir(),
			Protocols: []string{"socks4", "socks5"},
			Lists: map[string]string{
				"socks4": lists.URL + "/socks4.txt",
				"socks5": lists.URL + "/socks5.txt",
			},
			Logger: shared.NewLogger(&bytes.Buffer{}),
		})

		counts, err := pool.Download(ctx)
		if err != nil {
			t.Fatalf("Download failed: %v", err)
		}
		if counts["socks5"] != 2 {
			t.Errorf("expected 2 socks5 proxies, got %d", counts["socks5"])
		}
		if _, ok := counts["socks4"]; ok {
			t.Error("a failed list should not be counted")
		}

		candidates, err := pool.Candidates()
		if err != nil {
			t.Fatalf("Candidates failed: %v", err)
		}
		if len(candidates) != 2 || candidates[0].Protocol != "socks5" {
			t.Errorf("unexpected candidates %v", candidates)
		}
	})
}
