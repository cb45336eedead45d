package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantHeaders map[string]string
		wantCookie  string
		wantErr     bool
	}{
		{
			name:        "single header with single quotes",
			curlCmd:     `curl -H 'Referer: https://animego.org/' https://animego.org`,
			wantHeaders: map[string]string{"Referer": "https://animego.org/"},
		},
		{
			name:        "single header with double quotes",
			curlCmd:     `curl -H "Referer: https://animego.org/" https://animego.org`,
			wantHeaders: map[string]string{"Referer": "https://animego.org/"},
		},
		{
			name:        "cookie in -b flag",
			curlCmd:     `curl -b 'REMEMBERME=abc123' https://animego.org`,
			wantHeaders: map[string]string{},
			wantCookie:  "REMEMBERME=abc123",
		},
		{
			name:    "cookie header is excluded from regular headers",
			curlCmd: `curl -H 'Cookie: PHPSESSID=p; REMEMBERME=r' -H 'X-Requested-With: XMLHttpRequest' https://animego.org`,
			wantHeaders: map[string]string{
				"X-Requested-With": "XMLHttpRequest",
			},
			wantCookie: "PHPSESSID=p; REMEMBERME=r",
		},
		{
			name:        "-b cookie takes precedence over -H cookie",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://animego.org`,
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
		},
		{
			name: "multiline curl with backslashes",
			curlCmd: `curl 'https://animego.org/profile' \
  -H 'accept: text/html' \
  -H 'cookie: REMEMBERME=r%3D' \
  --compressed`,
			wantHeaders: map[string]string{"accept": "text/html"},
			wantCookie:  "REMEMBERME=r%3D",
		},
		{
			name:    "no headers or cookies",
			curlCmd: `curl https://animego.org`,
			wantErr: true,
		},
		{
			name:    "empty command",
			curlCmd: "",
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCurlCommand([]byte(tc.curlCmd))

			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCurlCommand() error = %v", err)
			}

			if len(result.Headers) != len(tc.wantHeaders) {
				t.Errorf("headers count = %v, want %v", len(result.Headers), len(tc.wantHeaders))
			}

			for key, want := range tc.wantHeaders {
				if got := result.Headers[key]; got != want {
					t.Errorf("header[%s] = %v, want %v", key, got, want)
				}
			}

			if result.Cookie != tc.wantCookie {
				t.Errorf("cookie = %v, want %v", result.Cookie, tc.wantCookie)
			}
		})
	}
}

func TestCurlHeaders(t *testing.T) {
	t.Run("URL", func(t *testing.T) {
		result, err := ParseCurlCommand([]byte(`curl 'https://animego.org/profile' -H 'cookie: a=1'`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.URL != "https://animego.org/profile" {
			t.Errorf("expected profile URL, got %q", result.URL)
		}
	})

	t.Run("Cookies", func(t *testing.T) {
		h := &CurlHeaders{Cookie: "PHPSESSID=p; REMEMBERME=r%3D; broken"}
		cookies := h.Cookies()

		if len(cookies) != 2 {
			t.Fatalf("expected 2 cookies, got %d", len(cookies))
		}
		if cookies["REMEMBERME"] != "r%3D" {
			t.Errorf("expected REMEMBERME=r%%3D, got %q", cookies["REMEMBERME"])
		}
	})
}

func TestParseCurlFile(t *testing.T) {
	t.Run("successful file parse", func(t *testing.T) {
		curlFile := filepath.Join(t.TempDir(), "curl.sh")

		curlCmd := `curl -H 'Accept: text/html' -b 'REMEMBERME=abc' https://animego.org`
		if err := os.WriteFile(curlFile, []byte(curlCmd), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		result, err := ParseCurlFile(curlFile)
		if err != nil {
			t.Fatalf("ParseCurlFile() error = %v", err)
		}

		if result.Headers["Accept"] != "text/html" {
			t.Errorf("Accept = %v, want text/html", result.Headers["Accept"])
		}
		if result.Cookie != "REMEMBERME=abc" {
			t.Errorf("Cookie = %v, want REMEMBERME=abc", result.Cookie)
		}
	})

	t.Run("file does not exist", func(t *testing.T) {
		if _, err := ParseCurlFile("/nonexistent/file.sh"); err == nil {
			t.Error("ParseCurlFile() expected error for nonexistent file")
		}
	})
}
