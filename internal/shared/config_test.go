package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./wlsync.db" {
			t.Errorf("expected database path ./wlsync.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Storage.Backend != "json" {
			t.Errorf("expected json storage backend, got %s", config.Storage.Backend)
		}

		if config.Proxy.CheckTimeout.Duration != 5*time.Second {
			t.Errorf("expected check timeout 5s, got %v", config.Proxy.CheckTimeout)
		}

		if config.Proxy.OnlineLists["socks5"] == "" {
			t.Error("expected a socks5 online list")
		}

		if !config.ParserEnabled("animebuff_ru") {
			t.Error("expected animebuff_ru to be an enabled parser")
		}

		if config.ExporterEnabled("animebuff_ru") {
			t.Error("animebuff_ru should not be an enabled exporter")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		err = CreateConfigFile(configPath)
		if !errors.Is(err, ErrConfigExists) {
			t.Errorf("expected ErrConfigExists, got %v", err)
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		content := `
[features]
use_multithreads = false
workers = 3

[fetch]
timeout = "750ms"

[server]
port = 9090
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 9090 {
			t.Errorf("expected port 9090, got %d", config.Server.Port)
		}

		if config.Fetch.Timeout.Duration != 750*time.Millisecond {
			t.Errorf("expected timeout 750ms, got %v", config.Fetch.Timeout)
		}

		if config.Workers() != 3 {
			t.Errorf("expected 3 workers, got %d", config.Workers())
		}

		if config.Server.Host != "127.0.0.1" {
			t.Errorf("missing keys should keep defaults, got host %q", config.Server.Host)
		}
	})

	t.Run("LoadConfig with missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
			t.Error("expected an error for a missing file")
		}
	})

	t.Run("LoadConfig with bad duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[fetch]\ntimeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected an error for an invalid duration")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tt := []struct {
			name    string
			mutate  func(*Config)
			wantErr bool
		}{
			{name: "defaults", mutate: func(*Config) {}},
			{name: "cache backend", mutate: func(c *Config) { c.Storage.Backend = "cache" }},
			{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "redis" }, wantErr: true},
			{name: "document on sqlite", mutate: func(c *Config) { c.Storage.Backend = "document" }},
			{
				name: "postgres without dsn",
				mutate: func(c *Config) {
					c.Storage.Backend = "document"
					c.Storage.DocumentDriver = "postgres"
				},
				wantErr: true,
			},
			{
				name: "unknown driver",
				mutate: func(c *Config) {
					c.Storage.Backend = "document"
					c.Storage.DocumentDriver = "mongo"
				},
				wantErr: true,
			},
			{name: "negative rate", mutate: func(c *Config) { c.Fetch.RateLimit = -1 }, wantErr: true},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				config := DefaultConfig()
				tc.mutate(config)

				err := config.Validate()
				if tc.wantErr {
					if !errors.Is(err, ErrInvalidConfig) {
						t.Errorf("expected ErrInvalidConfig, got %v", err)
					}
					return
				}
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			})
		}
	})

	t.Run("EnsureDirs", func(t *testing.T) {
		root := t.TempDir()
		config := DefaultConfig()
		config.Paths = PathsConfig{
			VarDir:        filepath.Join(root, "var"),
			LogsDir:       filepath.Join(root, "var", "logs"),
			ProxyListsDir: filepath.Join(root, "var", "proxy_lists"),
			WebPagesDir:   filepath.Join(root, "var", "web_pages"),
			JSONDumpsDir:  filepath.Join(root, "var", "json_dumps"),
		}

		if err := config.EnsureDirs(); err != nil {
			t.Fatalf("EnsureDirs failed: %v", err)
		}

		for _, dir := range []string{config.Paths.LogsDir, config.Paths.ProxyListsDir, config.Paths.WebPagesDir, config.Paths.JSONDumpsDir} {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				t.Errorf("expected directory %s", dir)
			}
		}

		if config.LogFile() != filepath.Join(config.Paths.LogsDir, "general.log") {
			t.Errorf("unexpected log file %s", config.LogFile())
		}
	})

	t.Run("Workers defaults to CPU count", func(t *testing.T) {
		config := DefaultConfig()
		config.Features.Workers = 0
		if config.Workers() < 1 {
			t.Errorf("expected at least one worker, got %d", config.Workers())
		}
	})
}

func TestDuration(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("2m30s")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Duration != 150*time.Second {
		t.Errorf("expected 150s, got %v", d.Duration)
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(text) != "2m30s" {
		t.Errorf("expected 2m30s, got %s", text)
	}

	if err := d.UnmarshalText([]byte("later")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
