package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// A Config is built once at startup and passed to each component's constructor.
// Components must treat it as read-only.
type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	Features  FeaturesConfig  `toml:"features"`
	Proxy     ProxyConfig     `toml:"proxy"`
	Fetch     FetchConfig     `toml:"fetch"`
	Storage   StorageConfig   `toml:"storage"`
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Modules   ModulesConfig   `toml:"modules"`
}

// PathsConfig contains the on-disk layout for logs, proxy lists, cached pages and dumps.
type PathsConfig struct {
	VarDir        string `toml:"var_dir"`
	LogsDir       string `toml:"logs_dir"`
	ProxyListsDir string `toml:"proxy_lists_dir"`
	WebPagesDir   string `toml:"web_pages_dir"`
	JSONDumpsDir  string `toml:"json_dumps_dir"`
}

// FeaturesConfig contains the feature toggles for a pass.
type FeaturesConfig struct {
	DownloadProxyLists bool `toml:"download_proxy_lists"`
	CheckProxies       bool `toml:"check_proxies"`
	WriteLogToFile     bool `toml:"write_log_to_file"`
	ReloadWebPages     bool `toml:"reload_web_pages"`
	UpdateJSONDumps    bool `toml:"update_json_dumps"`
	UseMultithreads    bool `toml:"use_multithreads"`
	Workers            int  `toml:"workers"` // 0 means one worker per CPU
}

// ProxyConfig contains proxy validation settings.
type ProxyConfig struct {
	Protocols    []string          `toml:"protocols"`
	CheckTimeout Duration          `toml:"check_timeout"`
	CheckURL     string            `toml:"check_url"`
	OnlineLists  map[string]string `toml:"online_lists"`
}

// FetchConfig contains page fetching settings.
type FetchConfig struct {
	Timeout   Duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"` // requests per second, 0 disables limiting
	UserAgent string   `toml:"user_agent"`
}

// StorageConfig selects the title store backend.
type StorageConfig struct {
	Backend        string `toml:"backend"`         // json, cache or document
	DocumentDriver string `toml:"document_driver"` // sqlite or postgres
	DSN            string `toml:"dsn"`             // postgres DSN, or sqlite path (defaults to database.path)
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	TitlesLimit int    `toml:"titles_limit"`
}

// SchedulerConfig contains the recurring pass settings.
type SchedulerConfig struct {
	Spec   string `toml:"spec"`
	Action string `toml:"action"`
}

// ModulesConfig lists the site modules enabled for each action.
type ModulesConfig struct {
	Parser          []string `toml:"parser"`
	Exporter        []string `toml:"exporter"`
	DefaultParser   string   `toml:"default_parser"`
	DefaultExporter string   `toml:"default_exporter"`
}

// Duration wraps [time.Duration] so it can be written as "5s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, text)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Workers returns the size of the per-pass worker pool.
func (c *Config) Workers() int {
	if c.Features.Workers > 0 {
		return c.Features.Workers
	}
	return runtime.NumCPU()
}

// ParserEnabled reports whether the module may run the parse action.
func (c *Config) ParserEnabled(module string) bool {
	return slices.Contains(c.Modules.Parser, module)
}

// ExporterEnabled reports whether the module may run the export action.
func (c *Config) ExporterEnabled(module string) bool {
	return slices.Contains(c.Modules.Exporter, module)
}

// LogFile returns the path of the general log file.
func (c *Config) LogFile() string {
	return filepath.Join(c.Paths.LogsDir, "general.log")
}

// EnsureDirs creates every directory named in [PathsConfig].
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.VarDir, c.Paths.LogsDir, c.Paths.ProxyListsDir, c.Paths.WebPagesDir, c.Paths.JSONDumpsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Validate checks the values that components cannot default on their own.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "json", "cache", "document":
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Storage.Backend == "document" {
		switch c.Storage.DocumentDriver {
		case "sqlite":
		case "postgres":
			if c.Storage.DSN == "" {
				return fmt.Errorf("%w: postgres document driver requires storage.dsn", ErrInvalidConfig)
			}
		default:
			return fmt.Errorf("%w: unknown document driver %q", ErrInvalidConfig, c.Storage.DocumentDriver)
		}
	}
	if c.Fetch.RateLimit < 0 {
		return fmt.Errorf("%w: fetch.rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
