// Package config provides configuration types and defaults for skywidgets.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/tracing"
)

// Storage backends for server documents.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageJSONL  = "jsonl"
)

// Config holds all configuration options for skywidgets.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Viewer  ViewerConfig   `mapstructure:"viewer"`
	Catalog CatalogConfig  `mapstructure:"catalog"`
	Tracing tracing.Config `mapstructure:"tracing"`
	Debug   bool           `mapstructure:"debug"`
}

// ServerConfig configures the mock queue server.
type ServerConfig struct {
	Addr      string        `mapstructure:"addr"`
	Steps     int           `mapstructure:"steps"`    // event pages per simulated run
	Interval  time.Duration `mapstructure:"interval"` // delay between pages
	Heartbeat time.Duration `mapstructure:"heartbeat"`
	Storage   string        `mapstructure:"storage"` // "memory" (default), "sqlite" or "jsonl"
	DBPath    string        `mapstructure:"db_path"`
}

// ViewerConfig configures the terminal viewer.
type ViewerConfig struct {
	ServerURL     string `mapstructure:"server_url"`
	MaxRuns       int    `mapstructure:"max_runs"`
	StreamName    string `mapstructure:"stream_name"`
	MarkdownStyle string `mapstructure:"markdown_style"` // "dark" (default) or "light"
	ShowStatusBar bool   `mapstructure:"show_status_bar"`
}

// CatalogConfig locates the on-disk run catalog.
type CatalogConfig struct {
	Dir      string        `mapstructure:"dir"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// DefaultDir returns ~/.config/skywidgets or empty if the home dir is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "skywidgets")
}

func underDefaultDir(parts ...string) string {
	dir := DefaultDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(append([]string{dir}, parts...)...)
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = underDefaultDir("traces", "traces.jsonl")
	return Config{
		Server: ServerConfig{
			Addr:      "127.0.0.1:60610",
			Steps:     20,
			Interval:  250 * time.Millisecond,
			Heartbeat: 30 * time.Second,
			Storage:   StorageMemory,
			DBPath:    underDefaultDir("documents.db"),
		},
		Viewer: ViewerConfig{
			ServerURL:     "http://127.0.0.1:60610",
			MaxRuns:       3,
			StreamName:    "primary",
			MarkdownStyle: "dark",
			ShowStatusBar: true,
		},
		Catalog: CatalogConfig{
			Dir:      underDefaultDir("catalog"),
			Debounce: 100 * time.Millisecond,
		},
		Tracing: tc,
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	return errors.Join(
		ValidateServer(c.Server),
		ValidateViewer(c.Viewer),
		ValidateCatalog(c.Catalog),
		ValidateTracing(c.Tracing),
	)
}

// ValidateServer checks server configuration for errors.
func ValidateServer(s ServerConfig) error {
	if s.Steps < 0 {
		return fmt.Errorf("server.steps must not be negative, got %d", s.Steps)
	}
	if s.Interval < 0 {
		return fmt.Errorf("server.interval must not be negative, got %s", s.Interval)
	}
	switch s.Storage {
	case "", StorageMemory, StorageJSONL:
	case StorageSQLite:
		if s.DBPath == "" {
			return fmt.Errorf("server.db_path is required when storage is %q", StorageSQLite)
		}
	default:
		return fmt.Errorf("server.storage must be %q, %q or %q, got %q", StorageMemory, StorageSQLite, StorageJSONL, s.Storage)
	}
	return nil
}

// ValidateViewer checks viewer configuration for errors.
func ValidateViewer(v ViewerConfig) error {
	if v.MaxRuns < 0 {
		return fmt.Errorf("viewer.max_runs must not be negative, got %d", v.MaxRuns)
	}
	if v.ServerURL != "" {
		u, err := url.Parse(v.ServerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("viewer.server_url must be an http(s) url, got %q", v.ServerURL)
		}
	}
	switch v.MarkdownStyle {
	case "", "dark", "light":
	default:
		return fmt.Errorf("viewer.markdown_style must be \"dark\" or \"light\", got %q", v.MarkdownStyle)
	}
	return nil
}

// ValidateCatalog checks catalog configuration for errors.
func ValidateCatalog(c CatalogConfig) error {
	if c.Debounce < 0 {
		return fmt.Errorf("catalog.debounce must not be negative, got %s", c.Debounce)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}
	switch t.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
	}
	if t.Enabled {
		if t.Exporter == tracing.ExporterFile && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == tracing.ExporterOTLP && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# skywidgets configuration

# Mock queue server (skywidgets qserver)
server:
  addr: 127.0.0.1:60610
  steps: 20          # event pages per simulated run
  interval: 250ms    # delay between pages
  heartbeat: 30s     # SSE keep-alive comment interval
  storage: memory    # memory, sqlite or jsonl
  # db_path: ~/.config/skywidgets/documents.db   # used by sqlite storage

# Terminal viewer (skywidgets view)
viewer:
  server_url: http://127.0.0.1:60610
  max_runs: 3             # runs kept per figure; pinned runs are extra
  stream_name: primary
  markdown_style: dark    # dark or light
  show_status_bar: true

# Run catalog: one <uid>.jsonl file per run
# catalog:
#   dir: ~/.config/skywidgets/catalog
#   debounce: 100ms

# Distributed tracing for the queue server
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/skywidgets/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
