package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetDefaults registers every default so env vars and flags can override
// keys missing from the file.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("debug", d.Debug)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.steps", d.Server.Steps)
	v.SetDefault("server.interval", d.Server.Interval)
	v.SetDefault("server.heartbeat", d.Server.Heartbeat)
	v.SetDefault("server.storage", d.Server.Storage)
	v.SetDefault("server.db_path", d.Server.DBPath)

	v.SetDefault("viewer.server_url", d.Viewer.ServerURL)
	v.SetDefault("viewer.max_runs", d.Viewer.MaxRuns)
	v.SetDefault("viewer.stream_name", d.Viewer.StreamName)
	v.SetDefault("viewer.markdown_style", d.Viewer.MarkdownStyle)
	v.SetDefault("viewer.show_status_bar", d.Viewer.ShowStatusBar)

	v.SetDefault("catalog.dir", d.Catalog.Dir)
	v.SetDefault("catalog.debounce", d.Catalog.Debounce)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
