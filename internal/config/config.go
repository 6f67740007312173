// Package config holds runtime configuration for the crewdash session core.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default values applied when no config file or environment override is set.
const (
	// DefaultStreamBaseURL is the analysis event-stream collaborator endpoint.
	DefaultStreamBaseURL = "http://localhost:8090"

	// DefaultReportBaseURL is the shared-report read endpoint.
	DefaultReportBaseURL = "http://localhost:8090"

	// DefaultEngineURL is the external diagram render service endpoint.
	DefaultEngineURL = "http://localhost:8000"

	// DefaultRenderCacheTTL is the time-to-live for cached render results.
	DefaultRenderCacheTTL = 5 * time.Minute

	// DefaultRenderTimeout bounds a single engine invocation.
	DefaultRenderTimeout = 15 * time.Second

	// DefaultDiagramTheme is passed to the render engine per call.
	DefaultDiagramTheme = "dark"
)

// DefaultRoster is the fixed set of workers expected to report progress,
// in display order.
var DefaultRoster = []string{"scout", "architect", "auditor", "scribe"}

// Config is the root configuration for the dashboard session core.
type Config struct {
	StreamBaseURL string        `mapstructure:"stream_base_url"`
	ReportBaseURL string        `mapstructure:"report_base_url"`
	Roster        []string      `mapstructure:"roster"`
	Diagram       DiagramConfig `mapstructure:"diagram"`
	Debug         bool          `mapstructure:"debug"`
}

// DiagramConfig holds render-engine settings.
type DiagramConfig struct {
	EngineURL     string        `mapstructure:"engine_url"`
	Theme         string        `mapstructure:"theme"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StreamBaseURL: DefaultStreamBaseURL,
		ReportBaseURL: DefaultReportBaseURL,
		Roster:        append([]string(nil), DefaultRoster...),
		Diagram:       DefaultDiagramConfig(),
	}
}

// DefaultDiagramConfig returns default render-engine settings.
func DefaultDiagramConfig() DiagramConfig {
	return DiagramConfig{
		EngineURL:     DefaultEngineURL,
		Theme:         DefaultDiagramTheme,
		CacheTTL:      DefaultRenderCacheTTL,
		RenderTimeout: DefaultRenderTimeout,
	}
}

// Load reads configuration from an optional yaml file and CREWDASH_*
// environment variables, layered over Default.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigName("crewdash")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/crewdash")
	}
	v.SetEnvPrefix("CREWDASH")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("stream_base_url", def.StreamBaseURL)
	v.SetDefault("report_base_url", def.ReportBaseURL)
	v.SetDefault("roster", def.Roster)
	v.SetDefault("diagram.engine_url", def.Diagram.EngineURL)
	v.SetDefault("diagram.theme", def.Diagram.Theme)
	v.SetDefault("diagram.cache_ttl", def.Diagram.CacheTTL)
	v.SetDefault("diagram.render_timeout", def.Diagram.RenderTimeout)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the system relies on.
func (c Config) Validate() error {
	if len(c.Roster) == 0 {
		return errors.New("roster cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Roster))
	for _, name := range c.Roster {
		if name == "" {
			return errors.New("roster names cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate roster name: %s", name)
		}
		seen[name] = struct{}{}
	}
	if c.StreamBaseURL == "" {
		return errors.New("stream_base_url cannot be empty")
	}
	return nil
}
