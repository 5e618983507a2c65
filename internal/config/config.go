// Package config loads covwatch configuration: a YAML file, then COVWATCH_*
// environment variables (a .env file is read first), then defaults for
// whatever is still unset. Command-line flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/covwatch/guard"
)

// Config is the top-level covwatch configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"` // debug | info | warn | error
	Color    string         `yaml:"color"`     // auto | always | never
	Browser  BrowserConfig  `yaml:"browser"`
	Coverage CoverageConfig `yaml:"coverage"`
	Sources  SourcesConfig  `yaml:"sources"`
	Sinks    []SinkConfig   `yaml:"sinks"`
	Server   ServerConfig   `yaml:"server"`
}

// BrowserConfig controls how Chrome is obtained.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Bin              string   `yaml:"bin"`
	Headless         *bool    `yaml:"headless"`
	Stealth          bool     `yaml:"stealth"`
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// CoverageConfig tunes collection and report building.
type CoverageConfig struct {
	CallCount   bool          `yaml:"call_count"`
	Detailed    *bool         `yaml:"detailed"`
	TargetURL   string        `yaml:"target_url"`
	Settle      time.Duration `yaml:"settle"` // wait after load before taking coverage
	Concurrency int           `yaml:"concurrency"`
	RawCoverage bool          `yaml:"raw_coverage"`
}

// SourcesConfig selects the parsed-source store.
type SourcesConfig struct {
	Driver   string `yaml:"driver"` // memory | sqlite
	Path     string `yaml:"path"`   // sqlite file
	Capacity int    `yaml:"capacity"`
	Trace    bool   `yaml:"trace"` // log every statement (sqlite only)
}

// SinkConfig defines a report output.
type SinkConfig struct {
	Type string `yaml:"type"` // text | json | html | webhook
	URL  string `yaml:"url"`  // webhook
	Path string `yaml:"path"` // text/json/html output file, empty = stdout
	Raw  bool   `yaml:"raw"`  // text: dump raw ranges
}

// ServerConfig is the control server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads path (optional), applies environment overrides and defaults,
// and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst **bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = &b
		return nil
	}

	str("COVWATCH_LOG_LEVEL", &c.LogLevel)
	str("COVWATCH_COLOR", &c.Color)
	str("COVWATCH_BROWSER_REMOTE", &c.Browser.Remote)
	str("COVWATCH_BROWSER_BIN", &c.Browser.Bin)
	str("COVWATCH_TARGET_URL", &c.Coverage.TargetURL)
	str("COVWATCH_SOURCES_DRIVER", &c.Sources.Driver)
	str("COVWATCH_SOURCES_PATH", &c.Sources.Path)
	str("COVWATCH_ADDR", &c.Server.Addr)
	if err := boolean("COVWATCH_HEADLESS", &c.Browser.Headless); err != nil {
		return err
	}
	var trace *bool
	if err := boolean("COVWATCH_SOURCES_TRACE", &trace); err != nil {
		return err
	}
	if trace != nil {
		c.Sources.Trace = *trace
	}
	if v, ok := lookup("COVWATCH_WEBHOOK_URL"); ok && v != "" {
		c.Sinks = append(c.Sinks, SinkConfig{Type: "webhook", URL: v})
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Color == "" {
		c.Color = "auto"
	}
	if c.Browser.Headless == nil {
		t := true
		c.Browser.Headless = &t
	}
	if c.Coverage.Detailed == nil {
		t := true
		c.Coverage.Detailed = &t
	}
	if c.Coverage.Settle <= 0 {
		c.Coverage.Settle = 2 * time.Second
	}
	if c.Sources.Driver == "" {
		c.Sources.Driver = "memory"
		if c.Sources.Path != "" {
			c.Sources.Driver = "sqlite"
		}
	}
	if c.Sources.Driver == "sqlite" && c.Sources.Path == "" {
		c.Sources.Path = "covwatch.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:9223"
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "text"}}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("config: color %q: want auto, always or never", c.Color)
	}
	switch c.Sources.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: sources.driver %q: want memory or sqlite", c.Sources.Driver)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "text", "json", "html":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs a url", i)
			}
			if err := guard.CheckURL(s.URL, guard.Web); err != nil {
				return fmt.Errorf("config: sinks[%d]: %w", i, err)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}
