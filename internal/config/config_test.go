package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	var c Config
	c.applyDefaults()
	require.NoError(t, c.Validate())

	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "auto", c.Color)
	assert.True(t, *c.Browser.Headless)
	assert.True(t, *c.Coverage.Detailed)
	assert.Equal(t, 2*time.Second, c.Coverage.Settle)
	assert.Equal(t, "memory", c.Sources.Driver)
	assert.Equal(t, "127.0.0.1:9223", c.Server.Addr)
	assert.Equal(t, []SinkConfig{{Type: "text"}}, c.Sinks)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "covwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
browser:
  remote: ws://127.0.0.1:9222/devtools/browser/abc
  headless: false
  resource_blocking: [images, fonts]
coverage:
  detailed: false
  target_url: https://example.com/app.js
  settle: 500ms
sources:
  path: /tmp/covwatch/sources.db
sinks:
  - type: json
  - type: webhook
    url: https://hooks.example.com/cov
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
	assert.False(t, *c.Browser.Headless)
	assert.Equal(t, []string{"images", "fonts"}, c.Browser.ResourceBlocking)
	assert.False(t, *c.Coverage.Detailed)
	assert.Equal(t, 500*time.Millisecond, c.Coverage.Settle)
	assert.Equal(t, "sqlite", c.Sources.Driver)
	require.Len(t, c.Sinks, 2)
	assert.Equal(t, "https://hooks.example.com/cov", c.Sinks[1].URL)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"COVWATCH_LOG_LEVEL":     "warn",
		"COVWATCH_HEADLESS":      "false",
		"COVWATCH_TARGET_URL":    "https://example.com/a.js",
		"COVWATCH_WEBHOOK_URL":   "https://hooks.example.com/x",
		"COVWATCH_SOURCES_TRACE": "1",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	c := Config{LogLevel: "debug"}
	require.NoError(t, c.applyEnv(lookup))
	c.applyDefaults()

	assert.Equal(t, "warn", c.LogLevel)
	assert.False(t, *c.Browser.Headless)
	assert.Equal(t, "https://example.com/a.js", c.Coverage.TargetURL)
	assert.True(t, c.Sources.Trace)
	assert.Equal(t, []SinkConfig{{Type: "webhook", URL: "https://hooks.example.com/x"}}, c.Sinks)

	env["COVWATCH_HEADLESS"] = "sometimes"
	assert.Error(t, (&Config{}).applyEnv(lookup))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"color", func(c *Config) { c.Color = "rainbow" }},
		{"driver", func(c *Config) { c.Sources.Driver = "redis" }},
		{"webhook without url", func(c *Config) { c.Sinks = []SinkConfig{{Type: "webhook"}} }},
		{"sink type", func(c *Config) { c.Sinks = []SinkConfig{{Type: "nats"}} }},
		{"webhook scheme", func(c *Config) { c.Sinks = []SinkConfig{{Type: "webhook", URL: "ftp://hooks.example.com"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.applyDefaults()
			tt.mut(&c)
			assert.Error(t, c.Validate())
		})
	}
}
