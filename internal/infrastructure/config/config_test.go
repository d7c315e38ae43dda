package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Engine config
	assert.Equal(t, 1024, cfg.Engine.MaxCallStackSize)
	assert.Equal(t, 0, cfg.Engine.PrewarmRuntimes)
	assert.False(t, cfg.Engine.TraceProperties)
	assert.Equal(t, "ContextifyScript.<anonymous>", cfg.Engine.DefaultOrigin)
	assert.False(t, cfg.Engine.GCOnDispose)

	// Runner config
	assert.Equal(t, 5*time.Second, cfg.Runner.Timeout)
	assert.True(t, cfg.Runner.EnableConsole)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Metrics config
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "contextify", cfg.Metrics.Namespace)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"CONTEXTIFY_MAX_CALL_STACK": "256",
		"CONTEXTIFY_PREWARM":        "4",
		"CONTEXTIFY_TRACE":          "true",
		"CONTEXTIFY_DEFAULT_ORIGIN": "inline.js",
		"CONTEXTIFY_GC_ON_DISPOSE":  "true",
		"CONTEXTIFY_TIMEOUT":        "250ms",
		"CONTEXTIFY_CONSOLE":        "false",
		"LOG_LEVEL":                 "debug",
		"LOG_DEV":                   "true",
		"METRICS_ENABLED":           "false",
		"METRICS_NAMESPACE":         "sbx",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.Engine.MaxCallStackSize)
	assert.Equal(t, 4, cfg.Engine.PrewarmRuntimes)
	assert.True(t, cfg.Engine.TraceProperties)
	assert.Equal(t, "inline.js", cfg.Engine.DefaultOrigin)
	assert.True(t, cfg.Engine.GCOnDispose)

	assert.Equal(t, 250*time.Millisecond, cfg.Runner.Timeout)
	assert.False(t, cfg.Runner.EnableConsole)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "sbx", cfg.Metrics.Namespace)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("CONTEXTIFY_PREWARM", "2")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Engine.PrewarmRuntimes)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Defaults still apply
	assert.Equal(t, 1024, cfg.Engine.MaxCallStackSize)
	assert.Equal(t, 5*time.Second, cfg.Runner.Timeout)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non-numeric stack", key: "CONTEXTIFY_MAX_CALL_STACK", value: "deep"},
		{name: "negative prewarm", key: "CONTEXTIFY_PREWARM", value: "-1"},
		{name: "bad duration", key: "CONTEXTIFY_TIMEOUT", value: "soon"},
		{name: "negative timeout", key: "CONTEXTIFY_TIMEOUT", value: "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}
