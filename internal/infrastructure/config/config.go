package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DefaultOrigin labels scripts compiled without an origin name.
const DefaultOrigin = "ContextifyScript.<anonymous>"

// Config holds all application configuration.
type Config struct {
	Engine  EngineConfig
	Runner  RunnerConfig
	Logging LogConfig
	Metrics MetricsConfig
}

// EngineConfig holds isolation context and compilation settings.
type EngineConfig struct {
	MaxCallStackSize int    `envconfig:"CONTEXTIFY_MAX_CALL_STACK" default:"1024"`
	PrewarmRuntimes  int    `envconfig:"CONTEXTIFY_PREWARM" default:"0"`
	TraceProperties  bool   `envconfig:"CONTEXTIFY_TRACE" default:"false"`
	DefaultOrigin    string `envconfig:"CONTEXTIFY_DEFAULT_ORIGIN" default:"ContextifyScript.<anonymous>"`
	GCOnDispose      bool   `envconfig:"CONTEXTIFY_GC_ON_DISPOSE" default:"false"`
	CompileCacheSize int    `envconfig:"CONTEXTIFY_COMPILE_CACHE" default:"0"`
}

// RunnerConfig holds host-side execution limits.
type RunnerConfig struct {
	Timeout       time.Duration `envconfig:"CONTEXTIFY_TIMEOUT" default:"5s"`
	EnableConsole bool          `envconfig:"CONTEXTIFY_CONSOLE" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Namespace string `envconfig:"METRICS_NAMESPACE" default:"contextify"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Engine: DefaultEngine(),
		Runner: RunnerConfig{
			Timeout:       5 * time.Second,
			EnableConsole: true,
		},
		Logging: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "contextify",
		},
	}
}

// DefaultEngine returns the default engine section.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		MaxCallStackSize: 1024,
		DefaultOrigin:    DefaultOrigin,
	}
}

// Validate rejects settings the engine cannot honor.
func (c *Config) Validate() error {
	if c.Engine.MaxCallStackSize < 0 {
		return fmt.Errorf("invalid config: CONTEXTIFY_MAX_CALL_STACK must be >= 0, got %d", c.Engine.MaxCallStackSize)
	}
	if c.Engine.PrewarmRuntimes < 0 {
		return fmt.Errorf("invalid config: CONTEXTIFY_PREWARM must be >= 0, got %d", c.Engine.PrewarmRuntimes)
	}
	if c.Engine.CompileCacheSize < 0 {
		return fmt.Errorf("invalid config: CONTEXTIFY_COMPILE_CACHE must be >= 0, got %d", c.Engine.CompileCacheSize)
	}
	if c.Runner.Timeout < 0 {
		return fmt.Errorf("invalid config: CONTEXTIFY_TIMEOUT must be >= 0, got %s", c.Runner.Timeout)
	}
	return nil
}
