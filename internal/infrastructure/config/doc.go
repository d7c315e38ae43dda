// Package config provides 12-factor configuration for the script engine.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables.
//
// Configuration Sections:
//   - Engine: call stack limit, runtime prewarming, property tracing, default origin
//   - Runner: execution timeout and console capture
//   - Logging: log level and output format
//   - Metrics: Prometheus namespace
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	engine := contextify.New(cfg.Engine)
//
// Environment Variables:
//   - CONTEXTIFY_MAX_CALL_STACK, CONTEXTIFY_PREWARM, CONTEXTIFY_TRACE
//   - CONTEXTIFY_DEFAULT_ORIGIN, CONTEXTIFY_GC_ON_DISPOSE
//   - CONTEXTIFY_TIMEOUT, CONTEXTIFY_CONSOLE
//   - LOG_LEVEL, LOG_DEV
//   - METRICS_ENABLED, METRICS_NAMESPACE
package config
