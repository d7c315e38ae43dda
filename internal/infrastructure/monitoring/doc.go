/*
Package monitoring provides Prometheus metrics for the script engine.

# Overview

Metrics are registered on a caller-supplied prometheus.Registerer so that
several engines (or several tests) can coexist in one process. A nil
*Metrics is accepted everywhere and records nothing.

# Metrics

  - contexts_created_total, contexts_disposed_total, contexts_active
  - compiles_total{outcome}, compile_duration_seconds
  - runs_total{kind,outcome}, run_duration_seconds{kind}
  - interceptor_ops_total{op,result}
  - runtime_pool_hits_total, runtime_pool_misses_total

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg, "contextify")

	timer := monitoring.NewTimer(metrics, "script")
	// ... run ...
	timer.Stop("ok")

Expose them with promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).
*/
package monitoring
