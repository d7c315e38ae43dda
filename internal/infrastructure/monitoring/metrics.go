package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the script engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Context lifecycle
	ContextsCreated  prometheus.Counter
	ContextsDisposed prometheus.Counter
	ContextsActive   prometheus.Gauge

	// Compilation
	Compiles        *prometheus.CounterVec
	CompileDuration prometheus.Histogram

	// Execution
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Global proxy traffic
	InterceptorOps *prometheus.CounterVec

	// Runtime pool
	PoolHits   prometheus.Counter
	PoolMisses prometheus.Counter

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for in-process reporting
type Snapshot struct {
	ContextsCreated  int64
	ContextsDisposed int64
	ContextsActive   int64
	Compiles         int64
	CompileErrors    int64
	Runs             int64
	RunErrors        int64
	TotalRunSeconds  float64
}

var runBuckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 10}

// NewMetrics registers the engine metrics on reg under namespace
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ContextsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contexts_created_total",
			Help:      "Total number of isolation contexts created",
		}),
		ContextsDisposed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contexts_disposed_total",
			Help:      "Total number of isolation contexts disposed",
		}),
		ContextsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contexts_active",
			Help:      "Number of live isolation contexts",
		}),
		Compiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compiles_total",
			Help:      "Total number of script compilations by outcome",
		}, []string{"outcome"}),
		CompileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Script compilation duration in seconds",
			Buckets:   runBuckets,
		}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of script executions by kind and outcome",
		}, []string{"kind", "outcome"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Script execution duration in seconds",
			Buckets:   runBuckets,
		}, []string{"kind"}),
		InterceptorOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interceptor_ops_total",
			Help:      "Global proxy property operations by operation and result",
		}, []string{"op", "result"}),
		PoolHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_pool_hits_total",
			Help:      "Contexts built on a prewarmed runtime",
		}),
		PoolMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_pool_misses_total",
			Help:      "Contexts that had to build a fresh runtime",
		}),
	}
}

// IncContextsCreated records a new isolation context
func (m *Metrics) IncContextsCreated() {
	if m == nil {
		return
	}
	m.ContextsCreated.Inc()
	m.ContextsActive.Inc()

	m.mu.Lock()
	m.snapshot.ContextsCreated++
	m.snapshot.ContextsActive++
	m.mu.Unlock()
}

// IncContextsDisposed records a disposed isolation context
func (m *Metrics) IncContextsDisposed() {
	if m == nil {
		return
	}
	m.ContextsDisposed.Inc()
	m.ContextsActive.Dec()

	m.mu.Lock()
	m.snapshot.ContextsDisposed++
	m.snapshot.ContextsActive--
	m.mu.Unlock()
}

// RecordCompile records a compilation and its outcome
func (m *Metrics) RecordCompile(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Compiles.WithLabelValues(outcome).Inc()
	m.CompileDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Compiles++
	if outcome == "compile_error" {
		m.snapshot.CompileErrors++
	}
	m.mu.Unlock()
}

// RecordRun records a script execution
func (m *Metrics) RecordRun(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(kind, outcome).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Runs++
	m.snapshot.TotalRunSeconds += duration.Seconds()
	if outcome != "ok" {
		m.snapshot.RunErrors++
	}
	m.mu.Unlock()
}

// RecordInterceptor records one global proxy operation
func (m *Metrics) RecordInterceptor(op string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.InterceptorOps.WithLabelValues(op, result).Inc()
}

// RecordPool records whether a context got a prewarmed runtime
func (m *Metrics) RecordPool(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.PoolHits.Inc()
	} else {
		m.PoolMisses.Inc()
	}
}

// Snapshot returns a copy of the current counters
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
