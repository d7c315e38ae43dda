package contextify

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/contextify/internal/infrastructure/config"
	"github.com/GriffinCanCode/contextify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/contextify/internal/logging"
	"github.com/GriffinCanCode/contextify/internal/shared/id"
	"github.com/GriffinCanCode/contextify/internal/shared/utils"
)

// Engine creates isolation contexts and compiles scripts. It is safe for
// concurrent use; the contexts it creates are not.
type Engine struct {
	cfg     config.EngineConfig
	log     *logging.Logger
	metrics *monitoring.Metrics

	table *liveTable
	pool  *runtimePool
	cache *scriptCache

	builtinsOnce sync.Once
	builtins     map[string]struct{}

	mu     sync.RWMutex
	closed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the engine metrics.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Stats describes an engine's current state.
type Stats struct {
	LiveContexts   int  `json:"live_contexts"`
	PooledRuntimes int  `json:"pooled_runtimes"`
	PoolCapacity   int  `json:"pool_capacity"`
	CachedScripts  int  `json:"cached_scripts"`
	Closed         bool `json:"closed"`
}

// New creates an engine.
func New(cfg config.EngineConfig, opts ...Option) *Engine {
	if cfg.DefaultOrigin == "" {
		cfg.DefaultOrigin = config.DefaultOrigin
	}

	e := &Engine{
		cfg:   cfg,
		log:   logging.NewNop(),
		table: newLiveTable(),
		cache: newScriptCache(cfg.CompileCacheSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("contextify")
	e.pool = newRuntimePool(cfg.PrewarmRuntimes, e.newRuntime)

	return e
}

func (e *Engine) newRuntime() *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if e.cfg.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(e.cfg.MaxCallStackSize)
	}
	return vm
}

// NewContext creates an isolation context whose globals are sandbox.
// Anything other than a non-nil *Sandbox fails with ErrInvalidArgument
// before a runtime is allocated.
func (e *Engine) NewContext(sandbox any) (*Context, error) {
	sb, ok := sandbox.(*Sandbox)
	if !ok || sb == nil {
		return nil, invalidArgument(fmt.Sprintf("sandbox must be a non-nil *Sandbox, got %T", sandbox))
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrEngineClosed
	}

	vm, pooled := e.pool.get()
	e.metrics.RecordPool(pooled)

	intrinsics := vm.GlobalObject()
	ctx := &Context{
		id:     id.NewContextID(),
		engine: e,
	}
	ctx.icpt = &globalProxy{
		cid:      ctx.id,
		table:    e.table,
		builtins: e.builtinNames(intrinsics),
	}

	g := &globalObject{
		icpt:       ctx.icpt,
		intrinsics: intrinsics,
		metrics:    e.metrics,
	}
	if e.cfg.TraceProperties {
		g.trace = e.log.With(zap.Stringer("context", ctx.id))
	}
	proxy := vm.NewDynamicObject(g)
	g.self = proxy
	vm.SetGlobalObject(proxy)

	ctx.vm.Store(vm)
	ctx.sandbox.Store(sb)
	ctx.proxy.Store(proxy)
	e.table.register(ctx)

	e.metrics.IncContextsCreated()
	e.log.Debug("context created",
		zap.Stringer("context", ctx.id),
		zap.Int("sandbox_keys", sb.Len()),
		zap.Bool("pooled", pooled),
	)
	return ctx, nil
}

// builtinNames returns the intrinsic global's own names. Every runtime starts
// with the same set, so it is computed once.
func (e *Engine) builtinNames(intrinsics *goja.Object) map[string]struct{} {
	e.builtinsOnce.Do(func() {
		names := intrinsics.GetOwnPropertyNames()
		e.builtins = make(map[string]struct{}, len(names))
		for _, name := range names {
			e.builtins[name] = struct{}{}
		}
	})
	return e.builtins
}

// Compile compiles source for use in any context. The origin labels errors
// and stack traces and defaults to the configured DefaultOrigin.
func (e *Engine) Compile(source string, origin ...string) (*Script, error) {
	return e.compile(source, e.originOr(e.cfg.DefaultOrigin, origin))
}

// CompileArgs is Compile for dynamically typed callers. Non-string arguments
// are converted with fmt.Sprint.
func (e *Engine) CompileArgs(args ...any) (*Script, error) {
	if len(args) == 0 {
		return nil, invalidArgument("needs at least 'code' argument")
	}
	origin := e.cfg.DefaultOrigin
	if len(args) > 1 {
		origin = toString(args[1])
	}
	return e.compile(toString(args[0]), origin)
}

func (e *Engine) compile(source, origin string) (*Script, error) {
	key := e.cache.key(source, origin)
	if s, ok := e.cache.get(key); ok {
		e.metrics.RecordCompile("cached", 0)
		e.log.Debug("script cache hit",
			zap.Stringer("script", s.id),
			zap.String("key", utils.ShortHash(key)),
		)
		return s, nil
	}

	start := time.Now()
	s, err := compileScript(source, origin)
	duration := time.Since(start)
	if err != nil {
		e.metrics.RecordCompile(OutcomeCompileError.String(), duration)
		e.log.Debug("compile failed", zap.String("origin", origin), zap.Error(err))
		return nil, err
	}
	e.cache.put(key, s)
	e.metrics.RecordCompile(OutcomeOK.String(), duration)
	e.log.Debug("script compiled",
		zap.Stringer("script", s.id),
		zap.String("origin", origin),
		zap.Int("globals", len(s.globals)),
		zap.String("key", utils.ShortHash(key)),
	)
	return s, nil
}

func (e *Engine) originOr(fallback string, origin []string) string {
	if len(origin) > 0 && origin[0] != "" {
		return origin[0]
	}
	return fallback
}

// Prewarm tops the runtime pool up to its configured size and returns how
// many runtimes were built.
func (e *Engine) Prewarm() int {
	return e.pool.fill()
}

// Stats returns the engine's current state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()

	return Stats{
		LiveContexts:   e.table.len(),
		PooledRuntimes: e.pool.available(),
		PoolCapacity:   e.pool.size,
		CachedScripts:  e.cache.len(),
		Closed:         closed,
	}
}

// Close disposes every live context and drops the runtime pool. It must not
// race with scripts running in this engine's contexts.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	live := e.table.list()
	for _, ctx := range live {
		ctx.Dispose()
	}
	e.pool.close()

	e.log.Debug("engine closed", zap.Int("disposed", len(live)))
	return nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
