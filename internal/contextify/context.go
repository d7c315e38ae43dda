package contextify

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/contextify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/contextify/internal/shared/id"
)

// Context is an isolation context: one engine runtime whose global object is
// a proxy onto a sandbox.
//
// A Context must not run code from two goroutines at once. Interrupt may be
// called from any goroutine.
type Context struct {
	id     id.ContextID
	engine *Engine
	icpt   *globalProxy

	vm      atomic.Pointer[goja.Runtime]
	sandbox atomic.Pointer[Sandbox]
	proxy   atomic.Pointer[goja.Object]
}

// IsContext reports whether v is a context created by an Engine. Disposed
// contexts still qualify.
func IsContext(v any) bool {
	c, ok := v.(*Context)
	return ok && c != nil && c.engine != nil
}

func (c *Context) ID() id.ContextID { return c.id }

func (c *Context) runtime() *goja.Runtime { return c.vm.Load() }

// Sandbox returns the sandbox the context was created with, or nil once
// disposed.
func (c *Context) Sandbox() *Sandbox { return c.sandbox.Load() }

// GlobalProxy returns the object scripts see as their global object, or nil
// once disposed.
func (c *Context) GlobalProxy() *goja.Object { return c.proxy.Load() }

// Interceptor returns the interceptor behind the global proxy. It keeps
// answering after disposal, with an empty global.
func (c *Context) Interceptor() Interceptor { return c.icpt }

// Disposed reports whether Dispose has been called.
func (c *Context) Disposed() bool { return c.runtime() == nil }

// RunText compiles source in this context and runs it, returning the
// completion value of the last statement.
func (c *Context) RunText(source string, origin ...string) (goja.Value, error) {
	if !IsContext(c) {
		return nil, invalidArgument("context was not created by an Engine")
	}
	if c.Disposed() {
		return nil, ErrContextDisposed
	}
	s, err := c.engine.compile(source, c.engine.originOr("", origin))
	if err != nil {
		return nil, err
	}
	return c.exec(s, "text")
}

// Run is RunText for dynamically typed callers. The first argument must be
// the source string; a second argument is used as origin only if it is a
// string.
func (c *Context) Run(args ...any) (goja.Value, error) {
	if len(args) == 0 {
		return nil, invalidArgument("must supply at least 1 argument to run")
	}
	source, ok := args[0].(string)
	if !ok {
		return nil, invalidArgument("first argument to run must be a string")
	}
	var origin []string
	if len(args) > 1 {
		if s, ok := args[1].(string); ok {
			origin = append(origin, s)
		}
	}
	return c.RunText(source, origin...)
}

func (c *Context) exec(s *Script, kind string) (goja.Value, error) {
	vm := c.runtime()
	if vm == nil {
		return nil, ErrContextDisposed
	}
	c.declare(s.globals)

	timer := monitoring.NewTimer(c.engine.metrics, kind)
	val, err := vm.RunProgram(s.program)
	if err != nil {
		timer.Stop(OutcomeScriptError.String())
		c.engine.log.Debug("script failed",
			zap.Stringer("context", c.id),
			zap.String("origin", s.origin),
			zap.Error(err),
		)
		return nil, &ScriptError{Origin: s.origin, Err: err}
	}
	timer.Stop(OutcomeOK.String())
	return val, nil
}

// declare creates the script's top-level var and function names on the
// sandbox unless they are already visible.
func (c *Context) declare(names []string) {
	for _, name := range names {
		if !c.icpt.Query(name) {
			c.icpt.Set(name, goja.Undefined())
		}
	}
}

// Interrupt stops the running script; the run returns a *ScriptError
// wrapping *goja.InterruptedError carrying v. If nothing is running the next
// run is interrupted instead, unless ClearInterrupt is called first.
func (c *Context) Interrupt(v any) {
	if vm := c.runtime(); vm != nil {
		vm.Interrupt(v)
	}
}

// ClearInterrupt resets a pending interrupt.
func (c *Context) ClearInterrupt() {
	if vm := c.runtime(); vm != nil {
		vm.ClearInterrupt()
	}
}

// Dispose tears the context down. The live-table slot is cleared first, so
// a global proxy still reachable from script closures sees an empty global
// from then on. Dispose is idempotent.
func (c *Context) Dispose() {
	e := c.engine
	if e == nil || !e.table.clear(c.id) {
		return
	}
	c.vm.Store(nil)
	c.sandbox.Store(nil)
	c.proxy.Store(nil)

	e.metrics.IncContextsDisposed()
	fields := []zap.Field{zap.Stringer("context", c.id)}
	if created, err := id.Timestamp(c.id.String()); err == nil {
		fields = append(fields, zap.Duration("lifetime", time.Since(created)))
	}
	e.log.Debug("context disposed", fields...)
	if e.cfg.GCOnDispose {
		runtime.GC()
	}
}
