package contextify

import (
	"errors"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/contextify/internal/infrastructure/config"
	"github.com/GriffinCanCode/contextify/internal/infrastructure/monitoring"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := New(config.DefaultEngine(), opts...)
	t.Cleanup(func() { e.Close() })
	return e
}

func newTestContext(t *testing.T, e *Engine, sb *Sandbox) *Context {
	t.Helper()
	ctx, err := e.NewContext(sb)
	require.NoError(t, err)
	t.Cleanup(ctx.Dispose)
	return ctx
}

func TestRunTextReturnsCompletionValue(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(t, e, NewSandbox())

	val, err := ctx.RunText("1+1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val.ToInteger())

	val, err = ctx.RunText("var a = 1; a + 1; function f() {}")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val.ToInteger())
}

func TestAssignmentLandsOnSandbox(t *testing.T) {
	e := newTestEngine(t)
	sb := NewSandbox()
	ctx := newTestContext(t, e, sb)

	_, err := ctx.RunText("x = 5")
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, sb.Keys())
	v, ok := sb.Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(5), v)
}

func TestWriteThenReadThroughGlobal(t *testing.T) {
	e := newTestEngine(t)
	sb := NewSandbox()
	ctx := newTestContext(t, e, sb)

	val, err := ctx.RunText("this.x = 1; x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), val.ToInteger())

	v, ok := sb.Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)
}

func TestHostValuesVisibleToScript(t *testing.T) {
	e := newTestEngine(t)
	sb := SandboxOf(
		"x", 10,
		"name", "box",
		"double", func(n int) int { return n * 2 },
		"limits", struct {
			MaxItems int `json:"max_items"`
		}{MaxItems: 3},
	)
	ctx := newTestContext(t, e, sb)

	val, err := ctx.RunText("typeof x")
	require.NoError(t, err)
	assert.Equal(t, "number", val.String())

	val, err = ctx.RunText("name + ':' + double(21) + ':' + limits.max_items")
	require.NoError(t, err)
	assert.Equal(t, "box:42:3", val.String())
}

func TestHostValuesKeepIdentity(t *testing.T) {
	type point struct {
		X int `json:"x"`
	}
	e := newTestEngine(t)
	p := &point{X: 1}
	sb := SandboxOf(
		"o", map[string]any{"a": 1},
		"arr", []any{1, 2},
		"p", p,
		"s", point{X: 2},
	)
	ctx := newTestContext(t, e, sb)

	val, err := ctx.RunText("o === o && arr === arr && p === p && s === s")
	require.NoError(t, err)
	assert.True(t, val.ToBoolean())

	val, err = ctx.RunText("arr.push(3); o.b = 'two'; p.x = 5; arr.length")
	require.NoError(t, err)
	assert.Equal(t, int64(3), val.ToInteger())

	// later runs see the same objects
	val, err = ctx.RunText("arr.length + ':' + o.b + ':' + p.x")
	require.NoError(t, err)
	assert.Equal(t, "3:two:5", val.String())

	v, ok := sb.Get("arr")
	require.True(t, ok)
	assert.Equal(t, []any{1, 2, int64(3)}, v)

	v, ok = sb.Get("o")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, v)

	assert.Equal(t, 5, p.X)
}

func TestTopLevelDeclarationsLandOnSandbox(t *testing.T) {
	e := newTestEngine(t)
	sb := NewSandbox()
	ctx := newTestContext(t, e, sb)

	val, err := ctx.RunText("var v = 1; let l = 2; const c = 3; function add(a, b) { return a + b } add(v, l + c)")
	require.NoError(t, err)
	assert.Equal(t, int64(6), val.ToInteger())

	assert.True(t, sb.Has("v"))
	assert.True(t, sb.Has("add"))
	assert.False(t, sb.Has("l"))
	assert.False(t, sb.Has("c"))

	// lexical bindings persist inside the context
	val, err = ctx.RunText("l + c")
	require.NoError(t, err)
	assert.Equal(t, int64(5), val.ToInteger())
}

func TestFunctionsCallableBeforeDeclaration(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(t, e, NewSandbox())

	val, err := ctx.RunText("twice(4); function twice(n) { return n * 2 }")
	require.NoError(t, err)
	assert.Equal(t, int64(8), val.ToInteger())
}

func TestStrictModeScripts(t *testing.T) {
	e := newTestEngine(t)
	sb := NewSandbox()
	ctx := newTestContext(t, e, sb)

	val, err := ctx.RunText(`'use strict'; var z = 1; function get() { return z } get()`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val.ToInteger())
	assert.True(t, sb.Has("z"))

	// assigning an undeclared name still throws in strict mode
	_, err = ctx.RunText(`'use strict'; undeclared = 1`)
	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.False(t, sb.Has("undeclared"))
}

func TestContextsAreIsolated(t *testing.T) {
	e := newTestEngine(t)
	c1 := newTestContext(t, e, NewSandbox())
	c2 := newTestContext(t, e, NewSandbox())

	_, err := c1.RunText("var g = 1; h = 2; let l = 3; Object.prototype.polluted = true")
	require.NoError(t, err)

	val, err := c2.RunText("typeof g + typeof h + typeof l + typeof ({}).polluted")
	require.NoError(t, err)
	assert.Equal(t, "undefinedundefinedundefinedundefined", val.String())
}

func TestSharedSandboxBetweenContexts(t *testing.T) {
	e := newTestEngine(t)
	sb := NewSandbox()
	c1 := newTestContext(t, e, sb)
	c2 := newTestContext(t, e, sb)

	_, err := c1.RunText("shared = {n: 1}; same = shared")
	require.NoError(t, err)

	// same runtime keeps object identity
	val, err := c1.RunText("shared === same")
	require.NoError(t, err)
	assert.True(t, val.ToBoolean())

	// other runtime sees a copy, stable for the whole run
	val, err = c2.RunText("shared === shared && (shared.n = 2, shared.n)")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val.ToInteger())

	val, err = c2.RunText("shared.n")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val.ToInteger())

	v, ok := sb.Get("shared")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"n": int64(2)}, v)

	// the first runtime picks the write up from the sandbox
	val, err = c1.RunText("shared.n")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val.ToInteger())
}

func TestDeleteThroughScript(t *testing.T) {
	e := newTestEngine(t)
	sb := SandboxOf("a", 1, "b", 2)
	ctx := newTestContext(t, e, sb)

	val, err := ctx.RunText("delete a")
	require.NoError(t, err)
	assert.True(t, val.ToBoolean())
	assert.False(t, sb.Has("a"))
	assert.Equal(t, []string{"b"}, sb.Keys())

	// missing property: failure indicator, no exception
	val, err = ctx.RunText("delete this.missing")
	require.NoError(t, err)
	assert.False(t, val.ToBoolean())

	_, err = ctx.RunText("delete missing")
	require.NoError(t, err)

	assert.False(t, ctx.Interceptor().Delete("missing"))
}

func TestEnumerationFollowsSandbox(t *testing.T) {
	e := newTestEngine(t)
	sb := SandboxOf("b", 1, "a", 2, "c", 3).WithPrototype(SandboxOf("inherited", 4))
	ctx := newTestContext(t, e, sb)

	val, err := ctx.RunText("Object.keys(this).join(',')")
	require.NoError(t, err)
	assert.Equal(t, "b,a,c", val.String())

	val, err = ctx.RunText("(function () { var ks = []; for (var k in globalThis) ks.push(k); return ks.join(',') })()")
	require.NoError(t, err)
	assert.Equal(t, "b,a,c", val.String())

	val, err = ctx.RunText("typeof inherited")
	require.NoError(t, err)
	assert.Equal(t, "undefined", val.String())
}

func TestBuiltinsStayIntrinsic(t *testing.T) {
	e := newTestEngine(t)
	sb := NewSandbox()
	ctx := newTestContext(t, e, sb)

	val, err := ctx.RunText("Math.max(1, 2) + JSON.stringify({a: 1}).length")
	require.NoError(t, err)
	assert.Equal(t, int64(9), val.ToInteger())
	assert.Equal(t, 0, sb.Len())

	val, err = ctx.RunText("globalThis === this && typeof globalThis.Math")
	require.NoError(t, err)
	assert.Equal(t, "object", val.String())

	// sandbox names shadow built-ins
	sb.Set("Math", "shadowed")
	val, err = ctx.RunText("Math")
	require.NoError(t, err)
	assert.Equal(t, "shadowed", val.String())
}

func TestQueryGetAsymmetry(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(t, e, NewSandbox())

	icpt := ctx.Interceptor()
	assert.True(t, icpt.Query("Math"))
	_, found := icpt.Get("Math")
	assert.False(t, found)

	val, err := ctx.RunText("'Math' in this")
	require.NoError(t, err)
	assert.True(t, val.ToBoolean())
}

func TestGlobalProxyIsNotSandbox(t *testing.T) {
	e := newTestEngine(t)
	sb := SandboxOf("x", 1)
	ctx := newTestContext(t, e, sb)

	proxy := ctx.GlobalProxy()
	require.NotNil(t, proxy)
	assert.Equal(t, int64(1), proxy.Get("x").ToInteger())

	val, err := ctx.RunText("this")
	require.NoError(t, err)
	assert.Same(t, proxy, val)
}

func TestRunArguments(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(t, e, NewSandbox())

	_, err := ctx.Run()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ctx.Run(5)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// non-string origin is ignored
	val, err := ctx.Run("1+1", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), val.ToInteger())
}

func TestRunTextErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(t, e, NewSandbox())

	_, err := ctx.RunText("(", "bad.js")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "bad.js", ce.Origin)
	var syntax *goja.CompilerSyntaxError
	assert.ErrorAs(t, err, &syntax)

	_, err = ctx.RunText("throw new TypeError('boom')", "throws.js")
	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "throws.js", se.Origin)
	var ex *goja.Exception
	require.ErrorAs(t, err, &ex)
	assert.Contains(t, err.Error(), "TypeError: boom")

	thrown, ok := se.Value().(*goja.Object)
	require.True(t, ok)
	assert.Equal(t, "TypeError", thrown.Get("name").String())

	_, err = ctx.RunText("throw 42")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(42), se.Value().Export())
}

func TestScriptCatchesItsOwnErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(t, e, NewSandbox())

	val, err := ctx.RunText("try { missing } catch (e) { e instanceof ReferenceError }")
	require.NoError(t, err)
	assert.True(t, val.ToBoolean())
}

func TestInterrupt(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(t, e, NewSandbox())

	go func() {
		time.Sleep(20 * time.Millisecond)
		ctx.Interrupt("stop")
	}()

	_, err := ctx.RunText("for (;;) {}")
	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Interrupted())
	assert.Nil(t, se.Value())

	ctx.ClearInterrupt()
	val, err := ctx.RunText("'still usable'")
	require.NoError(t, err)
	assert.Equal(t, "still usable", val.String())
}

func TestStackLimit(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.MaxCallStackSize = 64
	e := New(cfg)
	defer e.Close()

	ctx, err := e.NewContext(NewSandbox())
	require.NoError(t, err)
	defer ctx.Dispose()

	_, err = ctx.RunText("function r() { return r() } r()")
	var overflow *goja.StackOverflowError
	assert.ErrorAs(t, err, &overflow)
}

func TestDisposedContext(t *testing.T) {
	e := newTestEngine(t)
	sb := SandboxOf("x", 1)
	ctx, err := e.NewContext(sb)
	require.NoError(t, err)

	val, err := ctx.RunText(`({
		read: function () { return typeof x },
		write: function (v) { y = v; return v },
		keys: function () { return Object.keys(globalThis).length },
		del: function () { return delete globalThis.x },
		builtin: function () { return Math.abs(-3) },
	})`)
	require.NoError(t, err)
	api := val.(*goja.Object)
	icpt := ctx.Interceptor()
	vm := ctx.runtime()

	ctx.Dispose()
	ctx.Dispose() // idempotent

	call := func(name string, args ...goja.Value) goja.Value {
		fn, ok := goja.AssertFunction(api.Get(name))
		require.True(t, ok)
		res, err := fn(goja.Undefined(), args...)
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, "undefined", call("read").String())
	assert.Equal(t, int64(5), call("write", vm.ToValue(5)).ToInteger())
	assert.Equal(t, int64(0), call("keys").ToInteger())
	assert.False(t, call("del").ToBoolean())
	assert.Equal(t, int64(3), call("builtin").ToInteger())

	// the sandbox was left alone
	assert.Equal(t, []string{"x"}, sb.Keys())

	// the interceptor degrades to an empty global
	_, found := icpt.Get("x")
	assert.False(t, found)
	v := vm.ToValue(7)
	assert.Equal(t, v, icpt.Set("x", v))
	assert.False(t, icpt.Query("x"))
	assert.False(t, icpt.Query("Math"))
	assert.False(t, icpt.Delete("x"))
	assert.Empty(t, icpt.Enumerate())

	// the handle reports disposal
	assert.True(t, ctx.Disposed())
	assert.True(t, IsContext(ctx))
	assert.Nil(t, ctx.Sandbox())
	assert.Nil(t, ctx.GlobalProxy())
	_, err = ctx.RunText("1")
	assert.ErrorIs(t, err, ErrContextDisposed)
}

func TestDisposeFromHostFunctionDuringRun(t *testing.T) {
	e := newTestEngine(t)
	sb := NewSandbox()
	ctx := newTestContext(t, e, sb)
	sb.Set("dispose", func() { ctx.Dispose() })

	val, err := ctx.RunText("before = 1; dispose(); after = 2; typeof before")
	require.NoError(t, err)
	assert.Equal(t, "undefined", val.String())
	assert.Equal(t, []string{"dispose", "before"}, sb.Keys())
}

func TestNewContextRejectsNonSandbox(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg, "test")
	e := newTestEngine(t, WithMetrics(metrics))

	inputs := []any{42, nil, "sandbox", map[string]any{"x": 1}, (*Sandbox)(nil), []string{"x"}}
	for _, in := range inputs {
		ctx, err := e.NewContext(in)
		assert.Nil(t, ctx)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%T", in)
	}

	assert.Equal(t, 0, e.Stats().LiveContexts)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PoolMisses))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ContextsCreated))
}

func TestIsContext(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(t, e, NewSandbox())

	assert.True(t, IsContext(ctx))
	assert.False(t, IsContext(nil))
	assert.False(t, IsContext((*Context)(nil)))
	assert.False(t, IsContext(&Context{}))
	assert.False(t, IsContext(NewSandbox()))
	assert.False(t, IsContext(42))
}

func TestZeroContextIsSafe(t *testing.T) {
	var ctx Context
	_, err := ctx.RunText("1")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.NotPanics(t, ctx.Dispose)
	assert.NotPanics(t, func() { ctx.Interrupt("x") })

	var none *Context
	assert.NotPanics(t, func() {
		_, err = none.RunText("1")
	})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = none.Run("1")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
