/*
Package contextify runs scripts against caller-supplied sandboxes.

# Overview

An Engine creates isolation contexts. Each Context owns one goja runtime
whose global object is replaced by a proxy: every global read, write,
existence check, delete and enumeration performed by a script goes through
an Interceptor that redirects it to the context's Sandbox. Built-ins such as
Math or JSON stay intrinsic to the runtime, so two contexts never share
global state except through a sandbox they were both given.

	engine := contextify.New(config.DefaultEngine())
	sb := contextify.SandboxOf("x", 10)

	ctx, err := engine.NewContext(sb)
	if err != nil {
		return err
	}
	defer ctx.Dispose()

	val, err := ctx.RunText("y = x * 2; typeof x")
	// val is "number"; sb now holds y = 20

# Compiled scripts

A Script is compiled once and may run in any number of contexts:

	script, err := engine.Compile("var count = (count || 0) + 1")
	for _, ctx := range contexts {
		script.RunInContext(ctx)
	}

Top-level var and function declarations land on the sandbox, as they would
on a real global object. let, const and class declarations stay private to
the context.

# Errors

ErrInvalidArgument reports caller misuse and is returned before any runtime
is touched. *CompileError and *ScriptError wrap the engine's own error
values unchanged; use errors.As to reach *goja.CompilerSyntaxError,
*goja.Exception or *goja.InterruptedError. Classify maps any call's return to
a tagged Result.

# Disposal

Dispose clears the context's slot in the engine's live table. A proxy that
is still reachable afterwards, for instance from a closure the host kept,
observes an empty global: reads find nothing, writes are dropped, deletes
fail and enumeration is empty.
*/
package contextify
