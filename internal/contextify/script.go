package contextify

import (
	"github.com/dop251/goja"

	"github.com/GriffinCanCode/contextify/internal/infrastructure/config"
	"github.com/GriffinCanCode/contextify/internal/shared/id"
)

// Script is compiled source that can run in any number of contexts. It holds
// no reference to a context or sandbox and is immutable.
type Script struct {
	id      id.ScriptID
	origin  string
	program *goja.Program
	globals []string
}

// Compile compiles source without an engine. The origin defaults to
// "ContextifyScript.<anonymous>".
func Compile(source string, origin ...string) (*Script, error) {
	name := config.DefaultOrigin
	if len(origin) > 0 && origin[0] != "" {
		name = origin[0]
	}
	return compileScript(source, name)
}

func compileScript(source, origin string) (*Script, error) {
	prg, globals, err := parseHoisted(origin, source)
	if err != nil {
		return nil, &CompileError{Origin: origin, Err: err}
	}
	program, err := goja.CompileAST(prg, false)
	if err != nil {
		return nil, &CompileError{Origin: origin, Err: err}
	}
	return &Script{
		id:      id.NewScriptID(),
		origin:  origin,
		program: program,
		globals: globals,
	}, nil
}

func (s *Script) ID() id.ScriptID { return s.id }
func (s *Script) Origin() string  { return s.origin }

// Globals returns the top-level var and function names the script declares.
func (s *Script) Globals() []string {
	out := make([]string, len(s.globals))
	copy(out, s.globals)
	return out
}

// RunInContext runs the script in ctx, which must be a *Context. It returns
// the completion value of the last statement.
func (s *Script) RunInContext(ctx any) (goja.Value, error) {
	if s == nil || s.program == nil {
		return nil, invalidArgument("script is not compiled")
	}
	c, ok := ctx.(*Context)
	if !ok || !IsContext(c) {
		return nil, invalidArgument("first argument must be a Context")
	}
	return c.exec(s, "script")
}
