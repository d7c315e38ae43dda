package contextify

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/contextify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/contextify/internal/logging"
	"github.com/GriffinCanCode/contextify/internal/shared/id"
)

// Access identifies the kind of property access being checked.
type Access int

const (
	// AccessGet reads a global.
	AccessGet Access = iota
	// AccessSet writes a global.
	AccessSet
	// AccessQuery tests whether a global exists.
	AccessQuery
	// AccessDelete removes a global.
	AccessDelete
	// AccessEnumerate lists the globals.
	AccessEnumerate
)

func (a Access) String() string {
	switch a {
	case AccessGet:
		return "get"
	case AccessSet:
		return "set"
	case AccessQuery:
		return "query"
	case AccessDelete:
		return "delete"
	case AccessEnumerate:
		return "enumerate"
	default:
		return "unknown"
	}
}

// Interceptor receives every named-property operation on a context's global
// object.
type Interceptor interface {
	// Get returns the value for name, or false to fall through to built-ins.
	Get(name string) (goja.Value, bool)
	// Set stores value under name and returns the value as set.
	Set(name string, value goja.Value) goja.Value
	// Query reports whether name exists.
	Query(name string) bool
	// Delete removes name and reports whether anything was removed.
	Delete(name string) bool
	// Enumerate returns the visible global names in order.
	Enumerate() []string
	// AccessCheck reports whether the access is permitted.
	AccessCheck(name string, access Access) bool
}

// globalProxy redirects global property operations to the sandbox of the
// context it belongs to. It holds the context's ID rather than the context;
// once the context is disposed every operation sees an empty global.
type globalProxy struct {
	cid      id.ContextID
	table    *liveTable
	builtins map[string]struct{}
}

var _ Interceptor = (*globalProxy)(nil)

// resolve returns the live context's sandbox and runtime, or nils once the
// context is disposed.
func (p *globalProxy) resolve() (*Sandbox, *goja.Runtime) {
	ctx := p.table.resolve(p.cid)
	if ctx == nil {
		return nil, nil
	}
	return ctx.Sandbox(), ctx.runtime()
}

func (p *globalProxy) Get(name string) (goja.Value, bool) {
	sb, vm := p.resolve()
	if sb == nil || vm == nil {
		return nil, false
	}
	return sb.view(name, vm)
}

// Set never checks writability; sandbox bindings cannot be read-only.
func (p *globalProxy) Set(name string, value goja.Value) goja.Value {
	sb, vm := p.resolve()
	if sb == nil || vm == nil {
		return value
	}
	sb.put(name, value, vm)
	return value
}

// Query looks at the sandbox and at the runtime's own built-ins, while Get
// consults the sandbox only. Scripts can therefore see a name as present
// (`"Math" in this`) that the interceptor itself does not return.
func (p *globalProxy) Query(name string) bool {
	sb, _ := p.resolve()
	if sb == nil {
		return false
	}
	if sb.Has(name) {
		return true
	}
	_, builtin := p.builtins[name]
	return builtin
}

func (p *globalProxy) Delete(name string) bool {
	sb, _ := p.resolve()
	if sb == nil {
		return false
	}
	return sb.Delete(name)
}

func (p *globalProxy) Enumerate() []string {
	sb, _ := p.resolve()
	if sb == nil {
		return []string{}
	}
	return sb.Keys()
}

func (p *globalProxy) AccessCheck(string, Access) bool {
	return true
}

// globalObject adapts an Interceptor to the engine's dynamic object protocol
// and falls back to the runtime's intrinsic global for built-ins.
type globalObject struct {
	icpt       Interceptor
	intrinsics *goja.Object
	self       *goja.Object
	metrics    *monitoring.Metrics
	trace      *logging.Logger
}

var _ goja.DynamicObject = (*globalObject)(nil)

func (g *globalObject) Get(key string) goja.Value {
	if !g.icpt.AccessCheck(key, AccessGet) {
		return nil
	}
	v, ok := g.icpt.Get(key)
	g.observe(AccessGet, key, ok)
	if ok {
		return v
	}
	if key == "globalThis" {
		return g.self
	}
	return g.intrinsics.Get(key)
}

func (g *globalObject) Set(key string, val goja.Value) bool {
	if !g.icpt.AccessCheck(key, AccessSet) {
		return false
	}
	g.icpt.Set(key, val)
	g.observe(AccessSet, key, true)
	return true
}

func (g *globalObject) Has(key string) bool {
	if !g.icpt.AccessCheck(key, AccessQuery) {
		return false
	}
	ok := g.icpt.Query(key)
	g.observe(AccessQuery, key, ok)
	return ok
}

func (g *globalObject) Delete(key string) bool {
	if !g.icpt.AccessCheck(key, AccessDelete) {
		return false
	}
	ok := g.icpt.Delete(key)
	g.observe(AccessDelete, key, ok)
	return ok
}

func (g *globalObject) Keys() []string {
	if !g.icpt.AccessCheck("", AccessEnumerate) {
		return nil
	}
	keys := g.icpt.Enumerate()
	g.observe(AccessEnumerate, "", len(keys) > 0)
	return keys
}

func (g *globalObject) observe(op Access, name string, hit bool) {
	g.metrics.RecordInterceptor(op.String(), hit)
	if g.trace != nil {
		g.trace.Debug("global property",
			zap.Stringer("op", op),
			zap.String("name", name),
			zap.Bool("hit", hit),
		)
	}
}
