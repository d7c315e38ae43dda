package contextify

import (
	"sync"

	"github.com/dop251/goja"
)

// Sandbox is the set of named values a script sees as its globals.
//
// Names keep insertion order. An engine object is stored together with the
// runtime it belongs to. Host values and objects from another runtime are
// converted on first read and the converted object replaces the stored one,
// so repeated reads from one runtime see the same object and writes through
// it land in the underlying Go value. The prototype, if any, is visible to
// Lookup only; scripts never see it.
type Sandbox struct {
	mu      sync.RWMutex
	keys    []string
	entries map[string]entry
	proto   *Sandbox
	rev     uint64
}

type entry struct {
	value any
	owner *goja.Runtime
	rev   uint64 // bumped on every store, kept across conversions
}

// NewSandbox returns an empty sandbox.
func NewSandbox() *Sandbox {
	return &Sandbox{entries: make(map[string]entry)}
}

// SandboxOf returns a sandbox holding pairs given as name, value, name, value.
// It panics on an odd count or a non-string name.
func SandboxOf(pairs ...any) *Sandbox {
	if len(pairs)%2 != 0 {
		panic("contextify: SandboxOf needs name/value pairs")
	}
	s := NewSandbox()
	for i := 0; i < len(pairs); i += 2 {
		s.Set(pairs[i].(string), pairs[i+1])
	}
	return s
}

// WithPrototype sets the sandbox's prototype and returns the sandbox.
func (s *Sandbox) WithPrototype(proto *Sandbox) *Sandbox {
	s.mu.Lock()
	s.proto = proto
	s.mu.Unlock()
	return s
}

// Set stores a host value. Engine objects are stored in exported form since
// the runtime they belong to is unknown here.
func (s *Sandbox) Set(name string, value any) {
	if obj, ok := value.(*goja.Object); ok {
		value = obj.Export()
	}
	s.store(name, entry{value: value})
}

// Get returns the own value for name as a plain Go value.
func (s *Sandbox) Get(name string) (any, bool) {
	e, ok := s.own(name)
	if !ok {
		return nil, false
	}
	return e.export(), true
}

// Lookup is Get that also walks the prototype chain.
func (s *Sandbox) Lookup(name string) (any, bool) {
	for cur := s; cur != nil; {
		if v, ok := cur.Get(name); ok {
			return v, true
		}
		cur.mu.RLock()
		next := cur.proto
		cur.mu.RUnlock()
		cur = next
	}
	return nil, false
}

// Has reports whether name is an own property.
func (s *Sandbox) Has(name string) bool {
	_, ok := s.own(name)
	return ok
}

// Delete removes an own property and reports whether it existed.
func (s *Sandbox) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return false
	}
	delete(s.entries, name)
	for i, k := range s.keys {
		if k == name {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the own property names in insertion order.
func (s *Sandbox) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Len returns the number of own properties.
func (s *Sandbox) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Range calls fn for each own property in insertion order until fn returns
// false. fn runs on a snapshot and may modify the sandbox.
func (s *Sandbox) Range(fn func(name string, value any) bool) {
	s.mu.RLock()
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	entries := make([]entry, len(keys))
	for i, k := range keys {
		entries[i] = s.entries[k]
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if !fn(k, entries[i].export()) {
			return
		}
	}
}

// Snapshot returns the own properties as a plain map.
func (s *Sandbox) Snapshot() map[string]any {
	out := make(map[string]any, s.Len())
	s.Range(func(name string, value any) bool {
		out[name] = value
		return true
	})
	return out
}

func (s *Sandbox) own(name string) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e, ok
}

// put stores a value produced by vm.
func (s *Sandbox) put(name string, value goja.Value, vm *goja.Runtime) {
	e := entry{value: value}
	if _, ok := value.(*goja.Object); ok {
		e.owner = vm
	}
	s.store(name, e)
}

func (s *Sandbox) store(name string, e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries == nil {
		s.entries = make(map[string]entry)
	}
	if _, exists := s.entries[name]; !exists {
		s.keys = append(s.keys, name)
	}
	s.rev++
	e.rev = s.rev
	s.entries[name] = e
}

// view returns name's own value for use inside vm. A converted object is
// written back unless the entry changed meanwhile.
func (s *Sandbox) view(name string, vm *goja.Runtime) (goja.Value, bool) {
	e, ok := s.own(name)
	if !ok {
		return nil, false
	}
	if v, ok := e.local(vm); ok {
		return v, true
	}

	v := e.convert(vm)
	obj, ok := v.(*goja.Object)
	if !ok {
		return v, true
	}
	s.mu.Lock()
	if cur, ok := s.entries[name]; ok && cur.rev == e.rev {
		s.entries[name] = entry{value: obj, owner: vm, rev: e.rev}
	}
	s.mu.Unlock()
	return obj, true
}

// export converts the stored value to a plain Go value. Must not be called
// with the sandbox lock held; exporting may run script getters.
func (e entry) export() any {
	if v, ok := e.value.(goja.Value); ok {
		return v.Export()
	}
	return e.value
}

// local returns the stored value if vm can use it as is.
func (e entry) local(vm *goja.Runtime) (goja.Value, bool) {
	switch v := e.value.(type) {
	case *goja.Object:
		return v, e.owner == vm
	case goja.Value:
		return v, true
	default:
		return nil, false
	}
}

// convert wraps a host value for vm, or copies an object owned by another
// runtime through its exported form.
func (e entry) convert(vm *goja.Runtime) goja.Value {
	if obj, ok := e.value.(*goja.Object); ok {
		return vm.ToValue(obj.Export())
	}
	return vm.ToValue(e.value)
}
