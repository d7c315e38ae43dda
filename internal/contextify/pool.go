package contextify

import (
	"sync"

	"github.com/dop251/goja"
)

// runtimePool holds prebuilt runtimes for new contexts. A runtime handed out
// belongs to its context for good; it is never given back.
type runtimePool struct {
	runtimes chan *goja.Runtime
	factory  func() *goja.Runtime
	size     int
	mu       sync.RWMutex
	closed   bool
}

func newRuntimePool(size int, factory func() *goja.Runtime) *runtimePool {
	if size < 0 {
		size = 0
	}
	p := &runtimePool{
		runtimes: make(chan *goja.Runtime, size),
		factory:  factory,
		size:     size,
	}
	p.fill()
	return p
}

// get returns a pooled runtime if one is ready, otherwise a fresh one.
func (p *runtimePool) get() (*goja.Runtime, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.closed {
		select {
		case vm := <-p.runtimes:
			return vm, true
		default:
		}
	}
	return p.factory(), false
}

// fill tops the pool up to capacity and returns how many runtimes it built.
func (p *runtimePool) fill() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0
	}
	built := 0
	for len(p.runtimes) < p.size {
		select {
		case p.runtimes <- p.factory():
			built++
		default:
			return built
		}
	}
	return built
}

func (p *runtimePool) available() int {
	return len(p.runtimes)
}

func (p *runtimePool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.runtimes)
	for range p.runtimes {
	}
}
