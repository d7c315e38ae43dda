package contextify

import (
	"sync"

	"github.com/GriffinCanCode/contextify/internal/shared/id"
)

// liveTable maps context IDs to live contexts. A global proxy holds only the
// ID of its context; a missing slot means the context was disposed.
type liveTable struct {
	mu    sync.RWMutex
	slots map[id.ContextID]*Context
}

func newLiveTable() *liveTable {
	return &liveTable{slots: make(map[id.ContextID]*Context)}
}

func (t *liveTable) register(ctx *Context) {
	t.mu.Lock()
	t.slots[ctx.id] = ctx
	t.mu.Unlock()
}

func (t *liveTable) resolve(cid id.ContextID) *Context {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.slots[cid]
}

// clear empties the slot and reports whether it was live.
func (t *liveTable) clear(cid id.ContextID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.slots[cid]; !ok {
		return false
	}
	delete(t.slots, cid)
	return true
}

func (t *liveTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots)
}

func (t *liveTable) list() []*Context {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Context, 0, len(t.slots))
	for _, ctx := range t.slots {
		out = append(out, ctx)
	}
	return out
}
