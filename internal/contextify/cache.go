package contextify

import (
	"sync"

	"github.com/GriffinCanCode/contextify/internal/shared/utils"
)

// scriptCache maps origin and source to an already compiled Script. Scripts
// are immutable, so one instance can be handed to every caller. A nil cache
// is valid and never hits.
type scriptCache struct {
	hasher *utils.Hasher
	size   int

	mu      sync.Mutex
	scripts map[string]*Script
}

func newScriptCache(size int) *scriptCache {
	if size <= 0 {
		return nil
	}
	return &scriptCache{
		hasher:  utils.DefaultHasher(),
		size:    size,
		scripts: make(map[string]*Script, size),
	}
}

func (c *scriptCache) key(source, origin string) string {
	if c == nil {
		return ""
	}
	return c.hasher.HashFields(origin, source)
}

func (c *scriptCache) get(key string) (*Script, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.scripts[key]
	return s, ok
}

// put stores s, evicting an arbitrary entry when the cache is full.
func (c *scriptCache) put(key string, s *Script) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.scripts[key]; !ok && len(c.scripts) >= c.size {
		for k := range c.scripts {
			delete(c.scripts, k)
			break
		}
	}
	c.scripts[key] = s
}

func (c *scriptCache) len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scripts)
}
