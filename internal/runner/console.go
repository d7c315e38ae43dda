package runner

import (
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/contextify/internal/logging"
)

// Console is a host object scripts can call as console.log and friends.
// Place it in a sandbox; every call is captured and logged at debug.
type Console struct {
	log *logging.Logger

	mu      sync.Mutex
	entries []LogEntry
}

// NewConsole creates a console. A nil logger discards log output.
func NewConsole(log *logging.Logger) *Console {
	if log == nil {
		log = logging.NewNop()
	}
	return &Console{log: log}
}

func (c *Console) Log(call goja.FunctionCall) goja.Value   { return c.record("log", call) }
func (c *Console) Info(call goja.FunctionCall) goja.Value  { return c.record("info", call) }
func (c *Console) Warn(call goja.FunctionCall) goja.Value  { return c.record("warn", call) }
func (c *Console) Error(call goja.FunctionCall) goja.Value { return c.record("error", call) }

func (c *Console) record(level string, call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = arg.String()
	}
	msg := strings.Join(parts, " ")

	c.mu.Lock()
	c.entries = append(c.entries, LogEntry{
		Level:   level,
		Message: msg,
		Time:    time.Now(),
	})
	c.mu.Unlock()

	c.log.Debug("console", zap.String("level", level), zap.String("message", msg))
	return goja.Undefined()
}

// drain returns the captured entries and resets the console.
func (c *Console) drain() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.entries
	c.entries = nil
	return out
}

// Entries returns a copy of the captured entries.
func (c *Console) Entries() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]LogEntry(nil), c.entries...)
}
