package runner

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/contextify/internal/infrastructure/config"
)

// ErrTimeout is the interrupt value used when a run exceeds Config.Timeout.
// It is reachable from the run error with errors.Is.
var ErrTimeout = errors.New("execution timeout exceeded")

// Config defines runner limits
type Config struct {
	Timeout       time.Duration // Execution timeout, zero disables it
	EnableConsole bool          // Expose console.log/info/warn/error
}

// Result holds execution result
type Result struct {
	Value    interface{}   `json:"value"`             // Exported completion value
	Console  []LogEntry    `json:"console,omitempty"` // Console output
	Duration time.Duration `json:"duration"`          // Execution time
	Error    error         `json:"-"`                 // Execution error
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`   // log, info, warn, error
	Message string    `json:"message"` // Log message
	Time    time.Time `json:"time"`    // Timestamp
}

// DefaultConfig returns the default runner limits.
func DefaultConfig() Config {
	return FromConfig(config.Default().Runner)
}

// FromConfig converts the environment-backed runner section.
func FromConfig(cfg config.RunnerConfig) Config {
	return Config{
		Timeout:       cfg.Timeout,
		EnableConsole: cfg.EnableConsole,
	}
}
