package contextify

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

var (
	// ErrInvalidArgument reports caller misuse of an entry point. It is
	// always returned before any engine runtime is touched.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrContextDisposed is returned when running code in a disposed context.
	ErrContextDisposed = errors.New("context disposed")

	// ErrEngineClosed is returned by NewContext after Engine.Close.
	ErrEngineClosed = errors.New("engine closed")
)

func invalidArgument(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}

// CompileError carries the parser's diagnostic unchanged.
type CompileError struct {
	Origin string
	Err    error
}

func (e *CompileError) Error() string {
	return e.Err.Error()
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// ScriptError carries whatever the executing script threw, unchanged.
// Interrupts and stack overflows surface here too, as the engine's
// *goja.InterruptedError and *goja.StackOverflowError.
type ScriptError struct {
	Origin string
	Err    error
}

func (e *ScriptError) Error() string {
	return e.Err.Error()
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Value returns the thrown value as the script produced it, or nil when the
// failure was not a script-level throw.
func (e *ScriptError) Value() goja.Value {
	var ex *goja.Exception
	if errors.As(e.Err, &ex) {
		return ex.Value()
	}
	return nil
}

// Interrupted reports whether execution was stopped by Context.Interrupt.
func (e *ScriptError) Interrupted() bool {
	var ie *goja.InterruptedError
	return errors.As(e.Err, &ie)
}
