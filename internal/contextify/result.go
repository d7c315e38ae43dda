package contextify

import (
	"errors"

	"github.com/dop251/goja"
)

// Outcome tags the result of a boundary call.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeInvalidArgument
	OutcomeCompileError
	OutcomeScriptError
	OutcomeDisposed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeInvalidArgument:
		return "invalid_argument"
	case OutcomeCompileError:
		return "compile_error"
	case OutcomeScriptError:
		return "script_error"
	case OutcomeDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Result is the tagged form of a (value, error) pair. Value is set only for
// OutcomeOK; Err is the original error otherwise.
type Result struct {
	Kind  Outcome
	Value goja.Value
	Err   error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Kind == OutcomeOK }

// Classify tags the return of RunText, Compile or RunInContext.
func Classify(val goja.Value, err error) Result {
	return Result{Kind: outcomeOf(err), Value: val, Err: err}
}

func outcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var ce *CompileError
	var se *ScriptError
	switch {
	case errors.As(err, &ce):
		return OutcomeCompileError
	case errors.As(err, &se):
		return OutcomeScriptError
	case errors.Is(err, ErrInvalidArgument):
		return OutcomeInvalidArgument
	case errors.Is(err, ErrContextDisposed), errors.Is(err, ErrEngineClosed):
		return OutcomeDisposed
	default:
		return OutcomeScriptError
	}
}
