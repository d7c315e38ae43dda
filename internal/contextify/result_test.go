package contextify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(t, e, NewSandbox())

	tests := []struct {
		name string
		run  func() Result
		want Outcome
	}{
		{
			name: "ok",
			run:  func() Result { return Classify(ctx.RunText("40 + 2")) },
			want: OutcomeOK,
		},
		{
			name: "invalid argument",
			run: func() Result {
				_, err := e.NewContext(42)
				return Classify(nil, err)
			},
			want: OutcomeInvalidArgument,
		},
		{
			name: "compile error",
			run:  func() Result { return Classify(ctx.RunText("(")) },
			want: OutcomeCompileError,
		},
		{
			name: "script error",
			run:  func() Result { return Classify(ctx.RunText("throw 'x'")) },
			want: OutcomeScriptError,
		},
		{
			name: "disposed",
			run:  func() Result { return Classify(nil, ErrContextDisposed) },
			want: OutcomeDisposed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.run()
			assert.Equal(t, tt.want, res.Kind)
			assert.Equal(t, tt.want == OutcomeOK, res.OK())
		})
	}
}

func TestClassifyKeepsPayload(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(t, e, NewSandbox())

	res := Classify(ctx.RunText("40 + 2"))
	require.True(t, res.OK())
	assert.Equal(t, int64(42), res.Value.ToInteger())

	_, err := ctx.RunText("throw 'x'")
	res = Classify(nil, err)
	assert.Same(t, err, res.Err)

	var se *ScriptError
	require.True(t, errors.As(res.Err, &se))
	assert.Equal(t, "x", se.Value().String())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ok", OutcomeOK.String())
	assert.Equal(t, "compile_error", OutcomeCompileError.String())
	assert.Equal(t, "script_error", OutcomeScriptError.String())
	assert.Equal(t, "invalid_argument", OutcomeInvalidArgument.String())
	assert.Equal(t, "disposed", OutcomeDisposed.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
