package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/contextify/internal/contextify"
	"github.com/GriffinCanCode/contextify/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/contextify/internal/logging"
)

const consoleName = "console"

// Runner executes compiled scripts in fresh isolation contexts with a time
// limit. Runs on different sandboxes may proceed concurrently.
type Runner struct {
	engine *contextify.Engine
	config Config
	log    *logging.Logger
	tracer *tracing.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithTracer records a span per execution and per batch.
func WithTracer(t *tracing.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

// New creates a runner on top of engine.
func New(engine *contextify.Engine, cfg Config, log *logging.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logging.NewNop()
	}
	r := &Runner{
		engine: engine,
		config: cfg,
		log:    log.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs script in a new context over sandbox and disposes the context
// afterwards. The run is interrupted when the timeout elapses or ctx is done;
// the returned error then wraps ErrTimeout or ctx.Err().
//
// With the console enabled and no "console" in the sandbox, a Console is
// placed there for the duration of the run and removed again.
func (r *Runner) Execute(ctx context.Context, script *contextify.Script, sandbox *contextify.Sandbox) (result *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.tracer != nil {
		var span *tracing.Span
		span, ctx = r.tracer.StartSpan(ctx, "execute")
		span.SetTag("origin", script.Origin())
		defer func() {
			span.SetTag("outcome", contextify.Classify(nil, err).Kind.String())
			if err != nil {
				span.SetError(err)
			}
			span.Finish()
			r.tracer.Submit(span)
		}()
	}

	c, err := r.engine.NewContext(sandbox)
	if err != nil {
		return nil, err
	}
	defer c.Dispose()
	if r.tracer != nil {
		r.log.Debug("execution started",
			zap.Stringer("context", c.ID()),
			zap.String("trace", tracing.FormatTrace(tracing.GetTraceID(ctx), tracing.GetSpanID(ctx))),
		)
	}

	var console *Console
	if r.config.EnableConsole && !sandbox.Has(consoleName) {
		console = NewConsole(r.log)
		sandbox.Set(consoleName, console)
		defer sandbox.Delete(consoleName)
	}

	start := time.Now()
	stop := r.watch(ctx, c)
	val, err := script.RunInContext(c)
	stop()

	result = &Result{Duration: time.Since(start)}
	if console != nil {
		result.Console = console.drain()
	}

	if err != nil {
		result.Error = err
		r.log.Debug("execution failed",
			zap.Stringer("context", c.ID()),
			zap.String("origin", script.Origin()),
			zap.Duration("duration", result.Duration),
			zap.Error(err),
		)
		return result, err
	}

	result.Value = exportValue(val)
	return result, nil
}

// ExecuteText compiles source and executes it.
func (r *Runner) ExecuteText(ctx context.Context, source string, sandbox *contextify.Sandbox, origin ...string) (*Result, error) {
	script, err := r.engine.Compile(source, origin...)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, script, sandbox)
}

// ExecuteAll runs script once per sandbox, in order, each in its own
// context. A failing run does not stop the others; its error is kept on the
// corresponding Result. Only cancellation of ctx ends the batch early.
func (r *Runner) ExecuteAll(ctx context.Context, script *contextify.Script, sandboxes []*contextify.Sandbox) ([]*Result, error) {
	r.engine.Prewarm()

	if r.tracer != nil {
		var span *tracing.Span
		span, ctx = r.tracer.StartSpan(ctx, "batch")
		span.SetTag("origin", script.Origin())
		span.SetTag("sandboxes", fmt.Sprint(len(sandboxes)))
		defer func() {
			span.Finish()
			r.tracer.Submit(span)
		}()
	}

	results := make([]*Result, 0, len(sandboxes))
	for i, sb := range sandboxes {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("batch stopped at sandbox %d: %w", i, err)
		}
		res, err := r.Execute(ctx, script, sb)
		if res == nil {
			res = &Result{Error: err}
		}
		results = append(results, res)
	}
	return results, nil
}

// watch interrupts c on timeout or cancellation until the returned stop
// function is called. stop waits for the watchdog to exit and clears any
// interrupt that raced with the end of the run.
func (r *Runner) watch(ctx context.Context, c *contextify.Context) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	var timeout <-chan time.Time
	var timer *time.Timer
	if r.config.Timeout > 0 {
		timer = time.NewTimer(r.config.Timeout)
		timeout = timer.C
	}

	go func() {
		defer wg.Done()
		if timer != nil {
			defer timer.Stop()
		}
		select {
		case <-timeout:
			c.Interrupt(ErrTimeout)
		case <-ctx.Done():
			c.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	return func() {
		close(done)
		wg.Wait()
		c.ClearInterrupt()
	}
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
