/*
Package tracing records spans for script executions.

A Tracer hands out spans that share a trace ID through context.Context, so a
batch run and the per-sandbox executions inside it form one trace. Finished
spans are submitted to a buffered collector that logs them with zap; nothing
leaves the process.

# Usage

	tracer := tracing.New("runner", logger)
	defer tracer.Close()

	span, ctx := tracer.StartSpan(ctx, "execute")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	span.SetTag("origin", script.Origin())

Spans are buffered (1000) and dropped with a warning when the buffer is
full. Close flushes the buffer.
*/
package tracing
