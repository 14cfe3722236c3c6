// Package tracker holds the process-wide tracer, span namer and meter used by the
// telemetry helpers. It is swapped atomically so ticks never observe a half-updated state.
package tracker

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Namer determines how span names are formatted.
type Namer interface {
	Name(string) string
}

type identity struct{}

func (identity) Name(s string) string { return s }

type state struct {
	tracer trace.Tracer
	namer  Namer
	meter  metric.Meter
}

var global atomic.Pointer[state]

func init() {
	global.Store(&state{namer: identity{}})
}

func update(fn func(s *state)) {
	for {
		old := global.Load()
		next := *old
		fn(&next)
		if global.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetTracer replaces the tracer and namer. A nil namer keeps names unchanged.
func SetTracer(t trace.Tracer, n Namer) {
	if n == nil {
		n = identity{}
	}
	update(func(s *state) {
		s.tracer = t
		s.namer = n
	})
}

// SetMeter replaces the meter. A nil meter means "use the global provider".
func SetMeter(m metric.Meter) {
	update(func(s *state) { s.meter = m })
}

// Start begins a span with the configured tracer and namer.
// Without a tracer it returns ctx and a non-recording span carrying the span context of ctx,
// so ending it never ends the caller's span.
func Start(ctx context.Context, operation string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := global.Load()
	if s.tracer == nil {
		sc := trace.SpanContextFromContext(ctx)
		return ctx, trace.SpanFromContext(trace.ContextWithSpanContext(context.Background(), sc))
	}

	return s.tracer.Start(ctx, s.namer.Name(operation), opts...)
}

// Tracer returns the configured tracer, or nil.
func Tracer() trace.Tracer {
	return global.Load().tracer
}

// Meter returns the configured meter, or nil.
func Meter() metric.Meter {
	return global.Load().meter
}
