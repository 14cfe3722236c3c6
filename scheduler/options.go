package scheduler

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// DefaultInterval is the tick period when none is configured.
const DefaultInterval = 10 * time.Second

// Clock supplies tick timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the tick period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock sets the source of tick timestamps. Waiting between ticks always uses real time.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger for tick summaries.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReporter registers fn to receive every tick's report. It runs on the scheduler's
// goroutine and delays the next tick while it runs.
func WithReporter(fn func(Report)) Option {
	return func(s *Scheduler) {
		s.reporter = fn
	}
}

// WithMeter records tick metrics on m instead of the telemetry package's meter.
func WithMeter(m metric.Meter) Option {
	return func(s *Scheduler) {
		s.meter = m
	}
}
