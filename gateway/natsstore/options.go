package natsstore

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type options struct {
	logger *slog.Logger
	prop   propagation.TextMapPropagator
}

// Option configures a Store.
type Option func(*options)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPropagator sets the propagator used to write trace headers.
// The global propagator is used by default.
func WithPropagator(prop propagation.TextMapPropagator) Option {
	return func(o *options) {
		o.prop = prop
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.prop == nil {
		o.prop = otel.GetTextMapPropagator()
	}

	return o
}
