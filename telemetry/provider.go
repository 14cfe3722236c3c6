package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/sensorsim/internal/tracker"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// InstrumentationName is the scope name of every tracer and meter the simulator creates.
const InstrumentationName = "github.com/arloliu/sensorsim"

var (
	// ErrDisabled is returned when telemetry or the requested signal is disabled.
	ErrDisabled = errors.New("telemetry: disabled")

	// ErrLogsDisabled is returned when log export is disabled.
	ErrLogsDisabled = errors.New("telemetry: logs export is disabled")

	// ErrMetricsDisabled is returned when metric export is disabled.
	ErrMetricsDisabled = errors.New("telemetry: metrics export is disabled")

	// ErrServiceNameRequired is returned when ServiceName is empty but telemetry is enabled.
	ErrServiceNameRequired = errors.New("telemetry: service name is required")
)

// Providers holds the SDK providers installed by Setup. Nil fields are disabled signals.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
}

// Setup installs every enabled signal as the global provider and points the span helpers at
// the new tracer. A disabled config yields empty Providers and no error.
func Setup(ctx context.Context, cfg *Config) (*Providers, error) {
	p := &Providers{}
	if !cfg.IsEnabled() {
		return p, nil
	}

	tp, err := NewTracerProvider(ctx, cfg)
	switch {
	case err == nil:
		p.TracerProvider = tp
		tracker.SetTracer(tp.Tracer(InstrumentationName), nil)
	case !errors.Is(err, ErrDisabled):
		return nil, err
	}

	mp, err := NewMeterProvider(ctx, cfg)
	switch {
	case err == nil:
		p.MeterProvider = mp
		tracker.SetMeter(mp.Meter(InstrumentationName))
	case !errors.Is(err, ErrMetricsDisabled):
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	lp, err := NewLoggerProvider(ctx, cfg)
	switch {
	case err == nil:
		p.LoggerProvider = lp
	case !errors.Is(err, ErrLogsDisabled):
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	return p, nil
}

// Meter returns the meter installed by Setup, or the global provider's meter for the
// simulator's instrumentation scope.
func Meter() metric.Meter {
	if m := tracker.Meter(); m != nil {
		return m
	}

	return otel.Meter(InstrumentationName)
}

// Shutdown flushes and stops every installed provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error
	if p.TracerProvider != nil {
		errs = append(errs, p.TracerProvider.Shutdown(ctx))
		tracker.SetTracer(nil, nil)
	}
	if p.MeterProvider != nil {
		errs = append(errs, p.MeterProvider.Shutdown(ctx))
		tracker.SetMeter(nil)
	}
	if p.LoggerProvider != nil {
		errs = append(errs, p.LoggerProvider.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

// NewTracerProvider builds a TracerProvider and installs it, with the configured propagator,
// as the global one.
func NewTracerProvider(ctx context.Context, cfg *Config) (*sdktrace.TracerProvider, error) {
	if !cfg.IsEnabled() || !cfg.Traces.IsEnabled() {
		return nil, ErrDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := buildTraceExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(buildSampler(cfg.sampling())),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(buildPropagator(cfg.Propagation))

	return tp, nil
}

// NewLoggerProvider builds a LoggerProvider for the slog bridge and installs it globally.
func NewLoggerProvider(ctx context.Context, cfg *Config) (*sdklog.LoggerProvider, error) {
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}
	if !cfg.Logs.IsEnabled() {
		return nil, ErrLogsDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := buildLogExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build log exporter: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp)

	return lp, nil
}

// NewMeterProvider builds a MeterProvider with a periodic reader and installs it globally.
func NewMeterProvider(ctx context.Context, cfg *Config) (*sdkmetric.MeterProvider, error) {
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}
	if !cfg.Metrics.IsEnabled() {
		return nil, ErrMetricsDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := buildMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(normalizeMetricInterval(cfg.Metrics.Interval, 60*time.Second)),
		)),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

func buildResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	if cfg.ServiceName == "" {
		return nil, ErrServiceNameRequired
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	}
	for key, value := range cfg.ResourceAttributes {
		if key == "" {
			continue
		}
		attrs = append(attrs, attribute.String(key, value))
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

// normalizeMetricInterval reads sub-millisecond values as milliseconds, since numeric env
// values arrive as nanoseconds.
func normalizeMetricInterval(value, defaultValue time.Duration) time.Duration {
	switch {
	case value <= 0:
		return defaultValue
	case value < time.Millisecond:
		return time.Duration(int64(value)) * time.Millisecond
	default:
		return value
	}
}

func buildSampler(cfg *SamplingConfig) sdktrace.Sampler {
	if cfg == nil {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}

	switch cfg.Sampler {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.SamplerArg)
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplerArg))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}
