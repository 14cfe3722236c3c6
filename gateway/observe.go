package gateway

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/arloliu/sensorsim/record"
	"github.com/arloliu/sensorsim/telemetry"
)

// Metric names recorded by Observed.
const (
	MetricRecords  = "sensorsim.gateway.records"
	MetricDuration = "sensorsim.gateway.duration"
)

// Outcome attribute values of MetricRecords.
const (
	OutcomeStored = "stored"
	OutcomeFailed = "failed"
)

// Observed records one span, a record counter and a latency histogram per gateway call.
type Observed struct {
	next     Gateway
	logger   *slog.Logger
	records  metric.Int64Counter
	duration metric.Float64Histogram
}

var _ Gateway = (*Observed)(nil)

// ObserveOption configures Observe.
type ObserveOption func(*observeOptions)

type observeOptions struct {
	meter metric.Meter
}

// WithMeter records metrics on m instead of the telemetry package's meter.
func WithMeter(m metric.Meter) ObserveOption {
	return func(o *observeOptions) { o.meter = m }
}

// Observe wraps g with tracing and metrics.
func Observe(g Gateway, logger *slog.Logger, opts ...ObserveOption) *Observed {
	o := observeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.meter == nil {
		o.meter = telemetry.Meter()
	}
	if logger == nil {
		logger = slog.Default()
	}

	records, err := o.meter.Int64Counter(MetricRecords,
		metric.WithDescription("Records submitted to the store, by operation and outcome"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		logger.Warn("failed to create gateway counter", "error", err)
	}
	duration, err := o.meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Latency of gateway operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create gateway histogram", "error", err)
	}

	return &Observed{next: g, logger: logger, records: records, duration: duration}
}

// AppendHistory implements Gateway.
func (o *Observed) AppendHistory(ctx context.Context, records []record.History) error {
	return o.observe(ctx, OpAppendHistory, len(records), func(ctx context.Context) error {
		return o.next.AppendHistory(ctx, records)
	})
}

// UpsertSnapshots implements Gateway.
func (o *Observed) UpsertSnapshots(ctx context.Context, records []record.Snapshot) error {
	return o.observe(ctx, OpUpsertSnapshots, len(records), func(ctx context.Context) error {
		return o.next.UpsertSnapshots(ctx, records)
	})
}

func (o *Observed) observe(ctx context.Context, op string, n int, call func(context.Context) error) error {
	ctx, span := telemetry.StartClient(ctx, "gateway."+op)
	defer span.End()

	opAttr := attribute.String("sensorsim.gateway.op", op)
	span.SetAttributes(opAttr, attribute.Int("sensorsim.batch.size", n))

	start := time.Now()
	err := call(ctx)
	elapsed := time.Since(start)

	failed := Failed(err, n)
	if o.duration != nil {
		o.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(opAttr))
	}
	if o.records != nil {
		if n-failed > 0 {
			o.records.Add(ctx, int64(n-failed), metric.WithAttributes(opAttr, attribute.String("outcome", OutcomeStored)))
		}
		if failed > 0 {
			o.records.Add(ctx, int64(failed), metric.WithAttributes(opAttr, attribute.String("outcome", OutcomeFailed)))
		}
	}

	if err != nil {
		span.SetAttributes(attribute.Int("sensorsim.batch.failed", failed))
		telemetry.RecordError(ctx, err)
		o.logger.DebugContext(ctx, "gateway operation failed",
			"op", op, "records", n, "failed", failed, "partial", IsPartial(err),
			"duration", elapsed, "error", err)

		return err
	}

	telemetry.SetSuccess(ctx)

	return nil
}
