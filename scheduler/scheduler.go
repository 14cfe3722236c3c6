// Package scheduler drives the simulation: on every tick it draws one reading per scenario,
// builds the history and snapshot records, and hands both batches to a gateway.
//
// A tick is all-or-nothing per scenario and best-effort per batch. A failed batch is reported
// and logged, never fatal, and the next tick runs on schedule.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/sensorsim/gateway"
	"github.com/arloliu/sensorsim/generator"
	"github.com/arloliu/sensorsim/record"
	"github.com/arloliu/sensorsim/scenario"
	"github.com/arloliu/sensorsim/telemetry"
)

// Metric names recorded per tick.
const (
	MetricTicks    = "sensorsim.ticks"
	MetricSkipped  = "sensorsim.scenarios.skipped"
	MetricDuration = "sensorsim.tick.duration"
)

// ErrAlreadyRunning is returned by Run while another Run is active on the same Scheduler.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// Scheduler runs ticks against a fixed catalog.
type Scheduler struct {
	catalog *scenario.Catalog
	gen     *generator.Generator
	builder *record.Builder
	gw      gateway.Gateway

	interval time.Duration
	clock    Clock
	logger   *slog.Logger
	reporter func(Report)
	meter    metric.Meter

	ticks    metric.Int64Counter
	skipped  metric.Int64Counter
	duration metric.Float64Histogram

	// mu serializes ticks; the generator is not safe for concurrent use.
	mu      sync.Mutex
	seq     uint64
	running atomic.Bool
}

// New returns a Scheduler that ticks every DefaultInterval unless configured otherwise.
func New(catalog *scenario.Catalog, gen *generator.Generator, builder *record.Builder,
	gw gateway.Gateway, opts ...Option,
) *Scheduler {
	s := &Scheduler{
		catalog:  catalog,
		gen:      gen,
		builder:  builder,
		gw:       gw,
		interval: DefaultInterval,
		clock:    systemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meter == nil {
		s.meter = telemetry.Meter()
	}
	s.initMetrics()

	return s
}

func (s *Scheduler) initMetrics() {
	var err error
	s.ticks, err = s.meter.Int64Counter(MetricTicks,
		metric.WithDescription("Completed ticks by result."),
		metric.WithUnit("{tick}"))
	if err != nil {
		s.logger.Warn("failed to create tick counter", slog.Any("error", err))
	}
	s.skipped, err = s.meter.Int64Counter(MetricSkipped,
		metric.WithDescription("Scenarios skipped because no value could be generated."),
		metric.WithUnit("{scenario}"))
	if err != nil {
		s.logger.Warn("failed to create skipped counter", slog.Any("error", err))
	}
	s.duration, err = s.meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Wall time of one tick."),
		metric.WithUnit("s"))
	if err != nil {
		s.logger.Warn("failed to create tick duration histogram", slog.Any("error", err))
	}
}

// Interval returns the configured tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run ticks immediately and then once per interval, measured from the start of each tick,
// until ctx is canceled. A tick that overruns the interval is followed right away by the next.
//
// ctx is checked only between ticks. The tick in flight when ctx is canceled runs to
// completion with a context that is never canceled. Run returns nil once it stops.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.logger.Info("scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("scenarios", s.catalog.Len()))

	tickCtx := context.WithoutCancel(ctx)
	var n uint64
	for {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		s.Tick(tickCtx)
		n++

		wait := s.interval - time.Since(start)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	s.logger.Info("scheduler stopped", slog.Uint64("ticks", n))

	return nil
}

// Tick runs one cycle and returns its report. Concurrent calls run one after another.
//
// Every scenario shares the same tick time. A scenario whose value cannot be generated is
// skipped without affecting the others. The history and snapshot batches are submitted
// concurrently and their outcomes are reported separately.
func (s *Scheduler) Tick(ctx context.Context) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	s.seq++
	rep := Report{
		Seq:       s.seq,
		Tick:      s.clock.Now().UTC().Truncate(time.Millisecond),
		Scenarios: s.catalog.Len(),
	}

	ctx = telemetry.MustSetBaggage(ctx, telemetry.BaggageTickSeq, strconv.FormatUint(rep.Seq, 10))
	ctx = telemetry.MustSetBaggage(ctx, telemetry.BaggageTickTime, strconv.FormatInt(rep.Tick.UnixMilli(), 10))
	ctx, span := telemetry.StartInternal(ctx, "tick")
	defer span.End()

	history, snapshots := s.build(ctx, &rep)

	var g errgroup.Group
	g.Go(func() error {
		rep.History = s.submitHistory(ctx, history)
		return nil
	})
	g.Go(func() error {
		rep.Snapshots = s.submitSnapshots(ctx, snapshots)
		return nil
	})
	_ = g.Wait()

	rep.Duration = time.Since(started)

	telemetry.SetAttributes(ctx,
		attribute.Int64("sensorsim.tick.seq", int64(rep.Seq)),
		attribute.Int("sensorsim.tick.scenarios", rep.Scenarios),
		attribute.Int("sensorsim.tick.skipped", len(rep.Skipped)),
		attribute.Int("sensorsim.tick.history_failed", rep.History.Failed),
		attribute.Int("sensorsim.tick.snapshots_failed", rep.Snapshots.Failed),
	)
	if rep.OK() {
		telemetry.SetSuccess(ctx)
	} else {
		telemetry.RecordError(ctx, errors.Join(rep.History.Err, rep.Snapshots.Err, skipErr(rep.Skipped)))
	}

	s.record(ctx, rep)
	s.log(ctx, rep)
	if s.reporter != nil {
		s.reporter(rep)
	}

	return rep
}

func (s *Scheduler) build(ctx context.Context, rep *Report) ([]record.History, []record.Snapshot) {
	scenarios := s.catalog.All()
	history := make([]record.History, 0, len(scenarios))
	snapshots := make([]record.Snapshot, 0, len(scenarios))

	for _, sc := range scenarios {
		value, err := s.gen.Generate(sc.Distribution)
		if err != nil {
			rep.Skipped = append(rep.Skipped, Skip{SensorID: sc.SensorID, Err: err})
			s.logger.WarnContext(ctx, "scenario skipped",
				slog.String("scenario", sc.Label()),
				slog.String("sensor_id", sc.SensorID),
				slog.Any("error", err))

			continue
		}
		h, snap := s.builder.Build(sc, value, rep.Tick)
		history = append(history, h)
		snapshots = append(snapshots, snap)
	}

	return history, snapshots
}

func (s *Scheduler) submitHistory(ctx context.Context, records []record.History) BatchOutcome {
	if len(records) == 0 {
		return BatchOutcome{}
	}

	return outcomeOf(s.gw.AppendHistory(ctx, records), record.HistoryIDs(records))
}

func (s *Scheduler) submitSnapshots(ctx context.Context, records []record.Snapshot) BatchOutcome {
	if len(records) == 0 {
		return BatchOutcome{}
	}

	return outcomeOf(s.gw.UpsertSnapshots(ctx, records), record.SnapshotIDs(records))
}

func (s *Scheduler) record(ctx context.Context, rep Report) {
	result := "ok"
	if !rep.OK() {
		result = "degraded"
	}
	if s.ticks != nil {
		s.ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
	if s.skipped != nil && len(rep.Skipped) > 0 {
		s.skipped.Add(ctx, int64(len(rep.Skipped)))
	}
	if s.duration != nil {
		s.duration.Record(ctx, rep.Duration.Seconds())
	}
}

func (s *Scheduler) log(ctx context.Context, rep Report) {
	level := slog.LevelInfo
	if !rep.OK() {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.Uint64("seq", rep.Seq),
		slog.Time("tick", rep.Tick),
		slog.Int("scenarios", rep.Scenarios),
		slog.Int("skipped", len(rep.Skipped)),
		batchAttr("history", rep.History),
		batchAttr("snapshots", rep.Snapshots),
		slog.Duration("duration", rep.Duration),
	}
	if id := telemetry.TraceID(ctx); id != "" {
		attrs = append(attrs, slog.String("trace_id", id))
	}

	s.logger.LogAttrs(ctx, level, "tick completed", attrs...)
}

func batchAttr(name string, o BatchOutcome) slog.Attr {
	attrs := []any{
		slog.Int("submitted", o.Submitted),
		slog.Int("stored", o.Succeeded),
		slog.Int("failed", o.Failed),
	}
	if o.Err != nil {
		attrs = append(attrs, slog.Any("error", o.Err))
	}

	return slog.Group(name, attrs...)
}

func skipErr(skipped []Skip) error {
	errs := make([]error, 0, len(skipped))
	for _, sk := range skipped {
		errs = append(errs, sk.Err)
	}

	return errors.Join(errs...)
}
