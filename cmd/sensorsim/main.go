// Package main provides the sensorsim CLI, a simulator that writes synthetic sensor readings
// to MongoDB, PostgreSQL or NATS JetStream on a fixed schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/log"

	"github.com/arloliu/sensorsim/generator"
	"github.com/arloliu/sensorsim/record"
	"github.com/arloliu/sensorsim/scenario"
	"github.com/arloliu/sensorsim/scheduler"
	"github.com/arloliu/sensorsim/telemetry"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	mode, rest := args[0], args[1:]
	switch mode {
	case "run":
		return withConfig(mode, rest, stderr, func(cfg *Config) int {
			return runDaemon(ctx, cfg, stderr)
		})
	case "once":
		return withConfig(mode, rest, stderr, func(cfg *Config) int {
			return runOnce(ctx, cfg, stdout, stderr)
		})
	case "validate":
		return withConfig(mode, rest, stderr, func(cfg *Config) int {
			return validateCatalog(cfg, stdout, stderr)
		})
	case "list":
		return withConfig(mode, rest, stderr, func(cfg *Config) int {
			return listCatalog(cfg, stdout, stderr)
		})
	case "-h", "--help", "help":
		printUsage(stdout)
		return exitOK
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown mode: %s\n", mode)
		printUsage(stderr)

		return exitUsage
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `sensorsim - sensor fleet simulator

Usage:
  sensorsim <mode> [flags]

Modes:
  run       Write one reading per sensor every interval until interrupted
  once      Run a single tick and exit
  validate  Check the catalog and exit
  list      Print the catalog grouped by role, section and asset

Flags:
  --config           YAML or JSON config file
  --store            mongo, postgres, nats or memory (default: mongo)
  --store-address    Store URI, DSN or server URL
  --store-namespace  Database, schema or subject prefix
  --store-history    History collection, table or stream
  --store-snapshots  Snapshot collection, table or KV bucket
  --interval         Tick period (default: 10s)
  --catalog          Catalog file (default: embedded)
  --seed             Random seed (default: time-based)
  --retry-attempts   Submissions per batch including the first (default: 3)
  --log-level        debug, info, warn or error (default: info)
  --log-format       text or json (default: text)

Environment Variables:
  SENSORSIM_CONFIG              Config file
  SENSORSIM_STORE               Store kind
  SENSORSIM_STORE_ADDRESS       Store URI, DSN or server URL
  SENSORSIM_INTERVAL            Tick period
  SENSORSIM_CATALOG             Catalog file
  SENSORSIM_TELEMETRY_ENABLED   Export traces, metrics and logs over OTLP
  OTEL_EXPORTER_OTLP_ENDPOINT   OTLP endpoint

Exit codes:
  0  clean shutdown
  1  invalid catalog, startup failure, or a failed tick in once mode
  2  usage error

Examples:
  sensorsim run --store mongo --store-address mongodb://localhost:27017/
  sensorsim once --store memory --seed 42 --log-format json
  sensorsim validate --catalog ./catalog.yaml
  sensorsim list`)
}

func withConfig(mode string, args []string, stderr io.Writer, fn func(*Config) int) int {
	cfg, err := parseConfig(mode, args, stderr)
	switch {
	case err == nil:
		return fn(cfg)
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	default:
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
}

// app is everything a tick needs, built from one Config.
type app struct {
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
	close     func(context.Context) error
}

// setup loads the catalog, starts telemetry and connects to the store. The catalog is
// validated before anything is connected.
func setup(ctx context.Context, cfg *Config, stderr io.Writer) (*app, error) {
	catalog, err := scenario.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	providers, err := telemetry.Setup(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	var lp log.LoggerProvider
	if providers.LoggerProvider != nil {
		lp = providers.LoggerProvider
	}
	logger := newLogger(cfg.Log, stderr, lp)
	slog.SetDefault(logger)

	gw, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(ctx))
	}

	s := scheduler.New(catalog,
		generator.NewSeeded(cfg.Seed),
		record.NewBuilder(record.UUIDv7{}),
		gw,
		scheduler.WithInterval(cfg.Interval),
		scheduler.WithLogger(logger),
	)

	return &app{
		logger:    logger,
		scheduler: s,
		close: func(ctx context.Context) error {
			return errors.Join(closeStore(ctx), providers.Shutdown(ctx))
		},
	}, nil
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.close(ctx); err != nil {
		a.logger.Error("shutdown failed", slog.Any("error", err))
	}
}

func runDaemon(ctx context.Context, cfg *Config, stderr io.Writer) int {
	a, err := setup(ctx, cfg, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.shutdown()

	a.logger.Info("sensorsim starting",
		slog.String("store", cfg.Store.Kind),
		slog.Duration("interval", cfg.Interval))

	if err := a.scheduler.Run(ctx); err != nil {
		a.logger.Error("scheduler failed", slog.Any("error", err))
		return exitFailure
	}

	return exitOK
}

func runOnce(ctx context.Context, cfg *Config, stdout, stderr io.Writer) int {
	a, err := setup(ctx, cfg, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.shutdown()

	rep := a.scheduler.Tick(context.WithoutCancel(ctx))
	printReport(stdout, rep)
	if !rep.OK() {
		return exitFailure
	}

	return exitOK
}

func printReport(w io.Writer, rep scheduler.Report) {
	_, _ = fmt.Fprintf(w, "tick %d at %s: %d scenario(s), %d skipped\n",
		rep.Seq, rep.Tick.Format(time.RFC3339Nano), rep.Scenarios, len(rep.Skipped))
	for _, sk := range rep.Skipped {
		_, _ = fmt.Fprintf(w, "  skipped %s: %v\n", sk.SensorID, sk.Err)
	}
	printOutcome(w, "history", rep.History)
	printOutcome(w, "snapshots", rep.Snapshots)
}

func printOutcome(w io.Writer, name string, o scheduler.BatchOutcome) {
	_, _ = fmt.Fprintf(w, "  %-9s %d/%d stored", name, o.Succeeded, o.Submitted)
	if o.Err != nil {
		_, _ = fmt.Fprintf(w, ", %d failed: %v", o.Failed, o.Err)
	}
	_, _ = fmt.Fprintln(w)
}

func validateCatalog(cfg *Config, stdout, stderr io.Writer) int {
	catalog, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	if errs := catalog.Validate(); len(errs) > 0 {
		for _, e := range errs {
			_, _ = fmt.Fprintf(stderr, "  %v\n", e)
		}
		_, _ = fmt.Fprintf(stderr, "catalog is invalid: %d problem(s)\n", len(errs))

		return exitFailure
	}

	_, _ = fmt.Fprintf(stdout, "catalog OK: %d scenario(s)\n", catalog.Len())

	return exitOK
}

func listCatalog(cfg *Config, stdout, stderr io.Writer) int {
	catalog, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	for _, role := range catalog.Hierarchy() {
		_, _ = fmt.Fprintf(stdout, "%s\n", role.Name)
		for _, section := range role.Sections {
			_, _ = fmt.Fprintf(stdout, "  %s\n", section.Name)
			for _, asset := range section.Assets {
				name := asset.Name
				if name == "" {
					name = "(no asset)"
				}
				_, _ = fmt.Fprintf(stdout, "    %s\n", name)
				for _, s := range asset.Scenarios {
					_, _ = fmt.Fprintf(stdout, "      %-8s %-24s %s\n", s.SensorID, s.Label(), describe(s.Distribution))
				}
			}
		}
	}

	return exitOK
}

// loadCatalog loads without validating, so validate can report every problem.
func loadCatalog(path string) (*scenario.Catalog, error) {
	if path == "" {
		return scenario.Default()
	}

	return scenario.LoadFile(path)
}

func describe(d scenario.Distribution) string {
	var s string
	switch d.Kind {
	case scenario.KindGaussian:
		s = fmt.Sprintf("gaussian(mean=%g, stddev=%g) %s", d.Mean, d.StdDev, d.Unit)
	case scenario.KindUniform:
		s = fmt.Sprintf("uniform(%g..%g) %s", d.Min, d.Max, d.Unit)
	default:
		s = string(d.Kind)
	}
	if d.Thresholds != nil {
		s += fmt.Sprintf(" thresholds=[%g, %g]", d.Thresholds.Min, d.Thresholds.Max)
	}

	return s
}
