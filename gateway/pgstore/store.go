// Package pgstore implements gateway.Gateway on PostgreSQL through a pgx connection pool.
//
// Each batch is first written with one multi-row statement. If PostgreSQL rejects it, the
// batch is replayed record by record so the failing rows can be reported in a
// gateway.PartialFailure while the rest are stored. History inserts ignore existing ids;
// snapshot upserts only replace rows that are not newer than the incoming record.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the dialect
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arloliu/sensorsim/gateway"
	"github.com/arloliu/sensorsim/record"
	"github.com/arloliu/sensorsim/telemetry"
)

const dialectPostgres = "postgres"

// Config selects the database and tables.
type Config struct {
	DSN       string `yaml:"dsn" default:"postgres://localhost:5432/newdb"`
	Schema    string `yaml:"schema" default:"public"`
	History   string `yaml:"history" default:"sensor_data_histories"`
	Snapshots string `yaml:"snapshots" default:"sensor_current_data"`
}

// execer is the part of *pgxpool.Pool the store writes through.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a PostgreSQL gateway.
type Store struct {
	pool    *pgxpool.Pool
	db      execer
	cfg     Config
	dialect goqu.DialectWrapper
	logger  *slog.Logger
}

var _ gateway.Gateway = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates a pool for cfg.DSN, checks the connection and creates missing tables.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}

	s := newStore(pool, cfg, opts...)
	s.pool = pool

	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s.logger.Info("connected to postgres", "schema", cfg.Schema,
		"history", cfg.History, "snapshots", cfg.Snapshots)

	return s, nil
}

func newStore(db execer, cfg Config, opts ...Option) *Store {
	s := &Store{db: db, cfg: cfg, dialect: goqu.Dialect(dialectPostgres), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// EnsureSchema creates the schema and tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.cfg) {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgstore: ensure schema: %w", err)
		}
	}

	return nil
}

// Close closes the pool.
func (s *Store) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}

	return nil
}

// AppendHistory implements gateway.Gateway.
func (s *Store) AppendHistory(ctx context.Context, records []record.History) error {
	ctx, span := telemetry.StartClient(ctx, telemetry.NameDB("INSERT", s.cfg.History))
	defer span.End()

	err := writeBatch(ctx, s, gateway.OpAppendHistory, records,
		func(h record.History) string { return h.ID },
		s.insertHistory,
	)
	telemetry.RecordError(ctx, err)

	return err
}

// UpsertSnapshots implements gateway.Gateway.
func (s *Store) UpsertSnapshots(ctx context.Context, records []record.Snapshot) error {
	ctx, span := telemetry.StartClient(ctx, telemetry.NameDB("UPSERT", s.cfg.Snapshots))
	defer span.End()

	err := writeBatch(ctx, s, gateway.OpUpsertSnapshots, records,
		func(r record.Snapshot) string { return r.SensorID },
		s.upsertSnapshots,
	)
	telemetry.RecordError(ctx, err)

	return err
}

func (s *Store) table(name string) exp.IdentifierExpression {
	if s.cfg.Schema == "" {
		return goqu.T(name)
	}

	return goqu.S(s.cfg.Schema).Table(name)
}

func (s *Store) insertHistory(records []record.History) (string, []any, error) {
	rows := make([]any, len(records))
	for i, h := range records {
		rows[i] = goqu.Record{
			"id":               h.ID,
			"sensor_id":        h.SensorID,
			"sensor_type":      h.SensorType,
			"role":             h.Role,
			"wsection":         h.Section,
			"asset":            nullable(h.Asset),
			"measurement_kind": nullable(h.MeasurementKind),
			"value":            h.Value,
			"unit":             h.Unit,
			"ts":               h.Timestamp,
		}
	}

	return s.dialect.Insert(s.table(s.cfg.History)).
		Prepared(true).
		Rows(rows...).
		OnConflict(goqu.DoNothing()).
		ToSQL()
}

func (s *Store) upsertSnapshots(records []record.Snapshot) (string, []any, error) {
	rows := make([]any, len(records))
	for i, r := range records {
		var lo, hi *float64
		if r.Thresholds != nil {
			lo, hi = &r.Thresholds.Min, &r.Thresholds.Max
		}
		rows[i] = goqu.Record{
			"sensor_id":        r.SensorID,
			"value":            r.Value,
			"unit":             r.Unit,
			"sensor_type":      r.SensorType,
			"role":             r.Role,
			"wsection":         r.Section,
			"asset":            nullable(r.Asset),
			"measurement_kind": nullable(r.MeasurementKind),
			"threshold_min":    lo,
			"threshold_max":    hi,
			"last_updated":     r.LastUpdated,
		}
	}

	update := goqu.Record{}
	for _, col := range []string{
		"value", "unit", "sensor_type", "role", "wsection", "asset",
		"measurement_kind", "threshold_min", "threshold_max", "last_updated",
	} {
		update[col] = goqu.I("excluded." + col)
	}

	return s.dialect.Insert(s.table(s.cfg.Snapshots)).
		Prepared(true).
		Rows(rows...).
		OnConflict(goqu.DoUpdate("sensor_id", update).
			Where(goqu.I(s.cfg.Snapshots + ".last_updated").Lte(goqu.I("excluded.last_updated")))).
		ToSQL()
}

// writeBatch runs build over the whole batch, falling back to one statement per record when
// the server rejects the batch statement.
func writeBatch[T any](
	ctx context.Context,
	s *Store,
	op string,
	records []T,
	id func(T) string,
	build func([]T) (string, []any, error),
) error {
	if len(records) == 0 {
		return nil
	}

	err := execBatch(ctx, s.db, build, records)
	if err == nil {
		return nil
	}
	if !rowLevel(err) {
		return fmt.Errorf("pgstore: %s: %w", op, err)
	}

	s.logger.DebugContext(ctx, "batch statement rejected, retrying per record",
		"op", op, "records", len(records), "error", err)

	var (
		failed []string
		causes []error
	)
	for _, r := range records {
		if err := execBatch(ctx, s.db, build, []T{r}); err != nil {
			if !rowLevel(err) {
				return fmt.Errorf("pgstore: %s: %w", op, err)
			}
			failed = append(failed, id(r))
			causes = append(causes, fmt.Errorf("%s: %w", id(r), err))
		}
	}
	if len(failed) == len(records) {
		return fmt.Errorf("pgstore: %s: %w", op, errors.Join(causes...))
	}

	return gateway.NewPartialFailure(op, failed, causes...)
}

func execBatch[T any](ctx context.Context, db execer, build func([]T) (string, []any, error), records []T) error {
	sql, args, err := build(records)
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}
	_, err = db.Exec(ctx, sql, args...)

	return err
}

// rowLevel reports whether err came from PostgreSQL rejecting the data, as opposed to a
// connection or context problem that per-record statements would not fix.
func rowLevel(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
