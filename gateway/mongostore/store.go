// Package mongostore implements gateway.Gateway on MongoDB, the simulator's default store.
//
// History records are inserted with their synthetic id as _id, so a re-sent record fails
// with a duplicate key error that is treated as already stored. Snapshots are upserted by
// sensor_id with a last_updated guard, so an older record never overwrites a newer one.
// Both operations use unordered bulk writes: one bad record does not stop the others.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/arloliu/sensorsim/gateway"
	"github.com/arloliu/sensorsim/record"
	"github.com/arloliu/sensorsim/telemetry"
)

const duplicateKey = 11000

// Config selects the database and collections.
type Config struct {
	URI       string `yaml:"uri" default:"mongodb://localhost:27017/"`
	Database  string `yaml:"database" default:"newdb"`
	History   string `yaml:"history" default:"sensor_data_histories"`
	Snapshots string `yaml:"snapshots" default:"sensor_current_data"`
}

// bulkWriter is the part of *mongo.Collection the store writes through.
type bulkWriter interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...options.Lister[options.BulkWriteOptions]) (*mongo.BulkWriteResult, error)
}

// Store is a MongoDB gateway.
type Store struct {
	client    *mongo.Client
	history   bulkWriter
	snapshots bulkWriter
	names     Config
	logger    *slog.Logger
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

// Open connects to cfg.URI, checks the connection and creates the indexes the store relies on.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongostore: ping %s: %w", cfg.Database, err)
	}

	db := client.Database(cfg.Database)
	history := db.Collection(cfg.History)
	snapshots := db.Collection(cfg.Snapshots)

	s := newStore(history, snapshots, cfg, opts...)
	s.client = client

	if err := ensureIndexes(ctx, history, snapshots); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	s.logger.Info("connected to mongodb", "database", cfg.Database,
		"history", cfg.History, "snapshots", cfg.Snapshots)

	return s, nil
}

func newStore(history, snapshots bulkWriter, cfg Config, opts ...Option) *Store {
	s := &Store{history: history, snapshots: snapshots, names: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ensureIndexes creates the history lookup index and the unique snapshot key.
// History idempotence comes from _id.
func ensureIndexes(ctx context.Context, history, snapshots *mongo.Collection) error {
	_, err := history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "sensor_id", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongostore: create history index: %w", err)
	}

	_, err = snapshots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sensor_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongostore: create snapshot index: %w", err)
	}

	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	return s.client.Disconnect(ctx)
}

// AppendHistory implements gateway.Gateway.
func (s *Store) AppendHistory(ctx context.Context, records []record.History) error {
	if len(records) == 0 {
		return nil
	}

	ctx, span := telemetry.StartClient(ctx, telemetry.NameDB("insert", s.names.History))
	defer span.End()

	models := make([]mongo.WriteModel, len(records))
	for i, r := range records {
		models[i] = mongo.NewInsertOneModel().SetDocument(toHistoryDoc(r))
	}

	_, err := s.history.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	err = classify(gateway.OpAppendHistory, err, record.HistoryIDs(records))
	telemetry.RecordError(ctx, err)

	return err
}

// UpsertSnapshots implements gateway.Gateway.
func (s *Store) UpsertSnapshots(ctx context.Context, records []record.Snapshot) error {
	if len(records) == 0 {
		return nil
	}

	ctx, span := telemetry.StartClient(ctx, telemetry.NameDB("update", s.names.Snapshots))
	defer span.End()

	models := make([]mongo.WriteModel, len(records))
	for i, r := range records {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(snapshotFilter(r)).
			SetUpdate(bson.D{{Key: "$set", Value: toSnapshotDoc(r)}}).
			SetUpsert(true)
	}

	_, err := s.snapshots.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	err = classify(gateway.OpUpsertSnapshots, err, record.SnapshotIDs(records))
	telemetry.RecordError(ctx, err)

	return err
}

// snapshotFilter matches the sensor's document only when it is not newer than r.
// When it is newer the upsert tries to insert a second document for the sensor and the
// unique sensor_id index rejects it with a duplicate key error, which classify treats as stored.
func snapshotFilter(r record.Snapshot) bson.D {
	return bson.D{
		{Key: "sensor_id", Value: r.SensorID},
		{Key: "last_updated", Value: bson.D{{Key: "$lte", Value: r.LastUpdated}}},
	}
}

// classify maps a bulk write error onto the gateway outcomes. ids[i] is the id of model i.
func classify(op string, err error, ids []string) error {
	if err == nil {
		return nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return fmt.Errorf("mongostore: %s: %w", op, err)
	}

	var (
		failed []string
		causes []error
	)
	for _, we := range bwe.WriteErrors {
		if we.Code == duplicateKey {
			continue
		}
		if we.Index < 0 || we.Index >= len(ids) {
			return fmt.Errorf("mongostore: %s: write error for unknown model %d: %w", op, we.Index, err)
		}
		failed = append(failed, ids[we.Index])
		causes = append(causes, fmt.Errorf("%s: code %d: %s", ids[we.Index], we.Code, we.Message))
	}

	return gateway.NewPartialFailure(op, failed, causes...)
}
