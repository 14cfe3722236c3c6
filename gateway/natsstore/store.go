// Package natsstore implements gateway.Gateway on NATS JetStream.
//
// History records are published to "<prefix>.history.<sensor id>" on a stream with a
// duplicate window; the record id is the Nats-Msg-Id, so a re-sent record inside the window
// is acknowledged as a duplicate and not stored twice. Snapshots live in a key-value bucket
// keyed by sensor id and are written with optimistic revisions; an older snapshot is skipped.
package natsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arloliu/sensorsim/gateway"
	"github.com/arloliu/sensorsim/record"
	"github.com/arloliu/sensorsim/telemetry"
)

// Config selects the server, subjects, stream and bucket.
type Config struct {
	URL           string        `yaml:"url" default:"nats://localhost:4222"`
	SubjectPrefix string        `yaml:"subjectPrefix" default:"sensors"`
	Stream        string        `yaml:"stream" default:"SENSOR_HISTORY"`
	Bucket        string        `yaml:"bucket" default:"sensor_current_data"`
	Duplicates    time.Duration `yaml:"duplicates" default:"10m"`
}

// maxUpdateAttempts bounds the read-compare-write loop of one snapshot.
const maxUpdateAttempts = 3

// streamPublisher is the part of jetstream.JetStream used for history.
type streamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// kvStore is the part of jetstream.KeyValue used for snapshots.
type kvStore interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Create(ctx context.Context, key string, value []byte, opts ...jetstream.KVCreateOpt) (uint64, error)
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
}

// Store is a NATS JetStream gateway.
type Store struct {
	conn *nats.Conn
	js   streamPublisher
	kv   kvStore
	cfg  Config
	opts options
}

var _ gateway.Gateway = (*Store)(nil)

// Open connects to cfg.URL and creates or updates the history stream and snapshot bucket.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("sensorsim"))
	if err != nil {
		return nil, fmt.Errorf("natsstore: connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("natsstore: jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.SubjectPrefix + ".history.>"},
		Duplicates: cfg.Duplicates,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("natsstore: create stream %s: %w", cfg.Stream, err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "latest value per sensor",
		History:     1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("natsstore: create bucket %s: %w", cfg.Bucket, err)
	}

	s := newStore(js, kv, cfg, opts...)
	s.conn = conn
	s.opts.logger.Info("connected to nats", "url", conn.ConnectedUrlRedacted(),
		"stream", cfg.Stream, "bucket", cfg.Bucket)

	return s, nil
}

func newStore(js streamPublisher, kv kvStore, cfg Config, opts ...Option) *Store {
	return &Store{js: js, kv: kv, cfg: cfg, opts: applyOptions(opts)}
}

// Close drains the connection.
func (s *Store) Close(context.Context) error {
	if s.conn == nil {
		return nil
	}

	return s.conn.Drain()
}

func (s *Store) historySubject(sensorID string) string {
	return s.cfg.SubjectPrefix + ".history." + sensorID
}

// AppendHistory implements gateway.Gateway.
func (s *Store) AppendHistory(ctx context.Context, records []record.History) error {
	if len(records) == 0 {
		return nil
	}

	var (
		failed []string
		causes []error
	)
	for _, r := range records {
		if err := s.publish(ctx, r); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("natsstore: %s: %w", gateway.OpAppendHistory, err)
			}
			failed = append(failed, r.ID)
			causes = append(causes, fmt.Errorf("%s: %w", r.ID, err))
		}
	}

	return outcome(gateway.OpAppendHistory, len(records), failed, causes)
}

func (s *Store) publish(ctx context.Context, r record.History) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	subject := s.historySubject(r.SensorID)
	ctx, span := telemetry.StartProducer(ctx, telemetry.NameMessaging(opPublish, subject),
		trace.WithAttributes(publishAttributes(subject, r.ID, len(data))...),
	)
	defer span.End()

	msg := &nats.Msg{Subject: subject, Data: data, Header: make(nats.Header)}
	s.opts.prop.Inject(ctx, headerCarrier(msg.Header))

	ack, err := s.js.PublishMsg(ctx, msg, jetstream.WithMsgID(r.ID), jetstream.WithExpectStream(s.cfg.Stream))
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	if ack != nil {
		span.SetAttributes(
			attribute.String(attrNATSStreamSequence, strconv.FormatUint(ack.Sequence, 10)),
			attribute.Bool(attrNATSDuplicate, ack.Duplicate),
		)
	}

	return nil
}

// UpsertSnapshots implements gateway.Gateway.
func (s *Store) UpsertSnapshots(ctx context.Context, records []record.Snapshot) error {
	if len(records) == 0 {
		return nil
	}

	var (
		failed []string
		causes []error
	)
	for _, r := range records {
		if err := s.put(ctx, r); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("natsstore: %s: %w", gateway.OpUpsertSnapshots, err)
			}
			failed = append(failed, r.SensorID)
			causes = append(causes, fmt.Errorf("%s: %w", r.SensorID, err))
		}
	}

	return outcome(gateway.OpUpsertSnapshots, len(records), failed, causes)
}

// put writes r unless the bucket already holds a newer snapshot for the sensor.
// A revision conflict means another writer got in between; the entry is read again.
func (s *Store) put(ctx context.Context, r record.Snapshot) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	ctx, span := telemetry.StartClient(ctx, telemetry.NameDB(opPut, s.cfg.Bucket),
		trace.WithAttributes(kvAttributes(s.cfg.Bucket, r.SensorID, len(data))...),
	)
	defer span.End()

	for range maxUpdateAttempts {
		rev, err := s.tryPut(ctx, r, data)
		switch {
		case err == nil:
			span.SetAttributes(attribute.Int64(attrNATSRevision, int64(rev)))
			return nil
		case errors.Is(err, errStale):
			telemetry.AddEvent(ctx, "snapshot.stale")
			return nil
		case errors.Is(err, jetstream.ErrKeyExists):
			continue
		default:
			telemetry.RecordError(ctx, err)
			return err
		}
	}

	err = fmt.Errorf("revision conflict after %d attempts", maxUpdateAttempts)
	telemetry.RecordError(ctx, err)

	return err
}

var errStale = errors.New("stored snapshot is newer")

func (s *Store) tryPut(ctx context.Context, r record.Snapshot, data []byte) (uint64, error) {
	entry, err := s.kv.Get(ctx, r.SensorID)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return s.kv.Create(ctx, r.SensorID, data)
	}
	if err != nil {
		return 0, err
	}

	var cur record.Snapshot
	if err := json.Unmarshal(entry.Value(), &cur); err == nil && cur.LastUpdated.After(r.LastUpdated) {
		return 0, errStale
	}

	return s.kv.Update(ctx, r.SensorID, data, entry.Revision())
}

// outcome turns per-record failures into the gateway result for a batch of n records.
func outcome(op string, n int, failed []string, causes []error) error {
	if len(failed) == n {
		return fmt.Errorf("natsstore: %s: %w", op, errors.Join(causes...))
	}

	return gateway.NewPartialFailure(op, failed, causes...)
}
