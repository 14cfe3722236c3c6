package mongostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/arloliu/sensorsim/gateway"
	"github.com/arloliu/sensorsim/record"
	"github.com/arloliu/sensorsim/scenario"
)

type fakeCollection struct {
	models [][]mongo.WriteModel
	err    error
}

func (f *fakeCollection) BulkWrite(_ context.Context, models []mongo.WriteModel, _ ...options.Lister[options.BulkWriteOptions]) (*mongo.BulkWriteResult, error) {
	f.models = append(f.models, models)
	if f.err != nil {
		return nil, f.err
	}

	return &mongo.BulkWriteResult{Acknowledged: true}, nil
}

var tick = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func histories() []record.History {
	return []record.History{
		{ID: "h-1", SensorID: "SNSR-001", SensorType: "Temperature sensor", Role: "engineer", Section: "Workshop 2", Asset: "Engine 1", MeasurementKind: "temperature", Value: 29.5, Unit: "C", Timestamp: tick},
		{ID: "h-2", SensorID: "SNSR-022", SensorType: "Light sensor", Role: "scientist", Section: "Greenhouse", Value: 80000, Unit: "lux", Timestamp: tick},
		{ID: "h-3", SensorID: "SNSR-010", Value: 45, Unit: "%", Timestamp: tick},
	}
}

func snapshots() []record.Snapshot {
	return []record.Snapshot{
		{SensorID: "SNSR-002", Value: 3.01, Unit: "Bar", LastUpdated: tick, Thresholds: &scenario.Thresholds{Min: 2.5, Max: 4}},
		{SensorID: "SNSR-004", Value: 0.8, Unit: "mm/s", LastUpdated: tick},
	}
}

func newTestStore() (*Store, *fakeCollection, *fakeCollection) {
	h, s := &fakeCollection{}, &fakeCollection{}
	return newStore(h, s, Config{History: "sensor_data_histories", Snapshots: "sensor_current_data"}), h, s
}

func TestAppendHistory_InsertsEveryRecordByID(t *testing.T) {
	store, h, _ := newTestStore()

	require.NoError(t, store.AppendHistory(context.Background(), histories()))

	require.Len(t, h.models, 1)
	require.Len(t, h.models[0], 3)
	insert, ok := h.models[0][0].(*mongo.InsertOneModel)
	require.True(t, ok)

	doc, ok := insert.Document.(historyDoc)
	require.True(t, ok)
	assert.Equal(t, "h-1", doc.ID)
	assert.Equal(t, "Workshop 2", doc.Section)
	assert.Equal(t, "temperature", doc.MeasurementKind)
}

func TestAppendHistory_EmptyBatch(t *testing.T) {
	store, h, _ := newTestStore()

	require.NoError(t, store.AppendHistory(context.Background(), nil))
	assert.Empty(t, h.models)
}

func TestHistoryDoc_OptionalFieldsOmitted(t *testing.T) {
	raw, err := bson.Marshal(toHistoryDoc(histories()[1]))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "h-2", m["_id"])
	assert.Equal(t, "Greenhouse", m["wsection"])
	assert.NotContains(t, m, "asset")
	assert.NotContains(t, m, "type")
}

func TestUpsertSnapshots_GuardedUpsert(t *testing.T) {
	store, _, s := newTestStore()

	require.NoError(t, store.UpsertSnapshots(context.Background(), snapshots()))

	require.Len(t, s.models, 1)
	update, ok := s.models[0][0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	require.NotNil(t, update.Upsert)
	assert.True(t, *update.Upsert)
	assert.Equal(t, bson.D{
		{Key: "sensor_id", Value: "SNSR-002"},
		{Key: "last_updated", Value: bson.D{{Key: "$lte", Value: tick}}},
	}, update.Filter)

	set, ok := update.Update.(bson.D)
	require.True(t, ok)
	doc, ok := set[0].Value.(snapshotDoc)
	require.True(t, ok)
	assert.Equal(t, &thresholdsDoc{Min: 2.5, Max: 4}, doc.Thresholds)
}

func TestClassify(t *testing.T) {
	ids := []string{"a", "b", "c"}
	writeErr := func(index, code int) mongo.BulkWriteError {
		return mongo.BulkWriteError{WriteError: mongo.WriteError{Index: index, Code: code, Message: "boom"}}
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, classify(gateway.OpAppendHistory, nil, ids))
	})

	t.Run("duplicates are stored", func(t *testing.T) {
		err := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{writeErr(0, duplicateKey), writeErr(2, duplicateKey)}}
		assert.NoError(t, classify(gateway.OpAppendHistory, err, ids))
	})

	t.Run("partial", func(t *testing.T) {
		err := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{writeErr(0, duplicateKey), writeErr(1, 121)}}
		got := classify(gateway.OpUpsertSnapshots, err, ids)

		failed, ok := gateway.FailedIDs(got)
		require.True(t, ok)
		assert.Equal(t, []string{"b"}, failed)
		assert.Contains(t, got.Error(), "code 121")
	})

	t.Run("write concern is a failure", func(t *testing.T) {
		err := mongo.BulkWriteException{WriteConcernError: &mongo.WriteConcernError{Code: 64}}
		got := classify(gateway.OpAppendHistory, err, ids)

		require.Error(t, got)
		assert.False(t, gateway.IsPartial(got))
	})

	t.Run("transport error is a failure", func(t *testing.T) {
		down := errors.New("server selection timeout")
		got := classify(gateway.OpAppendHistory, down, ids)

		require.ErrorIs(t, got, down)
		assert.False(t, gateway.IsPartial(got))
	})
}

func TestUpsertSnapshots_PartialFailure(t *testing.T) {
	store, _, s := newTestStore()
	s.err = mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{
		{WriteError: mongo.WriteError{Index: 1, Code: 2, Message: "bad value"}},
	}}

	err := store.UpsertSnapshots(context.Background(), snapshots())

	failed, ok := gateway.FailedIDs(err)
	require.True(t, ok)
	assert.Equal(t, []string{"SNSR-004"}, failed)
}

func TestClose_WithoutClient(t *testing.T) {
	store, _, _ := newTestStore()
	assert.NoError(t, store.Close(context.Background()))
}
