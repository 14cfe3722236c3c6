package mongostore

import (
	"time"

	"github.com/arloliu/sensorsim/record"
)

// historyDoc is one row of the history collection. The field names match the collections
// the dashboard already reads; _id is the synthetic record id so re-sent records collide.
type historyDoc struct {
	ID              string    `bson:"_id"`
	SensorID        string    `bson:"sensor_id"`
	Timestamp       time.Time `bson:"timestamp"`
	SensorType      string    `bson:"sensor_type"`
	Value           float64   `bson:"value"`
	Unit            string    `bson:"unit"`
	Role            string    `bson:"role"`
	Section         string    `bson:"wsection"`
	Asset           string    `bson:"asset,omitempty"`
	MeasurementKind string    `bson:"type,omitempty"`
}

type thresholdsDoc struct {
	Min float64 `bson:"min"`
	Max float64 `bson:"max"`
}

// snapshotDoc is the $set payload of a snapshot upsert, keyed by the unique sensor_id index.
type snapshotDoc struct {
	SensorID        string         `bson:"sensor_id"`
	Value           float64        `bson:"value"`
	Unit            string         `bson:"unit"`
	LastUpdated     time.Time      `bson:"last_updated"`
	Role            string         `bson:"role"`
	Section         string         `bson:"wsection"`
	SensorType      string         `bson:"sensor_type"`
	Asset           string         `bson:"asset,omitempty"`
	MeasurementKind string         `bson:"type,omitempty"`
	Thresholds      *thresholdsDoc `bson:"thresholds,omitempty"`
}

func toHistoryDoc(h record.History) historyDoc {
	return historyDoc{
		ID:              h.ID,
		SensorID:        h.SensorID,
		Timestamp:       h.Timestamp,
		SensorType:      h.SensorType,
		Value:           h.Value,
		Unit:            h.Unit,
		Role:            h.Role,
		Section:         h.Section,
		Asset:           h.Asset,
		MeasurementKind: h.MeasurementKind,
	}
}

func toSnapshotDoc(s record.Snapshot) snapshotDoc {
	doc := snapshotDoc{
		SensorID:        s.SensorID,
		Value:           s.Value,
		Unit:            s.Unit,
		LastUpdated:     s.LastUpdated,
		Role:            s.Role,
		Section:         s.Section,
		SensorType:      s.SensorType,
		Asset:           s.Asset,
		MeasurementKind: s.MeasurementKind,
	}
	if s.Thresholds != nil {
		doc.Thresholds = &thresholdsDoc{Min: s.Thresholds.Min, Max: s.Thresholds.Max}
	}

	return doc
}
