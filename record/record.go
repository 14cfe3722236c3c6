// Package record builds the history and snapshot records persisted for each reading.
package record

import (
	"time"

	"github.com/arloliu/sensorsim/scenario"
)

// History is one immutable, append-only reading.
// ID is the deduplication key for retried appends.
type History struct {
	ID              string    `json:"id"`
	SensorID        string    `json:"sensorId"`
	SensorType      string    `json:"sensorType"`
	Role            string    `json:"role"`
	Section         string    `json:"section"`
	Asset           string    `json:"asset,omitempty"`
	MeasurementKind string    `json:"measurementKind,omitempty"`
	Value           float64   `json:"value"`
	Unit            string    `json:"unit"`
	Timestamp       time.Time `json:"timestamp"`
}

// Snapshot is the latest known reading of a sensor, keyed by SensorID.
type Snapshot struct {
	SensorID        string               `json:"sensorId"`
	Value           float64              `json:"value"`
	Unit            string               `json:"unit"`
	SensorType      string               `json:"sensorType"`
	Role            string               `json:"role"`
	Section         string               `json:"section"`
	Asset           string               `json:"asset,omitempty"`
	MeasurementKind string               `json:"measurementKind,omitempty"`
	Thresholds      *scenario.Thresholds `json:"thresholds,omitempty"`
	LastUpdated     time.Time            `json:"lastUpdated"`
}

// Builder turns generated values into records.
type Builder struct {
	ids IDGenerator
}

// NewBuilder creates a Builder that stamps history records with ids from gen.
// A nil gen falls back to UUIDv7.
func NewBuilder(gen IDGenerator) *Builder {
	if gen == nil {
		gen = UUIDv7{}
	}

	return &Builder{ids: gen}
}

// Build creates the history and snapshot records for one reading.
// Context fields are copied from s, so later catalog changes never reach stored records.
// Identical inputs give identical records except for History.ID.
func (b *Builder) Build(s scenario.Scenario, value float64, tick time.Time) (History, Snapshot) {
	tick = tick.UTC()

	h := History{
		ID:              b.ids.NewID(),
		SensorID:        s.SensorID,
		SensorType:      s.SensorType,
		Role:            s.Role,
		Section:         s.Section,
		Asset:           s.Asset,
		MeasurementKind: s.MeasurementKind,
		Value:           value,
		Unit:            s.Distribution.Unit,
		Timestamp:       tick,
	}

	snap := Snapshot{
		SensorID:        s.SensorID,
		Value:           value,
		Unit:            s.Distribution.Unit,
		SensorType:      s.SensorType,
		Role:            s.Role,
		Section:         s.Section,
		Asset:           s.Asset,
		MeasurementKind: s.MeasurementKind,
		LastUpdated:     tick,
	}
	if t := s.Distribution.Thresholds; t != nil {
		thresholds := *t
		snap.Thresholds = &thresholds
	}

	return h, snap
}

// HistoryIDs returns the ids of records, in order.
func HistoryIDs(records []History) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	return ids
}

// SnapshotIDs returns the sensor ids of records, in order.
func SnapshotIDs(records []Snapshot) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.SensorID
	}

	return ids
}
