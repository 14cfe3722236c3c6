package record

import (
	"sync"
	"testing"
	"time"

	"github.com/arloliu/sensorsim/scenario"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pressure = scenario.Scenario{
	Name:            "ENG_B_ENGINE_1_PRESSURE",
	SensorID:        "SNSR-002",
	SensorType:      "Pressure sensor",
	Role:            "engineer",
	Section:         "Workshop 2",
	Asset:           "Engine 1",
	MeasurementKind: "pressure",
	Distribution:    scenario.Gaussian(3, 0.1, "Bar").WithThresholds(2.5, 4),
}

func TestBuild(t *testing.T) {
	b := NewBuilder(&Sequence{Prefix: "h"})
	tick := time.Date(2026, 10, 17, 12, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))

	h, snap := b.Build(pressure, 3.07, tick)

	assert.Equal(t, History{
		ID:              "h-1",
		SensorID:        "SNSR-002",
		SensorType:      "Pressure sensor",
		Role:            "engineer",
		Section:         "Workshop 2",
		Asset:           "Engine 1",
		MeasurementKind: "pressure",
		Value:           3.07,
		Unit:            "Bar",
		Timestamp:       tick.UTC(),
	}, h)

	assert.Equal(t, Snapshot{
		SensorID:        "SNSR-002",
		Value:           3.07,
		Unit:            "Bar",
		SensorType:      "Pressure sensor",
		Role:            "engineer",
		Section:         "Workshop 2",
		Asset:           "Engine 1",
		MeasurementKind: "pressure",
		Thresholds:      &scenario.Thresholds{Min: 2.5, Max: 4},
		LastUpdated:     tick.UTC(),
	}, snap)

	assert.Equal(t, time.UTC, h.Timestamp.Location())
	assert.True(t, h.Timestamp.Equal(tick))
}

func TestBuild_OnlyIDDiffers(t *testing.T) {
	b := NewBuilder(nil)
	tick := time.Now()

	h1, s1 := b.Build(pressure, 1.5, tick)
	h2, s2 := b.Build(pressure, 1.5, tick)

	assert.NotEqual(t, h1.ID, h2.ID)
	h2.ID = h1.ID
	assert.Equal(t, h1, h2)
	assert.Equal(t, s1, s2)
}

func TestBuild_ThresholdsAreCopied(t *testing.T) {
	s := pressure
	s.Distribution.Thresholds = &scenario.Thresholds{Min: 1, Max: 2}

	_, snap := NewBuilder(nil).Build(s, 1, time.Now())
	s.Distribution.Thresholds.Max = 99

	require.NotNil(t, snap.Thresholds)
	assert.Equal(t, 2.0, snap.Thresholds.Max)
}

func TestBuild_OptionalFieldsAbsent(t *testing.T) {
	s := scenario.Scenario{SensorID: "SNSR-022", Distribution: scenario.Gaussian(80000, 5000, "lux")}

	h, snap := NewBuilder(nil).Build(s, 81234.5, time.Now())

	assert.Empty(t, h.Asset)
	assert.Empty(t, h.MeasurementKind)
	assert.Nil(t, snap.Thresholds)
}

func TestUUIDv7(t *testing.T) {
	gen := UUIDv7{}
	seen := make(map[string]bool)

	for range 1000 {
		id := gen.NewID()
		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSequence_Concurrent(t *testing.T) {
	seq := &Sequence{Prefix: "t"}

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				id := seq.NewID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
}

func TestIDHelpers(t *testing.T) {
	hs := []History{{ID: "a"}, {ID: "b"}}
	ss := []Snapshot{{SensorID: "x"}, {SensorID: "y"}}

	assert.Equal(t, []string{"a", "b"}, HistoryIDs(hs))
	assert.Equal(t, []string{"x", "y"}, SnapshotIDs(ss))
}
