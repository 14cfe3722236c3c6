package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	require.Equal(t, 7, c.Len())

	all := c.All()
	assert.Equal(t, "ENG_B_ENGINE_1_TEMP", all[0].Name)
	assert.Equal(t, "SNSR-001", all[0].SensorID)
	assert.Equal(t, KindGaussian, all[0].Distribution.Kind)
	assert.Equal(t, 29.73, all[0].Distribution.Mean)
	assert.Equal(t, 1.0, all[0].Distribution.StdDev)

	pressure, ok := c.Get("SNSR-002")
	require.True(t, ok)
	require.NotNil(t, pressure.Distribution.Thresholds)
	assert.Equal(t, 2.5, pressure.Distribution.Thresholds.Min)
	assert.Equal(t, 4.0, pressure.Distribution.Thresholds.Max)

	// Optional fields stay empty where the fleet omits them.
	cnc, ok := c.Get("SNSR-003")
	require.True(t, ok)
	assert.Empty(t, cnc.MeasurementKind)

	light, ok := c.Get("SNSR-022")
	require.True(t, ok)
	assert.Empty(t, light.Asset)
	assert.Equal(t, "light", light.MeasurementKind)
}

func TestLoadFile_ValidYAML(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
scenarios:
  - name: TANK_LEVEL
    sensorId: LVL-1
    sensorType: Level sensor
    role: engineer
    section: Tank farm
    asset: Tank 3
    measurementKind: level
    distribution:
      kind: uniform
      min: 0.5
      max: 9.5
      unit: m
  - sensorId: HUM-1
    sensorType: Humidity sensor
    role: scientist
    section: Greenhouse
    distribution:
      kind: gaussian
      mean: 60
      stdDev: 4
      unit: "%"
`)

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Empty(t, c.Validate())

	all := c.All()
	assert.Equal(t, "TANK_LEVEL", all[0].Name)
	assert.Equal(t, Uniform(0.5, 9.5, "m"), all[0].Distribution)
	assert.Equal(t, "HUM-1", all[1].Label())
	assert.Equal(t, Gaussian(60, 4, "%"), all[1].Distribution)
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, "catalog.json", `{
  "scenarios": [
    {"sensorId": "J-1", "role": "engineer", "section": "S",
     "distribution": {"kind": "gaussian", "mean": 1, "stdDev": 0.5, "unit": "C"}}
  ]
}`)

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "J-1", c.All()[0].SensorID)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Run("file not found", func(t *testing.T) {
		c, err := LoadFile("/non/existent/catalog.yaml")
		assert.Error(t, err)
		assert.Nil(t, c)
		assert.Contains(t, err.Error(), "failed to load catalog file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeFile(t, "broken.yaml", "scenarios: [invalid yaml\n")
		c, err := LoadFile(path)
		assert.Error(t, err)
		assert.Nil(t, c)
	})

	t.Run("no scenarios", func(t *testing.T) {
		path := writeFile(t, "empty.yaml", "scenarios: []\n")
		c, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrEmptyCatalog)
		assert.Nil(t, c)
	})
}

func TestLoad(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 7, c.Len())
	})

	t.Run("duplicate ids fail", func(t *testing.T) {
		path := writeFile(t, "dup.yaml", `
scenarios:
  - name: ONE
    sensorId: DUP
    distribution: {kind: gaussian, mean: 1, stdDev: 1, unit: C}
  - name: TWO
    sensorId: DUP
    distribution: {kind: gaussian, mean: 2, stdDev: 1, unit: C}
`)
		c, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidCatalog)
		assert.Nil(t, c)
		assert.Contains(t, err.Error(), "ONE")
		assert.Contains(t, err.Error(), "TWO")
	})
}
