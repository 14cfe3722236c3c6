// Package scenario defines simulated sensors and the catalog that holds them.
package scenario

// Scenario describes one simulated sensor and the distribution its readings are drawn from.
type Scenario struct {
	// Name is the catalog key, e.g. "ENG_B_ENGINE_1_TEMP". Optional.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	SensorID   string `yaml:"sensorId" json:"sensorId" validate:"required"`
	SensorType string `yaml:"sensorType" json:"sensorType"`
	Role       string `yaml:"role" json:"role"`
	Section    string `yaml:"section" json:"section"`

	// Asset and MeasurementKind are optional; some scenarios omit them.
	Asset           string `yaml:"asset,omitempty" json:"asset,omitempty"`
	MeasurementKind string `yaml:"measurementKind,omitempty" json:"measurementKind,omitempty"`

	Distribution Distribution `yaml:"distribution" json:"distribution"`
}

// Label returns the name used to refer to the scenario in messages.
func (s Scenario) Label() string {
	if s.Name != "" {
		return s.Name
	}

	return s.SensorID
}

// Kind identifies a value distribution.
type Kind string

const (
	KindGaussian Kind = "gaussian"
	KindUniform  Kind = "uniform"
)

// Distribution is the statistical profile of a sensor.
// Gaussian profiles use Mean and StdDev, uniform profiles use Min and Max.
type Distribution struct {
	Kind   Kind    `yaml:"kind" json:"kind" validate:"required,oneof=gaussian uniform"`
	Mean   float64 `yaml:"mean,omitempty" json:"mean,omitempty"`
	StdDev float64 `yaml:"stdDev,omitempty" json:"stdDev,omitempty"`
	Min    float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Unit   string  `yaml:"unit" json:"unit"`

	// Thresholds is alerting metadata. It is stored with snapshots, never enforced.
	Thresholds *Thresholds `yaml:"thresholds,omitempty" json:"thresholds,omitempty" validate:"omitempty"`
}

// Gaussian returns a normal distribution profile.
func Gaussian(mean, stdDev float64, unit string) Distribution {
	return Distribution{Kind: KindGaussian, Mean: mean, StdDev: stdDev, Unit: unit}
}

// Uniform returns a bounded-uniform distribution profile.
func Uniform(lo, hi float64, unit string) Distribution {
	return Distribution{Kind: KindUniform, Min: lo, Max: hi, Unit: unit}
}

// WithThresholds returns a copy of d carrying the given alert thresholds.
func (d Distribution) WithThresholds(lo, hi float64) Distribution {
	d.Thresholds = &Thresholds{Min: lo, Max: hi}
	return d
}

// Thresholds bounds the expected range of a reading.
type Thresholds struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max" validate:"gtefield=Min"`
}
