// Package generator draws simulated sensor readings from scenario distributions.
package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/arloliu/sensorsim/scenario"
)

var (
	// ErrUnknownDistribution is returned for a distribution kind the generator cannot draw from.
	ErrUnknownDistribution = errors.New("generator: unknown distribution kind")

	// ErrNonFinite is returned when a draw produces NaN or an infinity.
	ErrNonFinite = errors.New("generator: non-finite value")
)

// Generator produces readings rounded to two decimal places.
// It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// New creates a Generator drawing from src.
// Tests pass a fixed source to get reproducible sequences.
func New(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)} //nolint:gosec // weak rand is fine for simulation
}

// NewSeeded creates a Generator with a PCG source seeded from seed.
// A zero seed picks a time-based seed.
func NewSeeded(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // nanosecond clock is never negative
	}

	return New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate draws one value from d.
// Scale parameters are trusted; the catalog validates them at load time.
func (g *Generator) Generate(d scenario.Distribution) (float64, error) {
	var v float64

	switch d.Kind {
	case scenario.KindGaussian:
		v = round2(d.Mean + g.rng.NormFloat64()*d.StdDev)
	case scenario.KindUniform:
		v = clamp(round2(d.Min+g.rng.Float64()*(d.Max-d.Min)), d.Min, d.Max)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDistribution, d.Kind)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNonFinite, v)
	}

	return v, nil
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp keeps a rounded uniform draw inside the configured bounds.
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
