package modules

import (
	"math"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

// Physical constants in CGS units.
const (
	cSpeedCGS = 2.99792458e10
	kmCGS     = 1.0e5
	mSunCGS   = 1.98847e33
	lSunCGS   = 3.828e33
	dayCGS    = 86400.0
	auCGS     = 1.495978707e13
	fourPi    = 4 * math.Pi

	// Bolometric absolute magnitude of the Sun.
	mBolSun = 4.74
)

// Context keys shared between the built-in modules.
const (
	keyTimes          = "times"
	keyDenseTimes     = "dense_times"
	keyLuminosities   = "luminosities"
	keyModelMags      = "model_magnitudes"
	keyObservedValues = "observed_values"
	keyObservedErrors = "observed_errors"
	keyBands          = "bands"
	keyTExplosion     = "texplosion"
)

type base struct {
	name string
}

func (b base) Name() string { return b.name }

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// evaluationTimes returns dense_times when an upstream array provided them,
// else the observed times.
func evaluationTimes(inputs engine.Context) string {
	if inputs.Has(keyDenseTimes) {
		return keyDenseTimes
	}
	return keyTimes
}
