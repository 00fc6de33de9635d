package modules

import (
	"fmt"
	"math"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

// Photometry converts luminosities into apparent bolometric magnitudes.
// Inputs: luminosities (erg/s) and lumdist (Mpc).
type Photometry struct {
	base
}

// NewPhotometry creates the observable.
func NewPhotometry(task *engine.TaskSpec) (engine.Module, error) {
	return &Photometry{base: base{name: task.Name}}, nil
}

// Process emits model_magnitudes. Zero luminosity maps to +Inf.
func (p *Photometry) Process(inputs engine.Context) (engine.Context, error) {
	lums, err := inputs.Floats(keyLuminosities)
	if err != nil {
		return nil, err
	}
	dist, err := inputs.Float("lumdist")
	if err != nil {
		return nil, err
	}
	if dist <= 0 {
		return nil, fmt.Errorf("lumdist must be positive, got %g", dist)
	}

	// Distance modulus with the distance in parsecs.
	mu := 5 * math.Log10(dist*1e6/10)
	mags := make([]float64, len(lums))
	for i, l := range lums {
		mags[i] = mBolSun - 2.5*math.Log10(l/lSunCGS) + mu
	}
	return engine.Context{keyModelMags: mags}, nil
}
