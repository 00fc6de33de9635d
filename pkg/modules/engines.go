package modules

import (
	"math"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

// Radioactive decay constants (1994ApJS...92..527N).
const (
	ni56Lum  = 6.45e43 // erg/s per solar mass
	co56Lum  = 1.45e43
	ni56Life = 8.8 // days
	co56Life = 111.3
)

// NickelCobalt is the luminosity of 56Ni and 56Co decay.
// Inputs: fnickel, mejecta, texplosion and dense_times or times.
//
// Engines add onto luminosities from upstream. To combine two engines list
// one in the other's inputs, e.g. magnetar with inputs [nickelcobalt, ...].
type NickelCobalt struct {
	base
}

// NewNickelCobalt creates the decay engine.
func NewNickelCobalt(task *engine.TaskSpec) (engine.Module, error) {
	return &NickelCobalt{base: base{name: task.Name}}, nil
}

// Process emits luminosities, added to any upstream luminosities.
func (n *NickelCobalt) Process(inputs engine.Context) (engine.Context, error) {
	times, err := inputs.Floats(evaluationTimes(inputs))
	if err != nil {
		return nil, err
	}
	fnickel, err := inputs.Float("fnickel")
	if err != nil {
		return nil, err
	}
	mejecta, err := inputs.Float("mejecta")
	if err != nil {
		return nil, err
	}
	texp, err := inputs.Float(keyTExplosion)
	if err != nil {
		return nil, err
	}

	mni := fnickel * mejecta
	lums := make([]float64, len(times))
	for i, t := range times {
		if t < texp {
			continue
		}
		dt := t - texp
		lums[i] = mni * (ni56Lum*math.Exp(-dt/ni56Life) + co56Lum*math.Exp(-dt/co56Life))
	}
	lums, err = engine.AddExisting(inputs, keyLuminosities, engine.FloorNaN(lums))
	if err != nil {
		return nil, err
	}
	return engine.Context{keyLuminosities: lums}, nil
}

// Magnetar is the spin-down luminosity of a young magnetar.
// Inputs: pspin (ms), bfield (1e14 G), mnsmass (solar masses), texplosion and
// dense_times or times. Like every engine it adds onto upstream luminosities
// and must be chained, not placed beside another engine.
type Magnetar struct {
	base
}

// NewMagnetar creates the spin-down engine.
func NewMagnetar(task *engine.TaskSpec) (engine.Module, error) {
	return &Magnetar{base: base{name: task.Name}}, nil
}

// Process emits luminosities, added to any upstream luminosities.
func (m *Magnetar) Process(inputs engine.Context) (engine.Context, error) {
	times, err := inputs.Floats(evaluationTimes(inputs))
	if err != nil {
		return nil, err
	}
	pspin, err := inputs.Float("pspin")
	if err != nil {
		return nil, err
	}
	bfield, err := inputs.Float("bfield")
	if err != nil {
		return nil, err
	}
	mns, err := inputs.FloatOr("mnsmass", 1.4)
	if err != nil {
		return nil, err
	}
	texp, err := inputs.Float(keyTExplosion)
	if err != nil {
		return nil, err
	}

	massFactor := math.Pow(mns/1.4, 1.5)
	ep := 2.6e52 * math.Pow(pspin, -2) * massFactor
	tp := 1.3e5 * math.Pow(bfield, -2) * pspin * pspin * massFactor

	lums := make([]float64, len(times))
	for i, t := range times {
		if t < texp {
			continue
		}
		x := 1 + 2*(t-texp)*dayCGS/tp
		lums[i] = 2 * ep / tp / (x * x)
	}
	lums, err = engine.AddExisting(inputs, keyLuminosities, engine.FloorNaN(lums))
	if err != nil {
		return nil, err
	}
	return engine.Context{keyLuminosities: lums}, nil
}
