package modules

import (
	"github.com/fitgraph/fitgraph/pkg/engine"
)

// Lightcurve packs the modeled light curve for output passes.
type Lightcurve struct {
	base
}

// NewLightcurve creates the output module.
func NewLightcurve(task *engine.TaskSpec) (engine.Module, error) {
	return &Lightcurve{base: base{name: task.Name}}, nil
}

// LightcurvePoint is one modeled observation.
type LightcurvePoint struct {
	Time      float64 `json:"time" yaml:"time"`
	Magnitude float64 `json:"magnitude" yaml:"magnitude"`
	Band      string  `json:"band,omitempty" yaml:"band,omitempty"`
}

// Process emits lightcurve as a []LightcurvePoint.
func (l *Lightcurve) Process(inputs engine.Context) (engine.Context, error) {
	times, err := inputs.Floats(keyTimes)
	if err != nil {
		return nil, err
	}
	mags, err := inputs.Floats(keyModelMags)
	if err != nil {
		return nil, err
	}
	bands, _ := inputs[keyBands].([]string)

	n := min(len(times), len(mags))
	points := make([]LightcurvePoint, n)
	for i := range n {
		points[i] = LightcurvePoint{Time: times[i], Magnitude: mags[i]}
		if i < len(bands) {
			points[i].Band = bands[i]
		}
	}
	return engine.Context{"lightcurve": points}, nil
}
