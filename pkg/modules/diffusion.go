package modules

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

const diffusionSteps = 1000

var (
	diffusionConst = 2.0 * mSunCGS / (13.7 * cSpeedCGS * kmCGS)
	trappingConst  = 3.0 * mSunCGS / (fourPi * kmCGS * kmCGS)
)

// Diffusion applies Arnett photon diffusion to the engine luminosity,
// moving it from dense_times onto the observed times.
// Inputs: kappa, kappagamma, mejecta, vejecta, texplosion, times,
// dense_times and luminosities.
type Diffusion struct {
	base
}

// NewDiffusion creates the diffusion transform.
func NewDiffusion(task *engine.TaskSpec) (engine.Module, error) {
	return &Diffusion{base: base{name: task.Name}}, nil
}

// Process emits the diffused luminosities at the observed times.
func (d *Diffusion) Process(inputs engine.Context) (engine.Context, error) {
	times, err := inputs.Floats(keyTimes)
	if err != nil {
		return nil, err
	}
	denseTimes, err := inputs.Floats(evaluationTimes(inputs))
	if err != nil {
		return nil, err
	}
	lums, err := inputs.Floats(keyLuminosities)
	if err != nil {
		return nil, err
	}
	if len(lums) != len(denseTimes) {
		return nil, fmt.Errorf("luminosities has %d entries, evaluation times %d", len(lums), len(denseTimes))
	}

	p := make(map[string]float64, 5)
	for _, key := range []string{"kappa", "kappagamma", "mejecta", "vejecta", keyTExplosion} {
		if p[key], err = inputs.Float(key); err != nil {
			return nil, err
		}
	}

	tauDiff := math.Sqrt(diffusionConst*p["kappa"]*p["mejecta"]/p["vejecta"]) / dayCGS
	trap := trappingConst * p["kappagamma"] * p["mejecta"] / (p["vejecta"] * p["vejecta"]) / (dayCGS * dayCGS)
	td2 := tauDiff * tauDiff

	since := make([]float64, len(denseTimes))
	for i, t := range denseTimes {
		since[i] = t - p[keyTExplosion]
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(since, lums); err != nil {
		return nil, fmt.Errorf("interpolate luminosities: %w", err)
	}
	tb := math.Max(0, floats.Min(since))

	out := make([]float64, len(times))
	cache := make(map[float64]float64)
	grid := make([]float64, diffusionSteps)
	integrand := make([]float64, diffusionSteps)
	for i, t := range times {
		te := t - p[keyTExplosion]
		if te <= 0 {
			continue
		}
		if v, ok := cache[te]; ok {
			out[i] = v
			continue
		}

		te2 := te * te
		floats.Span(grid, tb, te)
		trapping := 1 - math.Exp(-trap/te2)
		for j, s := range grid {
			v := 2 * pl.Predict(s) * s / td2 * math.Exp((s*s-te2)/td2) * trapping
			if math.IsNaN(v) {
				v = 0
			}
			integrand[j] = v
		}
		out[i] = integrate.Trapezoidal(grid, integrand)
		cache[te] = out[i]
	}
	return engine.Context{keyLuminosities: engine.FloorNaN(out)}, nil
}
