package modules

import (
	"fmt"
	"math"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

// Likelihood is a Gaussian log-likelihood of model magnitudes against the
// observations, with the observed errors and the variance input added in
// quadrature.
type Likelihood struct {
	base
	bands []string
}

// NewLikelihood creates the objective. An optional "bands" field is
// requested from the data producer during negotiation.
func NewLikelihood(task *engine.TaskSpec) (engine.Module, error) {
	return &Likelihood{base: base{name: task.Name}, bands: task.Strings("bands")}, nil
}

// Request implements engine.Requester.
func (l *Likelihood) Request(key string) any {
	if key == keyBands && len(l.bands) > 0 {
		return l.bands
	}
	return nil
}

// Process emits value, the log-likelihood. Non-finite model magnitudes give
// a non-finite value, which the scoring layer floors.
func (l *Likelihood) Process(inputs engine.Context) (engine.Context, error) {
	model, err := inputs.Floats(keyModelMags)
	if err != nil {
		return nil, err
	}
	observed, err := inputs.Floats(keyObservedValues)
	if err != nil {
		return nil, err
	}
	errs, err := inputs.Floats(keyObservedErrors)
	if err != nil {
		return nil, err
	}
	variance, err := inputs.FloatOr("variance", 0)
	if err != nil {
		return nil, err
	}
	if len(model) != len(observed) || len(errs) != len(observed) {
		return nil, fmt.Errorf("model has %d magnitudes for %d observations", len(model), len(observed))
	}

	sum := 0.0
	for i := range observed {
		s2 := errs[i]*errs[i] + variance*variance
		if s2 <= 0 {
			return nil, fmt.Errorf("observation %d has zero total variance", i)
		}
		r := model[i] - observed[i]
		sum += r*r/s2 + math.Log(2*math.Pi*s2)
	}
	return engine.Context{engine.KeyValue: -0.5 * sum}, nil
}
