package modules

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

// Parameter is a model parameter that is either free, drawn from a uniform
// prior over [min_value, max_value], or fixed at value.
//
// A bounded parameter that is fixed without a value sits at the centre of its
// prior: the midpoint of the range (the geometric midpoint for log
// parameters), or mu for a gaussian prior.
type Parameter struct {
	base

	min, max float64 // log-transformed when log is set
	bounded  bool
	value    *float64
	log      bool
	latex    string
	free     bool

	centre float64 // unit fraction used when fixed without a value
}

// NewParameter creates a parameter from its task declaration.
func NewParameter(task *engine.TaskSpec) (engine.Module, error) {
	return newParameter(task)
}

func newParameter(task *engine.TaskSpec) (*Parameter, error) {
	p := &Parameter{
		base:   base{name: task.Name},
		value:  task.Value,
		log:    task.Bool("log"),
		latex:  task.String("latex"),
		centre: 0.5,
	}
	if p.latex == "" {
		p.latex = task.Name
	}

	if task.MinValue != nil && task.MaxValue != nil && *task.MinValue != *task.MaxValue {
		p.min, p.max = *task.MinValue, *task.MaxValue
		if p.min > p.max {
			return nil, fmt.Errorf("min_value %g exceeds max_value %g", p.min, p.max)
		}
		if p.log {
			if p.min <= 0 {
				return nil, fmt.Errorf("log parameter needs positive bounds, got min_value %g", p.min)
			}
			p.min, p.max = math.Log(p.min), math.Log(p.max)
		}
		p.bounded = true
	} else if p.value == nil && task.MinValue != nil {
		// Equal bounds pin the parameter.
		v := *task.MinValue
		p.value = &v
	}
	return p, nil
}

// SetFree implements engine.FreeSetter.
func (p *Parameter) SetFree(free bool) { p.free = free }

// Latex returns the display label.
func (p *Parameter) Latex() string { return p.latex }

// PriorCDF implements engine.ParameterModule with a uniform prior.
func (p *Parameter) PriorCDF(u float64) float64 { return u }

// LnPriorPDF implements engine.ParameterModule with a uniform prior.
func (p *Parameter) LnPriorPDF(float64) float64 { return 0 }

// Value maps a unit fraction onto the parameter range.
func (p *Parameter) Value(f float64) float64 {
	v := p.scaled(f)
	if p.log {
		return math.Exp(v)
	}
	return v
}

// scaled maps f into [min, max] in the parameter's own space.
func (p *Parameter) scaled(f float64) float64 {
	return clip(f*(p.max-p.min)+p.min, p.min, p.max)
}

// fraction is the inverse of scaled, clipped to the unit interval.
func (p *Parameter) fraction(v float64) float64 {
	return clip((v-p.min)/(p.max-p.min), 0, 1)
}

// Process emits the parameter value unless an upstream task already set it.
func (p *Parameter) Process(inputs engine.Context) (engine.Context, error) {
	if inputs.Has(p.name) {
		return engine.Context{}, nil
	}
	if p.free && p.bounded {
		f, err := inputs.Float(engine.KeyFraction)
		if err != nil {
			return nil, err
		}
		return engine.Context{p.name: p.Value(f)}, nil
	}
	switch {
	case p.value != nil:
		return engine.Context{p.name: *p.value}, nil
	case p.bounded:
		return engine.Context{p.name: p.Value(p.centre)}, nil
	}
	return nil, fmt.Errorf("parameter %s is fixed but declares no value or bounds", p.name)
}

// Gaussian is a Parameter whose prior is a normal distribution in the
// parameter's own (possibly log) space, truncated to its bounds.
type Gaussian struct {
	*Parameter
	dist distuv.Normal

	cdfLo, cdfHi float64 // normal CDF at the bounds
}

// NewGaussian creates a gaussian-prior parameter. It requires mu and a
// positive sigma alongside the usual bounds.
func NewGaussian(task *engine.TaskSpec) (engine.Module, error) {
	p, err := newParameter(task)
	if err != nil {
		return nil, err
	}
	mu, ok := task.Float("mu")
	if !ok {
		return nil, fmt.Errorf("gaussian parameter requires mu")
	}
	sigma, ok := task.Float("sigma")
	if !ok || sigma <= 0 {
		return nil, fmt.Errorf("gaussian parameter requires a positive sigma")
	}
	if p.log {
		if mu <= 0 {
			return nil, fmt.Errorf("log gaussian parameter requires a positive mu")
		}
		mu = math.Log(mu)
	}
	g := &Gaussian{Parameter: p, dist: distuv.Normal{Mu: mu, Sigma: sigma}}
	if p.bounded {
		g.cdfLo, g.cdfHi = g.dist.CDF(p.min), g.dist.CDF(p.max)
		if g.cdfHi <= g.cdfLo {
			return nil, fmt.Errorf("gaussian prior has no mass inside [min_value, max_value]")
		}
		p.centre = p.fraction(mu)
	}
	return g, nil
}

// PriorCDF maps u through the quantile of the normal truncated to the bounds
// and back into the unit interval.
func (g *Gaussian) PriorCDF(u float64) float64 {
	if !g.bounded {
		return u
	}
	return g.fraction(g.dist.Quantile(g.cdfLo + clip(u, 0, 1)*(g.cdfHi-g.cdfLo)))
}

// LnPriorPDF returns the normal log density at the scaled value of f.
func (g *Gaussian) LnPriorPDF(f float64) float64 {
	if !g.bounded {
		return 0
	}
	return g.dist.LogProb(g.scaled(f))
}
