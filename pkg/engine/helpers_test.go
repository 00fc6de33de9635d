package engine

import (
	"context"
	"math"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func task(name, kind string, inputs ...string) *TaskSpec {
	return &TaskSpec{Name: name, Kind: kind, Inputs: inputs, Fields: map[string]any{}}
}

func param(name string, min, max float64) *TaskSpec {
	t := task(name, KindParameter)
	t.MinValue = fptr(min)
	t.MaxValue = fptr(max)
	return t
}

// recorder produces {name: name} and keeps a copy of every inputs Context it saw.
type recorder struct {
	name string
	seen []Context
	fn   func(in Context) (Context, error)
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Process(in Context) (Context, error) {
	r.seen = append(r.seen, in.Clone())
	if r.fn != nil {
		return r.fn(in)
	}
	return Context{r.name: r.name}, nil
}

// linearParam maps a fraction linearly onto [min, max].
type linearParam struct {
	recorder
	min, max float64
	free     bool
	lnprior  float64
	cdf      func(float64) float64
}

func (p *linearParam) SetFree(free bool) { p.free = free }

func (p *linearParam) Value(f float64) float64 { return p.min + f*(p.max-p.min) }

func (p *linearParam) PriorCDF(u float64) float64 {
	if p.cdf != nil {
		return p.cdf(u)
	}
	return u
}

func (p *linearParam) LnPriorPDF(float64) float64 { return p.lnprior }

func (p *linearParam) Process(in Context) (Context, error) {
	p.seen = append(p.seen, in.Clone())
	if in.Has(p.name) {
		return Context{}, nil
	}
	if !p.free {
		return Context{p.name: p.min}, nil
	}
	f, err := in.Float(KeyFraction)
	if err != nil {
		return nil, err
	}
	return Context{p.name: p.Value(f)}, nil
}

// harness builds models over a registry whose instances stay inspectable.
type harness struct {
	t         *testing.T
	registry  *Registry
	instances map[string]Module

	// objective computes the objective value from its inputs. The default
	// sums the numeric inputs named by the task.
	objective func(task *TaskSpec, in Context) (float64, error)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, registry: NewRegistry(), instances: make(map[string]Module)}

	register := func(kind, class string, f Factory) {
		if err := h.registry.Register(kind, class, func(ts *TaskSpec) (Module, error) {
			mod, err := f(ts)
			if err == nil {
				h.instances[ts.Name] = mod
			}
			return mod, err
		}); err != nil {
			t.Fatalf("register %s/%s: %v", kind, class, err)
		}
	}

	register(KindParameter, KindParameter, func(ts *TaskSpec) (Module, error) {
		p := &linearParam{recorder: recorder{name: ts.Name}}
		if ts.MinValue != nil {
			p.min = *ts.MinValue
		}
		if ts.MaxValue != nil {
			p.max = *ts.MaxValue
		}
		return p, nil
	})
	register("", "record", func(ts *TaskSpec) (Module, error) {
		return &recorder{name: ts.Name}, nil
	})
	objective := func(ts *TaskSpec) (Module, error) {
		r := &recorder{name: ts.Name}
		r.fn = func(in Context) (Context, error) {
			v, err := h.evalObjective(ts, in)
			if err != nil {
				return nil, err
			}
			return Context{KeyValue: v, ts.Name: v}, nil
		}
		return r, nil
	}
	register(KindObjective, KindObjective, objective)
	register(KindOutput, KindOutput, func(ts *TaskSpec) (Module, error) {
		return &recorder{name: ts.Name}, nil
	})
	return h
}

func (h *harness) evalObjective(ts *TaskSpec, in Context) (float64, error) {
	if h.objective != nil {
		return h.objective(ts, in)
	}
	sum := 0.0
	for _, name := range ts.Inputs {
		if v, err := in.Float(name); err == nil {
			sum += v
		}
	}
	return sum, nil
}

func (h *harness) build(spec *Spec, opts ...Option) *Model {
	h.t.Helper()
	m, err := New(context.Background(), spec, h.registry, opts...)
	if err != nil {
		h.t.Fatalf("New() failed: %v", err)
	}
	return m
}

func (h *harness) recorder(name string) *recorder {
	h.t.Helper()
	switch mod := h.instances[name].(type) {
	case *recorder:
		return mod
	case *linearParam:
		return &mod.recorder
	default:
		h.t.Fatalf("no recorder for %s", name)
		return nil
	}
}

// record marks tasks as using the kind-agnostic recording module.
func record(tasks ...*TaskSpec) []*TaskSpec {
	for _, t := range tasks {
		t.Class = "record"
	}
	return tasks
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
