package engine

import (
	"fmt"
	"maps"
	"math"
)

// Reserved context keys set by the executor.
const (
	KeyRoot      = "root"
	KeyFraction  = "fraction"
	KeyFractions = "fractions"

	// KeyValue is the scalar an objective task must produce.
	KeyValue = "value"
)

// Context is the named-value mapping passed into and returned from Process.
// Modules must treat their input Context as read-only.
type Context map[string]any

// Module is one computational unit of a model.
//
// Instances own mutable state and are not safe for concurrent Process calls.
// Parallel evaluation needs one Model, and so one module set, per worker.
type Module interface {
	Name() string
	Process(inputs Context) (Context, error)
}

// ParameterModule is implemented by parameter-kind modules.
type ParameterModule interface {
	Module

	// PriorCDF maps a uniform draw u in [0,1] through the prior's inverse CDF,
	// returning a unit-interval coordinate.
	PriorCDF(u float64) float64

	// LnPriorPDF returns the log prior density at unit coordinate u.
	LnPriorPDF(u float64) float64

	// Value maps a unit-interval fraction to the physical parameter value.
	Value(fraction float64) float64
}

// Requester is implemented by consumers that configure their producers.
type Requester interface {
	Request(key string) any
}

// RequestHandler is implemented by producers that accept configuration from consumers.
type RequestHandler interface {
	HandleRequests(requests map[string]any) error
}

// FreeSetter is implemented by parameter modules that need to know whether
// they read the executor's fraction or use a fixed value.
type FreeSetter interface {
	SetFree(free bool)
}

// Has reports whether key is present.
func (c Context) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Clone returns a shallow copy.
func (c Context) Clone() Context {
	if c == nil {
		return Context{}
	}
	return maps.Clone(c)
}

// Float returns a numeric value.
func (c Context) Float(key string) (float64, error) {
	v, ok := c[key]
	if !ok {
		return 0, fmt.Errorf("missing input %q", key)
	}
	f, ok := AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("input %q is %T, not a number", key, v)
	}
	return f, nil
}

// FloatOr returns a numeric value or def when the key is absent.
func (c Context) FloatOr(key string, def float64) (float64, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.Float(key)
}

// Floats returns a numeric series.
func (c Context) Floats(key string) ([]float64, error) {
	v, ok := c[key]
	if !ok {
		return nil, fmt.Errorf("missing input %q", key)
	}
	switch s := v.(type) {
	case []float64:
		return s, nil
	case []any:
		out := make([]float64, len(s))
		for i, item := range s {
			f, ok := AsFloat(item)
			if !ok {
				return nil, fmt.Errorf("input %q[%d] is %T, not a number", key, i, item)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("input %q is %T, not a numeric series", key, v)
	}
}

// String returns a string value, empty when absent.
func (c Context) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// AsFloat converts the numeric types produced by decoders to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}

// FloorNaN replaces NaN entries with 0 in place and returns the slice.
func FloorNaN(series []float64) []float64 {
	for i, v := range series {
		if math.IsNaN(v) {
			series[i] = 0
		}
	}
	return series
}

// AddExisting adds the same-named series already present in inputs to series,
// in place, so that several contributing modules accumulate one signal.
// Contributors only see each other's series across depths, so they must be
// chained through inputs (the second lists the first); siblings at one depth
// make Run fail with ErrCodeOutputCollision.
func AddExisting(inputs Context, key string, series []float64) ([]float64, error) {
	if !inputs.Has(key) {
		return series, nil
	}
	prev, err := inputs.Floats(key)
	if err != nil {
		return nil, err
	}
	if len(prev) != len(series) {
		return nil, fmt.Errorf("cannot add %q: existing length %d, new length %d", key, len(prev), len(series))
	}
	for i := range series {
		series[i] += prev[i]
	}
	return series, nil
}
