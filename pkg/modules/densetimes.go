package modules

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

const (
	defaultDenseTimes = 100
	minDenseOffset    = 1e-6 // days after explosion
)

// DenseTimes samples logarithmically between the explosion and the last
// observation so that engines are evaluated where data is sparse.
type DenseTimes struct {
	base
	n int
}

// NewDenseTimes creates the array module. n_times defaults to 100.
func NewDenseTimes(task *engine.TaskSpec) (engine.Module, error) {
	n := int(task.FloatOr("n_times", defaultDenseTimes))
	if n < 2 {
		return nil, fmt.Errorf("n_times must be at least 2, got %d", n)
	}
	return &DenseTimes{base: base{name: task.Name}, n: n}, nil
}

// Process emits dense_times: the sorted union of 0, the explosion time, a
// log-spaced grid after it, and the observed times.
func (d *DenseTimes) Process(inputs engine.Context) (engine.Context, error) {
	times, err := inputs.Floats(keyTimes)
	if err != nil {
		return nil, err
	}
	texp, err := inputs.Float(keyTExplosion)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("no observed times")
	}

	maxTime := floats.Max(times)
	if maxTime <= texp {
		return engine.Context{keyDenseTimes: slices.Clone(times)}, nil
	}

	grid := floats.LogSpan(make([]float64, d.n), minDenseOffset, maxTime-texp)
	dense := make([]float64, 0, len(grid)+len(times)+2)
	dense = append(dense, 0, texp)
	for _, g := range grid {
		dense = append(dense, g+texp)
	}
	dense = append(dense, times...)
	slices.Sort(dense)
	dense = slices.CompactFunc(dense, func(a, b float64) bool {
		return a == b || math.Abs(a-b) <= 1e-12*math.Max(math.Abs(a), math.Abs(b))
	})
	return engine.Context{keyDenseTimes: dense}, nil
}
