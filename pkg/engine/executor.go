package engine

import (
	"fmt"
	"time"
)

// Run replays the call stack for root and returns the outputs accumulated up
// to and including the first task whose kind equals root.
//
// Tasks sharing a depth all read the inputs snapshot taken when the pass
// entered that depth, so siblings never observe each other's outputs. Free
// parameters read x at their position in the free parameter set, so a pass for
// a root that skips some parameters still sees the right coordinates.
//
// Because siblings are isolated, two tasks at one depth that produce the same
// key cannot be combined; Run fails with ErrCodeOutputCollision instead of
// keeping only the last value. Modules that accumulate a shared key must be
// chained through inputs so that each runs at its own depth.
func (m *Model) Run(x []float64, root string) (Context, error) {
	if err := m.checkLength(x); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { m.metrics.RecordEvaluation(root, time.Since(start)) }()

	inputs := Context{}
	outputs := Context{}
	fractions := make([]float64, 0, len(x))
	currentDepth := m.stack.MaxDepth
	written := make(map[string]string)

	for _, e := range m.stack.Entries {
		if !e.HasRoot(root) {
			continue
		}
		if e.Depth != currentDepth {
			inputs = outputs.Clone()
			currentDepth = e.Depth
			clear(written)
		}

		inputs[KeyRoot] = root
		if i, free := m.freeIndex[e.Task.Name]; free {
			inputs[KeyFraction] = x[i]
			fractions = append(fractions, x[i])
		}
		if len(fractions) > 0 {
			inputs[KeyFractions] = append([]float64(nil), fractions...)
		}

		produced, err := m.modules[e.Task.Name].Process(inputs)
		if err != nil {
			return nil, NewNumericError("module process failed", err).
				WithCode(ErrCodeProcess).WithTask(e.Task.Name).WithOperation(root)
		}
		for k, v := range produced {
			if prev, ok := written[k]; ok {
				return nil, NewConfigError(
					fmt.Sprintf("tasks %s and %s both produce %q at depth %d", prev, e.Task.Name, k, e.Depth), nil).
					WithCode(ErrCodeOutputCollision).WithTask(e.Task.Name).WithOperation(root)
			}
			written[k] = e.Task.Name
			outputs[k] = v
		}

		if e.Task.Kind == root {
			return outputs, nil
		}
	}

	return nil, ErrRootNotReached
}
