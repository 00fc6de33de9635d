package engine

import (
	"fmt"
	"math"
)

// LikelihoodFloor replaces any objective value that is not finite.
const LikelihoodFloor = -1.0e8

// Likelihood runs the objective pass and returns its scalar value.
func (m *Model) Likelihood(x []float64) (float64, error) {
	out, err := m.Run(x, KindObjective)
	if err != nil {
		return math.NaN(), err
	}
	raw, ok := out[KeyValue]
	if !ok {
		return math.NaN(), NewConfigError("objective produced no value", nil).WithCode(ErrCodeValidation)
	}
	v, ok := AsFloat(raw)
	if !ok {
		return math.NaN(), NewConfigError(fmt.Sprintf("objective value is %T, not a number", raw), nil).
			WithCode(ErrCodeValidation)
	}
	return v, nil
}

// Prior sums each free parameter's log prior density at its coordinate.
func (m *Model) Prior(x []float64) (float64, error) {
	if err := m.checkLength(x); err != nil {
		return math.NaN(), err
	}
	sum := 0.0
	for i, pm := range m.freeMods {
		sum += pm.LnPriorPDF(x[i])
	}
	return sum, nil
}

// Score returns likelihood plus prior without flooring.
func (m *Model) Score(x []float64) (float64, error) {
	lp, err := m.Prior(x)
	if err != nil {
		return math.NaN(), err
	}
	ll, err := m.Likelihood(x)
	if err != nil {
		return math.NaN(), err
	}
	return ll + lp, nil
}

// Objective returns likelihood plus prior, floored to LikelihoodFloor whenever
// the sum is not finite or evaluation fails. It never returns NaN or Inf.
func (m *Model) Objective(x []float64) float64 {
	score, err := m.Score(x)
	if err != nil {
		m.metrics.RecordFloored("error")
		m.metrics.RecordError(string(classOf(err)), CodeOf(err))
		m.logger.Zerolog().Debug().Err(err).Msg("objective floored after evaluation error")
		return LikelihoodFloor
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		m.metrics.RecordFloored("non_finite")
		return LikelihoodFloor
	}
	return score
}
