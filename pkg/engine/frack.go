package engine

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Local refinement settings.
const (
	FrackRadius      = 0.2
	FrackTolerance   = 1e-3
	frackIterations  = 100
	frackEvaluations = 5000
)

// Frack method names.
const (
	MethodLBFGS      = "lbfgs"
	MethodCG         = "cg"
	MethodNelderMead = "neldermead"
)

var frackMethods = []string{MethodLBFGS, MethodCG, MethodNelderMead}

// FrackResult is the outcome of one local refinement.
type FrackResult struct {
	// X is the refined coordinate vector, inside the search box.
	X []float64

	// Score is the objective at X, the negation of the minimized value.
	Score float64

	Method      string
	Evaluations int
}

// FrackMethod returns the local method seed selects.
func FrackMethod(seed uint64) string {
	return frackMethods[rand.New(rand.NewPCG(seed, seed)).IntN(len(frackMethods))]
}

// Frack minimizes the negated objective within a box of radius FrackRadius
// around x, clipped to the unit interval. The method and its outcome are
// determined by x and seed. Non-convergence is not an error: the best point
// seen within the budget is returned.
func (m *Model) Frack(x []float64, seed uint64) (FrackResult, error) {
	if err := m.checkLength(x); err != nil {
		return FrackResult{}, err
	}
	method := FrackMethod(seed)
	start := time.Now()
	defer func() { m.metrics.RecordFrack(method, time.Since(start)) }()

	n := len(x)
	lo := make([]float64, n)
	hi := make([]float64, n)
	for i, v := range x {
		lo[i] = math.Max(v-FrackRadius, 0)
		hi[i] = math.Min(v+FrackRadius, 1)
	}

	bestX := clipInto(make([]float64, n), x, lo, hi)
	bestF := -m.Objective(bestX)
	evals := 1
	if n == 0 {
		return FrackResult{X: bestX, Score: -bestF, Method: method, Evaluations: evals}, nil
	}

	buf := make([]float64, n)
	fprob := func(z []float64) float64 {
		clipInto(buf, z, lo, hi)
		f := -m.Objective(buf)
		evals++
		if f < bestF {
			bestF = f
			copy(bestX, buf)
		}
		return f
	}

	problem := optimize.Problem{Func: fprob}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   FrackTolerance,
			Iterations: 20,
		},
	}

	var opt optimize.Method
	switch method {
	case MethodLBFGS:
		opt = &optimize.LBFGS{}
		settings.FuncEvaluations = frackEvaluations
	case MethodCG:
		opt = &optimize.CG{}
		settings.MajorIterations = frackIterations
	default:
		opt = &optimize.NelderMead{}
		settings.MajorIterations = frackIterations
	}
	if method != MethodNelderMead {
		settings.GradientThreshold = FrackTolerance
		fdSettings := &fd.Settings{Formula: fd.Central, Step: 1e-5}
		problem.Grad = func(grad, z []float64) {
			fd.Gradient(grad, fprob, z, fdSettings)
		}
	}

	x0 := append([]float64(nil), bestX...)
	if _, err := optimize.Minimize(problem, x0, settings, opt); err != nil {
		// Line search failures and similar end the search early.
		m.logger.Zerolog().Debug().Err(err).Str("method", method).Msg("local refinement stopped")
	}

	return FrackResult{
		X:           bestX,
		Score:       -bestF,
		Method:      method,
		Evaluations: evals,
	}, nil
}

// clipInto writes src clipped to [lo, hi] into dst and returns dst.
func clipInto(dst, src, lo, hi []float64) []float64 {
	for i, v := range src {
		dst[i] = math.Min(math.Max(v, lo[i]), hi[i])
	}
	return dst
}
