package fitter

import (
	"context"
	"math/rand/v2"

	"github.com/fitgraph/fitgraph/pkg/engine"
	"github.com/fitgraph/fitgraph/pkg/stores"
	"github.com/fitgraph/fitgraph/pkg/telemetry"
)

// WalkerSeed returns the draw seed of walker i.
func WalkerSeed(seed uint64, i int) uint64 {
	return seed + uint64(i)
}

// FrackSeed returns the refinement seed of round k of walker i.
func FrackSeed(seed uint64, i, iterations, k int) uint64 {
	return seed + uint64(i*iterations+k)
}

// runWalker draws walker i and refines it for opts.Iterations rounds, each
// round starting from the best point so far.
func (f *Fitter) runWalker(ctx context.Context, model *engine.Model, fitID string, i int, opts FitOptions) (_ WalkerResult, err error) {
	ctx, span := f.tracer.StartWalkerSpan(ctx, fitID, i)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()
	}()
	logger := f.logger.WithFitID(fitID).WithWalker(i)

	seed := WalkerSeed(opts.Seed, i)
	rng := rand.New(rand.NewPCG(seed, seed))
	x, err := model.DrawWalker(ctx, rng, opts.RejectInvalid)
	if err != nil {
		return WalkerResult{}, err
	}

	wr := WalkerResult{
		Index:       i,
		Seed:        seed,
		X:           x,
		Score:       model.Objective(x),
		Evaluations: 1,
	}
	logger.Zerolog().Debug().Float64("score", wr.Score).Msg("walker drawn")

	if opts.Frack {
		for k := range opts.Iterations {
			if err := ctx.Err(); err != nil {
				return WalkerResult{}, err
			}
			fr, err := model.Frack(wr.X, FrackSeed(opts.Seed, i, opts.Iterations, k))
			if err != nil {
				return WalkerResult{}, err
			}
			wr.Evaluations += fr.Evaluations
			if fr.Score > wr.Score {
				wr.X, wr.Score, wr.Method = fr.X, fr.Score, fr.Method
			}
			logger.Zerolog().Debug().
				Int("round", k).
				Str("method", fr.Method).
				Float64("score", fr.Score).
				Msg("walker refined")
		}
	}

	wr.Parameters, err = model.PhysicalValues(wr.X)
	if err != nil {
		return WalkerResult{}, err
	}
	span.SetAttributes(telemetry.AttrScore.Float64(wr.Score))
	return wr, nil
}

func (f *Fitter) saveWalker(ctx context.Context, fitID string, wr WalkerResult) error {
	if f.store == nil {
		return nil
	}
	return f.store.SaveWalker(ctx, &stores.Walker{
		FitID:       fitID,
		Index:       wr.Index,
		Seed:        wr.Seed,
		Score:       wr.Score,
		Method:      wr.Method,
		Evaluations: wr.Evaluations,
		X:           wr.X,
		Parameters:  wr.Parameters,
	})
}
