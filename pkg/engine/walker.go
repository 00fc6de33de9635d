package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
)

// DrawWalker draws a coordinate vector by sampling each free parameter's
// prior through its inverse CDF.
//
// With rejectInvalid the draw is scored and redrawn until likelihood plus
// prior is finite. Retries are unbounded unless WithMaxDraws was set; ctx
// cancellation always stops the loop, and so does a configuration error, which
// no redraw can cure. Without rejectInvalid the first draw is returned
// unscored.
func (m *Model) DrawWalker(ctx context.Context, rng *rand.Rand, rejectInvalid bool) ([]float64, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		draw := make([]float64, len(m.freeMods))
		for i, pm := range m.freeMods {
			draw[i] = pm.PriorCDF(rng.Float64())
		}
		if !rejectInvalid {
			return draw, nil
		}

		score, err := m.Score(draw)
		if err == nil && !math.IsNaN(score) && !math.IsInf(score, 0) {
			m.metrics.RecordWalkerDraw(true)
			return draw, nil
		}
		m.metrics.RecordWalkerDraw(false)
		if IsConfigError(err) {
			return nil, err
		}
		m.logger.Zerolog().Debug().Err(err).Int("attempt", attempt).Float64("score", score).Msg("walker draw rejected")

		if m.maxDraws > 0 && attempt >= m.maxDraws {
			return nil, NewNumericError(fmt.Sprintf("no finite score after %d draws", attempt), err).
				WithOperation("draw_walker")
		}
	}
}
