package fitter

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fitgraph/fitgraph/pkg/config"
	"github.com/fitgraph/fitgraph/pkg/engine"
	"github.com/fitgraph/fitgraph/pkg/stores"
	"github.com/fitgraph/fitgraph/pkg/telemetry"
)

// ModelFactory builds a fresh Model. Models are not safe for concurrent
// evaluation, so every worker calls the factory once.
type ModelFactory func(ctx context.Context) (*engine.Model, error)

// FitOptions controls one fit run.
type FitOptions struct {
	// ModelPath is recorded with the fit.
	ModelPath string

	Walkers    int
	Workers    int
	Seed       uint64
	Iterations int

	// Frack enables local refinement after each draw.
	Frack         bool
	RejectInvalid bool
}

// OptionsFromConfig converts a loaded fit config.
func OptionsFromConfig(cfg *config.FitConfig, modelPath string) FitOptions {
	return FitOptions{
		ModelPath:     modelPath,
		Walkers:       cfg.Walkers,
		Workers:       cfg.Workers,
		Seed:          cfg.Seed,
		Iterations:    cfg.Iterations,
		Frack:         cfg.Frack,
		RejectInvalid: cfg.RejectInvalid,
	}
}

// WalkerResult is the final state of one walker.
type WalkerResult struct {
	Index       int                `json:"index"`
	Seed        uint64             `json:"seed"`
	X           []float64          `json:"x"`
	Score       float64            `json:"score"`
	Method      string             `json:"method,omitempty"`
	Evaluations int                `json:"evaluations"`
	Parameters  map[string]float64 `json:"parameters"`
}

// FitResult holds every walker, best first.
type FitResult struct {
	ID       string         `json:"id"`
	Free     []string       `json:"free"`
	Walkers  []WalkerResult `json:"walkers"`
	Duration time.Duration  `json:"duration"`
}

// Best returns the highest scoring walker.
func (r *FitResult) Best() WalkerResult {
	return r.Walkers[0]
}

// Fitter draws and refines walkers over a pool of worker-owned models.
type Fitter struct {
	factory ModelFactory
	store   stores.Store
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// Option configures a Fitter.
type Option func(*Fitter)

// WithStore persists fits and walkers.
func WithStore(s stores.Store) Option {
	return func(f *Fitter) { f.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(f *Fitter) {
		if l != nil {
			f.logger = l.NewComponentLogger("fitter")
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(f *Fitter) { f.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(f *Fitter) { f.tracer = t }
}

// New creates a Fitter.
func New(factory ModelFactory, opts ...Option) *Fitter {
	f := &Fitter{
		factory: factory,
		logger:  telemetry.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run draws opts.Walkers walkers, refines each and returns them sorted by
// score. Walker i is reproducible from opts.Seed and i alone, whatever the
// worker count.
func (f *Fitter) Run(ctx context.Context, opts FitOptions) (res *FitResult, err error) {
	if opts.Walkers < 1 {
		return nil, engine.NewContractError("at least one walker is required", nil).WithOperation("fit")
	}
	if opts.Iterations < 0 {
		return nil, engine.NewContractError("iterations must not be negative", nil).WithOperation("fit")
	}
	workers := min(max(opts.Workers, 1), opts.Walkers)

	id := uuid.NewString()
	logger := f.logger.WithFitID(id)
	start := time.Now()

	ctx, span := f.tracer.StartFitSpan(ctx, id, opts.Walkers)
	defer span.End()

	if f.store != nil {
		fit := &stores.Fit{
			ID:        id,
			ModelPath: opts.ModelPath,
			Seed:      opts.Seed,
			Walkers:   opts.Walkers,
			Status:    stores.FitStatusRunning,
			Metadata:  fmt.Sprintf(`{"workers":%d,"iterations":%d,"frack":%t}`, workers, opts.Iterations, opts.Frack),
		}
		if err := f.store.CreateFit(ctx, fit); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	f.metrics.RecordFitStarted()
	defer func() { f.finish(ctx, id, start, res, err) }()

	logger.Zerolog().Info().
		Int("walkers", opts.Walkers).
		Int("workers", workers).
		Uint64("seed", opts.Seed).
		Msg("fit started")

	results := make([]WalkerResult, opts.Walkers)
	jobs := make(chan int, opts.Walkers)
	for i := range opts.Walkers {
		jobs <- i
	}
	close(jobs)

	var (
		free     []string
		freeOnce sync.Once
	)

	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			model, err := f.factory(gctx)
			if err != nil {
				return fmt.Errorf("worker %d: build model: %w", w, err)
			}
			freeOnce.Do(func() { free = model.FreeParameters() })

			for i := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				wr, err := f.runWalker(gctx, model, id, i, opts)
				if err != nil {
					return fmt.Errorf("walker %d: %w", i, err)
				}
				if err := f.saveWalker(gctx, id, wr); err != nil {
					return err
				}
				results[i] = wr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b WalkerResult) int {
		return cmp.Compare(b.Score, a.Score)
	})

	res = &FitResult{
		ID:       id,
		Free:     free,
		Walkers:  results,
		Duration: time.Since(start),
	}
	logger.Zerolog().Info().
		Float64("best_score", res.Best().Score).
		Dur("duration", res.Duration).
		Msg("fit completed")
	return res, nil
}

// finish records the fit outcome in the store, metrics and span.
func (f *Fitter) finish(ctx context.Context, id string, start time.Time, res *FitResult, runErr error) {
	span := trace.SpanFromContext(ctx)
	status := stores.FitStatusCompleted
	var (
		best   *float64
		errMsg *string
	)
	if runErr != nil {
		status = stores.FitStatusFailed
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			status = stores.FitStatusCancelled
		}
		msg := runErr.Error()
		errMsg = &msg
		telemetry.RecordError(span, runErr)
		f.metrics.RecordError(errorClass(runErr), engine.CodeOf(runErr))
		f.logger.WithFitID(id).WithError(runErr).Zerolog().Error().Str("status", string(status)).Msg("fit ended")
	} else {
		score := res.Best().Score
		best = &score
		span.SetAttributes(telemetry.AttrScore.Float64(score))
		telemetry.RecordSuccess(span)
	}
	f.metrics.RecordFitCompleted(string(status), time.Since(start))

	if f.store == nil {
		return
	}
	// The run context may already be canceled.
	if err := f.store.UpdateFitStatus(context.WithoutCancel(ctx), id, status, best, errMsg); err != nil {
		f.logger.WithFitID(id).WithError(err).Warn("failed to record fit status")
	}
}

func errorClass(err error) string {
	switch {
	case engine.IsConfigError(err):
		return string(engine.ErrorClassConfig)
	case engine.IsNumericError(err):
		return string(engine.ErrorClassNumeric)
	case engine.IsContractError(err):
		return string(engine.ErrorClassContract)
	default:
		return "unknown"
	}
}
