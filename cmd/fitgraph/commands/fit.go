package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitgraph/fitgraph/pkg/config"
	"github.com/fitgraph/fitgraph/pkg/engine"
	"github.com/fitgraph/fitgraph/pkg/fitter"
	"github.com/fitgraph/fitgraph/pkg/modules"
	"github.com/fitgraph/fitgraph/pkg/stores"
	"github.com/fitgraph/fitgraph/pkg/telemetry"
)

func newFitCommand() *cobra.Command {
	var (
		mf          modelFlags
		configFile  string
		walkers     int
		workers     int
		seed        uint64
		iterations  int
		noFrack     bool
		storePath   string
		metricsAddr string
		top         int
	)

	cmd := &cobra.Command{
		Use:   "fit MODEL",
		Short: "Fit a model by drawing and refining walkers",
		Long: `Fit a model.

Each walker is drawn from the priors of the free parameters, redrawn until
its score is finite, and refined by rounds of bounded local optimization.
Walkers run in parallel, one model per worker. Results can be stored in a
SQLite database and inspected later with 'walkers'.

Flags override the values of the fit config file.`,
		Example: `  # Fit with defaults
  fitgraph fit models/nickel.yaml

  # Fit from a config file, storing results
  fitgraph fit models/nickel.yaml --config models/fit.yaml --store fits.db

  # Sixteen walkers on four workers with a fixed seed
  fitgraph fit models/nickel.yaml --walkers 16 --workers 4 --seed 42

  # Expose Prometheus metrics while fitting
  fitgraph fit models/nickel.yaml --metrics-addr :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.LoadFitConfig(ctx, configFile, nil)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("walkers") {
				cfg.Walkers = walkers
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if flags.Changed("iterations") {
				cfg.Iterations = iterations
			}
			if noFrack {
				cfg.Frack = false
			}
			if flags.Changed("store") {
				cfg.Store = storePath
			}
			cfg.Fixed = append(cfg.Fixed, mf.fixed...)
			if metricsAddr != "" {
				cfg.Telemetry.Metrics.Enabled = true
				cfg.Telemetry.Metrics.ListenAddress = metricsAddr
			}
			// Command line logging flags win over the config file.
			if flags.Changed("log-level") {
				cfg.Telemetry.Logging.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runFit(ctx, cmd, args[0], mf.params, cfg, top)
		},
	}

	addModelFlags(cmd, &mf)
	cmd.Flags().StringVar(&configFile, "config", "", "fit config file (YAML)")
	cmd.Flags().IntVarP(&walkers, "walkers", "n", 0, "number of walkers")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of parallel workers")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "refinement rounds per walker")
	cmd.Flags().BoolVar(&noFrack, "no-frack", false, "skip local refinement")
	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database for fit results")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().IntVar(&top, "top", 5, "number of walkers to print")

	return cmd
}

func runFit(ctx context.Context, cmd *cobra.Command, modelPath, paramsPath string, cfg *config.FitConfig, top int) error {
	tel, err := telemetry.NewTelemetry(cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.WithError(err).Warn("tracer shutdown failed")
		}
	}()
	if err := tel.Metrics.StartMetricsServer(ctx, tel.Logger); err != nil {
		return err
	}

	spec, err := config.NewModelLoader(tel.Logger).Load(ctx, modelPath, paramsPath)
	if err != nil {
		return err
	}
	registry := modules.NewRegistry()
	factory := func(ctx context.Context) (*engine.Model, error) {
		return engine.New(ctx, spec, registry,
			engine.WithFixed(cfg.Fixed...),
			engine.WithLogger(tel.Logger),
			engine.WithMetrics(tel.Metrics),
			engine.WithTracer(tel.Tracer),
			engine.WithMaxDraws(cfg.MaxDraws),
		)
	}

	opts := []fitter.Option{
		fitter.WithLogger(tel.Logger),
		fitter.WithMetrics(tel.Metrics),
		fitter.WithTracer(tel.Tracer),
	}
	if cfg.Store != "" {
		store, err := stores.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, fitter.WithStore(store))
	}

	res, err := fitter.New(factory, opts...).Run(ctx, fitter.OptionsFromConfig(cfg, modelPath))
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	printFitResult(cmd, res, top)
	return nil
}

func printFitResult(cmd *cobra.Command, res *fitter.FitResult, top int) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "fit %s: %d walkers in %s\n\n", res.ID, len(res.Walkers), res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "%-6s  %-14s  %-10s  %-6s  %s\n", "WALKER", "SCORE", "METHOD", "EVALS", "X")
	for i, wr := range res.Walkers {
		if i == top {
			break
		}
		coords := make([]string, len(wr.X))
		for j, v := range wr.X {
			coords[j] = fmt.Sprintf("%.4f", v)
		}
		fmt.Fprintf(w, "%-6d  %-14.6g  %-10s  %-6d  %s\n", wr.Index, wr.Score, wr.Method, wr.Evaluations, strings.Join(coords, ","))
	}

	best := res.Best()
	fmt.Fprintf(w, "\nbest walker %d:\n", best.Index)
	for _, name := range res.Free {
		fmt.Fprintf(w, "  %-16s %g\n", name, best.Parameters[name])
	}
}
