package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitgraph/fitgraph/pkg/config"
)

func newWatchCommand() *cobra.Command {
	var (
		mf       modelFlags
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch MODEL",
		Short: "Re-plan a model whenever its files change",
		Long: `Print the plan of a model, then rebuild and print it again every time
the model or parameters file is saved. Build errors are reported and the
watch continues. Stop with Ctrl-C.`,
		Example: `  # Watch a model and its parameters file
  fitgraph watch models/nickel.yaml --params models/parameters.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			replan := func() error {
				m, err := buildModel(ctx, args[0], mf)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "--- %s\n", time.Now().Format(time.TimeOnly))
				return printPlan(w, m, false)
			}
			if err := replan(); err != nil {
				logger.WithError(err).Error("initial build failed")
			}

			paths := []string{args[0]}
			if mf.params != "" {
				paths = append(paths, mf.params)
			}
			return config.Watch(ctx, paths, debounce, logger, replan)
		},
	}

	addModelFlags(cmd, &mf)
	cmd.Flags().DurationVar(&debounce, "debounce", config.DefaultDebounce, "quiet period before re-planning")

	return cmd
}
