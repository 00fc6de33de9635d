package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fitgraph/fitgraph/pkg/stores"
)

func newWalkersCommand() *cobra.Command {
	var (
		storePath string
		fitID     string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "walkers",
		Short: "List stored fits and walkers",
		Long: `List fits recorded by 'fit --store'.

Without --fit the most recent fits are listed. With --fit the walkers of
that fit are listed best first.`,
		Example: `  # List recent fits
  fitgraph walkers --store fits.db

  # Show the walkers of one fit
  fitgraph walkers --store fits.db --fit 5f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := stores.Open(ctx, storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if fitID == "" {
				fits, err := store.ListFits(ctx, limit, 0)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(w, fits)
				}
				fmt.Fprintf(w, "%-36s  %-10s  %-7s  %-14s  %s\n", "FIT", "STATUS", "WALKERS", "BEST", "MODEL")
				for _, f := range fits {
					best := "-"
					if f.BestScore != nil {
						best = fmt.Sprintf("%.6g", *f.BestScore)
					}
					fmt.Fprintf(w, "%-36s  %-10s  %-7d  %-14s  %s\n", f.ID, f.Status, f.Walkers, best, f.ModelPath)
				}
				return nil
			}

			if _, err := store.GetFit(ctx, fitID); err != nil {
				return err
			}
			walkers, err := store.ListWalkers(ctx, fitID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(w, walkers)
			}
			fmt.Fprintf(w, "%-6s  %-14s  %-10s  %s\n", "WALKER", "SCORE", "METHOD", "PARAMETERS")
			for _, wr := range walkers {
				fmt.Fprintf(w, "%-6d  %-14.6g  %-10s  %s\n", wr.Index, wr.Score, wr.Method, formatParameters(wr.Parameters))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "fits.db", "SQLite database with fit results")
	cmd.Flags().StringVar(&fitID, "fit", "", "fit ID to show walkers for")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of fits to list")

	return cmd
}

func formatParameters(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%.4g", name, params[name])
	}
	return strings.Join(parts, " ")
}
