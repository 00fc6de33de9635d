package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

type scoreOutput struct {
	Likelihood float64            `json:"likelihood"`
	Prior      float64            `json:"prior"`
	Objective  float64            `json:"objective"`
	Parameters map[string]float64 `json:"parameters"`
}

func newScoreCommand() *cobra.Command {
	var (
		mf     modelFlags
		coords string
		root   string
	)

	cmd := &cobra.Command{
		Use:   "score MODEL",
		Short: "Evaluate a model at one coordinate vector",
		Long: `Evaluate a model at a point of the unit cube.

With the default objective root the likelihood, prior and floored objective
are printed together with the physical parameter values. With --root output
the outputs of the output pass are printed as YAML instead.`,
		Example: `  # Score at the centre of a two parameter model
  fitgraph score models/nickel.yaml --x 0.5,0.5

  # Print the model light curve
  fitgraph score models/nickel.yaml --x 0.5,0.5 --root output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := parseCoordinates(coords)
			if err != nil {
				return err
			}
			m, err := buildModel(cmd.Context(), args[0], mf)
			if err != nil {
				return err
			}

			if root != engine.KindObjective {
				outputs, err := m.Run(x, root)
				if err != nil {
					return err
				}
				// YAML keeps non-finite values that JSON cannot encode.
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				defer enc.Close()
				return enc.Encode(map[string]any(outputs))
			}

			params, err := m.PhysicalValues(x)
			if err != nil {
				return err
			}
			ll, err := m.Likelihood(x)
			if err != nil {
				return err
			}
			lp, err := m.Prior(x)
			if err != nil {
				return err
			}
			out := scoreOutput{Likelihood: ll, Prior: lp, Objective: m.Objective(x), Parameters: params}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			for _, name := range m.FreeParameters() {
				fmt.Fprintf(w, "%-16s %g\n", name, params[name])
			}
			fmt.Fprintf(w, "likelihood: %g\nprior: %g\nobjective: %g\n", out.Likelihood, out.Prior, out.Objective)
			return nil
		},
	}

	addModelFlags(cmd, &mf)
	cmd.Flags().StringVar(&coords, "x", "", "comma separated unit-cube coordinates, one per free parameter")
	cmd.Flags().StringVar(&root, "root", engine.KindObjective, "root to evaluate (objective or output)")

	return cmd
}
