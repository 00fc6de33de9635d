package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitgraph/fitgraph/pkg/config"
	"github.com/fitgraph/fitgraph/pkg/engine"
	"github.com/fitgraph/fitgraph/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var (
		mf       modelFlags
		policies []string
	)

	cmd := &cobra.Command{
		Use:   "validate MODEL",
		Short: "Validate a model file",
		Long: `Validate a model file without evaluating it.

This command checks:
  - Task fields against the CUE task and parameter schemas
  - Task declarations against struct constraints
  - The dependency graph for cycles and missing roots
  - That every task resolves to a registered module
  - The model against the built-in lint policies and any --policy files

Lint findings with severity error fail validation. Other findings are
printed as warnings.`,
		Example: `  # Validate a model
  fitgraph validate models/nickel.yaml

  # Validate with a parameters file applied
  fitgraph validate models/nickel.yaml --params models/parameters.yaml

  # Add a directory of Rego lint policies
  fitgraph validate models/nickel.yaml --policy policies/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := buildModel(cmd.Context(), args[0], mf)
			if err != nil {
				var problems config.ValidationErrors
				if errors.As(err, &problems) {
					for _, p := range problems {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", p.Error())
					}
				}
				return err
			}

			if err := lintModel(cmd, m.Spec(), policies); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d tasks, %d free parameters, max depth %d)\n",
				args[0], len(m.Spec().Tasks), m.NumFree(), m.MaxDepth())
			return nil
		},
	}

	addModelFlags(cmd, &mf)
	cmd.Flags().StringSliceVar(&policies, "policy", nil, "Rego policy file or directory (repeatable)")

	return cmd
}

// lintModel evaluates the lint policies and prints every finding.
func lintModel(cmd *cobra.Command, spec *engine.Spec, paths []string) error {
	ctx := cmd.Context()
	eng, err := policy.NewEngine(ctx, logger)
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		if err := eng.LoadPolicies(ctx, paths); err != nil {
			return err
		}
	}

	res, err := eng.Evaluate(ctx, spec)
	if err != nil {
		return err
	}
	for _, v := range res.Violations {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", v)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "  [warning] %s\n", w)
	}
	if !res.Allowed {
		return fmt.Errorf("model failed %d lint checks", len(res.Blocking()))
	}
	return nil
}
