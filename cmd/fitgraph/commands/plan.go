package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fitgraph/fitgraph/pkg/engine"
)

type planEntry struct {
	Depth int      `json:"depth"`
	Task  string   `json:"task"`
	Kind  string   `json:"kind"`
	Class string   `json:"class"`
	Roots []string `json:"roots"`
	Free  bool     `json:"free"`
}

type planOutput struct {
	MaxDepth int         `json:"max_depth"`
	Free     []string    `json:"free"`
	Stack    []planEntry `json:"stack"`
}

func newPlanCommand() *cobra.Command {
	var (
		mf  modelFlags
		dot bool
	)

	cmd := &cobra.Command{
		Use:   "plan MODEL",
		Short: "Print the call stack of a model",
		Long: `Build a model and print its call stack.

The plan shows:
  - Every task with its dependency depth, kind and roots
  - The free parameters in coordinate order
  - Optionally the stack as a Graphviz DOT graph`,
		Example: `  # Print the call stack
  fitgraph plan models/nickel.yaml

  # Apply a parameters file and hold texplosion fixed
  fitgraph plan models/nickel.yaml --params models/parameters.yaml --fixed texplosion

  # Render the stack with Graphviz
  fitgraph plan models/nickel.yaml --dot | dot -Tsvg > plan.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := buildModel(cmd.Context(), args[0], mf)
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), m, dot)
		},
	}

	addModelFlags(cmd, &mf)
	cmd.Flags().BoolVar(&dot, "dot", false, "print the call stack as a DOT graph")

	return cmd
}

func addModelFlags(cmd *cobra.Command, mf *modelFlags) {
	cmd.Flags().StringVarP(&mf.params, "params", "p", "", "parameters file merged over the model")
	cmd.Flags().StringSliceVar(&mf.fixed, "fixed", nil, "parameters to hold at their fixed value")
}

func printPlan(w io.Writer, m *engine.Model, dot bool) error {
	if dot {
		_, err := io.WriteString(w, m.CallStack().ToDOT())
		return err
	}

	if jsonOutput {
		free := make(map[string]bool)
		for _, name := range m.FreeParameters() {
			free[name] = true
		}
		out := planOutput{MaxDepth: m.MaxDepth(), Free: m.FreeParameters()}
		for _, e := range m.CallStack().Entries {
			out.Stack = append(out.Stack, planEntry{
				Depth: e.Depth,
				Task:  e.Task.Name,
				Kind:  e.Task.Kind,
				Class: e.Task.ClassName(),
				Roots: e.Roots,
				Free:  free[e.Task.Name],
			})
		}
		return writeJSON(w, out)
	}

	fmt.Fprint(w, m.Describe())
	fmt.Fprintf(w, "\nmax depth: %d\n", m.MaxDepth())
	fmt.Fprintf(w, "free parameters (%d): %s\n", m.NumFree(), strings.Join(m.FreeParameters(), ", "))
	return nil
}
