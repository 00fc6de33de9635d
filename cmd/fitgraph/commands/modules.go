package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitgraph/fitgraph/pkg/modules"
)

func newModulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the built-in module classes",
		Long: `List every registered kind/class pair. A task resolves to its
(kind, class) factory first, then to a kind-agnostic class, then to the
default class of its kind. "*" marks kind-agnostic classes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			classes := modules.NewRegistry().Classes()
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), classes)
			}
			for _, c := range classes {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}
