package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fitgraph/fitgraph/pkg/telemetry"
)

var (
	// Global flags
	logLevel   string
	logFormat  string
	jsonOutput bool

	// logger is built from the global flags before any command runs.
	logger = telemetry.NewNopLogger()
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fitgraph",
		Short: "fitgraph - dependency-ordered model pipelines and fitting",
		Long: `fitgraph evaluates a declaratively specified pipeline of modules.

Each task in a model file names its kind and inputs. fitgraph orders the
tasks into a call stack by dependency depth, negotiates settings between
producers and consumers, and evaluates the objective over the unit cube of
free parameters.

Features:
  - Model files in YAML or JSON, checked against CUE schemas
  - Built-in parameter, data, engine, transform and objective modules
  - Scripted modules via Starlark
  - Parallel walker draws with local refinement
  - Fit results persisted in SQLite`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := telemetry.DefaultConfig().Logging
			cfg.Level = logLevel
			cfg.Format = logFormat
			logger = telemetry.NewLoggerWithWriter(cfg, cmd.ErrOrStderr())
			cmd.SetContext(logger.WithContext(cmd.Context()))
			return nil
		},
	}

	defaultLevel := os.Getenv("LOG_LEVEL")
	if defaultLevel == "" {
		defaultLevel = "info"
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console or json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newScoreCommand())
	rootCmd.AddCommand(newFitCommand())
	rootCmd.AddCommand(newWalkersCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newModulesCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"version":    version,
					"commit":     commit,
					"build_date": buildDate,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fitgraph %s (commit: %s, built: %s)\n", version, commit, buildDate)
			return nil
		},
	}
}
