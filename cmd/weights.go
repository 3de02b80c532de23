package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/core"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// weightsCmd groups the incentive weight commands.
var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Normalize and edit incentive weights",
	Long: `Work with incentive weight sets offline.

Weights come from --weights-file, --weights overrides or the built-in defaults.
Every result is normalized so the weights sum to 1 on a two-decimal grid.

Subcommands:
  normalize - Print the normalized weights
  set       - Clamp one weight into [0,1] and renormalize`,
}

// weightsNormalizeCmd prints normalized weights.
var weightsNormalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Print the configured weights normalized to sum to 1",
	Long: `Normalize the configured weights so they sum to 1.

A set that sums to zero is printed unchanged.

Examples:
  tally weights normalize --weights lines_added=3,commit_count=1
  tally weights normalize --weights-file rule.yaml --output json`,
	PreRunE: configSetupWrapper,
	Run:     runExecutor("Error normalizing weights", core.ExecuteWeightsNormalize),
}

// weightsSetCmd clamps one weight and renormalizes the set.
var weightsSetCmd = &cobra.Command{
	Use:   "set DIMENSION VALUE",
	Short: "Set one weight, clamp it into [0,1] and renormalize",
	Long: `Write VALUE into DIMENSION of the configured weights, clamped into [0,1],
then normalize the whole set.

With --save the result is written back to --weights-file.

Dimensions: lines_added, commit_count, session_duration_hours, agent_requests, files_changed

Examples:
  tally weights set agent_requests 0.5
  tally weights set lines_added 1.4 --weights-file rule.yaml --save`,
	Args:    cobra.ExactArgs(2),
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			contract.LogFatal("Error setting weight", fmt.Errorf("invalid weight value %q: %w", args[1], err))
		}
		if err := core.ExecuteWeightsSet(rootCtx, cfg, schema.Dimension(args[0]), value); err != nil {
			contract.LogFatal("Error setting weight", err)
		}
	},
}
