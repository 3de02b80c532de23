package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tallyhq/tally/core"
)

// periodsCmd lists recent period keys.
var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List the most recent period keys with their date ranges",
	Long: `List the last N period keys, newest first, anchored at --at (default now).

Weekly keys use the ISO-8601 week-year (YYYY-Www), monthly keys are YYYY-MM and
daily keys are YYYY-MM-DD. Each key is shown with its inclusive date range.

Examples:
  # Last 8 weeks
  tally periods

  # Last 12 months
  tally periods --period-type monthly --count 12

  # Weeks leading up to a past date
  tally periods --at 2024-01-01 --count 4`,
	PreRunE: configSetupWrapper,
	Run:     runExecutor("Error listing periods", core.ExecutePeriods),
}

// latestCmd prints the latest completed period and the current one.
var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the latest completed period and the one in progress",
	Long: `Show the two periods a scheduled recalculation should cover: the latest
completed period followed by the current, in-progress one.

Examples:
  tally latest
  tally latest --period-type monthly`,
	PreRunE: configSetupWrapper,
	Run:     runExecutor("Error resolving latest periods", core.ExecuteLatest),
}

// rangeCmd prints the date range of one period key.
var rangeCmd = &cobra.Command{
	Use:   "range [period-key]",
	Short: "Show the date range of a period key",
	Long: `Resolve a period key to its inclusive calendar date range.

Weekly ranges run Monday to Sunday, monthly ranges from the first to the last
day of the month.

Examples:
  tally range 2024-W01
  tally range 2024-02 --period-type monthly`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			viper.Set("period", args[0])
		}
		return configSetupWrapper(cmd, args)
	},
	Run: runExecutor("Error resolving period range", core.ExecuteRange),
}
