package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/core"
)

// contribCmd groups the contribution row commands.
var contribCmd = &cobra.Command{
	Use:   "contrib",
	Short: "Fetch and aggregate git contribution rows",
	Long: `Work with daily git contribution rows.

Rows are read from --input (a JSON array) or fetched from the backend:
one project with --project, one member with --email, otherwise every active project.

Subcommands:
  aggregate - Sum rows by project, user or day
  rows      - Print the raw rows`,
}

// contribAggregateCmd sums contribution rows.
var contribAggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Sum contribution rows by project, user or day",
	Long: `Fold contribution rows by --group-by and print the sums.

Projects and users are sorted by lines added, days chronologically.
Use --in-period to keep only rows inside the selected period.

Examples:
  # All active projects, grouped by project
  tally contrib aggregate

  # Rows exported earlier, grouped by author for one week
  tally contrib aggregate --input rows.json --group-by user --in-period --period 2024-W10`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Error aggregating contributions", core.ExecuteAggregate),
}

// contribRowsCmd prints raw contribution rows.
var contribRowsCmd = &cobra.Command{
	Use:   "rows",
	Short: "Print the raw contribution rows",
	Long: `Print contribution rows as fetched, before any aggregation.

Examples:
  tally contrib rows --project 3 --output json --output-file rows.json
  tally contrib rows --email dev@example.com`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Error listing contributions", core.ExecuteContributions),
}
