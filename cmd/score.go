package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/core"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// leaderboardCmd prints the backend leaderboard.
var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the backend leaderboard of a period",
	Long: `Fetch the leaderboard the backend computed for a period.

Examples:
  # Current week
  tally leaderboard

  # Last month as CSV, in the dashboard's column order
  tally leaderboard --period-type monthly --period 2024-02 --output csv --output-file board.csv

  # Only members with the session hook installed
  tally leaderboard --hook-only`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Error fetching leaderboard", core.ExecuteLeaderboard),
}

// scoreCmd groups the local scoring commands.
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score periods locally",
	Long: `Score a period with the same rules the backend uses, without writing to it.

Subcommands:
  preview - Score a period and compare weight overrides against the saved rule`,
}

// scorePreviewCmd scores a period locally.
var scorePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Score a period locally, optionally with weight overrides",
	Long: `Fetch contributions, sessions and usage for a period and score them locally.

Without overrides the saved rule is applied. With --weights, --caps or
--weights-file the overrides are merged into the rule and every member's rank
change is shown next to the new score.

With --save the run is stored in the snapshot store (see 'tally snapshot').

Examples:
  tally score preview --period 2024-W10
  tally score preview --weights agent_requests=0.4 --caps session_duration_hours_per_day=8
  tally score preview --snapshot-backend sqlite --save`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := sharedSetupWrapper(cmd, args); err != nil {
			return err
		}
		if cfg.Save && cfg.SnapshotBackend == schema.NoneBackend {
			contract.LogWarn("Score run will not be stored", errors.New("--save needs --snapshot-backend"))
		}
		return nil
	},
	Run: runExecutor("Error scoring period", core.ExecuteScorePreview),
}
