// Package cmd defines the command-line interface for tally.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(periodsCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(rangeCmd)
	rootCmd.AddCommand(weightsCmd)
	rootCmd.AddCommand(contribCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(teamCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the weights subcommands to the parent weights command
	weightsCmd.AddCommand(weightsNormalizeCmd)
	weightsCmd.AddCommand(weightsSetCmd)

	// Add the contrib subcommands to the parent contrib command
	contribCmd.AddCommand(contribAggregateCmd)
	contribCmd.AddCommand(contribRowsCmd)

	// Add the score subcommands to the parent score command
	scoreCmd.AddCommand(scorePreviewCmd)

	// Add the rules subcommands to the parent rules command
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesSetCmd)

	// Add the snapshot subcommands to the parent snapshot command
	snapshotCmd.AddCommand(snapshotStatusCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotClearCmd)
	snapshotCmd.AddCommand(snapshotExportCmd)
	snapshotCmd.AddCommand(snapshotMigrateCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("api-url", contract.DefaultAPIURL, "Base URL of the usage and incentive backend")
	rootCmd.PersistentFlags().String("api-key", "", "API key sent as x-api-key (prefer TALLY_API_KEY)")
	rootCmd.PersistentFlags().Float64("rps", contract.DefaultRequestsPerSecond, "Maximum backend requests per second")
	rootCmd.PersistentFlags().String("timeout", "", "Backend request timeout (e.g., 15s or 1m)")
	rootCmd.PersistentFlags().StringP("period-type", "t", string(schema.WeeklyPeriod), "Period type: daily or weekly or monthly")
	rootCmd.PersistentFlags().StringP("period", "p", "", "Period key (e.g., 2024-W10 or 2024-03); defaults to the current period")
	rootCmd.PersistentFlags().String("at", "", "Anchor time in ISO8601 or time ago (defaults to now)")
	rootCmd.PersistentFlags().Int64("rule", contract.DefaultRuleID, "Incentive rule id")
	rootCmd.PersistentFlags().String("email", "", "Restrict to one member email")
	rootCmd.PersistentFlags().Int64("project", 0, "Restrict to one project id")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of results to display")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Response cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("snapshot-backend", "", "Snapshot backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("snapshot-db-connect", "", "Database connection string for snapshots (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("log-mode", contract.DefaultLogMode, "Log mode: dev or prod")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("weights-file", "", "YAML file with weights and caps")
	rootCmd.PersistentFlags().StringToString("weights", nil, "Weight overrides (e.g., lines_added=0.4,commit_count=0.2)")
	rootCmd.PersistentFlags().StringToString("caps", nil, "Cap overrides (e.g., agent_requests_per_day=300)")
	rootCmd.PersistentFlags().Bool("save", false, "Persist the result (score runs or the weights file)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of periodsCmd to Viper
	periodsCmd.Flags().IntP("count", "n", contract.DefaultPeriodCount, "Number of period keys to list")
	if err := viper.BindPFlags(periodsCmd.Flags()); err != nil {
		contract.LogFatal("Error binding periods flags", err)
	}

	// Bind all persistent flags of contribCmd to Viper
	contribCmd.PersistentFlags().String("input", "", "JSON file of contribution rows read instead of the backend")
	contribCmd.PersistentFlags().String("group-by", string(schema.GroupByProject), "Aggregation key: project or user or day")
	contribCmd.PersistentFlags().Bool("in-period", false, "Keep only rows inside the selected period")
	if err := viper.BindPFlags(contribCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding contrib flags", err)
	}

	// Bind all flags of leaderboardCmd to Viper
	leaderboardCmd.Flags().Bool("hook-only", false, "Only show members with the session hook installed")
	if err := viper.BindPFlags(leaderboardCmd.Flags()); err != nil {
		contract.LogFatal("Error binding leaderboard flags", err)
	}

	// Bind all flags of rulesSetCmd to Viper
	rulesSetCmd.Flags().Bool("recalculate", false, "Ask the backend to rescore after saving the rule")
	if err := viper.BindPFlags(rulesSetCmd.Flags()); err != nil {
		contract.LogFatal("Error binding rules set flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("listen", contract.DefaultListenAddr, "Address the HTTP API listens on")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of snapshotMigrateCmd to Viper
	snapshotMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(snapshotMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding snapshot migrate flags", err)
	}
}
