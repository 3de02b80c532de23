package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tallyhq/tally/core"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/iocache"
	"github.com/tallyhq/tally/schema"
)

// snapshotBackendConfig reads and validates the snapshot backend settings.
func snapshotBackendConfig() (schema.DatabaseBackend, string, error) {
	backend, err := contract.ParseDatabaseBackend(viper.GetString("snapshot-backend"))
	if err != nil {
		return "", "", fmt.Errorf("snapshot: %w", err)
	}
	connStr := viper.GetString("snapshot-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// snapshotSetup loads minimal configuration needed for snapshot operations.
// This is used by commands that need snapshot access without full shared setup.
func snapshotSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend, connStr, err := snapshotBackendConfig()
	if err != nil {
		return err
	}

	// Initialize stores with the loaded config (no response cache for snapshot commands)
	if err := iocache.InitStores("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize snapshots: %w", err)
	}

	cfg.SnapshotBackend = backend
	cfg.SnapshotDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	cacheManager = iocache.Manager

	return nil
}

// snapshotSetupWrapper wraps snapshotSetup to provide PreRunE for snapshot commands.
func snapshotSetupWrapper(_ *cobra.Command, _ []string) error {
	return snapshotSetup()
}

// snapshotShowSetup validates the full config for period selection and opens
// only the snapshot store.
func snapshotShowSetup(_ *cobra.Command, _ []string) error {
	if err := configSetup(); err != nil {
		return err
	}
	if err := iocache.InitStores("", "", cfg.SnapshotBackend, cfg.SnapshotDBConnect); err != nil {
		return fmt.Errorf("failed to initialize snapshots: %w", err)
	}
	cacheManager = iocache.Manager
	return nil
}

// snapshotMigrateSetup loads minimal configuration needed for migrate operations.
// It does NOT open the store, so migrations can run on a fresh database.
func snapshotMigrateSetup(_ *cobra.Command, _ []string) error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	backend, connStr, err := snapshotBackendConfig()
	if err != nil {
		return err
	}
	cfg.SnapshotBackend = backend
	cfg.SnapshotDBConnect = connStr
	return nil
}

// sqliteFilePath returns the SQLite file a backend uses, honoring an explicit path.
func sqliteFilePath(connStr, def string) string {
	if connStr != "" {
		return connStr
	}
	return def
}

// snapshotCmd focused on local score run storage.
//
// Note: Snapshot subcommands use minimal initialization instead of the full
// sharedSetup. They never talk to the backend.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage locally stored score runs",
	Long: `Manage score runs saved by 'tally score preview --save'.

Each run stores a leaderboard snapshot and one score row per member, keyed by
period type and period key. Saving a period again replaces its run.

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show snapshot store statistics
  show    - Print the stored leaderboard of a period
  export  - Export data to Parquet for analytics
  clear   - Remove all stored runs
  migrate - Run database schema migrations

Examples:
  # Check snapshot status
  tally snapshot status --snapshot-backend sqlite

  # Export for analysis in pandas/DuckDB
  tally snapshot export --snapshot-backend sqlite --output-file tally-data`,
}

// snapshotStatusCmd shows snapshot store status.
var snapshotStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display snapshot store statistics and connection details",
	PreRunE: snapshotSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store := iocache.Manager.GetSnapshotStore()
		if store == nil {
			contract.LogFatal("Failed to get snapshot status", errors.New("no snapshot backend configured"))
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get snapshot status", err)
		}
		iocache.PrintSnapshotStatus(os.Stdout, status)
	},
}

// snapshotShowCmd prints a stored snapshot.
var snapshotShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored leaderboard of a period",
	Long: `Print the leaderboard snapshot saved for a period.

Examples:
  tally snapshot show --snapshot-backend sqlite --period 2024-W10`,
	PreRunE: snapshotShowSetup,
	Run:     runExecutor("Failed to show snapshot", core.ExecuteSnapshotShow),
}

// snapshotClearCmd clears the snapshot data.
var snapshotClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored score runs",
	Long: `Delete all stored snapshots, score rows and the schema version.

WARNING: This action cannot be undone. Consider exporting data first.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the snapshot tables

Examples:
  tally snapshot export --snapshot-backend sqlite --output-file backup
  tally snapshot clear --snapshot-backend sqlite`,
	PreRunE: snapshotMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		path := sqliteFilePath(cfg.SnapshotDBConnect, contract.GetSnapshotDBFilePath())
		if err := iocache.ClearSnapshots(cfg.SnapshotBackend, path, cfg.SnapshotDBConnect); err != nil {
			contract.LogFatal("Failed to clear snapshot data", err)
		}
		fmt.Println("Snapshot data cleared successfully.")
	},
}

// snapshotExportCmd exports snapshot data to Parquet files.
var snapshotExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored score runs to Parquet for BI tools and analytics",
	Long: `Export all stored score runs to Parquet format.

Writes two files next to --output-file:
- <output-file>.snapshots.parquet - one row per ranked member and snapshot
- <output-file>.scores.parquet    - per-member raw dimensions and score breakdown

Requires: --output-file parameter

Examples:
  tally snapshot export --snapshot-backend sqlite --output-file tally-data
  duckdb -c "SELECT * FROM read_parquet('tally-data.scores.parquet') LIMIT 10"`,
	PreRunE: snapshotSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExportSnapshots(os.Stdout, iocache.Manager.GetSnapshotStore(), cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export snapshot data", err)
		}
	},
}

// snapshotMigrateCmd runs database migrations for the snapshot store.
var snapshotMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the snapshot store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  tally snapshot migrate --snapshot-backend sqlite

  # Rollback to initial state
  tally snapshot migrate --snapshot-backend sqlite --target-version 0`,
	PreRunE: snapshotMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		res, err := iocache.MigrateSnapshots(cfg.SnapshotBackend, cfg.SnapshotDBConnect, targetVersion)
		if err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		if !res.Changed {
			fmt.Printf("Snapshot schema already at version %d.\n", res.To)
			return
		}
		fmt.Printf("Snapshot schema migrated from version %d to %d.\n", res.From, res.To)
	},
}
