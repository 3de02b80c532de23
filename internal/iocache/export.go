package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/parquet"
)

// ExportSnapshots writes the stored snapshots and score rows to two Parquet
// files named after outputFile.
func ExportSnapshots(w io.Writer, store contract.SnapshotStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("snapshot store is not initialized")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get snapshot status: %w", err)
	}
	if status.TotalSnapshots == 0 && status.TotalScores == 0 {
		return errors.New("no snapshot data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)

	snapshots, err := store.ListSnapshots()
	if err != nil {
		return fmt.Errorf("failed to retrieve snapshots: %w", err)
	}
	scores, err := store.ListScores()
	if err != nil {
		return fmt.Errorf("failed to retrieve scores: %w", err)
	}

	snapshotRows := parquet.ConvertSnapshotRecords(snapshots)
	snapshotsFile := outputFile + ".snapshots.parquet"
	if err := parquet.WriteFile(snapshotRows, snapshotsFile); err != nil {
		return fmt.Errorf("failed to write snapshots: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d snapshot entries from %d snapshots to: %s\n", len(snapshotRows), len(snapshots), snapshotsFile)

	scoreRows := parquet.ConvertScoreRecords(scores)
	scoresFile := outputFile + ".scores.parquet"
	if err := parquet.WriteFile(scoreRows, scoresFile); err != nil {
		return fmt.Errorf("failed to write scores: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d score rows to: %s\n", len(scoreRows), scoresFile)

	return nil
}
