// Package parquet exports tally data to Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/tallyhq/tally/schema"
)

// SnapshotRow is one ranked member of a stored leaderboard snapshot.
// Snapshots are flattened so each entry becomes a row.
type SnapshotRow struct {
	PeriodType string    `parquet:"period_type,snappy,dict"`
	PeriodKey  string    `parquet:"period_key,snappy,dict"`
	RuleID     int64     `parquet:"rule_id,snappy"`
	CreatedAt  time.Time `parquet:"created_at,snappy"`
	Rank       int32     `parquet:"rank,snappy"`
	UserEmail  string    `parquet:"user_email,snappy"`
	TotalScore float64   `parquet:"total_score,snappy"`
}

// ScoreRow maps to the tally_contribution_scores table.
type ScoreRow struct {
	PeriodType string `parquet:"period_type,snappy,dict"`
	PeriodKey  string `parquet:"period_key,snappy,dict"`
	UserEmail  string `parquet:"user_email,snappy"`
	// ProjectID is null for the per-member aggregate row
	ProjectID            *int64  `parquet:"project_id,optional,snappy"`
	RuleID               int64   `parquet:"rule_id,snappy"`
	LinesAdded           int32   `parquet:"lines_added,snappy"`
	LinesRemoved         int32   `parquet:"lines_removed,snappy"`
	CommitCount          int32   `parquet:"commit_count,snappy"`
	FilesChanged         int32   `parquet:"files_changed,snappy"`
	SessionDurationHours float64 `parquet:"session_duration_hours,snappy"`
	AgentRequests        int32   `parquet:"agent_requests,snappy"`
	// ScoreBreakdown is the JSON-encoded per-dimension score
	ScoreBreakdown string  `parquet:"score_breakdown,snappy"`
	TotalScore     float64 `parquet:"total_score,snappy"`
	Rank           *int32  `parquet:"rank,optional,snappy"`
	HookAdopted    bool    `parquet:"hook_adopted,snappy"`
}

// ProjectAggregateRow is a project's summed contribution counters.
type ProjectAggregateRow struct {
	ProjectID    int64  `parquet:"project_id,snappy"`
	ProjectName  string `parquet:"project_name,snappy"`
	CommitCount  int64  `parquet:"commit_count,snappy"`
	LinesAdded   int64  `parquet:"lines_added,snappy"`
	LinesRemoved int64  `parquet:"lines_removed,snappy"`
	FilesChanged int64  `parquet:"files_changed,snappy"`
}

// LeaderboardRow is one member row of a leaderboard.
type LeaderboardRow struct {
	PeriodType  string  `parquet:"period_type,snappy,dict"`
	PeriodKey   string  `parquet:"period_key,snappy,dict"`
	Rank        *int32  `parquet:"rank,optional,snappy"`
	UserEmail   string  `parquet:"user_email,snappy"`
	TotalScore  float64 `parquet:"total_score,snappy"`
	HookAdopted bool    `parquet:"hook_adopted,snappy"`
	LinesAdded  int64   `parquet:"lines_added,snappy"`
	CommitCount int64   `parquet:"commit_count,snappy"`
}

// Write writes rows to w as a single Parquet file. The schema is derived
// from the struct tags of T.
func Write[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

// WriteFile writes rows to a new Parquet file at outputPath.
func WriteFile[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ConvertSnapshotRecords flattens snapshots into one row per entry.
func ConvertSnapshotRecords(records []schema.SnapshotRecord) []SnapshotRow {
	var result []SnapshotRow
	for _, rec := range records {
		for _, e := range rec.Entries {
			result = append(result, SnapshotRow{
				PeriodType: string(rec.PeriodType),
				PeriodKey:  string(rec.PeriodKey),
				RuleID:     rec.RuleID,
				CreatedAt:  rec.CreatedAt,
				Rank:       int32(e.Rank),
				UserEmail:  e.UserEmail,
				TotalScore: e.TotalScore,
			})
		}
	}
	return result
}

// ConvertScoreRecords converts schema.ScoreRecord to ScoreRow for Parquet export.
func ConvertScoreRecords(records []schema.ScoreRecord) []ScoreRow {
	result := make([]ScoreRow, len(records))
	for i, r := range records {
		result[i] = ScoreRow{
			PeriodType:           string(r.PeriodType),
			PeriodKey:            string(r.PeriodKey),
			UserEmail:            r.UserEmail,
			ProjectID:            r.ProjectID,
			RuleID:               r.RuleID,
			LinesAdded:           r.LinesAdded,
			LinesRemoved:         r.LinesRemoved,
			CommitCount:          r.CommitCount,
			FilesChanged:         r.FilesChanged,
			SessionDurationHours: r.SessionDurationHours,
			AgentRequests:        r.AgentRequests,
			ScoreBreakdown:       encodeBreakdown(r.ScoreBreakdown),
			TotalScore:           r.TotalScore,
			Rank:                 r.Rank,
			HookAdopted:          r.HookAdopted,
		}
	}
	return result
}

// ConvertProjectAggregates converts project aggregates for Parquet export.
func ConvertProjectAggregates(aggs []schema.ProjectAggregate) []ProjectAggregateRow {
	result := make([]ProjectAggregateRow, len(aggs))
	for i, a := range aggs {
		result[i] = ProjectAggregateRow{
			ProjectID:    a.ProjectID,
			ProjectName:  a.ProjectName,
			CommitCount:  int64(a.CommitCount),
			LinesAdded:   int64(a.LinesAdded),
			LinesRemoved: int64(a.LinesRemoved),
			FilesChanged: int64(a.FilesChanged),
		}
	}
	return result
}

// ConvertLeaderboard converts leaderboard entries for Parquet export.
func ConvertLeaderboard(lb schema.LeaderboardResponse) []LeaderboardRow {
	result := make([]LeaderboardRow, len(lb.Entries))
	for i, e := range lb.Entries {
		var rank *int32
		if e.Rank != nil {
			v := int32(*e.Rank)
			rank = &v
		}
		result[i] = LeaderboardRow{
			PeriodType:  string(lb.PeriodType),
			PeriodKey:   string(lb.PeriodKey),
			Rank:        rank,
			UserEmail:   e.UserEmail,
			TotalScore:  e.TotalScore,
			HookAdopted: e.HookAdopted,
			LinesAdded:  int64(e.LinesAdded),
			CommitCount: int64(e.CommitCount),
		}
	}
	return result
}
