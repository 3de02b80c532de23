package schema

import "time"

// CacheStatus represents the status of the cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// SnapshotStatus represents the status of the snapshot store.
type SnapshotStatus struct {
	Backend        string           `json:"backend"`
	Connected      bool             `json:"connected"`
	TotalSnapshots int              `json:"total_snapshots"`
	TotalScores    int              `json:"total_scores"`
	LastPeriodKey  PeriodKey        `json:"last_period_key"`
	LastCreatedAt  time.Time        `json:"last_created_at"`
	TableSizes     map[string]int64 `json:"table_sizes"`
}

// SnapshotRecord represents a row from the tally_leaderboard_snapshots table.
type SnapshotRecord struct {
	PeriodType PeriodType
	PeriodKey  PeriodKey
	RuleID     int64
	Entries    []SnapshotEntry
	CreatedAt  time.Time
}

// ScoreRecord represents a row from the tally_contribution_scores table.
// ProjectID is nil for the per-member aggregate row.
type ScoreRecord struct {
	UserEmail            string
	ProjectID            *int64
	PeriodType           PeriodType
	PeriodKey            PeriodKey
	RuleID               int64
	LinesAdded           int32
	LinesRemoved         int32
	CommitCount          int32
	FilesChanged         int32
	SessionDurationHours float64
	AgentRequests        int32
	ScoreBreakdown       map[Dimension]float64
	TotalScore           float64
	Rank                 *int32
	HookAdopted          bool
}
