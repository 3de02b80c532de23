// Package contract provides interfaces and shared utilities for tally's internal architecture.
package contract

import (
	"context"

	"github.com/tallyhq/tally/schema"
)

// BackendClient defines the backend operations used by the commands, the
// HTTP server and the MCP tools.
// This allows the core logic to be tested without a running backend.
type BackendClient interface {
	// --- Members / Usage ---

	// ListMembers returns every seat of the team.
	ListMembers(ctx context.Context) ([]schema.Member, error)

	// DailyUsage returns usage rows between start and end inclusive.
	// An empty email returns all members.
	DailyUsage(ctx context.Context, email string, start, end schema.Date) ([]schema.DailyUsage, error)

	// Spend returns the spend rows of the current billing cycle.
	Spend(ctx context.Context) ([]schema.SpendRow, error)

	// Sessions returns every session ending between start and end.
	Sessions(ctx context.Context, email string, start, end schema.Date) ([]schema.SessionRow, error)

	// --- Projects / Contributions ---

	// ListProjects returns projects, optionally filtered by status.
	ListProjects(ctx context.Context, status string) ([]schema.Project, error)

	// ProjectSummary returns a project with its participants and contribution rows.
	ProjectSummary(ctx context.Context, projectID int64) (schema.ProjectSummary, error)

	// MyContributions returns either raw rows (empty period) or the member's
	// score for the given period.
	MyContributions(ctx context.Context, email string, pt schema.PeriodType, key schema.PeriodKey) (schema.ContributionsResult, error)

	// --- Incentives ---

	// IncentiveRules returns all incentive rules.
	IncentiveRules(ctx context.Context) ([]schema.IncentiveRule, error)

	// UpdateIncentiveRule saves new weights and caps for a rule.
	UpdateIncentiveRule(ctx context.Context, ruleID int64, body schema.IncentiveRuleUpdate) (schema.IncentiveRule, error)

	// RecalculateIncentiveRule asks the backend to rescore the latest periods of a rule.
	RecalculateIncentiveRule(ctx context.Context, ruleID int64) error

	// Leaderboard returns the ranked members of a period.
	Leaderboard(ctx context.Context, pt schema.PeriodType, key schema.PeriodKey, hookOnly bool) (schema.LeaderboardResponse, error)

	// --- Alerts ---

	// AlertRules returns all alert rules.
	AlertRules(ctx context.Context) ([]schema.AlertRule, error)

	// AlertEvents returns the most recent alert events, at most limit when positive.
	AlertEvents(ctx context.Context, limit int) ([]schema.AlertEvent, error)
}

// CacheManager defines the interface for managing persistence stores.
// This allows the persistence layer to be mocked for testing.
type CacheManager interface {
	GetResponseStore() CacheStore
	GetSnapshotStore() SnapshotStore
}

// CacheStore defines the interface for cached backend responses.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// SnapshotStore defines the interface for locally computed score runs.
type SnapshotStore interface {
	// SaveSnapshot upserts the leaderboard snapshot of a period.
	SaveSnapshot(rec schema.SnapshotRecord) error

	// SaveScores replaces the score rows of a period.
	SaveScores(pt schema.PeriodType, key schema.PeriodKey, records []schema.ScoreRecord) error

	// GetSnapshot returns the snapshot of a period, or ErrSnapshotNotFound.
	GetSnapshot(pt schema.PeriodType, key schema.PeriodKey) (schema.SnapshotRecord, error)

	// ListSnapshots returns all snapshots, newest first.
	ListSnapshots() ([]schema.SnapshotRecord, error)

	// ListScores returns all score rows ordered by period and member.
	ListScores() ([]schema.ScoreRecord, error)

	// GetStatus returns status information about the snapshot store.
	GetStatus() (schema.SnapshotStatus, error)

	// Close closes the underlying connection.
	Close() error
}
