// Package outwriter has output and writer logic.
package outwriter

import (
	"github.com/tallyhq/tally/core/score"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WritePeriods prints period keys with their date ranges.
func (ow *OutWriter) WritePeriods(pt schema.PeriodType, keys []schema.PeriodKey, cfg *contract.Config) error {
	return WritePeriods(pt, keys, cfg)
}

// WriteWeights prints a weight set.
func (ow *OutWriter) WriteWeights(weights schema.WeightSet, cfg *contract.Config) error {
	return WriteWeights(weights, cfg)
}

// WriteProjects prints contribution totals per project.
func (ow *OutWriter) WriteProjects(aggs []schema.ProjectAggregate, cfg *contract.Config) error {
	return WriteProjectAggregates(aggs, cfg)
}

// WriteUsers prints contribution totals per member.
func (ow *OutWriter) WriteUsers(aggs []schema.UserAggregate, cfg *contract.Config) error {
	return WriteUserAggregates(aggs, cfg)
}

// WriteDays prints contribution totals per day.
func (ow *OutWriter) WriteDays(aggs []schema.DayAggregate, cfg *contract.Config) error {
	return WriteDayAggregates(aggs, cfg)
}

// WriteContributions prints raw contribution rows.
func (ow *OutWriter) WriteContributions(rows []schema.ContributionRow, cfg *contract.Config) error {
	return WriteContributionRows(rows, cfg)
}

// WriteSessions prints session summaries.
func (ow *OutWriter) WriteSessions(sums []schema.SessionSummary, cfg *contract.Config) error {
	return WriteSessionSummaries(sums, cfg)
}

// WriteUsage prints usage summaries.
func (ow *OutWriter) WriteUsage(sums []schema.UsageSummary, cfg *contract.Config) error {
	return WriteUsageSummaries(sums, cfg)
}

// WriteLeaderboard prints the leaderboard of a period.
func (ow *OutWriter) WriteLeaderboard(lb schema.LeaderboardResponse, cfg *contract.Config) error {
	return WriteLeaderboard(lb, cfg)
}

// WriteScorePreview prints a local score run, optionally against a baseline.
func (ow *OutWriter) WriteScorePreview(res *score.Result, changes []schema.RankChange, cfg *contract.Config) error {
	return WriteScorePreview(res, changes, cfg)
}

// WriteRules prints incentive rules.
func (ow *OutWriter) WriteRules(rules []schema.IncentiveRule, cfg *contract.Config) error {
	return WriteIncentiveRules(rules, cfg)
}

// WriteTeam prints team seats with their spend.
func (ow *OutWriter) WriteTeam(team []schema.TeamMember, cfg *contract.Config) error {
	return WriteTeam(team, cfg)
}

// WriteAlerts prints alert rules and recent events.
func (ow *OutWriter) WriteAlerts(rules []schema.AlertRule, events []schema.AlertEvent, cfg *contract.Config) error {
	return WriteAlerts(rules, events, cfg)
}
