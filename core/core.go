// Package core has the executors behind the tally commands, the HTTP server
// and the MCP tools.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tallyhq/tally/core/agg"
	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/outwriter"
	"github.com/tallyhq/tally/schema"
)

// ExecutorFunc defines the function signature shared by the executors.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, client contract.BackendClient, mgr contract.CacheManager) error

// ExecutePeriods prints the last cfg.Count period keys with their date ranges.
func ExecutePeriods(_ context.Context, cfg *contract.Config, _ contract.BackendClient, _ contract.CacheManager) error {
	keys, err := GetPeriodKeys(cfg)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WritePeriods(cfg.PeriodType, keys, cfg)
}

// ExecuteRange prints the date range of the configured period key.
func ExecuteRange(_ context.Context, cfg *contract.Config, _ contract.BackendClient, _ contract.CacheManager) error {
	return outwriter.NewOutWriter().WritePeriods(cfg.PeriodType, []schema.PeriodKey{cfg.PeriodKey}, cfg)
}

// ExecuteLatest prints the latest completed period and the current one.
func ExecuteLatest(_ context.Context, cfg *contract.Config, _ contract.BackendClient, _ contract.CacheManager) error {
	keys, err := period.Latest(cfg.PeriodType, cfg.Now)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WritePeriods(cfg.PeriodType, keys, cfg)
}

// ExecuteWeightsNormalize prints the configured weights normalized to sum to 1.
// Without configured weights the default weights are used.
func ExecuteWeightsNormalize(_ context.Context, cfg *contract.Config, _ contract.BackendClient, _ contract.CacheManager) error {
	weights := cfg.Weights
	if len(weights) == 0 {
		weights = schema.GetDefaultWeights()
	}
	return outwriter.NewOutWriter().WriteWeights(agg.NormalizeWeights(weights), cfg)
}

// ExecuteWeightsSet clamps one weight into the configured set and prints the
// normalized result. With cfg.Save the weights file is rewritten.
func ExecuteWeightsSet(_ context.Context, cfg *contract.Config, key schema.Dimension, value float64) error {
	initial := cfg.Weights
	if len(initial) == 0 {
		initial = schema.GetDefaultWeights()
	}
	form := agg.NewWeightsForm(initial)
	if err := form.Set(schema.Dimension(strings.ToLower(string(key))), value); err != nil {
		return err
	}
	weights := form.Weights()

	if cfg.Save {
		if cfg.WeightsFile == "" {
			return errors.New("--weights-file is required with --save")
		}
		file := contract.WeightsFile{Weights: weights, Caps: cfg.Caps}
		if err := contract.SaveWeightsFile(cfg.WeightsFile, file); err != nil {
			return err
		}
	}
	return outwriter.NewOutWriter().WriteWeights(weights, cfg)
}

// ExecuteAggregate prints contribution totals grouped by cfg.GroupBy.
func ExecuteAggregate(ctx context.Context, cfg *contract.Config, client contract.BackendClient, _ contract.CacheManager) error {
	res, err := GetAggregateResults(ctx, cfg, client)
	if err != nil {
		return err
	}
	ow := outwriter.NewOutWriter()
	switch res.GroupBy {
	case schema.GroupByUser:
		return ow.WriteUsers(res.Users, cfg)
	case schema.GroupByDay:
		return ow.WriteDays(res.Days, cfg)
	default:
		return ow.WriteProjects(res.Projects, cfg)
	}
}

// ExecuteContributions prints the raw contribution rows selected by cfg.
func ExecuteContributions(ctx context.Context, cfg *contract.Config, client contract.BackendClient, _ contract.CacheManager) error {
	rows, source, err := LoadContributionRows(ctx, cfg, client)
	if err != nil {
		return err
	}
	logSourceHeader(ctx, source, len(rows))
	return outwriter.NewOutWriter().WriteContributions(rows, cfg)
}

// ExecuteLeaderboard prints the backend leaderboard of the configured period.
func ExecuteLeaderboard(ctx context.Context, cfg *contract.Config, client contract.BackendClient, _ contract.CacheManager) error {
	lb, err := GetLeaderboardResults(ctx, cfg, client)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteLeaderboard(lb, cfg)
}

// ExecuteScorePreview scores the configured period locally and prints the
// result, with rank changes when weights or caps were overridden.
func ExecuteScorePreview(ctx context.Context, cfg *contract.Config, client contract.BackendClient, mgr contract.CacheManager) error {
	run, err := GetScoreResults(ctx, cfg, client, mgr)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteScorePreview(run.Result, run.Changes, cfg)
}

// ExecuteSnapshotShow prints the stored snapshot of the configured period.
func ExecuteSnapshotShow(_ context.Context, cfg *contract.Config, _ contract.BackendClient, mgr contract.CacheManager) error {
	lb, err := GetSnapshotLeaderboard(cfg, mgr)
	if err != nil {
		if errors.Is(err, contract.ErrSnapshotNotFound) {
			return fmt.Errorf("no snapshot for %s %s: run 'tally score preview --save' first", cfg.PeriodType, cfg.PeriodKey)
		}
		return err
	}
	return outwriter.NewOutWriter().WriteLeaderboard(lb, cfg)
}

// ExecuteSessions prints per-member session summaries of the configured period.
func ExecuteSessions(ctx context.Context, cfg *contract.Config, client contract.BackendClient, _ contract.CacheManager) error {
	sums, err := GetSessionResults(ctx, cfg, client)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteSessions(sums, cfg)
}

// ExecuteUsage prints per-member usage summaries of the configured period.
func ExecuteUsage(ctx context.Context, cfg *contract.Config, client contract.BackendClient, _ contract.CacheManager) error {
	sums, err := GetUsageResults(ctx, cfg, client)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteUsage(sums, cfg)
}

// ExecuteRules prints every incentive rule.
func ExecuteRules(ctx context.Context, cfg *contract.Config, client contract.BackendClient, _ contract.CacheManager) error {
	if client == nil {
		return ErrNoClient
	}
	rules, err := client.IncentiveRules(ctx)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteRules(rules, cfg)
}

// ExecuteRuleUpdate saves the configured weights and caps into a rule and
// prints the saved rule.
func ExecuteRuleUpdate(ctx context.Context, cfg *contract.Config, client contract.BackendClient, _ contract.CacheManager) error {
	rule, err := UpdateRule(ctx, cfg, client)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteRules([]schema.IncentiveRule{rule}, cfg)
}

// ExecuteTeam prints team seats with their current spend.
func ExecuteTeam(ctx context.Context, cfg *contract.Config, client contract.BackendClient, _ contract.CacheManager) error {
	team, err := GetTeamResults(ctx, client)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteTeam(team, cfg)
}

// ExecuteAlerts prints alert rules and recent alert events.
func ExecuteAlerts(ctx context.Context, cfg *contract.Config, client contract.BackendClient, _ contract.CacheManager) error {
	res, err := GetAlertResults(ctx, cfg, client)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteAlerts(res.Rules, res.Events, cfg)
}
