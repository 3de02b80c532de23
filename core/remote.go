package core

import (
	"context"
	"fmt"

	"github.com/tallyhq/tally/core/agg"
	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// GetPeriodKeys returns the last cfg.Count keys of the configured type,
// anchored at cfg.Now. A zero count uses the default.
func GetPeriodKeys(cfg *contract.Config) ([]schema.PeriodKey, error) {
	n := cfg.Count
	if n == 0 {
		n = contract.DefaultPeriodCount
	}
	return period.LastNKeys(cfg.PeriodType, cfg.Now, n)
}

// GetLeaderboardResults fetches the backend leaderboard of the configured period.
func GetLeaderboardResults(ctx context.Context, cfg *contract.Config, client contract.BackendClient) (schema.LeaderboardResponse, error) {
	if client == nil {
		return schema.LeaderboardResponse{}, ErrNoClient
	}
	return client.Leaderboard(ctx, cfg.PeriodType, cfg.PeriodKey, cfg.HookOnly)
}

// GetSessionResults summarizes the sessions that ended inside the configured period.
func GetSessionResults(ctx context.Context, cfg *contract.Config, client contract.BackendClient) ([]schema.SessionSummary, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	rng, err := period.Range(cfg.PeriodType, cfg.PeriodKey)
	if err != nil {
		return nil, err
	}
	logPeriodHeader(ctx, "Sessions", cfg, rng)
	sessions, err := client.Sessions(ctx, cfg.Email, schema.NewDate(rng.Start), schema.NewDate(rng.End))
	if err != nil {
		return nil, err
	}
	return agg.SummarizeSessions(sessions), nil
}

// GetUsageResults summarizes daily usage inside the configured period.
func GetUsageResults(ctx context.Context, cfg *contract.Config, client contract.BackendClient) ([]schema.UsageSummary, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	rng, err := period.Range(cfg.PeriodType, cfg.PeriodKey)
	if err != nil {
		return nil, err
	}
	logPeriodHeader(ctx, "Usage", cfg, rng)
	rows, err := client.DailyUsage(ctx, cfg.Email, schema.NewDate(rng.Start), schema.NewDate(rng.End))
	if err != nil {
		return nil, err
	}
	return agg.SummarizeUsage(rows), nil
}

// UpdateRule merges the configured weights and caps into a saved rule and
// writes it back. With cfg.Recalculate the backend rescores afterwards.
func UpdateRule(ctx context.Context, cfg *contract.Config, client contract.BackendClient) (schema.IncentiveRule, error) {
	if client == nil {
		return schema.IncentiveRule{}, ErrNoClient
	}
	if !hasOverrides(cfg) {
		return schema.IncentiveRule{}, ErrNoOverride
	}
	rule, err := FindRule(ctx, client, cfg.RuleID)
	if err != nil {
		return schema.IncentiveRule{}, err
	}
	next := applyOverrides(rule, cfg.Weights, cfg.Caps)
	if err := agg.ValidateWeights(next.Weights); err != nil {
		return schema.IncentiveRule{}, err
	}

	saved, err := client.UpdateIncentiveRule(ctx, rule.ID, schema.IncentiveRuleUpdate{
		Weights: next.Weights,
		Caps:    next.Caps,
	})
	if err != nil {
		return schema.IncentiveRule{}, fmt.Errorf("failed to update rule %d: %w", rule.ID, err)
	}
	if cfg.Recalculate {
		if err := client.RecalculateIncentiveRule(ctx, rule.ID); err != nil {
			return saved, fmt.Errorf("rule %d saved but recalculation failed: %w", rule.ID, err)
		}
	}
	return saved, nil
}

// GetTeamResults joins the team seats with the current billing cycle spend.
func GetTeamResults(ctx context.Context, client contract.BackendClient) ([]schema.TeamMember, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	members, err := client.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	spend, err := client.Spend(ctx)
	if err != nil {
		return nil, err
	}
	return schema.JoinSpend(members, spend), nil
}

// AlertsResult holds the alert rules and their most recent events.
type AlertsResult struct {
	Rules  []schema.AlertRule
	Events []schema.AlertEvent
}

// GetAlertResults fetches the alert rules and at most cfg.ResultLimit events.
func GetAlertResults(ctx context.Context, cfg *contract.Config, client contract.BackendClient) (*AlertsResult, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	rules, err := client.AlertRules(ctx)
	if err != nil {
		return nil, err
	}
	events, err := client.AlertEvents(ctx, cfg.ResultLimit)
	if err != nil {
		return nil, err
	}
	return &AlertsResult{Rules: rules, Events: events}, nil
}
