package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/tallyhq/tally/core/agg"
	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/core/score"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// ErrRuleNotFound is returned when the configured incentive rule does not exist.
var ErrRuleNotFound = errors.New("incentive rule not found")

// ErrNoOverride is returned when a rule update carries neither weights nor caps.
var ErrNoOverride = errors.New("no weights or caps given")

// ScoreRun is a local score computation, optionally compared against the
// rule as currently saved.
type ScoreRun struct {
	Rule   schema.IncentiveRule
	Result *score.Result

	// Baseline and Changes are set only when weights or caps were overridden.
	Baseline *score.Result
	Changes  []schema.RankChange
}

// FindRule returns the incentive rule with the given id. A rule without
// weights falls back to the default weights.
func FindRule(ctx context.Context, client contract.BackendClient, ruleID int64) (schema.IncentiveRule, error) {
	rules, err := client.IncentiveRules(ctx)
	if err != nil {
		return schema.IncentiveRule{}, err
	}
	for _, r := range rules {
		if r.ID == ruleID {
			if len(r.Weights) == 0 {
				r.Weights = schema.GetDefaultWeights()
			}
			return r, nil
		}
	}
	return schema.IncentiveRule{}, fmt.Errorf("%w: id %d", ErrRuleNotFound, ruleID)
}

// applyOverrides returns a copy of rule with the configured weights and caps
// merged in. The merged weights are normalized like the dashboard does on save.
func applyOverrides(rule schema.IncentiveRule, weights schema.WeightSet, caps schema.CapSet) schema.IncentiveRule {
	out := rule
	out.Weights = rule.Weights.Clone()
	if out.Weights == nil {
		out.Weights = schema.WeightSet{}
	}
	maps.Copy(out.Weights, weights)
	out.Weights = agg.NormalizeWeights(out.Weights)

	out.Caps = schema.CapSet{}
	maps.Copy(out.Caps, rule.Caps)
	maps.Copy(out.Caps, caps)
	return out
}

func hasOverrides(cfg *contract.Config) bool {
	return len(cfg.Weights) > 0 || len(cfg.Caps) > 0
}

// GetScoreResults scores the configured period locally. With weight or cap
// overrides the run is compared to the saved rule. With cfg.Save the result
// is written to the snapshot store.
func GetScoreResults(ctx context.Context, cfg *contract.Config, client contract.BackendClient, mgr contract.CacheManager) (*ScoreRun, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	rng, err := period.Range(cfg.PeriodType, cfg.PeriodKey)
	if err != nil {
		return nil, err
	}
	logPeriodHeader(ctx, "Scoring", cfg, rng)

	rule, err := FindRule(ctx, client, cfg.RuleID)
	if err != nil {
		return nil, err
	}

	// Contributions come from every project; the email filter only narrows
	// sessions and usage when scoring a single member.
	rowsCfg := cfg.Clone()
	rowsCfg.Email = ""
	rows, source, err := LoadContributionRows(ctx, rowsCfg, client)
	if err != nil {
		return nil, err
	}
	logSourceHeader(ctx, source, len(rows))

	start, end := schema.NewDate(rng.Start), schema.NewDate(rng.End)
	sessions, err := client.Sessions(ctx, cfg.Email, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}
	usage, err := client.DailyUsage(ctx, cfg.Email, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily usage: %w", err)
	}

	in := score.Input{
		PeriodType:    cfg.PeriodType,
		PeriodKey:     cfg.PeriodKey,
		Rule:          rule,
		Contributions: rows,
		Sessions:      sessions,
		Usage:         usage,
	}
	run := &ScoreRun{Rule: rule}
	if !hasOverrides(cfg) {
		if run.Result, err = score.Calculate(in); err != nil {
			return nil, err
		}
	} else {
		if run.Baseline, err = score.Calculate(in); err != nil {
			return nil, err
		}
		in.Rule = applyOverrides(rule, cfg.Weights, cfg.Caps)
		if run.Result, err = score.Calculate(in); err != nil {
			return nil, err
		}
		run.Rule = in.Rule
		run.Changes = score.Compare(run.Baseline, run.Result)
	}

	if cfg.Save {
		if err := saveScoreRun(mgr, run.Result); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// saveScoreRun writes the snapshot and score rows of a result.
func saveScoreRun(mgr contract.CacheManager, res *score.Result) error {
	var store contract.SnapshotStore
	if mgr != nil {
		store = mgr.GetSnapshotStore()
	}
	if store == nil {
		return errors.New("snapshot store is not configured")
	}
	rec := schema.SnapshotRecord{
		PeriodType: res.PeriodType,
		PeriodKey:  res.PeriodKey,
		RuleID:     res.RuleID,
		Entries:    res.Snapshot,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.SaveSnapshot(rec); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	if err := store.SaveScores(res.PeriodType, res.PeriodKey, res.Records); err != nil {
		return fmt.Errorf("failed to save scores: %w", err)
	}
	return nil
}

// GetSnapshotLeaderboard returns the stored snapshot of the configured period
// shaped as a leaderboard.
func GetSnapshotLeaderboard(cfg *contract.Config, mgr contract.CacheManager) (schema.LeaderboardResponse, error) {
	var store contract.SnapshotStore
	if mgr != nil {
		store = mgr.GetSnapshotStore()
	}
	if store == nil {
		return schema.LeaderboardResponse{}, errors.New("snapshot store is not configured")
	}
	rec, err := store.GetSnapshot(cfg.PeriodType, cfg.PeriodKey)
	if err != nil {
		return schema.LeaderboardResponse{}, err
	}
	created := rec.CreatedAt
	out := schema.LeaderboardResponse{
		PeriodType:  rec.PeriodType,
		PeriodKey:   rec.PeriodKey,
		GeneratedAt: &created,
		Entries:     make([]schema.LeaderboardEntry, len(rec.Entries)),
	}
	for i, e := range rec.Entries {
		rank := e.Rank
		out.Entries[i] = schema.LeaderboardEntry{
			Rank:        &rank,
			UserEmail:   e.UserEmail,
			TotalScore:  e.TotalScore,
			HookAdopted: true,
		}
	}
	return out, nil
}
