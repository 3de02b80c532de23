package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tallyhq/tally/core"
	"github.com/tallyhq/tally/core/agg"
	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
	client  contract.BackendClient
	now     func() time.Time
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// applyPeriod sets the period type and key of cfg from the request. A missing
// key resolves to the period containing now.
func (h *toolHandler) applyPeriod(cfg *contract.Config, request mcp.CallToolRequest) error {
	if pt := request.GetString("period_type", ""); pt != "" {
		cfg.PeriodType = schema.PeriodType(strings.ToLower(pt))
	}
	if cfg.PeriodType == "" {
		cfg.PeriodType = schema.WeeklyPeriod
	}
	if _, ok := schema.ValidPeriodTypes[cfg.PeriodType]; !ok {
		return fmt.Errorf("%w: %q", period.ErrUnknownPeriodType, cfg.PeriodType)
	}

	cfg.Now = h.now()
	raw := strings.ToUpper(strings.TrimSpace(request.GetString("period", "")))
	if raw == "" {
		key, err := period.KeyFor(cfg.PeriodType, cfg.Now)
		if err != nil {
			return err
		}
		cfg.PeriodKey = key
		return nil
	}
	if _, err := period.Range(cfg.PeriodType, schema.PeriodKey(raw)); err != nil {
		return err
	}
	cfg.PeriodKey = schema.PeriodKey(raw)
	return nil
}

// weightsArg decodes an object argument into a weight set. Missing returns nil.
func weightsArg(request mcp.CallToolRequest, name string) (schema.WeightSet, error) {
	raw, ok := request.GetArguments()[name]
	if !ok || raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object of dimension to number", name)
	}
	out := make(schema.WeightSet, len(obj))
	for k, v := range obj {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%s.%s must be a number", name, k)
		}
		out[schema.Dimension(strings.ToLower(k))] = f
	}
	if err := agg.ValidateWeights(out); err != nil {
		return nil, err
	}
	return out, nil
}

// rowsArg decodes the rows argument. Missing returns nil.
func rowsArg(request mcp.CallToolRequest) ([]schema.ContributionRow, error) {
	raw, ok := request.GetArguments()["rows"]
	if !ok || raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var rows []schema.ContributionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if rows == nil {
		rows = []schema.ContributionRow{}
	}
	return rows, nil
}

func (h *toolHandler) handlePeriodKeys(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if err := h.applyPeriod(cfg, request); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid period: %v", err)), nil
	}
	if at := request.GetString("at", ""); at != "" {
		t, err := contract.ParseAnchorTime(at, cfg.Now)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cfg.Now = t
	}
	cfg.Count = request.GetInt("count", 0)
	if cfg.Count < 0 || cfg.Count > contract.MaxPeriodCount {
		return mcp.NewToolResultError(fmt.Sprintf("count must be between 0 and %d", contract.MaxPeriodCount)), nil
	}

	keys, err := core.GetPeriodKeys(cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("period keys failed: %v", err)), nil
	}
	spans, err := period.Spans(cfg.PeriodType, keys)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("period keys failed: %v", err)), nil
	}
	return jsonResult(spans)
}

func (h *toolHandler) handlePeriodRange(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if request.GetString("period", "") == "" {
		return mcp.NewToolResultError("period is required"), nil
	}
	if err := h.applyPeriod(cfg, request); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid period: %v", err)), nil
	}
	spans, err := period.Spans(cfg.PeriodType, []schema.PeriodKey{cfg.PeriodKey})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid period: %v", err)), nil
	}
	return jsonResult(spans[0])
}

func (h *toolHandler) handleNormalizeWeights(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	weights, err := weightsArg(request, "weights")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid weights: %v", err)), nil
	}
	if weights == nil {
		weights = schema.GetDefaultWeights()
	}

	if key := request.GetString("key", ""); key != "" {
		form := agg.NewWeightsForm(weights)
		if err := form.Set(schema.Dimension(strings.ToLower(key)), request.GetFloat("value", 0)); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid weight: %v", err)), nil
		}
		weights = form.Weights()
	} else {
		weights = agg.NormalizeWeights(weights)
	}
	return jsonResult(map[string]any{"weights": weights, "sum": weights.Sum()})
}

func (h *toolHandler) handleAggregateContributions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	cfg.InputFile = ""
	cfg.GroupBy = schema.GroupBy(strings.ToLower(request.GetString("group_by", string(schema.GroupByProject))))
	if _, ok := schema.ValidGroupBys[cfg.GroupBy]; !ok {
		return mcp.NewToolResultError(fmt.Sprintf("invalid group_by %q", cfg.GroupBy)), nil
	}
	cfg.ProjectID = int64(request.GetInt("project_id", 0))
	cfg.Email = request.GetString("email", "")
	if request.GetString("period", "") != "" {
		if err := h.applyPeriod(cfg, request); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid period: %v", err)), nil
		}
		cfg.InPeriod = true
	}

	rows, err := rowsArg(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid rows: %v", err)), nil
	}
	var res *core.AggregateResult
	if rows != nil {
		res, err = core.AggregateRows(cfg, rows, "request")
	} else {
		res, err = core.GetAggregateResults(core.WithSuppressHeader(ctx), cfg, h.client)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("aggregation failed: %v", err)), nil
	}
	return jsonResult(res)
}

func (h *toolHandler) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if err := h.applyPeriod(cfg, request); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid period: %v", err)), nil
	}
	cfg.HookOnly = request.GetBool("hook_only", false)

	lb, err := core.GetLeaderboardResults(core.WithSuppressHeader(ctx), cfg, h.client)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("leaderboard failed: %v", err)), nil
	}
	return jsonResult(lb)
}

func (h *toolHandler) handleScorePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if err := h.applyPeriod(cfg, request); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid period: %v", err)), nil
	}
	if id := request.GetInt("rule_id", 0); id > 0 {
		cfg.RuleID = int64(id)
	}
	if cfg.RuleID == 0 {
		cfg.RuleID = contract.DefaultRuleID
	}
	weights, err := weightsArg(request, "weights")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid weights: %v", err)), nil
	}
	cfg.Weights = weights
	cfg.Caps = nil
	cfg.Save = false

	run, err := core.GetScoreResults(core.WithSuppressHeader(ctx), cfg, h.client, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scoring failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"rule":     run.Rule,
		"range":    run.Result.Range,
		"members":  run.Result.Members,
		"snapshot": run.Result.Snapshot,
		"changes":  run.Changes,
	})
}
