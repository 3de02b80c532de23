// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tallyhq/tally/internal/contract"
)

var periodTypes = []string{"daily", "weekly", "monthly"}

// NewMCPServer initializes and configures the tally MCP server without starting it.
// A nil client leaves the remote tools registered but failing with a clear error.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager, client contract.BackendClient) *server.MCPServer {
	s := server.NewMCPServer(
		"Tally Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		client:  client,
		now:     time.Now,
	}

	// --- 1. Tool: period_keys ---
	s.AddTool(mcp.NewTool("period_keys",
		mcp.WithDescription("List the most recent period keys, newest first, with their date ranges."),
		mcp.WithString("period_type", mcp.Description("Period type. Defaults to 'weekly'."), mcp.Enum(periodTypes...)),
		mcp.WithNumber("count", mcp.Description("Number of keys to return (0 to 520). Defaults to 8.")),
		mcp.WithString("at", mcp.Description("Anchor time (RFC3339, YYYY-MM-DD or 'N units ago'). Defaults to now.")),
	), h.handlePeriodKeys)

	// --- 2. Tool: period_range ---
	s.AddTool(mcp.NewTool("period_range",
		mcp.WithDescription("Resolve a period key to its inclusive start and end dates."),
		mcp.WithString("period", mcp.Description("Period key such as 2024-W10, 2024-03 or 2024-03-15."), mcp.Required()),
		mcp.WithString("period_type", mcp.Description("Period type of the key."), mcp.Enum(periodTypes...)),
	), h.handlePeriodRange)

	// --- 3. Tool: normalize_weights ---
	s.AddTool(mcp.NewTool("normalize_weights",
		mcp.WithDescription("Normalize incentive weights so they sum to 1, rounded to two decimals. Optionally clamp one weight first."),
		mcp.WithObject("weights", mcp.Description("Map of dimension to weight. Defaults to the built-in weights.")),
		mcp.WithString("key", mcp.Description("Dimension to set before normalizing.")),
		mcp.WithNumber("value", mcp.Description("Value for key, clamped to [0,1].")),
	), h.handleNormalizeWeights)

	// --- 4. Tool: aggregate_contributions ---
	s.AddTool(mcp.NewTool("aggregate_contributions",
		mcp.WithDescription("Sum contribution rows by project, member or day. Rows are given inline or fetched from the backend."),
		mcp.WithArray("rows", mcp.Description("Contribution rows. When omitted the rows are fetched from the backend.")),
		mcp.WithString("group_by", mcp.Description("Aggregation key. Defaults to 'project'."), mcp.Enum("project", "user", "day")),
		mcp.WithNumber("project_id", mcp.Description("Fetch a single project.")),
		mcp.WithString("email", mcp.Description("Fetch a single member's rows.")),
		mcp.WithString("period", mcp.Description("Keep only rows inside this period key.")),
		mcp.WithString("period_type", mcp.Description("Period type of the key."), mcp.Enum(periodTypes...)),
	), h.handleAggregateContributions)

	// --- 5. Tool: leaderboard ---
	s.AddTool(mcp.NewTool("leaderboard",
		mcp.WithDescription("Fetch the leaderboard of a period from the backend."),
		mcp.WithString("period", mcp.Description("Period key. Defaults to the current period.")),
		mcp.WithString("period_type", mcp.Description("Period type of the key."), mcp.Enum(periodTypes...)),
		mcp.WithBoolean("hook_only", mcp.Description("Only members with the hook installed.")),
	), h.handleLeaderboard)

	// --- 6. Tool: score_preview ---
	s.AddTool(mcp.NewTool("score_preview",
		mcp.WithDescription("Score a period locally and compare the ranking under draft weights against the saved rule."),
		mcp.WithString("period", mcp.Description("Period key. Defaults to the current period.")),
		mcp.WithString("period_type", mcp.Description("Period type of the key."), mcp.Enum(periodTypes...)),
		mcp.WithNumber("rule_id", mcp.Description("Incentive rule to start from. Defaults to 1.")),
		mcp.WithObject("weights", mcp.Description("Draft weights merged into the rule's weights.")),
	), h.handleScorePreview)

	return s
}

// StartMCPServer starts the tally MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager, client contract.BackendClient) error {
	s := NewMCPServer(baseCfg, mgr, client)
	return server.ServeStdio(s)
}
