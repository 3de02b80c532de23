package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Member is a seat in the tracked team.
type Member struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	IsRemoved bool   `json:"is_removed"`
}

// DailyUsage is one member's editor usage for a single day.
type DailyUsage struct {
	Email             string  `json:"email"`
	Day               Date    `json:"day"`
	AgentRequests     int     `json:"agent_requests"`
	ChatRequests      int     `json:"chat_requests"`
	ComposerRequests  int     `json:"composer_requests"`
	TotalTabsAccepted int     `json:"total_tabs_accepted"`
	TotalLinesAdded   int     `json:"total_lines_added"`
	TotalLinesDeleted int     `json:"total_lines_deleted"`
	UsageBasedReqs    int     `json:"usage_based_reqs"`
	MostUsedModel     *string `json:"most_used_model"`
	IsActive          bool    `json:"is_active"`
}

// SpendRow is one member's spend in the current billing cycle.
type SpendRow struct {
	Email               string   `json:"email"`
	Name                *string  `json:"name"`
	SpendCents          int      `json:"spend_cents"`
	FastPremiumRequests int      `json:"fast_premium_requests"`
	MonthlyLimitDollars *float64 `json:"monthly_limit_dollars"`
	BillingCycleStart   string   `json:"billing_cycle_start"`
}

// SessionRow is one agent session reported by a member's hook.
type SessionRow struct {
	ID               int64      `json:"id"`
	ConversationID   string     `json:"conversation_id"`
	UserEmail        string     `json:"user_email"`
	ProjectID        *int64     `json:"project_id,omitempty"`
	PrimaryWorkspace *string    `json:"primary_workspace"`
	WorkspaceRoots   []string   `json:"workspace_roots"`
	StartedAt        *time.Time `json:"started_at"`
	EndedAt          time.Time  `json:"ended_at"`
	DurationSeconds  *int64     `json:"duration_seconds"`
}

// SessionsPage is one page of the sessions listing.
type SessionsPage struct {
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Data     []SessionRow `json:"data"`
}

// SessionSummary folds all sessions of one member.
type SessionSummary struct {
	UserEmail        string    `json:"user_email"`
	PrimaryWorkspace string    `json:"primary_workspace"`
	SessionCount     int       `json:"session_count"`
	TotalSeconds     int64     `json:"total_seconds"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
}

// Project is a tracked project with its repositories and members.
type Project struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	GitRepos        []string `json:"git_repos"`
	WorkspaceRules  []string `json:"workspace_rules"`
	MemberEmails    []string `json:"member_emails"`
	Status          string   `json:"status"`
	GitlabProjectID *int64   `json:"gitlab_project_id"`
	RepoURL         string   `json:"repo_url"`
	RepoSSHURL      string   `json:"repo_ssh_url"`
	HookInitialized bool     `json:"hook_initialized"`
	CreatedBy       string   `json:"created_by"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// ProjectParticipant is a member's session activity inside a project.
type ProjectParticipant struct {
	UserEmail    string `json:"user_email"`
	SessionCount int    `json:"session_count"`
	TotalSeconds int64  `json:"total_seconds"`
}

// ProjectSummary is the detail view of a project.
type ProjectSummary struct {
	Project              Project              `json:"project"`
	SessionCount         int                  `json:"session_count"`
	TotalDurationSeconds int64                `json:"total_duration_seconds"`
	Participants         []ProjectParticipant `json:"participants"`
	Contributions        []ContributionRow    `json:"contributions"`
}

// NotifyChannel is a delivery target of an alert rule.
type NotifyChannel struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
	URL     string `json:"url,omitempty"`
}

// AlertRule triggers when a usage metric crosses a threshold.
type AlertRule struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Metric         string          `json:"metric"`
	Scope          string          `json:"scope"`
	TargetEmail    *string         `json:"target_email"`
	Threshold      float64         `json:"threshold"`
	NotifyChannels []NotifyChannel `json:"notify_channels"`
	Enabled        bool            `json:"enabled"`
	CreatedAt      string          `json:"created_at"`
}

// AlertEvent records a triggered alert rule.
type AlertEvent struct {
	ID          int64          `json:"id"`
	RuleID      int64          `json:"rule_id"`
	RuleName    string         `json:"rule_name"`
	Metric      string         `json:"metric"`
	TriggeredAt time.Time      `json:"triggered_at"`
	MetricValue float64        `json:"metric_value"`
	Threshold   float64        `json:"threshold"`
	Detail      map[string]any `json:"detail"`
}

// IncentiveRule carries the weights and caps used to score contributions.
type IncentiveRule struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	PeriodType PeriodType `json:"period_type"`
	Weights    WeightSet  `json:"weights"`
	Caps       CapSet     `json:"caps"`
	Enabled    bool       `json:"enabled"`
}

// IncentiveRuleUpdate is the body of an incentive rule update.
type IncentiveRuleUpdate struct {
	Weights WeightSet `json:"weights"`
	Caps    CapSet    `json:"caps"`
}

// LeaderboardEntry is one member's row on a leaderboard.
type LeaderboardEntry struct {
	Rank        *int    `json:"rank"`
	UserEmail   string  `json:"user_email"`
	TotalScore  float64 `json:"total_score"`
	HookAdopted bool    `json:"hook_adopted"`
	LinesAdded  int     `json:"lines_added"`
	CommitCount int     `json:"commit_count"`
}

// LeaderboardResponse is the leaderboard of one period.
type LeaderboardResponse struct {
	PeriodType  PeriodType         `json:"period_type"`
	PeriodKey   PeriodKey          `json:"period_key"`
	GeneratedAt *time.Time         `json:"generated_at"`
	Entries     []LeaderboardEntry `json:"entries"`
}

// ProjectScore is a member's score within one project.
type ProjectScore struct {
	ProjectID   int64   `json:"project_id"`
	ProjectName string  `json:"project_name"`
	TotalScore  float64 `json:"total_score"`
}

// ContributionScore is a member's score for one period.
type ContributionScore struct {
	UserEmail            string                `json:"user_email"`
	PeriodType           PeriodType            `json:"period_type"`
	PeriodKey            PeriodKey             `json:"period_key"`
	LinesAdded           int                   `json:"lines_added"`
	LinesRemoved         int                   `json:"lines_removed"`
	CommitCount          int                   `json:"commit_count"`
	FilesChanged         int                   `json:"files_changed"`
	SessionDurationHours float64               `json:"session_duration_hours"`
	AgentRequests        int                   `json:"agent_requests"`
	ScoreBreakdown       map[Dimension]float64 `json:"score_breakdown"`
	TotalScore           float64               `json:"total_score"`
	Rank                 *int                  `json:"rank"`
	HookAdopted          bool                  `json:"hook_adopted"`
	Projects             []ProjectScore        `json:"projects,omitempty"`
}

// ContributionsResult is the response of the member contributions endpoint.
// The backend returns raw rows when no period is requested and a score
// when one is; Kind records which query was sent.
type ContributionsResult struct {
	Kind  ContributionsKind  `json:"kind"`
	Rows  []ContributionRow  `json:"rows,omitempty"`
	Score *ContributionScore `json:"score,omitempty"`
}

// DecodeContributions decodes body according to kind.
func DecodeContributions(kind ContributionsKind, body []byte) (ContributionsResult, error) {
	res := ContributionsResult{Kind: kind}
	switch kind {
	case ContributionsList:
		if err := json.Unmarshal(body, &res.Rows); err != nil {
			return res, fmt.Errorf("decode contribution rows: %w", err)
		}
		if res.Rows == nil {
			res.Rows = []ContributionRow{}
		}
	case ContributionsScore:
		if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return res, nil
		}
		var score ContributionScore
		if err := json.Unmarshal(body, &score); err != nil {
			return res, fmt.Errorf("decode contribution score: %w", err)
		}
		res.Score = &score
	default:
		return res, fmt.Errorf("unknown contributions kind %q", kind)
	}
	return res, nil
}
