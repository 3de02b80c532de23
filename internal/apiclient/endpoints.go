package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/schema"
)

// maxSessionPages bounds the pagination loop of Sessions.
const maxSessionPages = 1000

// SessionsQuery filters the sessions listing.
type SessionsQuery struct {
	Email     string
	Workspace string
	Start     schema.Date
	End       schema.Date
}

func (q SessionsQuery) values(page int) url.Values {
	v := url.Values{}
	if q.Email != "" {
		v.Set("email", q.Email)
	}
	if q.Workspace != "" {
		v.Set("workspace", q.Workspace)
	}
	if !q.Start.IsZero() {
		v.Set("start", q.Start.String())
	}
	if !q.End.IsZero() {
		v.Set("end", q.End.String())
	}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	return v
}

// ListMembers returns every seat of the team.
func (c *Client) ListMembers(ctx context.Context) ([]schema.Member, error) {
	var out []schema.Member
	if err := c.request(ctx, http.MethodGet, "/members", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DailyUsage returns usage rows between start and end inclusive.
func (c *Client) DailyUsage(ctx context.Context, email string, start, end schema.Date) ([]schema.DailyUsage, error) {
	q := rangeQuery(start, end)
	if email != "" {
		q.Set("email", email)
	}
	var out []schema.DailyUsage
	if err := c.getCached(ctx, "/usage/daily", q, !end.IsZero() && c.completed(end), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Spend returns the spend rows of the current billing cycle.
func (c *Client) Spend(ctx context.Context) ([]schema.SpendRow, error) {
	var out []schema.SpendRow
	if err := c.request(ctx, http.MethodGet, "/usage/spend", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SessionsPage returns one page of sessions. Pages start at 1.
func (c *Client) SessionsPage(ctx context.Context, q SessionsQuery, page int) (schema.SessionsPage, error) {
	if page < 1 {
		page = 1
	}
	var out schema.SessionsPage
	err := c.getCached(ctx, "/sessions", q.values(page), !q.End.IsZero() && c.completed(q.End), &out)
	return out, err
}

// Sessions returns every session ending between start and end, walking all pages.
func (c *Client) Sessions(ctx context.Context, email string, start, end schema.Date) ([]schema.SessionRow, error) {
	q := SessionsQuery{Email: email, Start: start, End: end}
	out := []schema.SessionRow{}
	for page := 1; page <= maxSessionPages; page++ {
		p, err := c.SessionsPage(ctx, q, page)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Data...)
		if len(p.Data) == 0 || len(out) >= p.Total {
			return out, nil
		}
	}
	return nil, fmt.Errorf("sessions: more than %d pages", maxSessionPages)
}

// ListProjects returns projects, optionally filtered by status.
func (c *Client) ListProjects(ctx context.Context, status string) ([]schema.Project, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {status}}
	}
	var out []schema.Project
	if err := c.request(ctx, http.MethodGet, "/projects", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectSummary returns a project with its participants and contribution rows.
func (c *Client) ProjectSummary(ctx context.Context, projectID int64) (schema.ProjectSummary, error) {
	var out schema.ProjectSummary
	err := c.request(ctx, http.MethodGet, projectPath(projectID)+"/summary", nil, nil, &out)
	return out, err
}

// MyContributions returns raw rows when key is empty and the member's score
// for the period otherwise. The variant follows from the query sent.
func (c *Client) MyContributions(ctx context.Context, email string, pt schema.PeriodType, key schema.PeriodKey) (schema.ContributionsResult, error) {
	q := url.Values{"email": {email}}
	kind := schema.ContributionsList
	immutable := false
	if key != "" {
		q.Set("period_type", string(pt))
		q.Set("period_key", string(key))
		kind = schema.ContributionsScore
		immutable = c.periodCompleted(pt, key)
	}

	var raw jsonRaw
	if err := c.getCached(ctx, "/contributions/my", q, immutable, &raw); err != nil {
		return schema.ContributionsResult{Kind: kind}, err
	}
	if len(raw) == 0 && kind == schema.ContributionsList {
		return schema.ContributionsResult{Kind: kind, Rows: []schema.ContributionRow{}}, nil
	}
	return schema.DecodeContributions(kind, raw)
}

// IncentiveRules returns all incentive rules.
func (c *Client) IncentiveRules(ctx context.Context) ([]schema.IncentiveRule, error) {
	var out []schema.IncentiveRule
	if err := c.request(ctx, http.MethodGet, "/incentive-rules", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateIncentiveRule saves new weights and caps for a rule.
func (c *Client) UpdateIncentiveRule(ctx context.Context, ruleID int64, body schema.IncentiveRuleUpdate) (schema.IncentiveRule, error) {
	var out schema.IncentiveRule
	err := c.request(ctx, http.MethodPut, rulePath(ruleID), nil, body, &out)
	return out, err
}

// RecalculateIncentiveRule asks the backend to rescore the latest periods of a rule.
func (c *Client) RecalculateIncentiveRule(ctx context.Context, ruleID int64) error {
	return c.request(ctx, http.MethodPost, rulePath(ruleID)+"/recalculate", nil, nil, nil)
}

// Leaderboard returns the ranked members of a period.
func (c *Client) Leaderboard(ctx context.Context, pt schema.PeriodType, key schema.PeriodKey, hookOnly bool) (schema.LeaderboardResponse, error) {
	q := url.Values{
		"period_type": {string(pt)},
		"period_key":  {string(key)},
		"hook_only":   {strconv.FormatBool(hookOnly)},
	}
	var out schema.LeaderboardResponse
	if err := c.getCached(ctx, "/contributions/leaderboard", q, c.periodCompleted(pt, key), &out); err != nil {
		return out, err
	}
	if out.Entries == nil {
		out.Entries = []schema.LeaderboardEntry{}
	}
	return out, nil
}

// AlertRules returns all alert rules.
func (c *Client) AlertRules(ctx context.Context) ([]schema.AlertRule, error) {
	var out []schema.AlertRule
	if err := c.request(ctx, http.MethodGet, "/alerts/rules", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AlertEvents returns the most recent alert events.
func (c *Client) AlertEvents(ctx context.Context, limit int) ([]schema.AlertEvent, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out []schema.AlertEvent
	if err := c.request(ctx, http.MethodGet, "/alerts/events", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// completed reports whether the day end is over in UTC.
func (c *Client) completed(end schema.Date) bool {
	today := c.now().UTC()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return last.Before(today)
}

// periodCompleted reports whether the period is over. Malformed keys are
// never cached.
func (c *Client) periodCompleted(pt schema.PeriodType, key schema.PeriodKey) bool {
	r, err := period.Range(pt, key)
	if err != nil {
		return false
	}
	return c.completed(schema.NewDate(r.End))
}

func rangeQuery(start, end schema.Date) url.Values {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start", start.String())
	}
	if !end.IsZero() {
		q.Set("end", end.String())
	}
	return q
}

func projectPath(id int64) string {
	return "/projects/" + strconv.FormatInt(id, 10)
}

func rulePath(id int64) string {
	return "/incentive-rules/" + strconv.FormatInt(id, 10)
}

// jsonRaw keeps a response body undecoded.
type jsonRaw []byte

// UnmarshalJSON implements json.Unmarshaler.
func (r *jsonRaw) UnmarshalJSON(b []byte) error {
	*r = append((*r)[0:0], b...)
	return nil
}
