package agg

import (
	"sort"
	"time"

	"github.com/tallyhq/tally/schema"
)

// SessionSeconds returns the duration of a session. Sessions without a
// reported duration fall back to ended_at minus started_at, or zero.
func SessionSeconds(s schema.SessionRow) int64 {
	if s.DurationSeconds != nil {
		return max(*s.DurationSeconds, 0)
	}
	if s.StartedAt != nil && !s.StartedAt.IsZero() {
		return max(int64(s.EndedAt.Sub(*s.StartedAt)/time.Second), 0)
	}
	return 0
}

// SummarizeSessions folds sessions per member, sorted by total seconds
// descending. The primary workspace is the one seen most often.
func SummarizeSessions(sessions []schema.SessionRow) []schema.SessionSummary {
	out := make([]schema.SessionSummary, 0)
	index := make(map[string]int)
	workspaces := make(map[string]map[string]int)
	for _, s := range sessions {
		email := schema.NormalizeEmail(s.UserEmail)
		if email == "" {
			continue
		}
		start := s.EndedAt
		if s.StartedAt != nil && !s.StartedAt.IsZero() {
			start = *s.StartedAt
		}
		i, ok := index[email]
		if !ok {
			i = len(out)
			index[email] = i
			out = append(out, schema.SessionSummary{UserEmail: email, FirstSeen: start, LastSeen: s.EndedAt})
			workspaces[email] = make(map[string]int)
		}
		sum := &out[i]
		sum.SessionCount++
		sum.TotalSeconds += SessionSeconds(s)
		if start.Before(sum.FirstSeen) {
			sum.FirstSeen = start
		}
		if s.EndedAt.After(sum.LastSeen) {
			sum.LastSeen = s.EndedAt
		}
		if s.PrimaryWorkspace != nil && *s.PrimaryWorkspace != "" {
			ws := *s.PrimaryWorkspace
			workspaces[email][ws]++
			if best := sum.PrimaryWorkspace; best == "" || workspaces[email][ws] > workspaces[email][best] {
				sum.PrimaryWorkspace = ws
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalSeconds > out[j].TotalSeconds
	})
	return out
}

// SummarizeUsage folds daily usage rows per member, sorted by agent requests
// descending.
func SummarizeUsage(rows []schema.DailyUsage) []schema.UsageSummary {
	out := make([]schema.UsageSummary, 0)
	index := make(map[string]int)
	for _, r := range rows {
		email := schema.NormalizeEmail(r.Email)
		if email == "" {
			continue
		}
		i, ok := index[email]
		if !ok {
			i = len(out)
			index[email] = i
			out = append(out, schema.UsageSummary{Email: email})
		}
		u := &out[i]
		if r.IsActive {
			u.ActiveDays++
		}
		u.AgentRequests += r.AgentRequests
		u.ChatRequests += r.ChatRequests
		u.ComposerRequests += r.ComposerRequests
		u.TotalTabsAccepted += r.TotalTabsAccepted
		u.TotalLinesAdded += r.TotalLinesAdded
		u.TotalLinesDeleted += r.TotalLinesDeleted
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AgentRequests > out[j].AgentRequests
	})
	return out
}
