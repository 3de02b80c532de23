package schema

// EnrichedProjectAggregate adds presentation data to a ProjectAggregate.
type EnrichedProjectAggregate struct {
	Rank  int     `json:"rank"`
	Share float64 `json:"share"`
	ProjectAggregate
}

// SnapshotEntry is one ranked member of a leaderboard snapshot.
type SnapshotEntry struct {
	Rank       int     `json:"rank"`
	UserEmail  string  `json:"user_email"`
	TotalScore float64 `json:"total_score"`
}

// EnrichProjects adds rank and the share of lines added to a list of project aggregates.
func EnrichProjects(projects []ProjectAggregate) []EnrichedProjectAggregate {
	total := 0
	for _, p := range projects {
		total += p.LinesAdded
	}
	output := make([]EnrichedProjectAggregate, len(projects))
	for i, p := range projects {
		var share float64
		if total > 0 {
			share = float64(p.LinesAdded) / float64(total) * 100
		}
		output[i] = EnrichedProjectAggregate{
			Rank:             i + 1,
			Share:            share,
			ProjectAggregate: p,
		}
	}
	return output
}

// GetPlainLabel returns a plain text label for a member's rank on a leaderboard.
// Unranked members did not adopt the session hook.
func GetPlainLabel(rank *int) string {
	switch {
	case rank == nil:
		return "Unranked"
	case *rank == 1:
		return "Leader"
	case *rank <= 3:
		return "Podium"
	case *rank <= 10:
		return "Top 10"
	default:
		return "Ranked"
	}
}

// RankChange compares a member's standing under two weight sets.
type RankChange struct {
	UserEmail   string  `json:"user_email"`
	BeforeRank  *int    `json:"before_rank"`
	AfterRank   *int    `json:"after_rank"`
	BeforeScore float64 `json:"before_score"`
	AfterScore  float64 `json:"after_score"`
}

// Moved returns how many places the member climbed. Members entering or
// leaving the ranking report zero.
func (c RankChange) Moved() int {
	if c.BeforeRank == nil || c.AfterRank == nil {
		return 0
	}
	return *c.BeforeRank - *c.AfterRank
}

// PeriodSpan is a period key with the calendar days it covers.
type PeriodSpan struct {
	PeriodKey PeriodKey `json:"period_key"`
	Start     Date      `json:"start"`
	End       Date      `json:"end"`
	Days      int       `json:"days"`
}

// TeamMember joins a seat with its spend in the current billing cycle.
type TeamMember struct {
	Member
	SpendCents          int      `json:"spend_cents"`
	FastPremiumRequests int      `json:"fast_premium_requests"`
	MonthlyLimitDollars *float64 `json:"monthly_limit_dollars"`
}

// JoinSpend attaches spend rows to members by email. Members without spend
// keep zero counters; removed seats are dropped.
func JoinSpend(members []Member, spend []SpendRow) []TeamMember {
	byEmail := make(map[string]SpendRow, len(spend))
	for _, s := range spend {
		byEmail[NormalizeEmail(s.Email)] = s
	}
	out := make([]TeamMember, 0, len(members))
	for _, m := range members {
		if m.IsRemoved {
			continue
		}
		tm := TeamMember{Member: m}
		if s, ok := byEmail[NormalizeEmail(m.Email)]; ok {
			tm.SpendCents = s.SpendCents
			tm.FastPremiumRequests = s.FastPremiumRequests
			tm.MonthlyLimitDollars = s.MonthlyLimitDollars
		}
		out = append(out, tm)
	}
	return out
}
