// Package score computes contribution scores and leaderboard snapshots for a
// single period from git, session and usage rows.
package score

import (
	"math/big"
	"sort"
	"strconv"

	"github.com/tallyhq/tally/core/agg"
	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/schema"
)

// Input is everything needed to score one period.
type Input struct {
	PeriodType    schema.PeriodType
	PeriodKey     schema.PeriodKey
	Rule          schema.IncentiveRule
	Contributions []schema.ContributionRow
	Sessions      []schema.SessionRow
	Usage         []schema.DailyUsage
}

// Result holds the scored period.
type Result struct {
	PeriodType schema.PeriodType
	PeriodKey  schema.PeriodKey
	RuleID     int64
	Range      schema.DateRange

	// Members has one aggregate row per member: ranked members first in rank
	// order, then the rest by score.
	Members []schema.ContributionScore

	// Records has the per-project rows followed by the aggregate rows, ready
	// to be persisted.
	Records []schema.ScoreRecord

	Snapshot []schema.SnapshotEntry
}

type memberProject struct {
	email     string
	projectID int64
}

// raw holds the unweighted dimensions of one row.
type raw struct {
	linesAdded    int
	linesRemoved  int
	commitCount   int
	filesChanged  int
	sessionHours  float64
	agentRequests int
}

func (r raw) value(d schema.Dimension) float64 {
	switch d {
	case schema.DimLinesAdded:
		return float64(r.linesAdded)
	case schema.DimLinesRemoved:
		return float64(r.linesRemoved)
	case schema.DimCommitCount:
		return float64(r.commitCount)
	case schema.DimFilesChanged:
		return float64(r.filesChanged)
	case schema.DimSessionDurationHours:
		return r.sessionHours
	case schema.DimAgentRequests:
		return float64(r.agentRequests)
	}
	return 0
}

func (r *raw) add(o raw) {
	r.linesAdded += o.linesAdded
	r.linesRemoved += o.linesRemoved
	r.commitCount += o.commitCount
	r.filesChanged += o.filesChanged
	r.sessionHours += o.sessionHours
	r.agentRequests += o.agentRequests
}

type scored struct {
	raw         raw
	breakdown   map[schema.Dimension]float64
	total       float64
	hookAdopted bool
}

// Calculate scores the period described by in.
func Calculate(in Input) (*Result, error) {
	rng, err := period.Range(in.PeriodType, in.PeriodKey)
	if err != nil {
		return nil, err
	}
	if err := agg.ValidateRows(in.Contributions); err != nil {
		return nil, err
	}
	for i, r := range in.Contributions {
		if schema.NormalizeEmail(r.AuthorEmail) == "" {
			return nil, &agg.RowError{Index: i, Field: "author_email", Reason: "is missing"}
		}
	}

	dims := weightOrder(in.Rule.Weights)
	git, names := aggregateGit(in.Contributions, rng)
	sessions := aggregateSessions(in.Sessions, rng, in.Rule.Caps)
	usage := aggregateUsage(in.Usage, rng, in.Rule.Caps)

	keys := make([]memberProject, 0, len(git)+len(sessions))
	seen := make(map[memberProject]struct{})
	for _, m := range []map[memberProject]raw{git, sessions} {
		for k := range m {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].email != keys[j].email {
			return keys[i].email < keys[j].email
		}
		return keys[i].projectID < keys[j].projectID
	})

	res := &Result{
		PeriodType: in.PeriodType,
		PeriodKey:  in.PeriodKey,
		RuleID:     in.Rule.ID,
		Range:      rng,
	}

	merged := make(map[memberProject]scored, len(keys))
	for _, k := range keys {
		r := git[k]
		s, adopted := sessions[k]
		r.sessionHours = s.sessionHours
		r.agentRequests = 0
		sc := score(r, in.Rule.Weights, dims)
		sc.hookAdopted = adopted
		merged[k] = sc
		res.Records = append(res.Records, record(in, k.email, &k.projectID, sc))
	}

	// Member totals are the sum of project totals; usage only feeds the
	// aggregate breakdown.
	members := make(map[string]*schema.ContributionScore)
	memberRaw := make(map[string]*raw)
	var emails []string
	ensure := func(email string) {
		if _, ok := members[email]; ok {
			return
		}
		members[email] = &schema.ContributionScore{
			UserEmail:  email,
			PeriodType: in.PeriodType,
			PeriodKey:  in.PeriodKey,
		}
		memberRaw[email] = &raw{}
		emails = append(emails, email)
	}
	for _, k := range keys {
		sc := merged[k]
		ensure(k.email)
		m := members[k.email]
		m.TotalScore += sc.total
		m.HookAdopted = m.HookAdopted || sc.hookAdopted
		m.Projects = append(m.Projects, schema.ProjectScore{
			ProjectID:   k.projectID,
			ProjectName: names[k.projectID],
			TotalScore:  sc.total,
		})
		memberRaw[k.email].add(sc.raw)
	}
	usageOnly := make(map[string]bool)
	for _, email := range sortedKeys(usage) {
		if _, ok := members[email]; !ok {
			usageOnly[email] = true
		}
		ensure(email)
		memberRaw[email].agentRequests = usage[email]
	}

	for _, email := range emails {
		m := members[email]
		r := *memberRaw[email]
		sc := score(r, in.Rule.Weights, dims)
		m.LinesAdded = r.linesAdded
		m.LinesRemoved = r.linesRemoved
		m.CommitCount = r.commitCount
		m.FilesChanged = r.filesChanged
		m.SessionDurationHours = r.sessionHours
		m.AgentRequests = r.agentRequests
		m.ScoreBreakdown = sc.breakdown
		if usageOnly[email] {
			m.TotalScore = sc.total
		}
	}

	ranked := make([]*schema.ContributionScore, 0, len(emails))
	unranked := make([]*schema.ContributionScore, 0)
	for _, email := range emails {
		if m := members[email]; m.HookAdopted {
			ranked = append(ranked, m)
		} else {
			unranked = append(unranked, m)
		}
	}
	byScore := func(list []*schema.ContributionScore) {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].TotalScore != list[j].TotalScore {
				return list[i].TotalScore > list[j].TotalScore
			}
			return list[i].UserEmail < list[j].UserEmail
		})
	}
	byScore(ranked)
	byScore(unranked)

	res.Snapshot = make([]schema.SnapshotEntry, 0, len(ranked))
	for i, m := range ranked {
		rank := i + 1
		m.Rank = &rank
		res.Snapshot = append(res.Snapshot, schema.SnapshotEntry{Rank: rank, UserEmail: m.UserEmail, TotalScore: m.TotalScore})
	}
	res.Members = make([]schema.ContributionScore, 0, len(emails))
	for _, m := range append(ranked, unranked...) {
		res.Members = append(res.Members, *m)
		res.Records = append(res.Records, memberRecord(in.Rule.ID, *m))
	}
	return res, nil
}

// Compare reports how every member's rank and score moved between two results
// of the same period, ordered by the after ranking.
func Compare(before, after *Result) []schema.RankChange {
	prev := make(map[string]schema.ContributionScore, len(before.Members))
	for _, m := range before.Members {
		prev[m.UserEmail] = m
	}
	out := make([]schema.RankChange, 0, len(after.Members))
	done := make(map[string]struct{}, len(after.Members))
	for _, m := range after.Members {
		p := prev[m.UserEmail]
		out = append(out, schema.RankChange{
			UserEmail:   m.UserEmail,
			BeforeRank:  p.Rank,
			AfterRank:   m.Rank,
			BeforeScore: p.TotalScore,
			AfterScore:  m.TotalScore,
		})
		done[m.UserEmail] = struct{}{}
	}
	for _, m := range before.Members {
		if _, ok := done[m.UserEmail]; ok {
			continue
		}
		out = append(out, schema.RankChange{UserEmail: m.UserEmail, BeforeRank: m.Rank, BeforeScore: m.TotalScore})
	}
	return out
}

func aggregateGit(rows []schema.ContributionRow, rng schema.DateRange) (map[memberProject]raw, map[int64]string) {
	out := make(map[memberProject]raw)
	names := make(map[int64]string)
	for _, r := range rows {
		if !rng.Contains(r.CommitDate.Time) {
			continue
		}
		if _, ok := names[r.ProjectID]; !ok {
			names[r.ProjectID] = r.ProjectName
		}
		k := memberProject{email: schema.NormalizeEmail(r.AuthorEmail), projectID: r.ProjectID}
		acc := out[k]
		acc.linesAdded += r.LinesAdded
		acc.linesRemoved += r.LinesRemoved
		acc.commitCount += r.CommitCount
		acc.filesChanged += r.FilesChanged
		out[k] = acc
	}
	return out, names
}

// aggregateSessions caps each member, project and day bucket before summing.
// Sessions without a project are ignored.
func aggregateSessions(rows []schema.SessionRow, rng schema.DateRange, caps schema.CapSet) map[memberProject]raw {
	capSeconds := int64(caps.Get(schema.CapSessionHoursPerDay, schema.DefaultSessionHoursPerDay) * 3600)
	type bucket struct {
		key memberProject
		day string
	}
	seconds := make(map[bucket]int64)
	for _, s := range rows {
		email := schema.NormalizeEmail(s.UserEmail)
		if s.ProjectID == nil || email == "" {
			continue
		}
		ended := s.EndedAt.UTC()
		if !rng.Contains(ended) {
			continue
		}
		var sec int64
		if s.DurationSeconds != nil {
			sec = *s.DurationSeconds
		}
		seconds[bucket{memberProject{email, *s.ProjectID}, ended.Format(schema.DateLayout)}] += sec
	}
	totals := make(map[memberProject]int64)
	for b, sec := range seconds {
		totals[b.key] += min(sec, capSeconds)
	}
	out := make(map[memberProject]raw, len(totals))
	for k, sec := range totals {
		out[k] = raw{sessionHours: roundHours(float64(sec) / 3600)}
	}
	return out
}

// aggregateUsage caps agent requests per member and day.
func aggregateUsage(rows []schema.DailyUsage, rng schema.DateRange, caps schema.CapSet) map[string]int {
	capReqs := int(caps.Get(schema.CapAgentRequestsPerDay, schema.DefaultAgentRequestsPerDay))
	perDay := make(map[string]map[string]int)
	for _, u := range rows {
		email := schema.NormalizeEmail(u.Email)
		if email == "" || !rng.Contains(u.Day.Time) {
			continue
		}
		if perDay[email] == nil {
			perDay[email] = make(map[string]int)
		}
		perDay[email][u.Day.String()] += u.AgentRequests
	}
	out := make(map[string]int, len(perDay))
	for email, days := range perDay {
		total := 0
		for _, n := range days {
			total += min(n, capReqs)
		}
		out[email] = total
	}
	return out
}

func score(r raw, weights schema.WeightSet, dims []schema.Dimension) scored {
	sc := scored{raw: r, breakdown: make(map[schema.Dimension]float64, len(dims))}
	for _, d := range dims {
		v := product(r.value(d), weights[d])
		sc.breakdown[d] = v
		sc.total += v
	}
	return sc
}

// product multiplies the shortest decimal forms of a and b exactly and rounds
// once, so 3 * 0.1 is 0.3 rather than 0.30000000000000004.
func product(a, b float64) float64 {
	x, ok1 := new(big.Rat).SetString(strconv.FormatFloat(a, 'g', -1, 64))
	y, ok2 := new(big.Rat).SetString(strconv.FormatFloat(b, 'g', -1, 64))
	if !ok1 || !ok2 {
		return a * b
	}
	f, _ := x.Mul(x, y).Float64()
	return f
}

// roundHours rounds to two decimals, ties to even on the exact binary value.
func roundHours(h float64) float64 {
	f, err := strconv.ParseFloat(strconv.FormatFloat(h, 'f', 2, 64), 64)
	if err != nil {
		return h
	}
	return f
}

// weightOrder lists the weighted dimensions in display order, followed by any
// other keys of the set in lexical order.
func weightOrder(w schema.WeightSet) []schema.Dimension {
	out := make([]schema.Dimension, 0, len(w))
	for _, d := range schema.WeightDimensions {
		if _, ok := w[d]; ok {
			out = append(out, d)
		}
	}
	var extra []schema.Dimension
	for d := range w {
		if _, ok := schema.ValidDimensions[d]; !ok {
			extra = append(extra, d)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func record(in Input, email string, projectID *int64, sc scored) schema.ScoreRecord {
	return schema.ScoreRecord{
		UserEmail:            email,
		ProjectID:            projectID,
		PeriodType:           in.PeriodType,
		PeriodKey:            in.PeriodKey,
		RuleID:               in.Rule.ID,
		LinesAdded:           int32(sc.raw.linesAdded),
		LinesRemoved:         int32(sc.raw.linesRemoved),
		CommitCount:          int32(sc.raw.commitCount),
		FilesChanged:         int32(sc.raw.filesChanged),
		SessionDurationHours: sc.raw.sessionHours,
		AgentRequests:        int32(sc.raw.agentRequests),
		ScoreBreakdown:       sc.breakdown,
		TotalScore:           sc.total,
		HookAdopted:          sc.hookAdopted,
	}
}

func memberRecord(ruleID int64, m schema.ContributionScore) schema.ScoreRecord {
	rec := schema.ScoreRecord{
		UserEmail:            m.UserEmail,
		PeriodType:           m.PeriodType,
		PeriodKey:            m.PeriodKey,
		RuleID:               ruleID,
		LinesAdded:           int32(m.LinesAdded),
		LinesRemoved:         int32(m.LinesRemoved),
		CommitCount:          int32(m.CommitCount),
		FilesChanged:         int32(m.FilesChanged),
		SessionDurationHours: m.SessionDurationHours,
		AgentRequests:        int32(m.AgentRequests),
		ScoreBreakdown:       m.ScoreBreakdown,
		TotalScore:           m.TotalScore,
		HookAdopted:          m.HookAdopted,
	}
	if m.Rank != nil {
		r := int32(*m.Rank)
		rec.Rank = &r
	}
	return rec
}
