// Package schema has the models shared by every part of tally.
package schema

import "time"

// WeightSet maps each weighted dimension to a coefficient in [0,1].
type WeightSet map[Dimension]float64

// Clone returns a shallow copy of the weight set. A nil set stays nil.
func (w WeightSet) Clone() WeightSet {
	if w == nil {
		return nil
	}
	out := make(WeightSet, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Sum returns the sum of all weights.
func (w WeightSet) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// CapSet maps a cap key to its per-day limit.
type CapSet map[CapKey]float64

// Get returns the cap for key, or def when the cap is not set.
func (c CapSet) Get(key CapKey, def float64) float64 {
	if v, ok := c[key]; ok {
		return v
	}
	return def
}

// ContributionRow is one day of git activity for a project, as returned by the backend.
type ContributionRow struct {
	ProjectID    int64  `json:"project_id"`
	ProjectName  string `json:"project_name"`
	AuthorEmail  string `json:"author_email,omitempty"`
	CommitDate   Date   `json:"commit_date"`
	CommitCount  int    `json:"commit_count"`
	LinesAdded   int    `json:"lines_added"`
	LinesRemoved int    `json:"lines_removed"`
	FilesChanged int    `json:"files_changed"`
}

// Totals holds the summed git counters shared by every aggregate.
type Totals struct {
	CommitCount  int `json:"commit_count"`
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
	FilesChanged int `json:"files_changed"`
}

// Add accumulates the counters of a row.
func (t *Totals) Add(r ContributionRow) {
	t.CommitCount += r.CommitCount
	t.LinesAdded += r.LinesAdded
	t.LinesRemoved += r.LinesRemoved
	t.FilesChanged += r.FilesChanged
}

// ProjectAggregate sums all contribution rows sharing a project id.
type ProjectAggregate struct {
	ProjectID   int64  `json:"project_id"`
	ProjectName string `json:"project_name"`
	Totals
}

// UserAggregate sums all contribution rows sharing an author email.
type UserAggregate struct {
	UserEmail string `json:"user_email"`
	Projects  int    `json:"projects"`
	Totals
}

// DayAggregate sums all contribution rows sharing a commit date.
type DayAggregate struct {
	Day Date `json:"day"`
	Totals
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls on a day within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.Start.Location())
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of calendar days in the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// UsageSummary folds the daily usage rows of one member.
type UsageSummary struct {
	Email             string `json:"email"`
	ActiveDays        int    `json:"active_days"`
	AgentRequests     int    `json:"agent_requests"`
	ChatRequests      int    `json:"chat_requests"`
	ComposerRequests  int    `json:"composer_requests"`
	TotalTabsAccepted int    `json:"total_tabs_accepted"`
	TotalLinesAdded   int    `json:"total_lines_added"`
	TotalLinesDeleted int    `json:"total_lines_deleted"`
}
