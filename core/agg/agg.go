// Package agg folds flat contribution, session and usage rows into grouped
// summaries and keeps incentive weight sets normalized.
package agg

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tallyhq/tally/schema"
)

// ErrInvalidRow is wrapped by every RowError.
var ErrInvalidRow = errors.New("invalid contribution row")

// RowError reports the first row that violates the input contract.
type RowError struct {
	Index  int
	Field  string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%v: row %d: %s %s", ErrInvalidRow, e.Index, e.Field, e.Reason)
}

// Unwrap makes RowError match ErrInvalidRow with errors.Is.
func (e *RowError) Unwrap() error { return ErrInvalidRow }

// ValidateRows checks every row and returns the first violation.
func ValidateRows(rows []schema.ContributionRow) error {
	for i, r := range rows {
		if err := validateRow(i, r); err != nil {
			return err
		}
	}
	return nil
}

func validateRow(i int, r schema.ContributionRow) error {
	switch {
	case r.ProjectID <= 0:
		return &RowError{Index: i, Field: "project_id", Reason: "must be positive"}
	case r.CommitDate.IsZero():
		return &RowError{Index: i, Field: "commit_date", Reason: "is missing"}
	case r.CommitCount < 0:
		return &RowError{Index: i, Field: "commit_count", Reason: "is negative"}
	case r.LinesAdded < 0:
		return &RowError{Index: i, Field: "lines_added", Reason: "is negative"}
	case r.LinesRemoved < 0:
		return &RowError{Index: i, Field: "lines_removed", Reason: "is negative"}
	case r.FilesChanged < 0:
		return &RowError{Index: i, Field: "files_changed", Reason: "is negative"}
	}
	return nil
}

// AggregateByProject sums rows per project id, sorted by lines added descending.
// Ties keep the order in which projects were first seen, and each project keeps
// the name of its first row.
func AggregateByProject(rows []schema.ContributionRow) ([]schema.ProjectAggregate, error) {
	if err := ValidateRows(rows); err != nil {
		return nil, err
	}
	out := make([]schema.ProjectAggregate, 0)
	index := make(map[int64]int)
	for _, r := range rows {
		i, ok := index[r.ProjectID]
		if !ok {
			i = len(out)
			index[r.ProjectID] = i
			out = append(out, schema.ProjectAggregate{ProjectID: r.ProjectID, ProjectName: r.ProjectName})
		}
		out[i].Add(r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LinesAdded > out[j].LinesAdded
	})
	return out, nil
}

// AggregateByUser sums rows per author email, sorted by lines added descending.
// Emails are compared case-insensitively.
func AggregateByUser(rows []schema.ContributionRow) ([]schema.UserAggregate, error) {
	if err := ValidateRows(rows); err != nil {
		return nil, err
	}
	out := make([]schema.UserAggregate, 0)
	index := make(map[string]int)
	projects := make(map[string]map[int64]struct{})
	for i, r := range rows {
		email := schema.NormalizeEmail(r.AuthorEmail)
		if email == "" {
			return nil, &RowError{Index: i, Field: "author_email", Reason: "is missing"}
		}
		j, ok := index[email]
		if !ok {
			j = len(out)
			index[email] = j
			out = append(out, schema.UserAggregate{UserEmail: email})
			projects[email] = make(map[int64]struct{})
		}
		out[j].Add(r)
		projects[email][r.ProjectID] = struct{}{}
	}
	for j := range out {
		out[j].Projects = len(projects[out[j].UserEmail])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LinesAdded > out[j].LinesAdded
	})
	return out, nil
}

// AggregateByDay sums rows per commit date in chronological order.
func AggregateByDay(rows []schema.ContributionRow) ([]schema.DayAggregate, error) {
	if err := ValidateRows(rows); err != nil {
		return nil, err
	}
	out := make([]schema.DayAggregate, 0)
	index := make(map[string]int)
	for _, r := range rows {
		key := r.CommitDate.String()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, schema.DayAggregate{Day: r.CommitDate})
		}
		out[i].Add(r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Day.String() < out[j].Day.String()
	})
	return out, nil
}

// SumTotals sums the counters of every row.
func SumTotals(rows []schema.ContributionRow) schema.Totals {
	var t schema.Totals
	for _, r := range rows {
		t.Add(r)
	}
	return t
}
