package agg

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/schema"
)

func row(id int64, name, email string, day int, commits, added, removed, files int) schema.ContributionRow {
	return schema.ContributionRow{
		ProjectID:    id,
		ProjectName:  name,
		AuthorEmail:  email,
		CommitDate:   schema.NewDate(time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC)),
		CommitCount:  commits,
		LinesAdded:   added,
		LinesRemoved: removed,
		FilesChanged: files,
	}
}

func TestAggregateByProject(t *testing.T) {
	rows := []schema.ContributionRow{
		row(1, "A", "a@x.io", 1, 2, 10, 1, 1),
		row(2, "B", "b@x.io", 1, 1, 50, 0, 2),
		row(1, "A-renamed", "a@x.io", 2, 3, 5, 2, 1),
	}
	got, err := AggregateByProject(rows)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, schema.ProjectAggregate{
		ProjectID:   2,
		ProjectName: "B",
		Totals:      schema.Totals{CommitCount: 1, LinesAdded: 50, LinesRemoved: 0, FilesChanged: 2},
	}, got[0])
	assert.Equal(t, schema.ProjectAggregate{
		ProjectID:   1,
		ProjectName: "A",
		Totals:      schema.Totals{CommitCount: 5, LinesAdded: 15, LinesRemoved: 3, FilesChanged: 2},
	}, got[1])
}

func TestAggregateByProjectEmpty(t *testing.T) {
	got, err := AggregateByProject(nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAggregateByProjectStableTies(t *testing.T) {
	rows := []schema.ContributionRow{
		row(7, "seven", "", 1, 1, 10, 0, 1),
		row(3, "three", "", 1, 1, 10, 0, 1),
		row(9, "nine", "", 1, 1, 20, 0, 1),
		row(5, "five", "", 1, 1, 10, 0, 1),
	}
	got, err := AggregateByProject(rows)
	require.NoError(t, err)
	ids := make([]int64, 0, len(got))
	for _, g := range got {
		ids = append(ids, g.ProjectID)
	}
	assert.Equal(t, []int64{9, 7, 3, 5}, ids)
}

func TestAggregateByProjectConservation(t *testing.T) {
	rows := []schema.ContributionRow{
		row(1, "A", "", 1, 1, 3, 4, 5),
		row(2, "B", "", 2, 6, 7, 8, 9),
		row(3, "C", "", 3, 0, 0, 0, 0),
		row(2, "B", "", 4, 10, 11, 12, 13),
		row(1, "A", "", 5, 14, 15, 16, 17),
	}
	got, err := AggregateByProject(rows)
	require.NoError(t, err)

	var sum schema.Totals
	for _, g := range got {
		sum.CommitCount += g.CommitCount
		sum.LinesAdded += g.LinesAdded
		sum.LinesRemoved += g.LinesRemoved
		sum.FilesChanged += g.FilesChanged
	}
	assert.Equal(t, SumTotals(rows), sum)
	assert.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].LinesAdded, got[i].LinesAdded)
	}
}

func TestAggregateByProjectInvalidRows(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*schema.ContributionRow)
		field string
	}{
		{"zero project id", func(r *schema.ContributionRow) { r.ProjectID = 0 }, "project_id"},
		{"negative project id", func(r *schema.ContributionRow) { r.ProjectID = -4 }, "project_id"},
		{"missing date", func(r *schema.ContributionRow) { r.CommitDate = schema.Date{} }, "commit_date"},
		{"negative commits", func(r *schema.ContributionRow) { r.CommitCount = -1 }, "commit_count"},
		{"negative lines added", func(r *schema.ContributionRow) { r.LinesAdded = -1 }, "lines_added"},
		{"negative lines removed", func(r *schema.ContributionRow) { r.LinesRemoved = -1 }, "lines_removed"},
		{"negative files", func(r *schema.ContributionRow) { r.FilesChanged = -1 }, "files_changed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := row(1, "A", "", 2, 1, 1, 1, 1)
			tt.mut(&bad)
			rows := []schema.ContributionRow{row(1, "A", "", 1, 1, 1, 1, 1), bad}

			got, err := AggregateByProject(rows)
			assert.Nil(t, got)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRow))

			var rowErr *RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, 1, rowErr.Index)
			assert.Equal(t, tt.field, rowErr.Field)
		})
	}
}

func TestAggregateByUser(t *testing.T) {
	rows := []schema.ContributionRow{
		row(1, "A", "Alice@X.io", 1, 1, 10, 0, 1),
		row(2, "B", "bob@x.io", 1, 1, 40, 0, 1),
		row(2, "B", " alice@x.io", 2, 2, 5, 1, 3),
		row(1, "A", "alice@x.io", 3, 1, 1, 0, 1),
	}
	got, err := AggregateByUser(rows)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "bob@x.io", got[0].UserEmail)
	assert.Equal(t, 1, got[0].Projects)
	assert.Equal(t, "alice@x.io", got[1].UserEmail)
	assert.Equal(t, 2, got[1].Projects)
	assert.Equal(t, schema.Totals{CommitCount: 4, LinesAdded: 16, LinesRemoved: 1, FilesChanged: 5}, got[1].Totals)
}

func TestAggregateByUserMissingEmail(t *testing.T) {
	_, err := AggregateByUser([]schema.ContributionRow{row(1, "A", "", 1, 1, 1, 1, 1)})
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "author_email", rowErr.Field)
}

func TestAggregateByDay(t *testing.T) {
	rows := []schema.ContributionRow{
		row(1, "A", "", 5, 1, 10, 0, 1),
		row(2, "B", "", 2, 1, 40, 0, 1),
		row(3, "C", "", 5, 2, 5, 1, 3),
	}
	got, err := AggregateByDay(rows)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-02", got[0].Day.String())
	assert.Equal(t, 40, got[0].LinesAdded)
	assert.Equal(t, "2024-03-05", got[1].Day.String())
	assert.Equal(t, schema.Totals{CommitCount: 3, LinesAdded: 15, LinesRemoved: 1, FilesChanged: 4}, got[1].Totals)
}
