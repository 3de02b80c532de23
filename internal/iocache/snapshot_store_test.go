package iocache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

func newTestSnapshotStore(t *testing.T) contract.SnapshotStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshots.db")
	store, err := NewSnapshotStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestSnapshotStore(t)
	created := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	rec := schema.SnapshotRecord{
		PeriodType: schema.WeeklyPeriod,
		PeriodKey:  "2024-W10",
		RuleID:     1,
		Entries: []schema.SnapshotEntry{
			{Rank: 1, UserEmail: "alice@example.com", TotalScore: 20.5},
			{Rank: 2, UserEmail: "bob@example.com", TotalScore: 12.5},
		},
		CreatedAt: created,
	}
	require.NoError(t, store.SaveSnapshot(rec))

	got, err := store.GetSnapshot(schema.WeeklyPeriod, "2024-W10")
	require.NoError(t, err)
	assert.Equal(t, rec.Entries, got.Entries)
	assert.Equal(t, int64(1), got.RuleID)
	assert.True(t, created.Equal(got.CreatedAt))

	// Saving the same period again replaces it
	rec.Entries = rec.Entries[:1]
	rec.CreatedAt = created.Add(time.Hour)
	require.NoError(t, store.SaveSnapshot(rec))
	got, err = store.GetSnapshot(schema.WeeklyPeriod, "2024-W10")
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)

	_, err = store.GetSnapshot(schema.WeeklyPeriod, "2024-W11")
	assert.ErrorIs(t, err, contract.ErrSnapshotNotFound)
}

func TestListSnapshotsNewestFirst(t *testing.T) {
	store := newTestSnapshotStore(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, key := range []schema.PeriodKey{"2024-W08", "2024-W09", "2024-W10"} {
		require.NoError(t, store.SaveSnapshot(schema.SnapshotRecord{
			PeriodType: schema.WeeklyPeriod,
			PeriodKey:  key,
			RuleID:     1,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	recs, err := store.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, schema.PeriodKey("2024-W10"), recs[0].PeriodKey)
	assert.Equal(t, schema.PeriodKey("2024-W08"), recs[2].PeriodKey)
	assert.NotNil(t, recs[0].Entries)
}

func TestSaveScoresReplacesPeriod(t *testing.T) {
	store := newTestSnapshotStore(t)
	project := int64(7)
	rank := int32(1)

	first := []schema.ScoreRecord{
		{
			UserEmail:            "alice@example.com",
			ProjectID:            &project,
			PeriodType:           schema.WeeklyPeriod,
			PeriodKey:            "2024-W10",
			RuleID:               1,
			LinesAdded:           50,
			CommitCount:          2,
			SessionDurationHours: 1.5,
			ScoreBreakdown:       map[schema.Dimension]float64{schema.DimLinesAdded: 15},
			TotalScore:           15,
			HookAdopted:          true,
		},
		{
			UserEmail:      "alice@example.com",
			PeriodType:     schema.WeeklyPeriod,
			PeriodKey:      "2024-W10",
			RuleID:         1,
			LinesAdded:     50,
			AgentRequests:  40,
			ScoreBreakdown: map[schema.Dimension]float64{schema.DimLinesAdded: 15, schema.DimAgentRequests: 8},
			TotalScore:     15,
			Rank:           &rank,
			HookAdopted:    true,
		},
	}
	require.NoError(t, store.SaveScores(schema.WeeklyPeriod, "2024-W10", first))

	rows, err := store.ListScores()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Member rows (project 0) sort before project rows
	assert.Nil(t, rows[0].ProjectID)
	require.NotNil(t, rows[0].Rank)
	assert.Equal(t, int32(1), *rows[0].Rank)
	assert.Equal(t, int32(40), rows[0].AgentRequests)
	assert.InDelta(t, 8, rows[0].ScoreBreakdown[schema.DimAgentRequests], 1e-9)

	require.NotNil(t, rows[1].ProjectID)
	assert.Equal(t, int64(7), *rows[1].ProjectID)
	assert.Nil(t, rows[1].Rank)
	assert.True(t, rows[1].HookAdopted)
	assert.InDelta(t, 1.5, rows[1].SessionDurationHours, 1e-9)

	require.NoError(t, store.SaveScores(schema.WeeklyPeriod, "2024-W10", first[:1]))
	rows, err = store.ListScores()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSnapshotStatus(t *testing.T) {
	store := newTestSnapshotStore(t)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Zero(t, status.TotalSnapshots)
	assert.Contains(t, status.TableSizes, snapshotsTable)

	created := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSnapshot(schema.SnapshotRecord{PeriodType: schema.MonthlyPeriod, PeriodKey: "2024-02", RuleID: 1, CreatedAt: created}))

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalSnapshots)
	assert.Equal(t, schema.PeriodKey("2024-02"), status.LastPeriodKey)
	assert.True(t, created.Equal(status.LastCreatedAt))
}

func TestSnapshotStoreNoneBackend(t *testing.T) {
	store, err := NewSnapshotStore(schema.NoneBackend, "")
	require.NoError(t, err)

	assert.NoError(t, store.SaveSnapshot(schema.SnapshotRecord{PeriodType: schema.WeeklyPeriod, PeriodKey: "2024-W10"}))
	assert.NoError(t, store.SaveScores(schema.WeeklyPeriod, "2024-W10", nil))
	_, err = store.GetSnapshot(schema.WeeklyPeriod, "2024-W10")
	assert.ErrorIs(t, err, contract.ErrSnapshotNotFound)

	recs, err := store.ListSnapshots()
	assert.NoError(t, err)
	assert.Empty(t, recs)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
}
