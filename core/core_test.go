package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/iocache"
	"github.com/tallyhq/tally/schema"
)

func init() {
	headerWriter = io.Discard
}

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) schema.Date {
	return schema.NewDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func testConfig(t *testing.T) *contract.Config {
	t.Helper()
	return &contract.Config{
		PeriodType:  schema.WeeklyPeriod,
		PeriodKey:   "2024-W10",
		Now:         time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC),
		RuleID:      1,
		GroupBy:     schema.GroupByProject,
		Output:      schema.JSONOut,
		OutputFile:  filepath.Join(t.TempDir(), "out.json"),
		Precision:   2,
		Width:       200,
		ResultLimit: 25,
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v))
}

// apiRows is what the project summary endpoint returns: no project fields.
func apiRows() []schema.ContributionRow {
	return []schema.ContributionRow{
		{AuthorEmail: "alice@example.com", CommitDate: day(2024, 3, 5), CommitCount: 2, LinesAdded: 10},
		{AuthorEmail: "bob@example.com", CommitDate: day(2024, 3, 5), CommitCount: 1, LinesAdded: 4},
	}
}

func TestLoadContributionRowsFromFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputFile = filepath.Join(t.TempDir(), "rows.json")
	body := `[{"project_id": 3, "project_name": "web", "author_email": "a@example.com",
		"commit_date": "2024-03-05", "commit_count": 1, "lines_added": 7, "lines_removed": 1, "files_changed": 2}]`
	require.NoError(t, os.WriteFile(cfg.InputFile, []byte(body), 0o644))

	rows, source, err := LoadContributionRows(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.InputFile, source)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].ProjectID)
	assert.Equal(t, 7, rows[0].LinesAdded)
	assert.Equal(t, "2024-03-05", rows[0].CommitDate.String())
}

func TestLoadContributionRowsBadFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputFile = filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(cfg.InputFile, []byte(`{"not": "an array"}`), 0o644))

	_, _, err := LoadContributionRows(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "failed to parse contributions file")
}

func TestLoadContributionRowsNoClient(t *testing.T) {
	_, _, err := LoadContributionRows(context.Background(), testConfig(t), nil)
	assert.ErrorIs(t, err, ErrNoClient)
}

func TestLoadContributionRowsProject(t *testing.T) {
	client := &contract.MockBackendClient{}
	client.On("ProjectSummary", mock.Anything, int64(7)).Return(schema.ProjectSummary{
		Project:       schema.Project{ID: 7, Name: "api"},
		Contributions: apiRows(),
	}, nil)

	cfg := testConfig(t)
	cfg.ProjectID = 7
	rows, source, err := LoadContributionRows(context.Background(), cfg, client)
	require.NoError(t, err)
	assert.Equal(t, "project 7", source)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, int64(7), r.ProjectID)
		assert.Equal(t, "api", r.ProjectName)
	}
	client.AssertExpectations(t)
}

func TestLoadContributionRowsMember(t *testing.T) {
	client := &contract.MockBackendClient{}
	client.On("MyContributions", mock.Anything, "carol@example.com", schema.PeriodType(""), schema.PeriodKey("")).
		Return(schema.ContributionsResult{
			Kind: schema.ContributionsList,
			Rows: []schema.ContributionRow{{ProjectID: 1, CommitDate: day(2024, 3, 5), LinesAdded: 3}},
		}, nil)

	cfg := testConfig(t)
	cfg.Email = "carol@example.com"
	rows, source, err := LoadContributionRows(context.Background(), cfg, client)
	require.NoError(t, err)
	assert.Equal(t, "member carol@example.com", source)
	require.Len(t, rows, 1)
	assert.Equal(t, "carol@example.com", rows[0].AuthorEmail)
}

func TestLoadContributionRowsAllProjects(t *testing.T) {
	client := &contract.MockBackendClient{}
	client.On("ListProjects", mock.Anything, "active").Return([]schema.Project{{ID: 1, Name: "api"}, {ID: 2, Name: "web"}}, nil)
	client.On("ProjectSummary", mock.Anything, int64(1)).Return(schema.ProjectSummary{
		Project: schema.Project{ID: 1, Name: "api"}, Contributions: apiRows(),
	}, nil)
	client.On("ProjectSummary", mock.Anything, int64(2)).Return(schema.ProjectSummary{
		Project: schema.Project{ID: 2, Name: "web"},
		Contributions: []schema.ContributionRow{
			{AuthorEmail: "alice@example.com", CommitDate: day(2024, 3, 6), CommitCount: 1, LinesAdded: 30},
		},
	}, nil)

	rows, source, err := LoadContributionRows(context.Background(), testConfig(t), client)
	require.NoError(t, err)
	assert.Equal(t, "2 active projects", source)
	require.Len(t, rows, 3)
	// Listing order is kept whatever order the fetches finish in.
	assert.Equal(t, int64(1), rows[0].ProjectID)
	assert.Equal(t, int64(1), rows[1].ProjectID)
	assert.Equal(t, int64(2), rows[2].ProjectID)
	assert.Equal(t, "web", rows[2].ProjectName)
	client.AssertExpectations(t)
}

func TestLoadContributionRowsProjectError(t *testing.T) {
	boom := errors.New("boom")
	client := &contract.MockBackendClient{}
	client.On("ListProjects", mock.Anything, "active").Return([]schema.Project{{ID: 1}, {ID: 2}}, nil)
	client.On("ProjectSummary", mock.Anything, int64(1)).Return(schema.ProjectSummary{}, nil)
	client.On("ProjectSummary", mock.Anything, int64(2)).Return(schema.ProjectSummary{}, boom)

	_, _, err := LoadContributionRows(context.Background(), testConfig(t), client)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "project 2")
}

func TestGetAggregateResults(t *testing.T) {
	client := &contract.MockBackendClient{}
	client.On("ProjectSummary", mock.Anything, int64(1)).Return(schema.ProjectSummary{
		Project: schema.Project{ID: 1, Name: "api"},
		Contributions: append(apiRows(), schema.ContributionRow{
			AuthorEmail: "bob@example.com", CommitDate: day(2024, 4, 1), CommitCount: 5, LinesAdded: 100,
		}),
	}, nil)

	cfg := testConfig(t)
	cfg.ProjectID = 1
	cfg.GroupBy = schema.GroupByUser

	res, err := GetAggregateResults(context.Background(), cfg, client)
	require.NoError(t, err)
	assert.Equal(t, schema.GroupByUser, res.GroupBy)
	require.Len(t, res.Users, 2)
	assert.Equal(t, "bob@example.com", res.Users[0].UserEmail)
	assert.Equal(t, 104, res.Users[0].LinesAdded)
	assert.Equal(t, 114, res.Totals.LinesAdded)
	assert.Nil(t, res.Projects)

	cfg.InPeriod = true
	res, err = GetAggregateResults(context.Background(), cfg, client)
	require.NoError(t, err)
	require.Len(t, res.Users, 2)
	assert.Equal(t, "alice@example.com", res.Users[0].UserEmail)
	assert.Equal(t, 14, res.Totals.LinesAdded)
	assert.Contains(t, res.Source, "in 2024-W10")

	cfg.GroupBy = schema.GroupByDay
	res, err = GetAggregateResults(context.Background(), cfg, client)
	require.NoError(t, err)
	require.Len(t, res.Days, 1)
	assert.Equal(t, "2024-03-05", res.Days[0].Day.String())
}

func TestGetAggregateResultsInvalidRow(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputFile = filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(cfg.InputFile, []byte(`[{"project_id": 0, "commit_date": "2024-03-05"}]`), 0o644))

	_, err := GetAggregateResults(context.Background(), cfg, nil)
	assert.Error(t, err)
}

// scoringClient serves one project, one adopted member and the given rule weights.
func scoringClient(weights schema.WeightSet) *contract.MockBackendClient {
	client := &contract.MockBackendClient{}
	client.On("IncentiveRules", mock.Anything).Return([]schema.IncentiveRule{
		{ID: 1, Name: "default", PeriodType: schema.WeeklyPeriod, Weights: weights, Enabled: true},
	}, nil)
	client.On("ListProjects", mock.Anything, "active").Return([]schema.Project{{ID: 1, Name: "api"}}, nil)
	client.On("ProjectSummary", mock.Anything, int64(1)).Return(schema.ProjectSummary{
		Project: schema.Project{ID: 1, Name: "api"}, Contributions: apiRows(),
	}, nil)
	client.On("Sessions", mock.Anything, "", day(2024, 3, 4), day(2024, 3, 10)).Return([]schema.SessionRow{
		{UserEmail: "alice@example.com", ProjectID: ptr(int64(1)), EndedAt: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), DurationSeconds: ptr(int64(3600))},
	}, nil)
	client.On("DailyUsage", mock.Anything, "", day(2024, 3, 4), day(2024, 3, 10)).Return([]schema.DailyUsage{}, nil)
	return client
}

func TestGetScoreResults(t *testing.T) {
	client := scoringClient(schema.WeightSet{schema.DimLinesAdded: 1})

	run, err := GetScoreResults(context.Background(), testConfig(t), client, nil)
	require.NoError(t, err)
	assert.Nil(t, run.Baseline)
	assert.Nil(t, run.Changes)
	require.Len(t, run.Result.Members, 2)
	assert.Equal(t, "alice@example.com", run.Result.Members[0].UserEmail)
	assert.InDelta(t, 10.0, run.Result.Members[0].TotalScore, 1e-9)
	require.Len(t, run.Result.Snapshot, 1)
	assert.Nil(t, run.Result.Members[1].Rank)
	client.AssertExpectations(t)
}

func TestGetScoreResultsWithOverrideAndSave(t *testing.T) {
	client := scoringClient(schema.WeightSet{schema.DimLinesAdded: 1})
	store := &iocache.MockSnapshotStore{}
	store.On("SaveSnapshot", mock.MatchedBy(func(rec schema.SnapshotRecord) bool {
		return rec.PeriodKey == "2024-W10" && rec.RuleID == 1 && len(rec.Entries) == 1
	})).Return(nil)
	store.On("SaveScores", schema.WeeklyPeriod, schema.PeriodKey("2024-W10"), mock.Anything).Return(nil)
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetSnapshotStore").Return(store)

	cfg := testConfig(t)
	cfg.Weights = schema.WeightSet{schema.DimCommitCount: 1}
	cfg.Save = true

	run, err := GetScoreResults(context.Background(), cfg, client, mgr)
	require.NoError(t, err)
	require.NotNil(t, run.Baseline)
	assert.InDelta(t, 0.5, run.Rule.Weights[schema.DimLinesAdded], 1e-9)
	assert.InDelta(t, 0.5, run.Rule.Weights[schema.DimCommitCount], 1e-9)
	assert.InDelta(t, 10.0, run.Baseline.Members[0].TotalScore, 1e-9)
	assert.InDelta(t, 6.0, run.Result.Members[0].TotalScore, 1e-9)
	require.Len(t, run.Changes, 2)
	assert.Equal(t, "alice@example.com", run.Changes[0].UserEmail)
	assert.Equal(t, 0, run.Changes[0].Moved())
	store.AssertExpectations(t)
}

func TestGetScoreResultsSaveWithoutStore(t *testing.T) {
	client := scoringClient(schema.WeightSet{schema.DimLinesAdded: 1})
	cfg := testConfig(t)
	cfg.Save = true

	_, err := GetScoreResults(context.Background(), cfg, client, nil)
	assert.ErrorContains(t, err, "snapshot store is not configured")
}

func TestFindRule(t *testing.T) {
	client := &contract.MockBackendClient{}
	client.On("IncentiveRules", mock.Anything).Return([]schema.IncentiveRule{{ID: 2, Name: "empty"}}, nil)

	rule, err := FindRule(context.Background(), client, 2)
	require.NoError(t, err)
	assert.Equal(t, schema.GetDefaultWeights(), rule.Weights)

	_, err = FindRule(context.Background(), client, 9)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestUpdateRule(t *testing.T) {
	client := &contract.MockBackendClient{}
	client.On("IncentiveRules", mock.Anything).Return([]schema.IncentiveRule{
		{ID: 1, Weights: schema.WeightSet{schema.DimLinesAdded: 1}, Caps: schema.CapSet{schema.CapSessionHoursPerDay: 8}},
	}, nil)
	client.On("UpdateIncentiveRule", mock.Anything, int64(1), mock.MatchedBy(func(u schema.IncentiveRuleUpdate) bool {
		return u.Weights[schema.DimLinesAdded] == 0.5 &&
			u.Weights[schema.DimAgentRequests] == 0.5 &&
			u.Caps[schema.CapSessionHoursPerDay] == 8 &&
			u.Caps[schema.CapAgentRequestsPerDay] == 100
	})).Return(schema.IncentiveRule{ID: 1, Name: "saved"}, nil)
	client.On("RecalculateIncentiveRule", mock.Anything, int64(1)).Return(nil)

	cfg := testConfig(t)
	cfg.Weights = schema.WeightSet{schema.DimAgentRequests: 1}
	cfg.Caps = schema.CapSet{schema.CapAgentRequestsPerDay: 100}
	cfg.Recalculate = true

	rule, err := UpdateRule(context.Background(), cfg, client)
	require.NoError(t, err)
	assert.Equal(t, "saved", rule.Name)
	client.AssertExpectations(t)
}

func TestUpdateRuleWithoutOverrides(t *testing.T) {
	_, err := UpdateRule(context.Background(), testConfig(t), &contract.MockBackendClient{})
	assert.ErrorIs(t, err, ErrNoOverride)
}

func TestGetTeamResults(t *testing.T) {
	client := &contract.MockBackendClient{}
	client.On("ListMembers", mock.Anything).Return([]schema.Member{
		{Email: "Alice@Example.com", Name: "Alice"},
		{Email: "gone@example.com", IsRemoved: true},
	}, nil)
	client.On("Spend", mock.Anything).Return([]schema.SpendRow{{Email: "alice@example.com", SpendCents: 1250}}, nil)

	team, err := GetTeamResults(context.Background(), client)
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, 1250, team[0].SpendCents)
}

func TestGetAlertResults(t *testing.T) {
	client := &contract.MockBackendClient{}
	client.On("AlertRules", mock.Anything).Return([]schema.AlertRule{{ID: 1, Name: "spend"}}, nil)
	client.On("AlertEvents", mock.Anything, 25).Return([]schema.AlertEvent{{ID: 9, RuleID: 1}}, nil)

	res, err := GetAlertResults(context.Background(), testConfig(t), client)
	require.NoError(t, err)
	assert.Len(t, res.Rules, 1)
	assert.Len(t, res.Events, 1)
}

func TestGetSessionAndUsageResults(t *testing.T) {
	client := &contract.MockBackendClient{}
	client.On("Sessions", mock.Anything, "alice@example.com", day(2024, 3, 4), day(2024, 3, 10)).Return([]schema.SessionRow{
		{UserEmail: "alice@example.com", EndedAt: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), DurationSeconds: ptr(int64(1800))},
		{UserEmail: "alice@example.com", EndedAt: time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC), DurationSeconds: ptr(int64(1800))},
	}, nil)
	client.On("DailyUsage", mock.Anything, "alice@example.com", day(2024, 3, 4), day(2024, 3, 10)).Return([]schema.DailyUsage{
		{Email: "alice@example.com", Day: day(2024, 3, 5), AgentRequests: 3, IsActive: true},
	}, nil)

	cfg := testConfig(t)
	cfg.Email = "alice@example.com"

	sessions, err := GetSessionResults(context.Background(), cfg, client)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].SessionCount)
	assert.Equal(t, int64(3600), sessions[0].TotalSeconds)

	usage, err := GetUsageResults(context.Background(), cfg, client)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 3, usage[0].AgentRequests)
}

func TestGetSnapshotLeaderboard(t *testing.T) {
	store := &iocache.MockSnapshotStore{}
	store.On("GetSnapshot", schema.WeeklyPeriod, schema.PeriodKey("2024-W10")).Return(schema.SnapshotRecord{
		PeriodType: schema.WeeklyPeriod,
		PeriodKey:  "2024-W10",
		Entries:    []schema.SnapshotEntry{{Rank: 1, UserEmail: "alice@example.com", TotalScore: 6}},
		CreatedAt:  time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
	}, nil)
	store.On("GetSnapshot", schema.WeeklyPeriod, schema.PeriodKey("2024-W09")).Return(schema.SnapshotRecord{}, contract.ErrSnapshotNotFound)
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetSnapshotStore").Return(store)

	cfg := testConfig(t)
	lb, err := GetSnapshotLeaderboard(cfg, mgr)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, 1, *lb.Entries[0].Rank)

	err = ExecuteSnapshotShow(context.Background(), cfg.WithPeriod("2024-W09"), nil, mgr)
	assert.ErrorContains(t, err, "no snapshot for weekly 2024-W09")
}

func TestExecutePeriods(t *testing.T) {
	cfg := testConfig(t)
	cfg.Count = 3
	require.NoError(t, ExecutePeriods(context.Background(), cfg, nil, nil))

	var spans []schema.PeriodSpan
	readJSON(t, cfg.OutputFile, &spans)
	require.Len(t, spans, 3)
	assert.Equal(t, schema.PeriodKey("2024-W10"), spans[0].PeriodKey)
	assert.Equal(t, schema.PeriodKey("2024-W08"), spans[2].PeriodKey)
}

func TestExecuteLatest(t *testing.T) {
	cfg := testConfig(t)
	cfg.PeriodType = schema.MonthlyPeriod
	require.NoError(t, ExecuteLatest(context.Background(), cfg, nil, nil))

	var spans []schema.PeriodSpan
	readJSON(t, cfg.OutputFile, &spans)
	require.Len(t, spans, 2)
	assert.Equal(t, schema.PeriodKey("2024-02"), spans[0].PeriodKey)
	assert.Equal(t, schema.PeriodKey("2024-03"), spans[1].PeriodKey)
}

func TestExecuteWeightsSetSave(t *testing.T) {
	cfg := testConfig(t)
	cfg.WeightsFile = filepath.Join(t.TempDir(), "weights.yaml")
	cfg.Save = true

	require.NoError(t, ExecuteWeightsSet(context.Background(), cfg, "LINES_ADDED", 0.5))

	saved, err := contract.LoadWeightsFile(cfg.WeightsFile)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, saved.Weights[schema.DimLinesAdded], 1e-9)
	assert.InDelta(t, 0.08, saved.Weights[schema.DimFilesChanged], 1e-9)

	var view struct {
		Weights schema.WeightSet `json:"weights"`
	}
	readJSON(t, cfg.OutputFile, &view)
	assert.Equal(t, saved.Weights, view.Weights)
}

func TestExecuteWeightsSetErrors(t *testing.T) {
	cfg := testConfig(t)
	assert.Error(t, ExecuteWeightsSet(context.Background(), cfg, "stars", 0.5))

	cfg.Save = true
	assert.ErrorContains(t, ExecuteWeightsSet(context.Background(), cfg, schema.DimLinesAdded, 0.5), "--weights-file")
}

func TestExecuteRemoteWithoutClient(t *testing.T) {
	cfg := testConfig(t)
	for name, fn := range map[string]ExecutorFunc{
		"leaderboard": ExecuteLeaderboard,
		"score":       ExecuteScorePreview,
		"sessions":    ExecuteSessions,
		"usage":       ExecuteUsage,
		"rules":       ExecuteRules,
		"rule update": ExecuteRuleUpdate,
		"team":        ExecuteTeam,
		"alerts":      ExecuteAlerts,
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, fn(context.Background(), cfg, nil, nil), ErrNoClient)
		})
	}
}
