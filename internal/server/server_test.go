package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/internal/apiclient"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/logger"
	"github.com/tallyhq/tally/schema"
)

var testNow = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, client contract.BackendClient) *httptest.Server {
	t.Helper()
	srv := New(logger.Nop(), Config{Client: client, Now: func() time.Time { return testNow }})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func post(t *testing.T, ts *httptest.Server, path, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload["error"]
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := get(t, ts, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestPeriods(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := get(t, ts, "/periods?count=3")
	require.Equal(t, http.StatusOK, status)
	var resp PeriodsResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, schema.WeeklyPeriod, resp.PeriodType)
	require.Len(t, resp.Periods, 3)
	assert.Equal(t, schema.PeriodKey("2024-W12"), resp.Periods[0].PeriodKey)
	assert.Equal(t, schema.PeriodKey("2024-W10"), resp.Periods[2].PeriodKey)
	assert.Equal(t, "2024-03-18", resp.Periods[0].Start.String())

	status, body = get(t, ts, "/periods?period_type=weekly&count=2&at=2024-01-01")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, schema.PeriodKey("2024-W01"), resp.Periods[0].PeriodKey)
	assert.Equal(t, schema.PeriodKey("2023-W52"), resp.Periods[1].PeriodKey)

	status, body = get(t, ts, "/periods?period_type=monthly&count=2")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, schema.PeriodKey("2024-03"), resp.Periods[0].PeriodKey)
	assert.Equal(t, schema.PeriodKey("2024-02"), resp.Periods[1].PeriodKey)

	status, body = get(t, ts, "/periods?count=0")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.NotNil(t, resp.Periods)
	assert.Empty(t, resp.Periods)
}

func TestPeriodsBadInput(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, path := range []string{
		"/periods?count=-1",
		"/periods?count=abc",
		"/periods?period_type=quarterly",
		"/periods?at=someday",
	} {
		t.Run(path, func(t *testing.T) {
			status, body := get(t, ts, path)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, errorMessage(t, body))
		})
	}
}

func TestPeriodRange(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := get(t, ts, "/periods/range?period_type=weekly&period_key=2024-w10")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"period_key":"2024-W10","start":"2024-03-04","end":"2024-03-10","days":7}`, string(body))

	status, body = get(t, ts, "/periods/range?period_type=monthly&period_key=2024-13")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errorMessage(t, body), "invalid period key")

	status, _ = get(t, ts, "/periods/range")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestNormalizeWeights(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := post(t, ts, "/weights/normalize", `{"weights":{"lines_added":0.5,"commit_count":0.5,"files_changed":0.5,"agent_requests":0.5}}`)
	require.Equal(t, http.StatusOK, status)
	var resp WeightsResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.InDelta(t, 0.25, resp.Weights[schema.DimLinesAdded], 1e-9)
	assert.InDelta(t, 1.0, resp.Sum, 1e-9)

	status, body = post(t, ts, "/weights/normalize", `{"weights":{"lines_added":0,"commit_count":0}}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 0.0, resp.Weights[schema.DimLinesAdded])

	status, body = post(t, ts, "/weights/normalize", `{"weights":{"stars":0.5}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errorMessage(t, body), "unknown weight dimension")

	status, _ = post(t, ts, "/weights/normalize", `{"weights":`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = post(t, ts, "/weights/normalize", `{"weights":{},"extra":1}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestClampWeight(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := post(t, ts, "/weights/clamp", `{"key":"lines_added","value":1.7,"current":{"lines_added":0.5,"commit_count":0.5}}`)
	require.Equal(t, http.StatusOK, status)
	var resp WeightsResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.InDelta(t, 0.67, resp.Weights[schema.DimLinesAdded], 1e-9)
	assert.InDelta(t, 0.33, resp.Weights[schema.DimCommitCount], 1e-9)

	status, body = post(t, ts, "/weights/clamp", `{"key":"stars","value":0.5}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errorMessage(t, body), "unknown weight dimension")

	status, body = post(t, ts, "/weights/clamp", `{"key":"lines_added"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errorMessage(t, body), "value is required")
}

const aggregateRows = `[
	{"project_id":1,"project_name":"web","author_email":"a@example.com","commit_date":"2024-03-05","commit_count":1,"lines_added":10,"lines_removed":2,"files_changed":1},
	{"project_id":2,"project_name":"api","author_email":"b@example.com","commit_date":"2024-03-05","commit_count":2,"lines_added":30,"lines_removed":1,"files_changed":3},
	{"project_id":1,"project_name":"web","author_email":"b@example.com","commit_date":"2024-03-06","commit_count":1,"lines_added":5,"lines_removed":0,"files_changed":1}
]`

func TestAggregateContributions(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := post(t, ts, "/contributions/aggregate", `{"rows":`+aggregateRows+`}`)
	require.Equal(t, http.StatusOK, status)
	var resp AggregateResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, schema.GroupByProject, resp.GroupBy)
	require.Len(t, resp.Projects, 2)
	assert.Equal(t, int64(2), resp.Projects[0].ProjectID)
	assert.Equal(t, 30, resp.Projects[0].LinesAdded)
	assert.Equal(t, 15, resp.Projects[1].LinesAdded)
	assert.Equal(t, 45, resp.Totals.LinesAdded)
	assert.Equal(t, 4, resp.Totals.CommitCount)

	status, body = post(t, ts, "/contributions/aggregate", `{"group_by":"day","rows":`+aggregateRows+`}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Days, 2)
	assert.Equal(t, "2024-03-05", resp.Days[0].Day.String())

	status, body = post(t, ts, "/contributions/aggregate", `{"group_by":"user","rows":`+aggregateRows+`}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Len(t, resp.Users, 2)
}

func TestAggregateContributionsBadInput(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := post(t, ts, "/contributions/aggregate", `{"rows":[{"project_id":0,"commit_date":"2024-03-05"}]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errorMessage(t, body), "row 0")

	status, _ = post(t, ts, "/contributions/aggregate", `{"group_by":"week","rows":[]}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = post(t, ts, "/contributions/aggregate", `{"rows":[]}`)
	require.Equal(t, http.StatusOK, status)
	var resp AggregateResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Empty(t, resp.Projects)
}

func TestLeaderboard(t *testing.T) {
	client := &contract.MockBackendClient{}
	lb := schema.LeaderboardResponse{
		PeriodType: schema.WeeklyPeriod,
		PeriodKey:  "2024-W12",
		Entries:    []schema.LeaderboardEntry{{UserEmail: "a@example.com", TotalScore: 3}},
	}
	client.On("Leaderboard", mock.Anything, schema.WeeklyPeriod, schema.PeriodKey("2024-W12"), true).Return(lb, nil)
	client.On("Leaderboard", mock.Anything, schema.MonthlyPeriod, schema.PeriodKey("2024-01"), false).
		Return(schema.LeaderboardResponse{}, &apiclient.StatusError{Code: http.StatusNotFound, Status: "Not Found"})
	client.On("Leaderboard", mock.Anything, schema.MonthlyPeriod, schema.PeriodKey("2024-02"), false).
		Return(schema.LeaderboardResponse{}, errors.New("connection refused"))
	ts := newTestServer(t, client)

	status, body := get(t, ts, "/leaderboard?hook_only=yes")
	require.Equal(t, http.StatusOK, status)
	var got schema.LeaderboardResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, lb.Entries, got.Entries)

	status, _ = get(t, ts, "/leaderboard?period_type=monthly&period_key=2024-01")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, ts, "/leaderboard?period_type=monthly&period_key=2024-02")
	assert.Equal(t, http.StatusBadGateway, status)

	status, _ = get(t, ts, "/leaderboard?period_key=2024-99")
	assert.Equal(t, http.StatusBadRequest, status)

	client.AssertExpectations(t)
}

func TestLeaderboardWithoutClient(t *testing.T) {
	ts := newTestServer(t, nil)
	status, _ := get(t, ts, "/leaderboard")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, nil)
	_, _ = get(t, ts, "/healthz")
	_, _ = get(t, ts, "/periods/range?period_key=bad")

	status, body := get(t, ts, "/metrics")
	require.Equal(t, http.StatusOK, status)
	text := string(body)
	assert.Contains(t, text, `tally_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, text, `tally_http_requests_total{method="GET",route="/periods/range",status="400"} 1`)
	assert.Contains(t, text, "tally_http_request_duration_seconds")
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	status, _ := get(t, ts, "/nope")
	assert.Equal(t, http.StatusNotFound, status)

	resp, err := http.Post(ts.URL+"/periods", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
