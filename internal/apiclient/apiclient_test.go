package apiclient

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/internal/logger"
	"github.com/tallyhq/tally/schema"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(key string) ([]byte, int, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, 0, 0, sql.ErrNoRows
	}
	return v, CacheVersion, 0, nil
}

func (m *memCache) Set(key string, value []byte, _ int, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *memCache) GetStatus() (schema.CacheStatus, error) { return schema.CacheStatus{}, nil }
func (m *memCache) Close() error                           { return nil }

func newTestClient(t *testing.T, h http.Handler, cache *memCache) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{
		BaseURL:           srv.URL + "/",
		APIKey:            "secret",
		RequestsPerSecond: 1000,
		Burst:             100,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
	}
	var c *Client
	var err error
	if cache != nil {
		c, err = New(logger.Nop(), cfg, cache)
	} else {
		c, err = New(logger.Nop(), cfg, nil)
	}
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) }
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{BaseURL: "http://x"}, nil)
	assert.Error(t, err)

	_, err = New(logger.Nop(), Config{BaseURL: "  "}, nil)
	assert.Error(t, err)

	c, err := New(logger.Nop(), Config{BaseURL: "http://x/api/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://x/api", c.cfg.BaseURL)
	assert.Greater(t, c.cfg.Timeout, time.Duration(0))
}

func TestHeadersAndMembers(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/members", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(t, w, []schema.Member{{ID: 1, Email: "alice@example.com", Name: "Alice"}})
	}), nil)

	members, err := c.ListMembers(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "alice@example.com", members[0].Email)
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}), nil)

	_, err := c.ProjectSummary(context.Background(), 42)
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "404 Not Found", err.Error())
	assert.True(t, IsNotFound(err))
	assert.NotEmpty(t, se.RequestID)
}

func TestRetryOnUnavailable(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, []schema.AlertRule{{ID: 7, Name: "spend"}})
	}), nil)

	rules, err := c.AlertRules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryOnInternalServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, []schema.AlertRule{})
	}), nil)

	rules, err := c.AlertRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rules)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryOnTransportError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			if !assert.True(t, ok) {
				return
			}
			conn, _, err := hj.Hijack()
			if assert.NoError(t, err) {
				_ = conn.Close()
			}
			return
		}
		writeJSON(t, w, []schema.AlertRule{{ID: 2, Name: "seats"}})
	}), nil)

	rules, err := c.AlertRules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}), nil)

	_, err := c.AlertRules(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNoRetryAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	}), nil)

	_, err := c.AlertRules(ctx)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNoRetryOnPost(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), nil)

	err := c.RecalculateIncentiveRule(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNoContent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/incentive-rules/3/recalculate", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}), nil)

	assert.NoError(t, c.RecalculateIncentiveRule(context.Background(), 3))
}

func TestUpdateIncentiveRule(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body schema.IncentiveRuleUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.InDelta(t, 0.5, body.Weights[schema.DimLinesAdded], 1e-9)
		writeJSON(t, w, schema.IncentiveRule{ID: 1, Weights: body.Weights})
	}), nil)

	rule, err := c.UpdateIncentiveRule(context.Background(), 1, schema.IncentiveRuleUpdate{
		Weights: schema.WeightSet{schema.DimLinesAdded: 0.5, schema.DimCommitCount: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rule.ID)
}

func TestSessionsWalksPages(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions", r.URL.Path)
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("start"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		var data []schema.SessionRow
		switch page {
		case 1:
			data = []schema.SessionRow{{ID: 1}, {ID: 2}}
		case 2:
			data = []schema.SessionRow{{ID: 3}}
		}
		writeJSON(t, w, schema.SessionsPage{Total: 3, Page: page, PageSize: 2, Data: data})
	}), nil)

	start, _ := schema.ParseDate("2024-03-01")
	end, _ := schema.ParseDate("2024-03-07")
	rows, err := c.Sessions(context.Background(), "", start, end)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[2].ID)
}

func TestLeaderboardCachesCompletedPeriods(t *testing.T) {
	var calls atomic.Int32
	cache := newMemCache()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		rank := 1
		writeJSON(t, w, schema.LeaderboardResponse{
			PeriodType: schema.WeeklyPeriod,
			PeriodKey:  schema.PeriodKey(r.URL.Query().Get("period_key")),
			Entries:    []schema.LeaderboardEntry{{Rank: &rank, UserEmail: "alice@example.com", TotalScore: 10}},
		})
	}), cache)
	ctx := context.Background()

	// 2024-W10 ended on 2024-03-10, before the fixed clock.
	for i := 0; i < 2; i++ {
		lb, err := c.Leaderboard(ctx, schema.WeeklyPeriod, "2024-W10", true)
		require.NoError(t, err)
		require.Len(t, lb.Entries, 1)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, cache.sets)

	// 2024-W12 is in progress.
	for i := 0; i < 2; i++ {
		_, err := c.Leaderboard(ctx, schema.WeeklyPeriod, "2024-W12", true)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, cache.sets)
}

func TestLeaderboardEmptyEntries(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"period_type":"weekly","period_key":"2024-W10"}`))
	}), nil)

	lb, err := c.Leaderboard(context.Background(), schema.WeeklyPeriod, "2024-W10", false)
	require.NoError(t, err)
	assert.NotNil(t, lb.Entries)
	assert.Empty(t, lb.Entries)
}

func TestMyContributionsKinds(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("period_key") == "" {
			_, _ = w.Write([]byte(`[{"project_id":1,"project_name":"a","commit_date":"2024-03-04","lines_added":5}]`))
			return
		}
		_, _ = w.Write([]byte(`{"user_email":"alice@example.com","total_score":4.5,"rank":2}`))
	}), nil)
	ctx := context.Background()

	list, err := c.MyContributions(ctx, "alice@example.com", "", "")
	require.NoError(t, err)
	assert.Equal(t, schema.ContributionsList, list.Kind)
	require.Len(t, list.Rows, 1)
	assert.Equal(t, 5, list.Rows[0].LinesAdded)

	score, err := c.MyContributions(ctx, "alice@example.com", schema.WeeklyPeriod, "2024-W10")
	require.NoError(t, err)
	assert.Equal(t, schema.ContributionsScore, score.Kind)
	require.NotNil(t, score.Score)
	assert.InDelta(t, 4.5, score.Score.TotalScore, 1e-9)
}

func TestContextCanceled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []schema.Member{})
	}), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListMembers(ctx)
	assert.Error(t, err)
}
