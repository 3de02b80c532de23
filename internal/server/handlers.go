package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tallyhq/tally/core/agg"
	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/internal/apiclient"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

var (
	// errBadRequest marks errors caused by the request itself.
	errBadRequest = errors.New("bad request")

	// errUpstream marks failures of the backend API.
	errUpstream = errors.New("backend request failed")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// PeriodsResponse lists period keys with their date ranges, newest first.
type PeriodsResponse struct {
	PeriodType schema.PeriodType   `json:"period_type"`
	Periods    []schema.PeriodSpan `json:"periods"`
}

// WeightsRequest is the body of /weights/normalize.
type WeightsRequest struct {
	Weights schema.WeightSet `json:"weights"`
}

// ClampRequest is the body of /weights/clamp. Value is a pointer so a
// missing value is told apart from zero.
type ClampRequest struct {
	Key     schema.Dimension `json:"key"`
	Value   *float64         `json:"value"`
	Current schema.WeightSet `json:"current"`
}

// WeightsResponse carries a normalized weight set.
type WeightsResponse struct {
	Weights schema.WeightSet `json:"weights"`
	Sum     float64          `json:"sum"`
}

// AggregateRequest is the body of /contributions/aggregate.
type AggregateRequest struct {
	GroupBy schema.GroupBy           `json:"group_by"`
	Rows    []schema.ContributionRow `json:"rows"`
}

// AggregateResponse carries grouped totals. Exactly one of the slices is set.
type AggregateResponse struct {
	GroupBy  schema.GroupBy            `json:"group_by"`
	Totals   schema.Totals             `json:"totals"`
	Projects []schema.ProjectAggregate `json:"projects,omitempty"`
	Users    []schema.UserAggregate    `json:"users,omitempty"`
	Days     []schema.DayAggregate     `json:"days,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePeriods serves GET /periods?period_type=weekly&count=8&at=2024-03-20.
func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pt, err := parsePeriodType(q.Get("period_type"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	count := contract.DefaultPeriodCount
	if raw := q.Get("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count < 0 || count > contract.MaxPeriodCount {
			s.writeError(w, badRequest("count must be an integer between 0 and %d", contract.MaxPeriodCount))
			return
		}
	}
	now := s.cfg.Now()
	if raw := q.Get("at"); raw != "" {
		at, err := contract.ParseAnchorTime(raw, now)
		if err != nil {
			s.writeError(w, badRequest("%v", err))
			return
		}
		now = at
	}

	keys, err := period.LastNKeys(pt, now, count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	spans, err := period.Spans(pt, keys)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, PeriodsResponse{PeriodType: pt, Periods: spans})
}

// handlePeriodRange serves GET /periods/range?period_type=weekly&period_key=2024-W10.
func (s *Server) handlePeriodRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pt, err := parsePeriodType(q.Get("period_type"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	key := schema.PeriodKey(strings.ToUpper(strings.TrimSpace(q.Get("period_key"))))
	if key == "" {
		s.writeError(w, badRequest("period_key is required"))
		return
	}
	spans, err := period.Spans(pt, []schema.PeriodKey{key})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, spans[0])
}

func (s *Server) handleNormalizeWeights(w http.ResponseWriter, r *http.Request) {
	var req WeightsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := agg.ValidateWeights(req.Weights); err != nil {
		s.writeError(w, err)
		return
	}
	out := agg.NormalizeWeights(req.Weights)
	s.writeJSON(w, http.StatusOK, WeightsResponse{Weights: out, Sum: out.Sum()})
}

func (s *Server) handleClampWeight(w http.ResponseWriter, r *http.Request) {
	var req ClampRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Value == nil {
		s.writeError(w, badRequest("value is required"))
		return
	}
	current := req.Current
	if current == nil {
		current = schema.GetDefaultWeights()
	}
	out, err := agg.ClampWeight(*req.Value, req.Key, current)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, WeightsResponse{Weights: out, Sum: out.Sum()})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	groupBy := schema.GroupBy(strings.ToLower(strings.TrimSpace(string(req.GroupBy))))
	if groupBy == "" {
		groupBy = schema.GroupByProject
	}

	resp := AggregateResponse{GroupBy: groupBy}
	var err error
	switch groupBy {
	case schema.GroupByProject:
		resp.Projects, err = agg.AggregateByProject(req.Rows)
	case schema.GroupByUser:
		resp.Users, err = agg.AggregateByUser(req.Rows)
	case schema.GroupByDay:
		resp.Days, err = agg.AggregateByDay(req.Rows)
	default:
		err = badRequest("group_by must be project, user or day")
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp.Totals = agg.SumTotals(req.Rows)
	s.writeJSON(w, http.StatusOK, resp)
}

// handleLeaderboard proxies the backend leaderboard of a period.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Client == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backend client is not configured"})
		return
	}
	q := r.URL.Query()
	pt, err := parsePeriodType(q.Get("period_type"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	key := schema.PeriodKey(strings.ToUpper(strings.TrimSpace(q.Get("period_key"))))
	if key == "" {
		key, err = period.KeyFor(pt, s.cfg.Now())
	} else {
		_, err = period.Range(pt, key)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	hookOnly := false
	if raw := q.Get("hook_only"); raw != "" {
		hookOnly, err = contract.ParseBoolString(raw)
		if err != nil {
			s.writeError(w, badRequest("%v", err))
			return
		}
	}

	lb, err := s.cfg.Client.Leaderboard(r.Context(), pt, key, hookOnly)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errUpstream, err))
		return
	}
	s.writeJSON(w, http.StatusOK, lb)
}

func parsePeriodType(raw string) (schema.PeriodType, error) {
	if raw == "" {
		return schema.WeeklyPeriod, nil
	}
	pt := schema.PeriodType(strings.ToLower(raw))
	if _, ok := schema.ValidPeriodTypes[pt]; !ok {
		return "", fmt.Errorf("%w: %q", period.ErrUnknownPeriodType, raw)
	}
	return pt, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	var statusErr *apiclient.StatusError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, period.ErrInvalidPeriodKey),
		errors.Is(err, period.ErrUnknownPeriodType),
		errors.Is(err, period.ErrNegativeCount),
		errors.Is(err, period.ErrZeroTime),
		errors.Is(err, agg.ErrInvalidRow),
		errors.Is(err, agg.ErrUnknownDimension),
		errors.Is(err, agg.ErrInvalidWeight):
		return http.StatusBadRequest
	case errors.As(err, &statusErr):
		if statusErr.Code == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.Is(err, errUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		s.log.Warn("failed to encode response", "error", err)
	}
}
