package contract

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tallyhq/tally/schema"
)

// MockBackendClient is a mock implementation of BackendClient for testing.
type MockBackendClient struct {
	mock.Mock
}

var _ BackendClient = &MockBackendClient{} // Compile-time check

// ListMembers implements the BackendClient interface.
func (m *MockBackendClient) ListMembers(ctx context.Context) ([]schema.Member, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]schema.Member)
	return out, args.Error(1)
}

// DailyUsage implements the BackendClient interface.
func (m *MockBackendClient) DailyUsage(ctx context.Context, email string, start, end schema.Date) ([]schema.DailyUsage, error) {
	args := m.Called(ctx, email, start, end)
	out, _ := args.Get(0).([]schema.DailyUsage)
	return out, args.Error(1)
}

// Sessions implements the BackendClient interface.
func (m *MockBackendClient) Sessions(ctx context.Context, email string, start, end schema.Date) ([]schema.SessionRow, error) {
	args := m.Called(ctx, email, start, end)
	out, _ := args.Get(0).([]schema.SessionRow)
	return out, args.Error(1)
}

// ListProjects implements the BackendClient interface.
func (m *MockBackendClient) ListProjects(ctx context.Context, status string) ([]schema.Project, error) {
	args := m.Called(ctx, status)
	out, _ := args.Get(0).([]schema.Project)
	return out, args.Error(1)
}

// ProjectSummary implements the BackendClient interface.
func (m *MockBackendClient) ProjectSummary(ctx context.Context, projectID int64) (schema.ProjectSummary, error) {
	args := m.Called(ctx, projectID)
	out, _ := args.Get(0).(schema.ProjectSummary)
	return out, args.Error(1)
}

// MyContributions implements the BackendClient interface.
func (m *MockBackendClient) MyContributions(ctx context.Context, email string, pt schema.PeriodType, key schema.PeriodKey) (schema.ContributionsResult, error) {
	args := m.Called(ctx, email, pt, key)
	out, _ := args.Get(0).(schema.ContributionsResult)
	return out, args.Error(1)
}

// IncentiveRules implements the BackendClient interface.
func (m *MockBackendClient) IncentiveRules(ctx context.Context) ([]schema.IncentiveRule, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]schema.IncentiveRule)
	return out, args.Error(1)
}

// UpdateIncentiveRule implements the BackendClient interface.
func (m *MockBackendClient) UpdateIncentiveRule(ctx context.Context, ruleID int64, body schema.IncentiveRuleUpdate) (schema.IncentiveRule, error) {
	args := m.Called(ctx, ruleID, body)
	out, _ := args.Get(0).(schema.IncentiveRule)
	return out, args.Error(1)
}

// RecalculateIncentiveRule implements the BackendClient interface.
func (m *MockBackendClient) RecalculateIncentiveRule(ctx context.Context, ruleID int64) error {
	args := m.Called(ctx, ruleID)
	return args.Error(0)
}

// Leaderboard implements the BackendClient interface.
func (m *MockBackendClient) Leaderboard(ctx context.Context, pt schema.PeriodType, key schema.PeriodKey, hookOnly bool) (schema.LeaderboardResponse, error) {
	args := m.Called(ctx, pt, key, hookOnly)
	out, _ := args.Get(0).(schema.LeaderboardResponse)
	return out, args.Error(1)
}

// Spend implements the BackendClient interface.
func (m *MockBackendClient) Spend(ctx context.Context) ([]schema.SpendRow, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]schema.SpendRow)
	return out, args.Error(1)
}

// AlertRules implements the BackendClient interface.
func (m *MockBackendClient) AlertRules(ctx context.Context) ([]schema.AlertRule, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]schema.AlertRule)
	return out, args.Error(1)
}

// AlertEvents implements the BackendClient interface.
func (m *MockBackendClient) AlertEvents(ctx context.Context, limit int) ([]schema.AlertEvent, error) {
	args := m.Called(ctx, limit)
	out, _ := args.Get(0).([]schema.AlertEvent)
	return out, args.Error(1)
}
