package contract

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/schema"
)

func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		Limit:        DefaultResultLimit,
		Precision:    DefaultPrecision,
		Output:       "text",
		Color:        "yes",
		CacheBackend: "sqlite",
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError bool
	}{
		{name: "valid minimal config", mutate: func(*ConfigRawInput) {}},
		{name: "explicit weekly key", mutate: func(in *ConfigRawInput) { in.Period = "2024-w10" }},
		{name: "monthly period type", mutate: func(in *ConfigRawInput) { in.PeriodType = "MONTHLY"; in.Period = "2024-02" }},
		{name: "invalid week", mutate: func(in *ConfigRawInput) { in.Period = "2024-W60" }, expectError: true},
		{name: "key of wrong type", mutate: func(in *ConfigRawInput) { in.PeriodType = "monthly"; in.Period = "2024-W10" }, expectError: true},
		{name: "unknown period type", mutate: func(in *ConfigRawInput) { in.PeriodType = "yearly" }, expectError: true},
		{name: "invalid anchor", mutate: func(in *ConfigRawInput) { in.At = "last tuesday" }, expectError: true},
		{name: "negative count", mutate: func(in *ConfigRawInput) { in.Count = -1 }, expectError: true},
		{name: "count too large", mutate: func(in *ConfigRawInput) { in.Count = MaxPeriodCount + 1 }, expectError: true},
		{name: "invalid limit (zero)", mutate: func(in *ConfigRawInput) { in.Limit = 0 }, expectError: true},
		{name: "invalid limit (too large)", mutate: func(in *ConfigRawInput) { in.Limit = MaxResultLimit + 1 }, expectError: true},
		{name: "invalid precision", mutate: func(in *ConfigRawInput) { in.Precision = MaxPrecision + 1 }, expectError: true},
		{name: "invalid output", mutate: func(in *ConfigRawInput) { in.Output = "xml" }, expectError: true},
		{name: "invalid color", mutate: func(in *ConfigRawInput) { in.Color = "maybe" }, expectError: true},
		{name: "negative width", mutate: func(in *ConfigRawInput) { in.Width = -2 }, expectError: true},
		{name: "invalid api url", mutate: func(in *ConfigRawInput) { in.APIURL = "ftp://backend" }, expectError: true},
		{name: "negative rps", mutate: func(in *ConfigRawInput) { in.RPS = -1 }, expectError: true},
		{name: "invalid timeout", mutate: func(in *ConfigRawInput) { in.Timeout = "soon" }, expectError: true},
		{name: "invalid log mode", mutate: func(in *ConfigRawInput) { in.LogMode = "loud" }, expectError: true},
		{name: "mysql without connection", mutate: func(in *ConfigRawInput) { in.CacheBackend = "mysql" }, expectError: true},
		{name: "unknown snapshot backend", mutate: func(in *ConfigRawInput) { in.SnapshotBackend = "redis" }, expectError: true},
		{
			name: "shared sqlite file",
			mutate: func(in *ConfigRawInput) {
				in.SnapshotBackend = "sqlite"
				in.CacheDBConnect = "/tmp/tally.db"
				in.SnapshotDBConnect = "/tmp/tally.db"
			},
			expectError: true,
		},
		{name: "separate sqlite files", mutate: func(in *ConfigRawInput) { in.SnapshotBackend = "sqlite" }},
		{name: "weight out of range", mutate: func(in *ConfigRawInput) { in.Weights = map[string]float64{"lines_added": 1.5} }, expectError: true},
		{name: "unknown weight", mutate: func(in *ConfigRawInput) { in.Weights = map[string]float64{"stars": 0.5} }, expectError: true},
		{name: "unknown cap", mutate: func(in *ConfigRawInput) { in.Caps = map[string]float64{"tabs_per_day": 3} }, expectError: true},
		{name: "group by user", mutate: func(in *ConfigRawInput) { in.GroupBy = "User" }},
		{name: "invalid group by", mutate: func(in *ConfigRawInput) { in.GroupBy = "team" }, expectError: true},
		{name: "negative cap", mutate: func(in *ConfigRawInput) { in.Caps = map[string]float64{"agent_requests_per_day": -3} }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, err = period.Range(cfg.PeriodType, cfg.PeriodKey)
			assert.NoError(t, err)
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validInput()))

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultRequestsPerSecond, cfg.RequestsPerSecond)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, schema.WeeklyPeriod, cfg.PeriodType)
	assert.Equal(t, period.WeekKey(cfg.Now), cfg.PeriodKey)
	assert.Equal(t, int64(DefaultRuleID), cfg.RuleID)
	assert.Equal(t, schema.SQLiteBackend, cfg.CacheBackend)
	assert.Equal(t, schema.NoneBackend, cfg.SnapshotBackend)
	assert.Equal(t, "dev", cfg.LogMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.True(t, cfg.UseColors)
	assert.Nil(t, cfg.Weights)
	assert.Equal(t, schema.GroupByProject, cfg.GroupBy)
	assert.False(t, cfg.Save)
}

func TestProcessAndValidatePeriod(t *testing.T) {
	input := validInput()
	input.PeriodType = "monthly"
	input.At = "2024-03-31"
	input.Period = ""
	input.APIURL = "https://tally.example.com/api/"
	input.Email = " Alice@Example.com "

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))
	assert.Equal(t, schema.PeriodKey("2024-03"), cfg.PeriodKey)
	assert.Equal(t, "https://tally.example.com/api", cfg.APIURL)
	assert.Equal(t, "alice@example.com", cfg.Email)

	input.Period = "2024-w09"
	input.PeriodType = "weekly"
	require.NoError(t, ProcessAndValidate(cfg, input))
	assert.Equal(t, schema.PeriodKey("2024-W09"), cfg.PeriodKey)
}

func TestProcessAndValidateWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	content := "weights:\n  lines_added: 0.5\n  commit_count: 0.5\ncaps:\n  agent_requests_per_day: 100\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	input := validInput()
	input.WeightsFile = path
	input.Weights = map[string]float64{"Commit_Count": 0.25}

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))
	assert.Equal(t, schema.WeightSet{schema.DimLinesAdded: 0.5, schema.DimCommitCount: 0.25}, cfg.Weights)
	assert.Equal(t, schema.CapSet{schema.CapAgentRequestsPerDay: 100}, cfg.Caps)
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{
		PeriodKey: "2024-W01",
		Weights:   schema.WeightSet{schema.DimLinesAdded: 1},
		Caps:      schema.CapSet{schema.CapSessionHoursPerDay: 8},
		Now:       time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC),
	}
	clone := cfg.WithPeriod("2024-W02")
	clone.Weights[schema.DimLinesAdded] = 0
	clone.Caps[schema.CapSessionHoursPerDay] = 1

	assert.Equal(t, schema.PeriodKey("2024-W01"), cfg.PeriodKey)
	assert.Equal(t, schema.PeriodKey("2024-W02"), clone.PeriodKey)
	assert.Equal(t, 1.0, cfg.Weights[schema.DimLinesAdded])
	assert.Equal(t, 8.0, cfg.Caps[schema.CapSessionHoursPerDay])
	assert.Equal(t, cfg.Now, clone.Now)
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	assert.NoError(t, ValidateDatabaseConnectionString(schema.SQLiteBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.NoneBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "u:p@tcp(localhost:3306)/tally"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "u:p@localhost"))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost dbname=tally"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, ""))
}
