package contract

import (
	"fmt"
	"maps"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/tallyhq/tally/core/agg"
	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/schema"
)

// Default values for configuration.
const (
	DefaultAPIURL            = "http://localhost:8000/api"
	DefaultRequestsPerSecond = 5.0
	DefaultTimeout           = 15 * time.Second
	DefaultPeriodCount       = 8
	MaxPeriodCount           = 520
	DefaultRuleID            = 1
	DefaultResultLimit       = 25
	MaxResultLimit           = 1000
	DefaultPrecision         = 2
	MaxPrecision             = 4
	DefaultListenAddr        = ":8080"
	DefaultLogMode           = "dev"
	DefaultLogLevel          = "info"
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the runtime configuration.
// This struct is the "final, validated" config.
type Config struct {
	APIURL            string
	APIKey            string // Please use env var as this is plaintext
	RequestsPerSecond float64
	Timeout           time.Duration

	PeriodType schema.PeriodType
	PeriodKey  schema.PeriodKey // Defaults to the period containing Now
	Count      int
	Now        time.Time
	RuleID     int64
	Email      string
	ProjectID  int64
	HookOnly   bool

	// InputFile is a JSON file of contribution rows read instead of the backend.
	InputFile string
	GroupBy   schema.GroupBy
	InPeriod  bool // Keep only rows inside the configured period

	Save        bool // Persist local score runs to the snapshot store
	Recalculate bool // Ask the backend to rescore after a rule update

	ResultLimit int
	Precision   int
	Output      schema.OutputMode
	OutputFile  string
	Width       int // Terminal width override (0 = auto-detect)
	UseColors   bool

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	SnapshotBackend   schema.DatabaseBackend
	SnapshotDBConnect string // Please use env var as this is plaintext

	LogMode    string
	LogLevel   string
	ListenAddr string

	// Weights overrides the rule weights when scoring locally. Nil keeps the rule's.
	Weights schema.WeightSet

	// Caps overrides individual rule caps when scoring locally.
	Caps schema.CapSet

	// WeightsFile is the YAML file Weights and Caps were loaded from, if any.
	WeightsFile string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Backend ---
	APIURL  string  `mapstructure:"api-url"`
	APIKey  string  `mapstructure:"api-key"`
	RPS     float64 `mapstructure:"rps"`
	Timeout string  `mapstructure:"timeout"`

	// --- Period selection ---
	PeriodType string `mapstructure:"period-type"`
	Period     string `mapstructure:"period"`
	Count      int    `mapstructure:"count"`
	At         string `mapstructure:"at"`
	Rule       int64  `mapstructure:"rule"`
	Email      string `mapstructure:"email"`
	Project    int64  `mapstructure:"project"`
	HookOnly   bool   `mapstructure:"hook-only"`

	// --- Contributions / scoring ---
	Input       string `mapstructure:"input"`
	GroupBy     string `mapstructure:"group-by"`
	InPeriod    bool   `mapstructure:"in-period"`
	Save        bool   `mapstructure:"save"`
	Recalculate bool   `mapstructure:"recalculate"`

	// --- Output ---
	Limit      int    `mapstructure:"limit"`
	Precision  int    `mapstructure:"precision"`
	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Width      int    `mapstructure:"width"`
	Color      string `mapstructure:"color"`

	// --- Persistence ---
	CacheBackend      string `mapstructure:"cache-backend"`
	CacheDBConnect    string `mapstructure:"cache-db-connect"`
	SnapshotBackend   string `mapstructure:"snapshot-backend"`
	SnapshotDBConnect string `mapstructure:"snapshot-db-connect"`

	// --- Service ---
	LogMode  string `mapstructure:"log-mode"`
	LogLevel string `mapstructure:"log-level"`
	Listen   string `mapstructure:"listen"`

	// --- Weights from flags or the config file ---
	WeightsFile string             `mapstructure:"weights-file"`
	Weights     map[string]float64 `mapstructure:"weights"`
	Caps        map[string]float64 `mapstructure:"caps"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Weights = c.Weights.Clone()
	if c.Caps != nil {
		clone.Caps = make(schema.CapSet, len(c.Caps))
		maps.Copy(clone.Caps, c.Caps)
	}
	return &clone
}

// WithPeriod returns a copy of the Config scoped to another period key.
func (c *Config) WithPeriod(key schema.PeriodKey) *Config {
	clone := c.Clone()
	clone.PeriodKey = key
	return clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processBackendAPI(cfg, input); err != nil {
		return err
	}
	if err := processPeriod(cfg, input); err != nil {
		return err
	}
	if err := processWeights(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// ParseDatabaseBackend maps a raw backend name to a DatabaseBackend.
// Empty means none.
func ParseDatabaseBackend(raw string) (schema.DatabaseBackend, error) {
	if raw == "" {
		return schema.NoneBackend, nil
	}
	backend := schema.DatabaseBackend(strings.ToLower(raw))
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", fmt.Errorf("invalid backend '%s'. must be sqlite, mysql, postgresql, none", raw)
	}
	return backend, nil
}

// validateBackendConfigs validates cache and snapshot backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cacheBackend := input.CacheBackend
	if cacheBackend == "" {
		cacheBackend = string(schema.SQLiteBackend)
	}
	backend, err := ParseDatabaseBackend(cacheBackend)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	cfg.CacheBackend = backend
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- Snapshot Backend Validation ---
	backend, err = ParseDatabaseBackend(input.SnapshotBackend)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	cfg.SnapshotBackend = backend
	cfg.SnapshotDBConnect = input.SnapshotDBConnect
	if err := ValidateDatabaseConnectionString(cfg.SnapshotBackend, cfg.SnapshotDBConnect); err != nil {
		return err
	}

	// Cache and snapshots must not share a SQLite file
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.SnapshotBackend == schema.SQLiteBackend {
		cachePath := cfg.CacheDBConnect
		if cachePath == "" {
			cachePath = GetCacheDBFilePath()
		}
		snapshotPath := cfg.SnapshotDBConnect
		if snapshotPath == "" {
			snapshotPath = GetSnapshotDBFilePath()
		}
		if filepath.Clean(cachePath) == filepath.Clean(snapshotPath) {
			return fmt.Errorf("cache and snapshot storage must use different SQLite database files. Both resolve to %q", cachePath)
		}
	}
	return nil
}

// validateSimpleInputs processes and validates the output and service fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Email = schema.NormalizeEmail(input.Email)
	cfg.ProjectID = input.Project
	cfg.HookOnly = input.HookOnly
	cfg.InputFile = input.Input
	cfg.InPeriod = input.InPeriod
	cfg.Save = input.Save
	cfg.Recalculate = input.Recalculate

	cfg.GroupBy = schema.GroupBy(strings.ToLower(defaultString(input.GroupBy, string(schema.GroupByProject))))
	if _, ok := schema.ValidGroupBys[cfg.GroupBy]; !ok {
		return fmt.Errorf("invalid group-by '%s'. must be project, user, day", input.GroupBy)
	}

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	if input.Precision < 0 || input.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between 0 and %d (received %d)", MaxPrecision, input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}

	if input.Width < 0 {
		return fmt.Errorf("width cannot be negative (received %d)", input.Width)
	}
	cfg.Width = input.Width

	if input.Project < 0 {
		return fmt.Errorf("project id cannot be negative (received %d)", input.Project)
	}

	cfg.LogMode = strings.ToLower(defaultString(input.LogMode, DefaultLogMode))
	if cfg.LogMode != "dev" && cfg.LogMode != "prod" {
		return fmt.Errorf("invalid log mode '%s'. must be dev or prod", input.LogMode)
	}
	cfg.LogLevel = strings.ToLower(defaultString(input.LogLevel, DefaultLogLevel))
	cfg.ListenAddr = defaultString(input.Listen, DefaultListenAddr)
	return nil
}

// processBackendAPI validates the backend URL, key and client limits.
func processBackendAPI(cfg *Config, input *ConfigRawInput) error {
	raw := strings.TrimRight(defaultString(input.APIURL, DefaultAPIURL), "/")
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api-url %q: expected an http(s) URL", raw)
	}
	cfg.APIURL = raw
	cfg.APIKey = input.APIKey

	cfg.RequestsPerSecond = input.RPS
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("rps must be positive (received %v)", input.RPS)
	}

	cfg.Timeout = DefaultTimeout
	if input.Timeout != "" {
		timeout, err := ParseLookbackDuration(input.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	return nil
}

// processPeriod resolves the period type, the anchor time and the period key.
func processPeriod(cfg *Config, input *ConfigRawInput) error {
	cfg.PeriodType = schema.PeriodType(strings.ToLower(defaultString(input.PeriodType, string(schema.WeeklyPeriod))))
	if _, ok := schema.ValidPeriodTypes[cfg.PeriodType]; !ok {
		return fmt.Errorf("invalid period type '%s'. must be daily, weekly, monthly", input.PeriodType)
	}

	now := time.Now()
	cfg.Now = now
	if input.At != "" {
		at, err := ParseAnchorTime(input.At, now)
		if err != nil {
			return err
		}
		cfg.Now = at
	}

	if input.Count < 0 || input.Count > MaxPeriodCount {
		return fmt.Errorf("count must be between 0 and %d (received %d)", MaxPeriodCount, input.Count)
	}
	cfg.Count = input.Count

	if input.Rule < 0 {
		return fmt.Errorf("rule id cannot be negative (received %d)", input.Rule)
	}
	cfg.RuleID = input.Rule
	if cfg.RuleID == 0 {
		cfg.RuleID = DefaultRuleID
	}

	if input.Period == "" {
		key, err := period.KeyFor(cfg.PeriodType, cfg.Now)
		if err != nil {
			return err
		}
		cfg.PeriodKey = key
		return nil
	}
	key := schema.PeriodKey(strings.ToUpper(strings.TrimSpace(input.Period)))
	if _, err := period.Range(cfg.PeriodType, key); err != nil {
		return err
	}
	cfg.PeriodKey = key
	return nil
}

// processWeights loads the weights file, applies inline overrides and
// validates the result.
func processWeights(cfg *Config, input *ConfigRawInput) error {
	cfg.Weights = nil
	cfg.Caps = nil
	cfg.WeightsFile = input.WeightsFile
	if input.WeightsFile != "" {
		file, err := LoadWeightsFile(input.WeightsFile)
		if err != nil {
			return err
		}
		cfg.Weights = file.Weights
		cfg.Caps = file.Caps
	}
	if len(input.Weights) > 0 {
		if cfg.Weights == nil {
			cfg.Weights = schema.WeightSet{}
		}
		for k, v := range input.Weights {
			cfg.Weights[schema.Dimension(strings.ToLower(k))] = v
		}
	}
	if err := agg.ValidateWeights(cfg.Weights); err != nil {
		return err
	}
	if len(input.Caps) > 0 {
		if cfg.Caps == nil {
			cfg.Caps = schema.CapSet{}
		}
		for k, v := range input.Caps {
			cfg.Caps[schema.CapKey(strings.ToLower(k))] = v
		}
	}
	return ValidateCaps(cfg.Caps)
}

// ValidateCaps rejects unknown cap keys and negative caps.
func ValidateCaps(caps schema.CapSet) error {
	for k, v := range caps {
		if k != schema.CapSessionHoursPerDay && k != schema.CapAgentRequestsPerDay {
			return fmt.Errorf("unknown cap %q", k)
		}
		if v < 0 {
			return fmt.Errorf("cap %s cannot be negative (received %v)", k, v)
		}
	}
	return nil
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
