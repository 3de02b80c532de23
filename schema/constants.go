package schema

// Custom string types for type safety.
type (
	// Dimension represents a contribution dimension that carries an incentive weight.
	Dimension string

	// CapKey represents a per-day cap applied before scoring.
	CapKey string

	// PeriodType represents the reporting granularity of a period key.
	PeriodType string

	// PeriodKey is the canonical identifier of a reporting period.
	PeriodKey string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching.
	DatabaseBackend string

	// ContributionsKind discriminates the payload of a contributions response.
	ContributionsKind string

	// GroupBy represents the key contribution rows are folded by.
	GroupBy string
)

// Dimensions used in incentive weights and raw score data.
const (
	DimLinesAdded           Dimension = "lines_added"
	DimCommitCount          Dimension = "commit_count"
	DimSessionDurationHours Dimension = "session_duration_hours"
	DimAgentRequests        Dimension = "agent_requests"
	DimFilesChanged         Dimension = "files_changed"

	// DimLinesRemoved is tracked in raw data but never weighted.
	DimLinesRemoved Dimension = "lines_removed"
)

// Caps applied per user and day.
const (
	CapSessionHoursPerDay  CapKey = "session_duration_hours_per_day"
	CapAgentRequestsPerDay CapKey = "agent_requests_per_day"
)

// Default cap values used when a rule does not set them.
const (
	DefaultSessionHoursPerDay  = 12.0
	DefaultAgentRequestsPerDay = 500.0
)

// All period types supported.
const (
	DailyPeriod   PeriodType = "daily"
	WeeklyPeriod  PeriodType = "weekly" // default
	MonthlyPeriod PeriodType = "monthly"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All cache backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Contributions response variants.
const (
	ContributionsList  ContributionsKind = "list"
	ContributionsScore ContributionsKind = "score"
)

// All aggregation keys supported.
const (
	GroupByProject GroupBy = "project" // default
	GroupByUser    GroupBy = "user"
	GroupByDay     GroupBy = "day"
)

// ValidGroupBys lists all valid aggregation keys.
var ValidGroupBys = map[GroupBy]struct{}{
	GroupByProject: {},
	GroupByUser:    {},
	GroupByDay:     {},
}

// WeightDimensions lists the weighted dimensions in display order.
var WeightDimensions = []Dimension{
	DimLinesAdded,
	DimCommitCount,
	DimSessionDurationHours,
	DimAgentRequests,
	DimFilesChanged,
}

// ValidDimensions lists all dimensions accepted in a weight set.
var ValidDimensions = map[Dimension]struct{}{
	DimLinesAdded:           {},
	DimCommitCount:          {},
	DimSessionDurationHours: {},
	DimAgentRequests:        {},
	DimFilesChanged:         {},
}

// DimensionLabels are human-readable column titles for each dimension.
var DimensionLabels = map[Dimension]string{
	DimLinesAdded:           "Lines Added",
	DimCommitCount:          "Commits",
	DimSessionDurationHours: "Session Hours",
	DimAgentRequests:        "Agent Requests",
	DimFilesChanged:         "Files Changed",
}

// ValidPeriodTypes lists all valid period types.
var ValidPeriodTypes = map[PeriodType]struct{}{
	DailyPeriod:   {},
	WeeklyPeriod:  {},
	MonthlyPeriod: {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// GetDefaultWeights returns the weights of the built-in incentive rule.
func GetDefaultWeights() WeightSet {
	return WeightSet{
		DimLinesAdded:           0.30,
		DimCommitCount:          0.20,
		DimSessionDurationHours: 0.20,
		DimAgentRequests:        0.20,
		DimFilesChanged:         0.10,
	}
}
