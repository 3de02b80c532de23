package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tallyhq/tally/core/agg"
	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
	"golang.org/x/sync/errgroup"
)

// projectFetchWorkers bounds concurrent project summary requests. The
// client rate limiter still applies on top.
const projectFetchWorkers = 4

// activeProjectStatus selects the projects whose rows are fetched when no
// project or member is given.
const activeProjectStatus = "active"

// ErrNoClient is returned when an operation needs the backend but no client is configured.
var ErrNoClient = errors.New("backend client is not configured")

// AggregateResult holds contribution rows folded by the configured key.
// Exactly one of the slices is set.
type AggregateResult struct {
	GroupBy  schema.GroupBy            `json:"group_by"`
	Source   string                    `json:"source"`
	Rows     int                       `json:"rows"`
	Totals   schema.Totals             `json:"totals"`
	Projects []schema.ProjectAggregate `json:"projects,omitempty"`
	Users    []schema.UserAggregate    `json:"users,omitempty"`
	Days     []schema.DayAggregate     `json:"days,omitempty"`
}

// LoadContributionRows returns the rows selected by cfg: the input file when
// set, then a single project, then a single member, and otherwise every
// active project. The second return value names the source.
func LoadContributionRows(ctx context.Context, cfg *contract.Config, client contract.BackendClient) ([]schema.ContributionRow, string, error) {
	if cfg.InputFile != "" {
		rows, err := readRowsFile(cfg.InputFile)
		return rows, cfg.InputFile, err
	}
	if client == nil {
		return nil, "", ErrNoClient
	}

	switch {
	case cfg.ProjectID > 0:
		rows, err := fetchProjectRows(ctx, client, cfg.ProjectID)
		return rows, fmt.Sprintf("project %d", cfg.ProjectID), err

	case cfg.Email != "":
		res, err := client.MyContributions(ctx, cfg.Email, "", "")
		if err != nil {
			return nil, "", err
		}
		rows := res.Rows
		for i := range rows {
			if rows[i].AuthorEmail == "" {
				rows[i].AuthorEmail = cfg.Email
			}
		}
		return rows, "member " + cfg.Email, nil

	default:
		rows, n, err := fetchAllProjectRows(ctx, client)
		return rows, fmt.Sprintf("%d %s projects", n, activeProjectStatus), err
	}
}

// GetAggregateResults loads contribution rows and folds them by cfg.GroupBy.
func GetAggregateResults(ctx context.Context, cfg *contract.Config, client contract.BackendClient) (*AggregateResult, error) {
	rows, source, err := LoadContributionRows(ctx, cfg, client)
	if err != nil {
		return nil, err
	}
	res, err := AggregateRows(cfg, rows, source)
	if err != nil {
		return nil, err
	}
	logSourceHeader(ctx, res.Source, res.Rows)
	return res, nil
}

// AggregateRows folds rows by cfg.GroupBy. With cfg.InPeriod only rows inside
// the configured period are kept.
func AggregateRows(cfg *contract.Config, rows []schema.ContributionRow, source string) (*AggregateResult, error) {
	if cfg.InPeriod {
		rng, err := period.Range(cfg.PeriodType, cfg.PeriodKey)
		if err != nil {
			return nil, err
		}
		rows = filterRows(rows, rng)
		source = fmt.Sprintf("%s in %s", source, cfg.PeriodKey)
	}

	res := &AggregateResult{GroupBy: cfg.GroupBy, Source: source, Rows: len(rows)}
	var err error
	switch cfg.GroupBy {
	case schema.GroupByUser:
		res.Users, err = agg.AggregateByUser(rows)
	case schema.GroupByDay:
		res.Days, err = agg.AggregateByDay(rows)
	default:
		res.GroupBy = schema.GroupByProject
		res.Projects, err = agg.AggregateByProject(rows)
	}
	if err != nil {
		return nil, err
	}
	res.Totals = agg.SumTotals(rows)
	return res, nil
}

// readRowsFile reads a JSON array of contribution rows.
func readRowsFile(path string) ([]schema.ContributionRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contributions file: %w", err)
	}
	var rows []schema.ContributionRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse contributions file %s: %w", path, err)
	}
	if rows == nil {
		rows = []schema.ContributionRow{}
	}
	return rows, nil
}

// fetchProjectRows returns the rows of one project, filling in the project
// id and name the summary leaves implicit.
func fetchProjectRows(ctx context.Context, client contract.BackendClient, projectID int64) ([]schema.ContributionRow, error) {
	summary, err := client.ProjectSummary(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("project %d: %w", projectID, err)
	}
	rows := summary.Contributions
	for i := range rows {
		if rows[i].ProjectID == 0 {
			rows[i].ProjectID = projectID
		}
		if rows[i].ProjectName == "" {
			rows[i].ProjectName = summary.Project.Name
		}
	}
	return rows, nil
}

// fetchAllProjectRows fetches the rows of every active project concurrently.
// Rows keep the order of the project listing.
func fetchAllProjectRows(ctx context.Context, client contract.BackendClient) ([]schema.ContributionRow, int, error) {
	projects, err := client.ListProjects(ctx, activeProjectStatus)
	if err != nil {
		return nil, 0, err
	}

	perProject := make([][]schema.ContributionRow, len(projects))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(projectFetchWorkers)
	for i, p := range projects {
		g.Go(func() error {
			rows, err := fetchProjectRows(gctx, client, p.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			perProject[i] = rows
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var out []schema.ContributionRow
	for _, rows := range perProject {
		out = append(out, rows...)
	}
	if out == nil {
		out = []schema.ContributionRow{}
	}
	return out, len(projects), nil
}

func filterRows(rows []schema.ContributionRow, rng schema.DateRange) []schema.ContributionRow {
	out := make([]schema.ContributionRow, 0, len(rows))
	for _, r := range rows {
		if rng.Contains(r.CommitDate.Time) {
			out = append(out, r)
		}
	}
	return out
}
