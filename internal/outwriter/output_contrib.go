package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/parquet"
	"github.com/tallyhq/tally/schema"
)

// WriteProjectAggregates outputs contribution totals per project.
func WriteProjectAggregates(aggs []schema.ProjectAggregate, cfg *contract.Config) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)
	enriched := schema.EnrichProjects(aggs)
	if cfg.ResultLimit > 0 && len(enriched) > cfg.ResultLimit {
		enriched = enriched[:cfg.ResultLimit]
	}

	return render(cfg, view{
		name: "project aggregates",
		table: func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"Rank", "Project", "Commits", "Lines Added", "Lines Removed", "Files", "Share %"})
			table.Configure(func(c *tablewriter.Config) {
				c.Row.Alignment.Global = tw.AlignRight
			})
			nameWidth := GetMaxTableTextWidth(cfg, 60)
			var data [][]string
			var totals schema.Totals
			for _, p := range enriched {
				totals.CommitCount += p.CommitCount
				totals.LinesAdded += p.LinesAdded
				totals.LinesRemoved += p.LinesRemoved
				totals.FilesChanged += p.FilesChanged
				data = append(data, []string{
					strconv.Itoa(p.Rank),
					contract.TruncateText(p.ProjectName, nameWidth),
					fmt.Sprintf(intFmt, p.CommitCount),
					fmt.Sprintf(intFmt, p.LinesAdded),
					fmt.Sprintf(intFmt, p.LinesRemoved),
					fmt.Sprintf(intFmt, p.FilesChanged),
					fmtFloat(p.Share),
				})
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			if err := table.Render(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "Showing %d projects (commits: %d, lines added: %d, lines removed: %d)\n",
				len(enriched), totals.CommitCount, totals.LinesAdded, totals.LinesRemoved)
			return err
		},
		json: enriched,
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(enriched))
			for i, p := range enriched {
				out[i] = []string{
					strconv.Itoa(p.Rank),
					strconv.FormatInt(p.ProjectID, 10),
					p.ProjectName,
					fmt.Sprintf(intFmt, p.CommitCount),
					fmt.Sprintf(intFmt, p.LinesAdded),
					fmt.Sprintf(intFmt, p.LinesRemoved),
					fmt.Sprintf(intFmt, p.FilesChanged),
					fmtFloat(p.Share),
				}
			}
			return writeCSVWithHeader(w, []string{"rank", "project_id", "project_name", "commit_count", "lines_added", "lines_removed", "files_changed", "share"}, out)
		},
		parquet: func(path string) error {
			return parquet.WriteFile(parquet.ConvertProjectAggregates(aggs), path)
		},
	})
}

// WriteUserAggregates outputs contribution totals per member.
func WriteUserAggregates(aggs []schema.UserAggregate, cfg *contract.Config) error {
	_, intFmt := createFormatters(cfg.Precision)
	if cfg.ResultLimit > 0 && len(aggs) > cfg.ResultLimit {
		aggs = aggs[:cfg.ResultLimit]
	}
	row := func(u schema.UserAggregate) []string {
		return []string{
			u.UserEmail,
			fmt.Sprintf(intFmt, u.Projects),
			fmt.Sprintf(intFmt, u.CommitCount),
			fmt.Sprintf(intFmt, u.LinesAdded),
			fmt.Sprintf(intFmt, u.LinesRemoved),
			fmt.Sprintf(intFmt, u.FilesChanged),
		}
	}

	return render(cfg, view{
		name: "member aggregates",
		table: func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"Member", "Projects", "Commits", "Lines Added", "Lines Removed", "Files"})
			width := GetMaxTableTextWidth(cfg, 55)
			data := make([][]string, len(aggs))
			for i, u := range aggs {
				data[i] = row(u)
				data[i][0] = contract.TruncateText(u.UserEmail, width)
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			return table.Render()
		},
		json: aggs,
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(aggs))
			for i, u := range aggs {
				out[i] = row(u)
			}
			return writeCSVWithHeader(w, []string{"member", "projects", "commit_count", "lines_added", "lines_removed", "files_changed"}, out)
		},
	})
}

// WriteDayAggregates outputs contribution totals per day, oldest first.
func WriteDayAggregates(aggs []schema.DayAggregate, cfg *contract.Config) error {
	_, intFmt := createFormatters(cfg.Precision)
	row := func(d schema.DayAggregate) []string {
		return []string{
			d.Day.String(),
			fmt.Sprintf(intFmt, d.CommitCount),
			fmt.Sprintf(intFmt, d.LinesAdded),
			fmt.Sprintf(intFmt, d.LinesRemoved),
			fmt.Sprintf(intFmt, d.FilesChanged),
		}
	}
	header := []string{"day", "commit_count", "lines_added", "lines_removed", "files_changed"}

	return render(cfg, view{
		name: "daily aggregates",
		table: func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"Day", "Commits", "Lines Added", "Lines Removed", "Files"})
			data := make([][]string, len(aggs))
			for i, d := range aggs {
				data[i] = row(d)
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			return table.Render()
		},
		json: aggs,
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(aggs))
			for i, d := range aggs {
				out[i] = row(d)
			}
			return writeCSVWithHeader(w, header, out)
		},
	})
}

// WriteSessionSummaries outputs per-member session totals.
func WriteSessionSummaries(sums []schema.SessionSummary, cfg *contract.Config) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)
	if cfg.ResultLimit > 0 && len(sums) > cfg.ResultLimit {
		sums = sums[:cfg.ResultLimit]
	}
	row := func(s schema.SessionSummary) []string {
		return []string{
			s.UserEmail,
			s.PrimaryWorkspace,
			fmt.Sprintf(intFmt, s.SessionCount),
			fmtFloat(float64(s.TotalSeconds) / 3600),
			s.FirstSeen.Format(contract.DateTimeFormat),
			s.LastSeen.Format(contract.DateTimeFormat),
		}
	}

	return render(cfg, view{
		name: "session summaries",
		table: func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"Member", "Workspace", "Sessions", "Hours", "First Seen", "Last Seen"})
			width := GetMaxTableTextWidth(cfg, 70)
			data := make([][]string, len(sums))
			for i, s := range sums {
				data[i] = row(s)
				data[i][0] = contract.TruncateText(s.UserEmail, width)
				data[i][1] = contract.TruncateText(s.PrimaryWorkspace, width)
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			return table.Render()
		},
		json: sums,
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(sums))
			for i, s := range sums {
				out[i] = row(s)
			}
			return writeCSVWithHeader(w, []string{"member", "primary_workspace", "session_count", "hours", "first_seen", "last_seen"}, out)
		},
	})
}

// WriteUsageSummaries outputs per-member editor usage totals.
func WriteUsageSummaries(sums []schema.UsageSummary, cfg *contract.Config) error {
	_, intFmt := createFormatters(cfg.Precision)
	if cfg.ResultLimit > 0 && len(sums) > cfg.ResultLimit {
		sums = sums[:cfg.ResultLimit]
	}
	row := func(s schema.UsageSummary) []string {
		return []string{
			s.Email,
			fmt.Sprintf(intFmt, s.ActiveDays),
			fmt.Sprintf(intFmt, s.AgentRequests),
			fmt.Sprintf(intFmt, s.ChatRequests),
			fmt.Sprintf(intFmt, s.ComposerRequests),
			fmt.Sprintf(intFmt, s.TotalTabsAccepted),
			fmt.Sprintf(intFmt, s.TotalLinesAdded),
		}
	}

	return render(cfg, view{
		name: "usage summaries",
		table: func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"Member", "Active Days", "Agent", "Chat", "Composer", "Tabs", "Lines Added"})
			width := GetMaxTableTextWidth(cfg, 70)
			data := make([][]string, len(sums))
			for i, s := range sums {
				data[i] = row(s)
				data[i][0] = contract.TruncateText(s.Email, width)
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			return table.Render()
		},
		json: sums,
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(sums))
			for i, s := range sums {
				out[i] = row(s)
			}
			return writeCSVWithHeader(w, []string{"member", "active_days", "agent_requests", "chat_requests", "composer_requests", "tabs_accepted", "lines_added"}, out)
		},
	})
}

// WriteContributionRows outputs raw contribution rows.
func WriteContributionRows(rows []schema.ContributionRow, cfg *contract.Config) error {
	_, intFmt := createFormatters(cfg.Precision)
	row := func(r schema.ContributionRow) []string {
		return []string{
			r.CommitDate.String(),
			strconv.FormatInt(r.ProjectID, 10),
			r.ProjectName,
			fmt.Sprintf(intFmt, r.CommitCount),
			fmt.Sprintf(intFmt, r.LinesAdded),
			fmt.Sprintf(intFmt, r.LinesRemoved),
			fmt.Sprintf(intFmt, r.FilesChanged),
		}
	}

	return render(cfg, view{
		name: "contribution rows",
		table: func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"Day", "Project ID", "Project", "Commits", "Lines Added", "Lines Removed", "Files"})
			data := make([][]string, len(rows))
			for i, r := range rows {
				data[i] = row(r)
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			return table.Render()
		},
		json: rows,
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(rows))
			for i, r := range rows {
				out[i] = row(r)
			}
			return writeCSVWithHeader(w, []string{"commit_date", "project_id", "project_name", "commit_count", "lines_added", "lines_removed", "files_changed"}, out)
		},
	})
}
