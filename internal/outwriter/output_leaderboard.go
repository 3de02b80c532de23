package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/tallyhq/tally/core/score"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/parquet"
	"github.com/tallyhq/tally/schema"
)

// LeaderboardCSVHeader keeps the column order of the dashboard export.
var LeaderboardCSVHeader = []string{"rank", "member", "total_score", "hook_adopted", "lines_added", "commit_count"}

// WriteLeaderboard outputs the leaderboard of a period.
func WriteLeaderboard(lb schema.LeaderboardResponse, cfg *contract.Config) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)
	entries := lb.Entries
	if cfg.ResultLimit > 0 && len(entries) > cfg.ResultLimit {
		entries = entries[:cfg.ResultLimit]
	}

	return render(cfg, view{
		name: "leaderboard",
		table: func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"Rank", "Label", "Member", "Total", "Hook", "Lines Added", "Commits"})
			width := GetMaxTableTextWidth(cfg, 75)
			data := make([][]string, len(entries))
			for i, e := range entries {
				data[i] = []string{
					formatRank(e.Rank),
					rankLabel(cfg, e.Rank),
					contract.TruncateText(e.UserEmail, width),
					fmtFloat(e.TotalScore),
					formatBool(e.HookAdopted),
					fmt.Sprintf(intFmt, e.LinesAdded),
					fmt.Sprintf(intFmt, e.CommitCount),
				}
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			if err := table.Render(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "Leaderboard %s (%s), showing %d of %d members\n",
				lb.PeriodKey, lb.PeriodType, len(entries), len(lb.Entries))
			return err
		},
		json: schema.LeaderboardResponse{
			PeriodType:  lb.PeriodType,
			PeriodKey:   lb.PeriodKey,
			GeneratedAt: lb.GeneratedAt,
			Entries:     entries,
		},
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(entries))
			for i, e := range entries {
				out[i] = []string{
					formatRank(e.Rank),
					e.UserEmail,
					fmtFloat(e.TotalScore),
					formatBool(e.HookAdopted),
					strconv.Itoa(e.LinesAdded),
					strconv.Itoa(e.CommitCount),
				}
			}
			return writeCSVWithHeader(w, LeaderboardCSVHeader, out)
		},
		parquet: func(path string) error {
			return parquet.WriteFile(parquet.ConvertLeaderboard(lb), path)
		},
	})
}

// ScorePreview is the JSON shape of a local score run.
type ScorePreview struct {
	PeriodType schema.PeriodType          `json:"period_type"`
	PeriodKey  schema.PeriodKey           `json:"period_key"`
	RuleID     int64                      `json:"rule_id"`
	Start      schema.Date                `json:"start"`
	End        schema.Date                `json:"end"`
	Members    []schema.ContributionScore `json:"members"`
	Changes    []schema.RankChange        `json:"changes,omitempty"`
}

// WriteScorePreview outputs a locally computed score run. When changes is
// not nil a column shows how each member moved against the baseline run.
func WriteScorePreview(res *score.Result, changes []schema.RankChange, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	members := res.Members
	if cfg.ResultLimit > 0 && len(members) > cfg.ResultLimit {
		members = members[:cfg.ResultLimit]
	}
	dims := breakdownDimensions(res.Members)
	byEmail := make(map[string]schema.RankChange, len(changes))
	for _, c := range changes {
		byEmail[c.UserEmail] = c
	}

	return render(cfg, view{
		name: "score preview",
		table: func(w io.Writer) error {
			header := []string{"Rank", "Label", "Member", "Total"}
			for _, d := range dims {
				header = append(header, schema.DimensionLabels[d])
			}
			if changes != nil {
				header = append(header, "Change")
			}
			table := tablewriter.NewWriter(w)
			table.Header(header)
			width := GetMaxTableTextWidth(cfg, 40+12*len(dims))
			data := make([][]string, len(members))
			for i, m := range members {
				row := []string{
					formatRank(m.Rank),
					rankLabel(cfg, m.Rank),
					contract.TruncateText(m.UserEmail, width),
					fmtFloat(m.TotalScore),
				}
				for _, d := range dims {
					row = append(row, fmtFloat(m.ScoreBreakdown[d]))
				}
				if changes != nil {
					row = append(row, formatChange(byEmail[m.UserEmail]))
				}
				data[i] = row
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			if err := table.Render(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "Scored %s %s (%s to %s) with rule %d: %d ranked of %d members\n",
				res.PeriodType, res.PeriodKey, schema.NewDate(res.Range.Start), schema.NewDate(res.Range.End),
				res.RuleID, len(res.Snapshot), len(res.Members))
			return err
		},
		json: ScorePreview{
			PeriodType: res.PeriodType,
			PeriodKey:  res.PeriodKey,
			RuleID:     res.RuleID,
			Start:      schema.NewDate(res.Range.Start),
			End:        schema.NewDate(res.Range.End),
			Members:    members,
			Changes:    changes,
		},
		csv: func(w *csv.Writer) error {
			header := []string{"rank", "member", "total_score", "hook_adopted"}
			for _, d := range dims {
				header = append(header, string(d))
			}
			if changes != nil {
				header = append(header, "before_rank", "moved")
			}
			out := make([][]string, len(members))
			for i, m := range members {
				row := []string{formatRank(m.Rank), m.UserEmail, fmtFloat(m.TotalScore), formatBool(m.HookAdopted)}
				for _, d := range dims {
					row = append(row, fmtFloat(m.ScoreBreakdown[d]))
				}
				if changes != nil {
					c := byEmail[m.UserEmail]
					row = append(row, formatRank(c.BeforeRank), strconv.Itoa(c.Moved()))
				}
				out[i] = row
			}
			return writeCSVWithHeader(w, header, out)
		},
		parquet: func(path string) error {
			return parquet.WriteFile(parquet.ConvertScoreRecords(res.Records), path)
		},
	})
}

// breakdownDimensions lists the dimensions present in any breakdown, in display order.
func breakdownDimensions(members []schema.ContributionScore) []schema.Dimension {
	seen := make(map[schema.Dimension]struct{})
	for _, m := range members {
		for d := range m.ScoreBreakdown {
			seen[d] = struct{}{}
		}
	}
	var dims []schema.Dimension
	for _, d := range schema.WeightDimensions {
		if _, ok := seen[d]; ok {
			dims = append(dims, d)
		}
	}
	return dims
}

// formatChange renders a rank movement: ▲2, ▼1, = or new/out for members
// entering or leaving the ranking.
func formatChange(c schema.RankChange) string {
	switch {
	case c.BeforeRank == nil && c.AfterRank == nil:
		return "-"
	case c.BeforeRank == nil:
		return "new"
	case c.AfterRank == nil:
		return "out"
	}
	switch moved := c.Moved(); {
	case moved > 0:
		return "▲" + strconv.Itoa(moved)
	case moved < 0:
		return "▼" + strconv.Itoa(-moved)
	default:
		return "="
	}
}

func rankLabel(cfg *contract.Config, rank *int) string {
	if cfg.UseColors {
		return contract.GetColorLabel(rank)
	}
	return schema.GetPlainLabel(rank)
}
