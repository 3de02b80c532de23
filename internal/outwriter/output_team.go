package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// WriteTeam outputs the team seats with their spend.
func WriteTeam(team []schema.TeamMember, cfg *contract.Config) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)
	if cfg.ResultLimit > 0 && len(team) > cfg.ResultLimit {
		team = team[:cfg.ResultLimit]
	}
	limit := func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmtFloat(*v)
	}
	row := func(m schema.TeamMember) []string {
		return []string{
			m.Email,
			m.Name,
			m.Role,
			fmtFloat(float64(m.SpendCents) / 100),
			fmt.Sprintf(intFmt, m.FastPremiumRequests),
			limit(m.MonthlyLimitDollars),
		}
	}

	return render(cfg, view{
		name: "team",
		table: func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"Member", "Name", "Role", "Spend $", "Premium Requests", "Limit $"})
			width := GetMaxTableTextWidth(cfg, 70)
			var total int
			data := make([][]string, len(team))
			for i, m := range team {
				total += m.SpendCents
				data[i] = row(m)
				data[i][0] = contract.TruncateText(m.Email, width)
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			if err := table.Render(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "%d members, total spend $%s\n", len(team), fmtFloat(float64(total)/100))
			return err
		},
		json: team,
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(team))
			for i, m := range team {
				out[i] = row(m)
			}
			return writeCSVWithHeader(w, []string{"email", "name", "role", "spend_dollars", "fast_premium_requests", "monthly_limit_dollars"}, out)
		},
	})
}

// AlertsView is the JSON shape of the alerts output.
type AlertsView struct {
	Rules  []schema.AlertRule  `json:"rules"`
	Events []schema.AlertEvent `json:"events"`
}

// WriteAlerts outputs alert rules followed by recent events. CSV output
// only carries the events.
func WriteAlerts(rules []schema.AlertRule, events []schema.AlertEvent, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	eventRow := func(e schema.AlertEvent) []string {
		return []string{
			e.TriggeredAt.Format(contract.DateTimeFormat),
			strconv.FormatInt(e.RuleID, 10),
			e.RuleName,
			e.Metric,
			fmtFloat(e.MetricValue),
			fmtFloat(e.Threshold),
		}
	}

	return render(cfg, view{
		name: "alerts",
		table: func(w io.Writer) error {
			rulesTable := tablewriter.NewWriter(w)
			rulesTable.Header([]string{"ID", "Rule", "Metric", "Scope", "Target", "Threshold", "Channels", "Enabled"})
			data := make([][]string, len(rules))
			for i, r := range rules {
				target := ""
				if r.TargetEmail != nil {
					target = *r.TargetEmail
				}
				channels := make([]string, 0, len(r.NotifyChannels))
				for _, c := range r.NotifyChannels {
					channels = append(channels, c.Type)
				}
				data[i] = []string{
					strconv.FormatInt(r.ID, 10),
					r.Name,
					r.Metric,
					r.Scope,
					target,
					fmtFloat(r.Threshold),
					strings.Join(channels, ","),
					formatBool(r.Enabled),
				}
			}
			if err := rulesTable.Bulk(data); err != nil {
				return err
			}
			if err := rulesTable.Render(); err != nil {
				return err
			}

			if _, err := fmt.Fprintf(w, "\nRecent events (%d)\n", len(events)); err != nil {
				return err
			}
			eventsTable := tablewriter.NewWriter(w)
			eventsTable.Header([]string{"Triggered", "Rule ID", "Rule", "Metric", "Value", "Threshold"})
			data = make([][]string, len(events))
			for i, e := range events {
				data[i] = eventRow(e)
			}
			if err := eventsTable.Bulk(data); err != nil {
				return err
			}
			return eventsTable.Render()
		},
		json: AlertsView{Rules: rules, Events: events},
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(events))
			for i, e := range events {
				out[i] = eventRow(e)
			}
			return writeCSVWithHeader(w, []string{"triggered_at", "rule_id", "rule_name", "metric", "metric_value", "threshold"}, out)
		},
	})
}
