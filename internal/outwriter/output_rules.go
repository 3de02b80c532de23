package outwriter

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// WriteIncentiveRules outputs incentive rules with their weights and caps.
func WriteIncentiveRules(rules []schema.IncentiveRule, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	formatWeights := func(w schema.WeightSet) string {
		parts := make([]string, 0, len(w))
		for _, d := range orderedDimensions(w) {
			parts = append(parts, string(d)+"="+fmtFloat(w[d]))
		}
		return strings.Join(parts, " ")
	}
	formatCaps := func(c schema.CapSet) string {
		parts := make([]string, 0, 2)
		for _, k := range []schema.CapKey{schema.CapSessionHoursPerDay, schema.CapAgentRequestsPerDay} {
			if v, ok := c[k]; ok {
				parts = append(parts, string(k)+"="+strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		return strings.Join(parts, " ")
	}
	row := func(r schema.IncentiveRule) []string {
		return []string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			string(r.PeriodType),
			formatBool(r.Enabled),
			formatWeights(r.Weights),
			formatCaps(r.Caps),
		}
	}

	return render(cfg, view{
		name: "incentive rules",
		table: func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"ID", "Name", "Period", "Enabled", "Weights", "Caps"})
			data := make([][]string, len(rules))
			for i, r := range rules {
				data[i] = row(r)
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			return table.Render()
		},
		json: rules,
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(rules))
			for i, r := range rules {
				out[i] = row(r)
			}
			return writeCSVWithHeader(w, []string{"id", "name", "period_type", "enabled", "weights", "caps"}, out)
		},
	})
}
