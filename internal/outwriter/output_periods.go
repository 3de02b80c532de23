package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/tallyhq/tally/core/period"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// WritePeriods outputs period keys with their date ranges.
func WritePeriods(pt schema.PeriodType, keys []schema.PeriodKey, cfg *contract.Config) error {
	rows, err := period.Spans(pt, keys)
	if err != nil {
		return err
	}
	return render(cfg, view{
		name: "periods",
		table: func(w io.Writer) error {
			return writePeriodsTable(w, pt, rows)
		},
		json: rows,
		csv: func(w *csv.Writer) error {
			out := make([][]string, len(rows))
			for i, r := range rows {
				out[i] = []string{strconv.Itoa(i), string(r.PeriodKey), r.Start.String(), r.End.String(), strconv.Itoa(r.Days)}
			}
			return writeCSVWithHeader(w, []string{"index", "period_key", "start", "end", "days"}, out)
		},
	})
}

func writePeriodsTable(w io.Writer, pt schema.PeriodType, rows []schema.PeriodSpan) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Period", "Start", "End", "Days"})

	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{strconv.Itoa(i), string(r.PeriodKey), r.Start.String(), r.End.String(), strconv.Itoa(r.Days)}
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Showing %d %s periods, newest first\n", len(rows), pt)
	return err
}

// WeightsView is the JSON shape of a weight set.
type WeightsView struct {
	Weights schema.WeightSet `json:"weights"`
	Sum     float64          `json:"sum"`
}

// WriteWeights outputs a weight set in dimension order.
func WriteWeights(weights schema.WeightSet, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)
	dims := orderedDimensions(weights)
	sum := weights.Sum()

	return render(cfg, view{
		name: "weights",
		table: func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"Dimension", "Label", "Weight"})
			data := make([][]string, 0, len(dims))
			for _, d := range dims {
				data = append(data, []string{string(d), schema.DimensionLabels[d], fmtFloat(weights[d])})
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			if err := table.Render(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "Sum of weights: %s\n", fmtFloat(sum))
			return err
		},
		json: WeightsView{Weights: weights, Sum: sum},
		csv: func(w *csv.Writer) error {
			out := make([][]string, 0, len(dims))
			for _, d := range dims {
				out = append(out, []string{string(d), fmtFloat(weights[d])})
			}
			return writeCSVWithHeader(w, []string{"dimension", "weight"}, out)
		},
	})
}

// orderedDimensions lists the known dimensions of w in display order.
func orderedDimensions(w schema.WeightSet) []schema.Dimension {
	dims := make([]schema.Dimension, 0, len(w))
	for _, d := range schema.WeightDimensions {
		if _, ok := w[d]; ok {
			dims = append(dims, d)
		}
	}
	return dims
}
