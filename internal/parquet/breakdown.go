package parquet

import (
	"encoding/json"

	"github.com/tallyhq/tally/schema"
)

// encodeBreakdown returns the breakdown as a JSON object. Map keys are
// sorted by encoding/json, so equal breakdowns encode equally.
func encodeBreakdown(b map[schema.Dimension]float64) string {
	if len(b) == 0 {
		return "{}"
	}
	data, err := json.Marshal(b)
	if err != nil {
		return "{}"
	}
	return string(data)
}
