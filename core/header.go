package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// headerWriter is where run headers go. Stdout is left to the results.
var headerWriter io.Writer = os.Stderr

// logPeriodHeader prints a concise, 2-line header for a period run.
func logPeriodHeader(ctx context.Context, title string, cfg *contract.Config, rng schema.DateRange) {
	if shouldSuppressHeader(ctx) {
		return
	}
	_, _ = fmt.Fprintf(headerWriter, "🔎 %s: %s %s (rule %d)\n", title, cfg.PeriodType, cfg.PeriodKey, cfg.RuleID)
	_, _ = fmt.Fprintf(headerWriter, "📅 Range: %s → %s\n", schema.NewDate(rng.Start), schema.NewDate(rng.End))
}

// logSourceHeader prints where contribution rows were read from.
func logSourceHeader(ctx context.Context, source string, rows int) {
	if shouldSuppressHeader(ctx) {
		return
	}
	_, _ = fmt.Fprintf(headerWriter, "📥 Source: %s (%d rows)\n", source, rows)
}
