package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/schema"
)

// view describes how one result renders in every output mode. Nil fields
// mean the mode is not supported for the result.
type view struct {
	name    string
	table   func(io.Writer) error
	json    any
	csv     func(*csv.Writer) error
	parquet func(path string) error
}

// render dispatches a view on the configured output mode.
func render(cfg *contract.Config, v view) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, v.json)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if v.csv == nil {
			return fmt.Errorf("CSV output is not supported for %s", v.name)
		}
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			csvWriter := csv.NewWriter(w)
			if err := v.csv(csvWriter); err != nil {
				return err
			}
			csvWriter.Flush()
			return csvWriter.Error()
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if v.parquet == nil {
			return fmt.Errorf("parquet output is not supported for %s", v.name)
		}
		if cfg.OutputFile == "" {
			return errors.New("--output-file is required for parquet output")
		}
		if err := v.parquet(cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing parquet output: %w", err)
		}
		_, _ = fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", cfg.OutputFile)
	default:
		return writeWithFile(cfg.OutputFile, v.table, "Wrote table")
	}
	return nil
}

// writeWithFile handles the common pattern of opening a file, writing to it, and cleaning up.
// It accepts a writer function that takes an io.Writer and returns an error.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	// Only close if it's not stdout
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		_, _ = fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSVWithHeader writes a header row followed by data rows.
func writeCSVWithHeader(w *csv.Writer, header []string, rows [][]string) error {
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// createFormatters creates the common formatter closures used across multiple output types.
func createFormatters(precision int) (fmtFloat func(float64) string, intFmt string) {
	numFmt := "%.*f"
	intFmt = "%d"
	fmtFloat = func(v float64) string {
		return fmt.Sprintf(numFmt, precision, v)
	}
	return fmtFloat, intFmt
}

// formatRank renders a rank pointer, blank when the member is unranked.
func formatRank(rank *int) string {
	if rank == nil {
		return ""
	}
	return fmt.Sprintf("%d", *rank)
}

// formatBool renders booleans the way the dashboard exports do.
func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
