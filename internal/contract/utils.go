package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/tallyhq/tally/schema"
)

// Rank label constants, matching schema.GetPlainLabel.
const (
	LeaderValue   = "Leader"
	PodiumValue   = "Podium"
	TopTenValue   = "Top 10"
	RankedValue   = "Ranked"
	UnrankedValue = "Unranked"
)

// Color variables for console output.
var (
	LeaderColor   = color.New(color.FgYellow, color.Bold)
	PodiumColor   = color.New(color.FgGreen, color.Bold)
	TopTenColor   = color.New(color.FgCyan)
	UnrankedColor = color.New(color.FgHiBlack)
)

// GetColorLabel returns a colored rank label for console output (table).
func GetColorLabel(rank *int) string {
	text := schema.GetPlainLabel(rank)
	switch text {
	case LeaderValue:
		return LeaderColor.Sprint(text)
	case PodiumValue:
		return PodiumColor.Sprint(text)
	case TopTenValue:
		return TopTenColor.Sprint(text)
	case UnrankedValue:
		return UnrankedColor.Sprint(text)
	default:
		return text
	}
}

// SelectOutputFile returns the file to write output to: os.Stdout when
// filePath is empty, otherwise a newly created file.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for cached responses.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".tally_cache.db"
	}
	return filepath.Join(homeDir, ".tally_cache.db")
}

// GetSnapshotDBFilePath returns the path to the SQLite DB file for score snapshots.
func GetSnapshotDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".tally_snapshots.db"
	}
	return filepath.Join(homeDir, ".tally_snapshots.db")
}

// TruncateText shortens s to maxWidth runes with a trailing ellipsis.
// Requires maxWidth > 3 so at least one rune of content survives.
func TruncateText(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return s
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
