package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tallyhq/tally/schema"
)

// relativeTimeRe captures "N [units] ago", e.g. "2 weeks ago", "3 months ago".
var relativeTimeRe = regexp.MustCompile(`^(\d{1,5})\s+(year|month|week|day|hour|minute)s?\s+ago$`)

// ParseRelativeTime converts strings like "2 weeks ago" into a time.Time before now.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	matches := relativeTimeRe.FindStringSubmatch(s)
	if len(matches) == 0 {
		return time.Time{}, fmt.Errorf("invalid relative time format: %s", s)
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid relative time value: %s", matches[1])
	}

	switch matches[2] {
	case "year":
		return now.AddDate(-value, 0, 0), nil
	case "month":
		return now.AddDate(0, -value, 0), nil
	case "week":
		return now.AddDate(0, 0, -7*value), nil
	case "day":
		return now.AddDate(0, 0, -value), nil
	case "hour":
		return now.Add(time.Duration(-value) * time.Hour), nil
	default:
		return now.Add(time.Duration(-value) * time.Minute), nil
	}
}

// ParseAnchorTime parses the --at flag: RFC 3339, a plain date, or "N [units] ago".
func ParseAnchorTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateTimeFormat, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(schema.DateLayout, s, now.Location()); err == nil {
		return t, nil
	}
	t, err := ParseRelativeTime(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at value '%s'. Expected RFC3339, YYYY-MM-DD or 'N [units] ago'", s)
	}
	return t, nil
}

// lookbackDurationRe captures "N [units]".
var lookbackDurationRe = regexp.MustCompile(`^(\d{1,5})\s+(year|month|week|day|hour|minute|second)s?$`)

// ParseLookbackDuration converts strings like "3 days" or "90s" into a time.Duration.
// It first tries time.ParseDuration, then falls back to human-readable forms.
func ParseLookbackDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if duration, err := time.ParseDuration(s); err == nil {
		if duration <= 0 {
			return 0, errors.New("duration must be positive")
		}
		return duration, nil
	}

	s = strings.ToLower(s)
	matches := lookbackDurationRe.FindStringSubmatch(s)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}
	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", matches[1])
	}

	var unit time.Duration
	switch matches[2] {
	case "year":
		unit = 365 * 24 * time.Hour
	case "month":
		unit = 30 * 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "day":
		unit = 24 * time.Hour
	case "hour":
		unit = time.Hour
	case "minute":
		unit = time.Minute
	default:
		unit = time.Second
	}
	if value == 0 {
		return 0, errors.New("zero duration is not useful")
	}
	total := time.Duration(value) * unit
	if total/unit != time.Duration(value) {
		return 0, fmt.Errorf("duration %s is too large", s)
	}
	return total, nil
}
