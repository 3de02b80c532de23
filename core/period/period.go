// Package period maps points in time to weekly, monthly and daily period keys
// and back to the calendar days they cover.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tallyhq/tally/schema"
)

var (
	// ErrZeroTime is returned when a key is requested for the zero time.
	ErrZeroTime = errors.New("period: zero time")

	// ErrNegativeCount is returned when a negative number of keys is requested.
	ErrNegativeCount = errors.New("period: negative key count")

	// ErrInvalidPeriodKey is returned when a key does not match its period type.
	ErrInvalidPeriodKey = errors.New("period: invalid period key")

	// ErrUnknownPeriodType is returned for period types other than daily, weekly and monthly.
	ErrUnknownPeriodType = errors.New("period: unknown period type")
)

// WeekKey returns the ISO-8601 week key of t, e.g. "2024-W05".
// The week-year may differ from the calendar year around January 1st.
func WeekKey(t time.Time) schema.PeriodKey {
	year, week := t.ISOWeek()
	return schema.PeriodKey(fmt.Sprintf("%04d-W%02d", year, week))
}

// MonthKey returns the calendar month key of t, e.g. "2024-05".
func MonthKey(t time.Time) schema.PeriodKey {
	return schema.PeriodKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// DayKey returns the calendar day key of t, e.g. "2024-05-17".
func DayKey(t time.Time) schema.PeriodKey {
	return schema.PeriodKey(t.Format(schema.DateLayout))
}

// KeyFor returns the key of the period of type pt containing t.
func KeyFor(pt schema.PeriodType, t time.Time) (schema.PeriodKey, error) {
	if t.IsZero() {
		return "", ErrZeroTime
	}
	switch pt {
	case schema.WeeklyPeriod:
		return WeekKey(t), nil
	case schema.MonthlyPeriod:
		return MonthKey(t), nil
	case schema.DailyPeriod:
		return DayKey(t), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriodType, pt)
	}
}

// LastNWeekKeys returns the keys of the current week and the n-1 weeks before it,
// newest first.
func LastNWeekKeys(n int) ([]schema.PeriodKey, error) {
	return LastNWeekKeysFrom(time.Now(), n)
}

// LastNMonthKeys returns the keys of the current month and the n-1 months before it,
// newest first.
func LastNMonthKeys(n int) ([]schema.PeriodKey, error) {
	return LastNMonthKeysFrom(time.Now(), n)
}

// LastNWeekKeysFrom is LastNWeekKeys anchored at now.
func LastNWeekKeysFrom(now time.Time, n int) ([]schema.PeriodKey, error) {
	if err := checkAnchor(now, n); err != nil {
		return nil, err
	}
	keys := make([]schema.PeriodKey, 0, n)
	for i := range n {
		keys = append(keys, WeekKey(now.AddDate(0, 0, -7*i)))
	}
	return keys, nil
}

// LastNMonthKeysFrom is LastNMonthKeys anchored at now.
func LastNMonthKeysFrom(now time.Time, n int) ([]schema.PeriodKey, error) {
	if err := checkAnchor(now, n); err != nil {
		return nil, err
	}
	keys := make([]schema.PeriodKey, 0, n)
	for i := range n {
		keys = append(keys, MonthKey(SubMonths(now, i)))
	}
	return keys, nil
}

// LastNDayKeysFrom returns the keys of now's day and the n-1 days before it.
func LastNDayKeysFrom(now time.Time, n int) ([]schema.PeriodKey, error) {
	if err := checkAnchor(now, n); err != nil {
		return nil, err
	}
	keys := make([]schema.PeriodKey, 0, n)
	for i := range n {
		keys = append(keys, DayKey(now.AddDate(0, 0, -i)))
	}
	return keys, nil
}

// LastNKeys dispatches to the LastN*KeysFrom function of pt.
func LastNKeys(pt schema.PeriodType, now time.Time, n int) ([]schema.PeriodKey, error) {
	switch pt {
	case schema.WeeklyPeriod:
		return LastNWeekKeysFrom(now, n)
	case schema.MonthlyPeriod:
		return LastNMonthKeysFrom(now, n)
	case schema.DailyPeriod:
		return LastNDayKeysFrom(now, n)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriodType, pt)
	}
}

// Latest returns the latest completed period followed by the current one.
func Latest(pt schema.PeriodType, now time.Time) ([]schema.PeriodKey, error) {
	keys, err := LastNKeys(pt, now, 2)
	if err != nil {
		return nil, err
	}
	return []schema.PeriodKey{keys[1], keys[0]}, nil
}

// SubMonths steps t back by n calendar months. The day of month is clamped to
// the last day of the target month, so March 31st minus one month is the end
// of February rather than early March.
func SubMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// Range returns the inclusive calendar days covered by key.
// Days are expressed in UTC.
func Range(pt schema.PeriodType, key schema.PeriodKey) (schema.DateRange, error) {
	s := string(key)
	switch pt {
	case schema.DailyPeriod:
		d, err := time.Parse(schema.DateLayout, s)
		if err != nil {
			return schema.DateRange{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidPeriodKey, key)
		}
		return schema.DateRange{Start: d, End: d}, nil

	case schema.WeeklyPeriod:
		yearStr, weekStr, ok := strings.Cut(s, "-W")
		if !ok || !allDigits(yearStr, 4) || !allDigits(weekStr, 2) {
			return schema.DateRange{}, fmt.Errorf("%w: %q is not YYYY-Www", ErrInvalidPeriodKey, key)
		}
		year, err1 := strconv.Atoi(yearStr)
		week, err2 := strconv.Atoi(weekStr)
		if err1 != nil || err2 != nil || week < 1 || week > isoWeeksIn(year) {
			return schema.DateRange{}, fmt.Errorf("%w: %q has no such ISO week", ErrInvalidPeriodKey, key)
		}
		start := isoWeekStart(year, week)
		return schema.DateRange{Start: start, End: start.AddDate(0, 0, 6)}, nil

	case schema.MonthlyPeriod:
		t, err := time.Parse("2006-01", s)
		if err != nil {
			return schema.DateRange{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidPeriodKey, key)
		}
		return schema.DateRange{Start: t, End: t.AddDate(0, 1, -1)}, nil

	default:
		return schema.DateRange{}, fmt.Errorf("%w: %q", ErrUnknownPeriodType, pt)
	}
}

// allDigits reports whether s is exactly n ASCII digits.
func allDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Spans resolves the date range of every key, keeping the order of keys.
func Spans(pt schema.PeriodType, keys []schema.PeriodKey) ([]schema.PeriodSpan, error) {
	spans := make([]schema.PeriodSpan, len(keys))
	for i, key := range keys {
		r, err := Range(pt, key)
		if err != nil {
			return nil, err
		}
		spans[i] = schema.PeriodSpan{
			PeriodKey: key,
			Start:     schema.NewDate(r.Start),
			End:       schema.NewDate(r.End),
			Days:      r.Days(),
		}
	}
	return spans, nil
}

func checkAnchor(now time.Time, n int) error {
	if now.IsZero() {
		return ErrZeroTime
	}
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeCount, n)
	}
	return nil
}

// isoWeekStart returns the Monday of ISO week (year, week) in UTC.
func isoWeekStart(year, week int) time.Time {
	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(week-1)*7)
}

// isoWeeksIn returns 52 or 53.
func isoWeeksIn(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
