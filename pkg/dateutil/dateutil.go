package dateutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/username/ago/pkg/jalali"
)

// zonedFormats carry their own offset; localFormats are interpreted in the caller's location
var (
	zonedFormats = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05.000-0700",
	}
	localFormats = []string{
		"2006-01-02",
		"2006/01/02",
		"02.01.2006",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
)

// StartOfDay returns the start of the day (00:00:00) for the given date
func StartOfDay(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
}

// DaysBetween returns the number of calendar days from date1 to date2.
// Wall-clock dates are compared, so DST shifts do not change the count.
func DaysBetween(date1, date2 time.Time) int {
	d1 := time.Date(date1.Year(), date1.Month(), date1.Day(), 0, 0, 0, 0, time.UTC)
	d2 := time.Date(date2.Year(), date2.Month(), date2.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(d2.Sub(d1).Hours() / 24))
}

// FormatISO8601 formats date to ISO 8601 format with timezone
// Example: 2025-01-15T10:00:00.000+0000
func FormatISO8601(date time.Time) string {
	return date.Format("2006-01-02T15:04:05.000-0700")
}

// ParseDate parses date string in various formats.
// Layouts without an offset are interpreted in loc (time.Local when nil);
// instants with an offset are converted to loc.
func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	value := strings.TrimSpace(dateStr)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty date string", jalali.ErrInvalidDate)
	}

	for _, format := range zonedFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.In(loc), nil
		}
	}

	for _, format := range localFormats {
		if t, err := time.ParseInLocation(format, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: cannot parse %q", jalali.ErrInvalidDate, dateStr)
}

// ParseJalali parses an explicit Jalali triple in YYYY/MM/DD or YYYY-MM-DD form.
// Only the coarse month/day bounds are checked.
func ParseJalali(value string) (year, month, day int, err error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(value), "-", "/")
	parts := strings.Split(normalized, "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: cannot parse Jalali date %q", jalali.ErrInvalidDate, value)
	}

	fields := make([]int, 3)
	for i, part := range parts {
		n, convErr := strconv.Atoi(part)
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("%w: cannot parse Jalali date %q", jalali.ErrInvalidDate, value)
		}
		fields[i] = n
	}

	if err := jalali.Validate(fields[0], fields[1], fields[2]); err != nil {
		return 0, 0, 0, err
	}
	return fields[0], fields[1], fields[2], nil
}
