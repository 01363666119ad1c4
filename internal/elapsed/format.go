package elapsed

import (
	"fmt"
	"strings"
)

// DisplayFormat selects the largest unit used when rendering a duration
type DisplayFormat string

const (
	FormatDays   DisplayFormat = "days"
	FormatMonths DisplayFormat = "months"
	FormatYears  DisplayFormat = "years"
)

// ParseDisplayFormat parses a display format name, case-insensitively
func ParseDisplayFormat(value string) (DisplayFormat, error) {
	switch DisplayFormat(strings.ToLower(strings.TrimSpace(value))) {
	case FormatDays:
		return FormatDays, nil
	case FormatMonths:
		return FormatMonths, nil
	case FormatYears:
		return FormatYears, nil
	}
	return "", fmt.Errorf("display format must be 'days', 'months' or 'years', got '%s'", value)
}

// Render formats d using the given display format.
// totalDays is the plain day count between the endpoints, used by FormatDays.
func Render(d Duration, format DisplayFormat, totalDays int) string {
	switch format {
	case FormatDays:
		if totalDays < 0 {
			totalDays = -totalDays
		}
		if totalDays == 0 {
			return noElapsedTime
		}
		return withDirection(plural(totalDays, "day"), d.Negative)

	case FormatMonths:
		if d.IsZero() {
			return noElapsedTime
		}
		var parts []string
		if months := d.Years*12 + d.Months; months > 0 {
			parts = append(parts, plural(months, "month"))
		}
		if d.Days > 0 {
			parts = append(parts, plural(d.Days, "day"))
		}
		return withDirection(strings.Join(parts, ", "), d.Negative)

	default:
		return d.String()
	}
}
