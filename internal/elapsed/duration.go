package elapsed

import (
	"fmt"
	"strings"

	"github.com/username/ago/pkg/jalali"
)

// Duration is a normalized calendar difference in the Jalali calendar.
// Months stay within 0-11 and days within 0-30; the direction lives in Negative.
type Duration struct {
	Years    int  `json:"years"`
	Months   int  `json:"months"`
	Days     int  `json:"days"`
	Negative bool `json:"negative"`
}

// IsZero reports whether no calendar time separates the two endpoints
func (d Duration) IsZero() bool {
	return d.Years == 0 && d.Months == 0 && d.Days == 0
}

// Magnitude returns an approximate signed day count, usable only for ordering
func (d Duration) Magnitude() int {
	m := d.Days + d.Months*30 + d.Years*365
	if d.Negative {
		return -m
	}
	return m
}

// String formats the duration as "1 year, 2 months, 3 days"
func (d Duration) String() string {
	if d.IsZero() {
		return noElapsedTime
	}

	var parts []string
	if d.Years > 0 {
		parts = append(parts, plural(d.Years, "year"))
	}
	if d.Months > 0 {
		parts = append(parts, plural(d.Months, "month"))
	}
	if d.Days > 0 {
		parts = append(parts, plural(d.Days, "day"))
	}

	return withDirection(strings.Join(parts, ", "), d.Negative)
}

// subtract computes e - s with calendar borrowing.
// When e precedes s the forward difference s..e is returned with Negative set.
func subtract(s, e jalali.Date) Duration {
	negative := e.Before(s)
	if negative {
		s, e = e, s
	}

	years := e.Year - s.Year
	months := e.Month - s.Month
	days := e.Day - s.Day

	// Borrow from the months preceding e. A 31st start day against a 29-day
	// Esfand needs a second borrow to stay non-negative.
	borrowMonth, borrowYear := e.Month, e.Year
	for days < 0 {
		months--
		borrowMonth, borrowYear = jalali.PreviousMonth(borrowMonth, borrowYear)
		days += jalali.DaysInMonth(borrowMonth, borrowYear)
	}

	for months < 0 {
		years--
		months += 12
	}

	return Duration{
		Years:    years,
		Months:   months,
		Days:     days,
		Negative: negative,
	}
}

const noElapsedTime = "no elapsed time"

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func withDirection(text string, negative bool) string {
	if negative {
		return text + " remaining"
	}
	return text
}
