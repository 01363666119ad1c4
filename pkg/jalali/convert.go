package jalali

import (
	"fmt"
	"time"
)

// Days elapsed before each month in a non-leap Gregorian year
var gregorianDaysBeforeMonth = [12]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

const (
	daysPerGrandCycle = 12053 // 33 Jalali years
	daysPerFourYears  = 1461
	firstHalfDays     = 186 // months 1-6, 31 days each
)

// epoch is the anchor pair used to keep the intermediate day count small
type epoch struct {
	jalaliBase    int
	gregorianBase int
}

// epochFor picks the conversion anchor for a Gregorian year.
// The two branches are kept separate: unifying them shifts results at the 1600/1601 seam.
func epochFor(gy int) epoch {
	if gy <= 1600 {
		return epoch{jalaliBase: 0, gregorianBase: gy - 621}
	}
	return epoch{jalaliBase: 979, gregorianBase: gy - 1600}
}

// ToJalali converts the calendar date of t (in t's own location) to the Jalali calendar.
// The zero time is rejected with ErrInvalidDate.
func ToJalali(t time.Time) (Date, error) {
	if t.IsZero() {
		return Date{}, fmt.Errorf("%w: zero time value", ErrInvalidDate)
	}

	return fromGregorian(t.Year(), int(t.Month()), t.Day()), nil
}

func fromGregorian(gy, gm, gd int) Date {
	e := epochFor(gy)

	// Leap day falls before March
	gy2 := e.gregorianBase
	if gm > 2 {
		gy2++
	}

	days := 365*e.gregorianBase +
		floorDiv(gy2+3, 4) -
		floorDiv(gy2+99, 100) +
		floorDiv(gy2+399, 400) -
		80 + gd + gregorianDaysBeforeMonth[gm-1]

	// Quotients floor, remainders keep the dividend's sign
	jy := e.jalaliBase + 33*floorDiv(days, daysPerGrandCycle)
	days %= daysPerGrandCycle

	jy += 4 * floorDiv(days, daysPerFourYears)
	days %= daysPerFourYears

	if days > 365 {
		jy += floorDiv(days-1, 365)
		days = (days - 1) % 365
	}

	var jm, jd int
	if days < firstHalfDays {
		jm = 1 + floorDiv(days, 31)
		jd = 1 + days%31
	} else {
		jm = 7 + floorDiv(days-firstHalfDays, 30)
		jd = 1 + (days-firstHalfDays)%30
	}

	return Date{Year: jy, Month: jm, Day: jd}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
