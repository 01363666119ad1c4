package jalali

// leapRemainders lists year%33 values that are leap years in the 33-year cycle
var leapRemainders = map[int]bool{
	1: true, 5: true, 9: true, 13: true, 17: true, 22: true, 26: true, 30: true,
}

// IsLeapYear reports whether the Jalali year has a 30-day twelfth month.
// This is the 33-year arithmetic approximation of the astronomical rule and
// does not agree with the official calendar in every century.
func IsLeapYear(year int) bool {
	return leapRemainders[year%33]
}

// DaysInMonth returns the length of a Jalali month (1-12)
func DaysInMonth(month, year int) int {
	switch {
	case month >= 1 && month <= 6:
		return 31
	case month >= 7 && month <= 11:
		return 30
	case month == 12:
		if IsLeapYear(year) {
			return 30
		}
		return 29
	}
	return 31
}

// PreviousMonth returns the month before (month, year), wrapping month 1 to month 12 of the prior year
func PreviousMonth(month, year int) (int, int) {
	if month == 1 {
		return 12, year - 1
	}
	return month - 1, year
}
