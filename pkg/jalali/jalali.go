// Package jalali converts Gregorian dates to the Jalali (Shamsi) calendar.
package jalali

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDate is returned when a date value does not represent a real instant
	ErrInvalidDate = errors.New("invalid date input")

	// ErrInvalidRange is returned when an explicit month or day is out of bounds
	ErrInvalidRange = errors.New("invalid range input")
)

// Date represents a date in the Jalali calendar
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// String formats the date as YYYY/MM/DD
func (d Date) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after other
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(d.Month - other.Month)
	default:
		return sign(d.Day - other.Day)
	}
}

// Before reports whether d is strictly before other
func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

// Validate checks the coarse bounds of an explicit Jalali triple.
// Day-of-month existence is not checked beyond 1-31.
func Validate(year, month, day int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month must be between 1 and 12, got %d", ErrInvalidRange, month)
	}
	if day < 1 || day > 31 {
		return fmt.Errorf("%w: day must be between 1 and 31, got %d", ErrInvalidRange, day)
	}
	return nil
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
