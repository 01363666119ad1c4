// Package progress tracks how far the current time has advanced through a
// configured date range.
package progress

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/username/ago/internal/elapsed"
	"github.com/username/ago/pkg/dateutil"
)

var (
	// ErrEmptyRange is returned when the range end does not follow its start
	ErrEmptyRange = errors.New("range end must be after start")

	// ErrEndInPast is returned when a new range end lies before today
	ErrEndInPast = errors.New("end date cannot be before today")
)

const day = 24 * time.Hour

// Progress describes the position of "now" within a date range
type Progress struct {
	Percent       float64          `json:"percent"`
	RemainingDays int              `json:"remaining_days"`
	TotalDays     int              `json:"total_days"`
	Complete      bool             `json:"complete"`
	Started       bool             `json:"started"`
	Remaining     elapsed.Duration `json:"remaining"`
}

// Compute returns the progress of now through [start, end].
// The remaining calendar duration is read in calc's location.
func Compute(calc *elapsed.Calculator, start, end, now time.Time) (Progress, error) {
	if !start.Before(end) {
		return Progress{}, fmt.Errorf("%w: %s - %s", ErrEmptyRange,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	total := end.Sub(start)
	passed := now.Sub(start)

	percent := float64(passed) / float64(total) * 100
	percent = math.Max(0, math.Min(100, percent))

	remaining := end.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	p := Progress{
		Percent:       percent,
		RemainingDays: ceilDays(remaining),
		TotalDays:     ceilDays(total),
		Complete:      !now.Before(end),
		Started:       !now.Before(start),
	}

	if !p.Complete {
		d, err := calc.Difference(now, end)
		if err != nil {
			return Progress{}, err
		}
		p.Remaining = d
	}

	return p, nil
}

// Status returns a one-line summary of the progress
func (p Progress) Status() string {
	switch {
	case p.Complete:
		return "complete"
	case p.Started:
		return fmt.Sprintf("%.0f%%, %d of %d days remaining", p.Percent, p.RemainingDays, p.TotalDays)
	default:
		return "not started yet"
	}
}

// ValidateEndDate checks that end does not fall on a day before now
func ValidateEndDate(end, now time.Time) error {
	endDay := dateutil.StartOfDay(end.In(now.Location()))
	if endDay.Before(dateutil.StartOfDay(now)) {
		return fmt.Errorf("%w: %s", ErrEndInPast, end.Format("2006-01-02"))
	}
	return nil
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}
