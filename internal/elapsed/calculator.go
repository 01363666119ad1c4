// Package elapsed computes calendar-aware differences between dates in the
// Jalali calendar, optionally recomputing them on a fixed interval.
package elapsed

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/username/ago/pkg/dateutil"
	"github.com/username/ago/pkg/jalali"
)

// DefaultInterval is the live recomputation cadence
const DefaultInterval = time.Second

// Calculator computes elapsed Jalali durations
type Calculator struct {
	clock    clock.Clock
	location *time.Location
	interval time.Duration
}

// Option configures a Calculator
type Option func(*Calculator)

// WithClock sets the clock used for "now" and for live tickers
func WithClock(c clock.Clock) Option {
	return func(calc *Calculator) {
		if c != nil {
			calc.clock = c
		}
	}
}

// WithLocation sets the location in which "now" and zone-less strings are read
func WithLocation(loc *time.Location) Option {
	return func(calc *Calculator) {
		if loc != nil {
			calc.location = loc
		}
	}
}

// WithInterval overrides the live recomputation interval
func WithInterval(d time.Duration) Option {
	return func(calc *Calculator) {
		if d > 0 {
			calc.interval = d
		}
	}
}

// NewCalculator creates a new calculator using the wall clock and local time by default
func NewCalculator(opts ...Option) *Calculator {
	calc := &Calculator{
		clock:    clock.New(),
		location: time.Local,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(calc)
	}
	return calc
}

// Now returns the current instant in the calculator's location
func (c *Calculator) Now() time.Time {
	return c.clock.Now().In(c.location)
}

// Location returns the calculator's location
func (c *Calculator) Location() *time.Location {
	return c.location
}

// Difference returns the calendar difference from start to end.
// Both instants are read as dates in the calculator's location.
func (c *Calculator) Difference(start, end time.Time) (Duration, error) {
	if start.IsZero() {
		return Duration{}, fmt.Errorf("start: %w", jalali.ErrInvalidDate)
	}
	if end.IsZero() {
		return Duration{}, fmt.Errorf("end: %w", jalali.ErrInvalidDate)
	}

	s, err := jalali.ToJalali(start.In(c.location))
	if err != nil {
		return Duration{}, fmt.Errorf("start: %w", err)
	}
	e, err := jalali.ToJalali(end.In(c.location))
	if err != nil {
		return Duration{}, fmt.Errorf("end: %w", err)
	}

	return subtract(s, e), nil
}

// DifferenceStrings parses both endpoints and returns their calendar difference
func (c *Calculator) DifferenceStrings(start, end string) (Duration, error) {
	s, err := dateutil.ParseDate(start, c.location)
	if err != nil {
		return Duration{}, fmt.Errorf("start: %w", err)
	}
	e, err := dateutil.ParseDate(end, c.location)
	if err != nil {
		return Duration{}, fmt.Errorf("end: %w", err)
	}
	return c.Difference(s, e)
}

// LiveOptions controls recurring recomputation
type LiveOptions struct {
	Live     bool
	OnUpdate func(Duration)
}

// Result is the immediately computed duration plus the live session, if one started
type Result struct {
	Duration
	Session *Session
}

// Stop halts the live session, if any, and waits for its callback to finish
func (r Result) Stop() {
	if r.Session != nil {
		r.Session.Stop()
	}
}

// Cancel halts the live session, if any, without waiting. Use it from inside OnUpdate.
func (r Result) Cancel() {
	if r.Session != nil {
		r.Session.Cancel()
	}
}

// ElapsedSince returns the difference from start to now.
// With Live and OnUpdate set, a session recomputes it every interval until stopped.
func (c *Calculator) ElapsedSince(start time.Time, opts LiveOptions) (Result, error) {
	if start.IsZero() {
		return Result{}, fmt.Errorf("start: %w", jalali.ErrInvalidDate)
	}

	compute := func(now time.Time) (Duration, error) {
		return c.Difference(start, now)
	}
	return c.begin(compute, opts)
}

// ElapsedSinceString parses start and returns the difference from it to now
func (c *Calculator) ElapsedSinceString(start string, opts LiveOptions) (Result, error) {
	s, err := dateutil.ParseDate(start, c.location)
	if err != nil {
		return Result{}, fmt.Errorf("start: %w", err)
	}
	return c.ElapsedSince(s, opts)
}

// ElapsedSinceJalali returns the difference from an explicit Jalali date to today.
// Month must be 1-12 and day 1-31; the day is not checked against the month length.
func (c *Calculator) ElapsedSinceJalali(year, month, day int, opts LiveOptions) (Result, error) {
	if err := jalali.Validate(year, month, day); err != nil {
		return Result{}, err
	}

	start := jalali.Date{Year: year, Month: month, Day: day}
	compute := func(now time.Time) (Duration, error) {
		today, err := jalali.ToJalali(now.In(c.location))
		if err != nil {
			return Duration{}, err
		}
		return subtract(start, today), nil
	}
	return c.begin(compute, opts)
}

// Until returns the calendar difference from now to end
func (c *Calculator) Until(end time.Time) (Duration, error) {
	return c.Difference(c.Now(), end)
}

func (c *Calculator) begin(compute func(time.Time) (Duration, error), opts LiveOptions) (Result, error) {
	initial, err := compute(c.Now())
	if err != nil {
		return Result{}, err
	}

	result := Result{Duration: initial}
	if opts.Live && opts.OnUpdate != nil {
		session := newSession(c.clock, c.location, c.interval, compute, opts.OnUpdate)
		session.start()
		result.Session = session
	}

	return result, nil
}
