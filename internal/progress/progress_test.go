package progress

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/username/ago/internal/elapsed"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newUTCCalculator() *elapsed.Calculator {
	return elapsed.NewCalculator(elapsed.WithLocation(time.UTC))
}

func TestCompute(t *testing.T) {
	calc := newUTCCalculator()
	start := date(2025, 2, 19)
	end := date(2025, 5, 19) // 89 days

	tests := []struct {
		name          string
		now           time.Time
		wantPercent   float64
		wantRemaining int
		wantComplete  bool
		wantStarted   bool
		wantDuration  elapsed.Duration
	}{
		{
			name:          "Before start",
			now:           date(2025, 2, 1),
			wantPercent:   0,
			wantRemaining: 107,
			wantDuration:  elapsed.Duration{Months: 3, Days: 16},
		},
		{
			name:          "At start",
			now:           start,
			wantPercent:   0,
			wantRemaining: 89,
			wantStarted:   true,
			wantDuration:  elapsed.Duration{Months: 2, Days: 28},
		},
		{
			name:          "Partway with partial day",
			now:           date(2025, 4, 20).Add(12 * time.Hour),
			wantPercent:   float64(60*24+12) / float64(89*24) * 100,
			wantRemaining: 29,
			wantStarted:   true,
			wantDuration:  elapsed.Duration{Days: 29},
		},
		{
			name:          "At end",
			now:           end,
			wantPercent:   100,
			wantRemaining: 0,
			wantComplete:  true,
			wantStarted:   true,
		},
		{
			name:          "After end",
			now:           date(2025, 8, 1),
			wantPercent:   100,
			wantRemaining: 0,
			wantComplete:  true,
			wantStarted:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(calc, start, end, tt.now)
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}

			if math.Abs(got.Percent-tt.wantPercent) > 1e-9 {
				t.Errorf("Percent = %v, want %v", got.Percent, tt.wantPercent)
			}
			if got.TotalDays != 89 {
				t.Errorf("TotalDays = %d, want 89", got.TotalDays)
			}
			if got.RemainingDays != tt.wantRemaining {
				t.Errorf("RemainingDays = %d, want %d", got.RemainingDays, tt.wantRemaining)
			}
			if got.Complete != tt.wantComplete {
				t.Errorf("Complete = %v, want %v", got.Complete, tt.wantComplete)
			}
			if got.Started != tt.wantStarted {
				t.Errorf("Started = %v, want %v", got.Started, tt.wantStarted)
			}
			if got.Remaining != tt.wantDuration {
				t.Errorf("Remaining = %+v, want %+v", got.Remaining, tt.wantDuration)
			}
		})
	}
}

func TestCompute_EmptyRange(t *testing.T) {
	calc := newUTCCalculator()
	day := date(2025, 2, 19)

	if _, err := Compute(calc, day, day, day); !errors.Is(err, ErrEmptyRange) {
		t.Errorf("Compute(equal) error = %v, want ErrEmptyRange", err)
	}
	if _, err := Compute(calc, day, day.AddDate(0, 0, -1), day); !errors.Is(err, ErrEmptyRange) {
		t.Errorf("Compute(reversed) error = %v, want ErrEmptyRange", err)
	}
}

func TestCompute_RemainingUsesCalculatorLocation(t *testing.T) {
	irst := time.FixedZone("IRST", 3*60*60+30*60)
	start := date(2025, 2, 19)
	end := date(2025, 5, 19)
	now := date(2025, 4, 20).Add(21 * time.Hour) // 2025-04-21 00:30 IRST

	tests := []struct {
		name string
		loc  *time.Location
		want elapsed.Duration
	}{
		{"UTC", time.UTC, elapsed.Duration{Days: 29}}, // 1404/01/31 to 1404/02/29
		{"Tehran", irst, elapsed.Duration{Days: 28}},  // 1404/02/01 to 1404/02/29
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := elapsed.NewCalculator(elapsed.WithLocation(tt.loc))
			got, err := Compute(calc, start, end, now)
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			if got.Remaining != tt.want {
				t.Errorf("Remaining = %+v, want %+v", got.Remaining, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		p    Progress
		want string
	}{
		{Progress{Complete: true, Started: true, Percent: 100}, "complete"},
		{Progress{Started: true, Percent: 67.4, RemainingDays: 29, TotalDays: 89}, "67%, 29 of 89 days remaining"},
		{Progress{}, "not started yet"},
	}

	for _, tt := range tests {
		if got := tt.p.Status(); got != tt.want {
			t.Errorf("Status() = %q, want %q", got, tt.want)
		}
	}
}

func TestValidateEndDate(t *testing.T) {
	now := time.Date(2025, 5, 19, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		end     time.Time
		wantErr bool
	}{
		{"Earlier today", time.Date(2025, 5, 19, 1, 0, 0, 0, time.UTC), false},
		{"Tomorrow", date(2025, 5, 20), false},
		{"Yesterday", time.Date(2025, 5, 18, 23, 59, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndDate(tt.end, now)
			if tt.wantErr && !errors.Is(err, ErrEndInPast) {
				t.Errorf("ValidateEndDate() error = %v, want ErrEndInPast", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateEndDate() error = %v, want nil", err)
			}
		})
	}
}
