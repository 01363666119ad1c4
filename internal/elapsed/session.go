package elapsed

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// State is the lifecycle state of a live session
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Session recomputes a duration on a fixed interval and delivers each result
// to its callback until Stop is called. A stopped session cannot be restarted.
type Session struct {
	id       uuid.UUID
	clock    clock.Clock
	location *time.Location
	interval time.Duration
	compute  func(time.Time) (Duration, error)
	onUpdate func(Duration)

	ticker *clock.Ticker
	quit   chan struct{}
	done   chan struct{}
	state  atomic.Int32
}

func newSession(
	clk clock.Clock,
	loc *time.Location,
	interval time.Duration,
	compute func(time.Time) (Duration, error),
	onUpdate func(Duration),
) *Session {
	return &Session{
		id:       uuid.New(),
		clock:    clk,
		location: loc,
		interval: interval,
		compute:  compute,
		onUpdate: onUpdate,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id.String()
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Interval returns the recomputation interval
func (s *Session) Interval() time.Duration {
	return s.interval
}

// start creates the ticker before returning so the first tick is one interval away
func (s *Session) start() {
	s.ticker = s.clock.Ticker(s.interval)
	s.state.Store(int32(StateRunning))
	go s.run()
}

func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return

		case <-s.ticker.C:
			// Stop may have raced with the tick
			select {
			case <-s.quit:
				return
			default:
			}

			d, err := s.compute(s.clock.Now().In(s.location))
			if err != nil {
				continue
			}

			s.onUpdate(d)
		}
	}
}

// Cancel halts recomputation and releases the ticker without waiting for the
// session goroutine. It is the way to end a session from inside its own
// update callback; no further callback starts once it returns.
func (s *Session) Cancel() {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopped)) {
		return
	}

	close(s.quit)
	s.ticker.Stop()
}

// Stop cancels the session and returns only after the session goroutine has
// exited, including any callback in flight. It is safe to call more than once.
// Stop must not be called from inside the update callback; use Cancel there.
func (s *Session) Stop() {
	s.Cancel()
	<-s.done
}

// Done is closed once the session goroutine has exited
func (s *Session) Done() <-chan struct{} {
	return s.done
}
