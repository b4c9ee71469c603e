package window

import (
	"fmt"
	"time"
)

// Transition is the edge detected by CheckTransition.
type Transition int

const (
	None Transition = iota
	Entered
	Exited
)

func (t Transition) String() string {
	switch t {
	case Entered:
		return "entered"
	case Exited:
		return "exited"
	default:
		return "none"
	}
}

// Gate tracks whether the wall clock is inside the configured trading window.
// Both window boundaries are inclusive. The window is a time-of-day interval,
// so the same config applies every trading day.
//
// NOT thread-safe on its own — protected by the engine's mutex.
type Gate struct {
	start  time.Duration // past midnight
	end    time.Duration
	active bool
}

// NewGate builds a gate for the [start, end] time-of-day window.
// An end before start is a configuration error.
func NewGate(start, end time.Duration) (*Gate, error) {
	if start < 0 || start >= 24*time.Hour || end < 0 || end >= 24*time.Hour {
		return nil, fmt.Errorf("window: bounds must be within a day, got start=%s end=%s", start, end)
	}
	if end < start {
		return nil, fmt.Errorf("window: end %s before start %s", end, start)
	}
	return &Gate{start: start, end: end}, nil
}

// ShouldBeActive reports whether now falls inside the window. Pure.
func (g *Gate) ShouldBeActive(now time.Time) bool {
	tod := timeOfDay(now)
	return tod >= g.start && tod <= g.end
}

// CheckTransition compares the clock against the stored active flag.
// On a mismatch it flips the flag and returns the edge; otherwise None.
// The flag only ever changes through this method.
func (g *Gate) CheckTransition(now time.Time) Transition {
	should := g.ShouldBeActive(now)
	switch {
	case should && !g.active:
		g.active = true
		return Entered
	case !should && g.active:
		g.active = false
		return Exited
	default:
		return None
	}
}

// Active returns the stored flag as of the last CheckTransition.
func (g *Gate) Active() bool {
	return g.active
}

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}
