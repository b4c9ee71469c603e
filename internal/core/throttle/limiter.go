package throttle

import "fmt"

// Limiter counts dispatches within the current tick interval against a fixed
// ceiling. It is an interval counter, not a token bucket: the engine resets it
// exactly once per tick, so fresh orders and queue drains share one budget.
//
// NOT thread-safe on its own — protected by the engine's mutex.
type Limiter struct {
	ceiling int
	used    int
}

// NewLimiter builds a limiter with the given per-interval ceiling.
// A non-positive ceiling is a configuration error.
func NewLimiter(ceiling int) (*Limiter, error) {
	if ceiling <= 0 {
		return nil, fmt.Errorf("throttle: ceiling must be positive, got %d", ceiling)
	}
	return &Limiter{ceiling: ceiling}, nil
}

// TryConsume claims one dispatch slot. It returns false, without mutating,
// once the interval's budget is exhausted.
func (l *Limiter) TryConsume() bool {
	if l.used >= l.ceiling {
		return false
	}
	l.used++
	return true
}

// Remaining reports how many slots are left in the current interval.
func (l *Limiter) Remaining() int {
	return l.ceiling - l.used
}

// Used reports how many slots were consumed in the current interval.
func (l *Limiter) Used() int {
	return l.used
}

// Reset zeroes the counter. Called once per tick, before any drain attempt.
func (l *Limiter) Reset() {
	l.used = 0
}
