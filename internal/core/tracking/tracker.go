package tracking

import (
	"sync"
	"time"
)

// Tracker maps dispatched order ids to their dispatch timestamps so a later
// venue ack can be matched and timed. An entry lives from dispatch until the
// first matching ack removes it; there is no expiry, an order that never gets
// acked stays behind.
//
// Tracker carries its own lock: it is written on the dispatch path (under the
// engine's mutex) and read/removed on the ack path, which does not need to
// observe window or queue state.
type Tracker struct {
	mu   sync.Mutex
	sent map[int64]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		sent: make(map[int64]time.Time),
	}
}

// Record notes that the order was dispatched at the given instant.
func (t *Tracker) Record(id int64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent[id] = at
}

// Ack removes the entry for id and returns its dispatch time.
// A second ack for the same id, or an ack for an unknown id, returns false.
func (t *Tracker) Ack(id int64) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.sent[id]
	if ok {
		delete(t.sent, id)
	}
	return at, ok
}

// Len reports how many dispatched orders are still awaiting an ack.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}
