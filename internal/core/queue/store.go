package queue

import (
	"errors"
	"fmt"

	"github.com/calebmorse/ordergate/internal/events"
	"github.com/shopspring/decimal"
)

// ErrDuplicateID is returned by Enqueue when a New order reuses an id that is
// already queued. The caller is expected to surface this to the client rather
// than silently overwrite.
var ErrDuplicateID = errors.New("duplicate order id")

// Store holds New orders that were admitted but throttled: a FIFO sequence in
// arrival order plus an id index for O(1) amend/withdraw.
//
// Invariant: an id is in the index iff its order is in the FIFO exactly once.
// Amend never changes FIFO position.
//
// NOT thread-safe on its own — protected by the engine's mutex.
type Store struct {
	fifo []*events.OrderRequest
	byID map[int64]*events.OrderRequest
}

func NewStore() *Store {
	return &Store{
		byID: make(map[int64]*events.OrderRequest),
	}
}

// Enqueue appends the order to the FIFO and indexes it by id.
func (s *Store) Enqueue(req events.OrderRequest) error {
	if _, exists := s.byID[req.OrderID]; exists {
		return fmt.Errorf("enqueue order %d: %w", req.OrderID, ErrDuplicateID)
	}
	cp := req
	s.fifo = append(s.fifo, &cp)
	s.byID[req.OrderID] = &cp
	return nil
}

// Amend rewrites price and qty on a still-queued order, leaving its FIFO
// position untouched. Returns false if the id is not queued (already
// dispatched or never seen) — a benign no-op for the caller.
func (s *Store) Amend(id int64, price decimal.Decimal, qty int64) bool {
	ord, ok := s.byID[id]
	if !ok {
		return false
	}
	ord.Price = price
	ord.Qty = qty
	return true
}

// Withdraw removes a still-queued order from both the index and the FIFO.
// Returns false if the id is not queued.
func (s *Store) Withdraw(id int64) bool {
	ord, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	for i, q := range s.fifo {
		if q == ord {
			s.fifo = append(s.fifo[:i], s.fifo[i+1:]...)
			break
		}
	}
	return true
}

// DrainNext pops the oldest queued order. Entries missing from the index are
// skipped; that cannot happen while Withdraw keeps both structures in step,
// but a stale FIFO entry must never be dispatched.
func (s *Store) DrainNext() (events.OrderRequest, bool) {
	for len(s.fifo) > 0 {
		ord := s.fifo[0]
		s.fifo[0] = nil
		s.fifo = s.fifo[1:]
		if _, ok := s.byID[ord.OrderID]; !ok {
			continue
		}
		delete(s.byID, ord.OrderID)
		return *ord, true
	}
	return events.OrderRequest{}, false
}

// Len reports how many orders are queued.
func (s *Store) Len() int {
	return len(s.byID)
}
