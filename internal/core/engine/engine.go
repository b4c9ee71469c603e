package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/calebmorse/ordergate/internal/core/queue"
	"github.com/calebmorse/ordergate/internal/core/throttle"
	"github.com/calebmorse/ordergate/internal/core/tracking"
	"github.com/calebmorse/ordergate/internal/core/window"
	"github.com/calebmorse/ordergate/internal/events"
	"github.com/calebmorse/ordergate/internal/telemetry"
)

// ErrOutsideWindow is returned when an order arrives while the trading window
// is closed. No state changes on rejection.
var ErrOutsideWindow = errors.New("order rejected: outside trading window")

// Config holds the three values that govern admission, plus the periods of the
// two internal timers.
type Config struct {
	WindowStart       time.Duration // time-of-day, past midnight
	WindowEnd         time.Duration
	OrdersPerInterval int

	TickInterval        time.Duration // throttle reset + queue drain period
	WindowCheckInterval time.Duration // trading-window poll period

	// Clock defaults to time.Now.
	Clock Clock
}

// Engine is the admission-control and throttled-dispatch orchestrator. Orders
// admitted inside the trading window dispatch immediately while the interval
// budget lasts and queue FIFO beyond it; each tick resets the budget and
// drains the queue against it. Window transitions drive venue logon/logout.
//
// One mutex serializes order admission, the tick drain, and the window flip.
// The sent-order tracker is the only structure outside it (see tracking.Tracker).
type Engine struct {
	mu      sync.Mutex
	gate    *window.Gate
	limiter *throttle.Limiter
	pending *queue.Store
	sent    *tracking.Tracker

	dispatcher Dispatcher
	notifier   SessionNotifier
	latency    LatencySink
	clock      Clock
	bus        *events.Bus

	tickEvery   time.Duration
	windowEvery time.Duration

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New builds the engine and subscribes it to venue ack events on the bus
// (pass nil to drive it directly). Configuration errors — non-positive
// ceiling, end-before-start window — are fatal here.
func New(cfg Config, bus *events.Bus, d Dispatcher, n SessionNotifier, sink LatencySink) (*Engine, error) {
	gate, err := window.NewGate(cfg.WindowStart, cfg.WindowEnd)
	if err != nil {
		return nil, err
	}
	limiter, err := throttle.NewLimiter(cfg.OrdersPerInterval)
	if err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	tickEvery := cfg.TickInterval
	if tickEvery <= 0 {
		tickEvery = time.Second
	}
	windowEvery := cfg.WindowCheckInterval
	if windowEvery <= 0 {
		windowEvery = time.Minute
	}

	e := &Engine{
		gate:        gate,
		limiter:     limiter,
		pending:     queue.NewStore(),
		sent:        tracking.NewTracker(),
		dispatcher:  d,
		notifier:    n,
		latency:     sink,
		clock:       clock,
		bus:         bus,
		tickEvery:   tickEvery,
		windowEvery: windowEvery,
		done:        make(chan struct{}),
	}

	if bus != nil {
		bus.Subscribe(events.EventOrderAck, e.onOrderAckEvent)
	}

	return e, nil
}

// OnOrderRequest admits one order message. Outside the window every kind is
// rejected with ErrOutsideWindow. Inside it, New dispatches immediately under
// the interval budget and queues beyond it; Modify and Cancel act on the
// still-queued copy and are silent no-ops for ids that already left the queue
// (an expected race in an asynchronous order lifecycle, not an error).
func (e *Engine) OnOrderRequest(req events.OrderRequest) error {
	telemetry.Metrics.OrdersReceived.Inc()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.gate.Active() {
		telemetry.Metrics.OrdersRejected.Inc()
		return ErrOutsideWindow
	}

	switch req.Kind {
	case events.RequestNew:
		if e.limiter.TryConsume() {
			e.dispatchLocked(req)
			return nil
		}
		if err := e.pending.Enqueue(req); err != nil {
			telemetry.Metrics.DuplicateIDs.Inc()
			return err
		}
		telemetry.Metrics.OrdersQueued.Inc()
		telemetry.Metrics.QueueDepth.Set(int64(e.pending.Len()))
		return nil

	case events.RequestModify:
		if e.pending.Amend(req.OrderID, req.Price, req.Qty) {
			telemetry.Metrics.AmendsApplied.Inc()
		}
		return nil

	case events.RequestCancel:
		if e.pending.Withdraw(req.OrderID) {
			telemetry.Metrics.WithdrawsApplied.Inc()
			telemetry.Metrics.QueueDepth.Set(int64(e.pending.Len()))
		}
		return nil

	default:
		telemetry.Warnf("engine: unknown request kind %q (order %d)", req.Kind, req.OrderID)
		return nil
	}
}

// Tick resets the interval budget, then drains queued orders against the
// fresh budget. Queue drains and new orders deliberately share one ceiling
// per interval, so a tick never dispatches more than OrdersPerInterval.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.limiter.Reset()
	for e.limiter.Remaining() > 0 {
		ord, ok := e.pending.DrainNext()
		if !ok {
			break
		}
		e.limiter.TryConsume()
		e.dispatchLocked(ord)
	}
	telemetry.Metrics.QueueDepth.Set(int64(e.pending.Len()))
}

// CheckWindow polls the clock against the trading window and, on an edge,
// flips the gate and emits the matching session notification. Flag and
// notification change together under the engine mutex.
func (e *Engine) CheckWindow() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.gate.CheckTransition(e.clock()) {
	case window.Entered:
		telemetry.Metrics.SessionActive.Set(1)
		telemetry.Infof("engine: trading window open, sending logon")
		e.notifier.NotifyLogon()
		e.publishSessionStatus(true)
	case window.Exited:
		telemetry.Metrics.SessionActive.Set(0)
		telemetry.Infof("engine: trading window closed, sending logout")
		e.notifier.NotifyLogout()
		e.publishSessionStatus(false)
	}
}

// OnAck matches a venue response to a recorded dispatch and reports the
// round trip. Unknown or duplicate acks are no-ops.
//
// Deliberately not under the engine mutex: the tracker is self-synchronized
// and the ack path never touches window or queue state.
func (e *Engine) OnAck(orderID int64, status events.AckStatus) {
	sentAt, ok := e.sent.Ack(orderID)
	if !ok {
		telemetry.Metrics.AcksUnmatched.Inc()
		telemetry.Debugf("engine: unmatched ack for order %d (status=%s)", orderID, status)
		return
	}

	telemetry.Metrics.AcksMatched.Inc()
	e.latency.ReportLatency(orderID, e.clock().Sub(sentAt), status)
}

// Pending reports the current queue depth.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.Len()
}

// Unacked reports how many dispatched orders still await an ack.
func (e *Engine) Unacked() int {
	return e.sent.Len()
}

// Start performs the initial window check (so a window already containing
// "now" is active before the first order arrives), then runs the two periodic
// loops until ctx is cancelled or Shutdown is called.
func (e *Engine) Start(ctx context.Context) {
	e.CheckWindow()
	e.Tick()

	e.wg.Add(2)
	go e.runLoop(ctx, e.tickEvery, e.Tick)
	go e.runLoop(ctx, e.windowEvery, e.CheckWindow)
}

func (e *Engine) runLoop(ctx context.Context, every time.Duration, fn func()) {
	defer e.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-ctx.Done():
			return
		case <-e.done:
			return
		}
	}
}

// Shutdown stops both periodic loops. Any tick or window check already in its
// critical section finishes first; no further ones start. Safe to call twice.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.done)
	})
	e.wg.Wait()
}

// dispatchLocked hands the order to the transport and records the dispatch
// instant for ack matching. Must be called with e.mu held.
func (e *Engine) dispatchLocked(req events.OrderRequest) {
	e.dispatcher.Dispatch(req)
	e.sent.Record(req.OrderID, e.clock())
	telemetry.Metrics.OrdersDispatched.Inc()
	telemetry.Debugf("engine: dispatched order %d %s %s %s@%s x%d",
		req.OrderID, req.Kind, req.Side, req.Symbol, req.Price, req.Qty)
}

// onOrderAckEvent adapts bus ack events (published by the venue transport's
// read pump) onto OnAck.
func (e *Engine) onOrderAckEvent(evt events.Event) error {
	ack, ok := evt.Payload.(events.OrderAck)
	if !ok {
		return nil
	}
	e.OnAck(ack.OrderID, ack.Status)
	return nil
}

func (e *Engine) publishSessionStatus(active bool) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{
		Type:      events.EventSessionStatus,
		Timestamp: e.clock(),
		Payload:   events.SessionStatus{Active: active},
	})
}
