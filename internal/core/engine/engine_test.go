package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/calebmorse/ordergate/internal/core/queue"
	"github.com/calebmorse/ordergate/internal/events"
)

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []events.OrderRequest
}

func (d *fakeDispatcher) Dispatch(req events.OrderRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, req)
}

func (d *fakeDispatcher) ids() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]int64, len(d.sent))
	for i, req := range d.sent {
		ids[i] = req.OrderID
	}
	return ids
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fakeNotifier struct {
	mu      sync.Mutex
	logons  int
	logouts int
}

func (n *fakeNotifier) NotifyLogon() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logons++
}

func (n *fakeNotifier) NotifyLogout() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logouts++
}

type latencyReport struct {
	orderID int64
	elapsed time.Duration
	status  events.AckStatus
}

type fakeSink struct {
	mu      sync.Mutex
	reports []latencyReport
}

func (s *fakeSink) ReportLatency(orderID int64, elapsed time.Duration, status events.AckStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, latencyReport{orderID, elapsed, status})
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testHarness struct {
	engine     *Engine
	dispatcher *fakeDispatcher
	notifier   *fakeNotifier
	sink       *fakeSink
	clock      *manualClock
}

// newHarness builds an engine around a manual clock set to noon, with a
// 09:30–16:00 trading window (so the engine starts inside it) and the given
// per-interval ceiling. The initial window check has already run.
func newHarness(t *testing.T, ceiling int) *testHarness {
	t.Helper()

	clock := &manualClock{now: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)}
	dispatcher := &fakeDispatcher{}
	notifier := &fakeNotifier{}
	sink := &fakeSink{}

	eng, err := New(Config{
		WindowStart:       9*time.Hour + 30*time.Minute,
		WindowEnd:         16 * time.Hour,
		OrdersPerInterval: ceiling,
		Clock:             clock.Now,
	}, nil, dispatcher, notifier, sink)
	require.NoError(t, err)

	eng.CheckWindow()

	return &testHarness{
		engine:     eng,
		dispatcher: dispatcher,
		notifier:   notifier,
		sink:       sink,
		clock:      clock,
	}
}

func newReq(id int64, kind events.RequestKind) events.OrderRequest {
	return events.OrderRequest{
		OrderID: id,
		Kind:    kind,
		Symbol:  "ACME",
		Side:    events.SideBuy,
		Price:   decimal.NewFromFloat(150.25),
		Qty:     100,
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	_, err := New(Config{
		WindowStart:       9 * time.Hour,
		WindowEnd:         16 * time.Hour,
		OrdersPerInterval: 0,
	}, nil, &fakeDispatcher{}, &fakeNotifier{}, &fakeSink{})
	require.Error(t, err, "non-positive ceiling is fatal")

	_, err = New(Config{
		WindowStart:       16 * time.Hour,
		WindowEnd:         9 * time.Hour,
		OrdersPerInterval: 10,
	}, nil, &fakeDispatcher{}, &fakeNotifier{}, &fakeSink{})
	require.Error(t, err, "end-before-start window is fatal")
}

func TestOnOrderRequest_RejectedOutsideWindow(t *testing.T) {
	h := newHarness(t, 10)

	// move past the close and flip the gate
	h.clock.Set(time.Date(2026, 8, 26, 17, 0, 0, 0, time.UTC))
	h.engine.CheckWindow()

	err := h.engine.OnOrderRequest(newReq(10, events.RequestNew))
	require.ErrorIs(t, err, ErrOutsideWindow)
	require.Zero(t, h.dispatcher.count())
	require.Zero(t, h.engine.Pending(), "rejection must not touch the queue")

	// modify/cancel are gated the same way
	require.ErrorIs(t, h.engine.OnOrderRequest(newReq(10, events.RequestModify)), ErrOutsideWindow)
	require.ErrorIs(t, h.engine.OnOrderRequest(newReq(10, events.RequestCancel)), ErrOutsideWindow)
}

func TestOnOrderRequest_ThrottlesBeyondCeiling(t *testing.T) {
	h := newHarness(t, 1)

	require.NoError(t, h.engine.OnOrderRequest(newReq(1, events.RequestNew)))
	require.NoError(t, h.engine.OnOrderRequest(newReq(2, events.RequestNew)))

	require.Equal(t, []int64{1}, h.dispatcher.ids(), "first order dispatches immediately")
	require.Equal(t, 1, h.engine.Pending(), "second order queues")

	h.engine.Tick()
	require.Equal(t, []int64{1, 2}, h.dispatcher.ids(), "queued order drains on the next tick")
	require.Zero(t, h.engine.Pending())
}

func TestTick_NeverExceedsCeiling(t *testing.T) {
	h := newHarness(t, 3)

	for id := int64(1); id <= 10; id++ {
		require.NoError(t, h.engine.OnOrderRequest(newReq(id, events.RequestNew)))
	}
	require.Equal(t, 3, h.dispatcher.count(), "interval budget caps immediate dispatches")
	require.Equal(t, 7, h.engine.Pending())

	h.engine.Tick()
	require.Equal(t, 6, h.dispatcher.count())
	h.engine.Tick()
	require.Equal(t, 9, h.dispatcher.count())
	h.engine.Tick()
	require.Equal(t, 10, h.dispatcher.count())

	require.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, h.dispatcher.ids(), "drain preserves FIFO")
}

func TestTick_BudgetSharedWithFreshOrders(t *testing.T) {
	h := newHarness(t, 2)

	for id := int64(1); id <= 5; id++ {
		require.NoError(t, h.engine.OnOrderRequest(newReq(id, events.RequestNew)))
	}
	require.Equal(t, 2, h.dispatcher.count())

	// tick drains two more, exhausting the fresh interval's budget
	h.engine.Tick()
	require.Equal(t, 4, h.dispatcher.count())

	// a fresh order in the same interval must queue, not dispatch
	require.NoError(t, h.engine.OnOrderRequest(newReq(6, events.RequestNew)))
	require.Equal(t, 4, h.dispatcher.count())
	require.Equal(t, 2, h.engine.Pending())
}

func TestOnOrderRequest_AmendBeforeDispatch(t *testing.T) {
	h := newHarness(t, 1)

	require.NoError(t, h.engine.OnOrderRequest(newReq(1, events.RequestNew)))
	require.NoError(t, h.engine.OnOrderRequest(newReq(2, events.RequestNew)))
	require.NoError(t, h.engine.OnOrderRequest(newReq(3, events.RequestNew)))

	amend := newReq(2, events.RequestModify)
	amend.Price = decimal.NewFromFloat(152.50)
	amend.Qty = 300
	require.NoError(t, h.engine.OnOrderRequest(amend))

	h.engine.Tick()
	h.engine.Tick()

	require.Equal(t, []int64{1, 2, 3}, h.dispatcher.ids(), "amend keeps queue position")
	sent := h.dispatcher.sent[1]
	require.True(t, sent.Price.Equal(decimal.NewFromFloat(152.50)))
	require.Equal(t, int64(300), sent.Qty)
}

func TestOnOrderRequest_WithdrawBeforeDispatch(t *testing.T) {
	h := newHarness(t, 1)

	require.NoError(t, h.engine.OnOrderRequest(newReq(1, events.RequestNew)))
	require.NoError(t, h.engine.OnOrderRequest(newReq(2, events.RequestNew)))
	require.NoError(t, h.engine.OnOrderRequest(newReq(3, events.RequestNew)))
	require.NoError(t, h.engine.OnOrderRequest(newReq(2, events.RequestCancel)))

	h.engine.Tick()
	h.engine.Tick()
	h.engine.Tick()

	require.Equal(t, []int64{1, 3}, h.dispatcher.ids(), "withdrawn order never dispatches")

	// and it never reached the sent tracker: its ack goes unmatched
	h.engine.OnAck(2, events.AckAccepted)
	require.Empty(t, h.sink.reports)
}

func TestOnOrderRequest_CancelAfterDispatchIsNoop(t *testing.T) {
	h := newHarness(t, 10)

	require.NoError(t, h.engine.OnOrderRequest(newReq(5, events.RequestNew)))
	require.Equal(t, []int64{5}, h.dispatcher.ids())

	// order already left for the venue; cancel finds nothing queued
	require.NoError(t, h.engine.OnOrderRequest(newReq(5, events.RequestCancel)))
	require.NoError(t, h.engine.OnOrderRequest(newReq(5, events.RequestModify)))
	require.Equal(t, 1, h.dispatcher.count())
}

func TestOnOrderRequest_DuplicateQueuedID(t *testing.T) {
	h := newHarness(t, 1)

	require.NoError(t, h.engine.OnOrderRequest(newReq(1, events.RequestNew)))
	require.NoError(t, h.engine.OnOrderRequest(newReq(2, events.RequestNew)))

	err := h.engine.OnOrderRequest(newReq(2, events.RequestNew))
	require.ErrorIs(t, err, queue.ErrDuplicateID)
	require.Equal(t, 1, h.engine.Pending(), "duplicate must not grow the queue")
}

func TestOnAck_ReportsLatencyExactlyOnce(t *testing.T) {
	h := newHarness(t, 10)

	require.NoError(t, h.engine.OnOrderRequest(newReq(1, events.RequestNew)))
	require.Equal(t, 1, h.engine.Unacked())

	h.clock.Advance(42 * time.Millisecond)
	h.engine.OnAck(1, events.AckAccepted)

	require.Len(t, h.sink.reports, 1)
	require.Equal(t, int64(1), h.sink.reports[0].orderID)
	require.Equal(t, 42*time.Millisecond, h.sink.reports[0].elapsed)
	require.Equal(t, events.AckAccepted, h.sink.reports[0].status)
	require.Zero(t, h.engine.Unacked())

	// duplicate and unknown acks are no-ops
	h.engine.OnAck(1, events.AckAccepted)
	h.engine.OnAck(99, events.AckRejected)
	require.Len(t, h.sink.reports, 1)
}

func TestCheckWindow_TransitionsFireOnce(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)}
	dispatcher := &fakeDispatcher{}
	notifier := &fakeNotifier{}

	eng, err := New(Config{
		WindowStart:       9 * time.Hour,
		WindowEnd:         17 * time.Hour,
		OrdersPerInterval: 10,
		Clock:             clock.Now,
	}, nil, dispatcher, notifier, &fakeSink{})
	require.NoError(t, err)

	eng.CheckWindow()
	require.Zero(t, notifier.logons, "still before the open")

	clock.Set(time.Date(2026, 8, 26, 9, 30, 0, 0, time.UTC))
	eng.CheckWindow()
	eng.CheckWindow()
	require.Equal(t, 1, notifier.logons, "logon fires once per transition")

	clock.Set(time.Date(2026, 8, 26, 17, 30, 0, 0, time.UTC))
	eng.CheckWindow()
	eng.CheckWindow()
	require.Equal(t, 1, notifier.logouts, "logout fires once per transition")

	// orders are rejected again after the close
	err = eng.OnOrderRequest(newReq(1, events.RequestNew))
	require.ErrorIs(t, err, ErrOutsideWindow)
}

func TestOnAck_ViaBusSubscription(t *testing.T) {
	bus := events.NewBus()
	clock := &manualClock{now: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)}
	dispatcher := &fakeDispatcher{}
	sink := &fakeSink{}

	eng, err := New(Config{
		WindowStart:       9 * time.Hour,
		WindowEnd:         17 * time.Hour,
		OrdersPerInterval: 10,
		Clock:             clock.Now,
	}, bus, dispatcher, &fakeNotifier{}, sink)
	require.NoError(t, err)
	eng.CheckWindow()

	require.NoError(t, eng.OnOrderRequest(newReq(1, events.RequestNew)))

	clock.Advance(5 * time.Millisecond)
	bus.Publish(events.Event{
		Type:    events.EventOrderAck,
		Payload: events.OrderAck{OrderID: 1, Status: events.AckAccepted},
	})

	require.Len(t, sink.reports, 1)
	require.Equal(t, 5*time.Millisecond, sink.reports[0].elapsed)
}

func TestStartShutdown_DrainsThenStops(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	notifier := &fakeNotifier{}

	// window spans the whole day so the real clock is always inside it
	eng, err := New(Config{
		WindowStart:         0,
		WindowEnd:           24*time.Hour - time.Second,
		OrdersPerInterval:   1,
		TickInterval:        10 * time.Millisecond,
		WindowCheckInterval: 10 * time.Millisecond,
	}, nil, dispatcher, notifier, &fakeSink{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)

	require.NoError(t, eng.OnOrderRequest(newReq(1, events.RequestNew)))
	require.NoError(t, eng.OnOrderRequest(newReq(2, events.RequestNew)))

	require.Eventually(t, func() bool {
		return dispatcher.count() == 2
	}, 2*time.Second, 5*time.Millisecond, "periodic tick drains the queue")

	eng.Shutdown()
	eng.Shutdown() // idempotent

	// no further ticks run after shutdown: of two fresh orders at ceiling 1,
	// at most one can ride leftover budget and the rest must stay queued
	require.NoError(t, eng.OnOrderRequest(newReq(3, events.RequestNew)))
	require.NoError(t, eng.OnOrderRequest(newReq(4, events.RequestNew)))
	time.Sleep(50 * time.Millisecond)
	require.GreaterOrEqual(t, eng.Pending(), 1, "queue only drains on ticks, which have stopped")
	require.LessOrEqual(t, dispatcher.count(), 3)
}
