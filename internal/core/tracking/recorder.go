package tracking

import (
	"time"

	"github.com/calebmorse/ordergate/internal/events"
	"github.com/calebmorse/ordergate/internal/telemetry"
)

// VenueDispatcher is the downstream transport the recorder forwards to.
// Satisfied by *venue_ws.Client.
type VenueDispatcher interface {
	Dispatch(req events.OrderRequest)
}

// Recorder sits between the engine and the venue transport. On the dispatch
// path it writes the audit row before forwarding; on the ack path it logs the
// round-trip latency and completes the audit row. It satisfies the engine's
// Dispatcher and LatencySink ports.
type Recorder struct {
	store *Store // nil disables the audit trail
	next  VenueDispatcher
}

func NewRecorder(store *Store, next VenueDispatcher) *Recorder {
	return &Recorder{store: store, next: next}
}

func (r *Recorder) Dispatch(req events.OrderRequest) {
	if r.store != nil {
		if err := r.store.InsertDispatch(req, time.Now()); err != nil {
			telemetry.Warnf("recorder: audit insert (order %d): %v", req.OrderID, err)
		}
	}
	r.next.Dispatch(req)
}

// ReportLatency is called by the engine once an ack is matched to a dispatch.
func (r *Recorder) ReportLatency(orderID int64, elapsed time.Duration, status events.AckStatus) {
	telemetry.Metrics.AckLatency.Record(elapsed)
	telemetry.Infof("response: order=%d status=%s latency=%dms", orderID, status, elapsed.Milliseconds())

	if r.store != nil {
		r.store.UpdateAck(orderID, status, elapsed, time.Now())
	}
}
