package engine

import (
	"time"

	"github.com/calebmorse/ordergate/internal/events"
)

// Dispatcher hands an admitted order to the venue transport. Fire-and-forget:
// the engine does not observe transport success or failure.
// Satisfied by *tracking.Recorder (which forwards to *venue_ws.Client).
type Dispatcher interface {
	Dispatch(req events.OrderRequest)
}

// SessionNotifier receives the session-boundary signals emitted when the
// trading window opens or closes.
type SessionNotifier interface {
	NotifyLogon()
	NotifyLogout()
}

// LatencySink receives the round-trip measurement when a venue ack is matched
// to a recorded dispatch.
type LatencySink interface {
	ReportLatency(orderID int64, elapsed time.Duration, status events.AckStatus)
}

// Clock supplies wall-clock time. Tests substitute a manual clock.
type Clock func() time.Time
