package events

import "time"

// Event is the envelope that flows through the event bus.
// Every domain event (venue ack, session transition) is wrapped in one.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	// Venue response events
	EventOrderAck EventType = "order_ack"
	// Session-boundary events (logon/logout at window edges)
	EventSessionStatus EventType = "session_status"
)
