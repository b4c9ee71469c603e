package venue_ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/calebmorse/ordergate/internal/events"
)

// Envelope is the wire format for messages exchanged with the venue.
// Outbound types: "logon", "logout", "order". Inbound type: "ack".
type Envelope struct {
	Type      string               `json:"type"`
	Timestamp time.Time            `json:"ts"`
	Order     *events.OrderRequest `json:"order,omitempty"`
	OrderID   int64                `json:"order_id,omitempty"`
	Status    events.AckStatus     `json:"status,omitempty"`
}

// MarshalOrder serializes an order dispatch message.
func MarshalOrder(req events.OrderRequest) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      "order",
		Timestamp: time.Now(),
		Order:     &req,
	})
}

// MarshalSession serializes a logon or logout message.
func MarshalSession(kind string) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      kind,
		Timestamp: time.Now(),
	})
}

// UnmarshalAck deserializes a venue ack message.
func UnmarshalAck(data []byte) (events.OrderAck, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.OrderAck{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type != "ack" {
		return events.OrderAck{}, fmt.Errorf("unexpected message type: %s", env.Type)
	}
	return events.OrderAck{OrderID: env.OrderID, Status: env.Status}, nil
}
