package order_feed

import (
	"encoding/json"
	"fmt"

	"github.com/calebmorse/ordergate/internal/events"
)

// Reject reasons reported back to the submitting client.
const (
	ReasonMalformed     = "malformed"
	ReasonOutsideWindow = "outside_trading_window"
	ReasonDuplicateID   = "duplicate_order_id"
	ReasonUnknownSymbol = "unknown_symbol"
)

// Notice is the server-to-client message: the admission verdict for a
// submission, or a session-status broadcast at window transitions.
type Notice struct {
	Type    string `json:"type"` // "accepted", "rejected", "session"
	OrderID int64  `json:"order_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Active  bool   `json:"active,omitempty"`
}

// ParseSubmission decodes and validates one client order submission.
// The wire format is the OrderRequest JSON shape.
func ParseSubmission(data []byte) (events.OrderRequest, error) {
	var req events.OrderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return events.OrderRequest{}, fmt.Errorf("unmarshal submission: %w", err)
	}

	if req.OrderID <= 0 {
		return events.OrderRequest{}, fmt.Errorf("submission: order_id must be positive, got %d", req.OrderID)
	}

	switch req.Kind {
	case events.RequestNew:
		if req.Symbol == "" {
			return events.OrderRequest{}, fmt.Errorf("submission %d: missing symbol", req.OrderID)
		}
		if req.Side != events.SideBuy && req.Side != events.SideSell {
			return events.OrderRequest{}, fmt.Errorf("submission %d: bad side %q", req.OrderID, req.Side)
		}
		fallthrough
	case events.RequestModify:
		if req.Qty <= 0 {
			return events.OrderRequest{}, fmt.Errorf("submission %d: qty must be positive, got %d", req.OrderID, req.Qty)
		}
		if req.Price.Sign() <= 0 {
			return events.OrderRequest{}, fmt.Errorf("submission %d: price must be positive, got %s", req.OrderID, req.Price)
		}
	case events.RequestCancel:
		// id is all a cancel needs
	default:
		return events.OrderRequest{}, fmt.Errorf("submission %d: unknown kind %q", req.OrderID, req.Kind)
	}

	return req, nil
}
