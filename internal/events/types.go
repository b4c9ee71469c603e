package events

import "github.com/shopspring/decimal"

// RequestKind distinguishes the three order message types a client can submit.
type RequestKind string

const (
	RequestNew    RequestKind = "new"
	RequestModify RequestKind = "modify"
	RequestCancel RequestKind = "cancel"
)

// Side is the order side as sent to the venue.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderRequest is one client order message, handed to the dispatch engine
// for admission and pacing.
//
// OrderID is caller-assigned and assumed unique per New order. For Modify,
// Price and Qty replace the still-queued values; for Cancel they are ignored.
type OrderRequest struct {
	OrderID int64           `json:"order_id"`
	Kind    RequestKind     `json:"kind"`
	Symbol  string          `json:"symbol"`
	Side    Side            `json:"side"`
	Price   decimal.Decimal `json:"price"`
	Qty     int64           `json:"qty"`
}

// AckStatus is the venue's verdict on a dispatched order.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckRejected AckStatus = "rejected"
)

// OrderAck is published when the venue responds to a dispatched order.
// Acks for unknown or already-matched order ids are benign no-ops downstream.
type OrderAck struct {
	OrderID int64     `json:"order_id"`
	Status  AckStatus `json:"status"`
}

// SessionStatus signals a trading-window transition to interested adapters.
type SessionStatus struct {
	Active bool `json:"active"`
}
