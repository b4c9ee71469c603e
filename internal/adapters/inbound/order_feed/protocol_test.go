package order_feed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calebmorse/ordergate/internal/events"
)

func TestParseSubmission_New(t *testing.T) {
	req, err := ParseSubmission([]byte(`{
		"order_id": 1,
		"kind": "new",
		"symbol": "ACME",
		"side": "buy",
		"price": "150.25",
		"qty": 100
	}`))
	require.NoError(t, err)
	require.Equal(t, int64(1), req.OrderID)
	require.Equal(t, events.RequestNew, req.Kind)
	require.Equal(t, "ACME", req.Symbol)
	require.Equal(t, "150.25", req.Price.String())
}

func TestParseSubmission_CancelNeedsOnlyID(t *testing.T) {
	req, err := ParseSubmission([]byte(`{"order_id": 7, "kind": "cancel"}`))
	require.NoError(t, err)
	require.Equal(t, events.RequestCancel, req.Kind)
}

func TestParseSubmission_Rejects(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing id", `{"kind": "new", "symbol": "ACME", "side": "buy", "price": "1", "qty": 1}`},
		{"unknown kind", `{"order_id": 1, "kind": "replace"}`},
		{"new without symbol", `{"order_id": 1, "kind": "new", "side": "buy", "price": "1", "qty": 1}`},
		{"bad side", `{"order_id": 1, "kind": "new", "symbol": "ACME", "side": "long", "price": "1", "qty": 1}`},
		{"zero qty", `{"order_id": 1, "kind": "new", "symbol": "ACME", "side": "buy", "price": "1", "qty": 0}`},
		{"negative price", `{"order_id": 1, "kind": "modify", "price": "-3", "qty": 10}`},
		{"zero price modify", `{"order_id": 1, "kind": "modify", "price": "0", "qty": 10}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSubmission([]byte(tc.body))
			require.Error(t, err)
		})
	}
}
