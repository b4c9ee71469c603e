package tracking

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/calebmorse/ordergate/internal/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_DispatchThenAck(t *testing.T) {
	s := openTestStore(t)

	req := events.OrderRequest{
		OrderID: 1,
		Kind:    events.RequestNew,
		Symbol:  "ACME",
		Side:    events.SideBuy,
		Price:   decimal.NewFromFloat(150.25),
		Qty:     100,
	}
	require.NoError(t, s.InsertDispatch(req, time.Now()))

	n, err := s.UnackedCount()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	s.UpdateAck(1, events.AckAccepted, 12*time.Millisecond, time.Now())

	n, err = s.UnackedCount()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestStore_AckForUnknownOrderIsNoop(t *testing.T) {
	s := openTestStore(t)

	// must not error or create rows
	s.UpdateAck(42, events.AckRejected, time.Millisecond, time.Now())

	n, err := s.UnackedCount()
	require.NoError(t, err)
	require.Zero(t, n)
}
