package tracking

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/calebmorse/ordergate/internal/events"
	"github.com/calebmorse/ordergate/internal/telemetry"

	_ "modernc.org/sqlite"
)

const (
	maxStoreBytes  int64   = 256 << 20 // 256 MiB
	evictPct       float64 = 0.10      // evict oldest 10% of rows
	vacuumInterval         = 10        // incremental vacuum every N evictions
)

// Store persists an audit trail of dispatched orders and their ack latencies
// in a FIFO SQLite database capped at ~256 MiB. Oldest 10% of rows are evicted
// when the budget is exceeded.
type Store struct {
	db           *sql.DB
	mu           sync.Mutex
	cachedSize   int64
	rowCount     int64
	evictCounter int
}

const schema = `CREATE TABLE IF NOT EXISTS dispatched_orders (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id      INTEGER NOT NULL,
	symbol        TEXT    NOT NULL,
	side          TEXT    NOT NULL,
	price         TEXT    NOT NULL,
	qty           INTEGER NOT NULL,
	dispatched_at TEXT    NOT NULL,

	-- Filled in when the venue ack is matched
	ack_status TEXT,
	latency_ms INTEGER,
	acked_at   TEXT
);
CREATE INDEX IF NOT EXISTS idx_dispatched_orders_order_id ON dispatched_orders(order_id)`

func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	var avMode int
	if err := db.QueryRow(`PRAGMA auto_vacuum`).Scan(&avMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("read auto_vacuum: %w", err)
	}
	if avMode != 2 {
		if _, err := db.Exec(`PRAGMA auto_vacuum = INCREMENTAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("set auto_vacuum: %w", err)
		}
		if _, err := db.Exec(`VACUUM`); err != nil {
			telemetry.Warnf("audit store: VACUUM to enable auto_vacuum failed: %v", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}

	var size int64
	db.QueryRow(`SELECT COALESCE(page_count * page_size, 0) FROM pragma_page_count(), pragma_page_size()`).Scan(&size)
	var rowCount int64
	db.QueryRow(`SELECT COUNT(*) FROM dispatched_orders`).Scan(&rowCount)

	telemetry.Plainf("audit store: opened %s  size=%d  rows=%d", path, size, rowCount)
	return &Store{db: db, cachedSize: size, rowCount: rowCount}, nil
}

// InsertDispatch records a dispatched order.
func (s *Store) InsertDispatch(req events.OrderRequest, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO dispatched_orders (order_id, symbol, side, price, qty, dispatched_at)
		 VALUES (?,?,?,?,?,?)`,
		req.OrderID, req.Symbol, string(req.Side), req.Price.String(), req.Qty,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert dispatch: %w", err)
	}

	s.rowCount++
	s.refreshSize()
	if s.cachedSize > maxStoreBytes {
		s.evict()
	}
	return nil
}

// UpdateAck fills in the ack columns on the most recent dispatch row for the
// order id. Matching zero rows is not an error: the row may already have been
// evicted.
func (s *Store) UpdateAck(orderID int64, status events.AckStatus, latency time.Duration, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		`UPDATE dispatched_orders SET ack_status=?, latency_ms=?, acked_at=?
		 WHERE id = (SELECT MAX(id) FROM dispatched_orders WHERE order_id=?)`,
		string(status), latency.Milliseconds(), at.UTC().Format(time.RFC3339Nano), orderID,
	); err != nil {
		telemetry.Warnf("audit store: update ack (order %d): %v", orderID, err)
	}
}

// UnackedCount returns how many recorded dispatches have no ack yet.
func (s *Store) UnackedCount() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM dispatched_orders WHERE ack_status IS NULL`).Scan(&n)
	return n, err
}

// refreshSize re-reads the database file size from SQLite pragmas.
// Must be called with s.mu held.
func (s *Store) refreshSize() {
	var size int64
	row := s.db.QueryRow(`SELECT COALESCE(page_count * page_size, 0) FROM pragma_page_count(), pragma_page_size()`)
	if err := row.Scan(&size); err == nil {
		s.cachedSize = size
	}
}

// evict deletes the oldest 10% of rows by count.
// Must be called with s.mu held.
func (s *Store) evict() {
	toDelete := int64(float64(s.rowCount) * evictPct)
	if toDelete < 1 {
		toDelete = 1
	}

	res, err := s.db.Exec(
		`DELETE FROM dispatched_orders WHERE id IN (
			SELECT id FROM dispatched_orders ORDER BY id ASC LIMIT ?
		)`, toDelete,
	)
	if err != nil {
		telemetry.Warnf("audit store evict: %v", err)
		return
	}

	deleted, _ := res.RowsAffected()
	s.rowCount -= deleted
	s.evictCounter++

	telemetry.Infof("audit store: evicted %d rows (target %d)", deleted, toDelete)

	if s.evictCounter%vacuumInterval == 0 {
		s.db.Exec(`PRAGMA incremental_vacuum`)
	}

	s.refreshSize()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
