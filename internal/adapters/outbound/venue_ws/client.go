package venue_ws

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/calebmorse/ordergate/internal/events"
	"github.com/calebmorse/ordergate/internal/telemetry"
)

const (
	sendBuf       = 256
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second

	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// Client maintains the order-entry WebSocket to the venue. Outbound messages
// (orders, logon/logout) are queued on a buffered channel and written by a
// per-connection write pump under a wire rate limit; venue acks read by the
// read pump are republished onto the in-process bus.
//
// The engine treats Dispatch as fire-and-forget; if the connection is down,
// messages buffer until the channel fills and are then dropped with a warning.
type Client struct {
	url          string
	bus          *events.Bus
	send         chan []byte
	writeLimiter *rate.Limiter
}

func NewClient(url string, bus *events.Bus, writePerSec float64) *Client {
	if writePerSec <= 0 {
		writePerSec = 50
	}
	return &Client{
		url:          url,
		bus:          bus,
		send:         make(chan []byte, sendBuf),
		writeLimiter: rate.NewLimiter(rate.Limit(writePerSec), int(writePerSec)),
	}
}

// Dispatch implements the engine's dispatcher port.
func (c *Client) Dispatch(req events.OrderRequest) {
	data, err := MarshalOrder(req)
	if err != nil {
		telemetry.Warnf("venue_ws: marshal order %d: %v", req.OrderID, err)
		return
	}
	c.enqueue(data, fmt.Sprintf("order %d", req.OrderID))
}

// NotifyLogon implements the engine's session notifier port.
func (c *Client) NotifyLogon() { c.enqueueSession("logon") }

// NotifyLogout implements the engine's session notifier port.
func (c *Client) NotifyLogout() { c.enqueueSession("logout") }

func (c *Client) enqueueSession(kind string) {
	data, err := MarshalSession(kind)
	if err != nil {
		telemetry.Warnf("venue_ws: marshal %s: %v", kind, err)
		return
	}
	c.enqueue(data, kind)
}

func (c *Client) enqueue(data []byte, what string) {
	select {
	case c.send <- data:
	default:
		telemetry.Warnf("venue_ws: send buffer full, dropping %s", what)
	}
}

// ConnectWithRetry connects to the venue and reconnects on failure with
// exponential backoff. Blocks until ctx is cancelled.
func (c *Client) ConnectWithRetry(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		connStart := time.Now()
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return
		}

		if time.Since(connStart) > time.Minute {
			attempt = 0
		}

		attempt++
		backoff := time.Duration(float64(minBackoff) * math.Pow(2, float64(min(attempt-1, 5))))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		if err != nil {
			telemetry.Warnf("venue_ws: connection lost (attempt %d): %v — retrying in %s", attempt, err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	telemetry.Infof("venue_ws: connected to %s", c.url)

	done := make(chan struct{})
	go c.writePump(ctx, conn, done)
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		ack, err := UnmarshalAck(msg)
		if err != nil {
			telemetry.Warnf("venue_ws: unmarshal error: %v", err)
			continue
		}

		c.bus.Publish(events.Event{
			Type:      events.EventOrderAck,
			Timestamp: time.Now(),
			Payload:   ack,
		})
	}
}

// writePump drains the send channel onto the connection, pacing writes with
// the wire limiter and keeping the connection alive with pings. It exits when
// the read side signals done or ctx is cancelled.
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := c.writeLimiter.Wait(ctx); err != nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("venue_ws: write error: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
