package order_feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/calebmorse/ordergate/internal/core/engine"
	"github.com/calebmorse/ordergate/internal/core/queue"
	"github.com/calebmorse/ordergate/internal/events"
	"github.com/calebmorse/ordergate/internal/telemetry"
)

const (
	clientSendBuf = 256
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Admitter is the engine's admission entry point.
// Satisfied by *engine.Engine.
type Admitter interface {
	OnOrderRequest(req events.OrderRequest) error
}

// SymbolChecker reports whether a symbol is tradable on the venue.
// Satisfied by *venue_http.InstrumentResolver. Nil disables the check.
type SymbolChecker interface {
	Known(ctx context.Context, symbol string) bool
}

type feedClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Server accepts client order submissions over WebSocket, validates them,
// and hands them to the engine. Each submission gets an accepted/rejected
// notice; window transitions are broadcast to every connected client.
type Server struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}
	admit   Admitter
	symbols SymbolChecker
}

func NewServer(admit Admitter, symbols SymbolChecker, bus *events.Bus) *Server {
	s := &Server{
		clients: make(map[*feedClient]struct{}),
		admit:   admit,
		symbols: symbols,
	}
	bus.Subscribe(events.EventSessionStatus, s.broadcastSession)
	return s
}

// broadcastSession forwards window open/close to all connected clients.
func (s *Server) broadcastSession(evt events.Event) error {
	status, ok := evt.Payload.(events.SessionStatus)
	if !ok {
		return nil
	}

	data, err := json.Marshal(Notice{Type: "session", Active: status.Active})
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			telemetry.Warnf("order_feed: dropping session notice for slow client %s", c.id)
		}
	}
	return nil
}

// HandleWS is the HTTP handler for WebSocket upgrade requests.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("order_feed: upgrade failed: %v", err)
		return
	}

	c := &feedClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendBuf),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	telemetry.Infof("order_feed: client connected %s (%s)", c.id, r.RemoteAddr)

	go s.writePump(c)
	go s.readPump(c)
}

// readPump consumes submissions from one client until the connection drops.
// On exit it signals writePump via c.done (never closes c.send).
func (s *Server) readPump(c *feedClient) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handleSubmission(c, msg)
	}
}

// handleSubmission validates and admits one order message, replying with
// the verdict.
func (s *Server) handleSubmission(c *feedClient, msg []byte) {
	req, err := ParseSubmission(msg)
	if err != nil {
		telemetry.Metrics.FeedParseErrors.Inc()
		telemetry.Warnf("order_feed: bad submission from %s: %v", c.id, err)
		s.reply(c, Notice{Type: "rejected", OrderID: req.OrderID, Reason: ReasonMalformed})
		return
	}

	if s.symbols != nil && req.Kind == events.RequestNew {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		known := s.symbols.Known(ctx, req.Symbol)
		cancel()
		if !known {
			telemetry.Infof("order_feed: order %d for unlisted symbol %s", req.OrderID, req.Symbol)
			s.reply(c, Notice{Type: "rejected", OrderID: req.OrderID, Reason: ReasonUnknownSymbol})
			return
		}
	}

	if err := s.admit.OnOrderRequest(req); err != nil {
		s.reply(c, Notice{Type: "rejected", OrderID: req.OrderID, Reason: rejectReason(err)})
		return
	}
	s.reply(c, Notice{Type: "accepted", OrderID: req.OrderID})
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrOutsideWindow):
		return ReasonOutsideWindow
	case errors.Is(err, queue.ErrDuplicateID):
		return ReasonDuplicateID
	default:
		return ReasonMalformed
	}
}

func (s *Server) reply(c *feedClient, n Notice) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		telemetry.Warnf("order_feed: dropping reply for slow client %s", c.id)
	}
}

// writePump drains the client's send channel and writes to the WS connection.
// It owns the client lifecycle: on exit it removes the client from the map
// (so broadcasts never send to a stale channel) and closes the connection.
func (s *Server) writePump(c *feedClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("order_feed: write error client=%s: %v", c.id, err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) removeClient(c *feedClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	telemetry.Infof("order_feed: client disconnected %s", c.id)
}

// ListenAndServe starts the order feed WebSocket server.
func (s *Server) ListenAndServe(host string, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders/ws", s.HandleWS)

	addr := fmt.Sprintf("%s:%d", host, port)
	telemetry.Plainf("order_feed: listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
