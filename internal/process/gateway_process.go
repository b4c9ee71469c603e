package process

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calebmorse/ordergate/internal/adapters/inbound/order_feed"
	"github.com/calebmorse/ordergate/internal/adapters/outbound/venue_http"
	"github.com/calebmorse/ordergate/internal/adapters/outbound/venue_ws"
	"github.com/calebmorse/ordergate/internal/config"
	"github.com/calebmorse/ordergate/internal/core/engine"
	"github.com/calebmorse/ordergate/internal/core/tracking"
	"github.com/calebmorse/ordergate/internal/events"
	"github.com/calebmorse/ordergate/internal/telemetry"
)

// Run boots the order gateway: config, telemetry, venue clients, audit store,
// dispatch engine, and the client order feed. Blocks until SIGINT/SIGTERM.
func Run() {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))

	telemetry.Infof("Starting order gateway")

	limits, err := config.LoadSessionLimits(cfg.SessionConfigPath)
	if err != nil {
		telemetry.Errorf("Session limits: %v", err)
		os.Exit(1)
	}
	windowStart, _ := limits.StartOfDay()
	windowEnd, _ := limits.EndOfDay()
	telemetry.Infof("Trading window %s–%s, %d orders per %s tick",
		limits.WindowStart, limits.WindowEnd, limits.OrdersPerInterval, limits.TickInterval())

	bus := events.NewBus()

	// ── Venue HTTP client ──────────────────────────────────────
	venueClient := venue_http.NewClient(cfg.VenueBaseURL, cfg.VenueAPIKey)

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if status, err := venueClient.GetSessionStatus(probeCtx); err != nil {
		telemetry.Warnf("Venue status probe failed: %v", err)
	} else {
		telemetry.Infof("[Venue] session status: %s", status.Status)
	}
	probeCancel()

	resolver := venue_http.NewInstrumentResolver(venueClient)
	prefetchCtx, prefetchCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := resolver.Refresh(prefetchCtx); err != nil {
		telemetry.Warnf("Instrument prefetch failed (symbol checks fail open): %v", err)
	}
	prefetchCancel()

	// ── Audit store ────────────────────────────────────────────
	store, err := tracking.OpenStore(cfg.AuditDBPath)
	if err != nil {
		telemetry.Warnf("Audit store unavailable, continuing without: %v", err)
		store = nil
	}
	defer store.Close()

	// ── Venue transport + engine ───────────────────────────────
	venueWS := venue_ws.NewClient(cfg.VenueWSURL, bus, float64(limits.OrdersPerInterval))
	recorder := tracking.NewRecorder(store, venueWS)

	eng, err := engine.New(engine.Config{
		WindowStart:         windowStart,
		WindowEnd:           windowEnd,
		OrdersPerInterval:   limits.OrdersPerInterval,
		TickInterval:        limits.TickInterval(),
		WindowCheckInterval: limits.WindowCheckInterval(),
	}, bus, recorder, venueWS, recorder)
	if err != nil {
		telemetry.Errorf("Engine: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go venueWS.ConnectWithRetry(ctx)
	eng.Start(ctx)

	// ── Client order feed ──────────────────────────────────────
	feed := order_feed.NewServer(eng, resolver, bus)
	go func() {
		if err := feed.ListenAndServe(cfg.FeedHost, cfg.FeedPort); err != nil {
			telemetry.Errorf("order_feed: %v", err)
			os.Exit(1)
		}
	}()

	// ── Shutdown ───────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	telemetry.Infof("Shutting down gateway...")
	cancel()
	eng.Shutdown()

	telemetry.Infof("Gateway shutdown complete  received=%d  dispatched=%d  queued=%d  rejected=%d  acks=%d",
		telemetry.Metrics.OrdersReceived.Value(),
		telemetry.Metrics.OrdersDispatched.Value(),
		telemetry.Metrics.OrdersQueued.Value(),
		telemetry.Metrics.OrdersRejected.Value(),
		telemetry.Metrics.AcksMatched.Value(),
	)
}
