package venue_http

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/calebmorse/ordergate/internal/telemetry"
)

const instrumentCacheTTL = 10 * time.Minute

// InstrumentResolver caches the venue's instrument list so the order feed can
// cheaply check whether a submitted symbol is tradable. Concurrent refreshes
// collapse into one fetch via singleflight.
type InstrumentResolver struct {
	client    *Client
	mu        sync.RWMutex
	symbols   map[string]Instrument
	lastFetch time.Time
	sfGroup   singleflight.Group
}

func NewInstrumentResolver(client *Client) *InstrumentResolver {
	return &InstrumentResolver{
		client:  client,
		symbols: make(map[string]Instrument),
	}
}

// Refresh fetches the instrument list and replaces the cache.
func (r *InstrumentResolver) Refresh(ctx context.Context) error {
	instruments, err := r.client.GetInstruments(ctx)
	if err != nil {
		return err
	}

	bySymbol := make(map[string]Instrument, len(instruments))
	for _, inst := range instruments {
		bySymbol[inst.Symbol] = inst
	}

	r.mu.Lock()
	r.symbols = bySymbol
	r.lastFetch = time.Now()
	r.mu.Unlock()

	telemetry.Infof("venue_http: cached %d instruments", len(instruments))
	return nil
}

func (r *InstrumentResolver) ensureFresh(ctx context.Context) {
	r.mu.RLock()
	last := r.lastFetch
	r.mu.RUnlock()

	if time.Since(last) > instrumentCacheTTL {
		r.sfGroup.Do("instruments", func() (any, error) {
			return nil, r.Refresh(ctx)
		})
	}
}

// Known reports whether the symbol is currently listed and trading.
// On an empty cache (venue unreachable at boot) it fails open: admission by
// symbol is a courtesy filter, not the gateway's job.
func (r *InstrumentResolver) Known(ctx context.Context, symbol string) bool {
	r.ensureFresh(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.symbols) == 0 {
		return true
	}
	inst, ok := r.symbols[symbol]
	return ok && inst.State == "trading"
}
