package venue_http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/calebmorse/ordergate/internal/telemetry"
)

// Client talks to the venue's REST API for reference data: session status and
// the tradable instrument list. The order path never goes through here.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	readLimiter *rate.Limiter
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		readLimiter: rate.NewLimiter(rate.Limit(20), 20),
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	if err := c.readLimiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	telemetry.Debugf("venue_http: GET %s -> %d (%s)", path, resp.StatusCode, time.Since(start))

	return respBody, resp.StatusCode, nil
}

// SessionStatusResponse is the venue's session/heartbeat snapshot.
type SessionStatusResponse struct {
	Status     string `json:"status"` // "open", "closed", "halted"
	ServerTime string `json:"server_time"`
}

// GetSessionStatus probes the venue session endpoint. Used at boot as a
// connectivity check before the gateway starts accepting orders.
func (c *Client) GetSessionStatus(ctx context.Context) (*SessionStatusResponse, error) {
	body, status, err := c.get(ctx, "/v1/session/status")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("session status: status=%d body=%s", status, string(body))
	}

	var resp SessionStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal session status: %w", err)
	}
	return &resp, nil
}

// Instrument is one tradable symbol as listed by the venue.
type Instrument struct {
	Symbol   string `json:"symbol"`
	State    string `json:"state"` // "trading", "suspended"
	TickSize string `json:"tick_size"`
	LotSize  int64  `json:"lot_size"`
}

type instrumentsResponse struct {
	Instruments []Instrument `json:"instruments"`
}

// GetInstruments fetches the full instrument list.
func (c *Client) GetInstruments(ctx context.Context) ([]Instrument, error) {
	body, status, err := c.get(ctx, "/v1/instruments")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("instruments: status=%d", status)
	}

	var resp instrumentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal instruments: %w", err)
	}
	return resp.Instruments, nil
}
