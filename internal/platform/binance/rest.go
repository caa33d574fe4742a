// Package binance holds the spot market REST and websocket clients used to
// read order book depth.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

const (
	DefaultRESTURL = "https://api.binance.com"
	DefaultWSURL   = "wss://stream.binance.com:9443"
)

// RESTClient fetches depth snapshots.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewRESTClient creates a REST client rooted at baseURL.
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if baseURL == "" {
		baseURL = DefaultRESTURL
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Depth returns the top limit levels of symbol's book. Errors wrap
// domain.ErrConnectivity, domain.ErrResponse or domain.ErrDecode.
func (c *RESTClient) Depth(ctx context.Context, symbol string, limit int) (domain.OrderBookSnapshot, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/depth?"+params.Encode(), nil)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: depth %s: %w: %w", symbol, domain.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: depth %s: %w: %w", symbol, domain.ErrConnectivity, err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: depth %s: %w: HTTP %d: %s", symbol, domain.ErrResponse, resp.StatusCode, truncate(body, 256))
	}

	var msg DepthMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: depth %s: %w: %v", symbol, domain.ErrDecode, err)
	}
	snap, err := msg.ToSnapshot(symbol, c.now())
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("binance: depth %s: %w: %v", symbol, domain.ErrDecode, err)
	}
	return snap, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
