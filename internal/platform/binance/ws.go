package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

const (
	// writeWait is the time allowed to write a control frame to the peer.
	writeWait = 10 * time.Second

	// readWait is how long the connection may stay silent. Depth streams
	// push every 100ms so anything close to this means the session is dead.
	readWait = 60 * time.Second
)

// SnapshotHandler receives every decoded depth snapshot.
type SnapshotHandler func(domain.OrderBookSnapshot)

// StreamClient reads partial book depth streams over a combined websocket
// connection.
type StreamClient struct {
	baseURL string
	dialer  websocket.Dialer
	now     func() time.Time
}

// NewStreamClient creates a client for the given websocket root, e.g.
// "wss://stream.binance.com:9443".
func NewStreamClient(baseURL string) *StreamClient {
	if baseURL == "" {
		baseURL = DefaultWSURL
	}
	return &StreamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer:  websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		now:     time.Now,
	}
}

// StreamURL builds the combined stream URL for symbols at the given depth.
func (c *StreamClient) StreamURL(symbols []string, depth int) string {
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(s), depth))
	}
	return c.baseURL + "/stream?streams=" + strings.Join(names, "/")
}

// Stream connects and delivers snapshots to handle until ctx is cancelled or
// the connection fails. It returns ctx.Err() on cancellation and an error
// wrapping domain.ErrWSDisconnect otherwise. Undecodable frames are skipped.
func (c *StreamClient) Stream(ctx context.Context, symbols []string, depth int, handle SnapshotHandler) error {
	if len(symbols) == 0 {
		return fmt.Errorf("binance/ws: no symbols")
	}

	conn, _, err := c.dialer.DialContext(ctx, c.StreamURL(symbols, depth), nil)
	if err != nil {
		return fmt.Errorf("binance/ws: connect: %w: %w", domain.ErrWSDisconnect, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
		case <-stop:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(payload string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(writeWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("binance/ws: read: %w: %w", domain.ErrWSDisconnect, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var env StreamEnvelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Stream == "" {
			continue
		}
		snap, err := env.Data.ToSnapshot(SymbolFromStream(env.Stream), c.now())
		if err != nil {
			continue
		}
		handle(snap)
	}
}
