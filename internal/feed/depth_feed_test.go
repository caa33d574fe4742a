package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapwatch/internal/cache/memory"
	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/platform/binance"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// scriptedStream plays one script per session. A session past the end of
// the script blocks until its context ends.
type scriptedStream struct {
	mu       sync.Mutex
	sessions int
	scripts  [][]int64
	fail     error
}

func (s *scriptedStream) Stream(ctx context.Context, symbols []string, _ int, handle binance.SnapshotHandler) error {
	s.mu.Lock()
	n := s.sessions
	s.sessions++
	s.mu.Unlock()

	if n >= len(s.scripts) {
		<-ctx.Done()
		return ctx.Err()
	}
	for _, id := range s.scripts[n] {
		handle(domain.OrderBookSnapshot{
			Symbol:       symbols[0],
			LastUpdateID: id,
			Bids:         []domain.OrderBookLevel{{Price: decimal.NewFromInt(id), Quantity: decimal.NewFromInt(1)}},
		})
	}
	return s.fail
}

func (s *scriptedStream) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

func TestDepthFeed_StoresNewestAndReconnects(t *testing.T) {
	stream := &scriptedStream{
		scripts: [][]int64{{5, 3}, {9}},
		fail:    fmt.Errorf("read: %w", domain.ErrWSDisconnect),
	}
	store := memory.NewBookStore()
	f := NewDepthFeed(DepthFeedConfig{
		Symbols:        []string{"ETHUSDT"},
		ReconnectDelay: time.Millisecond,
	}, stream, store, discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return stream.count() >= 3 }, time.Second, time.Millisecond)

	snap, err := store.Get(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.EqualValues(t, 9, snap.LastUpdateID)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("feed did not stop")
	}
}

func TestDepthFeed_RecyclesSessionWithoutBackoff(t *testing.T) {
	stream := &scriptedStream{}
	f := NewDepthFeed(DepthFeedConfig{
		Symbols:        []string{"ETHUSDT"},
		SessionMaxAge:  10 * time.Millisecond,
		ReconnectDelay: time.Hour,
	}, stream, memory.NewBookStore(), discard)

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()

	require.Eventually(t, func() bool { return stream.count() >= 3 }, time.Second, time.Millisecond)

	f.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("feed did not stop on Close")
	}
}

func TestDepthFeed_NoSymbols(t *testing.T) {
	f := NewDepthFeed(DepthFeedConfig{}, &scriptedStream{}, memory.NewBookStore(), discard)
	assert.NoError(t, f.Run(context.Background()))
}
