// Package feed keeps the shared book store current from the exchange's
// partial depth stream.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/metrics"
	"github.com/alanyoungcy/swapwatch/internal/platform/binance"
)

// Streamer delivers depth snapshots until its context ends or the
// connection fails. *binance.StreamClient satisfies it.
type Streamer interface {
	Stream(ctx context.Context, symbols []string, depth int, handle binance.SnapshotHandler) error
}

// DepthFeedConfig tunes a DepthFeed.
type DepthFeedConfig struct {
	Symbols []string
	Depth   int
	// SessionMaxAge recycles the connection before the exchange drops it.
	SessionMaxAge     time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// DepthFeed writes every streamed snapshot into a BookStore and reconnects
// with capped exponential backoff. It runs independently of the evaluator;
// restarts never touch the evaluation loop.
type DepthFeed struct {
	cfg       DepthFeedConfig
	stream    Streamer
	store     domain.BookStore
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewDepthFeed creates a feed for the configured symbols.
func NewDepthFeed(cfg DepthFeedConfig, stream Streamer, store domain.BookStore, logger *slog.Logger) *DepthFeed {
	if cfg.Depth == 0 {
		cfg.Depth = 20
	}
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = 24 * time.Hour
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	return &DepthFeed{
		cfg:    cfg,
		stream: stream,
		store:  store,
		logger: logger.With(slog.String("component", "depth_feed")),
		done:   make(chan struct{}),
	}
}

// Run streams until ctx is cancelled or Close is called.
func (f *DepthFeed) Run(ctx context.Context) error {
	if len(f.cfg.Symbols) == 0 {
		f.logger.Info("no symbols to subscribe, exiting")
		return nil
	}
	f.logger.Info("depth feed started",
		slog.Any("symbols", f.cfg.Symbols),
		slog.Int("depth", f.cfg.Depth),
	)
	defer f.logger.Info("depth feed stopped")

	delay := f.cfg.ReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		received, err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if f.closed() {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			f.logger.Info("depth session recycled", slog.Duration("max_age", f.cfg.SessionMaxAge))
			delay = f.cfg.ReconnectDelay
			continue
		}
		if received > 0 {
			delay = f.cfg.ReconnectDelay
		}

		metrics.FeedReconnects.Inc()
		f.logger.Warn("depth stream disconnected, reconnecting",
			slog.Duration("delay", delay),
			slog.Int64("received", received),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, f.cfg.MaxReconnectDelay)
	}
}

// session runs one connection bounded by the session max age and returns
// how many snapshots it delivered.
func (f *DepthFeed) session(ctx context.Context) (int64, error) {
	sctx, cancel := context.WithTimeout(ctx, f.cfg.SessionMaxAge)
	defer cancel()

	go func() {
		select {
		case <-f.done:
			cancel()
		case <-sctx.Done():
		}
	}()

	var received atomic.Int64
	err := f.stream.Stream(sctx, f.cfg.Symbols, f.cfg.Depth, func(snap domain.OrderBookSnapshot) {
		received.Add(1)
		f.put(sctx, snap)
	})
	return received.Load(), err
}

func (f *DepthFeed) put(ctx context.Context, snap domain.OrderBookSnapshot) {
	err := f.store.Put(ctx, snap)
	switch {
	case err == nil:
		metrics.BookUpdates.WithLabelValues(snap.Symbol, "stored").Inc()
	case errors.Is(err, domain.ErrStaleUpdate):
		metrics.BookUpdates.WithLabelValues(snap.Symbol, "stale").Inc()
	default:
		metrics.BookUpdates.WithLabelValues(snap.Symbol, "error").Inc()
		f.logger.Warn("book store write failed",
			slog.String("symbol", snap.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

func (f *DepthFeed) closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Close stops the feed.
func (f *DepthFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
