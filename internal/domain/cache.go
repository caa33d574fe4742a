package domain

import (
	"context"
	"time"
)

// BookStore holds the latest order book snapshot per symbol. Writers that
// carry a LastUpdateID not newer than the stored one are rejected with
// ErrStaleUpdate, so concurrent writers converge on the newest snapshot.
type BookStore interface {
	Put(ctx context.Context, snap OrderBookSnapshot) error
	Get(ctx context.Context, symbol string) (OrderBookSnapshot, error)
}

// Heartbeat records and reads liveness timestamps for long-running loops.
type Heartbeat interface {
	Beat(ctx context.Context, key string, at time.Time) error
	Last(ctx context.Context, key string) (time.Time, error)
}

// SignalBus publishes events to other processes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager hands out short-lived exclusive locks across processes.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
