package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// Heartbeat implements domain.Heartbeat as plain string keys holding a Unix
// nanosecond timestamp.
type Heartbeat struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewHeartbeat creates a Heartbeat. Keys expire after ttl so a dead process
// eventually reads as missing; zero disables expiry.
func NewHeartbeat(c *Client, ttl time.Duration) *Heartbeat {
	return &Heartbeat{rdb: c.Underlying(), ttl: ttl}
}

func heartbeatKey(key string) string { return "heartbeat:" + key }

// Beat records at under key.
func (h *Heartbeat) Beat(ctx context.Context, key string, at time.Time) error {
	if err := h.rdb.Set(ctx, heartbeatKey(key), strconv.FormatInt(at.UnixNano(), 10), h.ttl).Err(); err != nil {
		return fmt.Errorf("redis: heartbeat %s: %w", key, err)
	}
	return nil
}

// Last returns the most recent beat, or domain.ErrNotFound.
func (h *Heartbeat) Last(ctx context.Context, key string) (time.Time, error) {
	raw, err := h.rdb.Get(ctx, heartbeatKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("redis: heartbeat %s: %w", key, err)
	}
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("redis: heartbeat %s: %w: %w", key, domain.ErrDecode, err)
	}
	return time.Unix(0, ns), nil
}

// Compile-time interface check.
var _ domain.Heartbeat = (*Heartbeat)(nil)
