package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// Heartbeat keeps liveness timestamps in process. It serves the watchdog
// when the evaluator and watchdog share a process.
type Heartbeat struct {
	mu    sync.RWMutex
	beats map[string]time.Time
}

var _ domain.Heartbeat = (*Heartbeat)(nil)

// NewHeartbeat creates an empty Heartbeat.
func NewHeartbeat() *Heartbeat {
	return &Heartbeat{beats: make(map[string]time.Time)}
}

func (h *Heartbeat) Beat(_ context.Context, key string, at time.Time) error {
	h.mu.Lock()
	h.beats[key] = at
	h.mu.Unlock()
	return nil
}

func (h *Heartbeat) Last(_ context.Context, key string) (time.Time, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	at, ok := h.beats[key]
	if !ok {
		return time.Time{}, fmt.Errorf("memory: heartbeat %s: %w", key, domain.ErrNotFound)
	}
	return at, nil
}
