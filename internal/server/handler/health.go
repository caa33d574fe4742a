package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks       map[string]Pinger
	heartbeat    domain.Heartbeat
	heartbeatKey string
	timeout      time.Duration
	logger       *slog.Logger
}

// NewHealthHandler creates a HealthHandler that pings each named dependency.
func NewHealthHandler(checks map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 2 * time.Second,
		logger:  logHandler(logger, "health"),
	}
}

// WithHeartbeat adds the evaluator's last loop time to the response.
func (h *HealthHandler) WithHeartbeat(hb domain.Heartbeat, key string) *HealthHandler {
	h.heartbeat = hb
	h.heartbeatKey = key
	return h
}

// HealthCheck reports "ok" when every dependency answers, "degraded" with a
// 503 otherwise.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	slices.Sort(names)

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "dependency unhealthy",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	resp := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}
	if h.heartbeat != nil {
		if last, err := h.heartbeat.Last(ctx, h.heartbeatKey); err == nil {
			resp["last_loop"] = last.UTC().Format(time.RFC3339)
		}
	}
	writeJSON(w, code, resp)
}
