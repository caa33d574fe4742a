package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// ArbService defines the methods that the arbitrage handler requires.
type ArbService interface {
	ListRecent(ctx context.Context, limit int) ([]domain.ArbRecord, error)
}

// ArbHandler serves arbitrage history.
type ArbHandler struct {
	arb    ArbService
	logger *slog.Logger
}

// NewArbHandler creates an ArbHandler with the given service and logger.
func NewArbHandler(arb ArbService, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{arb: arb, logger: logHandler(logger, "arbitrage")}
}

type listArbResponse struct {
	Opportunities []domain.ArbRecord `json:"opportunities"`
}

// ListRecent returns the most recent detected round trips.
// GET /api/arbitrage/recent?limit=20
func (h *ArbHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 200)

	recs, err := h.arb.ListRecent(r.Context(), limit)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotImplemented, "arbitrage history is not persisted")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list arbitrage failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list arbitrage opportunities")
		return
	}

	if recs == nil {
		recs = []domain.ArbRecord{}
	}
	writeJSON(w, http.StatusOK, listArbResponse{Opportunities: recs})
}
