// Package service records detected arbitrage for other processes and the
// HTTP API.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// ArbService persists and publishes detected arbitrage. Every dependency is
// optional so screening works without a database or Redis.
type ArbService struct {
	arb     domain.ArbStore
	bus     domain.SignalBus
	audit   domain.AuditStore
	channel string
	logger  *slog.Logger
}

// NewArbService creates an ArbService that publishes on channel.
func NewArbService(
	arb domain.ArbStore,
	bus domain.SignalBus,
	audit domain.AuditStore,
	channel string,
	logger *slog.Logger,
) *ArbService {
	return &ArbService{
		arb:     arb,
		bus:     bus,
		audit:   audit,
		channel: channel,
		logger:  logger.With(slog.String("component", "arb_service")),
	}
}

// arbEvent is the JSON shape published on the signal bus.
type arbEvent struct {
	Event string           `json:"event"`
	Arb   domain.ArbRecord `json:"arb"`
}

// Record persists res and publishes it. Only the store insert can fail the
// call; bus and audit failures are logged.
func (s *ArbService) Record(ctx context.Context, res domain.ArbitrageResult) error {
	rec := res.Record()

	if s.arb != nil {
		if err := s.arb.Insert(ctx, rec); err != nil {
			return fmt.Errorf("arb_service: insert arbitrage: %w", err)
		}
	}

	if s.bus != nil {
		evt, err := json.Marshal(arbEvent{Event: "arb_detected", Arb: rec})
		if err == nil {
			err = s.bus.Publish(ctx, s.channel, evt)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "publish event failed",
				slog.String("arb_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.audit != nil {
		if auditErr := s.audit.Log(ctx, "arb_recorded", map[string]any{
			"arb_id":   rec.ID,
			"pair":     rec.Base + "/" + rec.Counter,
			"amount":   rec.AmountIn.String(),
			"profit":   rec.Profit.String(),
			"leg_out":  rec.LegOutVenue,
			"leg_back": rec.LegBackVenue,
		}); auditErr != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("arb_id", rec.ID),
				slog.String("error", auditErr.Error()),
			)
		}
	}

	s.logger.DebugContext(ctx, "arbitrage recorded",
		slog.String("arb_id", rec.ID),
		slog.String("profit", rec.Profit.String()),
	)
	return nil
}

// ListRecent returns the most recent arbitrage records up to limit.
func (s *ArbService) ListRecent(ctx context.Context, limit int) ([]domain.ArbRecord, error) {
	if s.arb == nil {
		return nil, fmt.Errorf("arb_service: %w: no arbitrage store", domain.ErrNotFound)
	}
	recs, err := s.arb.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("arb_service: list recent: %w", err)
	}
	return recs, nil
}
