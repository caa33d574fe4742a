package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type memStore struct {
	recs []domain.ArbRecord
	err  error
}

func (m *memStore) Insert(_ context.Context, rec domain.ArbRecord) error {
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) ListRecent(_ context.Context, limit int) ([]domain.ArbRecord, error) {
	if limit > len(m.recs) {
		limit = len(m.recs)
	}
	return m.recs[:limit], nil
}

func (m *memStore) ListBefore(context.Context, time.Time) ([]domain.ArbRecord, error) {
	return nil, nil
}

func (m *memStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type memBus struct {
	channel string
	payload []byte
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.channel, b.payload = channel, payload
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

type memAudit struct{ details []map[string]any }

func (a *memAudit) Log(_ context.Context, _ string, d map[string]any) error {
	a.details = append(a.details, d)
	return nil
}

func (a *memAudit) List(context.Context, int) ([]domain.AuditEntry, error) { return nil, nil }

func result() domain.ArbitrageResult {
	polygon := domain.Venue{ID: "137", Name: "Polygon"}
	cex := domain.Venue{ID: "0000", Name: "BinanceCEX", Kind: domain.CentralizedExchange}
	return domain.ArbitrageResult{
		ID:      "arb-1",
		Base:    "USDC",
		Counter: "LINK",
		LegOut: domain.Quote{
			Venue: polygon, AmountIn: decimal.NewFromInt(1000), AmountOut: decimal.RequireFromString("70.5"),
		},
		LegBack: domain.Quote{
			Venue: cex, AmountIn: decimal.RequireFromString("70.5"), AmountOut: decimal.NewFromInt(1012),
		},
		Profit:     decimal.NewFromInt(12),
		DetectedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestRecord_PersistsPublishesAudits(t *testing.T) {
	store, bus, audit := &memStore{}, &memBus{}, &memAudit{}
	svc := NewArbService(store, bus, audit, "arb", discard)

	require.NoError(t, svc.Record(context.Background(), result()))

	require.Len(t, store.recs, 1)
	assert.Equal(t, "137", store.recs[0].LegOutVenue)
	assert.Equal(t, "0000", store.recs[0].LegBackVenue)

	assert.Equal(t, "arb", bus.channel)
	var evt struct {
		Event string           `json:"event"`
		Arb   domain.ArbRecord `json:"arb"`
	}
	require.NoError(t, json.Unmarshal(bus.payload, &evt))
	assert.Equal(t, "arb_detected", evt.Event)
	assert.Equal(t, "12", evt.Arb.Profit.String())

	require.Len(t, audit.details, 1)
	assert.Equal(t, "USDC/LINK", audit.details[0]["pair"])
}

func TestRecord_StoreFailure(t *testing.T) {
	bus := &memBus{}
	svc := NewArbService(&memStore{err: errors.New("db down")}, bus, nil, "arb", discard)
	assert.ErrorContains(t, svc.Record(context.Background(), result()), "db down")
	assert.Nil(t, bus.payload)
}

func TestRecord_NoDependencies(t *testing.T) {
	svc := NewArbService(nil, nil, nil, "arb", discard)
	assert.NoError(t, svc.Record(context.Background(), result()))

	_, err := svc.ListRecent(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
