// Package fees prices the gas and bridge cost of routing through the
// high-fee network in settlement-asset terms.
package fees

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapwatch/internal/cache/memory"
	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/metrics"
)

// GasPriceOracle suggests a gas price in wei. *ethclient.Client satisfies it.
type GasPriceOracle interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// SnapshotSource returns a depth snapshot for a symbol.
type SnapshotSource interface {
	Snapshot(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error)
}

// Config tunes an Estimator.
type Config struct {
	GasPriceTTL       time.Duration
	ReferencePriceTTL time.Duration
	// ReferenceSymbol is the book whose best bid prices the native asset in
	// settlement units, e.g. ETHUSDT.
	ReferenceSymbol string
	// BridgeFeeNative is a flat surcharge in native units added to every
	// estimate.
	BridgeFeeNative decimal.Decimal
	LookupTimeout   time.Duration
}

// Estimator turns a gas estimate into a settlement-asset cost. Both inputs
// are cached so a busy evaluation loop costs at most one oracle call per
// TTL.
type Estimator struct {
	cfg      Config
	oracle   GasPriceOracle
	books    SnapshotSource
	gasPrice *memory.TTLValue[*big.Int]
	refPrice *memory.TTLValue[decimal.Decimal]
	logger   *slog.Logger
}

// NewEstimator creates an Estimator. now may be nil to use the wall clock.
func NewEstimator(cfg Config, oracle GasPriceOracle, books SnapshotSource, now func() time.Time, logger *slog.Logger) *Estimator {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 3 * time.Second
	}
	return &Estimator{
		cfg:      cfg,
		oracle:   oracle,
		books:    books,
		gasPrice: memory.NewTTLValue[*big.Int](cfg.GasPriceTTL, now),
		refPrice: memory.NewTTLValue[decimal.Decimal](cfg.ReferencePriceTTL, now),
		logger:   logger.With(slog.String("component", "fee_estimator")),
	}
}

// Estimate never fails: the returned Cost carries whatever could be
// determined. FeeAmount is set only when both gas price and reference price
// are known.
func (e *Estimator) Estimate(ctx context.Context, gasUnits uint64) domain.Cost {
	cost := domain.Cost{GasUnits: &gasUnits}

	gp, err := e.lookupGasPrice(ctx)
	if err != nil {
		e.logger.Warn("gas price unavailable", slog.String("error", err.Error()))
		metrics.FeeEstimates.WithLabelValues("none").Inc()
		return cost
	}
	cost.GasPriceWei = new(big.Int).Set(gp)

	ref, err := e.lookupReferencePrice(ctx)
	if err != nil {
		e.logger.Warn("reference price unavailable",
			slog.String("symbol", e.cfg.ReferenceSymbol),
			slog.String("error", err.Error()),
		)
		metrics.FeeEstimates.WithLabelValues("partial").Inc()
		return cost
	}

	fee := FeeAmount(gasUnits, gp, ref, e.cfg.BridgeFeeNative)
	cost.FeeAmount = &fee
	metrics.FeeEstimates.WithLabelValues("full").Inc()
	return cost
}

// FeeAmount is gasUnits*gasPrice (wei) converted to native units, plus the
// bridge surcharge, all priced at refPrice.
func FeeAmount(gasUnits uint64, gasPriceWei *big.Int, refPrice, bridgeNative decimal.Decimal) decimal.Decimal {
	wei := new(big.Int).Mul(new(big.Int).SetUint64(gasUnits), gasPriceWei)
	native := decimal.NewFromBigInt(wei, -18)
	return native.Add(bridgeNative).Mul(refPrice)
}

func (e *Estimator) lookupGasPrice(ctx context.Context) (*big.Int, error) {
	if e.oracle == nil {
		return nil, fmt.Errorf("fees: %w: no gas price oracle", domain.ErrConfiguration)
	}
	return e.gasPrice.Get(ctx, func(ctx context.Context) (*big.Int, error) {
		lctx, cancel := context.WithTimeout(ctx, e.cfg.LookupTimeout)
		defer cancel()
		gp, err := e.oracle.SuggestGasPrice(lctx)
		if err != nil {
			return nil, fmt.Errorf("fees: suggest gas price: %w", err)
		}
		if gp == nil || gp.Sign() <= 0 {
			return nil, fmt.Errorf("fees: %w: non-positive gas price", domain.ErrResponse)
		}
		return gp, nil
	})
}

func (e *Estimator) lookupReferencePrice(ctx context.Context) (decimal.Decimal, error) {
	if e.books == nil {
		return decimal.Zero, fmt.Errorf("fees: %w: no reference price source", domain.ErrConfiguration)
	}
	return e.refPrice.Get(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		lctx, cancel := context.WithTimeout(ctx, e.cfg.LookupTimeout)
		defer cancel()
		snap, err := e.books.Snapshot(lctx, e.cfg.ReferenceSymbol)
		if err != nil {
			return decimal.Zero, fmt.Errorf("fees: reference book %s: %w", e.cfg.ReferenceSymbol, err)
		}
		bid, ok := snap.BestBid()
		if !ok || !bid.IsPositive() {
			return decimal.Zero, fmt.Errorf("fees: reference book %s: %w: no bids", e.cfg.ReferenceSymbol, domain.ErrResponse)
		}
		return bid, nil
	})
}
