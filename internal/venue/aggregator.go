package venue

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/platform/oneinch"
)

// QuoteClient is the aggregator API surface the adapter needs.
type QuoteClient interface {
	Quote(ctx context.Context, networkID, from, to string, amount *big.Int) (oneinch.QuoteResponse, error)
}

// FeeEstimator prices the gas an aggregator route will burn.
type FeeEstimator interface {
	Estimate(ctx context.Context, gasUnits uint64) domain.Cost
}

// AggregatorAdapter quotes swaps on one network through the aggregator API.
type AggregatorAdapter struct {
	venue   domain.Venue
	client  QuoteClient
	limiter *rate.Limiter
	fees    FeeEstimator
	logger  *slog.Logger
}

var _ Adapter = (*AggregatorAdapter)(nil)

// NewAggregatorAdapter creates an adapter for one network. limiter may be
// shared across networks and may be nil. fees is only set for the high-fee
// network.
func NewAggregatorAdapter(v domain.Venue, client QuoteClient, limiter *rate.Limiter, fees FeeEstimator, logger *slog.Logger) *AggregatorAdapter {
	return &AggregatorAdapter{
		venue:   v,
		client:  client,
		limiter: limiter,
		fees:    fees,
		logger:  logger.With(slog.String("component", "aggregator_adapter"), slog.String("venue", v.Name)),
	}
}

func (a *AggregatorAdapter) Venue() domain.Venue { return a.venue }

// Supports reports whether both assets have addresses on this network.
func (a *AggregatorAdapter) Supports(in, out domain.Asset) bool {
	return in.Address != "" && out.Address != "" && !strings.EqualFold(in.Address, out.Address)
}

// Quote converts the request into base units, asks the aggregator and
// converts the answer back. On the high-fee network the returned gas is
// priced by the fee estimator.
func (a *AggregatorAdapter) Quote(ctx context.Context, req Request) (domain.Quote, error) {
	if !req.AmountIn.IsPositive() {
		return domain.Quote{}, domain.NewQuoteError(a.venue.ID, domain.ErrConfiguration, "amount must be positive", nil)
	}
	raw := req.AssetIn.ToBaseUnits(req.AmountIn)
	if raw.Sign() <= 0 {
		return domain.Quote{}, domain.NewQuoteError(a.venue.ID, domain.ErrConfiguration, "amount below asset precision", nil)
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return domain.Quote{}, domain.NewQuoteError(a.venue.ID, domain.ErrConnectivity, "rate limiter", err)
		}
	}

	resp, err := a.client.Quote(ctx, a.venue.ID, req.AssetIn.Address, req.AssetOut.Address, raw)
	if err != nil {
		a.logger.Warn("quote failed",
			slog.String("from", req.AssetIn.Name),
			slog.String("to", req.AssetOut.Name),
			slog.String("error", err.Error()),
		)
		return domain.Quote{}, quoteErr(a.venue, err)
	}

	out, ok := resp.ToAmount()
	if !ok {
		return domain.Quote{}, domain.NewQuoteError(a.venue.ID, domain.ErrDecode, "toTokenAmount "+resp.ToTokenAmount, nil)
	}
	gas := resp.EstimatedGas

	q := domain.Quote{
		Venue:     a.venue,
		AssetIn:   req.AssetIn,
		AmountIn:  req.AmountIn,
		AssetOut:  req.AssetOut,
		AmountOut: req.AssetOut.FromBaseUnits(out),
		Cost:      domain.Cost{GasUnits: &gas},
	}
	if a.fees != nil {
		q.Cost = a.fees.Estimate(ctx, gas)
	}
	return q, nil
}
