// Package venue adapts each liquidity source to one quoting contract so the
// scheduler and evaluator never care where a price came from.
package venue

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// Request asks a venue to price AmountIn of AssetIn into AssetOut.
type Request struct {
	AssetIn  domain.Asset
	AssetOut domain.Asset
	AmountIn decimal.Decimal
}

// Adapter prices swaps on one venue. Quote never panics across the boundary
// and every error it returns is a *domain.QuoteError.
type Adapter interface {
	Venue() domain.Venue
	Supports(in, out domain.Asset) bool
	Quote(ctx context.Context, req Request) (domain.Quote, error)
}

// kindOf picks the QuoteError kind for an error returned by a platform
// client.
func kindOf(err error) error {
	switch {
	case errors.Is(err, domain.ErrConnectivity),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return domain.ErrConnectivity
	case errors.Is(err, domain.ErrDecode):
		return domain.ErrDecode
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrNotFound
	default:
		return domain.ErrResponse
	}
}

// quoteErr wraps err for venue v unless it already is a QuoteError.
func quoteErr(v domain.Venue, err error) error {
	var qe *domain.QuoteError
	if errors.As(err, &qe) {
		return err
	}
	return domain.NewQuoteError(v.ID, kindOf(err), "", err)
}
