package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/liquidity"
)

// DepthSource fetches a depth snapshot on demand.
type DepthSource interface {
	Depth(ctx context.Context, symbol string, limit int) (domain.OrderBookSnapshot, error)
}

// OrderBookConfig tunes an OrderBookAdapter.
type OrderBookConfig struct {
	// QuoteAssets are exchange tickers that act as the quote side of a
	// symbol, e.g. USDT in ETHUSDT.
	QuoteAssets []string
	TakerFee    decimal.Decimal
	BookLimit   int
	// MaxBookAge is how old a stored snapshot may be before the adapter
	// falls back to a REST fetch. Zero disables the check.
	MaxBookAge   time.Duration
	FetchTimeout time.Duration
}

// OrderBookAdapter quotes swaps by walking a centralized exchange book. On a
// CEX listing, Asset.Address holds the exchange ticker.
type OrderBookAdapter struct {
	venue  domain.Venue
	store  domain.BookStore
	rest   DepthSource
	cfg    OrderBookConfig
	quotes map[string]bool
	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

var _ Adapter = (*OrderBookAdapter)(nil)

// NewOrderBookAdapter creates an adapter reading from store, falling back
// to rest. Either may be nil but not both.
func NewOrderBookAdapter(v domain.Venue, store domain.BookStore, rest DepthSource, cfg OrderBookConfig, logger *slog.Logger) *OrderBookAdapter {
	quotes := make(map[string]bool, len(cfg.QuoteAssets))
	for _, q := range cfg.QuoteAssets {
		quotes[strings.ToUpper(q)] = true
	}
	if cfg.BookLimit <= 0 {
		cfg.BookLimit = 100
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 3 * time.Second
	}
	return &OrderBookAdapter{
		venue:  v,
		store:  store,
		rest:   rest,
		cfg:    cfg,
		quotes: quotes,
		now:    time.Now,
		logger: logger.With(slog.String("component", "orderbook_adapter"), slog.String("venue", v.Name)),
	}
}

func (a *OrderBookAdapter) Venue() domain.Venue { return a.venue }

// Supports reports whether exactly one side is a quote asset.
func (a *OrderBookAdapter) Supports(in, out domain.Asset) bool {
	_, _, ok := a.route(in, out)
	return ok
}

// route returns the exchange symbol and walk direction for in -> out.
func (a *OrderBookAdapter) route(in, out domain.Asset) (string, liquidity.Direction, bool) {
	inQ := a.quotes[strings.ToUpper(in.Address)]
	outQ := a.quotes[strings.ToUpper(out.Address)]
	switch {
	case inQ && !outQ:
		return strings.ToUpper(out.Address + in.Address), liquidity.SellQuote, true
	case outQ && !inQ:
		return strings.ToUpper(in.Address + out.Address), liquidity.SellBase, true
	default:
		return "", 0, false
	}
}

// Quote prices a single amount.
func (a *OrderBookAdapter) Quote(ctx context.Context, req Request) (domain.Quote, error) {
	quotes, err := a.QuoteAmounts(ctx, req.AssetIn, req.AssetOut, []decimal.Decimal{req.AmountIn})
	if err != nil {
		return domain.Quote{}, err
	}
	return quotes[0], nil
}

// QuoteAmounts walks one snapshot for every amount so all quotes of a
// fan-out see the same book.
func (a *OrderBookAdapter) QuoteAmounts(ctx context.Context, in, out domain.Asset, amounts []decimal.Decimal) ([]domain.Quote, error) {
	symbol, dir, ok := a.route(in, out)
	if !ok {
		return nil, domain.NewQuoteError(a.venue.ID, domain.ErrConfiguration,
			fmt.Sprintf("no symbol for %s -> %s", in.Address, out.Address), nil)
	}

	snap, err := a.Snapshot(ctx, symbol)
	if err != nil {
		return nil, quoteErr(a.venue, err)
	}

	levels := snap.Asks
	if dir == liquidity.SellBase {
		levels = snap.Bids
	}
	if len(levels) == 0 {
		return nil, domain.NewQuoteError(a.venue.ID, domain.ErrResponse, "empty book side for "+symbol, nil)
	}

	quotes := make([]domain.Quote, 0, len(amounts))
	for _, amt := range amounts {
		res := liquidity.Walk(levels, amt, a.cfg.TakerFee, dir)
		fee := res.Fee
		quotes = append(quotes, domain.Quote{
			Venue:     a.venue,
			Cost:      domain.Cost{ExchangeFee: &fee},
			AssetIn:   in,
			AmountIn:  amt,
			AssetOut:  out,
			AmountOut: res.AmountOut,
			Remainder: res.Remainder,
		})
		if !res.Filled() {
			a.logger.Debug("book exhausted",
				slog.String("symbol", symbol),
				slog.String("amount", amt.String()),
				slog.String("remainder", res.Remainder.String()),
			)
		}
	}
	return quotes, nil
}

// Snapshot returns a fresh snapshot for symbol: the stored one when it is
// young enough, otherwise a REST fetch shared by concurrent callers.
func (a *OrderBookAdapter) Snapshot(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	if a.store != nil {
		snap, err := a.store.Get(ctx, symbol)
		switch {
		case err == nil && (a.cfg.MaxBookAge == 0 || snap.Age(a.now()) <= a.cfg.MaxBookAge):
			return snap, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			a.logger.Warn("book store read failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		}
	}
	if a.rest == nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("%w: no fresh book for %s", domain.ErrNotFound, symbol)
	}

	ch := a.group.DoChan(symbol, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.FetchTimeout)
		defer cancel()
		snap, err := a.rest.Depth(fctx, symbol, a.cfg.BookLimit)
		if err != nil {
			return nil, err
		}
		if a.store != nil {
			if err := a.store.Put(fctx, snap); err != nil && !errors.Is(err, domain.ErrStaleUpdate) {
				a.logger.Warn("book store write failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
			}
		}
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return domain.OrderBookSnapshot{}, fmt.Errorf("%w: %w", domain.ErrConnectivity, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.OrderBookSnapshot{}, res.Err
		}
		return res.Val.(domain.OrderBookSnapshot), nil
	}
}
