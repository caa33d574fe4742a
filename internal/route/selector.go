// Package route reduces competing quotes for the same input amount to the
// single route worth taking.
package route

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// Selector picks the best quote per input amount. Quotes from the high-fee
// venue must beat the runner-up by more than their own estimated cost.
type Selector struct {
	highFeeVenue string
	settlement   map[string]bool
	logger       *slog.Logger
}

// NewSelector creates a Selector. settlementAssets are asset names (e.g.
// "USDC") whose amounts are directly comparable with fee amounts.
func NewSelector(highFeeVenue string, settlementAssets []string, logger *slog.Logger) *Selector {
	set := make(map[string]bool, len(settlementAssets))
	for _, a := range settlementAssets {
		set[strings.ToUpper(strings.TrimSpace(a))] = true
	}
	return &Selector{
		highFeeVenue: highFeeVenue,
		settlement:   set,
		logger:       logger.With(slog.String("component", "route_selector")),
	}
}

// IsSettlement reports whether the named asset is a settlement asset.
func (s *Selector) IsSettlement(name string) bool {
	return s.settlement[strings.ToUpper(name)]
}

// SelectBest returns the quote with the largest AmountOut, subject to the
// high-fee tie-break. Equal amounts are ordered by venue id so the choice is
// deterministic. It returns false for an empty input.
func (s *Selector) SelectBest(quotes []domain.Quote) (domain.Quote, bool) {
	if len(quotes) == 0 {
		return domain.Quote{}, false
	}

	ranked := slices.Clone(quotes)
	slices.SortStableFunc(ranked, func(a, b domain.Quote) int {
		if c := b.AmountOut.Cmp(a.AmountOut); c != 0 {
			return c
		}
		return cmp.Compare(a.Venue.ID, b.Venue.ID)
	})

	best := ranked[0]
	if best.Venue.ID != s.highFeeVenue || len(ranked) < 2 {
		return best, true
	}
	second := ranked[1]

	fee, ok := best.Cost.KnownFee()
	if !ok {
		return best, true
	}

	ratio, ok := s.settlementRatio(best)
	if !ok {
		return best, true
	}

	gap := best.AmountOut.Sub(second.AmountOut).Mul(ratio)
	if gap.LessThan(fee) {
		s.logger.Debug("high-fee route loses to runner-up",
			slog.String("best_venue", best.Venue.ID),
			slog.String("second_venue", second.Venue.ID),
			slog.String("gap", gap.String()),
			slog.String("fee", fee.String()),
		)
		return second, true
	}
	return best, true
}

// settlementRatio converts output-asset units into settlement units. The
// comparison is skipped when neither side is a settlement asset.
func (s *Selector) settlementRatio(q domain.Quote) (decimal.Decimal, bool) {
	switch {
	case s.IsSettlement(q.AssetIn.Name):
		if !q.AmountOut.IsPositive() {
			return decimal.Zero, false
		}
		return q.AmountIn.Div(q.AmountOut), true
	case s.IsSettlement(q.AssetOut.Name):
		return decimal.NewFromInt(1), true
	default:
		return decimal.Zero, false
	}
}

// SelectAll reduces every amount in rs. Amounts with no quotes are absent
// from the result.
func (s *Selector) SelectAll(rs domain.RouteSet) map[string]domain.Quote {
	out := make(map[string]domain.Quote, len(rs))
	for k, quotes := range rs {
		if q, ok := s.SelectBest(quotes); ok {
			out[k] = q
		}
	}
	return out
}

// GroupByAmount builds a RouteSet from a flat list of quotes.
func GroupByAmount(quotes []domain.Quote) domain.RouteSet {
	rs := make(domain.RouteSet)
	for _, q := range quotes {
		rs.Add(q)
	}
	return rs
}
