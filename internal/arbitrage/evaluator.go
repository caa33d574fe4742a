// Package arbitrage screens configured pairs for round trips base -> counter
// -> base whose profit clears the pair's minimum.
package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/metrics"
	"github.com/alanyoungcy/swapwatch/internal/route"
	"github.com/alanyoungcy/swapwatch/internal/scheduler"
	"github.com/alanyoungcy/swapwatch/internal/venue"
)

// Dispatcher fans quote requests out to venues. *scheduler.Dispatcher
// satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, reqs []scheduler.Request) []scheduler.Result
}

// BatchQuoter prices several amounts from one view of a venue's liquidity.
// Adapters implementing it get one call per leg instead of one per amount.
type BatchQuoter interface {
	QuoteAmounts(ctx context.Context, in, out domain.Asset, amounts []decimal.Decimal) ([]domain.Quote, error)
}

// Sink receives every round trip that cleared its pair's minimum.
type Sink interface {
	Alert(ctx context.Context, res domain.ArbitrageResult)
}

// EvaluatorConfig wires an Evaluator.
type EvaluatorConfig struct {
	Adapters   []venue.Adapter
	Dispatcher Dispatcher
	Selector   *route.Selector
	Sink       Sink
	// BatchTimeout bounds a single BatchQuoter call.
	BatchTimeout time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// Evaluator runs the two-leg screen for a pair. It holds no per-pair state
// and is safe for concurrent use across pairs.
type Evaluator struct {
	adapters     map[string]venue.Adapter
	dispatcher   Dispatcher
	selector     *route.Selector
	sink         Sink
	batchTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewEvaluator creates an Evaluator. Adapters are keyed by venue id; a later
// adapter for the same venue replaces an earlier one.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	adapters := make(map[string]venue.Adapter, len(cfg.Adapters))
	for _, a := range cfg.Adapters {
		adapters[a.Venue().ID] = a
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Evaluator{
		adapters:     adapters,
		dispatcher:   cfg.Dispatcher,
		selector:     cfg.Selector,
		sink:         cfg.Sink,
		batchTimeout: cfg.BatchTimeout,
		now:          cfg.Now,
		logger:       cfg.Logger.With(slog.String("component", "evaluator")),
	}
}

// leg is one venue able to price one direction of a pair.
type leg struct {
	adapter venue.Adapter
	in, out domain.Asset
}

// Venues returns the venue names eligible for both directions of pair, in
// venue id order.
func (e *Evaluator) Venues(pair domain.Pair) []string {
	out, back := e.eligible(pair)
	inbound := make(map[string]bool, len(back))
	for _, l := range back {
		inbound[l.adapter.Venue().ID] = true
	}
	names := make([]string, 0, len(out))
	for _, l := range out {
		if inbound[l.adapter.Venue().ID] {
			names = append(names, l.adapter.Venue().Name)
		}
	}
	return names
}

// eligible returns the legs of pair for each direction. A venue is eligible
// when both assets are listed there and its adapter supports the swap.
func (e *Evaluator) eligible(pair domain.Pair) (out, back []leg) {
	ids := make([]string, 0, len(pair.Listings))
	for id := range pair.Listings {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		l := pair.Listings[id]
		a, ok := e.adapters[id]
		if !ok || l.Base.Address == "" || l.Counter.Address == "" {
			continue
		}
		if a.Supports(l.Base, l.Counter) {
			out = append(out, leg{adapter: a, in: l.Base, out: l.Counter})
		}
		if a.Supports(l.Counter, l.Base) {
			back = append(back, leg{adapter: a, in: l.Counter, out: l.Base})
		}
	}
	return out, back
}

// Evaluate runs one pass over pair and returns the round trips that cleared
// its minimum, after handing each to the sink. Venue failures only shrink
// the candidate set; an error is returned only when the pair cannot be
// evaluated at all.
func (e *Evaluator) Evaluate(ctx context.Context, pair domain.Pair) ([]domain.ArbitrageResult, error) {
	log := e.logger.With(slog.String("pair", pair.Name()))
	state := Idle
	step := func(next State, attrs ...any) {
		log.Debug("state transition",
			append([]any{slog.String("from", state.String()), slog.String("to", next.String())}, attrs...)...)
		state = next
	}

	amounts := positive(pair.Amounts)
	outLegs, backLegs := e.eligible(pair)
	if len(amounts) == 0 || len(outLegs) == 0 || len(backLegs) == 0 {
		return nil, fmt.Errorf("arbitrage: %s: %w: no eligible venues or amounts", pair.Name(), domain.ErrConfiguration)
	}

	step(LegOutDispatched, slog.Int("venues", len(outLegs)), slog.Int("amounts", len(amounts)))
	outQuotes := e.fanOut(ctx, outLegs, amounts)
	selected := e.selector.SelectAll(route.GroupByAmount(outQuotes))

	var legOuts []domain.Quote
	var backAmounts []decimal.Decimal
	seen := make(map[string]bool)
	for _, amt := range amounts {
		q, ok := selected[domain.AmountKey(amt)]
		if !ok || !q.AmountOut.IsPositive() {
			log.Debug("amount dropped", slog.String("amount", amt.String()))
			continue
		}
		legOuts = append(legOuts, q)
		if k := domain.AmountKey(q.AmountOut); !seen[k] {
			seen[k] = true
			backAmounts = append(backAmounts, q.AmountOut)
		}
	}
	step(LegOutSelected, slog.Int("quotes", len(outQuotes)), slog.Int("selected", len(legOuts)))
	if len(legOuts) == 0 {
		step(Idle)
		return nil, nil
	}

	step(LegBackDispatched, slog.Int("venues", len(backLegs)), slog.Int("amounts", len(backAmounts)))
	backRoutes := route.GroupByAmount(e.fanOut(ctx, backLegs, backAmounts))

	var results []domain.ArbitrageResult
	for _, out := range legOuts {
		back, ok := e.selector.SelectBest(backRoutes[domain.AmountKey(out.AmountOut)])
		if !ok {
			log.Debug("no return route", slog.String("amount", out.AmountIn.String()))
			continue
		}
		profit := Profit(out, back)
		metrics.LastProfit.WithLabelValues(pair.Name(), out.AmountIn.String()).Set(profit.InexactFloat64())

		if back.Venue.ID == out.Venue.ID {
			log.Debug("single venue round trip skipped",
				slog.String("venue", out.Venue.Name),
				slog.String("amount", out.AmountIn.String()),
			)
			continue
		}
		if profit.LessThan(pair.MinProfit) {
			continue
		}
		results = append(results, domain.ArbitrageResult{
			ID:         uuid.NewString(),
			Base:       pair.Base,
			Counter:    pair.Counter,
			LegOut:     out,
			LegBack:    back,
			Profit:     profit,
			DetectedAt: e.now(),
		})
	}
	step(Evaluated, slog.Int("round_trips", len(legOuts)), slog.Int("qualifying", len(results)))

	if len(results) == 0 {
		step(Idle)
		return nil, nil
	}

	step(Alerted, slog.Int("alerts", len(results)))
	for _, res := range results {
		metrics.Opportunities.WithLabelValues(pair.Name()).Inc()
		if e.sink != nil {
			e.sink.Alert(ctx, res)
		}
	}
	return results, nil
}

// Profit is what the return leg pays out beyond the outbound input, rounded
// to a quarter of the base asset's decimals.
func Profit(out, back domain.Quote) decimal.Decimal {
	places := int32(out.AssetIn.Decimals / 4)
	return back.AmountOut.Sub(out.AmountIn).Round(places)
}

// fanOut prices every leg at every amount and returns the quotes that
// succeeded. Batch-capable adapters run alongside the dispatcher.
func (e *Evaluator) fanOut(ctx context.Context, legs []leg, amounts []decimal.Decimal) []domain.Quote {
	var (
		reqs    []scheduler.Request
		batches []leg
	)
	for _, l := range legs {
		if _, ok := l.adapter.(BatchQuoter); ok {
			batches = append(batches, l)
			continue
		}
		for _, amt := range amounts {
			reqs = append(reqs, scheduler.Request{
				Adapter: l.adapter,
				Input:   venue.Request{AssetIn: l.in, AssetOut: l.out, AmountIn: amt},
			})
		}
	}

	var (
		mu     sync.Mutex
		quotes []domain.Quote
		g      errgroup.Group
	)
	for _, l := range batches {
		g.Go(func() error {
			qs := e.quoteBatch(ctx, l, amounts)
			mu.Lock()
			quotes = append(quotes, qs...)
			mu.Unlock()
			return nil
		})
	}

	results := e.dispatcher.Dispatch(ctx, reqs)
	_ = g.Wait()

	for _, r := range results {
		if !r.OK() {
			e.logger.Warn("venue quote failed",
				slog.String("venue", r.Request.Adapter.Venue().Name),
				slog.String("from", r.Request.Input.AssetIn.Name),
				slog.String("to", r.Request.Input.AssetOut.Name),
				slog.String("error", r.Err.Error()),
			)
			continue
		}
		quotes = append(quotes, r.Quote)
	}
	return quotes
}

// quoteBatch runs one BatchQuoter call under the batch timeout.
func (e *Evaluator) quoteBatch(ctx context.Context, l leg, amounts []decimal.Decimal) (quotes []domain.Quote) {
	v := l.adapter.Venue()
	start := time.Now()

	bctx, cancel := context.WithTimeout(ctx, e.batchTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err := domain.NewQuoteError(v.ID, domain.ErrResponse, fmt.Sprintf("adapter panic: %v", p), nil)
			metrics.QuoteErrors.WithLabelValues(v.ID, metrics.ErrorKind(err)).Inc()
			e.logger.Error("venue quote panicked", slog.String("venue", v.Name), slog.String("error", err.Error()))
			quotes = nil
		}
	}()

	quotes, err := l.adapter.(BatchQuoter).QuoteAmounts(bctx, l.in, l.out, amounts)
	if err != nil {
		metrics.QuoteErrors.WithLabelValues(v.ID, metrics.ErrorKind(err)).Inc()
		e.logger.Warn("venue quote failed",
			slog.String("venue", v.Name),
			slog.String("from", l.in.Name),
			slog.String("to", l.out.Name),
			slog.String("error", err.Error()),
		)
		return nil
	}
	metrics.QuoteLatency.WithLabelValues(v.ID).Observe(time.Since(start).Seconds())
	return quotes
}

func positive(amounts []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(amounts))
	for _, a := range amounts {
		if a.IsPositive() {
			out = append(out, a)
		}
	}
	return out
}
