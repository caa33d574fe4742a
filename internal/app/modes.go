package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/swapwatch/internal/arbitrage"
	"github.com/alanyoungcy/swapwatch/internal/config"
	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/feed"
	"github.com/alanyoungcy/swapwatch/internal/fees"
	"github.com/alanyoungcy/swapwatch/internal/pipeline"
	"github.com/alanyoungcy/swapwatch/internal/route"
	"github.com/alanyoungcy/swapwatch/internal/scheduler"
	"github.com/alanyoungcy/swapwatch/internal/server"
	"github.com/alanyoungcy/swapwatch/internal/server/handler"
	"github.com/alanyoungcy/swapwatch/internal/service"
	"github.com/alanyoungcy/swapwatch/internal/venue"
	"github.com/alanyoungcy/swapwatch/internal/watchdog"
)

// isShutdown reports whether err only says the process was asked to stop.
func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}

// ScreenMode evaluates every pair on the configured interval and alerts on
// qualifying round trips. Exchange books are fetched over REST, or read from
// Redis when a feed process keeps them there.
func (a *App) ScreenMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting screen mode")

	markets, pairs, err := a.loadPairs()
	if err != nil {
		return fmt.Errorf("screen mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startArchiver(ctx, g, deps); err != nil {
		return fmt.Errorf("screen mode: %w", err)
	}
	alerter, err := a.startScreening(ctx, g, deps, markets, pairs)
	if err != nil {
		return fmt.Errorf("screen mode: %w", err)
	}
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, markets.SharedNetworks(), true)
	}

	err = g.Wait()
	alerter.Wait()
	return err
}

// FeedMode streams exchange depth into the shared book store for screen
// processes to read.
func (a *App) FeedMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting feed mode")

	var pairs []domain.Pair
	if strings.TrimSpace(a.cfg.MarketsFile) != "" {
		_, ps, err := a.loadPairs()
		if err != nil {
			return fmt.Errorf("feed mode: %w", err)
		}
		pairs = ps
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startFeed(ctx, g, deps, pairs)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, nil, false)
	}
	return g.Wait()
}

// FullMode runs the feed and the screen in one process. Without Redis the
// heartbeat is in-process, so the watchdog runs here too.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	markets, pairs, err := a.loadPairs()
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startArchiver(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if a.cfg.Exchange.Enabled {
		a.startFeed(ctx, g, deps, pairs)
	}
	alerter, err := a.startScreening(ctx, g, deps, markets, pairs)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if !deps.SharedHeartbeat {
		wd := watchdog.New(watchdog.Config{
			Key:          a.cfg.Evaluator.HeartbeatKey,
			InitialDelay: a.cfg.Watchdog.InitialDelay.Duration,
			Interval:     a.cfg.Watchdog.Interval.Duration,
			MaxStaleness: a.cfg.Watchdog.MaxStaleness.Duration,
		}, deps.Heartbeat, deps.Debug, nil, a.logger)
		g.Go(func() error {
			return wd.Run(ctx)
		})
	}
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, markets.SharedNetworks(), true)
	}

	err = g.Wait()
	alerter.Wait()
	return err
}

// loadPairs reads the markets file and builds the screened pairs.
func (a *App) loadPairs() (*config.Markets, []domain.Pair, error) {
	markets, err := config.LoadMarkets(a.cfg.MarketsFile)
	if err != nil {
		return nil, nil, err
	}
	pairs, err := markets.BuildPairs(config.MarketOptions{
		ExchangeEnabled: a.cfg.Exchange.Enabled,
		ExchangeID:      a.cfg.Exchange.VenueID,
		ExchangeName:    a.cfg.Exchange.VenueName,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(pairs) == 0 {
		return nil, nil, fmt.Errorf("config: %w: no arb tokens in %s", domain.ErrConfiguration, a.cfg.MarketsFile)
	}
	return markets, pairs, nil
}

// exchangeVenue is the order book venue described by the exchange config.
func (a *App) exchangeVenue() domain.Venue {
	return domain.Venue{
		ID:   a.cfg.Exchange.VenueID,
		Name: a.cfg.Exchange.VenueName,
		Kind: domain.CentralizedExchange,
	}
}

// buildAdapters creates one adapter per venue the pairs are listed on. The
// order book adapter is always built because it also prices the native asset
// for the fee estimator; it is only returned when the exchange is enabled.
func (a *App) buildAdapters(deps *Dependencies, pairs []domain.Pair) []venue.Adapter {
	book := venue.NewOrderBookAdapter(a.exchangeVenue(), deps.BookStore, deps.ExchangeAPI, venue.OrderBookConfig{
		QuoteAssets:  a.cfg.Exchange.QuoteAssets,
		TakerFee:     decimal.NewFromFloat(a.cfg.Exchange.TakerFee),
		BookLimit:    a.cfg.Exchange.BookLimit,
		MaxBookAge:   a.cfg.Exchange.MaxBookAge.Duration,
		FetchTimeout: a.cfg.Aggregator.Timeout.Duration,
	}, a.logger)
	estimator := fees.NewEstimator(feeConfig(a.cfg.Fees), deps.GasOracle, book, nil, a.logger)

	venues := make(map[string]domain.Venue)
	for _, p := range pairs {
		for id, l := range p.Listings {
			venues[id] = l.Venue
		}
	}
	ids := make([]string, 0, len(venues))
	for id := range venues {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	adapters := make([]venue.Adapter, 0, len(ids))
	for _, id := range ids {
		v := venues[id]
		switch v.Kind {
		case domain.CentralizedExchange:
			if a.cfg.Exchange.Enabled {
				adapters = append(adapters, book)
			}
		default:
			if id == a.cfg.Fees.HighFeeNetwork {
				adapters = append(adapters, venue.NewAggregatorAdapter(v, deps.Aggregator, deps.AggLimiter, estimator, a.logger))
			} else {
				adapters = append(adapters, venue.NewAggregatorAdapter(v, deps.Aggregator, deps.AggLimiter, nil, a.logger))
			}
		}
	}
	return adapters
}

// startScreening logs the startup summary and starts the evaluation loop.
// The returned Alerter must be waited on after the group finishes.
func (a *App) startScreening(ctx context.Context, g *errgroup.Group, deps *Dependencies, markets *config.Markets, pairs []domain.Pair) (*arbitrage.Alerter, error) {
	adapters := a.buildAdapters(deps, pairs)
	arbSvc := service.NewArbService(deps.ArbStore, deps.SignalBus, deps.AuditStore, a.cfg.Evaluator.PublishChannel, a.logger)
	alerter, err := arbitrage.NewAlerter(arbitrage.AlerterConfig{
		UIBaseURL:    a.cfg.Aggregator.UIBaseURL,
		HighFeeVenue: a.cfg.Fees.HighFeeNetwork,
		Cooldown:     a.cfg.Evaluator.AlertCooldown.Duration,
		CacheSize:    a.cfg.Evaluator.AlertCacheSize,
		Timeout:      a.cfg.Evaluator.AlertTimeout.Duration,
	}, deps.Alerts, arbSvc, nil, a.logger)
	if err != nil {
		return nil, err
	}

	eval := arbitrage.NewEvaluator(arbitrage.EvaluatorConfig{
		Adapters:     adapters,
		Dispatcher:   scheduler.NewDispatcher(a.cfg.Scheduler.MaxConcurrency, a.cfg.Scheduler.RequestTimeout.Duration, a.logger),
		Selector:     route.NewSelector(a.cfg.Fees.HighFeeNetwork, a.cfg.Fees.SettlementAssets, a.logger),
		Sink:         alerter,
		BatchTimeout: a.cfg.Scheduler.RequestTimeout.Duration,
		Logger:       a.logger,
	})
	shared := markets.SharedNetworks()
	for _, p := range pairs {
		a.logger.InfoContext(ctx, "screening pair",
			slog.String("pair", p.Name()),
			slog.Any("networks", shared[p.Counter]),
			slog.Any("venues", eval.Venues(p)),
			slog.Int("amounts", len(p.Amounts)),
			slog.String("min_profit", p.MinProfit.String()),
		)
	}

	runner := arbitrage.NewRunner(arbitrage.RunnerConfig{
		Interval:         a.cfg.Evaluator.Interval.Duration,
		MaxParallelPairs: a.cfg.Evaluator.MaxParallelPairs,
		HeartbeatKey:     a.cfg.Evaluator.HeartbeatKey,
	}, eval, pairs, deps.Heartbeat, a.logger)

	g.Go(func() error {
		return runner.Run(ctx)
	})
	return alerter, nil
}

// feedSymbols is the configured extra symbols, the exchange tickers the
// pairs trade on and the fee reference symbol, deduplicated.
func (a *App) feedSymbols(pairs []domain.Pair) []string {
	all := append([]string{}, a.cfg.Feed.Symbols...)
	all = append(all, config.ExchangeSymbols(pairs, a.cfg.Exchange.QuoteAssets)...)
	if a.cfg.Fees.ReferenceSymbol != "" {
		all = append(all, a.cfg.Fees.ReferenceSymbol)
	}

	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, s := range all {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// startFeed runs the depth stream into the book store.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies, pairs []domain.Pair) {
	df := feed.NewDepthFeed(feed.DepthFeedConfig{
		Symbols:           a.feedSymbols(pairs),
		Depth:             a.cfg.Feed.Depth,
		SessionMaxAge:     a.cfg.Feed.SessionMaxAge.Duration,
		ReconnectDelay:    a.cfg.Feed.ReconnectDelay.Duration,
		MaxReconnectDelay: a.cfg.Feed.MaxReconnectDelay.Duration,
	}, deps.ExchangeWS, deps.BookStore, a.logger)
	a.closers = append(a.closers, df.Close)

	g.Go(func() error {
		return df.Run(ctx)
	})
}

// startArchiver schedules the history archive when archiving is wired.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.Archiver == nil {
		return nil
	}
	job := pipeline.NewArchiver(deps.Archiver, deps.LockManager, a.cfg.Archive.RetentionDays, a.logger)

	if expr := strings.TrimSpace(a.cfg.Archive.Cron); expr != "" {
		if err := pipeline.ValidateCron(expr); err != nil {
			return fmt.Errorf("archive cron %q: %w", expr, err)
		}
		g.Go(func() error {
			return job.RunCron(ctx, expr)
		})
		return nil
	}
	g.Go(func() error {
		return job.RunLoop(ctx, a.cfg.Archive.Interval.Duration)
	})
	return nil
}

// startHTTPServer adds the API server to the group and shuts it down
// gracefully when the context is cancelled. screening registers the
// heartbeat and arbitrage history routes.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, shared map[string][]string, screening bool) {
	health := handler.NewHealthHandler(deps.Checks, a.logger)
	handlers := server.Handlers{
		Health: health,
		Status: handler.NewStatusHandler(a.cfg.Mode, shared),
	}
	if screening {
		health.WithHeartbeat(deps.Heartbeat, a.cfg.Evaluator.HeartbeatKey)
		arbSvc := service.NewArbService(deps.ArbStore, nil, nil, "", a.logger)
		handlers.Arb = handler.NewArbHandler(arbSvc, a.logger)
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RatePerSec:  a.cfg.Server.RatePerSec,
		Burst:       a.cfg.Server.Burst,
	}, handlers, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
