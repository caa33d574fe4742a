package arbitrage

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/metrics"
)

// PairEvaluator evaluates one pair. *Evaluator satisfies it.
type PairEvaluator interface {
	Evaluate(ctx context.Context, pair domain.Pair) ([]domain.ArbitrageResult, error)
}

// RunnerConfig tunes a Runner.
type RunnerConfig struct {
	Interval         time.Duration
	MaxParallelPairs int
	// HeartbeatKey is written after every pass when a heartbeat is set.
	HeartbeatKey string
}

// Runner evaluates every pair on a fixed interval until its context ends.
type Runner struct {
	cfg       RunnerConfig
	eval      PairEvaluator
	pairs     []domain.Pair
	heartbeat domain.Heartbeat
	now       func() time.Time
	logger    *slog.Logger
	loops     int
}

// NewRunner creates a Runner. heartbeat may be nil.
func NewRunner(cfg RunnerConfig, eval PairEvaluator, pairs []domain.Pair, heartbeat domain.Heartbeat, logger *slog.Logger) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.MaxParallelPairs < 1 {
		cfg.MaxParallelPairs = 1
	}
	return &Runner{
		cfg:       cfg,
		eval:      eval,
		pairs:     pairs,
		heartbeat: heartbeat,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "runner")),
	}
}

// Run executes a pass immediately and then once per interval. It returns
// ctx.Err() on shutdown; pair failures never stop it.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("evaluation loop started",
		slog.Int("pairs", len(r.pairs)),
		slog.Duration("interval", r.cfg.Interval),
	)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		r.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce evaluates every pair once and returns the results of the pass.
func (r *Runner) RunOnce(ctx context.Context) []domain.ArbitrageResult {
	start := time.Now()
	r.loops++

	results := make([][]domain.ArbitrageResult, len(r.pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxParallelPairs)
	for i, pair := range r.pairs {
		g.Go(func() error {
			res, err := r.eval.Evaluate(gctx, pair)
			if err != nil {
				r.logger.Error("pair evaluation failed",
					slog.String("pair", pair.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	metrics.LoopDuration.Observe(elapsed.Seconds())
	r.logger.Info("loop executed",
		slog.Int("loop", r.loops),
		slog.String("secs", formatSecs(elapsed)),
	)

	if r.heartbeat != nil && r.cfg.HeartbeatKey != "" {
		if err := r.heartbeat.Beat(ctx, r.cfg.HeartbeatKey, r.now()); err != nil {
			r.logger.Warn("heartbeat write failed", slog.String("error", err.Error()))
		}
	}

	var out []domain.ArbitrageResult
	for _, res := range results {
		out = append(out, res...)
	}
	return out
}

func formatSecs(d time.Duration) string {
	return Group(decimal.RequireFromString(decimal.NewFromFloat(d.Seconds()).StringFixed(2)))
}
