// Package watchdog warns the debug channel when the evaluation loop stops
// writing its heartbeat.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/notify"
)

// Notifier delivers a warning. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config tunes a Watchdog.
type Config struct {
	// Key is the heartbeat key the evaluator writes.
	Key          string
	InitialDelay time.Duration
	Interval     time.Duration
	MaxStaleness time.Duration
	// Target names the watched process in warnings.
	Target string
}

// Watchdog polls a heartbeat and warns once per stall; a fresh beat re-arms
// it.
type Watchdog struct {
	cfg       Config
	heartbeat domain.Heartbeat
	notifier  Notifier
	now       func() time.Time
	logger    *slog.Logger
	stalled   bool
}

// New creates a Watchdog. now may be nil to use the wall clock.
func New(cfg Config, hb domain.Heartbeat, notifier Notifier, now func() time.Time, logger *slog.Logger) *Watchdog {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.MaxStaleness <= 0 {
		cfg.MaxStaleness = 15 * time.Minute
	}
	if cfg.Target == "" {
		cfg.Target = "swapwatch"
	}
	if now == nil {
		now = time.Now
	}
	return &Watchdog{
		cfg:       cfg,
		heartbeat: hb,
		notifier:  notifier,
		now:       now,
		logger:    logger.With(slog.String("component", "watchdog")),
	}
}

// Run waits the initial delay, then checks once per interval until ctx ends.
func (w *Watchdog) Run(ctx context.Context) error {
	w.logger.Info("watchdog started",
		slog.String("key", w.cfg.Key),
		slog.Duration("initial_delay", w.cfg.InitialDelay),
		slog.Duration("max_staleness", w.cfg.MaxStaleness),
	)
	if w.cfg.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.InitialDelay):
		}
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		if err := w.Check(ctx); err != nil {
			w.logger.Error("watchdog check failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check reads the heartbeat and warns when it is missing or older than the
// allowed staleness. Only a failed heartbeat read or delivery is an error.
func (w *Watchdog) Check(ctx context.Context) error {
	now := w.now()
	last, err := w.heartbeat.Last(ctx, w.cfg.Key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return w.warn(ctx, fmt.Sprintf("WARNING - %s\n%s: no heartbeat recorded under %q",
			now.Format(time.DateTime), w.cfg.Target, w.cfg.Key))
	case err != nil:
		return fmt.Errorf("watchdog: read heartbeat: %w", err)
	}

	age := now.Sub(last)
	if age <= w.cfg.MaxStaleness {
		if w.stalled {
			w.logger.Info("heartbeat recovered", slog.Duration("age", age))
		}
		w.stalled = false
		return nil
	}
	return w.warn(ctx, fmt.Sprintf("WARNING - %s\n%s has stopped! Last loop %s ago.",
		now.Format(time.DateTime), w.cfg.Target, age.Truncate(time.Second)))
}

// Stalled reports whether the last check found a stale heartbeat.
func (w *Watchdog) Stalled() bool { return w.stalled }

func (w *Watchdog) warn(ctx context.Context, msg string) error {
	if w.stalled {
		return nil
	}
	w.stalled = true
	w.logger.Warn("evaluation loop stalled", slog.String("key", w.cfg.Key))
	if w.notifier == nil {
		return nil
	}
	if err := w.notifier.Notify(ctx, notify.EventWatchdog, "", msg); err != nil {
		return fmt.Errorf("watchdog: notify: %w", err)
	}
	return nil
}
