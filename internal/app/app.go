// Package app wires the quote engine together and runs it in the configured
// mode: screen evaluates pairs and alerts, feed streams exchange depth into
// the shared book store, full does both in one process.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/swapwatch/internal/config"
	"github.com/alanyoungcy/swapwatch/internal/notify"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the mode's goroutines and blocks until
// the context is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := strings.ToLower(a.cfg.Mode)
	switch mode {
	case "screen":
		err = a.ScreenMode(ctx, deps)
	case "feed":
		err = a.FeedMode(ctx, deps)
	case "full":
		err = a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	a.notifyStopped(deps, err)
	return err
}

// notifyStopped tells the debug channel the process is going away.
func (a *App) notifyStopped(deps *Dependencies, runErr error) {
	msg := fmt.Sprintf("swapwatch (%s) stopped at %s", a.cfg.Mode, time.Now().UTC().Format(time.DateTime))
	if runErr != nil && !isShutdown(runErr) {
		msg += ": " + runErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := deps.Debug.Notify(ctx, notify.EventLifecycle, "", msg); err != nil {
		a.logger.Warn("lifecycle notification failed", slog.String("error", err.Error()))
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
