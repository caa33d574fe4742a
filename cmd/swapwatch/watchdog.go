package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/swapwatch/internal/cache/redis"
	"github.com/alanyoungcy/swapwatch/internal/config"
	"github.com/alanyoungcy/swapwatch/internal/notify"
	"github.com/alanyoungcy/swapwatch/internal/watchdog"
)

var watchdogCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Warn the debug chat when the screener's heartbeat goes stale",
	Long: `watchdog runs beside a screen or full process that shares Redis and
sends one warning to the Telegram debug chat per stall of the evaluation loop.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		logger := newLogger(cfg.LogLevel)

		if !cfg.Redis.Enabled {
			return errors.New("watchdog: redis must be enabled to read the shared heartbeat")
		}
		if cfg.Notify.TelegramToken == "" || cfg.Notify.TelegramDebugChatID == "" {
			logger.Warn("watchdog: telegram debug chat not configured, stalls will only be logged")
		}

		ctx := cmd.Context()
		client, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Name:       "swapwatch-watchdog",
		})
		if err != nil {
			return fmt.Errorf("watchdog: %w", err)
		}
		defer func() { _ = client.Close() }()

		var senders []notify.Sender
		if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramDebugChatID != "" {
			senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramDebugChatID).WithName("telegram-debug"))
		}
		notifier := notify.NewNotifier(senders, []string{notify.EventWatchdog}, logger)

		wd := watchdog.New(watchdog.Config{
			Key:          cfg.Evaluator.HeartbeatKey,
			InitialDelay: cfg.Watchdog.InitialDelay.Duration,
			Interval:     cfg.Watchdog.Interval.Duration,
			MaxStaleness: cfg.Watchdog.MaxStaleness.Duration,
		}, redis.NewHeartbeat(client, 0), notifier, nil, logger)

		if err := wd.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("watchdog stopped")
		return nil
	},
}
