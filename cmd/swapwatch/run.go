package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/swapwatch/internal/app"
	"github.com/alanyoungcy/swapwatch/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the screener in the configured mode (screen, feed or full)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		logger := newLogger(cfg.LogLevel)

		if err := cfg.Validate(); err != nil {
			logger.Error("invalid configuration", slog.String("error", err.Error()))
			return err
		}

		logger.Info("swapwatch starting",
			slog.String("mode", cfg.Mode),
			slog.String("config", configPath),
			slog.Any("settings", config.RedactedConfig(cfg)),
		)

		application := app.New(cfg, logger)
		defer application.Close()

		if err := application.Run(cmd.Context()); err != nil {
			// context.Canceled is expected on clean shutdown.
			if errors.Is(err, context.Canceled) {
				logger.Info("application shut down gracefully")
				return nil
			}
			logger.Error("application exited with error", slog.String("error", err.Error()))
			return err
		}

		logger.Info("swapwatch stopped")
		return nil
	},
}
