package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/swapwatch/internal/cache/redis"
	"github.com/alanyoungcy/swapwatch/internal/config"
	"github.com/alanyoungcy/swapwatch/internal/domain"
)

var tailChannel string

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print arbitrage results as the screener publishes them",
	Long: `tail subscribes to the evaluator's publish channel on Redis and writes
each result to stdout as one JSON line. Glob patterns subscribe to several
channels at once.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		if !cfg.Redis.Enabled {
			return errors.New("tail: redis must be enabled to read published results")
		}
		channel := tailChannel
		if channel == "" {
			channel = cfg.Evaluator.PublishChannel
		}

		ctx := cmd.Context()
		client, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Name:       "swapwatch-tail",
		})
		if err != nil {
			return fmt.Errorf("tail: %w", err)
		}
		defer func() { _ = client.Close() }()

		err = tailSignals(ctx, redis.NewSignalBus(client), channel, cmd.OutOrStdout())
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	tailCmd.Flags().StringVar(&tailChannel, "channel", "", "channel or pattern to follow (defaults to evaluator.publish_channel)")
}

// tailSignals copies payloads from channel to w, one per line, until ctx is
// done or the subscription closes.
func tailSignals(ctx context.Context, bus domain.SignalBus, channel string, w io.Writer) error {
	msgs, err := bus.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("tail: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			if _, err := fmt.Fprintf(w, "%s\n", msg); err != nil {
				return fmt.Errorf("tail: write: %w", err)
			}
		}
	}
}
