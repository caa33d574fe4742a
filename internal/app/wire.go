package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	s3blob "github.com/alanyoungcy/swapwatch/internal/blob/s3"
	"github.com/alanyoungcy/swapwatch/internal/cache/memory"
	"github.com/alanyoungcy/swapwatch/internal/cache/redis"
	"github.com/alanyoungcy/swapwatch/internal/config"
	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/fees"
	"github.com/alanyoungcy/swapwatch/internal/notify"
	"github.com/alanyoungcy/swapwatch/internal/platform/binance"
	"github.com/alanyoungcy/swapwatch/internal/platform/oneinch"
	"github.com/alanyoungcy/swapwatch/internal/server/handler"
	"github.com/alanyoungcy/swapwatch/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	// Caches
	BookStore   domain.BookStore
	Heartbeat   domain.Heartbeat
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	// SharedHeartbeat is true when Heartbeat is visible to other processes.
	SharedHeartbeat bool

	// Stores
	ArbStore   domain.ArbStore
	AuditStore domain.AuditStore

	// Blob storage
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Venue clients
	Aggregator  *oneinch.Client
	AggLimiter  *rate.Limiter
	ExchangeAPI *binance.RESTClient
	ExchangeWS  *binance.StreamClient
	GasOracle   fees.GasPriceOracle

	// Notifications. Alerts go to the alert chat and Discord, operational
	// messages to the debug chat.
	Alerts *notify.Notifier
	Debug  *notify.Notifier

	// Health checks keyed by backend name.
	Checks map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]handler.Pinger)}

	// --- Redis (optional; in-process caches otherwise) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Name:       "swapwatch-" + cfg.Mode,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		bookTTL := 10 * cfg.Exchange.MaxBookAge.Duration
		if bookTTL <= 0 {
			bookTTL = 10 * time.Minute
		}
		deps.BookStore = redis.NewBookStore(redisClient, bookTTL)
		deps.Heartbeat = redis.NewHeartbeat(redisClient, 7*24*time.Hour)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.SharedHeartbeat = true
		deps.Checks["redis"] = redisClient
	} else {
		deps.BookStore = memory.NewBookStore()
		deps.Heartbeat = memory.NewHeartbeat()
	}

	// --- PostgreSQL (optional) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
			AppName:  "swapwatch-" + cfg.Mode,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		arbStore := postgres.NewArbStore(pool)
		auditStore := postgres.NewAuditStore(pool)
		deps.ArbStore = arbStore
		deps.AuditStore = auditStore
		deps.Checks["postgres"] = pgClient

		// --- S3 archive (needs the arb store it drains) ---
		if cfg.Archive.Enabled {
			s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
				Endpoint:       cfg.S3.Endpoint,
				Region:         cfg.S3.Region,
				Bucket:         cfg.S3.Bucket,
				AccessKey:      cfg.S3.AccessKey,
				SecretKey:      cfg.S3.SecretKey,
				UseSSL:         cfg.S3.UseSSL,
				ForcePathStyle: cfg.S3.ForcePathStyle,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: s3: %w", err)
			}
			closers = append(closers, func() { _ = s3Client.Close() })

			reader := s3blob.NewReader(s3Client)
			deps.BlobReader = reader
			deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), reader, arbStore, auditStore, logger)
			deps.Checks["s3"] = s3Client
		}
	}

	// --- Venue clients ---
	deps.Aggregator = oneinch.NewClient(cfg.Aggregator.BaseURL, cfg.Aggregator.APIKey, cfg.Aggregator.Timeout.Duration)
	if cfg.Aggregator.RatePerSec > 0 {
		deps.AggLimiter = rate.NewLimiter(rate.Limit(cfg.Aggregator.RatePerSec), max(cfg.Aggregator.Burst, 1))
	}
	deps.ExchangeAPI = binance.NewRESTClient(cfg.Exchange.RESTURL, cfg.Aggregator.Timeout.Duration)
	deps.ExchangeWS = binance.NewStreamClient(cfg.Exchange.WSURL)

	if cfg.Fees.RPCURL != "" {
		eth, err := ethclient.DialContext(ctx, cfg.Fees.RPCURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: gas price rpc: %w", err)
		}
		closers = append(closers, eth.Close)
		deps.GasOracle = eth
	} else {
		logger.WarnContext(ctx, "fees: rpc_url not set, high-fee network costs will be reported as unknown")
	}

	// --- Notifications ---
	var alertSenders, debugSenders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		if cfg.Notify.TelegramChatID != "" {
			alertSenders = append(alertSenders, notify.NewTelegramSender(
				cfg.Notify.TelegramToken,
				cfg.Notify.TelegramChatID,
			))
		}
		if cfg.Notify.TelegramDebugChatID != "" {
			debugSenders = append(debugSenders, notify.NewTelegramSender(
				cfg.Notify.TelegramToken,
				cfg.Notify.TelegramDebugChatID,
			).WithName("telegram-debug"))
		}
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		alertSenders = append(alertSenders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Alerts = notify.NewNotifier(alertSenders, cfg.Notify.Events, logger)
	deps.Debug = notify.NewNotifier(debugSenders, []string{notify.EventWatchdog, notify.EventLifecycle}, logger)

	return deps, cleanup, nil
}

// feeConfig converts the fee settings for the estimator.
func feeConfig(cfg config.FeesConfig) fees.Config {
	return fees.Config{
		GasPriceTTL:       cfg.GasPriceTTL.Duration,
		ReferencePriceTTL: cfg.ReferencePriceTTL.Duration,
		ReferenceSymbol:   cfg.ReferenceSymbol,
		BridgeFeeNative:   decimal.NewFromFloat(cfg.BridgeFeeNative),
		LookupTimeout:     cfg.LookupTimeout.Duration,
	}
}
