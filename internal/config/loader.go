package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SWAPWATCH_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SWAPWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Aggregator ──
	setStr(&cfg.Aggregator.BaseURL, "SWAPWATCH_AGGREGATOR_BASE_URL")
	setStr(&cfg.Aggregator.APIKey, "SWAPWATCH_AGGREGATOR_API_KEY")
	setStr(&cfg.Aggregator.UIBaseURL, "SWAPWATCH_AGGREGATOR_UI_BASE_URL")
	setDuration(&cfg.Aggregator.Timeout, "SWAPWATCH_AGGREGATOR_TIMEOUT")
	setFloat64(&cfg.Aggregator.RatePerSec, "SWAPWATCH_AGGREGATOR_RATE_PER_SEC")
	setInt(&cfg.Aggregator.Burst, "SWAPWATCH_AGGREGATOR_BURST")

	// ── Exchange ──
	setBool(&cfg.Exchange.Enabled, "SWAPWATCH_EXCHANGE_ENABLED")
	setStr(&cfg.Exchange.RESTURL, "SWAPWATCH_EXCHANGE_REST_URL")
	setStr(&cfg.Exchange.WSURL, "SWAPWATCH_EXCHANGE_WS_URL")
	setFloat64(&cfg.Exchange.TakerFee, "SWAPWATCH_EXCHANGE_TAKER_FEE")
	setInt(&cfg.Exchange.BookLimit, "SWAPWATCH_EXCHANGE_BOOK_LIMIT")
	setDuration(&cfg.Exchange.MaxBookAge, "SWAPWATCH_EXCHANGE_MAX_BOOK_AGE")
	setStringSlice(&cfg.Exchange.QuoteAssets, "SWAPWATCH_EXCHANGE_QUOTE_ASSETS")

	// ── Fees ──
	setStr(&cfg.Fees.HighFeeNetwork, "SWAPWATCH_FEES_HIGH_FEE_NETWORK")
	setStr(&cfg.Fees.RPCURL, "SWAPWATCH_FEES_RPC_URL")
	setDuration(&cfg.Fees.GasPriceTTL, "SWAPWATCH_FEES_GAS_PRICE_TTL")
	setDuration(&cfg.Fees.ReferencePriceTTL, "SWAPWATCH_FEES_REFERENCE_PRICE_TTL")
	setStr(&cfg.Fees.ReferenceSymbol, "SWAPWATCH_FEES_REFERENCE_SYMBOL")
	setFloat64(&cfg.Fees.BridgeFeeNative, "SWAPWATCH_FEES_BRIDGE_FEE_NATIVE")
	setStringSlice(&cfg.Fees.SettlementAssets, "SWAPWATCH_FEES_SETTLEMENT_ASSETS")

	// ── Scheduler / Evaluator ──
	setInt(&cfg.Scheduler.MaxConcurrency, "SWAPWATCH_SCHEDULER_MAX_CONCURRENCY")
	setDuration(&cfg.Scheduler.RequestTimeout, "SWAPWATCH_SCHEDULER_REQUEST_TIMEOUT")
	setDuration(&cfg.Evaluator.Interval, "SWAPWATCH_EVALUATOR_INTERVAL")
	setInt(&cfg.Evaluator.MaxParallelPairs, "SWAPWATCH_EVALUATOR_MAX_PARALLEL_PAIRS")
	setDuration(&cfg.Evaluator.AlertCooldown, "SWAPWATCH_EVALUATOR_ALERT_COOLDOWN")
	setStr(&cfg.Evaluator.PublishChannel, "SWAPWATCH_EVALUATOR_PUBLISH_CHANNEL")

	// ── Feed ──
	setInt(&cfg.Feed.Depth, "SWAPWATCH_FEED_DEPTH")
	setDuration(&cfg.Feed.SessionMaxAge, "SWAPWATCH_FEED_SESSION_MAX_AGE")
	setStringSlice(&cfg.Feed.Symbols, "SWAPWATCH_FEED_SYMBOLS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SWAPWATCH_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SWAPWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SWAPWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SWAPWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SWAPWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SWAPWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SWAPWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SWAPWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SWAPWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SWAPWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SWAPWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SWAPWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SWAPWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SWAPWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SWAPWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SWAPWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SWAPWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SWAPWATCH_REDIS_TLS_ENABLED")

	// ── S3 / Archive ──
	setStr(&cfg.S3.Endpoint, "SWAPWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SWAPWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "SWAPWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SWAPWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SWAPWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SWAPWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SWAPWATCH_S3_FORCE_PATH_STYLE")
	setBool(&cfg.Archive.Enabled, "SWAPWATCH_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "SWAPWATCH_ARCHIVE_INTERVAL")
	setStr(&cfg.Archive.Cron, "SWAPWATCH_ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "SWAPWATCH_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SWAPWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SWAPWATCH_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SWAPWATCH_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SWAPWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SWAPWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.TelegramDebugChatID, "SWAPWATCH_NOTIFY_TELEGRAM_DEBUG_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SWAPWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SWAPWATCH_NOTIFY_EVENTS")

	// ── Watchdog ──
	setDuration(&cfg.Watchdog.Interval, "SWAPWATCH_WATCHDOG_INTERVAL")
	setDuration(&cfg.Watchdog.MaxStaleness, "SWAPWATCH_WATCHDOG_MAX_STALENESS")

	// ── Top-level ──
	setStr(&cfg.MarketsFile, "SWAPWATCH_MARKETS_FILE")
	setStr(&cfg.Mode, "SWAPWATCH_MODE")
	setStr(&cfg.LogLevel, "SWAPWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
