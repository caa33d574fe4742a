// Package config defines the top-level configuration for swapwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SWAPWATCH_* environment variables.
type Config struct {
	Aggregator  AggregatorConfig `toml:"aggregator"`
	Exchange    ExchangeConfig   `toml:"exchange"`
	Fees        FeesConfig       `toml:"fees"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Evaluator   EvaluatorConfig  `toml:"evaluator"`
	Feed        FeedConfig       `toml:"feed"`
	Redis       RedisConfig      `toml:"redis"`
	Postgres    PostgresConfig   `toml:"postgres"`
	S3          S3Config         `toml:"s3"`
	Archive     ArchiveConfig    `toml:"archive"`
	Server      ServerConfig     `toml:"server"`
	Notify      NotifyConfig     `toml:"notify"`
	Watchdog    WatchdogConfig   `toml:"watchdog"`
	MarketsFile string           `toml:"markets_file"`
	Mode        string           `toml:"mode"`
	LogLevel    string           `toml:"log_level"`
}

// AggregatorConfig holds the on-chain swap aggregator endpoint.
type AggregatorConfig struct {
	BaseURL    string   `toml:"base_url"`
	APIKey     string   `toml:"api_key"`
	UIBaseURL  string   `toml:"ui_base_url"`
	Timeout    duration `toml:"timeout"`
	RatePerSec float64  `toml:"rate_per_sec"`
	Burst      int      `toml:"burst"`
}

// ExchangeConfig holds the centralized exchange venue.
type ExchangeConfig struct {
	Enabled     bool     `toml:"enabled"`
	VenueID     string   `toml:"venue_id"`
	VenueName   string   `toml:"venue_name"`
	RESTURL     string   `toml:"rest_url"`
	WSURL       string   `toml:"ws_url"`
	TakerFee    float64  `toml:"taker_fee"`
	BookLimit   int      `toml:"book_limit"`
	MaxBookAge  duration `toml:"max_book_age"`
	QuoteAssets []string `toml:"quote_assets"`
}

// FeesConfig holds the high-fee network cost model.
type FeesConfig struct {
	HighFeeNetwork    string   `toml:"high_fee_network"`
	RPCURL            string   `toml:"rpc_url"`
	GasPriceTTL       duration `toml:"gas_price_ttl"`
	ReferencePriceTTL duration `toml:"reference_price_ttl"`
	ReferenceSymbol   string   `toml:"reference_symbol"`
	BridgeFeeNative   float64  `toml:"bridge_fee_native"`
	LookupTimeout     duration `toml:"lookup_timeout"`
	SettlementAssets  []string `toml:"settlement_assets"`
}

// SchedulerConfig bounds quote fan-out.
type SchedulerConfig struct {
	MaxConcurrency int      `toml:"max_concurrency"`
	RequestTimeout duration `toml:"request_timeout"`
}

// EvaluatorConfig drives the screening loop.
type EvaluatorConfig struct {
	Interval         duration `toml:"interval"`
	MaxParallelPairs int      `toml:"max_parallel_pairs"`
	AlertCooldown    duration `toml:"alert_cooldown"`
	AlertCacheSize   int      `toml:"alert_cache_size"`
	AlertTimeout     duration `toml:"alert_timeout"`
	HeartbeatKey     string   `toml:"heartbeat_key"`
	PublishChannel   string   `toml:"publish_channel"`
}

// FeedConfig holds the depth stream parameters.
type FeedConfig struct {
	Depth             int      `toml:"depth"`
	SessionMaxAge     duration `toml:"session_max_age"`
	ReconnectDelay    duration `toml:"reconnect_delay"`
	MaxReconnectDelay duration `toml:"max_reconnect_delay"`
	// Symbols are streamed in addition to those derived from the markets
	// file and the fee reference symbol.
	Symbols []string `toml:"symbols"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls moving old arbitrage history into S3.
type ArchiveConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	// Cron, when set, replaces Interval with a 5-field schedule in UTC.
	Cron          string `toml:"cron"`
	RetentionDays int    `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"` // empty disables auth
	RatePerSec  float64  `toml:"rate_per_sec"`
	Burst       int      `toml:"burst"`
}

// NotifyConfig holds notification channel credentials. Alerts go to
// TelegramChatID, operational warnings to TelegramDebugChatID.
type NotifyConfig struct {
	TelegramToken       string   `toml:"telegram_token"`
	TelegramChatID      string   `toml:"telegram_chat_id"`
	TelegramDebugChatID string   `toml:"telegram_debug_chat_id"`
	DiscordWebhookURL   string   `toml:"discord_webhook_url"`
	Events              []string `toml:"events"`
}

// WatchdogConfig tunes the liveness checker.
type WatchdogConfig struct {
	InitialDelay duration `toml:"initial_delay"`
	Interval     duration `toml:"interval"`
	MaxStaleness duration `toml:"max_staleness"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Aggregator: AggregatorConfig{
			BaseURL:    "https://api.1inch.io/v4.0",
			UIBaseURL:  "https://app.1inch.io",
			Timeout:    duration{3 * time.Second},
			RatePerSec: 10,
			Burst:      10,
		},
		Exchange: ExchangeConfig{
			Enabled:     true,
			VenueID:     "0000",
			VenueName:   "BinanceCEX",
			RESTURL:     "https://api.binance.com",
			WSURL:       "wss://stream.binance.com:9443",
			TakerFee:    0.001,
			BookLimit:   100,
			MaxBookAge:  duration{30 * time.Second},
			QuoteAssets: []string{"USDT", "BUSD", "USDC"},
		},
		Fees: FeesConfig{
			HighFeeNetwork:    "1",
			GasPriceTTL:       duration{20 * time.Minute},
			ReferencePriceTTL: duration{12 * time.Minute},
			ReferenceSymbol:   "ETHUSDT",
			BridgeFeeNative:   0.005510,
			LookupTimeout:     duration{3 * time.Second},
			SettlementAssets:  []string{"USDC", "USDT", "DAI", "BUSD"},
		},
		Scheduler: SchedulerConfig{
			MaxConcurrency: 32,
			RequestTimeout: duration{5 * time.Second},
		},
		Evaluator: EvaluatorConfig{
			Interval:         duration{10 * time.Second},
			MaxParallelPairs: 4,
			AlertCooldown:    duration{10 * time.Minute},
			AlertCacheSize:   1024,
			AlertTimeout:     duration{10 * time.Second},
			HeartbeatKey:     "swapwatch:evaluator",
			PublishChannel:   "arb",
		},
		Feed: FeedConfig{
			Depth:             20,
			SessionMaxAge:     duration{24 * time.Hour},
			ReconnectDelay:    duration{2 * time.Second},
			MaxReconnectDelay: duration{60 * time.Second},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "swapwatch-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Interval:      duration{24 * time.Hour},
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Enabled:    true,
			Port:       8000,
			RatePerSec: 20,
			Burst:      40,
		},
		Notify: NotifyConfig{
			Events: []string{"arbitrage", "watchdog"},
		},
		Watchdog: WatchdogConfig{
			InitialDelay: duration{5 * time.Minute},
			Interval:     duration{15 * time.Minute},
			MaxStaleness: duration{15 * time.Minute},
		},
		MarketsFile: "markets.json",
		Mode:        "full",
		LogLevel:    "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"screen": true,
	"feed":   true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: screen, feed, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	screening := mode == "screen" || mode == "full"

	if screening {
		if strings.TrimSpace(c.MarketsFile) == "" {
			errs = append(errs, "markets_file must not be empty")
		}
		if c.Aggregator.BaseURL == "" {
			errs = append(errs, "aggregator: base_url must not be empty")
		}
		if c.Aggregator.Timeout.Duration <= 0 {
			errs = append(errs, "aggregator: timeout must be > 0")
		}
		if c.Aggregator.RatePerSec < 0 {
			errs = append(errs, "aggregator: rate_per_sec must be >= 0")
		}
		if c.Scheduler.MaxConcurrency < 1 {
			errs = append(errs, "scheduler: max_concurrency must be >= 1")
		}
		if c.Scheduler.RequestTimeout.Duration <= 0 {
			errs = append(errs, "scheduler: request_timeout must be > 0")
		}
		if c.Evaluator.Interval.Duration <= 0 {
			errs = append(errs, "evaluator: interval must be > 0")
		}
		if c.Evaluator.MaxParallelPairs < 1 {
			errs = append(errs, "evaluator: max_parallel_pairs must be >= 1")
		}
		if c.Evaluator.AlertCacheSize < 1 {
			errs = append(errs, "evaluator: alert_cache_size must be >= 1")
		}
		if c.Fees.HighFeeNetwork == "" {
			errs = append(errs, "fees: high_fee_network must not be empty")
		}
		if c.Fees.GasPriceTTL.Duration <= 0 || c.Fees.ReferencePriceTTL.Duration <= 0 {
			errs = append(errs, "fees: gas_price_ttl and reference_price_ttl must be > 0")
		}
		if c.Fees.BridgeFeeNative < 0 {
			errs = append(errs, "fees: bridge_fee_native must be >= 0")
		}
		if len(c.Fees.SettlementAssets) == 0 {
			errs = append(errs, "fees: settlement_assets must not be empty")
		}
	}

	if c.Exchange.Enabled || mode == "feed" {
		if c.Exchange.VenueID == "" {
			errs = append(errs, "exchange: venue_id must not be empty")
		}
		if c.Exchange.TakerFee < 0 || c.Exchange.TakerFee >= 1 {
			errs = append(errs, fmt.Sprintf("exchange: taker_fee must be in [0, 1), got %v", c.Exchange.TakerFee))
		}
		if c.Exchange.BookLimit < 1 {
			errs = append(errs, "exchange: book_limit must be >= 1")
		}
		if len(c.Exchange.QuoteAssets) == 0 {
			errs = append(errs, "exchange: quote_assets must not be empty")
		}
		if c.Feed.Depth != 5 && c.Feed.Depth != 10 && c.Feed.Depth != 20 {
			errs = append(errs, fmt.Sprintf("feed: depth must be 5, 10 or 20, got %d", c.Feed.Depth))
		}
		if c.Feed.SessionMaxAge.Duration <= 0 {
			errs = append(errs, "feed: session_max_age must be > 0")
		}
	}

	// A standalone feed only makes sense when it writes somewhere shared.
	if mode == "feed" && !c.Redis.Enabled {
		errs = append(errs, "redis: must be enabled for mode feed")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Archive.Enabled {
		if !c.Postgres.Enabled {
			errs = append(errs, "archive: requires postgres.enabled")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
