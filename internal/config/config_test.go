package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swapwatch.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "screen"

[scheduler]
max_concurrency = 8
request_timeout = "2s"

[exchange]
taker_fee = 0.00075
quote_assets = ["USDT"]
`), 0o600))

	t.Setenv("SWAPWATCH_SCHEDULER_MAX_CONCURRENCY", "12")
	t.Setenv("SWAPWATCH_NOTIFY_TELEGRAM_TOKEN", "secret-token")
	t.Setenv("SWAPWATCH_FEES_SETTLEMENT_ASSETS", "USDC, DAI ,")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "screen", cfg.Mode)
	assert.Equal(t, 12, cfg.Scheduler.MaxConcurrency)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.RequestTimeout.Duration)
	assert.Equal(t, 0.00075, cfg.Exchange.TakerFee)
	assert.Equal(t, []string{"USDT"}, cfg.Exchange.QuoteAssets)
	assert.Equal(t, []string{"USDC", "DAI"}, cfg.Fees.SettlementAssets)
	assert.Equal(t, "secret-token", cfg.Notify.TelegramToken)
	// untouched sections keep their defaults
	assert.Equal(t, 20*time.Minute, cfg.Fees.GasPriceTTL.Duration)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = "), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Scheduler.MaxConcurrency = 0
	cfg.Exchange.TakerFee = 1.5
	cfg.Archive.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, "taker_fee must be in [0, 1)")
	assert.Contains(t, msg, "archive: requires postgres.enabled")
}

func TestValidate_FeedModeNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "feed"
	assert.ErrorContains(t, cfg.Validate(), "redis: must be enabled for mode feed")

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Aggregator.APIKey = "k"
	cfg.Postgres.Password = "p"
	cfg.Notify.TelegramToken = "t"
	cfg.Fees.RPCURL = "https://mainnet.example/v3/key"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Aggregator.APIKey)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Equal(t, "***", out.Fees.RPCURL)
	assert.Empty(t, out.Notify.DiscordWebhookURL)

	out.Exchange.QuoteAssets[0] = "XXX"
	assert.Equal(t, "USDT", cfg.Exchange.QuoteAssets[0])
	assert.Equal(t, "k", cfg.Aggregator.APIKey)
}
