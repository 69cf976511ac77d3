package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xbook/internal/infrastructure/websocket"
)

const minimal = `
[[instruments]]
symbol = "btc_usd"
max_size = 0.5
stop_loss_pct = 1.0
max_drawdown_pct = 5.0

[[strategies]]
name = "btc-spread"
instrument = "btc_usd"
exchange = "binance"
min_spread_pct = 0.1
max_spread_pct = 0.5

[exchange.binance]
enabled = true
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse(minimal)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 10, cfg.App.LogMaxSizeMB)
	assert.Equal(t, 5, cfg.App.PrintEveryMin)
	assert.Equal(t, "BTC_USD", cfg.Instruments[0].Symbol)

	s := cfg.Strategies[0]
	assert.Equal(t, "spread", s.Kind)
	assert.Equal(t, "BTC_USD", s.Instrument)
	assert.Equal(t, "BINANCE", s.Exchange)
	assert.True(t, s.IsEnabled())

	assert.Equal(t, 1024, cfg.Stream.QueueSize)
	assert.Equal(t, "drop_oldest", cfg.Stream.Overflow)
	assert.Equal(t, 500, cfg.Stream.BackoffMinMs)
	assert.Equal(t, 10_000, cfg.Stream.BackoffMaxMs)
	assert.Equal(t, 4096, cfg.Telemetry.AsyncBuffer)
	assert.Equal(t, "data/xbook.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, "xbook", cfg.Storage.Redis.Prefix)
	assert.Equal(t, 20, cfg.Exchange.Binance.SnapshotDepth)

	assert.Equal(t, []string{"BINANCE"}, cfg.EnabledExchanges())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(string) string
		field string
	}{
		{"no instruments", func(s string) string {
			return `
[exchange.binance]
enabled = true`
		}, "instruments"},
		{"non-positive max size", func(s string) string {
			return strings.Replace(s, "max_size = 0.5", "max_size = 0", 1)
		}, "instruments[0].max_size"},
		{"min size above max", func(s string) string {
			return strings.Replace(s, "max_size = 0.5", "max_size = 0.5\nmin_size = 1", 1)
		}, "instruments[0].min_size"},
		{"negative stop loss", func(s string) string {
			return strings.Replace(s, "stop_loss_pct = 1.0", "stop_loss_pct = -1", 1)
		}, "instruments[0].stop_loss_pct"},
		{"duplicate symbol", func(s string) string {
			return `
[[instruments]]
symbol = "BTC_USD"
max_size = 1
[[instruments]]
symbol = "btc_usd"
max_size = 1
[exchange.binance]
enabled = true`
		}, "instruments[1].symbol"},
		{"no exchange", func(s string) string {
			return strings.Replace(s, "enabled = true", "enabled = false", 1)
		}, "exchange"},
		{"unknown strategy instrument", func(s string) string {
			return strings.Replace(s, `instrument = "btc_usd"`, `instrument = "eth_usd"`, 1)
		}, "strategies[0].instrument"},
		{"unknown strategy exchange", func(s string) string {
			return strings.Replace(s, `exchange = "binance"`, `exchange = "kraken"`, 1)
		}, "strategies[0].exchange"},
		{"disabled strategy exchange", func(s string) string {
			return strings.Replace(s, `exchange = "binance"`, `exchange = "deribit"`, 1)
		}, "strategies[0].exchange"},
		{"inverted spread band", func(s string) string {
			return strings.Replace(s, "max_spread_pct = 0.5", "max_spread_pct = 0.05", 1)
		}, "strategies[0]"},
		{"unknown kind", func(s string) string {
			return strings.Replace(s, `name = "btc-spread"`, "name = \"btc-spread\"\nkind = \"grid\"", 1)
		}, "strategies[0].kind"},
		{"bad overflow", func(s string) string {
			return s + "\n[stream]\noverflow = \"block\"\n"
		}, "stream.overflow"},
		{"backoff max below min", func(s string) string {
			return s + "\n[stream]\nbackoff_min_ms = 2000\nbackoff_max_ms = 1000\n"
		}, "stream.backoff_max_ms"},
		{"postgres without dsn", func(s string) string {
			return s + "\n[storage.postgres]\nenabled = true\n"
		}, "storage.postgres.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.edit(minimal))
			require.Error(t, err)
			var ce *ConfigError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestDisabledStrategyMayUseDisabledExchange(t *testing.T) {
	doc := strings.Replace(minimal, `exchange = "binance"`, "exchange = \"deribit\"\nenabled = false", 1)
	cfg, err := Parse(doc)
	require.NoError(t, err)
	assert.False(t, cfg.Strategies[0].IsEnabled())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvStatusAddr, "127.0.0.1:9999")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvPostgresDSN, "postgres://u:p@localhost/xbook")
	t.Setenv(EnvRedisPassword, "secret")

	cfg, err := Parse(minimal + "\n[storage.postgres]\nenabled = true\n")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.App.StatusAddr)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "postgres://u:p@localhost/xbook", cfg.Storage.Postgres.DSN)
	assert.Equal(t, "secret", cfg.Storage.Redis.Password)
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load("../../../configs/config.toml")
	require.NoError(t, err)

	assert.Len(t, cfg.Instruments, 2)
	assert.Len(t, cfg.Strategies, 2)
	assert.Equal(t, []string{"BINANCE", "DERIBIT"}, cfg.EnabledExchanges())

	reg, err := cfg.InstrumentRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC_USD", "ETH_USD"}, reg.Symbols())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does-not-exist.toml")
	assert.Error(t, err)
}

func TestVenueAndConversions(t *testing.T) {
	cfg, err := Parse(minimal)
	require.NoError(t, err)

	v, err := cfg.Venue("binance")
	require.NoError(t, err)
	assert.True(t, v.Enabled)
	_, err = cfg.Venue("kraken")
	assert.Error(t, err)

	ec := v.ExchangeConfig()
	assert.Equal(t, 10*time.Second, ec.HTTPTimeout)

	opts, err := cfg.Stream.TransportOptions("BINANCE")
	require.NoError(t, err)
	assert.Equal(t, "BINANCE", opts.Name)
	assert.Equal(t, websocket.OverflowDropOldest, opts.Overflow)
	assert.Equal(t, 500*time.Millisecond, opts.Backoff.Min)
	assert.Equal(t, 10*time.Second, opts.Backoff.Max)
	assert.Equal(t, 25*time.Second, opts.PingInterval)

	cfg.Stream.Overflow = "block"
	_, err = cfg.Stream.TransportOptions("BINANCE")
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}
