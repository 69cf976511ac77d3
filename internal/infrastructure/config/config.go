package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"xbook/internal/application"
)

// 环境变量覆盖（优先级：ENV > .env > 配置文件）
const (
	EnvRedisPassword = "XBOOK_REDIS_PASSWORD"
	EnvPostgresDSN   = "XBOOK_POSTGRES_DSN"
	EnvStatusAddr    = "XBOOK_STATUS_ADDR"
	EnvLogLevel      = "XBOOK_LOG_LEVEL"
)

type AppConfig struct {
	LogLevel      string `toml:"log_level"`
	LogFile       string `toml:"log_file"` // 为空则只输出到控制台
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`

	Monitor       bool   `toml:"monitor"`
	PrintEveryMin int    `toml:"print_every_min"`
	StatusAddr    string `toml:"status_addr"` // 为空则不启动状态接口
}

type InstrumentConfig struct {
	Symbol         string  `toml:"symbol"`
	Base           string  `toml:"base"`
	Quote          string  `toml:"quote"`
	BuyThreshold   float64 `toml:"buy_threshold"`
	SellThreshold  float64 `toml:"sell_threshold"`
	MinSize        float64 `toml:"min_size"`
	MaxSize        float64 `toml:"max_size"`
	MaxDrawdownPct float64 `toml:"max_drawdown_pct"`
	StopLossPct    float64 `toml:"stop_loss_pct"`
}

type StrategyConfig struct {
	Name           string  `toml:"name"`
	Kind           string  `toml:"kind"`
	Enabled        *bool   `toml:"enabled"`
	Instrument     string  `toml:"instrument"`
	Exchange       string  `toml:"exchange"`
	MinSpreadPct   float64 `toml:"min_spread_pct"`
	MaxSpreadPct   float64 `toml:"max_spread_pct"`
	InitialCapital float64 `toml:"initial_capital"`
}

// IsEnabled 未配置 enabled 时默认启用
func (s StrategyConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

type VenueConfig struct {
	Enabled         bool   `toml:"enabled"`
	WsURL           string `toml:"ws_url"`
	RestURL         string `toml:"rest_url"`
	Depth           int    `toml:"depth"`
	SnapshotOnStart bool   `toml:"snapshot_on_start"`
	SnapshotDepth   int    `toml:"snapshot_depth"`
	HTTPTimeoutSec  int    `toml:"http_timeout_sec"`
}

type StreamConfig struct {
	QueueSize       int     `toml:"queue_size"`
	Overflow        string  `toml:"overflow"`
	IdleLogSec      int     `toml:"idle_log_sec"`
	PingIntervalSec int     `toml:"ping_interval_sec"`
	ReadTimeoutSec  int     `toml:"read_timeout_sec"`
	WriteTimeoutSec int     `toml:"write_timeout_sec"`
	BackoffMinMs    int     `toml:"backoff_min_ms"`
	BackoffMaxMs    int     `toml:"backoff_max_ms"`
	BackoffFactor   float64 `toml:"backoff_factor"`
	BackoffJitter   float64 `toml:"backoff_jitter"`
}

type TelemetryConfig struct {
	RecordUpdates  bool   `toml:"record_updates"` // update_received 量很大，默认不落库
	LogLevel       string `toml:"log_level"`
	AsyncBuffer    int    `toml:"async_buffer"`
	AsyncTimeoutMs int    `toml:"async_timeout_ms"`
	MemoryEvents   int    `toml:"memory_events"`
}

type SQLiteConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type PostgresConfig struct {
	Enabled bool   `toml:"enabled"`
	DSN     string `toml:"dsn"`
}

type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	Prefix       string `toml:"prefix"`
	TTLSeconds   int    `toml:"ttl_seconds"`
	EventStream  string `toml:"event_stream"`
	EventChannel string `toml:"event_channel"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

type StorageConfig struct {
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
}

type Config struct {
	App         AppConfig          `toml:"app"`
	Instruments []InstrumentConfig `toml:"instruments"`
	Strategies  []StrategyConfig   `toml:"strategies"`

	Exchange struct {
		Binance VenueConfig `toml:"binance"`
		Deribit VenueConfig `toml:"deribit"`
	} `toml:"exchange"`

	Stream    StreamConfig    `toml:"stream"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Storage   StorageConfig   `toml:"storage"`
}

// ConfigError 配置校验失败，启动时致命
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config %s: %v", e.Field, e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }

func fieldErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Load 读取 toml，叠加 .env 和环境变量，补默认值并校验
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	// .env 可选，不存在不报错
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse 从字符串解析（测试和内嵌配置用），不读取 .env
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Storage.Redis.Password = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv(EnvStatusAddr); v != "" {
		cfg.App.StatusAddr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.App.LogLevel = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogMaxSizeMB <= 0 {
		cfg.App.LogMaxSizeMB = 10
	}
	if cfg.App.LogMaxBackups <= 0 {
		cfg.App.LogMaxBackups = 3
	}
	if cfg.App.LogMaxAgeDays <= 0 {
		cfg.App.LogMaxAgeDays = 28
	}
	if cfg.App.PrintEveryMin <= 0 {
		cfg.App.PrintEveryMin = 5
	}

	for i := range cfg.Instruments {
		cfg.Instruments[i].Symbol = strings.ToUpper(strings.TrimSpace(cfg.Instruments[i].Symbol))
	}
	for i := range cfg.Strategies {
		s := &cfg.Strategies[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
		if s.Kind == "" {
			s.Kind = "spread"
		}
		s.Instrument = strings.ToUpper(strings.TrimSpace(s.Instrument))
		s.Exchange = strings.ToUpper(strings.TrimSpace(s.Exchange))
	}

	venueDefaults(&cfg.Exchange.Binance)
	venueDefaults(&cfg.Exchange.Deribit)

	st := &cfg.Stream
	if st.QueueSize <= 0 {
		st.QueueSize = 1024
	}
	if st.Overflow == "" {
		st.Overflow = "drop_oldest"
	}
	if st.IdleLogSec <= 0 {
		st.IdleLogSec = 5
	}
	if st.PingIntervalSec <= 0 {
		st.PingIntervalSec = 25
	}
	if st.ReadTimeoutSec <= 0 {
		st.ReadTimeoutSec = 60
	}
	if st.WriteTimeoutSec <= 0 {
		st.WriteTimeoutSec = 5
	}
	if st.BackoffMinMs <= 0 {
		st.BackoffMinMs = 500
	}
	if st.BackoffMaxMs <= 0 {
		st.BackoffMaxMs = 10_000
	}
	if st.BackoffFactor <= 1 {
		st.BackoffFactor = 2
	}
	if st.BackoffJitter < 0 {
		st.BackoffJitter = 0
	}

	tm := &cfg.Telemetry
	if tm.LogLevel == "" {
		tm.LogLevel = "info"
	}
	if tm.AsyncBuffer <= 0 {
		tm.AsyncBuffer = 4096
	}
	if tm.AsyncTimeoutMs <= 0 {
		tm.AsyncTimeoutMs = 2000
	}
	if tm.MemoryEvents <= 0 {
		tm.MemoryEvents = 500
	}

	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/xbook.db"
	}
	rd := &cfg.Storage.Redis
	if rd.Addr == "" {
		rd.Addr = "127.0.0.1:6379"
	}
	if rd.Prefix == "" {
		rd.Prefix = "xbook"
	}
	if rd.TTLSeconds <= 0 {
		rd.TTLSeconds = 3600
	}
	if rd.StreamMaxLen <= 0 {
		rd.StreamMaxLen = 100_000
	}
}

func venueDefaults(v *VenueConfig) {
	v.WsURL = strings.TrimSpace(v.WsURL)
	v.RestURL = strings.TrimSpace(v.RestURL)
	if v.SnapshotDepth <= 0 {
		v.SnapshotDepth = 20
	}
	if v.HTTPTimeoutSec <= 0 {
		v.HTTPTimeoutSec = 10
	}
}

func validate(cfg *Config) error {
	if len(cfg.Instruments) == 0 {
		return fieldErr("instruments", "no instruments configured")
	}
	seen := make(map[string]struct{}, len(cfg.Instruments))
	for i, inst := range cfg.Instruments {
		field := "instruments[" + strconv.Itoa(i) + "]"
		if inst.Symbol == "" {
			return fieldErr(field+".symbol", "required")
		}
		if _, dup := seen[inst.Symbol]; dup {
			return fieldErr(field+".symbol", "duplicate symbol %s", inst.Symbol)
		}
		seen[inst.Symbol] = struct{}{}
		if inst.MaxSize <= 0 {
			return fieldErr(field+".max_size", "must be positive")
		}
		if inst.MinSize < 0 || inst.MinSize > inst.MaxSize {
			return fieldErr(field+".min_size", "must be within [0, max_size]")
		}
		if inst.StopLossPct < 0 {
			return fieldErr(field+".stop_loss_pct", "must not be negative")
		}
		if inst.MaxDrawdownPct < 0 {
			return fieldErr(field+".max_drawdown_pct", "must not be negative")
		}
		if inst.BuyThreshold < 0 || inst.SellThreshold < 0 {
			return fieldErr(field, "thresholds must not be negative")
		}
	}

	enabled := map[string]bool{
		application.ExchangeBinance: cfg.Exchange.Binance.Enabled,
		application.ExchangeDeribit: cfg.Exchange.Deribit.Enabled,
	}
	if !enabled[application.ExchangeBinance] && !enabled[application.ExchangeDeribit] {
		return fieldErr("exchange", "no exchange enabled")
	}
	for _, d := range []struct {
		name string
		v    VenueConfig
	}{{"binance", cfg.Exchange.Binance}, {"deribit", cfg.Exchange.Deribit}} {
		if d.v.Depth < 0 {
			return fieldErr("exchange."+d.name+".depth", "must not be negative")
		}
	}

	names := make(map[string]struct{}, len(cfg.Strategies))
	for i, s := range cfg.Strategies {
		field := "strategies[" + strconv.Itoa(i) + "]"
		if s.Name == "" {
			return fieldErr(field+".name", "required")
		}
		if _, dup := names[s.Name]; dup {
			return fieldErr(field+".name", "duplicate strategy %s", s.Name)
		}
		names[s.Name] = struct{}{}
		if _, ok := seen[s.Instrument]; !ok {
			return fieldErr(field+".instrument", "unknown instrument %q", s.Instrument)
		}
		if s.Exchange != "" {
			on, known := enabled[s.Exchange]
			if !known {
				return fieldErr(field+".exchange", "unknown exchange %q", s.Exchange)
			}
			if !on && s.IsEnabled() {
				return fieldErr(field+".exchange", "exchange %s is disabled", s.Exchange)
			}
		}
		switch s.Kind {
		case "spread":
			if s.MinSpreadPct < 0 || s.MaxSpreadPct <= s.MinSpreadPct {
				return fieldErr(field, "require 0 <= min_spread_pct < max_spread_pct")
			}
		case "threshold":
		default:
			return fieldErr(field+".kind", "unknown strategy kind %q", s.Kind)
		}
		if s.InitialCapital < 0 {
			return fieldErr(field+".initial_capital", "must not be negative")
		}
	}

	switch cfg.Stream.Overflow {
	case "drop_oldest", "drop_newest":
	default:
		return fieldErr("stream.overflow", "unknown policy %q", cfg.Stream.Overflow)
	}
	if cfg.Stream.BackoffMaxMs < cfg.Stream.BackoffMinMs {
		return fieldErr("stream.backoff_max_ms", "must be >= backoff_min_ms")
	}

	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return fieldErr("storage.postgres.dsn", "empty but postgres enabled")
	}
	return nil
}

// EnabledExchanges 已启用的交易所（大写）
func (c *Config) EnabledExchanges() []string {
	var out []string
	if c.Exchange.Binance.Enabled {
		out = append(out, application.ExchangeBinance)
	}
	if c.Exchange.Deribit.Enabled {
		out = append(out, application.ExchangeDeribit)
	}
	return out
}

// Venue 按交易所名取配置
func (c *Config) Venue(name string) (VenueConfig, error) {
	switch strings.ToUpper(name) {
	case application.ExchangeBinance:
		return c.Exchange.Binance, nil
	case application.ExchangeDeribit:
		return c.Exchange.Deribit, nil
	}
	return VenueConfig{}, errors.New("unknown exchange: " + name)
}
