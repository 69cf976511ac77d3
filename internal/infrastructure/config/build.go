package config

import (
	"time"

	"xbook/internal/domain"
	"xbook/internal/domain/model"
	"xbook/internal/infrastructure/exchange"
	"xbook/internal/infrastructure/websocket"
)

// InstrumentRegistry 由 [[instruments]] 构建只读标的表
func (c *Config) InstrumentRegistry() (*domain.InstrumentRegistry, error) {
	list := make([]model.Instrument, 0, len(c.Instruments))
	for _, ic := range c.Instruments {
		list = append(list, model.Instrument{
			Symbol:         ic.Symbol,
			Base:           ic.Base,
			Quote:          ic.Quote,
			BuyThreshold:   ic.BuyThreshold,
			SellThreshold:  ic.SellThreshold,
			MinSize:        ic.MinSize,
			MaxSize:        ic.MaxSize,
			MaxDrawdownPct: ic.MaxDrawdownPct,
			StopLossPct:    ic.StopLossPct,
		})
	}
	reg, err := domain.NewInstrumentRegistry(list)
	if err != nil {
		return nil, &ConfigError{Field: "instruments", Err: err}
	}
	return reg, nil
}

// ExchangeConfig 转成交易所适配器参数
func (v VenueConfig) ExchangeConfig() exchange.VenueConfig {
	return exchange.VenueConfig{
		WsURL:       v.WsURL,
		RestURL:     v.RestURL,
		Depth:       v.Depth,
		HTTPTimeout: time.Duration(v.HTTPTimeoutSec) * time.Second,
	}
}

// TransportOptions 转成流式连接参数
func (s StreamConfig) TransportOptions(name string) (websocket.Options, error) {
	policy, err := websocket.ParseOverflowPolicy(s.Overflow)
	if err != nil {
		return websocket.Options{}, &ConfigError{Field: "stream.overflow", Err: err}
	}
	opts := websocket.DefaultOptions()
	opts.Name = name
	opts.QueueSize = s.QueueSize
	opts.Overflow = policy
	opts.IdleLog = time.Duration(s.IdleLogSec) * time.Second
	opts.PingInterval = time.Duration(s.PingIntervalSec) * time.Second
	opts.ReadTimeout = time.Duration(s.ReadTimeoutSec) * time.Second
	opts.WriteTimeout = time.Duration(s.WriteTimeoutSec) * time.Second
	opts.Backoff = websocket.Backoff{
		Min:    time.Duration(s.BackoffMinMs) * time.Millisecond,
		Max:    time.Duration(s.BackoffMaxMs) * time.Millisecond,
		Factor: s.BackoffFactor,
		Jitter: s.BackoffJitter,
	}
	return opts, nil
}
