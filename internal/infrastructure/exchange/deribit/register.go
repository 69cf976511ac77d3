package deribit

import (
	"xbook/internal/application"
	"xbook/internal/application/port"
	"xbook/internal/domain"
	"xbook/internal/infrastructure/exchange"
)

// init() 自动注册 Deribit 适配器
func init() {
	exchange.Register(application.ExchangeDeribit, func(cfg exchange.VenueConfig, instruments *domain.InstrumentRegistry) (port.Exchange, error) {
		return New(cfg, instruments)
	})
}
