package exchange

import (
	"sort"

	"github.com/rs/zerolog/log"

	"xbook/internal/application/port"
	"xbook/internal/domain"
)

// Factory 创建交易所适配器
type Factory func(cfg VenueConfig, instruments *domain.InstrumentRegistry) (port.Exchange, error)

// registry maps exchange names to their adapter factories
var registry = make(map[string]Factory)

// Register 由各交易所包的 init() 调用来自注册
func Register(exchangeName string, factory Factory) {
	if factory == nil {
		log.Warn().Str("exchange", exchangeName).Msg("invalid exchange factory")
		return
	}
	if _, exists := registry[exchangeName]; exists {
		log.Warn().Str("exchange", exchangeName).Msg("exchange factory already registered, overwriting")
	}
	registry[exchangeName] = factory
}

// Get 获取已注册的 factory
func Get(exchangeName string) (Factory, bool) {
	factory, ok := registry[exchangeName]
	return factory, ok
}

// Names 已注册的交易所（排序）
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
