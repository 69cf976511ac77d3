package port

import (
	"context"

	"xbook/internal/domain/model"
)

// Exchange 交易所适配器：符号规范化、stream 命名、解析与快照
type Exchange interface {
	Name() string
	// Endpoint 流式连接地址
	Endpoint() string
	Codec() Codec
	// NormalizeSymbol 逻辑符号 -> 线上符号，纯函数且幂等
	NormalizeSymbol(logical string) string
	StreamNamesFor(instruments []*model.Instrument) []string
	ParseUpdate(f Frame) (*model.OrderBookUpdate, error)
	GetSnapshot(ctx context.Context, inst *model.Instrument, depth int) (*model.OrderBookUpdate, error)
}
