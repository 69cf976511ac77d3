package port

import "xbook/internal/domain/model"

// Observer 行情总线的订阅者
type Observer interface {
	OnOrderBookUpdate(u *model.OrderBookUpdate) error
}
