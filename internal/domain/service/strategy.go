package service

import (
	"math"

	"xbook/internal/domain/model"
)

// 策略类型
const (
	StrategySpread    = "spread"
	StrategyThreshold = "threshold"
)

// Strategy 根据盘口和当前持仓给出信号
type Strategy interface {
	Kind() string
	Evaluate(u *model.OrderBookUpdate, spreadPct float64, pos *model.Position) model.Signal
}

// SpreadStrategy 价差策略：只在空仓时入场
// 价差足够窄 -> 买入，价差过宽 -> 卖出
type SpreadStrategy struct {
	Name         string
	MinSpreadPct float64
	MaxSpreadPct float64
}

func NewSpreadStrategy(name string, minPct, maxPct float64) *SpreadStrategy {
	return &SpreadStrategy{Name: name, MinSpreadPct: minPct, MaxSpreadPct: maxPct}
}

func (s *SpreadStrategy) Kind() string { return StrategySpread }

func (s *SpreadStrategy) Evaluate(u *model.OrderBookUpdate, spreadPct float64, pos *model.Position) model.Signal {
	none := model.Signal{Action: model.ActionNone, Strategy: s.Name}
	if pos != nil {
		return none
	}
	inst := u.Instrument
	switch {
	case spreadPct <= s.MinSpreadPct:
		ask := u.BestAsk()
		return model.Signal{Action: model.ActionBuy, Size: math.Min(ask.Quantity, inst.MaxSize), Strategy: s.Name, Price: ask.Price}
	case spreadPct >= s.MaxSpreadPct:
		bid := u.BestBid()
		return model.Signal{Action: model.ActionSell, Size: math.Min(bid.Quantity, inst.MaxSize), Strategy: s.Name, Price: bid.Price}
	}
	return none
}

// ThresholdStrategy 价格阈值策略：使用标的配置的买卖阈值，可反手
type ThresholdStrategy struct {
	Name string
}

func NewThresholdStrategy(name string) *ThresholdStrategy {
	return &ThresholdStrategy{Name: name}
}

func (s *ThresholdStrategy) Kind() string { return StrategyThreshold }

func (s *ThresholdStrategy) Evaluate(u *model.OrderBookUpdate, _ float64, pos *model.Position) model.Signal {
	none := model.Signal{Action: model.ActionNone, Strategy: s.Name}
	inst := u.Instrument
	ask, bid := u.BestAsk(), u.BestBid()

	long := pos != nil && pos.Side == model.SideLong
	short := pos != nil && pos.Side == model.SideShort

	if inst.BuyThreshold > 0 && ask.Price <= inst.BuyThreshold && !long {
		return model.Signal{Action: model.ActionBuy, Size: math.Min(ask.Quantity, inst.MaxSize), Strategy: s.Name, Price: ask.Price}
	}
	if inst.SellThreshold > 0 && bid.Price >= inst.SellThreshold && !short {
		return model.Signal{Action: model.ActionSell, Size: math.Min(bid.Quantity, inst.MaxSize), Strategy: s.Name, Price: bid.Price}
	}
	return none
}
