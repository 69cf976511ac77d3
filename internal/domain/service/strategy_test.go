package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"xbook/internal/domain/model"
)

func update(inst *model.Instrument, bid, bidQty, ask, askQty float64) *model.OrderBookUpdate {
	return &model.OrderBookUpdate{
		Exchange:   "BINANCE",
		Instrument: inst,
		Bids:       []model.Order{{Price: bid, Quantity: bidQty}},
		Asks:       []model.Order{{Price: ask, Quantity: askQty}},
	}
}

func TestSpreadPct(t *testing.T) {
	assert.InDelta(t, 1.0, SpreadPct(100, 101), 1e-12)
	assert.Equal(t, 0.0, SpreadPct(0, 101))
	assert.Equal(t, 1.0, Spread(100, 101))
}

func TestSpreadColor(t *testing.T) {
	assert.Equal(t, +1, SpreadColor(0.05, 0.1, 0.5))
	assert.Equal(t, 0, SpreadColor(0.2, 0.1, 0.5))
	assert.Equal(t, -1, SpreadColor(0.5, 0.1, 0.5))
}

func TestSpreadStrategy(t *testing.T) {
	inst := &model.Instrument{Symbol: "BTC_USD", MaxSize: 0.5}
	s := NewSpreadStrategy("btc", 0.1, 0.5)

	u := update(inst, 67434, 2, 67434.5, 1.2)
	sig := s.Evaluate(u, SpreadPct(67434, 67434.5), nil)
	assert.Equal(t, model.ActionBuy, sig.Action)
	assert.Equal(t, 0.5, sig.Size)
	assert.Equal(t, 67434.5, sig.Price)
	assert.Equal(t, "btc", sig.Strategy)

	u = update(inst, 100, 0.3, 101, 1)
	sig = s.Evaluate(u, SpreadPct(100, 101), nil)
	assert.Equal(t, model.ActionSell, sig.Action)
	assert.Equal(t, 0.3, sig.Size)
	assert.Equal(t, 100.0, sig.Price)

	sig = s.Evaluate(update(inst, 100, 1, 100.2, 1), 0.2, nil)
	assert.Equal(t, model.ActionNone, sig.Action)

	// 有持仓时不再入场
	pos := &model.Position{Side: model.SideLong, Size: 0.5, EntryPrice: 1}
	sig = s.Evaluate(update(inst, 67434, 2, 67434.5, 1), 0.0007, pos)
	assert.Equal(t, model.ActionNone, sig.Action)
}

func TestThresholdStrategy(t *testing.T) {
	inst := &model.Instrument{Symbol: "ETH_USD", MaxSize: 2, BuyThreshold: 100, SellThreshold: 110}
	s := NewThresholdStrategy("eth")

	sig := s.Evaluate(update(inst, 98, 5, 99, 5), 0, nil)
	assert.Equal(t, model.ActionBuy, sig.Action)
	assert.Equal(t, 2.0, sig.Size)

	long := &model.Position{Side: model.SideLong, Size: 2, EntryPrice: 99}
	sig = s.Evaluate(update(inst, 98, 5, 99, 5), 0, long)
	assert.Equal(t, model.ActionNone, sig.Action, "already long")

	sig = s.Evaluate(update(inst, 111, 1.5, 112, 5), 0, long)
	assert.Equal(t, model.ActionSell, sig.Action)
	assert.Equal(t, 1.5, sig.Size)

	short := &model.Position{Side: model.SideShort, Size: 2, EntryPrice: 111}
	sig = s.Evaluate(update(inst, 111, 1.5, 112, 5), 0, short)
	assert.Equal(t, model.ActionNone, sig.Action, "already short")

	sig = s.Evaluate(update(inst, 105, 1, 106, 1), 0, nil)
	assert.Equal(t, model.ActionNone, sig.Action)

	// 阈值为 0 表示关闭
	off := &model.Instrument{Symbol: "ETH_USD", MaxSize: 2}
	sig = s.Evaluate(update(off, 1, 1, 2, 1), 0, nil)
	assert.Equal(t, model.ActionNone, sig.Action)
}
