package model

import (
	"fmt"
	"time"
)

// ========== Instrument ==========

// Instrument 交易标的（启动时由配置加载，之后只读）
type Instrument struct {
	Symbol         string  `json:"symbol"` // 逻辑符号，例如 BTC_USD
	Base           string  `json:"base"`
	Quote          string  `json:"quote"`
	BuyThreshold   float64 `json:"buy_threshold"`
	SellThreshold  float64 `json:"sell_threshold"`
	MinSize        float64 `json:"min_size"`
	MaxSize        float64 `json:"max_size"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	StopLossPct    float64 `json:"stop_loss_pct"`
}

// ========== Order Book ==========

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusOpen   OrderStatus = "open"
	OrderStatusFilled OrderStatus = "filled"
	OrderStatusClosed OrderStatus = "closed"
)

// Order 订单簿中的一个价位
type Order struct {
	Price    float64     `json:"price"`
	Quantity float64     `json:"quantity"`
	Status   OrderStatus `json:"status"`
}

// OrderBookUpdate 全量订单簿（每次都是整体替换，不是增量）
// Bids 按价格降序，Asks 按价格升序
type OrderBookUpdate struct {
	Exchange   string      `json:"exchange"`
	Instrument *Instrument `json:"instrument"`
	Bids       []Order     `json:"bids"`
	Asks       []Order     `json:"asks"`
	Sequence   int64       `json:"sequence"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Symbol 返回所属标的的逻辑符号
func (u *OrderBookUpdate) Symbol() string {
	if u == nil || u.Instrument == nil {
		return ""
	}
	return u.Instrument.Symbol
}

// BestBid 最优买价
func (u *OrderBookUpdate) BestBid() Order { return u.Bids[0] }

// BestAsk 最优卖价
func (u *OrderBookUpdate) BestAsk() Order { return u.Asks[0] }

// Validate 空盘口或交叉盘口视为畸形
func (u *OrderBookUpdate) Validate() error {
	if u == nil || u.Instrument == nil {
		return fmt.Errorf("%w: missing instrument", ErrMalformedUpdate)
	}
	if len(u.Bids) == 0 || len(u.Asks) == 0 {
		return fmt.Errorf("%w: %s empty side (bids=%d asks=%d)",
			ErrMalformedUpdate, u.Instrument.Symbol, len(u.Bids), len(u.Asks))
	}
	bid, ask := u.Bids[0].Price, u.Asks[0].Price
	if bid <= 0 || ask <= 0 {
		return fmt.Errorf("%w: %s non-positive top of book", ErrMalformedUpdate, u.Instrument.Symbol)
	}
	if ask < bid {
		return fmt.Errorf("%w: %s crossed book bid=%v ask=%v", ErrMalformedUpdate, u.Instrument.Symbol, bid, ask)
	}
	return nil
}

// ========== Signal / Position / Trade ==========

// Action 信号动作
type Action string

const (
	ActionNone Action = "none"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Signal 策略输出的交易意图
type Signal struct {
	Action   Action  `json:"action"`
	Size     float64 `json:"size"`
	Strategy string  `json:"strategy"`
	Price    float64 `json:"price"` // 触发时参考价
}

// Side 持仓方向
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position 单个策略实例的唯一持仓
type Position struct {
	Side       Side      `json:"side"`
	Size       float64   `json:"size"`
	EntryPrice float64   `json:"entry_price"`
	OpenedAt   time.Time `json:"opened_at"`
}

// PnL 按给定价格计算的浮动盈亏
func (p *Position) PnL(price float64) float64 {
	if p.Side == SideShort {
		return (p.EntryPrice - price) * p.Size
	}
	return (price - p.EntryPrice) * p.Size
}

// PnLPct 浮动盈亏百分比（亏损为负）
func (p *Position) PnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	if p.Side == SideShort {
		return (p.EntryPrice - price) / p.EntryPrice * 100
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// CloseReason 平仓原因
type CloseReason string

const (
	CloseStopLoss CloseReason = "stop_loss"
	CloseReversal CloseReason = "reversal"
)

// Trade 已完成的一笔交易记录
type Trade struct {
	Strategy   string      `json:"strategy"`
	Exchange   string      `json:"exchange"`
	Symbol     string      `json:"symbol"`
	Side       Side        `json:"side"`
	Size       float64     `json:"size"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	PnL        float64     `json:"pnl"`
	Reason     CloseReason `json:"reason"`
	OpenedAt   time.Time   `json:"opened_at"`
	ClosedAt   time.Time   `json:"closed_at"`
}
