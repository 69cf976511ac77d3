package decision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"
	"xbook/internal/domain/service"
)

// State 持仓状态机
type State string

const (
	StateFlat      State = "flat"
	StateLongOpen  State = "long_open"
	StateShortOpen State = "short_open"
)

// Config 一个策略实例的参数
type Config struct {
	Name           string
	Exchange       string // 为空表示接受所有交易所的盘口
	Instrument     *model.Instrument
	Strategy       service.Strategy
	InitialCapital float64
}

// Engine 策略 + 风控 + 模拟执行，每个实例最多一个持仓
type Engine struct {
	name       string
	exchange   string
	instrument *model.Instrument
	strategy   service.Strategy
	risk       *service.RiskManager
	telemetry  port.Telemetry

	// mu 覆盖一次盘口处理的全部步骤
	mu         sync.Mutex
	pos        *model.Position
	posVenue   string
	trades     []model.Trade
	updates    int64
	signals    int64
	rejected   int64
	lastUpdate time.Time
}

// New 创建引擎；telemetry 可以为 nil
func New(cfg Config, telemetry port.Telemetry) (*Engine, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("decision engine: empty name")
	}
	if cfg.Instrument == nil {
		return nil, errors.New("decision engine: nil instrument")
	}
	if cfg.Strategy == nil {
		return nil, errors.New("decision engine: nil strategy")
	}
	return &Engine{
		name:       cfg.Name,
		exchange:   strings.ToUpper(strings.TrimSpace(cfg.Exchange)),
		instrument: cfg.Instrument,
		strategy:   cfg.Strategy,
		risk:       service.NewRiskManager(cfg.Name, cfg.InitialCapital),
		telemetry:  telemetry,
	}, nil
}

func (e *Engine) Name() string { return e.name }

// OnOrderBookUpdate 处理一次盘口：校验 -> 止损 -> 信号 -> 风控 -> 执行
func (e *Engine) OnOrderBookUpdate(u *model.OrderBookUpdate) error {
	if u == nil || u.Symbol() != e.instrument.Symbol {
		return nil
	}
	if e.exchange != "" && !strings.EqualFold(u.Exchange, e.exchange) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.updates++
	e.lastUpdate = u.Timestamp
	e.emit(e.event(model.EventUpdateReceived, u).With("sequence", u.Sequence))

	if err := u.Validate(); err != nil {
		log.Warn().Str("strategy", e.name).Str("exchange", u.Exchange).Err(err).Msg("malformed update dropped")
		e.emit(e.event(model.EventMalformedUpdate, u).With("error", err.Error()))
		return nil
	}

	// 持仓只看开仓交易所的盘口
	if e.pos != nil && !strings.EqualFold(u.Exchange, e.posVenue) {
		return nil
	}

	bid, ask := u.BestBid(), u.BestAsk()
	spreadPct := service.SpreadPct(bid.Price, ask.Price)

	if e.pos != nil {
		mark := bid.Price
		if e.pos.Side == model.SideShort {
			mark = ask.Price
		}
		if stop, pct := e.risk.ShouldStopLoss(e.instrument, e.pos, mark); stop {
			log.Warn().
				Str("strategy", e.name).
				Str("symbol", e.instrument.Symbol).
				Float64("pnl_pct", pct).
				Float64("stop_loss_pct", e.instrument.StopLossPct).
				Msg("stop loss triggered")
			e.closeLocked(u, mark, model.CloseStopLoss)
		}
	}

	sig := e.strategy.Evaluate(u, spreadPct, e.pos)
	if sig.Action == model.ActionNone {
		return nil
	}
	e.signals++
	e.emit(e.event(model.EventSignalGenerated, u).
		With("action", string(sig.Action)).
		With("size", sig.Size).
		With("price", sig.Price).
		With("spread_pct", spreadPct))

	// 反手时先平仓，平仓盈亏计入回撤检查
	pending := 0.0
	if e.reverses(sig) {
		pending = e.pos.PnL(e.fillPrice(sig, bid, ask))
	}
	if err := e.risk.Evaluate(e.instrument, sig, pending); err != nil {
		e.rejected++
		log.Info().Str("strategy", e.name).Str("action", string(sig.Action)).Err(err).Msg("signal rejected")
		e.emit(e.event(model.EventSignalRejected, u).With("action", string(sig.Action)).With("reason", err.Error()))
		return nil
	}

	e.executeLocked(u, sig, e.fillPrice(sig, bid, ask))
	return nil
}

// fillPrice 买在最优卖价，卖在最优买价
func (e *Engine) fillPrice(sig model.Signal, bid, ask model.Order) float64 {
	if sig.Action == model.ActionBuy {
		return ask.Price
	}
	return bid.Price
}

func (e *Engine) reverses(sig model.Signal) bool {
	if e.pos == nil {
		return false
	}
	return (sig.Action == model.ActionBuy && e.pos.Side == model.SideShort) ||
		(sig.Action == model.ActionSell && e.pos.Side == model.SideLong)
}

func (e *Engine) executeLocked(u *model.OrderBookUpdate, sig model.Signal, price float64) {
	side := model.SideLong
	if sig.Action == model.ActionSell {
		side = model.SideShort
	}
	if e.pos != nil {
		if e.pos.Side == side {
			return
		}
		e.closeLocked(u, price, model.CloseReversal)
	}

	e.pos = &model.Position{Side: side, Size: sig.Size, EntryPrice: price, OpenedAt: u.Timestamp}
	e.posVenue = u.Exchange

	log.Info().
		Str("strategy", e.name).
		Str("exchange", u.Exchange).
		Str("symbol", e.instrument.Symbol).
		Str("side", string(side)).
		Float64("size", sig.Size).
		Float64("price", price).
		Msg("position opened")
	e.emit(e.event(model.EventPositionOpened, u).
		With("side", string(side)).
		With("size", sig.Size).
		With("price", price))
}

func (e *Engine) closeLocked(u *model.OrderBookUpdate, price float64, reason model.CloseReason) {
	pos := e.pos
	pnl := pos.PnL(price)
	trade := model.Trade{
		Strategy:   e.name,
		Exchange:   e.posVenue,
		Symbol:     e.instrument.Symbol,
		Side:       pos.Side,
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		PnL:        pnl,
		Reason:     reason,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   u.Timestamp,
	}
	e.trades = append(e.trades, trade)
	e.risk.RecordRealized(pnl)
	e.pos = nil
	e.posVenue = ""

	log.Info().
		Str("strategy", e.name).
		Str("symbol", e.instrument.Symbol).
		Str("side", string(trade.Side)).
		Str("reason", string(reason)).
		Float64("entry", trade.EntryPrice).
		Float64("exit", price).
		Float64("pnl", pnl).
		Msg("position closed")
	e.emit(e.event(model.EventPositionClosed, u).
		With("side", string(trade.Side)).
		With("reason", string(reason)).
		With("entry_price", trade.EntryPrice).
		With("exit_price", price).
		With("pnl", pnl))
}

func (e *Engine) event(typ model.EventType, u *model.OrderBookUpdate) model.Event {
	ev := model.NewEvent(typ, u.Exchange, e.instrument.Symbol)
	ev.Strategy = e.name
	return ev
}

func (e *Engine) emit(ev model.Event) {
	if e.telemetry == nil {
		return
	}
	if err := e.telemetry.Emit(context.Background(), ev); err != nil {
		log.Debug().Str("strategy", e.name).Str("event", string(ev.Type)).Err(err).Msg("telemetry emit failed")
	}
}
