package decision

import (
	"time"

	"xbook/internal/domain/model"
)

// Snapshot 引擎状态的只读副本
type Snapshot struct {
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`
	Exchange    string          `json:"exchange,omitempty"`
	Symbol      string          `json:"symbol"`
	State       State           `json:"state"`
	Position    *model.Position `json:"position,omitempty"`
	Trades      int             `json:"trades"`
	RealizedPnL float64         `json:"realized_pnl"`
	DrawdownPct float64         `json:"drawdown_pct"`
	Updates     int64           `json:"updates"`
	Signals     int64           `json:"signals"`
	Rejected    int64           `json:"rejected"`
	LastUpdate  time.Time       `json:"last_update"`
}

// State 当前状态
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	switch {
	case e.pos == nil:
		return StateFlat
	case e.pos.Side == model.SideShort:
		return StateShortOpen
	default:
		return StateLongOpen
	}
}

// Position 当前持仓副本，空仓返回 nil
func (e *Engine) Position() *model.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pos == nil {
		return nil
	}
	p := *e.pos
	return &p
}

// Trades 交易记录副本
func (e *Engine) Trades() []model.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Name:        e.name,
		Kind:        e.strategy.Kind(),
		Exchange:    e.exchange,
		Symbol:      e.instrument.Symbol,
		State:       e.stateLocked(),
		Trades:      len(e.trades),
		RealizedPnL: e.risk.RealizedPnL(),
		DrawdownPct: e.risk.DrawdownPct(),
		Updates:     e.updates,
		Signals:     e.signals,
		Rejected:    e.rejected,
		LastUpdate:  e.lastUpdate,
	}
	if e.pos != nil {
		p := *e.pos
		snap.Position = &p
	}
	return snap
}
