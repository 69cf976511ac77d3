package service

import (
	"fmt"
	"sync"

	"xbook/internal/domain/model"
)

// RiskManager 单个策略实例的风险管理器
type RiskManager struct {
	mu sync.RWMutex

	strategy       string
	initialCapital float64 // <= 0 表示不跟踪资金回撤
	realizedPnL    float64
}

// NewRiskManager 创建风险管理器
func NewRiskManager(strategy string, initialCapital float64) *RiskManager {
	return &RiskManager{strategy: strategy, initialCapital: initialCapital}
}

// CapitalTracking 是否启用资金回撤检查
func (rm *RiskManager) CapitalTracking() bool { return rm.initialCapital > 0 }

// CheckPositionSize 检查下单数量
func (rm *RiskManager) CheckPositionSize(inst *model.Instrument, size float64) error {
	if size <= 0 {
		return rm.reject("size %.8f must be positive", size)
	}
	if size > inst.MaxSize {
		return rm.reject("size %.8f exceeds max %.8f", size, inst.MaxSize)
	}
	if inst.MinSize > 0 && size < inst.MinSize {
		return rm.reject("size %.8f below min %.8f", size, inst.MinSize)
	}
	return nil
}

// CheckDrawdown 检查加上 pendingPnL 之后的回撤是否超限
func (rm *RiskManager) CheckDrawdown(inst *model.Instrument, pendingPnL float64) error {
	if !rm.CapitalTracking() {
		return nil
	}
	rm.mu.RLock()
	projected := rm.realizedPnL + pendingPnL
	rm.mu.RUnlock()

	dd := rm.drawdownPct(projected)
	if dd > inst.MaxDrawdownPct {
		return rm.reject("drawdown %.4f%% exceeds max %.4f%%", dd, inst.MaxDrawdownPct)
	}
	return nil
}

// Evaluate 风控闸门：数量和回撤都通过才放行
func (rm *RiskManager) Evaluate(inst *model.Instrument, sig model.Signal, pendingPnL float64) error {
	if err := rm.CheckPositionSize(inst, sig.Size); err != nil {
		return err
	}
	return rm.CheckDrawdown(inst, pendingPnL)
}

// ShouldStopLoss 浮亏达到止损线时返回 true，同时返回浮动盈亏百分比
func (rm *RiskManager) ShouldStopLoss(inst *model.Instrument, pos *model.Position, price float64) (bool, float64) {
	if pos == nil || inst.StopLossPct <= 0 {
		return false, 0
	}
	pct := pos.PnLPct(price)
	return pct <= -inst.StopLossPct, pct
}

// RecordRealized 记录已实现盈亏
func (rm *RiskManager) RecordRealized(pnl float64) {
	rm.mu.Lock()
	rm.realizedPnL += pnl
	rm.mu.Unlock()
}

// RealizedPnL 累计已实现盈亏
func (rm *RiskManager) RealizedPnL() float64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.realizedPnL
}

// DrawdownPct 当前回撤百分比（只计亏损）
func (rm *RiskManager) DrawdownPct() float64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.drawdownPct(rm.realizedPnL)
}

func (rm *RiskManager) drawdownPct(pnl float64) float64 {
	if rm.initialCapital <= 0 || pnl >= 0 {
		return 0
	}
	return -pnl / rm.initialCapital * 100
}

func (rm *RiskManager) reject(format string, args ...any) error {
	return &model.RiskRejectedError{Strategy: rm.strategy, Reason: fmt.Sprintf(format, args...)}
}
