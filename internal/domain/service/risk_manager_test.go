package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xbook/internal/domain/model"
)

func TestCheckPositionSize(t *testing.T) {
	inst := &model.Instrument{Symbol: "BTC_USD", MinSize: 0.01, MaxSize: 0.5}
	rm := NewRiskManager("s", 0)

	tests := []struct {
		name    string
		size    float64
		wantErr bool
	}{
		{"at max", 0.5, false},
		{"at min", 0.01, false},
		{"above max", 0.51, true},
		{"below min", 0.005, true},
		{"zero", 0, true},
		{"negative", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rm.CheckPositionSize(inst, tt.size)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrRiskRejected))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckDrawdownCountsOnlyLosses(t *testing.T) {
	inst := &model.Instrument{Symbol: "BTC_USD", MaxSize: 1, MaxDrawdownPct: 5}
	rm := NewRiskManager("s", 1000)

	assert.NoError(t, rm.CheckDrawdown(inst, 500))
	assert.NoError(t, rm.CheckDrawdown(inst, -50))
	assert.Error(t, rm.CheckDrawdown(inst, -51))

	rm.RecordRealized(-40)
	assert.InDelta(t, 4.0, rm.DrawdownPct(), 1e-9)
	assert.NoError(t, rm.CheckDrawdown(inst, -10))
	assert.Error(t, rm.CheckDrawdown(inst, -11))

	rm.RecordRealized(100)
	assert.Equal(t, 0.0, rm.DrawdownPct())
	assert.InDelta(t, 60.0, rm.RealizedPnL(), 1e-9)
}

func TestCheckDrawdownDisabledWithoutCapital(t *testing.T) {
	inst := &model.Instrument{Symbol: "BTC_USD", MaxSize: 1, MaxDrawdownPct: 1}
	rm := NewRiskManager("s", 0)
	assert.False(t, rm.CapitalTracking())
	assert.NoError(t, rm.CheckDrawdown(inst, -1e9))
}

func TestEvaluate(t *testing.T) {
	inst := &model.Instrument{Symbol: "BTC_USD", MaxSize: 1, MaxDrawdownPct: 2}
	rm := NewRiskManager("s", 100)

	assert.NoError(t, rm.Evaluate(inst, model.Signal{Action: model.ActionBuy, Size: 1}, 0))
	assert.Error(t, rm.Evaluate(inst, model.Signal{Action: model.ActionBuy, Size: 2}, 0))

	err := rm.Evaluate(inst, model.Signal{Action: model.ActionSell, Size: 1}, -3)
	var rej *model.RiskRejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "s", rej.Strategy)
	assert.Contains(t, rej.Reason, "drawdown")
}

func TestShouldStopLoss(t *testing.T) {
	inst := &model.Instrument{Symbol: "BTC_USD", StopLossPct: 1}
	rm := NewRiskManager("s", 0)

	long := &model.Position{Side: model.SideLong, Size: 1, EntryPrice: 67434.5}
	stop, pct := rm.ShouldStopLoss(inst, long, 66000)
	assert.True(t, stop)
	assert.InDelta(t, -2.127, pct, 0.001)

	stop, _ = rm.ShouldStopLoss(inst, long, 67000)
	assert.False(t, stop)

	short := &model.Position{Side: model.SideShort, Size: 1, EntryPrice: 100}
	stop, _ = rm.ShouldStopLoss(inst, short, 101.5)
	assert.True(t, stop)
	stop, _ = rm.ShouldStopLoss(inst, short, 99)
	assert.False(t, stop)

	stop, _ = rm.ShouldStopLoss(inst, nil, 1)
	assert.False(t, stop)
	stop, _ = rm.ShouldStopLoss(&model.Instrument{}, long, 1)
	assert.False(t, stop, "stop loss disabled")
}
