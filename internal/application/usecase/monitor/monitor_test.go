package monitor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xbook/internal/domain/model"
)

func quote(ex, sym string, bid, ask float64) *model.OrderBookUpdate {
	return &model.OrderBookUpdate{
		Exchange:   ex,
		Instrument: &model.Instrument{Symbol: sym},
		Bids:       []model.Order{{Price: bid, Quantity: 1}},
		Asks:       []model.Order{{Price: ask, Quantity: 1}},
	}
}

func TestStateApply(t *testing.T) {
	st := NewState([]string{"btc_usd", "BTC_USD", "", "ETH_USD"})
	assert.Equal(t, []string{"BTC_USD", "ETH_USD"}, st.Symbols())

	assert.True(t, st.Apply(quote("binance", "BTC_USD", 100, 101)))
	assert.False(t, st.Apply(quote("BINANCE", "BTC_USD", 100, 101)), "unchanged top of book")
	assert.True(t, st.Apply(quote("BINANCE", "BTC_USD", 100, 102)))
	assert.True(t, st.Apply(quote("DERIBIT", "BTC_USD", 99, 100)))

	assert.False(t, st.Apply(quote("BINANCE", "SOL_USD", 1, 2)), "unknown symbol")
	assert.False(t, st.Apply(quote("", "BTC_USD", 1, 2)))
	empty := quote("BINANCE", "BTC_USD", 1, 2)
	empty.Bids = nil
	assert.False(t, st.Apply(empty))

	snap := st.Snapshot()
	require.Len(t, snap["BTC_USD"], 2)
	assert.Equal(t, "BINANCE", snap["BTC_USD"][0].Exchange)
	assert.Equal(t, "102", snap["BTC_USD"][0].Ask.String())
	assert.Empty(t, snap["ETH_USD"])
}

func TestFormatterRender(t *testing.T) {
	st := NewState([]string{"BTC_USD", "ETH_USD"})
	st.Apply(quote("BINANCE", "BTC_USD", 100, 100.05))

	line := NewFormatter(0.1, 0.5).Render(st, RenderSnapshot)
	assert.Contains(t, line, "BTC_USD")
	assert.Contains(t, line, "B:")
	assert.Contains(t, line, "s=0.0500%")
	assert.Contains(t, line, ansiGreen+"s=0.0500%")
	assert.Contains(t, line, "ETH_USD --")
	assert.False(t, strings.HasPrefix(line, "\r"))

	live := NewFormatter(0.1, 0.5).Render(st, RenderLive)
	assert.True(t, strings.HasPrefix(live, "\r"))
	assert.True(t, strings.HasSuffix(live, ansiClearEOL))
}

type fakeSink struct {
	mu   sync.Mutex
	live []string
}

func (s *fakeSink) WriteLive(line string) error {
	s.mu.Lock()
	s.live = append(s.live, line)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) WriteSnapshot(time.Time, string) error { return nil }
func (s *fakeSink) NewLine() error { return nil }

type captureTelemetry struct {
	events []model.Event
}

func (c *captureTelemetry) Emit(_ context.Context, ev model.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func TestServiceRefreshesOnlyOnChange(t *testing.T) {
	sink := &fakeSink{}
	s := NewService(ServiceDeps{Symbols: []string{"BTC_USD"}, Sink: sink, MinSpreadPct: 0.1, MaxSpreadPct: 0.5})

	require.NoError(t, s.OnOrderBookUpdate(quote("BINANCE", "BTC_USD", 100, 101)))
	require.NoError(t, s.OnOrderBookUpdate(quote("BINANCE", "BTC_USD", 100, 101)))
	require.NoError(t, s.OnOrderBookUpdate(quote("BINANCE", "BTC_USD", 100.5, 101)))
	assert.Len(t, sink.live, 2)
	assert.Equal(t, "monitor", s.Name())
}

func TestServicePersistsSnapshots(t *testing.T) {
	tel := &captureTelemetry{}
	s := NewService(ServiceDeps{Symbols: []string{"BTC_USD"}, Sink: &fakeSink{}, Telemetry: tel})
	require.NoError(t, s.OnOrderBookUpdate(quote("BINANCE", "BTC_USD", 67434, 67434.5)))

	now := time.Now()
	s.persist(context.Background(), now)
	require.Len(t, tel.events, 1)
	ev := tel.events[0]
	assert.Equal(t, model.EventBookSnapshot, ev.Type)
	assert.Equal(t, "BINANCE", ev.Exchange)
	assert.Equal(t, "BTC_USD", ev.Symbol)
	assert.Equal(t, "67434", ev.Fields["bid"])
	assert.Equal(t, "67434.5", ev.Fields["ask"])
	assert.Equal(t, now, ev.Time)
}
