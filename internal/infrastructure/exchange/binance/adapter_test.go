package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xbook/internal/application/port"
	"xbook/internal/domain"
	"xbook/internal/domain/model"
	"xbook/internal/infrastructure/exchange"
)

func testRegistry(t *testing.T) *domain.InstrumentRegistry {
	t.Helper()
	reg, err := domain.NewInstrumentRegistry([]model.Instrument{
		{Symbol: "BTC_USD", MaxSize: 1},
		{Symbol: "ETH_USDT", MaxSize: 10},
	})
	require.NoError(t, err)
	return reg
}

func mustNew(t *testing.T, cfg exchange.VenueConfig, instruments *domain.InstrumentRegistry) *Adapter {
	t.Helper()
	a, err := New(cfg, instruments)
	require.NoError(t, err)
	return a
}

func TestNormalizeSymbol(t *testing.T) {
	a := mustNew(t, exchange.VenueConfig{}, nil)
	assert.Equal(t, "BTCUSDT", a.NormalizeSymbol("BTC_USD"))
	assert.Equal(t, "BTCUSDT", a.NormalizeSymbol("BTCUSDT"))
	assert.Equal(t, "BTCUSDT", a.NormalizeSymbol(a.NormalizeSymbol("btc/usd")))
}

func TestNewRejectsWireSymbolCollision(t *testing.T) {
	reg, err := domain.NewInstrumentRegistry([]model.Instrument{
		{Symbol: "BTC_USD", MaxSize: 1},
		{Symbol: "BTC_USDT", MaxSize: 1},
	})
	require.NoError(t, err)

	_, err = New(exchange.VenueConfig{}, reg)
	assert.ErrorIs(t, err, exchange.ErrSymbolCollision)

	factory, ok := exchange.Get("BINANCE")
	require.True(t, ok)
	_, err = factory(exchange.VenueConfig{}, reg)
	assert.ErrorIs(t, err, exchange.ErrSymbolCollision)
}

func TestStreamNamesFor(t *testing.T) {
	reg := testRegistry(t)
	a := mustNew(t, exchange.VenueConfig{Depth: 7}, reg)

	assert.Equal(t, []string{"btcusdt@depth10@100ms", "ethusdt@depth10@100ms"}, a.StreamNamesFor(reg.All()))
	assert.Equal(t, DefaultWsURL, a.Endpoint())
}

func TestParseUpdate(t *testing.T) {
	a := mustNew(t, exchange.VenueConfig{}, testRegistry(t))

	payload := `{"lastUpdateId":160,"bids":[["67433.00","2.0"],["67434.00","1.5"],["67400.00","0"]],"asks":[["67435.00","1.0"],["67434.50","0.8"]]}`
	now := time.Now()
	u, err := a.ParseUpdate(port.Frame{Stream: "btcusdt@depth10@100ms", Payload: []byte(payload), Received: now})
	require.NoError(t, err)

	assert.Equal(t, "BINANCE", u.Exchange)
	assert.Equal(t, "BTC_USD", u.Symbol())
	assert.Equal(t, int64(160), u.Sequence)
	assert.Equal(t, now, u.Timestamp)
	require.Len(t, u.Bids, 2, "zero quantity level skipped")
	assert.Equal(t, 67434.0, u.BestBid().Price)
	assert.Equal(t, 1.5, u.BestBid().Quantity)
	assert.Equal(t, 67434.5, u.BestAsk().Price)
	assert.Equal(t, 0.8, u.BestAsk().Quantity)
	assert.Equal(t, model.OrderStatusOpen, u.BestAsk().Status)
	assert.NoError(t, u.Validate())
}

func TestParseUpdateErrors(t *testing.T) {
	a := mustNew(t, exchange.VenueConfig{}, testRegistry(t))

	_, err := a.ParseUpdate(port.Frame{Stream: "dogeusdt@depth10@100ms", Payload: []byte(`{"bids":[],"asks":[]}`)})
	assert.ErrorIs(t, err, model.ErrUnknownInstrument)

	_, err = a.ParseUpdate(port.Frame{Stream: "btcusdt@depth10@100ms", Payload: []byte(`{"bids":[["x","1"]]}`)})
	assert.ErrorIs(t, err, model.ErrProtocolDecode)
}

func TestCodecClassify(t *testing.T) {
	var c Codec

	in, err := c.Classify([]byte(`{"stream":"btcusdt@depth10@100ms","data":{"lastUpdateId":1,"bids":[],"asks":[]}}`))
	require.NoError(t, err)
	assert.Equal(t, port.FrameData, in.Kind)
	assert.Equal(t, "btcusdt@depth10@100ms", in.Frame.Stream)

	in, err = c.Classify([]byte(`{"result":null,"id":7}`))
	require.NoError(t, err)
	assert.Equal(t, port.FrameAck, in.Kind)
	assert.Equal(t, uint64(7), in.RequestID)
	assert.NoError(t, in.AckErr)

	in, err = c.Classify([]byte(`{"error":{"code":2,"msg":"Invalid request"},"id":8}`))
	require.NoError(t, err)
	assert.Equal(t, port.FrameAck, in.Kind)
	assert.Error(t, in.AckErr)

	_, err = c.Classify([]byte(`{"lastUpdateId":1}`))
	assert.ErrorIs(t, err, model.ErrProtocolDecode)
	_, err = c.Classify([]byte(`oops`))
	assert.ErrorIs(t, err, model.ErrProtocolDecode)
}

func TestCodecEncode(t *testing.T) {
	var c Codec
	b, err := c.EncodeSubscribe(3, []string{"btcusdt@depth10@100ms"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"SUBSCRIBE","params":["btcusdt@depth10@100ms"],"id":3}`, string(b))

	b, err = c.EncodeUnsubscribe(4, []string{"a", "b"})
	require.NoError(t, err)
	var msg controlMsg
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, "UNSUBSCRIBE", msg.Method)
	assert.Equal(t, uint64(4), msg.ID)
}

func TestGetSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"lastUpdateId":1027024,"bids":[["4.00000000","431.00000000"]],"asks":[["4.00000200","12.00000000"]]}`))
	}))
	defer srv.Close()

	reg := testRegistry(t)
	a := mustNew(t, exchange.VenueConfig{RestURL: srv.URL}, reg)
	inst, _ := reg.Get("BTC_USD")

	u, err := a.GetSnapshot(context.Background(), inst, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1027024), u.Sequence)
	assert.Equal(t, 4.0, u.BestBid().Price)
	assert.Equal(t, 4.000002, u.BestAsk().Price)
}

func TestGetSnapshotHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	reg := testRegistry(t)
	a := mustNew(t, exchange.VenueConfig{RestURL: srv.URL}, reg)
	inst, _ := reg.Get("BTC_USD")

	_, err := a.GetSnapshot(context.Background(), inst, 5)
	assert.ErrorIs(t, err, model.ErrTransport)
}

func TestRegistered(t *testing.T) {
	factory, ok := exchange.Get("BINANCE")
	require.True(t, ok)
	ex, err := factory(exchange.VenueConfig{}, testRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, "BINANCE", ex.Name())
}
