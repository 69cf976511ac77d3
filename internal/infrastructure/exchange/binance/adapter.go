package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"xbook/internal/application"
	"xbook/internal/application/port"
	"xbook/internal/domain"
	"xbook/internal/domain/model"
	"xbook/internal/infrastructure/exchange"
)

const (
	DefaultWsURL   = "wss://stream.binance.com:9443/stream"
	DefaultRestURL = "https://api.binance.com"
	DefaultDepth   = 10
)

// 部分深度流只支持这几个档位
var streamDepths = []int{5, 10, 20}

// depthMsg 部分深度推送与 REST 快照结构相同
type depthMsg struct {
	LastUpdateID int64            `json:"lastUpdateId"`
	Bids         []exchange.Level `json:"bids"`
	Asks         []exchange.Level `json:"asks"`
}

// Adapter Binance 现货盘口适配器
type Adapter struct {
	cfg    exchange.VenueConfig
	conv   exchange.SymbolConverter
	codec  Codec
	client *http.Client
	byWire map[string]*model.Instrument
}

// New 构建适配器，并建立线上符号到标的的反查表
func New(cfg exchange.VenueConfig, instruments *domain.InstrumentRegistry) (*Adapter, error) {
	if strings.TrimSpace(cfg.WsURL) == "" {
		cfg.WsURL = DefaultWsURL
	}
	if strings.TrimSpace(cfg.RestURL) == "" {
		cfg.RestURL = DefaultRestURL
	}
	cfg.Depth = streamDepth(cfg.Depth)

	a := &Adapter{
		cfg:    cfg,
		conv:   exchange.NewQuoteAliasConverter(map[string]string{"USD": "USDT"}),
		client: exchange.NewHTTPClient(cfg.HTTPTimeout),
		byWire: make(map[string]*model.Instrument),
	}
	if instruments != nil {
		byWire, err := exchange.IndexByWire(a.Name(), instruments.All(), a.NormalizeSymbol)
		if err != nil {
			return nil, err
		}
		a.byWire = byWire
	}
	return a, nil
}

func (a *Adapter) Name() string { return application.ExchangeBinance }

func (a *Adapter) Endpoint() string { return a.cfg.WsURL }

func (a *Adapter) Codec() port.Codec { return a.codec }

// NormalizeSymbol BTC_USD -> BTCUSDT
func (a *Adapter) NormalizeSymbol(logical string) string {
	return a.conv.Normalize(logical)
}

// StreamNamesFor btcusdt@depth10@100ms
func (a *Adapter) StreamNamesFor(instruments []*model.Instrument) []string {
	out := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		wire := strings.ToLower(a.NormalizeSymbol(inst.Symbol))
		if wire == "" {
			continue
		}
		out = append(out, fmt.Sprintf("%s@depth%d@100ms", wire, a.cfg.Depth))
	}
	return out
}

// ParseUpdate 线上符号取自 stream 名前缀
func (a *Adapter) ParseUpdate(f port.Frame) (*model.OrderBookUpdate, error) {
	wire := f.Stream
	if i := strings.IndexByte(wire, '@'); i >= 0 {
		wire = wire[:i]
	}
	wire = strings.ToUpper(wire)

	inst, ok := a.byWire[wire]
	if !ok {
		return nil, &model.UnknownInstrumentError{Exchange: a.Name(), WireSymbol: wire}
	}

	var msg depthMsg
	if err := json.Unmarshal(f.Payload, &msg); err != nil {
		return nil, &model.ProtocolDecodeError{Exchange: a.Name(), Reason: "depth payload", Err: err}
	}
	return exchange.NewUpdate(a.Name(), inst, msg.Bids, msg.Asks, msg.LastUpdateID, f.Received), nil
}

// GetSnapshot GET /api/v3/depth?symbol=&limit=
func (a *Adapter) GetSnapshot(ctx context.Context, inst *model.Instrument, depth int) (*model.OrderBookUpdate, error) {
	if inst == nil {
		return nil, fmt.Errorf("binance snapshot: nil instrument")
	}
	if depth <= 0 {
		depth = 100
	}
	q := url.Values{}
	q.Set("symbol", a.NormalizeSymbol(inst.Symbol))
	q.Set("limit", strconv.Itoa(depth))

	endpoint, err := exchange.BuildQueryURL(a.cfg.RestURL, "/api/v3/depth", q)
	if err != nil {
		return nil, err
	}

	var msg depthMsg
	if err := exchange.GetJSON(ctx, a.client, a.Name(), endpoint, &msg); err != nil {
		return nil, err
	}
	return exchange.NewUpdate(a.Name(), inst, msg.Bids, msg.Asks, msg.LastUpdateID, time.Now()), nil
}

func streamDepth(n int) int {
	if n <= 0 {
		return DefaultDepth
	}
	for _, d := range streamDepths {
		if n <= d {
			return d
		}
	}
	return streamDepths[len(streamDepths)-1]
}

var _ port.Exchange = (*Adapter)(nil)
