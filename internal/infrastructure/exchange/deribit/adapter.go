package deribit

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
	DefaultWsURL   = "wss://www.deribit.com/ws/api/v2"
	DefaultRestURL = "https://www.deribit.com"
	DefaultDepth   = 10
)

// 分组盘口频道支持的档位
var channelDepths = []int{1, 10, 20}

type bookMsg struct {
	InstrumentName string           `json:"instrument_name"`
	ChangeID       int64            `json:"change_id"`
	Timestamp      int64            `json:"timestamp"`
	Bids           []exchange.Level `json:"bids"`
	Asks           []exchange.Level `json:"asks"`
}

type snapshotResp struct {
	Result *bookMsg  `json:"result"`
	Error  *rpcError `json:"error"`
}

// Adapter Deribit 永续合约盘口适配器
type Adapter struct {
	cfg    exchange.VenueConfig
	conv   exchange.SymbolConverter
	codec  Codec
	client *http.Client
	byWire map[string]*model.Instrument
}

// New 构建适配器
func New(cfg exchange.VenueConfig, instruments *domain.InstrumentRegistry) (*Adapter, error) {
	if strings.TrimSpace(cfg.WsURL) == "" {
		cfg.WsURL = DefaultWsURL
	}
	if strings.TrimSpace(cfg.RestURL) == "" {
		cfg.RestURL = DefaultRestURL
	}
	cfg.Depth = channelDepth(cfg.Depth)

	a := &Adapter{
		cfg:    cfg,
		conv:   exchange.NewPerpetualConverter("-PERPETUAL", "USD"),
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

func (a *Adapter) Name() string { return application.ExchangeDeribit }

func (a *Adapter) Endpoint() string { return a.cfg.WsURL }

func (a *Adapter) Codec() port.Codec { return a.codec }

// NormalizeSymbol BTC_USD -> BTC-PERPETUAL
func (a *Adapter) NormalizeSymbol(logical string) string {
	return a.conv.Normalize(logical)
}

// StreamNamesFor book.BTC-PERPETUAL.none.10.100ms
func (a *Adapter) StreamNamesFor(instruments []*model.Instrument) []string {
	out := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		wire := a.NormalizeSymbol(inst.Symbol)
		if wire == "" {
			continue
		}
		out = append(out, fmt.Sprintf("book.%s.none.%d.100ms", wire, a.cfg.Depth))
	}
	return out
}

// ParseUpdate 优先使用 instrument_name，缺失时从频道名取
func (a *Adapter) ParseUpdate(f port.Frame) (*model.OrderBookUpdate, error) {
	var msg bookMsg
	if err := json.Unmarshal(f.Payload, &msg); err != nil {
		return nil, &model.ProtocolDecodeError{Exchange: a.Name(), Reason: "book payload", Err: err}
	}

	wire := strings.ToUpper(msg.InstrumentName)
	if wire == "" {
		wire = instrumentFromChannel(f.Stream)
	}
	inst, ok := a.byWire[wire]
	if !ok {
		return nil, &model.UnknownInstrumentError{Exchange: a.Name(), WireSymbol: wire}
	}

	ts := f.Received
	if msg.Timestamp > 0 {
		ts = time.UnixMilli(msg.Timestamp)
	}
	return exchange.NewUpdate(a.Name(), inst, msg.Bids, msg.Asks, msg.ChangeID, ts), nil
}

// GetSnapshot GET /api/v2/public/get_order_book?instrument_name=&depth=
func (a *Adapter) GetSnapshot(ctx context.Context, inst *model.Instrument, depth int) (*model.OrderBookUpdate, error) {
	if inst == nil {
		return nil, fmt.Errorf("deribit snapshot: nil instrument")
	}
	if depth <= 0 {
		depth = 20
	}
	q := url.Values{}
	q.Set("instrument_name", a.NormalizeSymbol(inst.Symbol))
	q.Set("depth", strconv.Itoa(depth))

	endpoint, err := exchange.BuildQueryURL(a.cfg.RestURL, "/api/v2/public/get_order_book", q)
	if err != nil {
		return nil, err
	}

	var resp snapshotResp
	if err := exchange.GetJSON(ctx, a.client, a.Name(), endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("deribit error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Result == nil {
		return nil, &model.ProtocolDecodeError{Exchange: a.Name(), Reason: "snapshot without result"}
	}

	ts := time.Now()
	if resp.Result.Timestamp > 0 {
		ts = time.UnixMilli(resp.Result.Timestamp)
	}
	return exchange.NewUpdate(a.Name(), inst, resp.Result.Bids, resp.Result.Asks, resp.Result.ChangeID, ts), nil
}

// book.BTC-PERPETUAL.none.10.100ms -> BTC-PERPETUAL
func instrumentFromChannel(channel string) string {
	parts := strings.Split(channel, ".")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToUpper(parts[1])
}

func channelDepth(n int) int {
	if n <= 0 {
		return DefaultDepth
	}
	for _, d := range channelDepths {
		if n <= d {
			return d
		}
	}
	return channelDepths[len(channelDepths)-1]
}

var _ port.Exchange = (*Adapter)(nil)
