package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"xbook/internal/domain/model"
)

// ErrSymbolCollision 两个标的映射到同一个线上符号
var ErrSymbolCollision = errors.New("instruments share a wire symbol")

// IndexByWire 建立线上符号到标的的反查表；映射冲突直接报错
func IndexByWire(venue string, instruments []*model.Instrument, normalize func(string) string) (map[string]*model.Instrument, error) {
	out := make(map[string]*model.Instrument, len(instruments))
	for _, inst := range instruments {
		wire := normalize(inst.Symbol)
		if prev, ok := out[wire]; ok {
			return nil, fmt.Errorf("%s: %s and %s -> %s: %w", venue, prev.Symbol, inst.Symbol, wire, ErrSymbolCollision)
		}
		out[wire] = inst
	}
	return out, nil
}

// VenueConfig 单个交易所的连接参数
type VenueConfig struct {
	WsURL       string
	RestURL     string
	Depth       int
	HTTPTimeout time.Duration
}

// Level 一个价位 [price, quantity]，同时兼容字符串和数字两种写法
type Level [2]decimal.Decimal

// BuildQueryURL builds a URL with query parameters
func BuildQueryURL(base, path string, query url.Values) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", fmt.Errorf("base url is empty")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// NewHTTPClient 默认 10s 超时
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// GetJSON 发起 GET 请求并解码 JSON 响应
func GetJSON(ctx context.Context, client *http.Client, exchange, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return &model.TransportError{Op: "get", URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &model.TransportError{
			Op:  "get",
			URL: rawURL,
			Err: fmt.Errorf("%s api error: %d %s", exchange, resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.ProtocolDecodeError{Exchange: exchange, Reason: "snapshot body", Err: err}
	}
	return nil
}

// BuildSide 价位转为 Order；bids 降序、asks 升序，数量为 0 的价位跳过
func BuildSide(levels []Level, descending bool) []model.Order {
	out := make([]model.Order, 0, len(levels))
	for _, lv := range levels {
		if !lv[1].IsPositive() {
			continue
		}
		out = append(out, model.Order{
			Price:    lv[0].InexactFloat64(),
			Quantity: lv[1].InexactFloat64(),
			Status:   model.OrderStatusOpen,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// NewUpdate 组装全量盘口
func NewUpdate(exchange string, inst *model.Instrument, bids, asks []Level, seq int64, ts time.Time) *model.OrderBookUpdate {
	if ts.IsZero() {
		ts = time.Now()
	}
	return &model.OrderBookUpdate{
		Exchange:   exchange,
		Instrument: inst,
		Bids:       BuildSide(bids, true),
		Asks:       BuildSide(asks, false),
		Sequence:   seq,
		Timestamp:  ts,
	}
}
