package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

type Repo struct {
	rdb         *redis.Client
	prefix      string
	ttl         time.Duration
	keyLatest   string // prefix + ":latest"
	eventStream string
	eventChan   string
	maxLen      int64
}

// LatestBook 最近一次的最优买卖价
type LatestBook struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Bid      string `json:"bid"`
	Ask      string `json:"ask"`
	Ts       int64  `json:"ts"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, eventStream, eventChan string, maxLen int64) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "xbook"
	}
	if strings.TrimSpace(eventStream) == "" {
		eventStream = prefix + ":events"
	}
	if strings.TrimSpace(eventChan) == "" {
		eventChan = prefix + ":events:pub"
	}
	return &Repo{
		rdb:         rdb,
		prefix:      prefix,
		ttl:         ttl,
		keyLatest:   prefix + ":latest",
		eventStream: eventStream,
		eventChan:   eventChan,
		maxLen:      maxLen,
	}
}

func (r *Repo) Emit(ctx context.Context, ev model.Event) error {
	if ev.Type == model.EventBookSnapshot {
		return r.upsertLatest(ctx, ev)
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	fields, _ := json.Marshal(ev.Fields)

	// 1) Stream: XADD <stream> * ts type ... payload
	args := &redis.XAddArgs{
		Stream: r.eventStream,
		Values: map[string]any{
			"ts_ms":    ev.Time.UnixMilli(),
			"type":     string(ev.Type),
			"exchange": ev.Exchange,
			"symbol":   ev.Symbol,
			"strategy": ev.Strategy,
			"payload":  string(fields),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	pipe := r.rdb.Pipeline()
	pipe.XAdd(ctx, args)
	// 2) PubSub: PUBLISH <channel> json
	pipe.Publish(ctx, r.eventChan, string(msg))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Repo) upsertLatest(ctx context.Context, ev model.Event) error {
	lb := LatestBook{Exchange: ev.Exchange, Symbol: ev.Symbol, Ts: ev.Time.UnixMilli()}
	if v, ok := ev.Fields["bid"].(string); ok {
		lb.Bid = v
	}
	if v, ok := ev.Fields["ask"].(string); ok {
		lb.Ask = v
	}
	b, _ := json.Marshal(lb)

	// Hash: field = "BINANCE:BTC_USD" -> json
	field := fmt.Sprintf("%s:%s", ev.Exchange, ev.Symbol)
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, field, string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Repo) Close() error { return r.rdb.Close() }

var _ port.TelemetryCloser = (*Repo)(nil)
