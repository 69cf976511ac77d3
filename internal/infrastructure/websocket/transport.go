package websocket

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

var (
	ErrAlreadyRunning = errors.New("websocket: transport already running")
	ErrNoStreams      = errors.New("websocket: no streams")
	ErrNilHandler     = errors.New("websocket: nil handler")
	ErrClosed         = errors.New("websocket: transport closed")
	errKicked         = errors.New("websocket: reconnect requested")
)

// State 连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Options 传输层参数
type Options struct {
	Name             string
	QueueSize        int
	Overflow         OverflowPolicy
	IdleLog          time.Duration
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	Backoff          Backoff
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		QueueSize:        1024,
		Overflow:         OverflowDropOldest,
		IdleLog:          5 * time.Second,
		PingInterval:     25 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		Backoff:          DefaultBackoff(),
	}
}

func (o *Options) applyDefaults() {
	d := DefaultOptions()
	if o.QueueSize <= 0 {
		o.QueueSize = d.QueueSize
	}
	if o.IdleLog <= 0 {
		o.IdleLog = d.IdleLog
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.Backoff == (Backoff{}) {
		o.Backoff = d.Backoff
	}
}

type pendingRequest struct {
	op      string
	sub     SubscriptionID
	streams []string
}

// SubscriptionInfo 订阅状态快照
type SubscriptionInfo struct {
	ID        SubscriptionID `json:"id"`
	Streams   []string       `json:"streams"`
	Queued    int            `json:"queued"`
	Delivered int64          `json:"delivered"`
	Dropped   int64          `json:"dropped"`
}

// Stats 传输层计数
type Stats struct {
	Name          string             `json:"name"`
	URL           string             `json:"url"`
	State         string             `json:"state"`
	Connects      int64              `json:"connects"`
	DecodeErrors  int64              `json:"decode_errors"`
	Unrouted      int64              `json:"unrouted"`
	Subscriptions []SubscriptionInfo `json:"subscriptions"`
}

// Transport 单连接的流式订阅客户端：维护连接、重连后重放订阅、按 stream 分发
type Transport struct {
	url    string
	codec  port.Codec
	opts   Options
	dialer *websocket.Dialer

	running atomic.Bool
	closed  atomic.Bool
	state   atomic.Int32
	reqID   atomic.Uint64
	subID   atomic.Uint64

	// mu 串行化 "登记+发送" 与 "连上后重放"，保证 stream 不丢不重
	mu      sync.Mutex
	sess    *session
	pending map[uint64]pendingRequest

	reg *registry

	connects     atomic.Int64
	decodeErrors atomic.Int64
	unrouted     atomic.Int64
}

// NewTransport 创建传输层，调用 Run 之后才会建立连接
func NewTransport(url string, codec port.Codec, opts Options) *Transport {
	opts.applyDefaults()
	if opts.Name == "" {
		opts.Name = url
	}
	return &Transport{
		url:   strings.TrimSpace(url),
		codec: codec,
		opts:  opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		pending: make(map[uint64]pendingRequest),
		reg:     newRegistry(),
	}
}

func (t *Transport) Name() string { return t.opts.Name }

func (t *Transport) State() State { return State(t.state.Load()) }

func (t *Transport) setState(s State) { t.state.Store(int32(s)) }

// Run 建立连接并在断开后重连，直到 ctx 结束
func (t *Transport) Run(ctx context.Context) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer t.running.Store(false)
	defer t.setState(StateDisconnected)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if t.closed.Load() {
			return ErrClosed
		}

		t.setState(StateConnecting)
		log.Warn().Str("transport", t.opts.Name).Str("url", t.url).Int("attempt", attempt).Msg("ws connecting")

		conn, err := t.dial(ctx)
		if err != nil {
			attempt++
			wait := t.opts.Backoff.Next(attempt)
			log.Error().Str("transport", t.opts.Name).Err(err).Dur("retry_in", wait).Msg("ws dial failed")
			if !sleepCtx(ctx, wait) {
				return ctx.Err()
			}
			continue
		}

		attempt = 0
		t.connects.Add(1)
		sess := newSession(conn, t.opts.WriteTimeout)

		if err := t.activate(sess); err != nil {
			sess.fail(err)
			t.deactivate(sess)
			attempt++
			wait := t.opts.Backoff.Next(attempt)
			log.Error().Str("transport", t.opts.Name).Err(err).Dur("retry_in", wait).Msg("ws resubscribe failed")
			if !sleepCtx(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		log.Info().Str("transport", t.opts.Name).Int("subscriptions", t.reg.count()).Msg("ws connected")

		err = t.serve(ctx, sess)
		t.deactivate(sess)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if t.closed.Load() {
			return ErrClosed
		}

		attempt++
		wait := t.opts.Backoff.Next(attempt)
		log.Warn().Str("transport", t.opts.Name).Err(err).Dur("retry_in", wait).Msg("ws disconnected, reconnecting")
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	cctx, cancel := context.WithTimeout(ctx, t.opts.HandshakeTimeout)
	defer cancel()

	conn, _, err := t.dialer.DialContext(cctx, t.url, nil)
	if err != nil {
		return nil, &model.TransportError{Op: "dial", URL: t.url, Err: err}
	}
	return conn, nil
}

// activate 标记已连接并重放全部订阅，整个过程持有 mu
func (t *Transport) activate(sess *session) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sess = sess
	t.pending = make(map[uint64]pendingRequest)
	t.setState(StateConnected)

	sent := make(map[string]struct{})
	for _, sub := range t.reg.ordered() {
		streams := make([]string, 0, len(sub.streams))
		for _, s := range sub.streams {
			if _, dup := sent[s]; dup {
				continue
			}
			sent[s] = struct{}{}
			streams = append(streams, s)
		}
		if len(streams) == 0 {
			continue
		}
		if err := t.sendLocked(sess, "subscribe", sub.id, streams); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) deactivate(sess *session) {
	t.mu.Lock()
	if t.sess == sess {
		t.sess = nil
		t.pending = make(map[uint64]pendingRequest)
	}
	t.mu.Unlock()
	if !t.closed.Load() {
		t.setState(StateConnecting)
	}
}

// serve 读循环 + 心跳，返回本次会话的第一个错误
func (t *Transport) serve(ctx context.Context, sess *session) error {
	conn := sess.conn
	_ = conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))
		return nil
	})

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				sess.fail(&model.TransportError{Op: "read", URL: t.url, Err: err})
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))
			t.dispatch(b)
		}
	}()

	pingTicker := time.NewTicker(t.opts.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			sess.fail(ctx.Err())
			<-readerDone
			return ctx.Err()
		case <-sess.done:
			<-readerDone
			return sess.err
		case <-pingTicker.C:
			if err := sess.ping(); err != nil {
				sess.fail(&model.TransportError{Op: "ping", URL: t.url, Err: err})
			}
		}
	}
}

// dispatch 分类入站帧并投递到对应订阅的队列
func (t *Transport) dispatch(raw []byte) {
	in, err := t.codec.Classify(raw)
	if err != nil {
		t.decodeErrors.Add(1)
		log.Warn().Str("transport", t.opts.Name).Err(err).Int("bytes", len(raw)).Msg("frame decode failed, dropped")
		return
	}

	switch in.Kind {
	case port.FrameAck:
		t.resolve(in)
	case port.FrameData:
		subs := t.reg.lookup(in.Frame.Stream)
		if len(subs) == 0 {
			t.unrouted.Add(1)
			log.Debug().Str("transport", t.opts.Name).Str("stream", in.Frame.Stream).Msg("frame for unregistered stream dropped")
			return
		}
		if in.Frame.Received.IsZero() {
			in.Frame.Received = time.Now()
		}
		for _, sub := range subs {
			if !sub.q.offer(in.Frame) {
				log.Debug().
					Str("transport", t.opts.Name).
					Uint64("subscription", uint64(sub.id)).
					Str("stream", in.Frame.Stream).
					Msg("subscription queue full, frame dropped")
			}
		}
	}
}

func (t *Transport) resolve(in port.Inbound) {
	t.mu.Lock()
	req, ok := t.pending[in.RequestID]
	delete(t.pending, in.RequestID)
	t.mu.Unlock()

	if !ok {
		log.Debug().Str("transport", t.opts.Name).Uint64("request_id", in.RequestID).Msg("ack for unknown request")
		return
	}
	if in.AckErr != nil {
		log.Error().
			Str("transport", t.opts.Name).
			Str("op", req.op).
			Strs("streams", req.streams).
			Err(in.AckErr).
			Msg("control request rejected")
		return
	}
	log.Debug().
		Str("transport", t.opts.Name).
		Str("op", req.op).
		Uint64("subscription", uint64(req.sub)).
		Strs("streams", req.streams).
		Msg("control request acknowledged")
}

// Subscribe 登记订阅意图；已连接时立即发送订阅帧
func (t *Transport) Subscribe(streams []string, h port.FrameHandler) (SubscriptionID, error) {
	if h == nil {
		return 0, ErrNilHandler
	}
	streams = cleanStreams(streams)
	if len(streams) == 0 {
		return 0, ErrNoStreams
	}
	if t.closed.Load() {
		return 0, ErrClosed
	}

	id := SubscriptionID(t.subID.Add(1))
	q := newConsumer(t.opts.Name, id, t.opts.QueueSize, t.opts.Overflow, t.opts.IdleLog, h)
	go q.run()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		q.stop()
		return 0, ErrClosed
	}

	fresh := t.reg.add(&subscription{id: id, streams: streams, q: q})
	if t.sess != nil && len(fresh) > 0 {
		if err := t.sendLocked(t.sess, "subscribe", id, fresh); err != nil {
			// 已登记，重连后会重放
			log.Warn().Str("transport", t.opts.Name).Err(err).Msg("subscribe send failed, will replay on reconnect")
			t.sess.fail(err)
		}
	}
	log.Info().Str("transport", t.opts.Name).Uint64("subscription", uint64(id)).Strs("streams", streams).Msg("subscribed")
	return id, nil
}

// Unsubscribe 删除订阅并释放队列；未知 id 直接返回
func (t *Transport) Unsubscribe(id SubscriptionID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, orphaned, ok := t.reg.remove(id)
	if !ok {
		return
	}
	sub.q.stop()

	if t.sess != nil && len(orphaned) > 0 {
		if err := t.sendLocked(t.sess, "unsubscribe", id, orphaned); err != nil {
			log.Warn().Str("transport", t.opts.Name).Err(err).Msg("unsubscribe send failed")
			t.sess.fail(err)
		}
	}
	log.Info().Str("transport", t.opts.Name).Uint64("subscription", uint64(id)).Msg("unsubscribed")
}

// Reconnect 主动断开当前连接；并发调用只会触发一次重连
func (t *Transport) Reconnect() {
	t.mu.Lock()
	sess := t.sess
	t.mu.Unlock()
	if sess != nil {
		sess.fail(errKicked)
	}
}

// Close 停止所有订阅并断开连接，Run 随后返回 ErrClosed
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	for _, sub := range t.reg.drain() {
		sub.q.stop()
	}
	sess := t.sess
	t.mu.Unlock()
	if sess != nil {
		sess.fail(ErrClosed)
	}
	t.setState(StateDisconnected)
	return nil
}

// Subscriptions 当前登记的订阅（按 id 排序）
func (t *Transport) Subscriptions() []SubscriptionInfo {
	return t.Stats().Subscriptions
}

// Stats 状态快照
func (t *Transport) Stats() Stats {
	subs := t.reg.ordered()
	infos := make([]SubscriptionInfo, 0, len(subs))
	for _, sub := range subs {
		infos = append(infos, SubscriptionInfo{
			ID:        sub.id,
			Streams:   append([]string(nil), sub.streams...),
			Queued:    sub.q.queued(),
			Delivered: sub.q.delivered.Load(),
			Dropped:   sub.q.dropped.Load(),
		})
	}
	return Stats{
		Name:          t.opts.Name,
		URL:           t.url,
		State:         t.State().String(),
		Connects:      t.connects.Load(),
		DecodeErrors:  t.decodeErrors.Load(),
		Unrouted:      t.unrouted.Load(),
		Subscriptions: infos,
	}
}

func (t *Transport) sendLocked(sess *session, op string, sub SubscriptionID, streams []string) error {
	reqID := t.reqID.Add(1)

	var (
		b   []byte
		err error
	)
	if op == "unsubscribe" {
		b, err = t.codec.EncodeUnsubscribe(reqID, streams)
	} else {
		b, err = t.codec.EncodeSubscribe(reqID, streams)
	}
	if err != nil {
		return err
	}
	if err := sess.write(b); err != nil {
		return &model.TransportError{Op: "write", URL: t.url, Err: err}
	}
	t.pending[reqID] = pendingRequest{op: op, sub: sub, streams: streams}
	return nil
}

var _ port.StreamTransport = (*Transport)(nil)

func cleanStreams(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
