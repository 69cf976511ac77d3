package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

var (
	// ErrBufferFull 异步缓冲已满，事件被丢弃
	ErrBufferFull = errors.New("telemetry: buffer full")
	ErrClosed     = errors.New("telemetry: closed")
)

// Async 有界缓冲 + 单个写协程，调用方不等待网络 I/O
type Async struct {
	next    port.Telemetry
	ch      chan model.Event
	timeout time.Duration

	// mu 保护 closed 与 ch 的关闭
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewAsync 启动写协程；timeout 为每个事件写入下游的超时
func NewAsync(next port.Telemetry, size int, timeout time.Duration) *Async {
	if size <= 0 {
		size = 4096
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	a := &Async{
		next:    next,
		ch:      make(chan model.Event, size),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) Emit(_ context.Context, ev model.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.ch <- ev:
		return nil
	default:
		a.dropped.Add(1)
		return ErrBufferFull
	}
}

func (a *Async) loop() {
	defer close(a.done)
	for ev := range a.ch {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Emit(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event", string(ev.Type)).Msg("telemetry write failed")
		}
		cancel()
	}
}

// Dropped 因缓冲满被丢弃的事件数
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Close 停止接收并等待缓冲中的事件写完
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
	if n := a.dropped.Load(); n > 0 {
		log.Warn().Int64("dropped", n).Msg("telemetry events dropped")
	}
	return nil
}

var _ port.TelemetryCloser = (*Async)(nil)
