package websocket

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"xbook/internal/application/port"
)

// OverflowPolicy 订阅队列满时的处理方式
type OverflowPolicy int

const (
	OverflowDropOldest OverflowPolicy = iota // 丢最旧的一帧（全量盘口，新帧覆盖旧帧）
	OverflowDropNewest                       // 丢当前帧
)

// ParseOverflowPolicy "drop_oldest" / "drop_newest"
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "drop_oldest":
		return OverflowDropOldest, nil
	case "drop_newest":
		return OverflowDropNewest, nil
	}
	return OverflowDropOldest, fmt.Errorf("unknown overflow policy %q", s)
}

// consumer 每个订阅一个有界队列 + 一个消费协程
type consumer struct {
	id      SubscriptionID
	owner   string
	ch      chan port.Frame
	policy  OverflowPolicy
	handler port.FrameHandler
	idle    time.Duration

	quit chan struct{}
	done chan struct{}
	once sync.Once

	delivered atomic.Int64
	dropped   atomic.Int64
}

func newConsumer(owner string, id SubscriptionID, size int, policy OverflowPolicy, idle time.Duration, h port.FrameHandler) *consumer {
	if size <= 0 {
		size = 1024
	}
	if idle <= 0 {
		idle = 5 * time.Second
	}
	return &consumer{
		id:      id,
		owner:   owner,
		ch:      make(chan port.Frame, size),
		policy:  policy,
		handler: h,
		idle:    idle,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// offer 非阻塞入队，分发路径永远不会卡在慢消费者上
func (c *consumer) offer(f port.Frame) bool {
	select {
	case <-c.quit:
		return false
	default:
	}

	select {
	case c.ch <- f:
		return true
	default:
	}

	if c.policy == OverflowDropNewest {
		c.dropped.Add(1)
		return false
	}

	select {
	case <-c.ch:
		c.dropped.Add(1)
	default:
	}
	select {
	case c.ch <- f:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

func (c *consumer) run() {
	defer close(c.done)

	idle := time.NewTimer(c.idle)
	defer idle.Stop()

	for {
		select {
		case <-c.quit:
			return
		case f := <-c.ch:
			c.deliver(f)
			idle.Reset(c.idle)
		case <-idle.C:
			// 只用于存活日志
			log.Debug().
				Str("transport", c.owner).
				Uint64("subscription", uint64(c.id)).
				Dur("idle", c.idle).
				Msg("no frames received")
			idle.Reset(c.idle)
		}
	}
}

func (c *consumer) deliver(f port.Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("transport", c.owner).
				Uint64("subscription", uint64(c.id)).
				Str("stream", f.Stream).
				Interface("panic", r).
				Msg("subscription handler panicked")
		}
	}()
	c.handler(f)
	c.delivered.Add(1)
}

// stop 不等待消费协程退出，允许在回调里退订自己
func (c *consumer) stop() {
	c.once.Do(func() { close(c.quit) })
}

func (c *consumer) queued() int { return len(c.ch) }
