package bus

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

// Bus 行情总线：把规范化后的盘口同步分发给所有观察者
// 不缓冲，单个观察者失败不影响其他观察者
type Bus struct {
	mu        sync.RWMutex
	observers []port.Observer
}

func New() *Bus {
	return &Bus{}
}

// AddObserver 重复添加无效果
func (b *Bus) AddObserver(o port.Observer) {
	if o == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, x := range b.observers {
		if x == o {
			return
		}
	}
	b.observers = append(b.observers, o)
}

// RemoveObserver 未注册时无效果
func (b *Bus) RemoveObserver(o port.Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, x := range b.observers {
		if x == o {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			return
		}
	}
}

func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// Publish 按注册顺序在调用方协程上依次投递，返回失败的观察者数量
func (b *Bus) Publish(u *model.OrderBookUpdate) int {
	b.mu.RLock()
	observers := b.observers
	b.mu.RUnlock()

	failed := 0
	for _, o := range observers {
		if err := deliver(o, u); err != nil {
			failed++
			log.Error().
				Err(err).
				Str("exchange", u.Exchange).
				Str("symbol", u.Symbol()).
				Msg("observer failed")
		}
	}
	return failed
}

func deliver(o port.Observer, u *model.OrderBookUpdate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &model.ObserverFailure{Observer: observerName(o), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if e := o.OnOrderBookUpdate(u); e != nil {
		return &model.ObserverFailure{Observer: observerName(o), Err: e}
	}
	return nil
}

func observerName(o port.Observer) string {
	if n, ok := o.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", o)
}
