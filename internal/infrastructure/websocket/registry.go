package websocket

import (
	"sort"
	"sync"

	"xbook/internal/application/port"
)

// SubscriptionID 订阅句柄
type SubscriptionID = port.SubscriptionID

type subscription struct {
	id      SubscriptionID
	streams []string
	q       *consumer
}

// registry 订阅意图表，重连后据此重放
type registry struct {
	mu       sync.RWMutex
	subs     map[SubscriptionID]*subscription
	byStream map[string][]SubscriptionID
}

func newRegistry() *registry {
	return &registry{
		subs:     make(map[SubscriptionID]*subscription),
		byStream: make(map[string][]SubscriptionID),
	}
}

// add 返回此前没有任何订阅引用的 stream
func (r *registry) add(sub *subscription) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fresh []string
	r.subs[sub.id] = sub
	for _, s := range sub.streams {
		if len(r.byStream[s]) == 0 {
			fresh = append(fresh, s)
		}
		r.byStream[s] = append(r.byStream[s], sub.id)
	}
	return fresh
}

// remove 返回被删除的订阅和已无人引用的 stream
func (r *registry) remove(id SubscriptionID) (*subscription, []string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return nil, nil, false
	}
	delete(r.subs, id)

	var orphaned []string
	for _, s := range sub.streams {
		ids := r.byStream[s]
		for i, x := range ids {
			if x == id {
				ids = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
		if len(ids) == 0 {
			delete(r.byStream, s)
			orphaned = append(orphaned, s)
		} else {
			r.byStream[s] = ids
		}
	}
	return sub, orphaned, true
}

func (r *registry) lookup(stream string) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byStream[stream]
	if len(ids) == 0 {
		return nil
	}
	out := make([]*subscription, 0, len(ids))
	for _, id := range ids {
		if sub := r.subs[id]; sub != nil {
			out = append(out, sub)
		}
	}
	return out
}

// ordered 按订阅 id 排序
func (r *registry) ordered() []*subscription {
	r.mu.RLock()
	out := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// drain 清空并返回全部订阅
func (r *registry) drain() []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	r.subs = make(map[SubscriptionID]*subscription)
	r.byStream = make(map[string][]SubscriptionID)
	return out
}
