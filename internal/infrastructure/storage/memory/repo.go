package memory

import (
	"context"
	"sync"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

// Repo 固定容量的最近事件环形缓冲
type Repo struct {
	mu   sync.RWMutex
	buf  []model.Event
	next int
	full bool
}

func New(capacity int) *Repo {
	if capacity <= 0 {
		capacity = 512
	}
	return &Repo{buf: make([]model.Event, capacity)}
}

func (r *Repo) Emit(_ context.Context, ev model.Event) error {
	r.mu.Lock()
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return nil
}

// RecentEvents 最新的在前
func (r *Repo) RecentEvents(_ context.Context, limit int) ([]model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out, nil
}

var (
	_ port.Telemetry   = (*Repo)(nil)
	_ port.EventReader = (*Repo)(nil)
)
