package telemetry

import (
	"context"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

// Filter 丢弃指定类型的事件
type Filter struct {
	next port.Telemetry
	drop map[model.EventType]struct{}
}

func NewFilter(next port.Telemetry, drop ...model.EventType) *Filter {
	m := make(map[model.EventType]struct{}, len(drop))
	for _, t := range drop {
		m[t] = struct{}{}
	}
	return &Filter{next: next, drop: m}
}

func (f *Filter) Emit(ctx context.Context, ev model.Event) error {
	if _, skip := f.drop[ev.Type]; skip {
		return nil
	}
	return f.next.Emit(ctx, ev)
}

var _ port.Telemetry = (*Filter)(nil)
