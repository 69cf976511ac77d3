package composite

import (
	"context"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

// Repo 把事件依次写入所有下游，返回第一个错误
type Repo struct {
	sinks []port.Telemetry
}

func New(sinks ...port.Telemetry) *Repo {
	out := make([]port.Telemetry, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Repo{sinks: out}
}

func (r *Repo) Len() int { return len(r.sinks) }

func (r *Repo) Emit(ctx context.Context, ev model.Event) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Emit(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Telemetry = (*Repo)(nil)
