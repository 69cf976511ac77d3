package port

import (
	"context"

	"xbook/internal/domain/model"
)

// Telemetry 遥测事件 sink
type Telemetry interface {
	Emit(ctx context.Context, ev model.Event) error
}

// TelemetryCloser for sinks holding a connection
type TelemetryCloser interface {
	Telemetry
	Close() error
}

// EventReader 读取最近事件（状态接口使用）
type EventReader interface {
	RecentEvents(ctx context.Context, limit int) ([]model.Event, error)
}
