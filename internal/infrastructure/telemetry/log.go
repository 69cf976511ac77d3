package telemetry

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

// LogSink 把事件写成结构化日志
type LogSink struct {
	level zerolog.Level
}

// NewLogSink 普通事件用 level，错误类事件固定 warn
func NewLogSink(level zerolog.Level) *LogSink {
	return &LogSink{level: level}
}

func (s *LogSink) Emit(_ context.Context, ev model.Event) error {
	lvl := s.level
	switch ev.Type {
	case model.EventParseError, model.EventDispatchError, model.EventMalformedUpdate:
		lvl = zerolog.WarnLevel
	}
	e := log.WithLevel(lvl).
		Str("event", string(ev.Type)).
		Time("at", ev.Time)
	if ev.Exchange != "" {
		e = e.Str("exchange", ev.Exchange)
	}
	if ev.Symbol != "" {
		e = e.Str("symbol", ev.Symbol)
	}
	if ev.Strategy != "" {
		e = e.Str("strategy", ev.Strategy)
	}
	if len(ev.Fields) > 0 {
		e = e.Fields(ev.Fields)
	}
	e.Msg("telemetry")
	return nil
}

var _ port.Telemetry = (*LogSink)(nil)
