package model

import "time"

// EventType 遥测事件类型
type EventType string

const (
	EventUpdateReceived  EventType = "update_received"
	EventSignalGenerated EventType = "signal_generated"
	EventSignalRejected  EventType = "signal_rejected"
	EventPositionOpened  EventType = "position_opened"
	EventPositionClosed  EventType = "position_closed"
	EventMalformedUpdate EventType = "malformed_update"
	EventParseError      EventType = "parse_error"
	EventDispatchError   EventType = "dispatch_error"
	EventBookSnapshot    EventType = "book_snapshot"
)

// Event 发往遥测 sink 的一条事件
type Event struct {
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	Exchange string         `json:"exchange,omitempty"`
	Symbol   string         `json:"symbol,omitempty"`
	Strategy string         `json:"strategy,omitempty"`
	Message  string         `json:"message,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// NewEvent 创建事件，时间取当前
func NewEvent(typ EventType, exchange, symbol string) Event {
	return Event{Type: typ, Time: time.Now(), Exchange: exchange, Symbol: symbol}
}

// With 追加字段
func (e Event) With(key string, val any) Event {
	fields := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = val
	e.Fields = fields
	return e
}
