package port

import (
	"context"
	"time"
)

// Frame 一条已按 stream 归属的原始数据帧
type Frame struct {
	Stream   string    // 线上 stream / channel 名
	Payload  []byte    // 数据部分（已剥掉外层包装）
	Received time.Time // 收到时间
}

// FrameKind 入站帧类别
type FrameKind int

const (
	FrameIgnore FrameKind = iota // 心跳、欢迎消息等
	FrameAck                     // 订阅/退订确认
	FrameData                    // 行情数据
)

// Inbound Codec 分类后的入站帧
type Inbound struct {
	Kind      FrameKind
	RequestID uint64
	AckErr    error // 确认帧里带的错误
	Frame     Frame
}

// Codec 各交易所的控制帧编码与入站帧分类
type Codec interface {
	EncodeSubscribe(requestID uint64, streams []string) ([]byte, error)
	EncodeUnsubscribe(requestID uint64, streams []string) ([]byte, error)
	Classify(raw []byte) (Inbound, error)
}

// FrameHandler 订阅回调，在订阅自己的消费协程里执行
type FrameHandler func(Frame)

// SubscriptionID 订阅句柄
type SubscriptionID uint64

// StreamTransport 持久流式连接：订阅意图在重连后自动重放
type StreamTransport interface {
	Run(ctx context.Context) error
	Subscribe(streams []string, h FrameHandler) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID)
	Close() error
}
