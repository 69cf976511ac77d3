package binance

import (
	"encoding/json"
	"fmt"
	"time"

	"xbook/internal/application"
	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

type controlMsg struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// envelope 组合流帧 {"stream":..,"data":..}，或控制响应 {"result":..,"id":..}
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error"`
}

// Codec Binance 订阅协议
type Codec struct{}

func (Codec) EncodeSubscribe(requestID uint64, streams []string) ([]byte, error) {
	return json.Marshal(controlMsg{Method: "SUBSCRIBE", Params: streams, ID: requestID})
}

func (Codec) EncodeUnsubscribe(requestID uint64, streams []string) ([]byte, error) {
	return json.Marshal(controlMsg{Method: "UNSUBSCRIBE", Params: streams, ID: requestID})
}

// Classify 数据帧必须带 stream 字段，否则无法归属到订阅
func (Codec) Classify(raw []byte) (port.Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return port.Inbound{}, &model.ProtocolDecodeError{Exchange: application.ExchangeBinance, Reason: "invalid json", Err: err}
	}

	if env.Stream != "" && len(env.Data) > 0 {
		return port.Inbound{
			Kind:  port.FrameData,
			Frame: port.Frame{Stream: env.Stream, Payload: env.Data, Received: time.Now()},
		}, nil
	}

	if env.ID != nil {
		in := port.Inbound{Kind: port.FrameAck, RequestID: *env.ID}
		if env.Error != nil {
			in.AckErr = fmt.Errorf("binance error %d: %s", env.Error.Code, env.Error.Msg)
		}
		return in, nil
	}

	return port.Inbound{}, &model.ProtocolDecodeError{Exchange: application.ExchangeBinance, Reason: "frame without stream or id"}
}

var _ port.Codec = Codec{}
