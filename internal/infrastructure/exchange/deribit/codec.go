package deribit

import (
	"encoding/json"
	"fmt"
	"time"

	"xbook/internal/application"
	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      uint64    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Channels []string `json:"channels"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope JSON-RPC 响应或订阅推送
type envelope struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Params struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	} `json:"params"`
}

// Codec Deribit JSON-RPC 订阅协议
type Codec struct{}

func (Codec) EncodeSubscribe(requestID uint64, streams []string) ([]byte, error) {
	return json.Marshal(rpcRequest{JSONRPC: "2.0", ID: requestID, Method: "public/subscribe", Params: rpcParams{Channels: streams}})
}

func (Codec) EncodeUnsubscribe(requestID uint64, streams []string) ([]byte, error) {
	return json.Marshal(rpcRequest{JSONRPC: "2.0", ID: requestID, Method: "public/unsubscribe", Params: rpcParams{Channels: streams}})
}

func (Codec) Classify(raw []byte) (port.Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return port.Inbound{}, &model.ProtocolDecodeError{Exchange: application.ExchangeDeribit, Reason: "invalid json", Err: err}
	}

	switch {
	case env.Method == "subscription" && env.Params.Channel != "":
		return port.Inbound{
			Kind:  port.FrameData,
			Frame: port.Frame{Stream: env.Params.Channel, Payload: env.Params.Data, Received: time.Now()},
		}, nil
	case env.Method == "heartbeat":
		return port.Inbound{Kind: port.FrameIgnore}, nil
	case env.ID != nil:
		in := port.Inbound{Kind: port.FrameAck, RequestID: *env.ID}
		if env.Error != nil {
			in.AckErr = fmt.Errorf("deribit error %d: %s", env.Error.Code, env.Error.Message)
		}
		return in, nil
	}
	return port.Inbound{}, &model.ProtocolDecodeError{Exchange: application.ExchangeDeribit, Reason: "frame without channel or id"}
}

var _ port.Codec = Codec{}
