package model

import (
	"errors"
	"fmt"
)

var (
	ErrTransport         = errors.New("transport error")
	ErrProtocolDecode    = errors.New("protocol decode error")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrRiskRejected      = errors.New("risk rejected")
	ErrObserverFailure   = errors.New("observer failure")
	ErrMalformedUpdate   = errors.New("malformed order book update")
)

// TransportError 连接、读写失败
type TransportError struct {
	Op  string // dial / read / write / ping
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ProtocolDecodeError 帧无法解析
type ProtocolDecodeError struct {
	Exchange string
	Reason   string
	Err      error
}

func (e *ProtocolDecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s decode: %s: %v", e.Exchange, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s decode: %s", e.Exchange, e.Reason)
}

func (e *ProtocolDecodeError) Unwrap() error        { return e.Err }
func (e *ProtocolDecodeError) Is(target error) bool { return target == ErrProtocolDecode }

// UnknownInstrumentError 线上符号找不到对应标的
type UnknownInstrumentError struct {
	Exchange   string
	WireSymbol string
}

func (e *UnknownInstrumentError) Error() string {
	return fmt.Sprintf("%s: unknown instrument %q", e.Exchange, e.WireSymbol)
}

func (e *UnknownInstrumentError) Is(target error) bool { return target == ErrUnknownInstrument }

// RiskRejectedError 风控拒绝
type RiskRejectedError struct {
	Strategy string
	Reason   string
}

func (e *RiskRejectedError) Error() string {
	return fmt.Sprintf("risk rejected [%s]: %s", e.Strategy, e.Reason)
}

func (e *RiskRejectedError) Is(target error) bool { return target == ErrRiskRejected }

// ObserverFailure 观察者处理失败（panic 或返回错误）
type ObserverFailure struct {
	Observer string
	Err      error
}

func (e *ObserverFailure) Error() string {
	return fmt.Sprintf("observer %s failed: %v", e.Observer, e.Err)
}

func (e *ObserverFailure) Unwrap() error        { return e.Err }
func (e *ObserverFailure) Is(target error) bool { return target == ErrObserverFailure }
