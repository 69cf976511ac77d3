package svc

import "errors"

// ErrNoFeedsEnabled 错误：没有启用任何行情源
var ErrNoFeedsEnabled = errors.New("no exchange feeds enabled")

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrUnknownExchange 错误：配置中的交易所没有注册适配器
var ErrUnknownExchange = errors.New("exchange adapter not registered")
