package tube

import (
	"errors"
	"fmt"
)

var (
	ErrDestinationUnwritable  = errors.New("destination unwritable")
	ErrNoServersConfigured    = errors.New("no broker servers configured")
	ErrNoReachableBroker      = errors.New("no reachable broker")
	ErrAuthFailure            = errors.New("broker authentication failed")
	ErrChannelError           = errors.New("broker channel error")
	ErrExchangeDeclareFailure = errors.New("exchange declare failed")
	ErrPublishError           = errors.New("publish failed")
	ErrPayloadTooLarge        = errors.New("payload exceeds max transmit size")
	ErrTubeClosed             = errors.New("tube closed")
)

// Scope 区分 broker 报错的层级
type Scope string

const (
	// ScopeConnection 连接被服务端关闭 (connection.close)
	ScopeConnection Scope = "connection"
	// ScopeChannel 只有通道被关闭 (channel.close)，连接仍然可用
	ScopeChannel Scope = "channel"
	// ScopeLibrary 客户端库本地的错误 (socket、超时、编码)
	ScopeLibrary Scope = "library"
)

// BrokerError 携带 broker 返回的协议层信息
// 用 errors.As 取出
type BrokerError struct {
	Scope Scope
	Code  int
	Text  string
	Err   error
}

func (e *BrokerError) Error() string {
	msg := fmt.Sprintf("broker %s error", e.Scope)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s %d", msg, e.Code)
	}
	if e.Text != "" {
		msg += ": " + e.Text
	}
	if e.Err != nil && (e.Text == "" || e.Err.Error() != e.Text) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BrokerError) Unwrap() error { return e.Err }
