// Package tube 定义把 DataObject 送往目的地的传输抽象
package tube

import (
	"context"
	"log/slog"

	"hoover/pkg/core"
)

// Tube 是一个已经打开的传输通道
//
// Send 可以被反复调用；Tube 只读取 obj，不获取它的所有权。
// Close 释放全部资源，重复调用是安全的。
type Tube interface {
	Send(ctx context.Context, obj *core.DataObject, h core.Header) error
	Close() error
	// Destination 返回人类可读的目的地描述，用于日志
	Destination() string
}

// Close 关闭 t，允许 t 为 nil
func Close(t Tube) {
	if t == nil {
		slog.Debug("close on nil tube ignored")
		return
	}
	if err := t.Close(); err != nil {
		slog.Warn("tube close failed",
			slog.String("destination", t.Destination()),
			slog.Any("error", err),
		)
	}
}
