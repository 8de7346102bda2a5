// Package collector 是消费端：从各种来源接收对象，落盘并校验
package collector

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Delivery 是从某个来源收到的一条消息
// Metadata 的键与发送端的元数据表一致 (filename, node_id, ..., sha_hash, size)
type Delivery struct {
	Metadata map[string]string
	Body     []byte
}

// Handler 处理一条消息；返回错误时来源决定是否重新投递
type Handler func(ctx context.Context, d Delivery) error

// Source 是一个消息来源 (AMQP 队列、Redis stream、gRPC 服务)
// Run 阻塞直到 ctx 被取消或发生不可恢复的错误
type Source interface {
	Name() string
	Run(ctx context.Context, handle Handler) error
}

// Run 并发运行所有来源，把消息交给 sink
// 任意一个来源失败都会取消其它来源
func Run(ctx context.Context, sink *Sink, sources ...Source) error {
	if len(sources) == 0 {
		return fmt.Errorf("no sources configured")
	}

	g, ctx := errgroup.WithContext(ctx)
	handle := func(ctx context.Context, d Delivery) error {
		_, err := sink.Store(ctx, d)
		return err
	}
	for _, src := range sources {
		g.Go(func() error {
			slog.Info("collector source started", slog.String("source", src.Name()))
			err := src.Run(ctx, handle)
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("source %s: %w", src.Name(), err)
			}
			slog.Info("collector source stopped", slog.String("source", src.Name()))
			return nil
		})
	}
	return g.Wait()
}
