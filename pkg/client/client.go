// Package client 是收集端 gRPC 服务的发送端
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	collectorv1 "hoover/pkg/api/collector/v1"
	"hoover/pkg/core"
	"hoover/pkg/tube"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

const (
	// MaxMessageSize 与服务端保持一致
	MaxMessageSize = 1024 * 1024 * 1024
	DefaultTimeout = 60 * time.Second
)

// CollectorTube 把对象直接投递给 hoover-collector
type CollectorTube struct {
	conn    *grpc.ClientConn
	rpc     collectorv1.CollectorClient
	addr    string
	timeout time.Duration
	hashKey string
	closed  bool
}

// NewCollectorTube 创建客户端；连接在后台建立，地址不可达会在第一次 Send 时报错
func NewCollectorTube(cfg tube.CollectorConfig, extra ...grpc.DialOption) (*CollectorTube, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: collector address is empty", tube.ErrDestinationUnwritable)
	}
	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", cfg.Address, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CollectorTube{
		conn:    conn,
		rpc:     collectorv1.NewCollectorClient(conn),
		addr:    cfg.Address,
		timeout: timeout,
		hashKey: cfg.HashField,
	}, nil
}

func (c *CollectorTube) Destination() string { return "grpc://" + c.addr }

// Send 投递一个对象；收集端报告的校验失败映射为 ErrPublishError
func (c *CollectorTube) Send(ctx context.Context, obj *core.DataObject, h core.Header) error {
	if c == nil || c.closed {
		return tube.ErrTubeClosed
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.rpc.Deliver(ctx, &collectorv1.DeliverRequest{
		Metadata: tube.StringMetadata(h, c.hashKey, true),
		Payload:  obj.Bytes(),
	}, grpc.WaitForReady(true))
	if err != nil {
		st := status.Convert(err)
		if st.Code() == codes.Unavailable || st.Code() == codes.DeadlineExceeded {
			return fmt.Errorf("%w: %s: %s", tube.ErrDestinationUnwritable, c.addr, st.Message())
		}
		return fmt.Errorf("%w: %s: %s: %s", tube.ErrPublishError, h.Filename, st.Code(), st.Message())
	}
	return nil
}

// Close 关闭底层连接，可以重复调用
func (c *CollectorTube) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
