package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	collectorv1 "hoover/pkg/api/collector/v1"
	"hoover/pkg/collector"
	"hoover/pkg/tube"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// MaxMessageSize 是单次投递的上限 (1 GiB)
const MaxMessageSize = 1024 * 1024 * 1024

// CollectorService 把 gRPC 投递交给收集端的 Handler
type CollectorService struct {
	handle    collector.Handler
	sink      *collector.Sink
	hashField string
}

// NewCollectorService 使用 sink 落盘
func NewCollectorService(sink *collector.Sink) *CollectorService {
	return &CollectorService{
		sink:      sink,
		hashField: sink.HashField(),
		handle: func(ctx context.Context, d collector.Delivery) error {
			_, err := sink.Store(ctx, d)
			return err
		},
	}
}

func (s *CollectorService) Deliver(ctx context.Context, req *collectorv1.DeliverRequest) (*collectorv1.DeliverResponse, error) {
	if len(req.Metadata) == 0 {
		return nil, status.Error(codes.InvalidArgument, "metadata is required")
	}
	if err := s.checkHeader(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	d := collector.Delivery{Metadata: req.Metadata, Body: req.Payload}

	var (
		path string
		err  error
	)
	if s.sink != nil {
		path, err = s.sink.Store(ctx, d)
	} else {
		err = s.handle(ctx, d)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &collectorv1.DeliverResponse{Path: path, Hash: req.Metadata[s.hashKey()]}, nil
}

func (s *CollectorService) hashKey() string {
	if s.hashField == "" {
		return tube.DefaultHashField
	}
	return s.hashField
}

// checkHeader 在落盘前拒绝发送端本来就不会生成的元数据
// 没有 filename 的投递是清单，只校验其余字段
func (s *CollectorService) checkHeader(req *collectorv1.DeliverRequest) error {
	h, err := tube.ParseMetadata(req.Metadata, s.hashKey())
	if err != nil {
		return err
	}
	if h.Filename == "" {
		h.Filename = "manifest"
	}
	if err := h.Validate(); err != nil {
		return err
	}
	if req.Metadata[tube.FieldSize] != "" && h.Size != int64(len(req.Payload)) {
		return fmt.Errorf("size %d does not match payload of %d bytes", h.Size, len(req.Payload))
	}
	return nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, collector.ErrMissingChecksum):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, collector.ErrChecksumMismatch):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Errorf(codes.Internal, "store delivery: %v", err)
	}
}

// NewGRPCServer 创建带日志与恢复拦截器的 gRPC 服务
func NewGRPCServer() *grpc.Server {
	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			UnaryRecoveryInterceptor,
			UnaryLoggingInterceptor,
		),
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
}

// Source 把 gRPC 服务包装为 collector.Source
type Source struct {
	listen    string
	lis       net.Listener
	hashField string
}

// NewSource 在 listen 地址上提供收集服务
func NewSource(listen string) *Source { return &Source{listen: listen} }

// NewSourceFromListener 使用已经打开的 listener (测试用 bufconn)
func NewSourceFromListener(lis net.Listener) *Source {
	return &Source{listen: lis.Addr().String(), lis: lis}
}

// WithHashField 设置校验元数据时读取的校验和键名，应与 sink 一致
func (s *Source) WithHashField(field string) *Source {
	s.hashField = field
	return s
}

func (s *Source) Name() string { return "grpc:" + s.listen }

// Run 直到 ctx 取消才返回，然后优雅停止
func (s *Source) Run(ctx context.Context, handle collector.Handler) error {
	lis := s.lis
	if lis == nil {
		var err error
		lis, err = net.Listen("tcp", s.listen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.listen, err)
		}
	}

	srv := NewGRPCServer()
	collectorv1.RegisterCollectorServer(srv, &CollectorService{handle: handle, hashField: s.hashField})
	reflection.Register(srv)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
