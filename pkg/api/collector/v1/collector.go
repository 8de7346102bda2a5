// Package collectorv1 声明收集端的 gRPC 服务
//
// 消息是普通 Go 结构体，用 CBOR 编码 (见 codec.go)，不需要生成代码。
package collectorv1

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName   = "hoover.collector.v1.Collector"
	DeliverMethod = "/" + ServiceName + "/Deliver"
)

// DeliverRequest 携带一个对象及其元数据
type DeliverRequest struct {
	Metadata map[string]string `cbor:"m"`
	Payload  []byte            `cbor:"p"`
}

// DeliverResponse 告诉发送端对象被存到了哪里
type DeliverResponse struct {
	Path string `cbor:"path"`
	Hash string `cbor:"hash"`
}

type CollectorServer interface {
	Deliver(ctx context.Context, req *DeliverRequest) (*DeliverResponse, error)
}

type CollectorClient interface {
	Deliver(ctx context.Context, req *DeliverRequest, opts ...grpc.CallOption) (*DeliverResponse, error)
}

type collectorClient struct {
	cc grpc.ClientConnInterface
}

func NewCollectorClient(cc grpc.ClientConnInterface) CollectorClient {
	return &collectorClient{cc: cc}
}

func (c *collectorClient) Deliver(ctx context.Context, req *DeliverRequest, opts ...grpc.CallOption) (*DeliverResponse, error) {
	out := new(DeliverResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, DeliverMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func deliverHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeliverRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectorServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DeliverMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CollectorServer).Deliver(ctx, req.(*DeliverRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var CollectorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CollectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: deliverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hoover/collector/v1",
}

func RegisterCollectorServer(s grpc.ServiceRegistrar, srv CollectorServer) {
	s.RegisterService(&CollectorServiceDesc, srv)
}
