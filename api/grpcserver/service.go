package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "swirly.Exchange"

// ExchangeServer is the server API for the swirly.Exchange service. Every
// method takes and returns a google.protobuf.Struct.
type ExchangeServer interface {
	Place(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Revise(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Cancel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ArchiveOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	View(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(ExchangeServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) grpc.MethodDesc {
	full := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExchangeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExchangeServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Place", ExchangeServer.Place),
		unary("Revise", ExchangeServer.Revise),
		unary("Cancel", ExchangeServer.Cancel),
		unary("ArchiveOrder", ExchangeServer.ArchiveOrder),
		unary("View", ExchangeServer.View),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "swirly/exchange.proto",
}

func Register(s grpc.ServiceRegistrar, srv ExchangeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the swirly.Exchange service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Call(ctx context.Context, name string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+name, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
