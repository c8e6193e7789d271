package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "thermo.v1.TemperatureService"

// TemperatureServiceServer is the server API of thermo.v1.TemperatureService.
// Requests and responses are google.protobuf.Struct values using the same
// field names as the HTTP API.
type TemperatureServiceServer interface {
	Record(context.Context, *structpb.Struct) (*structpb.Struct, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Latest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Average(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Max(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Min(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AverageOfWeek(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var TemperatureServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TemperatureServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Record", TemperatureServiceServer.Record),
		unary("List", TemperatureServiceServer.List),
		unary("Latest", TemperatureServiceServer.Latest),
		unary("Average", TemperatureServiceServer.Average),
		unary("Max", TemperatureServiceServer.Max),
		unary("Min", TemperatureServiceServer.Min),
		unary("AverageOfWeek", TemperatureServiceServer.AverageOfWeek),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "thermo/v1/temperature.proto",
}

func RegisterTemperatureServiceServer(s grpc.ServiceRegistrar, srv TemperatureServiceServer) {
	s.RegisterService(&TemperatureServiceDesc, srv)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

type unaryCall func(TemperatureServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TemperatureServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TemperatureServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
