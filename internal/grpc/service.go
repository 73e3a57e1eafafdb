package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "cricket.v1.AnalysisService"

// Full method names, as clients address them
const (
	MethodListPlayers    = "/" + ServiceName + "/ListPlayers"
	MethodTopPlayers     = "/" + ServiceName + "/TopPlayers"
	MethodTeamStrength   = "/" + ServiceName + "/TeamStrength"
	MethodCompareTeams   = "/" + ServiceName + "/CompareTeams"
	MethodWinProbability = "/" + ServiceName + "/WinProbability"
	MethodStreamEvents   = "/" + ServiceName + "/StreamEvents"
)

// AnalysisServer is the server API for the analysis service.
// Requests and responses are JSON-shaped google.protobuf.Struct messages.
type AnalysisServer interface {
	ListPlayers(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	TopPlayers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TeamStrength(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompareTeams(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WinProbability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamEvents(*emptypb.Empty, EventStream) error
}

// EventStream is the server side of StreamEvents
type EventStream interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type eventStream struct {
	grpc.ServerStream
}

func (x *eventStream) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// ServiceDesc describes AnalysisService for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalysisServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListPlayers",
			Handler: unary(MethodListPlayers, func() *emptypb.Empty { return new(emptypb.Empty) },
				AnalysisServer.ListPlayers),
		},
		{
			MethodName: "TopPlayers",
			Handler:    unary(MethodTopPlayers, newStruct, AnalysisServer.TopPlayers),
		},
		{
			MethodName: "TeamStrength",
			Handler:    unary(MethodTeamStrength, newStruct, AnalysisServer.TeamStrength),
		},
		{
			MethodName: "CompareTeams",
			Handler:    unary(MethodCompareTeams, newStruct, AnalysisServer.CompareTeams),
		},
		{
			MethodName: "WinProbability",
			Handler:    unary(MethodWinProbability, newStruct, AnalysisServer.WinProbability),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamEvents",
			Handler:       streamEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "cricket/v1/analysis.proto",
}

// Register attaches srv to s
func Register(s grpc.ServiceRegistrar, srv AnalysisServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func newStruct() *structpb.Struct { return new(structpb.Struct) }

// unary builds a method handler with interceptor support in the shape
// protoc-gen-go-grpc emits for each unary method.
func unary[Req proto.Message](fullMethod string, newReq func() Req,
	call func(AnalysisServer, context.Context, Req) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AnalysisServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AnalysisServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamEventsHandler(srv any, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(AnalysisServer).StreamEvents(m, &eventStream{stream})
}
