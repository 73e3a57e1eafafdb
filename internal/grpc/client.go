package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/analysis"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/pubsub"
)

// Client is a typed client for AnalysisService
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in proto.Message, out any, opts ...grpc.CallOption) error {
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, resp, opts...); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

func (c *Client) ListPlayers(ctx context.Context, opts ...grpc.CallOption) (PlayersResponse, error) {
	var out PlayersResponse
	err := c.invoke(ctx, MethodListPlayers, new(emptypb.Empty), &out, opts...)
	return out, err
}

func (c *Client) TopPlayers(ctx context.Context, n int, opts ...grpc.CallOption) (TopResponse, error) {
	var out TopResponse
	in, err := toStruct(TopRequest{N: n})
	if err != nil {
		return out, err
	}
	err = c.invoke(ctx, MethodTopPlayers, in, &out, opts...)
	return out, err
}

func (c *Client) TeamStrength(ctx context.Context, players []string, opts ...grpc.CallOption) (StrengthResponse, error) {
	var out StrengthResponse
	in, err := toStruct(StrengthRequest{Players: players})
	if err != nil {
		return out, err
	}
	err = c.invoke(ctx, MethodTeamStrength, in, &out, opts...)
	return out, err
}

func (c *Client) CompareTeams(ctx context.Context, teamA, teamB []string, opts ...grpc.CallOption) (models.TeamAnalysis, error) {
	var out models.TeamAnalysis
	in, err := toStruct(CompareRequest{TeamA: teamA, TeamB: teamB})
	if err != nil {
		return out, err
	}
	err = c.invoke(ctx, MethodCompareTeams, in, &out, opts...)
	return out, err
}

func (c *Client) WinProbability(ctx context.Context, req analysis.EstimateRequest, opts ...grpc.CallOption) (models.LiveAnalysis, error) {
	var out models.LiveAnalysis
	in, err := toStruct(req)
	if err != nil {
		return out, err
	}
	err = c.invoke(ctx, MethodWinProbability, in, &out, opts...)
	return out, err
}

// EventReceiver yields events from StreamEvents
type EventReceiver struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event
func (r *EventReceiver) Recv() (pubsub.Event, error) {
	var ev pubsub.Event
	msg := new(structpb.Struct)
	if err := r.stream.RecvMsg(msg); err != nil {
		return ev, err
	}
	err := fromStruct(msg, &ev)
	return ev, err
}

// StreamEvents opens the event stream. Cancel ctx to close it.
func (c *Client) StreamEvents(ctx context.Context, opts ...grpc.CallOption) (*EventReceiver, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodStreamEvents, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(new(emptypb.Empty)); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventReceiver{stream: stream}, nil
}
