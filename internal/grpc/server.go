package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/analysis"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dataset"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/pubsub"
)

// Server implements AnalysisServer on top of the analysis service
type Server struct {
	svc    *analysis.Service
	pubsub *pubsub.PubSub
}

// NewServer creates a new gRPC server. ps may be nil, in which case
// StreamEvents reports Unavailable.
func NewServer(svc *analysis.Service, ps *pubsub.PubSub) *Server {
	return &Server{
		svc:    svc,
		pubsub: ps,
	}
}

// PlayersResponse is the ListPlayers payload
type PlayersResponse struct {
	Players []models.PlayerRecord `json:"players"`
	Teams   []string              `json:"teams"`
}

// TopRequest selects how many leaders TopPlayers returns
type TopRequest struct {
	N int `json:"n"`
}

// TopResponse is the TopPlayers payload
type TopResponse struct {
	Batters []models.PlayerRecord `json:"batters"`
	Bowlers []models.PlayerRecord `json:"bowlers"`
}

// StrengthRequest names the players of one roster
type StrengthRequest struct {
	Players []string `json:"players"`
}

// StrengthResponse is the TeamStrength payload
type StrengthResponse struct {
	models.Strength
	Total float64 `json:"total"`
}

// CompareRequest names both rosters
type CompareRequest struct {
	TeamA []string `json:"teamA"`
	TeamB []string `json:"teamB"`
}

// ListPlayers returns the whole dataset and its teams
func (s *Server) ListPlayers(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	logger.Debug("gRPC: Listing players")
	ds := s.svc.Dataset()
	return toStruct(PlayersResponse{Players: ds.Players(), Teams: ds.Teams()})
}

// TopPlayers returns the leading batters and bowlers
func (s *Server) TopPlayers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in TopRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	logger.Debug("gRPC: Top players", "n", in.N)
	batters, bowlers := s.svc.TopPlayers(in.N)
	return toStruct(TopResponse{Batters: batters, Bowlers: bowlers})
}

// TeamStrength aggregates a single roster
func (s *Server) TeamStrength(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in StrengthRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	logger.Debug("gRPC: Team strength", "players", len(in.Players))
	st := s.svc.TeamStrength(in.Players)
	return toStruct(StrengthResponse{Strength: st, Total: st.Total()})
}

// CompareTeams aggregates both rosters and returns the verdict
func (s *Server) CompareTeams(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in CompareRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	logger.Info("gRPC: Comparing teams", "teamA", len(in.TeamA), "teamB", len(in.TeamB))
	return toStruct(s.svc.CompareTeams(ctx, in.TeamA, in.TeamB))
}

// WinProbability estimates the batting side's chance from a match snapshot
func (s *Server) WinProbability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in analysis.EstimateRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	logger.Info("gRPC: Estimating win probability", "batting", in.BattingTeam, "bowling", in.BowlingTeam)
	res, err := s.svc.Estimate(ctx, in)
	if err != nil {
		logger.Debug("gRPC: Estimate rejected", "error", err)
		return nil, toStatus(err)
	}
	return toStruct(res)
}

// StreamEvents streams analysis events to the client until it disconnects
func (s *Server) StreamEvents(req *emptypb.Empty, stream EventStream) error {
	if s.pubsub == nil {
		return status.Error(codes.Unavailable, "event stream not configured")
	}
	logger.Debug("gRPC: New client connected to event stream")
	eventChan := s.pubsub.Subscribe()
	defer s.pubsub.Unsubscribe(eventChan)

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return nil
			}
			msg, err := toStruct(event)
			if err != nil {
				logger.Warn("gRPC: Dropping unencodable event", "type", event.Type, "error", err)
				continue
			}
			if err := stream.Send(msg); err != nil {
				logger.Error("gRPC: Failed to send event to stream", "error", err)
				return err
			}
		case <-stream.Context().Done():
			logger.Debug("gRPC: Client disconnected from event stream")
			return nil
		}
	}
}

// toStatus maps service errors onto gRPC codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, dataset.ErrPlayerNotFound):
		return status.Error(codes.NotFound, err.Error())
	case analysis.IsClientError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts any JSON-encodable object into a Struct
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// fromStruct decodes a Struct into v. A nil Struct leaves v untouched.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}
