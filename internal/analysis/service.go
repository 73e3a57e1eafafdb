// Package analysis is the transport-neutral face of the scoring core.
// HTTP, gRPC and MCP all call through a Service so that every completed
// analysis is recorded and announced the same way.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dal"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dataset"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/live"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/pubsub"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/strength"
)

// DefaultTopN matches the five-row leaderboards of the player view
const DefaultTopN = 5

// Publisher receives analysis events
type Publisher interface {
	Publish(pubsub.Event)
}

// Service binds the dataset to history storage and event publishing
type Service struct {
	ds     *dataset.Dataset
	store  dal.PlayerDAL
	events Publisher
}

// NewService creates a service. store and events may be nil.
func NewService(ds *dataset.Dataset, store dal.PlayerDAL, events Publisher) *Service {
	return &Service{ds: ds, store: store, events: events}
}

// Dataset returns the loaded players
func (s *Service) Dataset() *dataset.Dataset {
	return s.ds
}

// Publish forwards an event when a publisher is configured
func (s *Service) Publish(ev pubsub.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// TeamStrength aggregates an arbitrary list of player names
func (s *Service) TeamStrength(names []string) models.Strength {
	return strength.Aggregate(names, s.ds)
}

// CompareTeams aggregates and compares two rosters and records the result
func (s *Service) CompareTeams(ctx context.Context, teamA, teamB []string) models.TeamAnalysis {
	res := strength.Analyze(teamA, teamB, s.ds)
	s.RecordTeam(ctx, res)
	return res
}

// RecordTeam stores and announces a finished team comparison
func (s *Service) RecordTeam(ctx context.Context, res models.TeamAnalysis) {
	summary := fmt.Sprintf("%s (A %.1f vs B %.1f)", res.Verdict, res.StrengthA.Total(), res.StrengthB.Total())
	s.record(ctx, models.AnalysisTeam, summary, res)
	s.Publish(pubsub.NewEvent(pubsub.TypeTeamAnalysis, res))
}

// EstimateRequest is a complete live-analysis input supplied in one call
type EstimateRequest struct {
	BattingTeam string                        `json:"battingTeam"`
	BowlingTeam string                        `json:"bowlingTeam"`
	Runs        *float64                      `json:"runs"`
	Target      *float64                      `json:"target"`
	Overs       *float64                      `json:"overs"`
	BattersOut  []int                         `json:"battersOut"`
	Bowlers     map[string]models.BowlerUsage `json:"bowlers"`
}

// Match replays req onto a fresh match state
func (s *Service) Match(req EstimateRequest) (*live.MatchState, error) {
	m := live.NewMatchState()
	if req.BattingTeam != "" {
		if err := m.SetBattingTeam(s.ds, req.BattingTeam); err != nil {
			return nil, fmt.Errorf("battingTeam: %w", err)
		}
	}
	if req.BowlingTeam != "" {
		if err := m.SetBowlingTeam(s.ds, req.BowlingTeam); err != nil {
			return nil, fmt.Errorf("bowlingTeam: %w", err)
		}
	}
	if err := m.SetScore(req.Runs, req.Target, req.Overs); err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	// Dismissals and bowler usage only mean something against a chosen XI;
	// without one, Analyze reports the missing team instead.
	if m.BattingTeam != "" {
		for _, i := range req.BattersOut {
			if err := m.SetBatterOut(s.ds, i, true); err != nil {
				return nil, fmt.Errorf("battersOut: %w", err)
			}
		}
	}
	if m.BowlingTeam != "" {
		for name, u := range req.Bowlers {
			if err := m.SetBowler(s.ds, name, u.Selected, u.OversBowled); err != nil {
				return nil, fmt.Errorf("bowlers: %w", err)
			}
		}
	}
	return m, nil
}

// Estimate computes a win probability from a one-shot request.
// Missing required fields yield a *live.MissingFieldsError.
func (s *Service) Estimate(ctx context.Context, req EstimateRequest) (models.LiveAnalysis, error) {
	m, err := s.Match(req)
	if err != nil {
		return models.LiveAnalysis{}, err
	}
	res, err := m.Analyze(s.ds)
	if err != nil {
		return models.LiveAnalysis{}, err
	}
	s.RecordLive(ctx, res)
	return res, nil
}

// RecordLive stores and announces a finished estimate
func (s *Service) RecordLive(ctx context.Context, res models.LiveAnalysis) {
	summary := fmt.Sprintf("%s vs %s: %.2f%%", res.BattingTeam, res.BowlingTeam, res.Probability)
	s.record(ctx, models.AnalysisLive, summary, res)
	s.Publish(pubsub.NewEvent(pubsub.TypeLiveAnalysis, res))
}

// TopPlayers returns the leading batters and bowlers
func (s *Service) TopPlayers(n int) (batters, bowlers []models.PlayerRecord) {
	if n <= 0 {
		n = DefaultTopN
	}
	return s.ds.TopBatters(n), s.ds.TopBowlers(n)
}

// Player looks a player up by rank
func (s *Service) Player(rank int) (models.PlayerRecord, error) {
	return s.ds.ByRank(rank)
}

// History lists stored analyses, newest first
func (s *Service) History(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	if s.store == nil {
		return []models.AnalysisRecord{}, nil
	}
	return s.store.ListAnalyses(ctx, limit)
}

// ClearHistory removes all stored analyses
func (s *Service) ClearHistory(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.ClearAnalyses(ctx); err != nil {
		return err
	}
	s.Publish(pubsub.Event{Type: pubsub.TypeHistoryClear})
	return nil
}

// record keeps history best-effort; a storage failure never fails the analysis
func (s *Service) record(ctx context.Context, kind models.AnalysisKind, summary string, result any) {
	if s.store == nil {
		return
	}
	rec, err := dal.NewAnalysisRecord(kind, summary, result)
	if err == nil {
		err = s.store.RecordAnalysis(ctx, rec)
	}
	if err != nil {
		logger.Warn("Failed to record analysis", "kind", kind, "error", err)
	}
}

// IsClientError reports whether err stems from bad caller input
func IsClientError(err error) bool {
	var missing *live.MissingFieldsError
	switch {
	case errors.As(err, &missing),
		errors.Is(err, live.ErrUnknownTeam),
		errors.Is(err, live.ErrSameTeam),
		errors.Is(err, live.ErrBatterIndex),
		errors.Is(err, live.ErrUnknownBowler),
		errors.Is(err, live.ErrNegative),
		errors.Is(err, dataset.ErrPlayerNotFound):
		return true
	}
	return false
}
