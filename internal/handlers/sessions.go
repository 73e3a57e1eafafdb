package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/live"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/pubsub"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/roster"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/session"
)

// ErrRostersIncomplete is returned when analysis is requested before both sides hold eleven
var ErrRostersIncomplete = errors.New("both teams need 11 players before analysis")

type teamView struct {
	ID      string   `json:"id"`
	TeamA   []string `json:"teamA"`
	TeamB   []string `json:"teamB"`
	Ready   bool     `json:"ready"`
	Applied *bool    `json:"applied,omitempty"`
}

func newTeamView(id string, sel *roster.Selection) teamView {
	return teamView{
		ID:    id,
		TeamA: sel.Members(models.SideA),
		TeamB: sel.Members(models.SideB),
		Ready: sel.IsReadyToAnalyze(),
	}
}

type liveView struct {
	ID string `json:"id"`
	live.View
}

// CreateTeamSession opens an empty team comparison
func (h *APIHandlers) CreateTeamSession(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.CreateTeam()
	logger.Info("Team session opened", "session", id)
	h.svc.Publish(pubsub.NewEvent(pubsub.TypeSessionOpen, map[string]string{"id": id, "kind": string(session.KindTeam)}))

	var view teamView
	h.sessions.WithTeam(id, func(sel *roster.Selection) error {
		view = newTeamView(id, sel)
		return nil
	})
	writeJSON(w, http.StatusCreated, view)
}

// GetTeamSession returns both rosters
func (h *APIHandlers) GetTeamSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var view teamView
	err := h.sessions.WithTeam(id, func(sel *roster.Selection) error {
		view = newTeamView(id, sel)
		return nil
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type rosterRequest struct {
	Side string `json:"side"`
	Name string `json:"name"`
}

// SelectPlayer adds a player to a side. Duplicates and full rosters leave
// the selection unchanged and report applied=false.
func (h *APIHandlers) SelectPlayer(w http.ResponseWriter, r *http.Request) {
	h.mutateRoster(w, r, pubsub.TypeRosterSelect, (*roster.Selection).Select)
}

// RemovePlayer drops a player from a side
func (h *APIHandlers) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	h.mutateRoster(w, r, pubsub.TypeRosterRemove, (*roster.Selection).Remove)
}

func (h *APIHandlers) mutateRoster(w http.ResponseWriter, r *http.Request, eventType string,
	op func(*roster.Selection, models.Side, string) bool) {
	id := mux.Vars(r)["id"]

	var req rosterRequest
	if !decode(w, r, &req) {
		return
	}
	side, err := roster.ParseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, roster.ErrEmptyName)
		return
	}

	var view teamView
	err = h.sessions.WithTeam(id, func(sel *roster.Selection) error {
		applied := op(sel, side, req.Name)
		view = newTeamView(id, sel)
		view.Applied = &applied
		return nil
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	logger.Debug("Roster changed", "session", id, "op", eventType, "side", side, "player", req.Name, "applied", *view.Applied)
	if *view.Applied {
		h.svc.Publish(pubsub.NewEvent(eventType, map[string]string{
			"id":   id,
			"side": string(side),
			"name": req.Name,
		}))
	}
	writeJSON(w, http.StatusOK, view)
}

// AvailablePlayers lists players not yet on either side
func (h *APIHandlers) AvailablePlayers(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sideParam := r.URL.Query().Get("side")
	if sideParam == "" {
		sideParam = string(models.SideA)
	}
	side, err := roster.ParseSide(sideParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var players []models.PlayerRecord
	err = h.sessions.WithTeam(id, func(sel *roster.Selection) error {
		players = sel.AvailablePlayers(side, h.svc.Dataset())
		return nil
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

// AnalyzeTeams compares the two rosters once both are full
func (h *APIHandlers) AnalyzeTeams(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var a, b []string
	err := h.sessions.WithTeam(id, func(sel *roster.Selection) error {
		if !sel.IsReadyToAnalyze() {
			return ErrRostersIncomplete
		}
		a, b = sel.Members(models.SideA), sel.Members(models.SideB)
		return nil
	})
	if errors.Is(err, ErrRostersIncomplete) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}

	res := h.svc.CompareTeams(r.Context(), a, b)
	logger.Info("Team analysis complete", "session", id, "verdict", res.Verdict)
	writeJSON(w, http.StatusOK, res)
}

// CloseTeamSession discards a team-analysis session
func (h *APIHandlers) CloseTeamSession(w http.ResponseWriter, r *http.Request) {
	h.closeSession(w, r, session.KindTeam)
}

// CloseLiveSession discards a live-analysis session
func (h *APIHandlers) CloseLiveSession(w http.ResponseWriter, r *http.Request) {
	h.closeSession(w, r, session.KindLive)
}

func (h *APIHandlers) closeSession(w http.ResponseWriter, r *http.Request, kind session.Kind) {
	id := mux.Vars(r)["id"]
	if err := h.sessions.Close(id, kind); err != nil {
		h.fail(w, err)
		return
	}
	logger.Info("Session closed", "session", id, "kind", kind)
	h.svc.Publish(pubsub.NewEvent(pubsub.TypeSessionClose, map[string]string{"id": id, "kind": string(kind)}))
	w.WriteHeader(http.StatusNoContent)
}

// CreateLiveSession opens an empty match
func (h *APIHandlers) CreateLiveSession(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.CreateLive()
	logger.Info("Live session opened", "session", id)
	h.svc.Publish(pubsub.NewEvent(pubsub.TypeSessionOpen, map[string]string{"id": id, "kind": string(session.KindLive)}))

	view, err := h.liveMutation(id, "", func(*live.MatchState) error { return nil })
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetLiveSession returns the match with its derived XIs
func (h *APIHandlers) GetLiveSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.liveMutation(mux.Vars(r)["id"], "", func(*live.MatchState) error { return nil })
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SetLiveTeams chooses batting and/or bowling team
func (h *APIHandlers) SetLiveTeams(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BattingTeam string `json:"battingTeam"`
		BowlingTeam string `json:"bowlingTeam"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respondLive(w, r, "teams", func(m *live.MatchState) error {
		return m.SetTeams(h.svc.Dataset(), req.BattingTeam, req.BowlingTeam)
	})
}

// SetLiveScore records runs, target and overs completed
func (h *APIHandlers) SetLiveScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Runs   *float64 `json:"runs"`
		Target *float64 `json:"target"`
		Overs  *float64 `json:"overs"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respondLive(w, r, "score", func(m *live.MatchState) error {
		return m.SetScore(req.Runs, req.Target, req.Overs)
	})
}

// SetBatterOut toggles the dismissal of a batter by XI position
func (h *APIHandlers) SetBatterOut(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid batter index"))
		return
	}
	var req struct {
		Out bool `json:"out"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respondLive(w, r, "batters", func(m *live.MatchState) error {
		return m.SetBatterOut(h.svc.Dataset(), index, req.Out)
	})
}

// SetBowler records a bowler's selection and overs
func (h *APIHandlers) SetBowler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string  `json:"name"`
		Selected bool    `json:"selected"`
		Overs    float64 `json:"overs"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respondLive(w, r, "bowlers", func(m *live.MatchState) error {
		return m.SetBowler(h.svc.Dataset(), req.Name, req.Selected, req.Overs)
	})
}

// AnalyzeLive estimates the win probability, or reports the missing fields
func (h *APIHandlers) AnalyzeLive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var res models.LiveAnalysis
	err := h.sessions.WithLive(id, func(m *live.MatchState) error {
		var err error
		res, err = m.Analyze(h.svc.Dataset())
		return err
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	h.svc.RecordLive(r.Context(), res)
	logger.Info("Live analysis complete", "session", id, "probability", res.Probability)
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandlers) respondLive(w http.ResponseWriter, r *http.Request, field string, fn func(*live.MatchState) error) {
	id := mux.Vars(r)["id"]
	view, err := h.liveMutation(id, field, fn)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// liveMutation applies fn and snapshots the match; a non-empty field publishes live:update
func (h *APIHandlers) liveMutation(id, field string, fn func(*live.MatchState) error) (liveView, error) {
	var view liveView
	err := h.sessions.WithLive(id, func(m *live.MatchState) error {
		if err := fn(m); err != nil {
			return err
		}
		view = liveView{ID: id, View: m.View(h.svc.Dataset())}
		return nil
	})
	if err != nil {
		return liveView{}, err
	}
	if field != "" {
		h.svc.Publish(pubsub.NewEvent(pubsub.TypeLiveUpdate, map[string]interface{}{
			"id":      id,
			"field":   field,
			"wickets": view.Wickets,
			"missing": view.Missing,
		}))
	}
	return view, nil
}
