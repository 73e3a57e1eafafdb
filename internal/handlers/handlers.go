package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/analysis"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dataset"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/live"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/pubsub"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/session"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// APIHandlers contains all API handler methods
type APIHandlers struct {
	svc       *analysis.Service
	sessions  *session.Store
	events    *pubsub.PubSub
	checks    map[string]ReadinessCheck
	keepalive time.Duration
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(svc *analysis.Service, sessions *session.Store, ps *pubsub.PubSub) *APIHandlers {
	return &APIHandlers{
		svc:       svc,
		sessions:  sessions,
		events:    ps,
		checks:    map[string]ReadinessCheck{},
		keepalive: 30 * time.Second,
	}
}

// AddReadinessCheck registers a named dependency for /readyz
func (h *APIHandlers) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// ListPlayers returns the dataset in its original order
func (h *APIHandlers) ListPlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Dataset().Players())
}

// TopPlayers returns the leading batters and bowlers
func (h *APIHandlers) TopPlayers(w http.ResponseWriter, r *http.Request) {
	n := analysis.DefaultTopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("n must be a positive integer"))
			return
		}
		n = v
	}

	batters, bowlers := h.svc.TopPlayers(n)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"batters": batters,
		"bowlers": bowlers,
	})
}

// GetPlayer returns a single player by rank
func (h *APIHandlers) GetPlayer(w http.ResponseWriter, r *http.Request) {
	rank, err := strconv.Atoi(mux.Vars(r)["rank"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid rank"))
		return
	}

	player, err := h.svc.Player(rank)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

// ListTeams returns distinct team names in dataset order
func (h *APIHandlers) ListTeams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Dataset().Teams())
}

// TeamXI returns the derived playing XI of a team
func (h *APIHandlers) TeamXI(w http.ResponseWriter, r *http.Request) {
	team := mux.Vars(r)["team"]
	ds := h.svc.Dataset()
	if !ds.HasTeam(team) {
		writeError(w, http.StatusNotFound, fmt.Errorf("%q: %w", team, live.ErrUnknownTeam))
		return
	}
	writeJSON(w, http.StatusOK, ds.DeriveXI(team))
}

// Strength compares two ad-hoc rosters without a session
func (h *APIHandlers) Strength(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TeamA []string `json:"teamA"`
		TeamB []string `json:"teamB"`
	}
	if !decode(w, r, &req) {
		return
	}

	res := h.svc.CompareTeams(r.Context(), req.TeamA, req.TeamB)
	logger.Info("Compared teams", "verdict", res.Verdict, "sizeA", len(req.TeamA), "sizeB", len(req.TeamB))
	writeJSON(w, http.StatusOK, res)
}

// Estimate computes a win probability from a complete match description
func (h *APIHandlers) Estimate(w http.ResponseWriter, r *http.Request) {
	var req analysis.EstimateRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.Estimate(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History lists recorded analyses, newest first
func (h *APIHandlers) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = v
	}

	records, err := h.svc.History(r.Context(), limit)
	if err != nil {
		logger.Error("Failed to list history", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ClearHistory removes all recorded analyses
func (h *APIHandlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	logger.Info("Clearing analysis history")
	if err := h.svc.ClearHistory(r.Context()); err != nil {
		logger.Error("Failed to clear history", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// EventsSSE provides Server-Sent Events for realtime updates
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	eventChan := h.events.Subscribe()
	defer h.events.Unsubscribe(eventChan)

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// Health reports service status with a few counters
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"players":  h.svc.Dataset().Len(),
		"teams":    len(h.svc.Dataset().Teams()),
		"sessions": h.sessions.Len(),
	})
}

// Liveness is the Kubernetes liveness probe
func (h *APIHandlers) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Readiness runs every registered check
func (h *APIHandlers) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			logger.Warn("Readiness check failed", "check", name, "error", err)
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, results)
}

// fail maps domain errors onto HTTP status codes
func (h *APIHandlers) fail(w http.ResponseWriter, err error) {
	var missing *live.MissingFieldsError
	switch {
	case errors.As(err, &missing):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   missing.Error(),
			"missing": missing.Fields,
		})
	case errors.Is(err, session.ErrNotFound), errors.Is(err, dataset.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, err)
	case analysis.IsClientError(err):
		writeError(w, http.StatusBadRequest, err)
	default:
		logger.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Warn("Failed to decode request", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
