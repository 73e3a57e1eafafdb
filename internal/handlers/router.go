package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/auth"
)

// NewRouter wires every HTTP route. History is guarded by authProvider and
// clearing it additionally requires the admin group.
func NewRouter(api *APIHandlers, authProvider auth.AuthProvider) *mux.Router {
	r := mux.NewRouter()

	// Auth routes (public)
	r.HandleFunc("/auth/login", authProvider.LoginHandler).Methods(http.MethodGet)
	r.HandleFunc("/auth/callback", authProvider.CallbackHandler).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", authProvider.LogoutHandler).Methods(http.MethodGet, http.MethodPost)

	a := r.PathPrefix("/api").Subrouter()

	// Dataset
	a.HandleFunc("/players", api.ListPlayers).Methods(http.MethodGet)
	a.HandleFunc("/players/top", api.TopPlayers).Methods(http.MethodGet)
	a.HandleFunc("/players/{rank:[0-9]+}", api.GetPlayer).Methods(http.MethodGet)
	a.HandleFunc("/teams", api.ListTeams).Methods(http.MethodGet)
	a.HandleFunc("/teams/{team}/xi", api.TeamXI).Methods(http.MethodGet)

	// Team analysis
	a.HandleFunc("/team-sessions", api.CreateTeamSession).Methods(http.MethodPost)
	a.HandleFunc("/team-sessions/{id}", api.GetTeamSession).Methods(http.MethodGet)
	a.HandleFunc("/team-sessions/{id}", api.CloseTeamSession).Methods(http.MethodDelete)
	a.HandleFunc("/team-sessions/{id}/select", api.SelectPlayer).Methods(http.MethodPost)
	a.HandleFunc("/team-sessions/{id}/remove", api.RemovePlayer).Methods(http.MethodPost)
	a.HandleFunc("/team-sessions/{id}/available", api.AvailablePlayers).Methods(http.MethodGet)
	a.HandleFunc("/team-sessions/{id}/analyze", api.AnalyzeTeams).Methods(http.MethodPost)

	// Live analysis
	a.HandleFunc("/live-sessions", api.CreateLiveSession).Methods(http.MethodPost)
	a.HandleFunc("/live-sessions/{id}", api.GetLiveSession).Methods(http.MethodGet)
	a.HandleFunc("/live-sessions/{id}", api.CloseLiveSession).Methods(http.MethodDelete)
	a.HandleFunc("/live-sessions/{id}/teams", api.SetLiveTeams).Methods(http.MethodPost)
	a.HandleFunc("/live-sessions/{id}/score", api.SetLiveScore).Methods(http.MethodPost)
	a.HandleFunc("/live-sessions/{id}/batters/{index:[0-9]+}", api.SetBatterOut).Methods(http.MethodPost)
	a.HandleFunc("/live-sessions/{id}/bowlers", api.SetBowler).Methods(http.MethodPost)
	a.HandleFunc("/live-sessions/{id}/analyze", api.AnalyzeLive).Methods(http.MethodPost)

	// Stateless
	a.HandleFunc("/strength", api.Strength).Methods(http.MethodPost)
	a.HandleFunc("/estimate", api.Estimate).Methods(http.MethodPost)

	// History (protected)
	a.HandleFunc("/history", authProvider.Middleware(api.History)).Methods(http.MethodGet)
	a.HandleFunc("/history/clear", authProvider.Middleware(auth.RequireAdmin(api.ClearHistory))).Methods(http.MethodPost)

	// SSE for realtime updates
	a.HandleFunc("/events", api.EventsSSE).Methods(http.MethodGet)
	a.HandleFunc("/health", api.Health).Methods(http.MethodGet)

	// Kubernetes probes
	r.HandleFunc("/healthz", api.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", api.Readiness).Methods(http.MethodGet)

	return r
}
