package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/analysis"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/auth"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dal"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dataset"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/pubsub"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/session"
)

func init() {
	logger.Init()
}

type testServer struct {
	api     *APIHandlers
	handler http.Handler
	ds      *dataset.Dataset
	ps      *pubsub.PubSub
	auth    *auth.MockAuth
}

func newTestServer() *testServer {
	ds := dataset.Default()
	ps := pubsub.New()
	svc := analysis.NewService(ds, dal.NewMemoryDAL(), ps)
	api := NewAPIHandlers(svc, session.NewStore(time.Hour), ps)
	mock := auth.NewMockAuth()
	return &testServer{api: api, handler: NewRouter(api, mock), ds: ds, ps: ps, auth: mock}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestPlayersEndpoints(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/api/players", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/players = %d", rec.Code)
	}
	var raw []map[string]interface{}
	decodeBody(t, rec, &raw)
	if len(raw) != s.ds.Len() {
		t.Errorf("expected %d players, got %d", s.ds.Len(), len(raw))
	}
	for _, key := range []string{"Rank", "Player", "Team", "Batting MVP", "Bowling MVP", "Fielding MVP", "Total MVP", "Photo URL"} {
		if _, ok := raw[0][key]; !ok {
			t.Errorf("player JSON missing %q", key)
		}
	}

	rec = s.do(t, http.MethodGet, "/api/players/top?n=3", nil)
	var top struct {
		Batters []models.PlayerRecord `json:"batters"`
		Bowlers []models.PlayerRecord `json:"bowlers"`
	}
	decodeBody(t, rec, &top)
	if len(top.Batters) != 3 || len(top.Bowlers) != 3 {
		t.Errorf("expected 3 of each, got %d/%d", len(top.Batters), len(top.Bowlers))
	}
	if top.Batters[0].BattingMVP < top.Batters[1].BattingMVP {
		t.Error("batters should be sorted descending")
	}

	if rec := s.do(t, http.MethodGet, "/api/players/top?n=zero", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad n should be 400, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/players/1", nil)
	var p models.PlayerRecord
	decodeBody(t, rec, &p)
	if p.Rank != 1 {
		t.Errorf("expected rank 1, got %+v", p)
	}
	if rec := s.do(t, http.MethodGet, "/api/players/9999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown rank should be 404, got %d", rec.Code)
	}
}

func TestTeamsEndpoints(t *testing.T) {
	s := newTestServer()

	var teams []string
	decodeBody(t, s.do(t, http.MethodGet, "/api/teams", nil), &teams)
	if len(teams) == 0 {
		t.Fatal("expected teams")
	}

	var xi []models.PlayerRecord
	decodeBody(t, s.do(t, http.MethodGet, "/api/teams/"+url.PathEscape(teams[0])+"/xi", nil), &xi)
	if len(xi) != dataset.XISize {
		t.Errorf("expected XI of 11, got %d", len(xi))
	}

	if rec := s.do(t, http.MethodGet, "/api/teams/Nowhere/xi", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown team should be 404, got %d", rec.Code)
	}
}

func openTeamSession(t *testing.T, s *testServer) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/team-sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create team session = %d", rec.Code)
	}
	var v teamView
	decodeBody(t, rec, &v)
	if v.ID == "" || len(v.TeamA) != 0 || v.Ready {
		t.Fatalf("unexpected new session %+v", v)
	}
	return v.ID
}

func TestTeamSessionFlow(t *testing.T) {
	s := newTestServer()
	id := openTeamSession(t, s)
	base := "/api/team-sessions/" + id
	players := s.ds.Players()

	if rec := s.do(t, http.MethodPost, base+"/analyze", nil); rec.Code != http.StatusConflict {
		t.Errorf("analyze before full rosters should be 409, got %d", rec.Code)
	}

	for i := 0; i < 22; i++ {
		side := "A"
		if i >= 11 {
			side = "B"
		}
		rec := s.do(t, http.MethodPost, base+"/select", rosterRequest{Side: side, Name: players[i].Name})
		if rec.Code != http.StatusOK {
			t.Fatalf("select %d = %d", i, rec.Code)
		}
	}

	// full roster: further selection is ignored
	var v teamView
	decodeBody(t, s.do(t, http.MethodPost, base+"/select", rosterRequest{Side: "A", Name: players[30].Name}), &v)
	if v.Applied == nil || *v.Applied || len(v.TeamA) != 11 || !v.Ready {
		t.Errorf("12th selection should be a no-op, got %+v", v)
	}

	var avail []models.PlayerRecord
	decodeBody(t, s.do(t, http.MethodGet, base+"/available?side=B", nil), &avail)
	if len(avail) != len(players)-22 {
		t.Errorf("expected %d available, got %d", len(players)-22, len(avail))
	}

	rec := s.do(t, http.MethodPost, base+"/analyze", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze = %d: %s", rec.Code, rec.Body.String())
	}
	var res models.TeamAnalysis
	decodeBody(t, rec, &res)
	if res.Verdict != models.VerdictAWins {
		t.Errorf("top 11 should beat the next 11, got %+v", res)
	}

	if rec := s.do(t, http.MethodDelete, base, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, base, nil); rec.Code != http.StatusNotFound {
		t.Errorf("closed session should be 404, got %d", rec.Code)
	}
}

func TestTeamSessionCrossSideNoOp(t *testing.T) {
	s := newTestServer()
	base := "/api/team-sessions/" + openTeamSession(t, s)

	s.do(t, http.MethodPost, base+"/select", rosterRequest{Side: "A", Name: "Player X"})
	var v teamView
	decodeBody(t, s.do(t, http.MethodPost, base+"/select", rosterRequest{Side: "B", Name: "Player X"}), &v)
	if *v.Applied || len(v.TeamA) != 1 || len(v.TeamB) != 0 {
		t.Errorf("name already on A must not join B, got %+v", v)
	}

	decodeBody(t, s.do(t, http.MethodPost, base+"/remove", rosterRequest{Side: "A", Name: "Player X"}), &v)
	if !*v.Applied || len(v.TeamA) != 0 {
		t.Errorf("remove should apply, got %+v", v)
	}

	if rec := s.do(t, http.MethodPost, base+"/select", rosterRequest{Side: "C", Name: "x"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown side should be 400, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/team-sessions/nope/select", rosterRequest{Side: "A", Name: "x"}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown session should be 404, got %d", rec.Code)
	}
}

func TestTeamSessionRejectsBlankName(t *testing.T) {
	s := newTestServer()
	base := "/api/team-sessions/" + openTeamSession(t, s)

	for _, name := range []string{"", "   "} {
		if rec := s.do(t, http.MethodPost, base+"/select", rosterRequest{Side: "A", Name: name}); rec.Code != http.StatusBadRequest {
			t.Errorf("select %q should be 400, got %d", name, rec.Code)
		}
	}
	var v teamView
	decodeBody(t, s.do(t, http.MethodGet, base, nil), &v)
	if len(v.TeamA) != 0 {
		t.Errorf("blank names must not take a roster slot, got %v", v.TeamA)
	}
}

func TestCloseSessionChecksKind(t *testing.T) {
	s := newTestServer()
	teamID := openTeamSession(t, s)
	rec := s.do(t, http.MethodPost, "/api/live-sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create live session = %d", rec.Code)
	}
	var lv liveView
	decodeBody(t, rec, &lv)

	if rec := s.do(t, http.MethodDelete, "/api/team-sessions/"+lv.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("live session deleted through team path: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodDelete, "/api/live-sessions/"+teamID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("team session deleted through live path: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/live-sessions/"+lv.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("live session should still be open, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodDelete, "/api/live-sessions/"+lv.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete live = %d", rec.Code)
	}
}

func TestLiveSessionFlow(t *testing.T) {
	s := newTestServer()
	teams := s.ds.Teams()

	rec := s.do(t, http.MethodPost, "/api/live-sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create live session = %d", rec.Code)
	}
	var v liveView
	decodeBody(t, rec, &v)
	if len(v.Missing) != 5 {
		t.Errorf("new match should miss 5 fields, got %v", v.Missing)
	}
	base := "/api/live-sessions/" + v.ID

	rec = s.do(t, http.MethodPost, base+"/analyze", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("incomplete analyze should be 422, got %d", rec.Code)
	}
	var missing struct {
		Missing []string `json:"missing"`
	}
	decodeBody(t, rec, &missing)
	if len(missing.Missing) != 5 {
		t.Errorf("expected 5 missing fields, got %v", missing.Missing)
	}

	decodeBody(t, s.do(t, http.MethodPost, base+"/teams", map[string]string{"battingTeam": teams[0], "bowlingTeam": teams[1]}), &v)
	if len(v.BattingXI) != 11 || len(v.BowlingXI) != 11 {
		t.Errorf("XIs should be derived, got %d/%d", len(v.BattingXI), len(v.BowlingXI))
	}

	if rec := s.do(t, http.MethodPost, base+"/teams", map[string]string{"bowlingTeam": teams[0]}); rec.Code != http.StatusBadRequest {
		t.Errorf("same team should be 400, got %d", rec.Code)
	}

	s.do(t, http.MethodPost, base+"/score", map[string]float64{"runs": 80, "target": 160, "overs": 10})

	rec = s.do(t, http.MethodPost, base+"/analyze", nil)
	var res models.LiveAnalysis
	decodeBody(t, rec, &res)
	if math.Abs(res.Probability-34) > 1e-9 {
		t.Errorf("expected 34, got %v", res.Probability)
	}

	decodeBody(t, s.do(t, http.MethodPost, base+"/batters/0", map[string]bool{"out": true}), &v)
	if v.Wickets != 1 {
		t.Errorf("expected derived wicket, got %d", v.Wickets)
	}
	if rec := s.do(t, http.MethodPost, base+"/batters/11", map[string]bool{"out": true}); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range batter should be 400, got %d", rec.Code)
	}

	bowler := v.BowlingXI[0].Name
	decodeBody(t, s.do(t, http.MethodPost, base+"/bowlers", map[string]interface{}{"name": bowler, "selected": true, "overs": 4}), &v)
	if u := v.Bowlers[bowler]; !u.Selected || u.OversBowled != 4 {
		t.Errorf("bowler usage not stored: %+v", v.Bowlers)
	}

	// batting 45, bowling 42 -> +0.3; rate 16; one wicket
	decodeBody(t, s.do(t, http.MethodPost, base+"/analyze", nil), &res)
	if want := 50 + 0.3 - 16 - 5; math.Abs(res.Probability-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, res.Probability)
	}

	s.do(t, http.MethodPost, base+"/score", map[string]float64{"overs": 20})
	decodeBody(t, s.do(t, http.MethodPost, base+"/analyze", nil), &res)
	if res.Probability != 0 {
		t.Errorf("no overs left with runs needed should be 0, got %v", res.Probability)
	}
}

func TestStatelessEndpoints(t *testing.T) {
	s := newTestServer()
	players := s.ds.Players()

	rec := s.do(t, http.MethodPost, "/api/strength", map[string][]string{
		"teamA": {players[0].Name},
		"teamB": {players[0].Name},
	})
	var res models.TeamAnalysis
	decodeBody(t, rec, &res)
	if res.Verdict != models.VerdictTie || res.Message != "It's a tie!" {
		t.Errorf("identical rosters should tie, got %+v", res)
	}

	teams := s.ds.Teams()
	rec = s.do(t, http.MethodPost, "/api/estimate", map[string]interface{}{
		"battingTeam": teams[0], "bowlingTeam": teams[1], "runs": 160, "target": 160, "overs": 20,
	})
	var live models.LiveAnalysis
	decodeBody(t, rec, &live)
	if live.Probability != 100 {
		t.Errorf("target reached should be 100, got %v", live.Probability)
	}

	if rec := s.do(t, http.MethodPost, "/api/estimate", map[string]interface{}{"runs": 1}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing fields should be 422, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad JSON should be 400, got %d", rr.Code)
	}
}

func TestEstimateMissingTeamWithDismissals(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodPost, "/api/estimate", map[string]interface{}{
		"runs": 80, "target": 160, "overs": 10, "battersOut": []int{0},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Missing []string `json:"missing"`
	}
	decodeBody(t, rec, &body)
	if len(body.Missing) != 2 || body.Missing[0] != "battingTeam" || body.Missing[1] != "bowlingTeam" {
		t.Errorf("expected both teams missing, got %v", body.Missing)
	}
}

func TestHistoryRequiresAuth(t *testing.T) {
	s := newTestServer()
	s.do(t, http.MethodPost, "/api/strength", map[string][]string{"teamA": {}, "teamB": {}})

	if rec := s.do(t, http.MethodGet, "/api/history", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("history without login should be 401, got %d", rec.Code)
	}

	login := httptest.NewRecorder()
	s.auth.LoginHandler(login, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	var cookie *http.Cookie
	for _, c := range login.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			cookie = c
		}
	}

	var records []models.AnalysisRecord
	decodeBody(t, s.do(t, http.MethodGet, "/api/history", nil, cookie), &records)
	if len(records) != 1 || records[0].Kind != models.AnalysisTeam {
		t.Errorf("expected one team record, got %+v", records)
	}

	if rec := s.do(t, http.MethodPost, "/api/history/clear", nil, cookie); rec.Code != http.StatusOK {
		t.Errorf("admin clear = %d", rec.Code)
	}
	decodeBody(t, s.do(t, http.MethodGet, "/api/history", nil, cookie), &records)
	if len(records) != 0 {
		t.Errorf("expected cleared history, got %d", len(records))
	}
}

func TestEventsSSE(t *testing.T) {
	s := newTestServer()
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect SSE: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	first, _ := reader.ReadString('\n')
	if !strings.Contains(first, "connected") {
		t.Fatalf("expected connected message, got %q", first)
	}

	body := strings.NewReader(`{"teamA":[],"teamB":[]}`)
	post, err := http.Post(srv.URL+"/api/strength", "application/json", body)
	if err != nil {
		t.Fatalf("post strength: %v", err)
	}
	post.Body.Close()

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before analysis event: %v", err)
		}
		if strings.Contains(line, pubsub.TypeTeamAnalysis) {
			return
		}
	}
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer()

	var health map[string]interface{}
	decodeBody(t, s.do(t, http.MethodGet, "/api/health", nil), &health)
	if health["status"] != "ok" || health["players"] != float64(s.ds.Len()) {
		t.Errorf("unexpected health %v", health)
	}

	if rec := s.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	s.api.AddReadinessCheck("store", func(context.Context) error { return nil })
	if rec := s.do(t, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}

	s.api.AddReadinessCheck("nats", func(context.Context) error { return errors.New("disconnected") })
	rec := s.do(t, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("failing check should give 503, got %d", rec.Code)
	}
	var results map[string]string
	decodeBody(t, rec, &results)
	if results["nats"] != "disconnected" || results["store"] != "ok" {
		t.Errorf("unexpected readiness body %v", results)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer()
	rec := s.do(t, http.MethodGet, "/api/estimate", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/estimate = %d, want 405", rec.Code)
	}
}
