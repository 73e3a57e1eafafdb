// Package mcptools exposes the analysis service as MCP tools over
// streamable HTTP.
package mcptools

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/analysis"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// ServerName is reported to MCP clients during initialization
const ServerName = "cricket-league-analysis"

// ToolInfo is one entry of the tool listing
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TeamStrengthArgs are the inputs of the team_strength tool
type TeamStrengthArgs struct {
	Players []string `json:"players" jsonschema:"Player names making up the roster"`
}

// CompareTeamsArgs are the inputs of the compare_teams tool
type CompareTeamsArgs struct {
	TeamA []string `json:"team_a" jsonschema:"Player names on side A"`
	TeamB []string `json:"team_b" jsonschema:"Player names on side B"`
}

// WinProbabilityArgs are the inputs of the win_probability tool. Fields are
// optional here so that missing ones are reported by the estimator
type WinProbabilityArgs struct {
	BattingTeam string             `json:"batting_team,omitempty" jsonschema:"Chasing team name"`
	BowlingTeam string             `json:"bowling_team,omitempty" jsonschema:"Defending team name"`
	Runs        *float64           `json:"runs,omitempty" jsonschema:"Runs scored so far"`
	Target      *float64           `json:"target,omitempty" jsonschema:"Runs required to win"`
	Overs       *float64           `json:"overs,omitempty" jsonschema:"Overs completed (0-20)"`
	BattersOut  []int              `json:"batters_out,omitempty" jsonschema:"XI positions (0-based) of dismissed batters"`
	Bowlers     map[string]float64 `json:"bowlers,omitempty" jsonschema:"Overs bowled keyed by bowler name"`
}

// TopPlayersArgs are the inputs of the top_players tool
type TopPlayersArgs struct {
	N int `json:"n,omitempty" jsonschema:"How many leaders per discipline (default 5)"`
}

// PlayerLookupArgs are the inputs of the player_lookup tool
type PlayerLookupArgs struct {
	Rank int    `json:"rank,omitempty" jsonschema:"League MVP rank"`
	Name string `json:"name,omitempty" jsonschema:"Player name (used when rank is 0)"`
}

// TeamXIArgs are the inputs of the team_xi tool
type TeamXIArgs struct {
	Team string `json:"team" jsonschema:"Team name"`
}

// Server owns the MCP server and its tool registry
type Server struct {
	svc      *analysis.Service
	server   *mcp.Server
	registry []ToolInfo
}

// NewServer registers every analysis tool on a fresh MCP server
func NewServer(svc *analysis.Service, version string) *Server {
	s := &Server{
		svc: svc,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: version,
		}, nil),
		registry: make([]ToolInfo, 0, 8),
	}
	s.register()
	return s
}

// MCP returns the underlying server, for in-process transports
func (s *Server) MCP() *mcp.Server {
	return s.server
}

// Tools lists the registered tools in registration order
func (s *Server) Tools() []ToolInfo {
	return append([]ToolInfo(nil), s.registry...)
}

func (s *Server) register() {
	addTool(s, &mcp.Tool{
		Name:        "team_strength",
		Description: "Summed batting and bowling MVP of a roster; unknown names contribute nothing",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args TeamStrengthArgs) (*mcp.CallToolResult, any, error) {
		st := s.svc.TeamStrength(args.Players)
		return toolJSON(map[string]any{
			"batting": st.Batting,
			"bowling": st.Bowling,
			"total":   st.Total(),
		})
	})

	addTool(s, &mcp.Tool{
		Name:        "compare_teams",
		Description: "Compare two rosters and return each side's strength and the verdict (A_WINS, B_WINS or TIE)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CompareTeamsArgs) (*mcp.CallToolResult, any, error) {
		return toolJSON(s.svc.CompareTeams(ctx, args.TeamA, args.TeamB))
	})

	addTool(s, &mcp.Tool{
		Name:        "win_probability",
		Description: "Estimate the batting side's chance of winning a 20-over chase, as a percentage",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args WinProbabilityArgs) (*mcp.CallToolResult, any, error) {
		res, err := s.svc.Estimate(ctx, args.request())
		if err != nil {
			return toolError(err), nil, nil
		}
		return toolJSON(res)
	})

	addTool(s, &mcp.Tool{
		Name:        "top_players",
		Description: "Leading batters and bowlers by MVP points",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args TopPlayersArgs) (*mcp.CallToolResult, any, error) {
		batters, bowlers := s.svc.TopPlayers(args.N)
		return toolJSON(map[string]any{"batters": batters, "bowlers": bowlers})
	})

	addTool(s, &mcp.Tool{
		Name:        "player_lookup",
		Description: "Find a player by MVP rank or by name",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args PlayerLookupArgs) (*mcp.CallToolResult, any, error) {
		if args.Rank > 0 {
			p, err := s.svc.Player(args.Rank)
			if err != nil {
				return toolError(err), nil, nil
			}
			return toolJSON(p)
		}
		name := strings.TrimSpace(args.Name)
		if name == "" {
			return toolError(fmt.Errorf("rank or name is required")), nil, nil
		}
		p, ok := s.svc.Dataset().ByName(name)
		if !ok {
			return toolError(fmt.Errorf("player not found: %s", name)), nil, nil
		}
		return toolJSON(p)
	})

	addTool(s, &mcp.Tool{
		Name:        "team_xi",
		Description: "The first eleven players listed for a team, used as its playing XI",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args TeamXIArgs) (*mcp.CallToolResult, any, error) {
		ds := s.svc.Dataset()
		if !ds.HasTeam(args.Team) {
			return toolError(fmt.Errorf("unknown team: %s", args.Team)), nil, nil
		}
		return toolJSON(map[string]any{"team": args.Team, "players": ds.DeriveXI(args.Team)})
	})
}

func (a WinProbabilityArgs) request() analysis.EstimateRequest {
	req := analysis.EstimateRequest{
		BattingTeam: a.BattingTeam,
		BowlingTeam: a.BowlingTeam,
		Runs:        a.Runs,
		Target:      a.Target,
		Overs:       a.Overs,
		BattersOut:  a.BattersOut,
	}
	if len(a.Bowlers) > 0 {
		req.Bowlers = make(map[string]models.BowlerUsage, len(a.Bowlers))
		for name, overs := range a.Bowlers {
			req.Bowlers[name] = models.BowlerUsage{Selected: true, OversBowled: overs}
		}
	}
	return req
}

// Handler serves MCP over streamable HTTP. A non-empty apiKey must be
// presented as a bearer token or X-API-Key header.
func (s *Server) Handler(apiKey string) http.Handler {
	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
	return withAPIKey(strings.TrimSpace(apiKey), handler)
}

// ToolsHandler lists the registered tools as JSON
func (s *Server) ToolsHandler(apiKey string) http.Handler {
	return withAPIKey(strings.TrimSpace(apiKey), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"tools": s.registry})
	}))
}

func withAPIKey(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if key == "" {
			if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				key = strings.TrimSpace(authz[7:])
			}
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			logger.Warn("MCP: rejected request without valid API key", "remote", r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func addTool[T any](s *Server, tool *mcp.Tool, handler func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error)) {
	s.registry = append(s.registry, ToolInfo{Name: tool.Name, Description: tool.Description})
	mcp.AddTool(s.server, tool, func(ctx context.Context, req *mcp.CallToolRequest, args T) (*mcp.CallToolResult, any, error) {
		logger.Debug("MCP: tool call", "tool", tool.Name)
		return handler(ctx, req, args)
	})
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
