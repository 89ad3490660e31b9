// Package mcpserver exposes the deliberation engine's session lifecycle
// (start/status/result/pause/resume/kill) as MCP tools, the thin outer
// adapter spec.md's Non-goals on transport scope the engine away from.
//
// Grounded on the teacher's internal/server/server.go: one server struct
// holding the engine's components, one RegisterTools method registering
// each operation via mcp.AddTool with typed request/response structs, one
// handler method per tool.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"boardofone/internal/engine"
	"boardofone/internal/types"
)

// Server adapts engine.Components to the MCP tool surface.
type Server struct {
	comps *engine.Components
}

// New returns a Server backed by comps.
func New(comps *engine.Components) *Server {
	return &Server{comps: comps}
}

// RegisterTools registers every deliberation tool on mcpServer.
func (s *Server) RegisterTools(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "start-deliberation",
		Description: "Start a new deliberation session for a decision problem and return its session ID",
	}, s.handleStart)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "deliberation-status",
		Description: "Get the current lifecycle status and resource metrics for a deliberation session",
	}, s.handleStatus)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "deliberation-result",
		Description: "Get the per-sub-problem recommendations and synthesized recommendation for a session",
	}, s.handleResult)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "pause-deliberation",
		Description: "Pause a running deliberation session between sub-problems",
	}, s.handlePause)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "resume-deliberation",
		Description: "Resume a paused deliberation session",
	}, s.handleResume)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "kill-deliberation",
		Description: "Abort a deliberation session immediately, running or paused",
	}, s.handleKill)
}

// StartRequest names the decision problem to deliberate on.
type StartRequest struct {
	Statement   string   `json:"statement"`
	Context     string   `json:"context,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

// StartResponse returns the new session's ID.
type StartResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleStart(ctx context.Context, req *mcp.CallToolRequest, input StartRequest) (*mcp.CallToolResult, *StartResponse, error) {
	if input.Statement == "" {
		return nil, nil, fmt.Errorf("statement is required")
	}

	problem := &types.Problem{
		Statement:   input.Statement,
		Context:     input.Context,
		Constraints: input.Constraints,
		Status:      types.ProblemStatusPending,
	}

	sessionID, err := s.comps.Sessions.Start(ctx, problem)
	if err != nil {
		return nil, nil, fmt.Errorf("start: %w", err)
	}
	return nil, &StartResponse{SessionID: sessionID}, nil
}

// SessionRequest identifies a session for every other tool.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// StatusResponse mirrors session.Metrics plus the lifecycle status.
type StatusResponse struct {
	Status           string  `json:"status"`
	CostUSD          float64 `json:"cost_usd"`
	StepCount        int     `json:"step_count"`
	SubProblemsDone  int     `json:"sub_problems_done"`
	SubProblemsTotal int     `json:"sub_problems_total"`
	ElapsedSec       float64 `json:"elapsed_sec"`
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input SessionRequest) (*mcp.CallToolResult, *StatusResponse, error) {
	metrics, err := s.comps.Sessions.Metrics(input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return nil, &StatusResponse{
		Status:           string(metrics.Status),
		CostUSD:          metrics.CostUSD,
		StepCount:        metrics.StepCount,
		SubProblemsDone:  metrics.SubProblemsDone,
		SubProblemsTotal: metrics.SubProblemsTotal,
		ElapsedSec:       metrics.ElapsedSec,
	}, nil
}

// SubProblemRecommendation is one sub-problem's outcome in ResultResponse.
type SubProblemRecommendation struct {
	SubProblemID   string  `json:"sub_problem_id"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	RoundsUsed     int     `json:"rounds_used"`
	DissentCount   int     `json:"dissent_count"`
}

// ResultResponse carries every completed sub-problem recommendation plus
// the session's overall meta-synthesis once available.
type ResultResponse struct {
	Status        string                      `json:"status"`
	SubProblems   []SubProblemRecommendation  `json:"sub_problems"`
	MetaSynthesis string                      `json:"meta_synthesis,omitempty"`
}

func (s *Server) handleResult(ctx context.Context, req *mcp.CallToolRequest, input SessionRequest) (*mcp.CallToolResult, *ResultResponse, error) {
	status, err := s.comps.Sessions.Status(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	state, err := s.comps.Sessions.Result(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	resp := &ResultResponse{Status: string(status), MetaSynthesis: state.MetaSynthesis}
	for _, sp := range state.SubProblems {
		result, ok := state.Results[sp.ID]
		if !ok {
			continue
		}
		resp.SubProblems = append(resp.SubProblems, SubProblemRecommendation{
			SubProblemID:   sp.ID,
			Description:    sp.Description,
			Recommendation: result.Recommendation,
			Confidence:     result.Confidence,
			RoundsUsed:     result.RoundsUsed,
			DissentCount:   len(result.Dissent),
		})
	}
	return nil, resp, nil
}

// OKResponse is the uniform acknowledgment for pause/resume/kill.
type OKResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handlePause(ctx context.Context, req *mcp.CallToolRequest, input SessionRequest) (*mcp.CallToolResult, *OKResponse, error) {
	if err := s.comps.Sessions.Pause(input.SessionID); err != nil {
		return nil, nil, err
	}
	return nil, &OKResponse{OK: true}, nil
}

func (s *Server) handleResume(ctx context.Context, req *mcp.CallToolRequest, input SessionRequest) (*mcp.CallToolResult, *OKResponse, error) {
	if err := s.comps.Sessions.Resume(input.SessionID); err != nil {
		return nil, nil, err
	}
	return nil, &OKResponse{OK: true}, nil
}

// KillRequest optionally records why the session was killed.
type KillRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleKill(ctx context.Context, req *mcp.CallToolRequest, input KillRequest) (*mcp.CallToolResult, *OKResponse, error) {
	reason := input.Reason
	if reason == "" {
		reason = "killed via kill-deliberation tool"
	}
	if err := s.comps.Sessions.Kill(input.SessionID, reason); err != nil {
		return nil, nil, err
	}
	return nil, &OKResponse{OK: true}, nil
}
