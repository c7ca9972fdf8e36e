package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/obvix/internal/dashboard"
	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/store"
	"github.com/ironsheep/obvix/internal/vision"
)

// errNotConfirmed is returned by destructive tools called without confirm.
var errNotConfirmed = errors.New("deletion is permanent: call again with confirm set to true")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "sessions_list", "vision_analyze").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	out, err := s.executeTool(context.Background(), params.Name, params.Arguments)
	if err != nil {
		logger.Warn("MCP", "tool %s failed: %v", params.Name, err)
		return errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return result(req.ID, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": mustMarshalJSON(out)},
		},
	})
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Validates the feature and applies defaults
//  3. Reads or writes the session store
//  4. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Analysis
	case "vision_analyze":
		return s.handleVisionAnalyze(ctx, args)

	// Sessions
	case "sessions_list":
		return s.handleSessionsList(ctx, args)
	case "session_get":
		return s.handleSessionGet(ctx, args)
	case "session_delete":
		return s.handleSessionDelete(ctx, args)
	case "sessions_clear":
		return s.handleSessionsClear(ctx, args)

	// Dashboard
	case "dashboard_stats":
		return s.handleDashboardStats(ctx, args)
	case "storage_usage":
		return s.handleStorageUsage(ctx)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// parseOptionalFeature accepts an empty string as "all features".
func parseOptionalFeature(s string) (session.Feature, error) {
	if s == "" {
		return "", nil
	}
	return session.ParseFeature(s)
}

// === Analysis Handlers ===

type visionAnalyzeArgs struct {
	Path    string `json:"path"`
	Feature string `json:"feature"`
}

type analyzeResult struct {
	SessionID      string            `json:"sessionId"`
	Feature        session.Feature   `json:"feature"`
	DetectionCount int               `json:"detectionCount"`
	Detection      session.Detection `json:"detection"`
	Results        []vision.Result   `json:"results"`
}

func (s *Server) handleVisionAnalyze(ctx context.Context, args json.RawMessage) (any, error) {
	var a visionAnalyzeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	f, err := session.ParseFeature(a.Feature)
	if err != nil {
		return nil, err
	}
	if s.ctrl == nil {
		return nil, errors.New("image analysis is not available in this server")
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.ctrl.Analyze(ctx, f, img)
	if err != nil {
		return nil, err
	}

	stripped := dashboard.WithoutImages(&session.Session{Detections: []session.Detection{res.Detection}})
	return &analyzeResult{
		SessionID:      res.Session.ID,
		Feature:        f,
		DetectionCount: res.Session.DetectionCount,
		Detection:      stripped.Detections[0],
		Results:        res.Results,
	}, nil
}

// === Session Handlers ===

type sessionsListArgs struct {
	Feature string `json:"feature"`
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
}

func (s *Server) handleSessionsList(ctx context.Context, args json.RawMessage) (any, error) {
	var a sessionsListArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Limit == 0 {
		a.Limit = dashboard.PageSize
	}
	if a.Limit < 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", a.Limit)
	}
	f, err := parseOptionalFeature(a.Feature)
	if err != nil {
		return nil, err
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return dashboard.List(all, f, a.Query, a.Limit), nil
}

type sessionGetArgs struct {
	ID            string `json:"id"`
	IncludeImages bool   `json:"include_images"`
}

func (s *Server) handleSessionGet(ctx context.Context, args json.RawMessage) (any, error) {
	var a sessionGetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.repo.Get(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	d := dashboard.Describe(sess)
	if !a.IncludeImages {
		d.Session = dashboard.WithoutImages(sess)
	}
	return d, nil
}

type sessionDeleteArgs struct {
	ID      string `json:"id"`
	Confirm bool   `json:"confirm"`
}

func (s *Server) handleSessionDelete(ctx context.Context, args json.RawMessage) (any, error) {
	var a sessionDeleteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if !a.Confirm {
		return nil, errNotConfirmed
	}
	if err := s.repo.Delete(ctx, a.ID); err != nil {
		return nil, err
	}
	logger.Info("MCP", "deleted session %s", a.ID)
	return map[string]any{"deleted": a.ID}, nil
}

type sessionsClearArgs struct {
	Feature string `json:"feature"`
	Confirm bool   `json:"confirm"`
}

func (s *Server) handleSessionsClear(ctx context.Context, args json.RawMessage) (any, error) {
	var a sessionsClearArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	f, err := parseOptionalFeature(a.Feature)
	if err != nil {
		return nil, err
	}
	if !a.Confirm {
		return nil, errNotConfirmed
	}

	var removed int
	if f == "" {
		all, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Clear(ctx); err != nil {
			return nil, err
		}
		removed = len(all)
	} else {
		removed, err = s.repo.DeleteFeature(ctx, f)
		if err != nil {
			return nil, err
		}
	}
	logger.Info("MCP", "cleared %d session(s) feature=%q", removed, f)
	return map[string]any{"removed": removed, "feature": string(f)}, nil
}

// === Dashboard Handlers ===

type dashboardStatsArgs struct {
	Feature string `json:"feature"`
}

func (s *Server) handleDashboardStats(ctx context.Context, args json.RawMessage) (any, error) {
	var a dashboardStatsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	f, err := parseOptionalFeature(a.Feature)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return dashboard.Build(all, f), nil
}

type usageResult struct {
	store.Usage
	UsedHuman  string `json:"usedHuman"`
	TotalHuman string `json:"totalHuman"`
	Warning    bool   `json:"warning"`
}

func (s *Server) handleStorageUsage(ctx context.Context) (any, error) {
	u, err := s.repo.Usage(ctx)
	if err != nil {
		return nil, err
	}
	return &usageResult{
		Usage:      u,
		UsedHuman:  dashboard.Bytes(u.Used),
		TotalHuman: dashboard.Bytes(u.Total),
		Warning:    u.Percent > dashboard.UsageWarnPercent,
	}, nil
}
