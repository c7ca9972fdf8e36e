package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ironsheep/obvix/internal/capture"
	"github.com/ironsheep/obvix/internal/imaging"
	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/store"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "obvix"

	// maxLineBytes bounds one request line; tool arguments are small, but
	// clients may inline long paths or queries.
	maxLineBytes = 1024 * 1024
)

// JSON-RPC error codes used in responses.
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// Server answers MCP requests about recorded vision sessions.
type Server struct {
	repo    *store.Repository
	ctrl    *capture.Controller
	cache   *imaging.ImageCache
	version string
}

// MCPRequest is one incoming JSON-RPC message. Notifications carry no ID.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse carries either Result or Error, never both.
type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

// MCPError is the JSON-RPC error object.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// New creates a new MCP server over the session store. ctrl runs image
// analyses; it may be nil, in which case vision_analyze fails.
func New(repo *store.Repository, ctrl *capture.Controller, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{
		repo:    repo,
		ctrl:    ctrl,
		cache:   imaging.NewImageCache(),
		version: version,
	}
}

// Run serves stdin/stdout until stdin closes.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses
// to w until r is exhausted. Lines that do not parse are logged and
// skipped.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	in := bufio.NewScanner(r)
	in.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	out := json.NewEncoder(w)

	for in.Scan() {
		line := in.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("MCP", "failed to parse request: %v", err)
			continue
		}

		resp := s.handleRequest(&req)
		if resp == nil {
			continue
		}
		if err := out.Encode(resp); err != nil {
			logger.Error("MCP", "failed to encode response: %v", err)
		}
	}

	if err := in.Err(); err != nil {
		return fmt.Errorf("read requests: %w", err)
	}
	return nil
}

func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	logger.Debug("MCP", "request %v: %s", req.ID, req.Method)

	switch req.Method {
	case "initialize":
		return result(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": serverName, "version": s.version},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return result(req.ID, map[string]any{})
	default:
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), "")
	}
}

func result(id any, v any) *MCPResponse {
	return &MCPResponse{JSONRPC: "2.0", ID: id, Result: v}
}

func errorResponse(id any, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{JSONRPC: "2.0", ID: id, Error: e}
}
