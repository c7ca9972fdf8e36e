// Package server implements the MCP (Model Context Protocol) server for the
// obvix session store.
//
// This package provides a JSON-RPC 2.0 server that lets MCP-compatible
// clients analyze image files with the upload features and browse, report
// on and delete the recorded vision sessions.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr so they never interleave with responses.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Analysis:
//   - vision_analyze: Run an image through face_landmark,
//     image_classification or text_detection and record it
//
// Sessions:
//   - sessions_list: Filtered, searchable session summaries
//   - session_get: One session with its detail view
//   - session_delete: Delete one session (confirm required)
//   - sessions_clear: Delete a feature's sessions or all (confirm required)
//
// Dashboard:
//   - dashboard_stats: Overview and per-feature statistics
//   - storage_usage: Quota usage
//
// # Upload Sessions
//
// All vision_analyze calls for one feature share a single session for the
// lifetime of the server process. The session is written after every
// successful call, so a crash loses nothing already analyzed.
//
// # Image Caching
//
// Decoded images are cached by path and reused across calls, avoiding
// redundant disk I/O when the same file is analyzed with several features.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(repo, ctrl, version)
//	if err := srv.Run(); err != nil {
//	    return err
//	}
package server
