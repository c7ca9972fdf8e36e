package server

import (
	"github.com/ironsheep/obvix/internal/capture"
	"github.com/ironsheep/obvix/internal/session"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func featureEnum(features []session.Feature) []string {
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	return names
}

// GetToolDefinitions returns all available tool definitions
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: "vision_analyze",
			Description: `Run one image file through a vision feature and record the result.

Supported features:
- face_landmark: counts faces and stores the original and a mesh-masked snapshot
- image_classification: top-3 labels with confidence and a snapshot
- text_detection: OCR words with confidence above 60%

Every call made through this server adds to the same session for its feature,
like several uploads during one visit to the feature page.

Returns the session id, the recorded detection (label, score, counts) and the
raw detector results. Fails when nothing is found or storage is full.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Absolute path to the image file (PNG, JPEG, GIF, BMP, WebP)",
					},
					"feature": map[string]any{
						"type":        "string",
						"description": "Vision feature to run",
						"enum":        featureEnum(capture.UploadFeatures),
					},
				},
				"required": []string{"path", "feature"},
			},
		},
		{
			Name: "sessions_list",
			Description: `List recorded sessions in stored order.

Filter by feature and by a case-insensitive search over the session id,
start date and detection labels. Returns one summary line per session and
the number of sessions left after the limit.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"feature": map[string]any{
						"type":        "string",
						"description": "Only sessions of this feature (omit for all)",
						"enum":        featureEnum(session.Features),
					},
					"query": map[string]any{
						"type":        "string",
						"description": "Search text",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum sessions to return (default: 8)",
						"default":     8,
						"minimum":     1,
					},
				},
			},
		},
		{
			Name: "session_get",
			Description: `Get one session with its detail view: label distribution,
timeline, duration, average confidence and OCR word confidence buckets.

Snapshot images are replaced by their size unless include_images is true.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Session id",
					},
					"include_images": map[string]any{
						"type":        "boolean",
						"description": "Return snapshot data URLs (default: false)",
						"default":     false,
					},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "session_delete",
			Description: "Delete one session permanently. Requires confirm: true.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Session id",
					},
					"confirm": map[string]any{
						"type":        "boolean",
						"description": "Must be true; deletion cannot be undone",
					},
				},
				"required": []string{"id", "confirm"},
			},
		},
		{
			Name: "sessions_clear",
			Description: `Delete every session of a feature, or every session when no
feature is given. Requires confirm: true.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"feature": map[string]any{
						"type":        "string",
						"description": "Feature to clear (omit to clear all)",
						"enum":        featureEnum(session.Features),
					},
					"confirm": map[string]any{
						"type":        "boolean",
						"description": "Must be true; deletion cannot be undone",
					},
				},
				"required": []string{"confirm"},
			},
		},
		{
			Name: "dashboard_stats",
			Description: `Dashboard statistics for one feature or all sessions.

Always includes totals, average confidence, the top-10 label distribution
and a trend over the last 14 sessions. Text, classification and face
landmark features add their own sections.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"feature": map[string]any{
						"type":        "string",
						"description": "Feature to report on (omit for all)",
						"enum":        featureEnum(session.Features),
					},
				},
			},
		},
		{
			Name:        "storage_usage",
			Description: "Report how much of the session storage quota is used.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return result(req.ID, map[string]any{"tools": GetToolDefinitions()})
}
