package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"vision_analyze",
		"sessions_list",
		"session_get",
		"session_delete",
		"sessions_clear",
		"dashboard_stats",
		"storage_usage",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(tools), len(expectedTools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	tools := GetToolDefinitions()

	for _, tool := range tools {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema == nil {
				t.Fatal("Tool input schema is nil")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("schema type: got %v, want object", tool.InputSchema["type"])
			}
			if _, ok := tool.InputSchema["properties"].(map[string]interface{}); !ok {
				t.Error("schema properties missing")
			}
		})
	}
}

func TestToolDefinitions_DestructiveToolsRequireConfirm(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		if tool.Name != "session_delete" && tool.Name != "sessions_clear" {
			continue
		}
		required, _ := tool.InputSchema["required"].([]string)
		found := false
		for _, r := range required {
			if r == "confirm" {
				found = true
			}
		}
		if !found {
			t.Errorf("%s should require confirm", tool.Name)
		}
	}
}

func TestToolDefinitions_AnalyzeFeatures(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		if tool.Name != "vision_analyze" {
			continue
		}
		props := tool.InputSchema["properties"].(map[string]interface{})
		feature := props["feature"].(map[string]interface{})
		enum := feature["enum"].([]string)
		want := map[string]bool{"face_landmark": true, "image_classification": true, "text_detection": true}
		if len(enum) != len(want) {
			t.Fatalf("feature enum: got %v", enum)
		}
		for _, f := range enum {
			if !want[f] {
				t.Errorf("unexpected upload feature %s", f)
			}
		}
		return
	}
	t.Fatal("vision_analyze not defined")
}

func TestHandleToolsList(t *testing.T) {
	s, _ := newTestServer(t)
	req := &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"}

	resp := s.handleToolsList(req)

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Result is not a map: %T", resp.Result)
	}
	tools, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatalf("tools is not []Tool: %T", result["tools"])
	}
	if len(tools) == 0 {
		t.Error("tools list is empty")
	}
}
