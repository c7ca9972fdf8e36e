package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/obvix/internal/capture"
	"github.com/ironsheep/obvix/internal/imaging"
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/store"
	"github.com/ironsheep/obvix/internal/vision"
)

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "upload.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool runs a tools/call request and decodes the text content into out.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}, out interface{}) *MCPError {
	t.Helper()

	params := map[string]interface{}{"name": name, "arguments": args}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return resp.Error
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
			t.Fatalf("decode tool result: %v", err)
		}
	}
	return nil
}

func seedSessions(t *testing.T, repo *store.Repository) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	end := start.Add(2*time.Minute + 5*time.Second)

	snap, err := imaging.Snapshot(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	sessions := []*session.Session{
		{
			ID: "obj-1", Type: session.ObjectDetection, StartTime: start, EndTime: &end,
			Detections: []session.Detection{
				{ID: "a", Label: "PERSON", Score: 82, Timestamp: start.Add(time.Second)},
				{ID: "b", Label: "DOG", Score: 64, Timestamp: start.Add(2 * time.Second)},
			},
			DetectionCount: 2,
		},
		{
			ID: "obj-2", Type: session.ObjectDetection, StartTime: start.Add(time.Hour), EndTime: &end,
			Detections:     []session.Detection{{ID: "c", Label: "CAT", Score: 70, Timestamp: start}},
			DetectionCount: 1,
		},
		{
			ID: "txt-1", Type: session.TextDetection, StartTime: start, EndTime: &end,
			Detections: []session.Detection{{
				ID: "d", Label: "HELLO", Score: 91, Timestamp: start,
				Words:     []session.Word{{Text: "HELLO", Confidence: 91}},
				WordCount: 1, AvgConfidence: 91, Text: "HELLO",
			}},
			DetectionCount: 1,
		},
		{
			ID: "mesh-1", Type: session.FaceLandmark, StartTime: start, EndTime: &end,
			Detections: []session.Detection{{
				ID: "e", Label: session.FaceMeshLabel, Score: 100, Timestamp: start,
				FaceCount: 2, OriginalImage: snap, MaskedImage: snap,
			}},
			DetectionCount: 1,
		},
	}
	for _, s := range sessions {
		if err := repo.Append(ctx, s); err != nil {
			t.Fatalf("append %s: %v", s.ID, err)
		}
	}
}

type listResult struct {
	Sessions []struct {
		ID      string `json:"id"`
		Feature string `json:"feature"`
		Preview string `json:"preview"`
	} `json:"sessions"`
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
}

func TestHandleToolsCall_SessionsList(t *testing.T) {
	s, repo := newTestServer(t)
	seedSessions(t, repo)

	tests := []struct {
		name      string
		args      map[string]interface{}
		wantIDs   []string
		wantTotal int
	}{
		{"all", map[string]interface{}{}, []string{"obj-1", "obj-2", "txt-1", "mesh-1"}, 4},
		{"feature", map[string]interface{}{"feature": "object_detection"}, []string{"obj-1", "obj-2"}, 2},
		{"feature alias", map[string]interface{}{"feature": "Object-Detection"}, []string{"obj-1", "obj-2"}, 2},
		{"query label", map[string]interface{}{"query": "dog"}, []string{"obj-1"}, 1},
		{"limit", map[string]interface{}{"limit": 3}, []string{"obj-1", "obj-2", "txt-1"}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got listResult
			if e := callTool(t, s, "sessions_list", tt.args, &got); e != nil {
				t.Fatalf("Unexpected error: %+v", e)
			}
			if got.Total != tt.wantTotal {
				t.Errorf("total: got %d, want %d", got.Total, tt.wantTotal)
			}
			if got.Remaining != tt.wantTotal-len(tt.wantIDs) {
				t.Errorf("remaining: got %d", got.Remaining)
			}
			if len(got.Sessions) != len(tt.wantIDs) {
				t.Fatalf("sessions: got %d, want %d", len(got.Sessions), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got.Sessions[i].ID != id {
					t.Errorf("sessions[%d]: got %s, want %s", i, got.Sessions[i].ID, id)
				}
			}
		})
	}
}

func TestHandleToolsCall_SessionsListInvalidFeature(t *testing.T) {
	s, _ := newTestServer(t)

	e := callTool(t, s, "sessions_list", map[string]interface{}{"feature": "x_ray"}, nil)
	if e == nil {
		t.Fatal("expected an error for an unknown feature")
	}
	if e.Code != -32000 {
		t.Errorf("code: got %d, want -32000", e.Code)
	}
}

func TestHandleToolsCall_SessionGet(t *testing.T) {
	s, repo := newTestServer(t)
	seedSessions(t, repo)

	var got struct {
		Session       session.Session `json:"session"`
		Duration      string          `json:"duration"`
		AvgConfidence int             `json:"avgConfidence"`
	}
	if e := callTool(t, s, "session_get", map[string]interface{}{"id": "mesh-1"}, &got); e != nil {
		t.Fatalf("Unexpected error: %+v", e)
	}
	if got.Duration != "2m 5s" {
		t.Errorf("duration: got %q", got.Duration)
	}
	d := got.Session.Detections[0]
	if !strings.HasPrefix(d.OriginalImage, "[image/jpeg ") {
		t.Errorf("image should be summarized, got %.40q", d.OriginalImage)
	}

	if e := callTool(t, s, "session_get", map[string]interface{}{"id": "mesh-1", "include_images": true}, &got); e != nil {
		t.Fatalf("Unexpected error: %+v", e)
	}
	if !strings.HasPrefix(got.Session.Detections[0].OriginalImage, "data:image/jpeg;base64,") {
		t.Error("include_images should return the data URL")
	}

	stored, _ := repo.Get(context.Background(), "mesh-1")
	if !strings.HasPrefix(stored.Detections[0].MaskedImage, "data:") {
		t.Error("summarizing must not modify the stored session")
	}
}

func TestHandleToolsCall_SessionGetNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	e := callTool(t, s, "session_get", map[string]interface{}{"id": "nope"}, nil)
	if e == nil {
		t.Fatal("expected an error")
	}
	if data, _ := e.Data.(string); !strings.Contains(data, "session not found") {
		t.Errorf("error data: got %v", e.Data)
	}
}

func TestHandleToolsCall_SessionDelete(t *testing.T) {
	s, repo := newTestServer(t)
	seedSessions(t, repo)
	ctx := context.Background()

	e := callTool(t, s, "session_delete", map[string]interface{}{"id": "obj-2"}, nil)
	if e == nil || !strings.Contains(e.Data.(string), "confirm") {
		t.Fatalf("delete without confirm should fail, got %+v", e)
	}
	if _, err := repo.Get(ctx, "obj-2"); err != nil {
		t.Fatalf("session should survive an unconfirmed delete: %v", err)
	}

	if e := callTool(t, s, "session_delete", map[string]interface{}{"id": "obj-2", "confirm": true}, nil); e != nil {
		t.Fatalf("Unexpected error: %+v", e)
	}
	if _, err := repo.Get(ctx, "obj-2"); err == nil {
		t.Error("session should be deleted")
	}

	left, _ := repo.List(ctx)
	if len(left) != 3 {
		t.Errorf("left: got %d sessions, want 3", len(left))
	}
}

func TestHandleToolsCall_SessionsClear(t *testing.T) {
	s, repo := newTestServer(t)
	seedSessions(t, repo)
	ctx := context.Background()

	if e := callTool(t, s, "sessions_clear", map[string]interface{}{"feature": "object_detection"}, nil); e == nil {
		t.Fatal("clear without confirm should fail")
	}

	var got struct {
		Removed int `json:"removed"`
	}
	args := map[string]interface{}{"feature": "object_detection", "confirm": true}
	if e := callTool(t, s, "sessions_clear", args, &got); e != nil {
		t.Fatalf("Unexpected error: %+v", e)
	}
	if got.Removed != 2 {
		t.Errorf("removed: got %d, want 2", got.Removed)
	}

	if e := callTool(t, s, "sessions_clear", map[string]interface{}{"confirm": true}, &got); e != nil {
		t.Fatalf("Unexpected error: %+v", e)
	}
	if got.Removed != 2 {
		t.Errorf("removed: got %d, want 2", got.Removed)
	}
	if left, _ := repo.List(ctx); len(left) != 0 {
		t.Errorf("left: got %d sessions, want 0", len(left))
	}
}

func TestHandleToolsCall_DashboardStats(t *testing.T) {
	s, repo := newTestServer(t)
	seedSessions(t, repo)

	var all struct {
		Overview struct {
			TotalSessions   int `json:"totalSessions"`
			TotalDetections int `json:"totalDetections"`
		} `json:"overview"`
		Text *json.RawMessage `json:"text"`
	}
	if e := callTool(t, s, "dashboard_stats", map[string]interface{}{}, &all); e != nil {
		t.Fatalf("Unexpected error: %+v", e)
	}
	if all.Overview.TotalSessions != 4 || all.Overview.TotalDetections != 5 {
		t.Errorf("overview: got %+v", all.Overview)
	}
	if all.Text != nil {
		t.Error("overall stats should not include a text section")
	}

	var text struct {
		Text struct {
			TotalWords int `json:"totalWords"`
		} `json:"text"`
	}
	if e := callTool(t, s, "dashboard_stats", map[string]interface{}{"feature": "text_detection"}, &text); e != nil {
		t.Fatalf("Unexpected error: %+v", e)
	}
	if text.Text.TotalWords != 1 {
		t.Errorf("total words: got %d, want 1", text.Text.TotalWords)
	}
}

func TestHandleToolsCall_StorageUsage(t *testing.T) {
	repo := store.NewRepository(store.NewMemoryStorage(), 100)
	s := New(repo, nil, "test")
	if err := repo.Append(context.Background(), &session.Session{ID: "x", Type: session.FaceDetection, Detections: []session.Detection{}}); err != nil {
		t.Fatal(err)
	}

	var got usageResult
	if e := callTool(t, s, "storage_usage", nil, &got); e != nil {
		t.Fatalf("Unexpected error: %+v", e)
	}
	if got.Total != 100 || got.Used == 0 {
		t.Errorf("usage: got %+v", got.Usage)
	}
	if got.TotalHuman != "100 B" {
		t.Errorf("total human: got %q", got.TotalHuman)
	}
	if got.Warning != (got.Percent > 80) {
		t.Errorf("warning flag does not match percent %.1f", got.Percent)
	}
}

type stubLoader map[session.Feature]vision.Detector

func (l stubLoader) Load(f session.Feature) (vision.Detector, error) {
	return l[f], nil
}

func TestHandleToolsCall_VisionAnalyze(t *testing.T) {
	repo := store.NewRepository(store.NewMemoryStorage(), 0)
	classifier := vision.DetectorFunc(func(context.Context, image.Image) ([]vision.Result, error) {
		return []vision.Result{
			{Label: "tabby, tabby cat", Score: 0.9},
			{Label: "tiger cat", Score: 0.06},
		}, nil
	})
	ctrl := capture.NewController(capture.Options{
		Loader: stubLoader{session.ImageClassification: classifier},
		Saver:  repo,
	})
	s := New(repo, ctrl, "test")
	imgPath := createTestImageFile(t, 40, 30, color.RGBA{200, 100, 50, 255})

	var first, second analyzeResult
	args := map[string]interface{}{"path": imgPath, "feature": "image_classification"}
	if e := callTool(t, s, "vision_analyze", args, &first); e != nil {
		t.Fatalf("Unexpected error: %+v", e)
	}
	if first.Detection.Label != "tabby, tabby cat" || first.Detection.Score != 90 {
		t.Errorf("detection: got %s %d", first.Detection.Label, first.Detection.Score)
	}
	if len(first.Detection.Predictions) != 2 {
		t.Errorf("predictions: got %d, want 2", len(first.Detection.Predictions))
	}
	if !strings.HasPrefix(first.Detection.ImageData, "[image/jpeg ") {
		t.Errorf("snapshot should be summarized, got %.40q", first.Detection.ImageData)
	}
	if len(first.Results) != 2 {
		t.Errorf("results: got %d, want 2", len(first.Results))
	}

	if e := callTool(t, s, "vision_analyze", args, &second); e != nil {
		t.Fatalf("Unexpected error: %+v", e)
	}
	if second.SessionID != first.SessionID {
		t.Error("analyses through one server should share a session")
	}
	if second.DetectionCount != 2 {
		t.Errorf("detection count: got %d, want 2", second.DetectionCount)
	}
	if s.cache.Len() != 1 {
		t.Errorf("cache: got %d images, want 1", s.cache.Len())
	}

	stored, err := repo.List(context.Background())
	if err != nil || len(stored) != 1 {
		t.Fatalf("stored: got %d sessions, err %v", len(stored), err)
	}
}

func TestHandleToolsCall_VisionAnalyzeErrors(t *testing.T) {
	repo := store.NewRepository(store.NewMemoryStorage(), 0)
	imgPath := createTestImageFile(t, 10, 10, color.White)
	ctrl := capture.NewController(capture.Options{Loader: stubLoader{}, Saver: repo})

	tests := []struct {
		name string
		srv  *Server
		args map[string]interface{}
		want string
	}{
		{"no controller", New(repo, nil, ""), map[string]interface{}{"path": imgPath, "feature": "text_detection"}, "not available"},
		{"missing path", New(repo, ctrl, ""), map[string]interface{}{"feature": "text_detection"}, "path is required"},
		{"unknown feature", New(repo, ctrl, ""), map[string]interface{}{"path": imgPath, "feature": "xray"}, "unknown feature"},
		{"live-only feature", New(repo, ctrl, ""), map[string]interface{}{"path": imgPath, "feature": "hand_tracking"}, "does not support"},
		{"missing file", New(repo, ctrl, ""), map[string]interface{}{"path": "/nonexistent/x.png", "feature": "image_classification"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := callTool(t, tt.srv, "vision_analyze", tt.args, nil)
			if e == nil {
				t.Fatal("expected an error")
			}
			if e.Code != -32000 {
				t.Errorf("code: got %d, want -32000", e.Code)
			}
			if data, _ := e.Data.(string); !strings.Contains(data, tt.want) {
				t.Errorf("error data %q should contain %q", data, tt.want)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"oops"`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected -32602, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s, _ := newTestServer(t)

	e := callTool(t, s, "image_crop", map[string]interface{}{}, nil)
	if e == nil {
		t.Fatal("expected an error")
	}
	if data, _ := e.Data.(string); !strings.Contains(data, "unknown tool: image_crop") {
		t.Errorf("error data: got %v", e.Data)
	}
}
