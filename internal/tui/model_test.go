package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/store"
)

func seed(t *testing.T) *store.Repository {
	t.Helper()
	repo := store.NewRepository(store.NewMemoryStorage(), 0)
	ctx := context.Background()
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		end := start.Add(time.Duration(i)*time.Hour + time.Minute)
		s := &session.Session{
			ID:             fmt.Sprintf("obj%02d", i),
			Type:           session.ObjectDetection,
			StartTime:      start.Add(time.Duration(i) * time.Hour),
			EndTime:        &end,
			Detections:     []session.Detection{{ID: "d", Label: "PERSON", Score: 80, Timestamp: end}},
			DetectionCount: 1,
		}
		if err := repo.Append(ctx, s); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	face := &session.Session{
		ID:             "face01",
		Type:           session.FaceDetection,
		StartTime:      start,
		Detections:     []session.Detection{{ID: "f", Label: "Face", Score: 100, Timestamp: start}},
		DetectionCount: 1,
	}
	if err := repo.Append(ctx, face); err != nil {
		t.Fatalf("append: %v", err)
	}
	return repo
}

func load(t *testing.T, m Model) Model {
	t.Helper()
	msg := m.Init()()
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func key(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "backspace":
		msg = tea.KeyMsg{Type: tea.KeyBackspace}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = key(m, string(r))
	}
	return m
}

func TestLoadAndPaginate(t *testing.T) {
	m := load(t, New(seed(t), ""))

	shown, remaining := m.Visible()
	if len(shown) != 8 || remaining != 3 {
		t.Fatalf("visible = %d, remaining = %d; want 8, 3", len(shown), remaining)
	}
	if m.report.Overview.TotalSessions != 11 {
		t.Errorf("total sessions = %d, want 11", m.report.Overview.TotalSessions)
	}

	m, _ = key(m, KeyMore)
	shown, remaining = m.Visible()
	if len(shown) != 11 || remaining != 0 {
		t.Fatalf("after more: visible = %d, remaining = %d", len(shown), remaining)
	}
}

func TestFeatureCycleFilters(t *testing.T) {
	m := load(t, New(seed(t), ""))

	m, _ = key(m, "tab")
	if m.Feature() != session.ObjectDetection {
		t.Fatalf("feature = %q", m.Feature())
	}
	shown, remaining := m.Visible()
	if len(shown)+remaining != 10 {
		t.Errorf("object sessions = %d, want 10", len(shown)+remaining)
	}

	m, _ = key(m, "tab")
	shown, _ = m.Visible()
	if len(shown) != 1 || shown[0].ID != "face01" {
		t.Errorf("face filter = %v", shown)
	}
}

func TestSearch(t *testing.T) {
	m := load(t, New(seed(t), ""))

	m, _ = key(m, KeySearch)
	if m.Mode() != ModeSearch {
		t.Fatalf("mode = %v, want search", m.Mode())
	}
	m = typeText(m, "obj0q")
	if m.query != "obj0q" {
		t.Fatalf("query = %q", m.query)
	}
	m, _ = key(m, "backspace")
	m, _ = key(m, "3")
	m, _ = key(m, "enter")

	shown, _ := m.Visible()
	if len(shown) != 1 || shown[0].ID != "obj03" {
		t.Fatalf("search result = %v", shown)
	}
	if m.Mode() != ModeList {
		t.Errorf("mode = %v, want list", m.Mode())
	}
	if !strings.Contains(m.View(), "/obj03") {
		t.Error("view should show the active query")
	}
}

func TestDetailView(t *testing.T) {
	m := load(t, New(seed(t), session.FaceDetection))

	m, _ = key(m, "enter")
	if m.Mode() != ModeDetail || m.detail == nil {
		t.Fatal("enter should open the detail view")
	}
	view := m.View()
	if !strings.Contains(view, "Session #face0") {
		t.Errorf("detail view missing title:\n%s", view)
	}
	if !strings.Contains(view, "--") {
		t.Error("session without end time should show -- duration")
	}

	m, _ = key(m, "esc")
	if m.Mode() != ModeList {
		t.Errorf("esc should return to the list")
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	repo := seed(t)
	m := load(t, New(repo, session.FaceDetection))

	m, cmd := key(m, KeyDelete)
	if cmd != nil {
		t.Fatal("delete must not run before confirmation")
	}
	if m.Mode() != ModeConfirm {
		t.Fatalf("mode = %v, want confirm", m.Mode())
	}
	if !strings.Contains(m.View(), "[y/n]") {
		t.Error("confirm prompt not shown")
	}

	m, cmd = key(m, KeyNo)
	if cmd != nil || m.Mode() != ModeList {
		t.Fatal("n should cancel")
	}
	if _, err := repo.Get(context.Background(), "face01"); err != nil {
		t.Fatalf("session should survive a cancelled delete: %v", err)
	}

	m, _ = key(m, KeyDelete)
	m, cmd = key(m, KeyYes)
	if cmd == nil {
		t.Fatal("y should run the delete")
	}
	updated, _ := m.Update(cmd())
	m = updated.(Model)
	if m.notice != "Deleted 1 session(s)" {
		t.Errorf("notice = %q", m.notice)
	}
	if _, err := repo.Get(context.Background(), "face01"); err == nil {
		t.Error("session should be gone")
	}
}

func TestClearFeature(t *testing.T) {
	repo := seed(t)
	m := load(t, New(repo, session.ObjectDetection))

	m, _ = key(m, KeyClear)
	if !strings.Contains(m.confirm.prompt, "object_detection") {
		t.Errorf("prompt = %q", m.confirm.prompt)
	}
	m, cmd := key(m, KeyYes)
	msg := cmd()
	if d, ok := msg.(DeletedMsg); !ok || d.Removed != 10 || d.Err != nil {
		t.Fatalf("clear result = %#v", msg)
	}

	left, err := repo.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].ID != "face01" {
		t.Errorf("left = %v", left)
	}
}

func TestClearAll(t *testing.T) {
	repo := seed(t)
	m := load(t, New(repo, ""))

	m, _ = key(m, KeyClear)
	if !m.confirm.all {
		t.Fatal("clear with no feature should clear everything")
	}
	_, cmd := key(m, KeyYes)
	if d := cmd().(DeletedMsg); d.Removed != 11 {
		t.Errorf("removed = %d, want 11", d.Removed)
	}
	left, _ := repo.List(context.Background())
	if len(left) != 0 {
		t.Errorf("left = %d sessions", len(left))
	}
}

func TestSelectionStaysInRange(t *testing.T) {
	m := load(t, New(seed(t), session.FaceDetection))
	for i := 0; i < 5; i++ {
		m, _ = key(m, "down")
	}
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}
}

func TestViewEmptyStore(t *testing.T) {
	m := load(t, New(store.NewRepository(store.NewMemoryStorage(), 0), ""))
	if !strings.Contains(m.View(), "No sessions recorded yet") {
		t.Error("empty store should say so")
	}
}
