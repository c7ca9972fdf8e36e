// Package tui is the interactive session dashboard: per-feature stats,
// a searchable session list, session detail and guarded deletion.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ironsheep/obvix/internal/dashboard"
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/store"
)

// Store is the part of the session repository the dashboard uses.
type Store interface {
	List(ctx context.Context) ([]*session.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteFeature(ctx context.Context, f session.Feature) (int, error)
	Clear(ctx context.Context) error
	Usage(ctx context.Context) (store.Usage, error)
}

// Mode is what the dashboard is currently showing.
type Mode int

const (
	ModeList Mode = iota
	ModeDetail
	ModeSearch
	ModeConfirm
)

// pending is a destructive action waiting for y/n.
type pending struct {
	prompt  string
	id      string
	feature session.Feature
	all     bool
}

// filters is the feature cycle; the empty feature means every session.
var filters = append([]session.Feature{""}, session.Features...)

// Model is the root bubbletea model for the dashboard.
type Model struct {
	store Store

	all      []*session.Session
	filtered []*session.Session
	usage    store.Usage
	report   dashboard.Report

	filterIndex int
	query       string
	pager       dashboard.Pager
	selected    int
	mode        Mode
	back        Mode
	confirm     *pending
	detail      *dashboard.Detail

	width  int
	height int

	notice   string
	errorMsg string
}

// New creates a dashboard showing every feature. Pass a feature to
// start filtered.
func New(s Store, f session.Feature) Model {
	m := Model{store: s, pager: dashboard.NewPager()}
	for i, ff := range filters {
		if ff == f {
			m.filterIndex = i
		}
	}
	return m
}

// Init loads the sessions.
func (m Model) Init() tea.Cmd {
	return loadCmd(m.store)
}

func loadCmd(s Store) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		sessions, err := s.List(ctx)
		if err != nil {
			return SessionsLoadedMsg{Err: err}
		}
		usage, err := s.Usage(ctx)
		return SessionsLoadedMsg{Sessions: sessions, Usage: usage, Err: err}
	}
}

func deleteCmd(s Store, p pending) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		switch {
		case p.id != "":
			if err := s.Delete(ctx, p.id); err != nil {
				return DeletedMsg{Err: err}
			}
			return DeletedMsg{Removed: 1}
		case p.all:
			sessions, err := s.List(ctx)
			if err != nil {
				return DeletedMsg{Err: err}
			}
			if err := s.Clear(ctx); err != nil {
				return DeletedMsg{Err: err}
			}
			return DeletedMsg{Removed: len(sessions)}
		default:
			n, err := s.DeleteFeature(ctx, p.feature)
			return DeletedMsg{Removed: n, Err: err}
		}
	}
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return ClearNoticeMsg{}
	})
}

// Feature is the active feature filter, empty for all sessions.
func (m Model) Feature() session.Feature { return filters[m.filterIndex] }

// Mode returns the current view mode.
func (m Model) Mode() Mode { return m.mode }

// Visible returns the sessions currently listed, after search and
// pagination, and how many more are available.
func (m Model) Visible() ([]*session.Session, int) {
	return dashboard.Page(m.filtered, m.pager)
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SessionsLoadedMsg:
		if msg.Err != nil {
			m.errorMsg = msg.Err.Error()
			return m, nil
		}
		m.errorMsg = ""
		m.all = msg.Sessions
		m.usage = msg.Usage
		m.refilter()
		return m, nil

	case DeletedMsg:
		m.confirm = nil
		m.mode = ModeList
		m.detail = nil
		if msg.Err != nil {
			m.errorMsg = msg.Err.Error()
			return m, loadCmd(m.store)
		}
		m.notice = fmt.Sprintf("Deleted %d session(s)", msg.Removed)
		return m, tea.Batch(loadCmd(m.store), clearNoticeCmd())

	case ClearNoticeMsg:
		m.notice = ""
		return m, nil
	}

	return m, nil
}

// refilter recomputes the filtered list and stats after any change to
// the sessions, the feature filter or the search query.
func (m *Model) refilter() {
	f := m.Feature()
	m.report = dashboard.Build(m.all, f)
	m.filtered = dashboard.Search(dashboard.Filter(m.all, f), m.query)
	shown, _ := m.Visible()
	if m.selected >= len(shown) {
		m.selected = max(0, len(shown)-1)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m, tea.Quit
	}

	switch m.mode {
	case ModeConfirm:
		return m.handleConfirmKey(key)
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeDetail:
		return m.handleDetailKey(key)
	}
	return m.handleListKey(key)
}

func (m Model) handleListKey(key string) (tea.Model, tea.Cmd) {
	shown, remaining := m.Visible()

	switch key {
	case KeyQuit:
		return m, tea.Quit

	case KeyDown, KeyJ:
		if m.selected < len(shown)-1 {
			m.selected++
		}

	case KeyUp, KeyK:
		if m.selected > 0 {
			m.selected--
		}

	case KeyEnter:
		if m.selected < len(shown) {
			d := dashboard.Describe(shown[m.selected])
			m.detail = &d
			m.mode = ModeDetail
		}

	case KeyTab, KeyShiftTab:
		step := 1
		if key == KeyShiftTab {
			step = len(filters) - 1
		}
		m.filterIndex = (m.filterIndex + step) % len(filters)
		m.pager.Reset()
		m.selected = 0
		m.refilter()

	case KeySearch:
		m.mode = ModeSearch

	case KeyMore:
		if remaining > 0 {
			m.pager.More()
		}

	case KeyReload:
		return m, loadCmd(m.store)

	case KeyDelete:
		if m.selected < len(shown) {
			s := shown[m.selected]
			m.ask(pending{
				prompt: fmt.Sprintf("Delete session #%s? This cannot be undone.", dashboard.ShortID(s.ID)),
				id:     s.ID,
			})
		}

	case KeyClear:
		if f := m.Feature(); f != "" {
			m.ask(pending{
				prompt:  fmt.Sprintf("Delete all %s sessions? This cannot be undone.", f),
				feature: f,
			})
		} else {
			m.ask(pending{prompt: "Delete ALL sessions? This cannot be undone.", all: true})
		}
	}
	return m, nil
}

func (m *Model) ask(p pending) {
	m.confirm = &p
	m.back = m.mode
	m.mode = ModeConfirm
}

func (m Model) handleConfirmKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case KeyYes, KeyYesUpper:
		p := *m.confirm
		return m, deleteCmd(m.store, p)
	case KeyNo, KeyNoUpper, KeyEsc, KeyQuit:
		m.confirm = nil
		m.mode = m.back
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.mode = ModeList
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.query += " "
	case tea.KeyRunes:
		m.query += string(msg.Runes)
	default:
		return m, nil
	}
	m.pager.Reset()
	m.selected = 0
	m.refilter()
	return m, nil
}

func (m Model) handleDetailKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case KeyEsc, KeyBackspace, KeyQuit:
		m.mode = ModeList
		m.detail = nil
	case KeyDelete:
		if m.detail != nil {
			id := m.detail.Session.ID
			m.ask(pending{
				prompt: fmt.Sprintf("Delete session #%s? This cannot be undone.", dashboard.ShortID(id)),
				id:     id,
			})
		}
	}
	return m, nil
}
