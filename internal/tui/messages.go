package tui

import (
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/store"
)

// SessionsLoadedMsg carries a fresh read of the store.
type SessionsLoadedMsg struct {
	Sessions []*session.Session
	Usage    store.Usage
	Err      error
}

// DeletedMsg reports a finished delete or clear.
type DeletedMsg struct {
	Removed int
	Err     error
}

// ClearNoticeMsg clears the status notice after a timeout.
type ClearNoticeMsg struct{}
