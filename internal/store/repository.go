package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/session"
)

// SessionsKey is the storage key holding the JSON array of sessions.
const SessionsKey = "obvix_sessions"

var (
	// ErrNotFound is returned when no session has the requested id.
	ErrNotFound = errors.New("session not found")
	// ErrQuotaExceeded is returned when writing a session with snapshots
	// would push storage past its quota. The write is not performed.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Usage describes how much of the storage quota is in use.
type Usage struct {
	Used    int64   `json:"used"`
	Total   int64   `json:"total"`
	Percent float64 `json:"percent"`
}

// Repository is the typed view of the sessions array. Every write is a
// read-modify-write of the whole array; entries the caller did not touch
// are written back byte for byte, so fields this program does not know
// about survive.
type Repository struct {
	mu    sync.Mutex
	ls    LocalStorage
	quota int64
}

var _ session.Saver = (*Repository)(nil)

// NewRepository wraps ls. A quota of zero or less disables the check.
func NewRepository(ls LocalStorage, quota int64) *Repository {
	return &Repository{ls: ls, quota: quota}
}

// entry is one stored element. s is nil when the element does not decode
// as a session; such elements are kept but never returned.
type entry struct {
	raw json.RawMessage
	s   *session.Session
}

func (r *Repository) load(ctx context.Context) ([]entry, error) {
	value, ok, err := r.ls.GetItem(ctx, SessionsKey)
	if err != nil {
		return nil, err
	}
	if !ok || len(bytes.TrimSpace([]byte(value))) == 0 {
		return nil, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(value), &raws); err != nil {
		return nil, fmt.Errorf("decode %s: %w", SessionsKey, err)
	}
	entries := make([]entry, len(raws))
	for i, raw := range raws {
		entries[i].raw = raw
		var s session.Session
		if err := json.Unmarshal(raw, &s); err == nil && s.ID != "" {
			entries[i].s = &s
		}
	}
	return entries, nil
}

func newEntry(s *session.Session) (entry, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return entry{}, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return entry{raw: raw, s: s.Clone()}, nil
}

func encode(entries []entry) string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e.raw)
	}
	buf.WriteByte(']')
	return buf.String()
}

// save writes entries back. If written carries snapshots the quota is
// checked first.
func (r *Repository) save(ctx context.Context, entries []entry, written *session.Session) error {
	value := encode(entries)
	if written != nil && written.HasImages() && r.quota > 0 {
		items, err := r.ls.Items(ctx)
		if err != nil {
			return err
		}
		items[SessionsKey] = value
		if used := measure(items); used > r.quota {
			logger.Warn("Store", "dropping session %s: %d bytes would exceed quota of %d", written.ID, used, r.quota)
			return ErrQuotaExceeded
		}
	}
	return r.ls.SetItem(ctx, SessionsKey, value)
}

// measure is the length of the serialised key/value map.
func measure(items map[string]string) int64 {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return 0
	}
	// Encode appends a newline.
	return int64(buf.Len() - 1)
}

// List returns every stored session in stored order.
func (r *Repository) List(ctx context.Context) ([]*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*session.Session, 0, len(entries))
	for _, e := range entries {
		if e.s != nil {
			out = append(out, e.s)
		}
	}
	return out, nil
}

// ListFeature returns the stored sessions belonging to f.
func (r *Repository) ListFeature(ctx context.Context, f session.Feature) ([]*session.Session, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if session.Matches(s, f) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Get returns the session with the given id.
func (r *Repository) Get(ctx context.Context, id string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.s != nil && e.s.ID == id {
			return e.s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Append adds s to the end of the list.
func (r *Repository) Append(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return err
	}
	e, err := newEntry(s)
	if err != nil {
		return err
	}
	return r.save(ctx, append(entries, e), s)
}

// Prepend adds s to the head of the list and drops the oldest sessions of
// the same feature beyond retain. Sessions of other features are kept.
func (r *Repository) Prepend(ctx context.Context, s *session.Session, retain int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return err
	}
	e, err := newEntry(s)
	if err != nil {
		return err
	}

	f := session.FeatureOf(s)
	next := make([]entry, 0, len(entries)+1)
	next = append(next, e)
	kept := 1
	for _, old := range entries {
		if retain > 0 && old.s != nil && session.Matches(old.s, f) {
			if kept >= retain {
				continue
			}
			kept++
		}
		next = append(next, old)
	}
	return r.save(ctx, next, s)
}

// Upsert replaces the session with the same id in place, or appends s.
func (r *Repository) Upsert(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return err
	}
	e, err := newEntry(s)
	if err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].s != nil && entries[i].s.ID == s.ID {
			entries[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, e)
	}
	return r.save(ctx, entries, s)
}

// Delete removes the session with the given id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return err
	}
	next := entries[:0]
	found := false
	for _, e := range entries {
		if e.s != nil && e.s.ID == id {
			found = true
			continue
		}
		next = append(next, e)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.save(ctx, next, nil)
}

// DeleteFeature removes every session belonging to f and returns how many
// were removed.
func (r *Repository) DeleteFeature(ctx context.Context, f session.Feature) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return 0, err
	}
	next := entries[:0]
	removed := 0
	for _, e := range entries {
		if e.s != nil && session.Matches(e.s, f) {
			removed++
			continue
		}
		next = append(next, e)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, r.save(ctx, next, nil)
}

// Clear removes the sessions key entirely.
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ls.RemoveItem(ctx, SessionsKey)
}

// Export returns the stored array exactly as written, or "[]".
func (r *Repository) Export(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok, err := r.ls.GetItem(ctx, SessionsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []byte("[]"), nil
	}
	return []byte(value), nil
}

// Usage reports the serialised size of everything in storage against the
// quota. Percent is capped at 100.
func (r *Repository) Usage(ctx context.Context) (Usage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.ls.Items(ctx)
	if err != nil {
		return Usage{}, err
	}
	u := Usage{Used: measure(items), Total: r.quota}
	if r.quota > 0 {
		u.Percent = math.Min(float64(u.Used)/float64(r.quota)*100, 100)
	}
	return u, nil
}
