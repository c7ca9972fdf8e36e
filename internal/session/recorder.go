package session

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/vision"
)

// Saver persists finished and in-progress sessions.
type Saver interface {
	// Append adds s to the end of the stored list.
	Append(ctx context.Context, s *Session) error
	// Prepend adds s to the head of the list and keeps at most retain
	// sessions of the same feature. Zero retain keeps all.
	Prepend(ctx context.Context, s *Session, retain int) error
	// Upsert replaces the stored session with the same id, or appends it.
	Upsert(ctx context.Context, s *Session) error
}

// Option customises a recorder.
type Option func(*env)

type env struct {
	now   func() time.Time
	newID func() string
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *env) { e.now = now }
}

// WithIDs sets the id generator used for sessions and detections.
func WithIDs(newID func() string) Option {
	return func(e *env) { e.newID = newID }
}

func newEnv(opts []Option) env {
	e := env{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Recorder turns the results of a live detection loop into a session.
//
// Start opens a session, Observe is called once per processed frame and
// Stop closes the session, writing it only when at least one event was
// logged. A Recorder can be restarted after Stop.
type Recorder struct {
	mu       sync.Mutex
	policy   Policy
	saver    Saver
	env      env
	sess     *Session
	presence *PresenceTracker
	labels   map[string]struct{}
	lastLog  time.Time
	entities int
}

// NewRecorder creates an idle recorder for feature f.
func NewRecorder(f Feature, saver Saver, opts ...Option) *Recorder {
	p := PolicyFor(f)
	return &Recorder{
		policy:   p,
		saver:    saver,
		env:      newEnv(opts),
		presence: NewPresenceTracker(p.Expiry),
		labels:   make(map[string]struct{}),
	}
}

// Feature returns the feature this recorder logs for.
func (r *Recorder) Feature() Feature { return r.policy.Feature }

// Start opens a new session, discarding any unsaved one.
func (r *Recorder) Start() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.env.now()
	r.sess = &Session{
		ID:         r.env.newID(),
		Type:       r.policy.Feature,
		StartTime:  now,
		Detections: []Detection{},
	}
	r.presence.Reset()
	r.labels = make(map[string]struct{})
	r.lastLog = now
	if r.policy.Mode == LogTopWords {
		// The first frame with valid words logs at once.
		r.lastLog = time.Time{}
	}
	r.entities = 0
	return r.sess.Clone()
}

// Active reports whether a session is open.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess != nil
}

// Entities is the number of results in the most recent frame.
func (r *Recorder) Entities() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entities
}

// Session returns a copy of the open session, or nil.
func (r *Recorder) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return nil
	}
	return r.sess.Clone()
}

// Observe applies the feature's logging policy to one frame of results and
// returns the events it logged. It does nothing when no session is open.
func (r *Recorder) Observe(results []vision.Result) []Detection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess == nil {
		return nil
	}
	r.entities = len(results)

	now := r.env.now()
	p := r.policy
	var logged []Detection

	switch p.Mode {
	case LogOnPresence:
		for _, res := range results {
			if res.Score <= p.MinScore {
				continue
			}
			label := r.label(res)
			if r.presence.Seen(label, now) {
				logged = append(logged, r.add(label, res.Percent(), now))
			}
		}
		r.presence.Expire(now)

	case LogEveryEntity:
		if len(results) == 0 || now.Sub(r.lastLog) <= p.Interval {
			break
		}
		for _, res := range results {
			logged = append(logged, r.add(r.label(res), res.Percent(), now))
		}
		r.lastLog = now

	case LogTopWords:
		valid := make([]vision.Result, 0, len(results))
		for _, res := range results {
			if res.Score > p.MinScore {
				valid = append(valid, res)
			}
		}
		if len(valid) == 0 || now.Sub(r.lastLog) <= p.Interval {
			break
		}
		sort.SliceStable(valid, func(i, j int) bool { return valid[i].Score > valid[j].Score })
		top := valid
		if p.TopWords > 0 && len(top) > p.TopWords {
			top = top[:p.TopWords]
		}
		words := make([]string, len(top))
		for i, w := range top {
			words[i] = w.Label
		}
		label := strings.Join(words, " ")
		if utf8.RuneCountInString(label) <= p.MinLabelLen {
			break
		}
		logged = append(logged, r.add(label, int(math.Round(valid[0].Score*100)), now))
		r.sess.DetectionCount += len(valid) - 1
		r.lastLog = now

	case LogBestIfNew:
		if len(results) == 0 {
			break
		}
		best := results[0]
		for _, res := range results[1:] {
			if res.Score > best.Score {
				best = res
			}
		}
		if best.Score <= p.MinScore {
			break
		}
		label := r.label(best)
		_, seen := r.labels[label]
		if seen && now.Sub(r.lastLog) <= p.Interval {
			break
		}
		logged = append(logged, r.add(label, best.Percent(), now))
		r.labels[label] = struct{}{}
		r.lastLog = now
	}

	return logged
}

// add appends one event to the open session. Caller holds r.mu.
func (r *Recorder) add(label string, score int, now time.Time) Detection {
	d := Detection{
		ID:        r.env.newID(),
		Label:     label,
		Score:     score,
		Timestamp: now,
	}
	if r.policy.CountFaces {
		d.FaceCount = 1
	}
	if r.policy.Prepend {
		r.sess.Detections = append([]Detection{d}, r.sess.Detections...)
	} else {
		r.sess.Detections = append(r.sess.Detections, d)
	}

	switch r.policy.Count {
	case CountLength:
		r.sess.DetectionCount = len(r.sess.Detections)
	default:
		// CountWords adds the remaining words in Observe.
		r.sess.DetectionCount++
	}
	return d
}

func (r *Recorder) label(res vision.Result) string {
	label := res.Label
	if r.policy.Label != "" {
		label = r.policy.Label
	}
	if label == "" {
		label = r.policy.FallbackLabel
	}
	if r.policy.Uppercase {
		label = strings.ToUpper(label)
	}
	return label
}

// Stop closes the open session and persists it if anything was logged. It
// returns the closed session (nil if none was open) and whether it was
// written.
func (r *Recorder) Stop(ctx context.Context) (*Session, bool, error) {
	r.mu.Lock()
	s := r.sess
	r.sess = nil
	r.entities = 0
	if s == nil {
		r.mu.Unlock()
		return nil, false, nil
	}
	end := r.env.now()
	if end.Before(s.StartTime) {
		end = s.StartTime
	}
	s.EndTime = &end
	r.mu.Unlock()

	if len(s.Detections) == 0 {
		logger.Debug("Recorder", "session %s ended with no events, not saved", s.ID)
		return s, false, nil
	}

	var err error
	if r.policy.Prepend {
		err = r.saver.Prepend(ctx, s, r.policy.Retain)
	} else {
		err = r.saver.Append(ctx, s)
	}
	if err != nil {
		return s, false, fmt.Errorf("save session %s: %w", s.ID, err)
	}

	logger.Info("Recorder", "saved %s session %s (%d events)", s.Type, s.ID, len(s.Detections))
	return s, true, nil
}

// UploadRecorder accumulates one-shot analyses into a single session that
// is created on the first analysis and rewritten in place afterwards.
type UploadRecorder struct {
	mu      sync.Mutex
	feature Feature
	saver   Saver
	env     env
	sess    *Session
}

// NewUploadRecorder creates a recorder with no session yet.
func NewUploadRecorder(f Feature, saver Saver, opts ...Option) *UploadRecorder {
	return &UploadRecorder{feature: f, saver: saver, env: newEnv(opts)}
}

// Record adds d as the newest detection and writes the session. If the
// write fails the detection is dropped and the previous state is kept.
func (u *UploadRecorder) Record(ctx context.Context, d Detection) (*Session, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.env.now()
	if d.ID == "" {
		d.ID = u.env.newID()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = now
	}

	var next *Session
	if u.sess != nil {
		next = u.sess.Clone()
	} else {
		next = &Session{ID: u.env.newID(), Type: u.feature, StartTime: now}
	}
	next.Detections = append([]Detection{d}, next.Detections...)
	next.DetectionCount++
	end := now
	if end.Before(next.StartTime) {
		end = next.StartTime
	}
	next.EndTime = &end

	if err := u.saver.Upsert(ctx, next); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	u.sess = next
	return next.Clone(), nil
}

// Session returns a copy of the current session, or nil before the first
// successful Record.
func (u *UploadRecorder) Session() *Session {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.sess == nil {
		return nil
	}
	return u.sess.Clone()
}
