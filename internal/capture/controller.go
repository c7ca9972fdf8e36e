// Package capture drives live detection sessions and one-shot image
// analyses. A Controller owns at most one running capture at a time: it
// loads the feature's detector, opens the camera, runs the detection loop
// and feeds every processed frame into the session recorder.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/overlay"
	"github.com/ironsheep/obvix/internal/pipeline"
	"github.com/ironsheep/obvix/internal/session"
)

var (
	// ErrModelLoad reports that a feature's detector could not be loaded.
	ErrModelLoad = errors.New("model load failed")
	// ErrCamera reports that the camera could not be opened.
	ErrCamera = errors.New("camera unavailable")
	// ErrBusy is returned by Start while a capture is already running.
	ErrBusy = errors.New("capture already running")
	// ErrNotRunning is returned by Stop when no capture is running.
	ErrNotRunning = errors.New("no capture running")
)

// State is the controller lifecycle state.
type State string

const (
	Idle      State = "idle"
	Streaming State = "streaming"
	Stopped   State = "stopped"
)

// Status is a snapshot of the controller for status displays.
type Status struct {
	State     State           `json:"state"`
	Feature   session.Feature `json:"feature,omitempty"`
	Camera    int             `json:"camera"`
	SessionID string          `json:"sessionId,omitempty"`
	StartedAt *time.Time      `json:"startedAt,omitempty"`
	FPS       float64         `json:"fps"`
	Entities  int             `json:"entities"`
	Events    int             `json:"events"`
}

// Result is what Stop reports about the finished session.
type Result struct {
	Session *session.Session `json:"session"`
	Saved   bool             `json:"saved"`
}

// Options configures a Controller.
type Options struct {
	Loader   ModelLoader
	Open     CameraOpener
	Saver    session.Saver
	Metrics  *pipeline.Metrics
	Interval time.Duration

	// Recorder options, used by tests to pin time and ids.
	RecorderOptions []session.Option
}

// Controller runs live captures and upload analyses against one store.
type Controller struct {
	opts    Options
	metrics *pipeline.Metrics
	hub     *Hub

	mu        sync.Mutex
	state     State
	feature   session.Feature
	camera    int
	startedAt time.Time
	loop      *pipeline.Loop
	recorder  *session.Recorder
	fps       fpsMeter

	uploadMu sync.Mutex
	uploads  map[session.Feature]*session.UploadRecorder
}

// NewController creates an idle controller.
func NewController(opts Options) *Controller {
	m := opts.Metrics
	if m == nil {
		m = pipeline.NewMetrics()
	}
	return &Controller{
		opts:    opts,
		metrics: m,
		hub:     NewHub(),
		state:   Idle,
		uploads: make(map[session.Feature]*session.UploadRecorder),
	}
}

// Hub returns the update fan-out for live captures.
func (c *Controller) Hub() *Hub { return c.hub }

// Metrics returns the loop counters.
func (c *Controller) Metrics() *pipeline.Metrics { return c.metrics }

// Start loads the feature's detector, opens the camera and begins a new
// session. The capture keeps running after ctx is done; call Stop.
func (c *Controller) Start(ctx context.Context, f session.Feature, camera int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Streaming {
		return ErrBusy
	}

	det, err := c.opts.Loader.Load(f)
	if err != nil {
		logger.Error("Capture", "failed to load %s model: %v", f, err)
		return fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	src, err := c.opts.Open(camera)
	if err != nil {
		logger.Error("Capture", "failed to open camera %d: %v", camera, err)
		return fmt.Errorf("%w: %w", ErrCamera, err)
	}

	rec := session.NewRecorder(f, c.opts.Saver, c.opts.RecorderOptions...)
	sess := rec.Start()

	loop := pipeline.New(src, det, c.onFrame(rec, f),
		pipeline.WithInterval(c.opts.Interval),
		pipeline.WithMetrics(c.metrics))
	if err := loop.Start(context.WithoutCancel(ctx)); err != nil {
		_ = loop.Stop()
		return err
	}

	c.state = Streaming
	c.feature = f
	c.camera = camera
	c.startedAt = sess.StartTime
	c.loop = loop
	c.recorder = rec
	c.fps.reset(time.Now())
	c.metrics.CaptureActive.Store(1)

	logger.Info("Capture", "started %s on camera %d (session %s)", f, camera, sess.ID)
	return nil
}

func (c *Controller) onFrame(rec *session.Recorder, f session.Feature) pipeline.Handler {
	return func(frame pipeline.Frame) {
		events := rec.Observe(frame.Results)
		if n := len(events); n > 0 {
			c.metrics.EventsLogged.Add(uint64(n))
			for _, e := range events {
				logger.Debug("Capture", "logged %q (%d%%)", e.Label, e.Score)
			}
		}

		c.mu.Lock()
		fps := c.fps.tick(frame.At)
		c.mu.Unlock()

		if c.hub.Len() == 0 {
			return
		}
		u := &Update{
			Feature: f,
			At:      frame.At,
			FPS:     fps,
			Results: frame.Results,
			Events:  events,
			Overlay: overlay.Render(frame.Image, f, frame.Results),
		}
		if s := rec.Session(); s != nil {
			u.SessionID = s.ID
		}
		c.hub.publish(u)
	}
}

// Stop halts the running capture, releases the camera and persists the
// session if it logged anything. The returned error reports a failed
// save; the capture is stopped either way.
func (c *Controller) Stop(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if c.state != Streaming {
		c.mu.Unlock()
		return nil, ErrNotRunning
	}
	loop, rec := c.loop, c.recorder
	c.loop, c.recorder = nil, nil
	c.state = Stopped
	c.mu.Unlock()

	if err := loop.Stop(); err != nil {
		logger.Warn("Capture", "failed to release camera: %v", err)
	}
	c.metrics.CaptureActive.Store(0)

	s, saved, err := rec.Stop(ctx)
	if saved {
		c.metrics.SessionsSaved.Add(1)
	}
	res := &Result{Session: s, Saved: saved}
	if err != nil {
		logger.Error("Capture", "%v", err)
		return res, err
	}
	logger.Info("Capture", "stopped %s (saved=%t)", rec.Feature(), saved)
	return res, nil
}

// Status reports the controller state and live statistics.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state, Feature: c.feature, Camera: c.camera}
	if c.state != Streaming {
		return st
	}
	started := c.startedAt
	st.StartedAt = &started
	st.FPS = c.fps.value
	if s := c.recorder.Session(); s != nil {
		st.SessionID = s.ID
		st.Events = len(s.Detections)
	}
	st.Entities = c.recorder.Entities()
	return st
}

// fpsMeter counts frames over one-second windows.
type fpsMeter struct {
	start time.Time
	count int
	value float64
}

func (m *fpsMeter) reset(now time.Time) {
	*m = fpsMeter{start: now}
}

func (m *fpsMeter) tick(now time.Time) float64 {
	m.count++
	if elapsed := now.Sub(m.start); elapsed >= time.Second {
		m.value = float64(m.count) / elapsed.Seconds()
		m.start = now
		m.count = 0
	}
	return m.value
}
