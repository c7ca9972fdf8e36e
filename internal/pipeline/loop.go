// Package pipeline runs a detector over frames from a source on a fixed
// tick, never running more than one detection at a time.
package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/vision"
)

// DefaultInterval is the tick period, about 60 frames per second.
const DefaultInterval = 16 * time.Millisecond

// ErrStarted is returned by Start on a loop that was already started.
var ErrStarted = errors.New("loop already started")

// Frame is one processed frame and what the detector found in it.
type Frame struct {
	Image   image.Image
	Results []vision.Result
	At      time.Time
}

// Handler receives each processed frame on the detection goroutine.
type Handler func(Frame)

// Option customises a Loop.
type Option func(*Loop)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithMetrics makes the loop count frames into m.
func WithMetrics(m *Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// Loop reads a frame and runs the detector once per tick. A tick that
// arrives while the previous detection is still running is dropped. Per
// frame errors are logged and counted and the loop carries on.
type Loop struct {
	src      vision.Source
	det      vision.Detector
	onFrame  Handler
	interval time.Duration
	metrics  *Metrics

	busy      atomic.Bool
	inFlight  sync.WaitGroup
	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New creates a stopped loop. The loop owns src and closes it on Stop;
// det stays owned by the caller.
func New(src vision.Source, det vision.Detector, onFrame Handler, opts ...Option) *Loop {
	l := &Loop{
		src:      src,
		det:      det,
		onFrame:  onFrame,
		interval: DefaultInterval,
		metrics:  NewMetrics(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins ticking until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return ErrStarted
	}
	l.started = true

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx)
	return nil
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if !l.busy.CompareAndSwap(false, true) {
		l.metrics.FramesDropped.Add(1)
		return
	}
	l.inFlight.Add(1)
	go func() {
		defer l.inFlight.Done()
		defer l.busy.Store(false)
		l.process(ctx)
	}()
}

func (l *Loop) process(ctx context.Context) {
	frame, err := l.step(ctx, l.src)
	if err != nil {
		if ctx.Err() == nil {
			l.metrics.FrameErrors.Add(1)
			logger.Warn("Pipeline", "frame skipped: %v", err)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	if l.onFrame != nil {
		l.onFrame(frame)
	}
}

func (l *Loop) step(ctx context.Context, src vision.Source) (Frame, error) {
	img, err := src.Next(ctx)
	if err != nil {
		return Frame{}, err
	}
	l.metrics.FramesRead.Add(1)

	start := time.Now()
	results, err := l.det.Detect(ctx, img)
	if err != nil {
		return Frame{}, err
	}
	l.metrics.ObserveDetect(time.Since(start))
	l.metrics.FramesProcessed.Add(1)
	return Frame{Image: img, Results: results, At: time.Now()}, nil
}

// Stop cancels the loop, waits for the in-flight detection and closes the
// source. It is safe to call more than once, and before Start.
func (l *Loop) Stop() error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	l.inFlight.Wait()
	l.closeOnce.Do(func() {
		l.closeErr = l.src.Close()
	})
	return l.closeErr
}

// Busy reports whether a detection is in flight.
func (l *Loop) Busy() bool { return l.busy.Load() }

// RunOnce reads one frame from src and runs det on it synchronously. It is
// the one-shot mode used for uploaded images.
func RunOnce(ctx context.Context, src vision.Source, det vision.Detector, m *Metrics) (Frame, error) {
	if m == nil {
		m = NewMetrics()
	}
	l := &Loop{det: det, metrics: m}
	frame, err := l.step(ctx, src)
	if err != nil {
		m.FrameErrors.Add(1)
		return Frame{}, err
	}
	return frame, nil
}
