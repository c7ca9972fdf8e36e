package pipeline

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds detection loop counters and exposes them to Prometheus.
type Metrics struct {
	FramesRead      atomic.Uint64
	FramesProcessed atomic.Uint64
	// FramesDropped counts ticks skipped because a detection was in flight.
	FramesDropped atomic.Uint64
	FrameErrors   atomic.Uint64
	EventsLogged  atomic.Uint64
	SessionsSaved atomic.Uint64

	DetectLatencyMs atomic.Uint64
	CaptureActive   atomic.Uint64 // 0 = idle, 1 = streaming

	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.register()
	return m
}

func (m *Metrics) register() {
	gauges := []struct {
		name, help string
		v          *atomic.Uint64
	}{
		{"obvix_frames_read_total", "Total frames read from the capture source", &m.FramesRead},
		{"obvix_frames_processed_total", "Total frames run through a detector", &m.FramesProcessed},
		{"obvix_frames_dropped_total", "Total ticks skipped while a detection was in flight", &m.FramesDropped},
		{"obvix_frame_errors_total", "Total per-frame source or detector errors", &m.FrameErrors},
		{"obvix_events_logged_total", "Total detection events written to sessions", &m.EventsLogged},
		{"obvix_sessions_saved_total", "Total sessions persisted", &m.SessionsSaved},
		{"obvix_detect_latency_ms", "Latency of the most recent detection in milliseconds", &m.DetectLatencyMs},
		{"obvix_capture_active", "Capture running (0=idle, 1=streaming)", &m.CaptureActive},
	}
	for _, g := range gauges {
		v := g.v
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(v.Load()) },
		))
	}
}

// ObserveDetect records the latency of one detection.
func (m *Metrics) ObserveDetect(d time.Duration) {
	m.DetectLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
