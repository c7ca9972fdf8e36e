package web

import "time"

// Config defines the runtime configuration for the HTTP monitor.
type Config struct {
	Addr string
	// Camera is the device used when a start request names none.
	Camera int
	// FrameTimeout is how long /stream waits for an overlay frame before
	// repeating the placeholder.
	FrameTimeout time.Duration
	// KeepAlive is the SSE comment interval on idle detection streams.
	KeepAlive       time.Duration
	JPEGQuality     int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the settings used by `obvix serve`.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		FrameTimeout:    5 * time.Second,
		KeepAlive:       30 * time.Second,
		JPEGQuality:     75,
		ShutdownTimeout: 5 * time.Second,
	}
}
