package vision

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
)

// ErrSourceClosed is returned by Next after Close.
var ErrSourceClosed = errors.New("source closed")

// Keypoint is a named landmark in frame pixel coordinates.
type Keypoint struct {
	Name  string  `json:"name,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Point returns the keypoint rounded to the nearest pixel.
func (k Keypoint) Point() image.Point {
	return image.Pt(int(math.Round(k.X)), int(math.Round(k.Y)))
}

// Result is one detected entity.
type Result struct {
	Label     string          `json:"label"`
	Score     float64         `json:"score"`
	Box       image.Rectangle `json:"box"`
	Keypoints []Keypoint      `json:"keypoints,omitempty"`
}

// Percent returns the score as a rounded percentage. A zero score means the
// model did not report one and is treated as certain.
func (r Result) Percent() int {
	if r.Score <= 0 {
		return 100
	}
	return int(math.Round(r.Score * 100))
}

// Detector runs a pretrained model on a frame.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]Result, error)
	Close() error
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, frame image.Image) ([]Result, error)

func (f DetectorFunc) Detect(ctx context.Context, frame image.Image) ([]Result, error) {
	return f(ctx, frame)
}

func (f DetectorFunc) Close() error { return nil }

// Source yields frames for the detection loop.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// StillSource serves the same decoded image on every call, which is how
// upload features feed a single picture through the loop.
type StillSource struct {
	mu     sync.Mutex
	img    image.Image
	closed bool
}

// NewStillSource wraps img.
func NewStillSource(img image.Image) *StillSource {
	return &StillSource{img: img}
}

func (s *StillSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSourceClosed
	}
	return s.img, nil
}

func (s *StillSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// BoundsOf returns the rectangle enclosing every keypoint whose score is
// above minScore. It returns the zero rectangle when none qualify.
func BoundsOf(kps []Keypoint, minScore float64) image.Rectangle {
	var r image.Rectangle
	first := true
	for _, kp := range kps {
		if kp.Score <= minScore {
			continue
		}
		x, y := int(kp.X), int(kp.Y)
		if first {
			r = image.Rect(x, y, x+1, y+1)
			first = false
			continue
		}
		r = r.Union(image.Rect(x, y, x+1, y+1))
	}
	return r
}
