//go:build !gocv
// +build !gocv

package cv

import (
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/vision"
)

// OpenCamera reports ErrUnavailable in builds without OpenCV.
func OpenCamera(int) (vision.Source, error) {
	return nil, ErrUnavailable
}

// Load reports ErrUnavailable in builds without OpenCV.
func Load(string, session.Feature) (vision.Detector, error) {
	return nil, ErrUnavailable
}
