package capture

import (
	"fmt"
	"sync"

	"github.com/ironsheep/obvix/internal/ocr"
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/vision"
	"github.com/ironsheep/obvix/internal/vision/cv"
)

// ModelLoader hands out the detector for a feature. Detectors returned by
// a loader stay owned by it.
type ModelLoader interface {
	Load(f session.Feature) (vision.Detector, error)
}

// CameraOpener opens a live frame source for a device index.
type CameraOpener func(camera int) (vision.Source, error)

// Models loads detectors on first use and caches them until Close. Text
// detection is served by Tesseract, everything else by OpenCV.
type Models struct {
	dir string
	ocr ocr.Options

	mu    sync.Mutex
	cache map[session.Feature]vision.Detector
}

var _ ModelLoader = (*Models)(nil)

// NewModels creates a loader reading model files from dir.
func NewModels(dir string, opts ocr.Options) *Models {
	opts.SkipBlank = true
	return &Models{
		dir:   dir,
		ocr:   opts,
		cache: make(map[session.Feature]vision.Detector),
	}
}

// Load returns the cached detector for f, loading it if needed.
func (m *Models) Load(f session.Feature) (vision.Detector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if det, ok := m.cache[f]; ok {
		return det, nil
	}

	var (
		det vision.Detector
		err error
	)
	if f == session.TextDetection {
		det, err = ocr.NewEngine(m.ocr)
	} else {
		det, err = cv.Load(m.dir, f)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", f, err)
	}
	m.cache[f] = det
	return det, nil
}

// Close releases every loaded detector.
func (m *Models) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for f, det := range m.cache {
		if err := det.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", f, err)
		}
		delete(m.cache, f)
	}
	return first
}
