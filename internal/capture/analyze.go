package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/ironsheep/obvix/internal/imaging"
	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/ocr"
	"github.com/ironsheep/obvix/internal/overlay"
	"github.com/ironsheep/obvix/internal/pipeline"
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/vision"
)

// ErrNothingFound is returned by Analyze when the image holds nothing to
// record. Nothing is written in that case.
var ErrNothingFound = errors.New("nothing detected")

// ErrNotUploadFeature is returned by Analyze for features that only run
// on a live camera.
var ErrNotUploadFeature = errors.New("feature does not support image analysis")

// UploadFeatures lists the features Analyze accepts.
var UploadFeatures = []session.Feature{
	session.FaceLandmark,
	session.ImageClassification,
	session.TextDetection,
}

// Recognizer is implemented by detectors that return full OCR pages.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (*ocr.Page, error)
}

const (
	topPredictions = 3
	textLabelRunes = 40
)

// Analysis is the outcome of one Analyze call.
type Analysis struct {
	Session   *session.Session  `json:"session"`
	Detection session.Detection `json:"detection"`
	Results   []vision.Result   `json:"results"`
}

// Analyze runs a single image through the feature's detector and adds the
// outcome to this controller's upload session for that feature. The first
// analysis creates the session and later ones rewrite it in place.
func (c *Controller) Analyze(ctx context.Context, f session.Feature, img image.Image) (*Analysis, error) {
	if !isUploadFeature(f) {
		return nil, fmt.Errorf("%w: %s", ErrNotUploadFeature, f)
	}

	det, err := c.opts.Loader.Load(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	var (
		d       session.Detection
		results []vision.Result
	)
	switch f {
	case session.TextDetection:
		d, results, err = c.analyzeText(ctx, det, img)
	default:
		var frame pipeline.Frame
		frame, err = pipeline.RunOnce(ctx, vision.NewStillSource(img), det, c.metrics)
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", f, err)
		}
		results = frame.Results
		if f == session.FaceLandmark {
			d, err = faceMeshDetection(img, results)
		} else {
			d, err = classificationDetection(img, results)
		}
	}
	if err != nil {
		return nil, err
	}

	sess, err := c.uploadRecorder(f).Record(ctx, d)
	if err != nil {
		logger.Warn("Capture", "analysis not saved: %v", err)
		return nil, err
	}
	c.metrics.EventsLogged.Add(1)
	c.metrics.SessionsSaved.Add(1)

	return &Analysis{Session: sess, Detection: sess.Detections[0], Results: results}, nil
}

// UploadSession returns the current upload session for f, or nil.
func (c *Controller) UploadSession(f session.Feature) *session.Session {
	c.uploadMu.Lock()
	u, ok := c.uploads[f]
	c.uploadMu.Unlock()
	if !ok {
		return nil
	}
	return u.Session()
}

func (c *Controller) uploadRecorder(f session.Feature) *session.UploadRecorder {
	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()

	u, ok := c.uploads[f]
	if !ok {
		u = session.NewUploadRecorder(f, c.opts.Saver, c.opts.RecorderOptions...)
		c.uploads[f] = u
	}
	return u
}

func isUploadFeature(f session.Feature) bool {
	for _, u := range UploadFeatures {
		if u == f {
			return true
		}
	}
	return false
}

func faceMeshDetection(img image.Image, results []vision.Result) (session.Detection, error) {
	if len(results) == 0 {
		return session.Detection{}, fmt.Errorf("%w: no faces", ErrNothingFound)
	}

	original, err := imaging.Snapshot(img)
	if err != nil {
		return session.Detection{}, err
	}
	masked, err := imaging.Snapshot(overlay.Render(img, session.FaceLandmark, results))
	if err != nil {
		return session.Detection{}, err
	}

	return session.Detection{
		Label:         session.FaceMeshLabel,
		Score:         results[0].Percent(),
		FaceCount:     len(results),
		OriginalImage: original,
		MaskedImage:   masked,
	}, nil
}

func classificationDetection(img image.Image, results []vision.Result) (session.Detection, error) {
	if len(results) == 0 {
		return session.Detection{}, fmt.Errorf("%w: no predictions", ErrNothingFound)
	}

	top := results
	if len(top) > topPredictions {
		top = top[:topPredictions]
	}
	preds := make([]session.Prediction, len(top))
	for i, r := range top {
		preds[i] = session.Prediction{Label: r.Label, Score: r.Percent()}
	}

	snap, err := imaging.Snapshot(img)
	if err != nil {
		return session.Detection{}, err
	}

	return session.Detection{
		Label:       top[0].Label,
		Score:       top[0].Percent(),
		Predictions: preds,
		ImageData:   snap,
	}, nil
}

func (c *Controller) analyzeText(ctx context.Context, det vision.Detector, img image.Image) (session.Detection, []vision.Result, error) {
	rec, ok := det.(Recognizer)
	if !ok {
		return session.Detection{}, nil, fmt.Errorf("%w: text detector cannot recognise pages", ErrModelLoad)
	}

	c.metrics.FramesRead.Add(1)
	page, err := rec.Recognize(ctx, img)
	if err != nil {
		c.metrics.FrameErrors.Add(1)
		return session.Detection{}, nil, fmt.Errorf("analyze %s: %w", session.TextDetection, err)
	}
	c.metrics.FramesProcessed.Add(1)

	d, err := textDetection(page)
	if err != nil {
		return session.Detection{}, nil, err
	}
	results := make([]vision.Result, len(d.Words))
	for i, w := range d.Words {
		results[i] = vision.Result{
			Label: w.Text,
			Score: w.Confidence / 100,
			Box:   image.Rect(w.BBox.X0, w.BBox.Y0, w.BBox.X1, w.BBox.Y1),
		}
	}
	return d, results, nil
}

// textDetection keeps the words above the upload confidence floor.
func textDetection(page *ocr.Page) (session.Detection, error) {
	var (
		words []session.Word
		sum   float64
	)
	for _, w := range page.Words {
		if w.Confidence > session.UploadWordFloor {
			words = append(words, w)
			sum += w.Confidence
		}
	}
	if len(words) == 0 {
		return session.Detection{}, fmt.Errorf("%w: no confident words", ErrNothingFound)
	}

	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	text := strings.Join(texts, " ")
	avg := math.Round(sum/float64(len(words))*10) / 10

	return session.Detection{
		Label:         truncate(text, textLabelRunes),
		Score:         int(math.Round(avg)),
		Words:         words,
		WordCount:     len(words),
		AvgConfidence: avg,
		Text:          strings.TrimSpace(page.Text),
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
