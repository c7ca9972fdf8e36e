package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/obvix/internal/ocr"
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/store"
	"github.com/ironsheep/obvix/internal/vision"
)

type fakeLoader struct {
	detectors map[session.Feature]vision.Detector
	err       error
}

func (l *fakeLoader) Load(f session.Feature) (vision.Detector, error) {
	if l.err != nil {
		return nil, l.err
	}
	det, ok := l.detectors[f]
	if !ok {
		return nil, errors.New("no model for " + string(f))
	}
	return det, nil
}

type fakeCamera struct {
	img    image.Image
	closes atomic.Int32
}

func (c *fakeCamera) Next(ctx context.Context) (image.Image, error) { return c.img, nil }

func (c *fakeCamera) Close() error {
	c.closes.Add(1)
	return nil
}

func testFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 80, B: 120, A: 255})
		}
	}
	return img
}

func results(rs ...vision.Result) vision.Detector {
	return vision.DetectorFunc(func(context.Context, image.Image) ([]vision.Result, error) {
		return rs, nil
	})
}

type harness struct {
	ctrl   *Controller
	repo   *store.Repository
	camera *fakeCamera
}

func newHarness(t *testing.T, loader ModelLoader) *harness {
	t.Helper()
	h := &harness{
		repo:   store.NewRepository(store.NewMemoryStorage(), 0),
		camera: &fakeCamera{img: testFrame()},
	}
	h.ctrl = NewController(Options{
		Loader:   loader,
		Open:     func(int) (vision.Source, error) { return h.camera, nil },
		Saver:    h.repo,
		Interval: time.Millisecond,
	})
	return h
}

func TestCaptureLogsAndSaves(t *testing.T) {
	h := newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.ObjectDetection: results(vision.Result{Label: "person", Score: 0.82, Box: image.Rect(4, 4, 30, 40)}),
	}})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx, session.ObjectDetection, 0))
	require.Equal(t, Streaming, h.ctrl.Status().State)
	require.Equal(t, uint64(1), h.ctrl.Metrics().CaptureActive.Load())

	require.Eventually(t, func() bool { return h.ctrl.Status().Events >= 1 }, 2*time.Second, time.Millisecond)
	require.Equal(t, 1, h.ctrl.Status().Entities)

	res, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)
	require.True(t, res.Saved)
	require.Equal(t, int32(1), h.camera.closes.Load())
	require.Equal(t, Stopped, h.ctrl.Status().State)
	require.Equal(t, uint64(0), h.ctrl.Metrics().CaptureActive.Load())
	require.Equal(t, uint64(1), h.ctrl.Metrics().SessionsSaved.Load())

	saved, err := h.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	s := saved[0]
	require.Equal(t, session.ObjectDetection, s.Type)
	require.Equal(t, 1, s.DetectionCount)
	require.Equal(t, "PERSON", s.Detections[0].Label)
	require.Equal(t, 82, s.Detections[0].Score)
	require.NotNil(t, s.EndTime)
	require.False(t, s.EndTime.Before(s.StartTime))
}

func TestCaptureWithoutEventsIsNotSaved(t *testing.T) {
	h := newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.FaceDetection: results(),
	}})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx, session.FaceDetection, 0))
	require.Eventually(t, func() bool { return h.ctrl.Metrics().FramesProcessed.Load() >= 3 }, 2*time.Second, time.Millisecond)

	res, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)
	require.False(t, res.Saved)
	require.Empty(t, res.Session.Detections)

	saved, err := h.repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, saved)
}

func TestStartErrors(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, &fakeLoader{err: errors.New("weights missing")})
	err := h.ctrl.Start(ctx, session.PoseDetection, 0)
	require.ErrorIs(t, err, ErrModelLoad)
	require.Contains(t, err.Error(), "weights missing")
	require.Equal(t, Idle, h.ctrl.Status().State)

	h = newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.HandTracking: results(),
	}})
	h.ctrl.opts.Open = func(int) (vision.Source, error) { return nil, errors.New("device busy") }
	require.ErrorIs(t, h.ctrl.Start(ctx, session.HandTracking, 1), ErrCamera)
	require.Equal(t, Idle, h.ctrl.Status().State)

	_, err = h.ctrl.Stop(ctx)
	require.ErrorIs(t, err, ErrNotRunning)
}

func TestStartWhileStreaming(t *testing.T) {
	h := newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.FaceDetection: results(),
		session.PoseDetection: results(),
	}})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx, session.FaceDetection, 0))
	require.ErrorIs(t, h.ctrl.Start(ctx, session.PoseDetection, 0), ErrBusy)
	_, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)

	require.NoError(t, h.ctrl.Start(ctx, session.PoseDetection, 0))
	require.Equal(t, session.PoseDetection, h.ctrl.Status().Feature)
	_, err = h.ctrl.Stop(ctx)
	require.NoError(t, err)
}

func TestCaptureSurvivesCallerContext(t *testing.T) {
	h := newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.FaceDetection: results(vision.Result{Box: image.Rect(0, 0, 10, 10)}),
	}})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.ctrl.Start(ctx, session.FaceDetection, 0))
	cancel()

	before := h.ctrl.Metrics().FramesProcessed.Load()
	require.Eventually(t, func() bool {
		return h.ctrl.Metrics().FramesProcessed.Load() > before+2
	}, 2*time.Second, time.Millisecond)

	_, err := h.ctrl.Stop(context.Background())
	require.NoError(t, err)
}

func TestHubReceivesOverlayUpdates(t *testing.T) {
	h := newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.ObjectDetection: results(vision.Result{Label: "cat", Score: 0.9, Box: image.Rect(8, 8, 40, 40)}),
	}})
	ctx := context.Background()

	id, updates := h.ctrl.Hub().Subscribe()
	require.NoError(t, h.ctrl.Start(ctx, session.ObjectDetection, 0))

	select {
	case u := <-updates:
		require.Equal(t, session.ObjectDetection, u.Feature)
		require.NotEmpty(t, u.SessionID)
		require.Len(t, u.Results, 1)
		require.NotNil(t, u.Overlay)
		require.Equal(t, image.Rect(0, 0, 64, 48), u.Overlay.Bounds())
	case <-time.After(2 * time.Second):
		t.Fatal("no update published")
	}

	h.ctrl.Hub().Unsubscribe(id)
	require.Equal(t, 0, h.ctrl.Hub().Len())
	_, err := h.ctrl.Stop(ctx)
	require.NoError(t, err)
}

func TestFPSMeter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var m fpsMeter
	m.reset(start)
	for i := 1; i <= 30; i++ {
		require.Zero(t, m.tick(start.Add(time.Duration(i)*20*time.Millisecond)))
	}
	require.InDelta(t, 31/1.2, m.tick(start.Add(1200*time.Millisecond)), 1e-9)
	require.Zero(t, m.count)
}

type fakeOCR struct {
	page *ocr.Page
}

func (f *fakeOCR) Detect(context.Context, image.Image) ([]vision.Result, error) { return nil, nil }
func (f *fakeOCR) Close() error                                                 { return nil }

func (f *fakeOCR) Recognize(context.Context, image.Image) (*ocr.Page, error) {
	return f.page, nil
}

func TestAnalyzeClassificationSharesSession(t *testing.T) {
	h := newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.ImageClassification: results(
			vision.Result{Label: "tabby, tabby cat", Score: 0.71},
			vision.Result{Label: "tiger cat", Score: 0.12},
			vision.Result{Label: "Egyptian cat", Score: 0.08},
			vision.Result{Label: "lynx", Score: 0.02},
		),
	}})
	ctx := context.Background()

	first, err := h.ctrl.Analyze(ctx, session.ImageClassification, testFrame())
	require.NoError(t, err)
	d := first.Detection
	require.Equal(t, "tabby, tabby cat", d.Label)
	require.Equal(t, 71, d.Score)
	require.Len(t, d.Predictions, 3)
	require.Equal(t, session.Prediction{Label: "tiger cat", Score: 12}, d.Predictions[1])
	require.True(t, strings.HasPrefix(d.ImageData, "data:image/jpeg;base64,"))

	second, err := h.ctrl.Analyze(ctx, session.ImageClassification, testFrame())
	require.NoError(t, err)
	require.Equal(t, first.Session.ID, second.Session.ID)
	require.Len(t, second.Session.Detections, 2)
	require.Equal(t, 2, second.Session.DetectionCount)

	saved, err := h.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Len(t, saved[0].Detections, 2)
	require.Equal(t, first.Session.ID, h.ctrl.UploadSession(session.ImageClassification).ID)
}

func TestAnalyzeTextFiltersLowConfidence(t *testing.T) {
	page := &ocr.Page{
		Text: "HELLO world\n",
		Words: []session.Word{
			{Text: "HELLO", Confidence: 91, BBox: session.BBox{X0: 2, Y0: 3, X1: 30, Y1: 12}},
			{Text: "world", Confidence: 42, BBox: session.BBox{X0: 34, Y0: 3, X1: 60, Y1: 12}},
		},
	}
	h := newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.TextDetection: &fakeOCR{page: page},
	}})

	a, err := h.ctrl.Analyze(context.Background(), session.TextDetection, testFrame())
	require.NoError(t, err)

	d := a.Detection
	require.Equal(t, "HELLO", d.Label)
	require.Equal(t, 1, d.WordCount)
	require.Equal(t, []session.Word{page.Words[0]}, d.Words)
	require.Equal(t, 91.0, d.AvgConfidence)
	require.Equal(t, 91, d.Score)
	require.Equal(t, "HELLO world", d.Text)
	require.Len(t, a.Results, 1)
	require.Equal(t, image.Rect(2, 3, 30, 12), a.Results[0].Box)
}

func TestAnalyzeNothingFound(t *testing.T) {
	h := newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.FaceLandmark:  results(),
		session.TextDetection: &fakeOCR{page: &ocr.Page{Words: []session.Word{{Text: "blur", Confidence: 30}}}},
	}})
	ctx := context.Background()

	_, err := h.ctrl.Analyze(ctx, session.FaceLandmark, testFrame())
	require.ErrorIs(t, err, ErrNothingFound)
	_, err = h.ctrl.Analyze(ctx, session.TextDetection, testFrame())
	require.ErrorIs(t, err, ErrNothingFound)

	saved, err := h.repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, saved)
	require.Nil(t, h.ctrl.UploadSession(session.FaceLandmark))
}

func TestAnalyzeFaceMesh(t *testing.T) {
	face := vision.Result{
		Box: image.Rect(10, 8, 40, 40),
		Keypoints: []vision.Keypoint{
			{Name: "left_eye", X: 18, Y: 18, Score: 1},
			{Name: "right_eye", X: 32, Y: 18, Score: 1},
		},
	}
	h := newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.FaceLandmark: results(face, face),
	}})

	a, err := h.ctrl.Analyze(context.Background(), session.FaceLandmark, testFrame())
	require.NoError(t, err)
	d := a.Detection
	require.Equal(t, session.FaceMeshLabel, d.Label)
	require.Equal(t, 2, d.FaceCount)
	require.Equal(t, 100, d.Score)
	require.True(t, strings.HasPrefix(d.OriginalImage, "data:image/jpeg;base64,"))
	require.True(t, strings.HasPrefix(d.MaskedImage, "data:image/jpeg;base64,"))
	require.NotEqual(t, d.OriginalImage, d.MaskedImage)
	require.Equal(t, session.FaceLandmark, a.Session.Type)
}

func TestAnalyzeQuotaExceeded(t *testing.T) {
	h := newHarness(t, &fakeLoader{detectors: map[session.Feature]vision.Detector{
		session.ImageClassification: results(vision.Result{Label: "lynx", Score: 0.9}),
	}})
	h.ctrl.opts.Saver = store.NewRepository(store.NewMemoryStorage(), 64)

	_, err := h.ctrl.Analyze(context.Background(), session.ImageClassification, testFrame())
	require.ErrorIs(t, err, store.ErrQuotaExceeded)
	require.Nil(t, h.ctrl.UploadSession(session.ImageClassification))
}

func TestAnalyzeRejectsLiveFeatures(t *testing.T) {
	h := newHarness(t, &fakeLoader{})
	_, err := h.ctrl.Analyze(context.Background(), session.HandTracking, testFrame())
	require.ErrorIs(t, err, ErrNotUploadFeature)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
