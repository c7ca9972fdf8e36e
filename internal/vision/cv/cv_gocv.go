//go:build gocv
// +build gocv

package cv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/vision"
)

// Camera reads frames from a local video device.
type Camera struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	frame  gocv.Mat
	closed bool
}

// OpenCamera opens video device id.
func OpenCamera(id int) (vision.Source, error) {
	c, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", id, err)
	}
	if !c.IsOpened() {
		c.Close()
		return nil, fmt.Errorf("camera %d is not available", id)
	}
	return &Camera{cap: c, frame: gocv.NewMat()}, nil
}

// Next returns a copy of the next frame.
func (c *Camera) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, vision.ErrSourceClosed
	}
	if ok := c.cap.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, errors.New("camera read failed")
	}
	return c.frame.ToImage()
}

// Close releases the device. Calling it twice is safe.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.frame.Close()
	return c.cap.Close()
}

// Load reads the models for feature f from dir.
func Load(dir string, f session.Feature) (vision.Detector, error) {
	paths, err := CheckFiles(dir, f)
	if err != nil {
		return nil, err
	}

	switch f {
	case session.ObjectDetection:
		return newNetDetector(paths[0], paths[1], decodeSSD)
	case session.ImageClassification:
		labels, err := readLabels(paths[1])
		if err != nil {
			return nil, err
		}
		return newNetDetector(paths[0], "", decodeClasses(labels))
	case session.PoseDetection:
		return newNetDetector(paths[0], paths[1], decodeOpenPose("Human Pose", vision.PoseKeypoints))
	case session.HandTracking:
		return newNetDetector(paths[0], paths[1], decodeOpenPose("", vision.HandKeypoints))
	case session.FaceDetection:
		return newCascadeDetector(paths[0], "")
	case session.FaceLandmark:
		return newCascadeDetector(paths[0], paths[1])
	}
	return nil, fmt.Errorf("no OpenCV model for %s", f)
}

func readLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()
	return vision.ParseLabels(f)
}

type decodeFunc func(net *gocv.Net, frame gocv.Mat) ([]vision.Result, error)

// netDetector runs a DNN. gocv.Net is not safe for concurrent use.
type netDetector struct {
	mu     sync.Mutex
	net    gocv.Net
	decode decodeFunc
}

func newNetDetector(model, config string, decode decodeFunc) (*netDetector, error) {
	net := gocv.ReadNet(model, config)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read network %s", model)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	return &netDetector{net: net, decode: decode}, nil
}

func (d *netDetector) Detect(ctx context.Context, frame image.Image) ([]vision.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decode(&d.net, mat)
}

func (d *netDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func forward(net *gocv.Net, frame gocv.Mat, scale float64, size int, mean gocv.Scalar, swapRB bool) ([]float32, []int, error) {
	blob := gocv.BlobFromImage(frame, scale, image.Pt(size, size), mean, swapRB, false)
	defer blob.Close()
	net.SetInput(blob, "")
	out := net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, nil, fmt.Errorf("read network output: %w", err)
	}
	// data aliases out, which is closed on return.
	return append([]float32(nil), data...), out.Size(), nil
}

func decodeSSD(net *gocv.Net, frame gocv.Mat) ([]vision.Result, error) {
	data, _, err := forward(net, frame, 1.0, ssdInput, gocv.NewScalar(0, 0, 0, 0), true)
	if err != nil {
		return nil, err
	}
	return vision.ParseSSD(data, frame.Cols(), frame.Rows(), 0.5, vision.COCOLabel), nil
}

func decodeClasses(labels []string) decodeFunc {
	return func(net *gocv.Net, frame gocv.Mat) ([]vision.Result, error) {
		data, _, err := forward(net, frame, 1.0, classifierInput, gocv.NewScalar(104, 117, 123, 0), false)
		if err != nil {
			return nil, err
		}
		return vision.TopK(vision.Softmax(data), 3, labels), nil
	}
}

func decodeOpenPose(label string, names []string) decodeFunc {
	return func(net *gocv.Net, frame gocv.Mat) ([]vision.Result, error) {
		data, size, err := forward(net, frame, 1.0/255, openPoseInput, gocv.NewScalar(0, 0, 0, 0), false)
		if err != nil {
			return nil, err
		}
		if len(size) != 4 {
			return nil, fmt.Errorf("unexpected heatmap shape %v", size)
		}
		kps := vision.HeatmapPeaks(data, size[2], size[3], frame.Cols(), frame.Rows(), names)
		res, ok := vision.KeypointResult(label, kps, session.PoseKeypointFloor)
		if !ok {
			return nil, nil
		}
		return []vision.Result{res}, nil
	}
}

// cascadeDetector finds faces with a Haar cascade and, when an eye
// cascade is given, adds eye keypoints.
type cascadeDetector struct {
	mu    sync.Mutex
	faces gocv.CascadeClassifier
	eyes  *gocv.CascadeClassifier
}

func newCascadeDetector(facePath, eyePath string) (*cascadeDetector, error) {
	d := &cascadeDetector{faces: gocv.NewCascadeClassifier()}
	if !d.faces.Load(facePath) {
		d.faces.Close()
		return nil, fmt.Errorf("failed to load cascade %s", facePath)
	}
	if eyePath != "" {
		eyes := gocv.NewCascadeClassifier()
		if !eyes.Load(eyePath) {
			eyes.Close()
			d.faces.Close()
			return nil, fmt.Errorf("failed to load cascade %s", eyePath)
		}
		d.eyes = &eyes
	}
	return d, nil
}

func (d *cascadeDetector) Detect(ctx context.Context, frame image.Image) ([]vision.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	d.mu.Lock()
	defer d.mu.Unlock()

	rects := d.faces.DetectMultiScaleWithParams(gray, 1.1, faceMinNeighbours, 0, image.Pt(40, 40), image.Pt(0, 0))
	results := make([]vision.Result, 0, len(rects))
	for _, r := range rects {
		res := vision.Result{Label: "Face", Box: r}
		if d.eyes != nil {
			res.Keypoints = d.eyePoints(gray, r)
		}
		results = append(results, res)
	}
	return results, nil
}

// eyePoints returns up to two eye centres inside face, left to right in
// the frame.
func (d *cascadeDetector) eyePoints(gray gocv.Mat, face image.Rectangle) []vision.Keypoint {
	region := gray.Region(face)
	defer region.Close()

	eyes := d.eyes.DetectMultiScale(region)
	sort.Slice(eyes, func(i, j int) bool { return eyes[i].Min.X < eyes[j].Min.X })
	if len(eyes) > 2 {
		eyes = eyes[:2]
	}
	names := []string{"left_eye", "right_eye"}
	kps := make([]vision.Keypoint, len(eyes))
	for i, e := range eyes {
		kps[i] = vision.Keypoint{
			Name:  names[i],
			X:     float64(face.Min.X) + float64(e.Min.X+e.Max.X)/2,
			Y:     float64(face.Min.Y) + float64(e.Min.Y+e.Max.Y)/2,
			Score: 1,
		}
	}
	return kps
}

func (d *cascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.eyes != nil {
		d.eyes.Close()
	}
	return d.faces.Close()
}
