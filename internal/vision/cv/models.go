// Package cv adapts OpenCV (through gocv) to the vision interfaces: a
// camera Source and one Detector per live feature.
//
// The OpenCV-backed code is only compiled with the "gocv" build tag.
// Without it, OpenCamera and Load report ErrUnavailable so the rest of the
// program still builds and upload features that do not need OpenCV keep
// working.
//
// # Models
//
// Model files are read from a single directory (OBVIX_MODELS_DIR). The
// expected file names per feature are listed by Files.
package cv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/obvix/internal/session"
)

// ErrUnavailable is returned when the binary was built without OpenCV.
var ErrUnavailable = errors.New("gocv build tag is not enabled")

// Model file names, relative to the models directory.
const (
	SSDModel          = "ssd_mobilenet_v2_coco.pb"
	SSDConfig         = "ssd_mobilenet_v2_coco.pbtxt"
	FaceCascade       = "haarcascade_frontalface_default.xml"
	EyeCascade        = "haarcascade_eye.xml"
	ClassifierModel   = "squeezenet1.1.onnx"
	ClassifierLabels  = "imagenet_labels.txt"
	PoseModel         = "pose_iter_440000.caffemodel"
	PoseConfig        = "openpose_pose_coco.prototxt"
	HandModel         = "pose_iter_102000.caffemodel"
	HandConfig        = "pose_deploy_hand.prototxt"
	classifierInput   = 227
	openPoseInput     = 368
	ssdInput          = 300
	faceMinNeighbours = 5
)

var files = map[session.Feature][]string{
	session.ObjectDetection:     {SSDModel, SSDConfig},
	session.FaceDetection:       {FaceCascade},
	session.FaceLandmark:        {FaceCascade, EyeCascade},
	session.ImageClassification: {ClassifierModel, ClassifierLabels},
	session.PoseDetection:       {PoseModel, PoseConfig},
	session.HandTracking:        {HandModel, HandConfig},
}

// Files returns the model files feature f needs, or nil for features that
// are not served by OpenCV.
func Files(f session.Feature) []string {
	return files[f]
}

// CheckFiles verifies every model file for f exists in dir and returns
// their full paths in Files order.
func CheckFiles(dir string, f session.Feature) ([]string, error) {
	names := Files(f)
	if names == nil {
		return nil, fmt.Errorf("no OpenCV model for %s", f)
	}
	paths := make([]string, len(names))
	for i, name := range names {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("model file for %s: %w", f, err)
		}
		paths[i] = p
	}
	return paths, nil
}
