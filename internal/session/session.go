package session

import (
	"fmt"
	"strings"
	"time"
)

// Feature is the session type tag stored in the "type" field.
type Feature string

const (
	ObjectDetection     Feature = "object_detection"
	FaceDetection       Feature = "face_detection"
	FaceLandmark        Feature = "face_landmark"
	HandTracking        Feature = "hand_tracking"
	PoseDetection       Feature = "pose_detection"
	ImageClassification Feature = "image_classification"
	TextDetection       Feature = "text_detection"
)

// Features lists every known feature in menu order.
var Features = []Feature{
	ObjectDetection,
	FaceDetection,
	FaceLandmark,
	HandTracking,
	PoseDetection,
	ImageClassification,
	TextDetection,
}

// ParseFeature accepts a feature tag, ignoring case and treating '-' as '_'.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Features {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// FaceMeshLabel is the detection label written by face-mesh uploads. Older
// sessions without a type tag are recognised by it.
const FaceMeshLabel = "Face Mesh Analysis"

// BBox is an OCR word box using Tesseract's corner naming.
type BBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Word is one recognised OCR word. Confidence is 0..100.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Prediction is one ranked classifier output. Score is 0..100.
type Prediction struct {
	Label string `json:"label"`
	Score int    `json:"score"`
}

// Detection is one logged event. Score is a rounded percentage. Optional
// fields are only present for the features that produce them.
type Detection struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`

	// face_landmark uploads
	FaceCount     int    `json:"faceCount,omitempty"`
	OriginalImage string `json:"originalImage,omitempty"`
	MaskedImage   string `json:"maskedImage,omitempty"`

	// image_classification uploads
	ImageData   string       `json:"imageData,omitempty"`
	Predictions []Prediction `json:"predictions,omitempty"`

	// text_detection uploads
	Words         []Word  `json:"words,omitempty"`
	WordCount     int     `json:"wordCount,omitempty"`
	AvgConfidence float64 `json:"avgConfidence,omitempty"`
	Text          string  `json:"text,omitempty"`
}

// HasImage reports whether the detection carries a snapshot.
func (d Detection) HasImage() bool {
	return d.OriginalImage != "" || d.MaskedImage != "" || d.ImageData != ""
}

// Session is one capture run (live) or one upload visit.
type Session struct {
	ID             string      `json:"id"`
	Type           Feature     `json:"type,omitempty"`
	StartTime      time.Time   `json:"startTime"`
	EndTime        *time.Time  `json:"endTime,omitempty"`
	Detections     []Detection `json:"detections"`
	DetectionCount int         `json:"detectionCount"`
}

// HasImages reports whether any detection carries a snapshot.
func (s *Session) HasImages() bool {
	for _, d := range s.Detections {
		if d.HasImage() {
			return true
		}
	}
	return false
}

// Duration is EndTime - StartTime, or zero when the session has no end.
func (s *Session) Duration() time.Duration {
	if s.EndTime == nil || s.EndTime.Before(s.StartTime) {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Clone returns a deep copy of the session and its detections.
func (s *Session) Clone() *Session {
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	c.Detections = make([]Detection, len(s.Detections))
	copy(c.Detections, s.Detections)
	return &c
}
