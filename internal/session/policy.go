package session

import "time"

// LogMode selects how a feature turns model results into logged events.
type LogMode int

const (
	// LogOnPresence logs a label when it first appears and stays quiet while
	// it remains in view.
	LogOnPresence LogMode = iota
	// LogEveryEntity logs every result once per interval.
	LogEveryEntity
	// LogTopWords logs a single event per interval made of the best words.
	LogTopWords
	// LogBestIfNew logs the best result when its label is new or the
	// interval has elapsed.
	LogBestIfNew
)

// CountMode selects what detectionCount counts. The features disagree and
// stored sessions depend on the difference, so it is kept per feature.
type CountMode int

const (
	// CountEvents increments once per logged event.
	CountEvents CountMode = iota
	// CountWords increments by the number of qualifying words per event.
	CountWords
	// CountLength recomputes the count as len(detections) after each event.
	CountLength
)

// Policy describes one live feature's logging rules.
type Policy struct {
	Feature Feature
	Mode    LogMode
	Count   CountMode

	// MinScore is the strict lower bound a result score must exceed.
	MinScore float64
	// Interval throttles LogEveryEntity, LogTopWords and LogBestIfNew.
	Interval time.Duration
	// Expiry drops LogOnPresence labels not seen for this long.
	Expiry time.Duration

	// Label overrides the result label when set. FallbackLabel is used when
	// the result has none.
	Label         string
	FallbackLabel string
	Uppercase     bool

	// CountFaces sets faceCount 1 on every logged event.
	CountFaces bool

	// TopWords caps LogTopWords labels. MinLabelLen is exclusive and
	// counted in characters.
	TopWords    int
	MinLabelLen int

	// Prepend stores newest detections first and persists the session at
	// the head of the list. Retain caps how many sessions of this feature
	// are kept; zero keeps all.
	Prepend bool
	Retain  int
}

// PoseKeypointFloor is the keypoint confidence needed to draw or box a
// pose joint.
const PoseKeypointFloor = 0.3

var policies = map[Feature]Policy{
	ObjectDetection: {
		Feature:   ObjectDetection,
		Mode:      LogOnPresence,
		Count:     CountEvents,
		MinScore:  0.60,
		Expiry:    2 * time.Second,
		Uppercase: true,
		Prepend:   true,
		Retain:    50,
	},
	FaceDetection: {
		Feature:  FaceDetection,
		Mode:     LogEveryEntity,
		Count:    CountEvents,
		Interval: time.Second,
		Label:    "Face",
	},
	HandTracking: {
		Feature:       HandTracking,
		Mode:          LogEveryEntity,
		Count:         CountEvents,
		Interval:      time.Second,
		FallbackLabel: "Hand",
	},
	PoseDetection: {
		Feature:  PoseDetection,
		Mode:     LogEveryEntity,
		Count:    CountEvents,
		Interval: time.Second,
		Label:    "Human Pose",
	},
	ImageClassification: {
		Feature:  ImageClassification,
		Mode:     LogBestIfNew,
		Count:    CountLength,
		MinScore: 0.60,
		Interval: 2 * time.Second,
	},
	TextDetection: {
		Feature:     TextDetection,
		Mode:        LogTopWords,
		Count:       CountWords,
		MinScore:    0.50,
		Interval:    2 * time.Second,
		TopWords:    5,
		MinLabelLen: 2,
	},
	FaceLandmark: {
		Feature:    FaceLandmark,
		Mode:       LogEveryEntity,
		Count:      CountEvents,
		Interval:   time.Second,
		Label:      FaceMeshLabel,
		CountFaces: true,
	},
}

// PolicyFor returns the live logging policy for f.
func PolicyFor(f Feature) Policy {
	if p, ok := policies[f]; ok {
		return p
	}
	return Policy{Feature: f, Mode: LogEveryEntity, Count: CountEvents, Interval: time.Second}
}

// UploadWordFloor is the OCR confidence (0..100) a word must exceed to be
// kept by an upload analysis.
const UploadWordFloor = 60
