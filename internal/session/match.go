package session

// Matches reports whether s belongs to feature f. Sessions written before
// type tags existed are classified by the shape of their detections:
// face-mesh labels mean face_landmark, OCR word lists mean text_detection
// and anything else untagged is an object-detection run.
func Matches(s *Session, f Feature) bool {
	if f == FaceLandmark && hasFaceMesh(s) {
		return true
	}
	if s.Type != "" {
		return s.Type == f
	}
	switch f {
	case ObjectDetection:
		return !hasFaceMesh(s) && !hasWords(s)
	case TextDetection:
		return hasWords(s)
	}
	return false
}

// FeatureOf returns the feature s belongs to.
func FeatureOf(s *Session) Feature {
	if s.Type != "" {
		return s.Type
	}
	switch {
	case hasFaceMesh(s):
		return FaceLandmark
	case hasWords(s):
		return TextDetection
	default:
		return ObjectDetection
	}
}

func hasFaceMesh(s *Session) bool {
	for _, d := range s.Detections {
		if d.Label == FaceMeshLabel {
			return true
		}
	}
	return false
}

func hasWords(s *Session) bool {
	for _, d := range s.Detections {
		if len(d.Words) > 0 {
			return true
		}
	}
	return false
}
