// Package vision defines the detector capability shared by every obvix
// feature and the pure helpers that turn raw model output into results.
//
// A Detector maps one frame to zero or more Results. Each Result carries a
// label, a confidence Score in [0,1], a bounding box in frame pixels and,
// for pose and hand models, a list of named keypoints. Detectors never log
// or persist anything; that is the job of the session recorder.
//
// # Sources
//
// A Source yields frames. Live features read from a camera (see package
// vision/cv); upload features wrap a single decoded image in a StillSource.
// Close releases the underlying device and must be safe to call more than
// once.
//
// # Model Output Helpers
//
// The helpers in this package are independent of any inference runtime so
// they can be tested without OpenCV:
//   - ParseSSD decodes the N x 7 detection tensor emitted by SSD-style
//     networks (object and face detectors).
//   - TopK ranks classifier probabilities, optionally through a softmax.
//   - HeatmapPeaks reduces OpenPose-style confidence maps to keypoints.
//
// # Coordinate System
//
// Boxes and keypoints use frame pixel coordinates with (0,0) at the
// top-left corner. Rectangles follow image.Rectangle semantics: Min is
// inclusive, Max is exclusive.
package vision
