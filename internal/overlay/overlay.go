// Package overlay draws detection results onto camera frames: one shape
// per result plus a "LABEL NN%" caption, styled per feature.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/vision"
)

// RenderFunc draws results onto dst.
type RenderFunc func(dst *image.RGBA, results []vision.Result)

var (
	purple = mustHex("#a855f7")
	blue   = mustHex("#3b82f6")
	green  = mustHex("#22c55e")
	yellow = mustHex("#eab308")
	pink   = mustHex("#f472b6")
	white  = color.RGBA{255, 255, 255, 255}
	black  = color.RGBA{0, 0, 0, 255}
)

// For returns the renderer for feature f.
func For(f session.Feature) RenderFunc {
	switch f {
	case session.ObjectDetection:
		return drawObjects
	case session.FaceDetection:
		return drawFaces
	case session.HandTracking:
		return drawHands
	case session.PoseDetection:
		return drawPoses
	case session.TextDetection:
		return drawWords
	case session.ImageClassification:
		return drawClasses
	case session.FaceLandmark:
		return drawMesh
	}
	return drawBoxes
}

// Render copies src and draws results for feature f on the copy. The
// source frame is never modified.
func Render(src image.Image, f session.Feature, results []vision.Result) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	For(f)(dst, results)
	return dst
}

// Caption formats a result the way every overlay labels it.
func Caption(r vision.Result) string {
	return fmt.Sprintf("%s %d%%", r.Label, r.Percent())
}

func drawObjects(dst *image.RGBA, results []vision.Result) {
	for _, r := range results {
		if r.Score <= session.PolicyFor(session.ObjectDetection).MinScore {
			continue
		}
		fillRect(dst, r.Box, withAlpha(purple, 0.05))
		strokeCorners(dst, r.Box, 4, purple)
		label := vision.Result{Label: strings.ToUpper(r.Label), Score: r.Score}
		caption(dst, r.Box.Min.X, r.Box.Min.Y, Caption(label), white, purple)
	}
}

func drawFaces(dst *image.RGBA, results []vision.Result) {
	for _, r := range results {
		fillRect(dst, r.Box, withAlpha(purple, 0.1))
		strokeRect(dst, r.Box, 3, purple)
		caption(dst, r.Box.Min.X, r.Box.Min.Y-captionHeight, Caption(vision.Result{Label: "Face", Score: r.Score}), white, purple)
		for _, kp := range r.Keypoints {
			dot(dst, kp.Point(), 2, blue)
		}
	}
}

func drawHands(dst *image.RGBA, results []vision.Result) {
	for _, r := range results {
		fillRect(dst, r.Box, withAlpha(blue, 0.1))
		strokeRect(dst, r.Box, 2, blue)
		drawSkeleton(dst, r.Keypoints, vision.HandSkeleton, 2, white)
		for i, kp := range r.Keypoints {
			if kp.Score <= session.PoseKeypointFloor {
				continue
			}
			c := blue
			// fingertips
			if i > 0 && i%4 == 0 {
				c = purple
			}
			dot(dst, kp.Point(), 3, c)
		}
		label := r.Label
		if label == "" {
			label = "Hand"
		}
		caption(dst, r.Box.Min.X, r.Box.Min.Y-captionHeight, label, white, blue)
	}
}

func drawPoses(dst *image.RGBA, results []vision.Result) {
	for _, r := range results {
		drawSkeleton(dst, r.Keypoints, vision.PoseSkeleton, 3, green)
		for _, kp := range r.Keypoints {
			if kp.Score <= session.PoseKeypointFloor {
				continue
			}
			dot(dst, kp.Point(), 4, green)
			dot(dst, kp.Point(), 2, white)
		}
		if !r.Box.Empty() {
			caption(dst, r.Box.Min.X, r.Box.Min.Y-captionHeight, Caption(vision.Result{Label: "Human Pose", Score: r.Score}), black, green)
		}
	}
}

func drawSkeleton(dst *image.RGBA, kps []vision.Keypoint, bones []vision.Bone, width int, c color.RGBA) {
	for _, bone := range bones {
		a, b := bone[0], bone[1]
		if a >= len(kps) || b >= len(kps) {
			continue
		}
		if kps[a].Score <= session.PoseKeypointFloor || kps[b].Score <= session.PoseKeypointFloor {
			continue
		}
		line(dst, kps[a].Point(), kps[b].Point(), width, c)
	}
}

func drawWords(dst *image.RGBA, results []vision.Result) {
	floor := session.PolicyFor(session.TextDetection).MinScore
	for _, r := range results {
		if r.Score <= floor {
			continue
		}
		strokeRect(dst, r.Box, 2, yellow)
		caption(dst, r.Box.Min.X, r.Box.Min.Y-captionHeight, Caption(r), mustHex("#fce7f3"), withAlpha(black, 0.7))
	}
}

// drawClasses lists the ranked classes in the top-left corner.
func drawClasses(dst *image.RGBA, results []vision.Result) {
	colors := Palette(len(results))
	b := dst.Bounds()
	for i, r := range results {
		caption(dst, b.Min.X+8, b.Min.Y+8+i*(captionHeight+4), Caption(r), white, colors[i])
	}
}

func drawMesh(dst *image.RGBA, results []vision.Result) {
	for _, r := range results {
		for _, kp := range r.Keypoints {
			dot(dst, kp.Point(), 1, pink)
		}
		strokeRect(dst, r.Box, 2, pink)
	}
}

func drawBoxes(dst *image.RGBA, results []vision.Result) {
	for _, r := range results {
		strokeRect(dst, r.Box, 2, purple)
		caption(dst, r.Box.Min.X, r.Box.Min.Y, Caption(r), white, purple)
	}
}
