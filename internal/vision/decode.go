package vision

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"math"
	"regexp"
	"sort"
	"strings"
)

// ssdRowSize is the width of one SSD detection row:
// [batch, classID, confidence, left, top, right, bottom].
const ssdRowSize = 7

// ParseSSD decodes an SSD detection tensor. Coordinates in the tensor are
// normalized to [0,1] and are scaled to the frame size. Rows at or below
// minScore, or whose class has no label, are skipped.
func ParseSSD(data []float32, frameW, frameH int, minScore float64, label func(classID int) string) []Result {
	frame := image.Rect(0, 0, frameW, frameH)
	results := make([]Result, 0)

	for off := 0; off+ssdRowSize <= len(data); off += ssdRowSize {
		row := data[off : off+ssdRowSize]
		score := float64(row[2])
		if score <= minScore {
			continue
		}
		name := label(int(row[1]))
		if name == "" {
			continue
		}

		box := image.Rect(
			scale(row[3], frameW),
			scale(row[4], frameH),
			scale(row[5], frameW),
			scale(row[6], frameH),
		).Intersect(frame)
		if box.Empty() {
			continue
		}

		results = append(results, Result{Label: name, Score: score, Box: box})
	}

	return results
}

func scale(v float32, size int) int {
	return int(math.Round(float64(v) * float64(size)))
}

// Softmax converts logits to probabilities.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxV))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// TopK returns the k most probable classes, best first.
func TopK(probs []float32, k int, labels []string) []Result {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })

	if k > len(idx) {
		k = len(idx)
	}
	results := make([]Result, 0, k)
	for _, i := range idx[:k] {
		name := fmt.Sprintf("class %d", i)
		if i < len(labels) && labels[i] != "" {
			name = labels[i]
		}
		results = append(results, Result{Label: name, Score: float64(probs[i])})
	}
	return results
}

var synsetPrefix = regexp.MustCompile(`^n\d{8}\s+`)

// ParseLabels reads one class name per line. ImageNet synset ids such as
// "n01440764 " are stripped so "n01440764 tench, Tinca tinca" becomes
// "tench, Tinca tinca".
func ParseLabels(r io.Reader) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		labels = append(labels, synsetPrefix.ReplaceAllString(line, ""))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return labels, nil
}

// HeatmapPeaks reduces a C x H x W stack of confidence maps to one keypoint
// per named channel, located at the channel maximum and scaled to the frame.
func HeatmapPeaks(maps []float32, h, w, frameW, frameH int, names []string) []Keypoint {
	plane := h * w
	if plane == 0 {
		return nil
	}
	kps := make([]Keypoint, 0, len(names))
	for c, name := range names {
		start := c * plane
		if start+plane > len(maps) {
			break
		}
		best, bestAt := float32(-1), 0
		for i, v := range maps[start : start+plane] {
			if v > best {
				best, bestAt = v, i
			}
		}
		px, py := bestAt%w, bestAt/w
		kps = append(kps, Keypoint{
			Name:  name,
			X:     float64(px) * float64(frameW) / float64(w),
			Y:     float64(py) * float64(frameH) / float64(h),
			Score: float64(best),
		})
	}
	return kps
}

// KeypointResult builds a single Result from keypoints, scoring it by the
// mean confidence of the points above minScore. ok is false when no point
// qualifies.
func KeypointResult(label string, kps []Keypoint, minScore float64) (Result, bool) {
	var sum float64
	var n int
	for _, kp := range kps {
		if kp.Score > minScore {
			sum += kp.Score
			n++
		}
	}
	if n == 0 {
		return Result{}, false
	}
	return Result{
		Label:     label,
		Score:     sum / float64(n),
		Box:       BoundsOf(kps, minScore),
		Keypoints: kps,
	}, true
}
