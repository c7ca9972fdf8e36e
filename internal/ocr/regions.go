package ocr

import (
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// DefaultRegionConfidence is the TextRegions threshold used to decide
// whether a frame is worth recognising.
const DefaultRegionConfidence = 0.3

// edgeLevel is the Sobel magnitude above which a pixel counts as an edge.
const edgeLevel = 96

// Region is an area that looks like it holds a line of text.
type Region struct {
	Bounds     image.Rectangle
	Confidence float64
}

var windowSizes = []struct{ w, h int }{
	{80, 25},
	{100, 30},
	{150, 40},
	{200, 50},
}

// TextRegions scans img with sliding windows and returns the areas whose
// edge density and horizontal structure resemble printed text, merged
// where they overlap and sorted by confidence. Text has a moderate edge
// density (5% to 40% of pixels) with more horizontal than vertical runs.
func TextRegions(img image.Image, minConfidence float64) []Region {
	bounds := img.Bounds()
	edges := segment.Threshold(effect.Sobel(img), edgeLevel)
	width, height := edges.Bounds().Dx(), edges.Bounds().Dy()
	isEdge := func(x, y int) bool {
		return edges.Pix[y*edges.Stride+x] > 0
	}

	var candidates []Region
	for _, ws := range windowSizes {
		stepX, stepY := ws.w/2, ws.h/2
		for y := 0; y <= height-ws.h; y += stepY {
			for x := 0; x <= width-ws.w; x += stepX {
				count := 0
				for wy := y; wy < y+ws.h; wy++ {
					for wx := x; wx < x+ws.w; wx++ {
						if isEdge(wx, wy) {
							count++
						}
					}
				}
				density := float64(count) / float64(ws.w*ws.h)
				if density < 0.05 || density > 0.4 {
					continue
				}
				conf := horizontalScore(isEdge, x, y, ws.w, ws.h) * (1.0 - math.Abs(density-0.2)/0.2)
				if conf < minConfidence {
					continue
				}
				r := image.Rect(x, y, x+ws.w, y+ws.h).Add(bounds.Min)
				candidates = append(candidates, Region{Bounds: r, Confidence: math.Round(conf*1000) / 1000})
			}
		}
	}

	merged := mergeRegions(candidates)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Confidence > merged[j].Confidence })
	return merged
}

// horizontalScore is the share of edge runs that are horizontal.
func horizontalScore(isEdge func(x, y int) bool, x, y, w, h int) float64 {
	horizontal, vertical := 0, 0
	for row := y; row < y+h; row++ {
		inRun := false
		for col := x; col < x+w; col++ {
			if isEdge(col, row) {
				if !inRun {
					horizontal++
				}
				inRun = true
			} else {
				inRun = false
			}
		}
	}
	for col := x; col < x+w; col++ {
		inRun := false
		for row := y; row < y+h; row++ {
			if isEdge(col, row) {
				if !inRun {
					vertical++
				}
				inRun = true
			} else {
				inRun = false
			}
		}
	}
	if horizontal+vertical == 0 {
		return 0
	}
	return float64(horizontal) / float64(horizontal+vertical)
}

func mergeRegions(regions []Region) []Region {
	merged := make([]Region, 0, len(regions))
	for _, r := range regions {
		found := false
		for i := range merged {
			if r.Bounds.Overlaps(merged[i].Bounds) {
				merged[i].Bounds = merged[i].Bounds.Union(r.Bounds)
				merged[i].Confidence = math.Max(merged[i].Confidence, r.Confidence)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, r)
		}
	}
	return merged
}
