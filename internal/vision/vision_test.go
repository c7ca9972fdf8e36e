package vision

import (
	"context"
	"image"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSSD(t *testing.T) {
	data := []float32{
		0, 1, 0.82, 0.10, 0.20, 0.50, 0.90, // person
		0, 18, 0.40, 0.0, 0.0, 0.2, 0.2, // dog below floor
		0, 12, 0.99, 0.0, 0.0, 0.2, 0.2, // unused id
		0, 3, 0.70, 0.90, 0.90, 1.30, 1.20, // car clipped to frame
	}

	got := ParseSSD(data, 200, 100, 0.5, COCOLabel)
	require.Len(t, got, 2)

	require.Equal(t, "person", got[0].Label)
	require.InDelta(t, 0.82, got[0].Score, 1e-6)
	require.Equal(t, image.Rect(20, 20, 100, 90), got[0].Box)

	require.Equal(t, "car", got[1].Label)
	require.Equal(t, image.Rect(180, 90, 200, 100), got[1].Box)
}

func TestParseSSD_IgnoresTrailingPartialRow(t *testing.T) {
	data := []float32{0, 1, 0.9, 0, 0, 1, 1, 0, 1}
	require.Len(t, ParseSSD(data, 10, 10, 0, COCOLabel), 1)
}

func TestSoftmaxSumsToOne(t *testing.T) {
	p := Softmax([]float32{1, 2, 3})
	var sum float64
	for _, v := range p {
		sum += float64(v)
	}
	require.InDelta(t, 1.0, sum, 1e-5)
	require.Greater(t, p[2], p[1])
	require.Nil(t, Softmax(nil))
}

func TestTopK(t *testing.T) {
	labels := []string{"cat", "dog", "", "fox"}
	got := TopK([]float32{0.1, 0.6, 0.25, 0.05}, 3, labels)

	require.Len(t, got, 3)
	require.Equal(t, "dog", got[0].Label)
	require.Equal(t, "class 2", got[1].Label)
	require.Equal(t, "cat", got[2].Label)

	require.Len(t, TopK([]float32{0.5}, 3, nil), 1)
}

func TestParseLabels(t *testing.T) {
	in := "n01440764 tench, Tinca tinca\nn01443537 goldfish, Carassius auratus\nplain label\n"
	labels, err := ParseLabels(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"tench, Tinca tinca", "goldfish, Carassius auratus", "plain label"}, labels)
}

func TestHeatmapPeaks(t *testing.T) {
	// two 2x4 channels
	maps := []float32{
		0, 0, 0, 0,
		0, 0, 0.9, 0,

		0.4, 0, 0, 0,
		0, 0, 0, 0,
	}
	kps := HeatmapPeaks(maps, 2, 4, 400, 200, []string{"a", "b", "missing"})
	require.Len(t, kps, 2)
	require.Equal(t, Keypoint{Name: "a", X: 200, Y: 100, Score: float64(float32(0.9))}, kps[0])
	require.Equal(t, 0.0, kps[1].X)
	require.InDelta(t, 0.4, kps[1].Score, 1e-6)
}

func TestKeypointResult(t *testing.T) {
	kps := []Keypoint{
		{X: 10, Y: 10, Score: 0.8},
		{X: 50, Y: 40, Score: 0.6},
		{X: 90, Y: 90, Score: 0.2},
	}
	r, ok := KeypointResult("Human Pose", kps, 0.3)
	require.True(t, ok)
	require.InDelta(t, 0.7, r.Score, 1e-9)
	require.Equal(t, image.Rect(10, 10, 51, 41), r.Box)

	_, ok = KeypointResult("Human Pose", kps[2:], 0.3)
	require.False(t, ok)
}

func TestResultPercent(t *testing.T) {
	require.Equal(t, 82, Result{Score: 0.8249}.Percent())
	require.Equal(t, 100, Result{}.Percent())
	require.Equal(t, int(math.Round(0.605*100)), Result{Score: 0.605}.Percent())
}

func TestStillSource(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src := NewStillSource(img)

	got, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Same(t, img, got)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, ErrSourceClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewStillSource(img).Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCOCOLabel(t *testing.T) {
	require.Equal(t, "person", COCOLabel(1))
	require.Equal(t, "toothbrush", COCOLabel(90))
	require.Empty(t, COCOLabel(12))
	require.Empty(t, COCOLabel(-1))
	require.Empty(t, COCOLabel(91))
}
