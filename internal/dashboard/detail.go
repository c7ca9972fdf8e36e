package dashboard

import (
	"math"
	"strings"

	"github.com/ironsheep/obvix/internal/session"
)

// TimelinePoint is one event on a session timeline.
type TimelinePoint struct {
	Time  string `json:"time"`
	Score int    `json:"score"`
	Label string `json:"label"`
}

// WordStats is the OCR breakdown of a text session.
type WordStats struct {
	Total         int     `json:"totalWords"`
	AvgConfidence int     `json:"avgConfidence"`
	Buckets       []Count `json:"confidenceBuckets"`
	FullText      string  `json:"fullText"`
}

// Detail is everything the session viewer shows for one session.
type Detail struct {
	Session       *session.Session `json:"session"`
	Feature       session.Feature  `json:"feature"`
	Date          string           `json:"date"`
	Duration      string           `json:"duration"`
	AvgConfidence int              `json:"avgConfidence"`
	Distribution  []Count          `json:"distribution"`
	Timeline      []TimelinePoint  `json:"timeline"`
	Words         *WordStats       `json:"words,omitempty"`
}

var bucketNames = [...]string{"0-20%", "21-40%", "41-60%", "61-80%", "81-100%"}

// Describe builds the detail view of s.
func Describe(s *session.Session) Detail {
	d := Detail{
		Session:       s,
		Feature:       session.FeatureOf(s),
		Date:          FormatDate(s.StartTime),
		Duration:      FormatDuration(s),
		AvgConfidence: meanScore(s),
		Timeline:      make([]TimelinePoint, 0, len(s.Detections)),
	}

	labels := newCounter()
	for _, det := range s.Detections {
		labels.add(det.Label, 1)
		d.Timeline = append(d.Timeline, TimelinePoint{
			Time:  det.Timestamp.Format(timeLayout),
			Score: det.Score,
			Label: det.Label,
		})
	}
	d.Distribution = labels.sorted()
	d.Words = wordStats(s)
	return d
}

// ConfidenceBuckets sorts OCR word confidences into five 20-point bands.
// Band edges are inclusive at the top.
func ConfidenceBuckets(words []session.Word) []Count {
	out := make([]Count, len(bucketNames))
	for i, name := range bucketNames {
		out[i].Name = name
	}
	for _, w := range words {
		switch c := w.Confidence; {
		case c <= 20:
			out[0].Count++
		case c <= 40:
			out[1].Count++
		case c <= 60:
			out[2].Count++
		case c <= 80:
			out[3].Count++
		default:
			out[4].Count++
		}
	}
	return out
}

func wordStats(s *session.Session) *WordStats {
	var (
		words []session.Word
		texts []string
	)
	for _, d := range s.Detections {
		words = append(words, d.Words...)
		if d.Text != "" {
			texts = append(texts, d.Text)
		}
	}
	if len(words) == 0 && len(texts) == 0 {
		return nil
	}

	ws := &WordStats{
		Total:    len(words),
		Buckets:  ConfidenceBuckets(words),
		FullText: strings.Join(texts, "\n\n"),
	}
	if len(words) > 0 {
		var sum float64
		for _, w := range words {
			sum += w.Confidence
		}
		ws.AvgConfidence = int(math.Round(sum / float64(len(words))))
	}
	return ws
}
