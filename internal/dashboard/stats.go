// Package dashboard computes the aggregate views shown over stored
// sessions: per-feature overviews, session detail breakdowns, search and
// pagination. Everything here is a pure function of the session list.
package dashboard

import (
	"math"
	"sort"
	"strings"

	"github.com/ironsheep/obvix/internal/session"
)

const (
	// TopLabels caps label distributions.
	TopLabels = 10
	// TrendSessions is how many recent sessions the overview trend covers.
	TrendSessions = 14
	// TextTrendDetections is how many recent OCR detections the text
	// confidence trend covers.
	TextTrendDetections = 20
	// ActiveDays is how many days of word activity the text view keeps.
	ActiveDays = 7
)

// Count is one bar of a distribution.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TrendPoint is one session in the overview trend.
type TrendPoint struct {
	Date       string `json:"date"`
	Count      int    `json:"count"`
	Confidence int    `json:"confidence"`
}

// Overview is the summary shown for any feature.
type Overview struct {
	TotalSessions   int          `json:"totalSessions"`
	TotalDetections int          `json:"totalDetections"`
	AvgConfidence   int          `json:"avgConfidence"`
	Distribution    []Count      `json:"classDistribution"`
	Trend           []TrendPoint `json:"trendData"`
}

// TextTrendPoint is one OCR detection in the confidence trend.
type TextTrendPoint struct {
	Time       string `json:"time"`
	Confidence int    `json:"confidence"`
	Words      int    `json:"words"`
}

// TextStats summarises text detection sessions.
type TextStats struct {
	TotalSessions int              `json:"totalSessions"`
	TotalWords    int              `json:"totalWords"`
	AvgConfidence int              `json:"avgConfidence"`
	DailyActivity []Count          `json:"dailyActivity"`
	Trend         []TextTrendPoint `json:"trendData"`
}

// ClassificationStats summarises image classification sessions.
type ClassificationStats struct {
	TotalImages   int     `json:"totalImages"`
	UniqueClasses int     `json:"uniqueClasses"`
	AvgConfidence int     `json:"avgConfidence"`
	Distribution  []Count `json:"classDistribution"`
}

// FaceTrendPoint is one session in the face landmark trend.
type FaceTrendPoint struct {
	Date  string `json:"date"`
	Faces int    `json:"faces"`
}

// FaceLandmarkStats summarises face landmark sessions.
type FaceLandmarkStats struct {
	TotalSessions int              `json:"totalSessions"`
	TotalFaces    int              `json:"totalFaces"`
	AvgConfidence int              `json:"avgConfidence"`
	Trend         []FaceTrendPoint `json:"trendData"`
}

// Report bundles the overview with the feature specific view, if the
// feature has one.
type Report struct {
	Feature        session.Feature      `json:"feature,omitempty"`
	Overview       Overview             `json:"overview"`
	Text           *TextStats           `json:"text,omitempty"`
	Classification *ClassificationStats `json:"classification,omitempty"`
	FaceLandmark   *FaceLandmarkStats   `json:"faceLandmark,omitempty"`
}

// Filter returns the sessions belonging to f, keeping their order. An
// empty feature returns every session.
func Filter(sessions []*session.Session, f session.Feature) []*session.Session {
	if f == "" {
		return sessions
	}
	out := make([]*session.Session, 0, len(sessions))
	for _, s := range sessions {
		if session.Matches(s, f) {
			out = append(out, s)
		}
	}
	return out
}

// Build filters all by f and computes its report.
func Build(all []*session.Session, f session.Feature) Report {
	sessions := Filter(all, f)
	r := Report{Feature: f, Overview: ComputeOverview(sessions)}
	switch f {
	case session.TextDetection:
		t := ComputeText(sessions)
		r.Text = &t
	case session.ImageClassification:
		c := ComputeClassification(sessions)
		r.Classification = &c
	case session.FaceLandmark:
		fl := ComputeFaceLandmark(sessions)
		r.FaceLandmark = &fl
	}
	return r
}

// ComputeOverview totals sessions, detections and scores.
func ComputeOverview(sessions []*session.Session) Overview {
	o := Overview{
		TotalSessions: len(sessions),
		Distribution:  []Count{},
		Trend:         []TrendPoint{},
	}
	if len(sessions) == 0 {
		return o
	}

	var (
		total, n int
		labels   = newCounter()
	)
	for _, s := range sessions {
		o.TotalDetections += s.DetectionCount
		for _, d := range s.Detections {
			total += d.Score
			n++
			labels.add(d.Label, 1)
		}
	}
	o.AvgConfidence = mean(total, n)
	o.Distribution = labels.top(TopLabels)

	for _, s := range recent(sessions, TrendSessions) {
		o.Trend = append(o.Trend, TrendPoint{
			Date:       FormatDate(s.StartTime),
			Count:      s.DetectionCount,
			Confidence: meanScore(s),
		})
	}
	return o
}

// ComputeText summarises OCR word counts and confidences.
func ComputeText(sessions []*session.Session) TextStats {
	st := TextStats{
		TotalSessions: len(sessions),
		DailyActivity: []Count{},
		Trend:         []TextTrendPoint{},
	}

	var (
		sum   float64
		n     int
		daily = map[string]int{}
		all   []session.Detection
	)
	for _, s := range sessions {
		words := 0
		for _, d := range s.Detections {
			words += d.WordCount
			if d.AvgConfidence > 0 {
				sum += d.AvgConfidence
				n++
			}
			all = append(all, d)
		}
		st.TotalWords += words
		daily[s.StartTime.Format(dayLayout)] += words
	}
	if n > 0 {
		st.AvgConfidence = int(math.Round(sum / float64(n)))
	}

	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)
	if len(days) > ActiveDays {
		days = days[len(days)-ActiveDays:]
	}
	for _, day := range days {
		st.DailyActivity = append(st.DailyActivity, Count{Name: day, Count: daily[day]})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	if len(all) > TextTrendDetections {
		all = all[len(all)-TextTrendDetections:]
	}
	for _, d := range all {
		st.Trend = append(st.Trend, TextTrendPoint{
			Time:       d.Timestamp.Format(clockLayout),
			Confidence: int(math.Round(d.AvgConfidence)),
			Words:      d.WordCount,
		})
	}
	return st
}

// ComputeClassification counts images and classes. Classes are keyed by
// the label text before the first comma.
func ComputeClassification(sessions []*session.Session) ClassificationStats {
	var (
		st      ClassificationStats
		total   int
		n       int
		classes = newCounter()
	)
	for _, s := range sessions {
		st.TotalImages += len(s.Detections)
		for _, d := range s.Detections {
			if d.Score > 0 {
				total += d.Score
				n++
			}
			if d.Label != "" {
				classes.add(MainLabel(d.Label), 1)
			}
		}
	}
	st.AvgConfidence = mean(total, n)
	st.UniqueClasses = len(classes.counts)
	st.Distribution = classes.top(TopLabels)
	return st
}

// ComputeFaceLandmark totals analysed faces.
func ComputeFaceLandmark(sessions []*session.Session) FaceLandmarkStats {
	st := FaceLandmarkStats{TotalSessions: len(sessions), Trend: []FaceTrendPoint{}}

	var total, n int
	for _, s := range sessions {
		for _, d := range s.Detections {
			st.TotalFaces += d.FaceCount
			if d.Score > 0 {
				total += d.Score
				n++
			}
		}
	}
	st.AvgConfidence = mean(total, n)

	for _, s := range recent(sessions, TrendSessions) {
		faces := 0
		for _, d := range s.Detections {
			faces += d.FaceCount
		}
		st.Trend = append(st.Trend, FaceTrendPoint{Date: FormatDate(s.StartTime), Faces: faces})
	}
	return st
}

// MainLabel is the label text before the first comma, trimmed.
func MainLabel(label string) string {
	if i := strings.IndexByte(label, ','); i >= 0 {
		label = label[:i]
	}
	return strings.TrimSpace(label)
}

// recent returns the last n sessions by start time, oldest first.
func recent(sessions []*session.Session, n int) []*session.Session {
	sorted := make([]*session.Session, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}

func meanScore(s *session.Session) int {
	total := 0
	for _, d := range s.Detections {
		total += d.Score
	}
	return mean(total, len(s.Detections))
}

func mean(total, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(n)))
}

// counter tallies names and remembers first-seen order so ties sort
// stably.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(name string, n int) {
	if _, ok := c.counts[name]; !ok {
		c.order = append(c.order, name)
	}
	c.counts[name] += n
}

func (c *counter) sorted() []Count {
	out := make([]Count, len(c.order))
	for i, name := range c.order {
		out[i] = Count{Name: name, Count: c.counts[name]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func (c *counter) top(n int) []Count {
	out := c.sorted()
	if len(out) > n {
		out = out[:n]
	}
	return out
}
