package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ironsheep/obvix/internal/session"
)

const (
	dateLayout  = "Jan 2, 03:04 PM"
	dayLayout   = "2006-01-02"
	longLayout  = "Jan 2, 2006"
	timeLayout  = "15:04:05"
	clockLayout = "15:04"
)

// UsageWarnPercent is the storage fill level at which surfaces warn.
const UsageWarnPercent = 80

// FormatDate renders a session start time for lists and charts.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// FormatDuration renders a session length as "Xm Ys", or "--" when the
// session has no end time.
func FormatDuration(s *session.Session) string {
	if s.EndTime == nil {
		return "--"
	}
	d := s.Duration()
	return fmt.Sprintf("%dm %ds", int(d/time.Minute), int(d%time.Minute/time.Second))
}

// ShortID is the id prefix shown in lists.
func ShortID(id string) string {
	if len(id) > 5 {
		return id[:5]
	}
	return id
}

// Ago renders t relative to now, e.g. "3 minutes ago".
func Ago(t time.Time) string {
	return humanize.Time(t)
}

// Bytes renders a byte count, e.g. "1.2 MB".
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Preview is a one-line summary of what a session logged.
func Preview(s *session.Session) string {
	if len(s.Detections) == 0 {
		return "No detections"
	}
	switch session.FeatureOf(s) {
	case session.TextDetection:
		if t := s.Detections[0].Text; t != "" {
			return truncate(strings.Join(strings.Fields(t), " "), 48)
		}
	case session.FaceLandmark:
		faces := 0
		for _, d := range s.Detections {
			faces += d.FaceCount
		}
		return fmt.Sprintf("%s face(s) in %s image(s)", humanize.Comma(int64(faces)), humanize.Comma(int64(len(s.Detections))))
	}

	n := len(s.Detections)
	if n > 2 {
		n = 2
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = s.Detections[i].Label
	}
	out := strings.Join(labels, ", ")
	if len(s.Detections) > 2 {
		out += "..."
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
