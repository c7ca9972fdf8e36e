package dashboard

import (
	"fmt"

	"github.com/ironsheep/obvix/internal/imaging"
	"github.com/ironsheep/obvix/internal/session"
)

// Summary is one session as shown in a list.
type Summary struct {
	ID             string          `json:"id"`
	Feature        session.Feature `json:"feature"`
	Date           string          `json:"date"`
	Duration       string          `json:"duration"`
	DetectionCount int             `json:"detectionCount"`
	Preview        string          `json:"preview"`
	HasImages      bool            `json:"hasImages"`
}

// Summarize builds the list row for s.
func Summarize(s *session.Session) Summary {
	return Summary{
		ID:             s.ID,
		Feature:        session.FeatureOf(s),
		Date:           FormatDate(s.StartTime),
		Duration:       FormatDuration(s),
		DetectionCount: s.DetectionCount,
		Preview:        Preview(s),
		HasImages:      s.HasImages(),
	}
}

// Listing is a filtered, searched and limited session list.
type Listing struct {
	Sessions  []Summary `json:"sessions"`
	Total     int       `json:"total"`
	Remaining int       `json:"remaining"`
}

// List filters all by feature and query and keeps the first limit
// matches. A limit of zero or less uses PageSize.
func List(all []*session.Session, f session.Feature, q string, limit int) Listing {
	if limit <= 0 {
		limit = PageSize
	}
	matched := Search(Filter(all, f), q)
	shown, remaining := Pager{visible: limit}.Window(len(matched))

	out := Listing{Sessions: make([]Summary, shown), Total: len(matched), Remaining: remaining}
	for i, s := range matched[:shown] {
		out.Sessions[i] = Summarize(s)
	}
	return out
}

// WithoutImages returns a copy of s whose snapshot data URLs are replaced
// by a short "[image/jpeg 12 kB]" note.
func WithoutImages(s *session.Session) *session.Session {
	c := s.Clone()
	for i := range c.Detections {
		d := &c.Detections[i]
		d.OriginalImage = imageNote(d.OriginalImage)
		d.MaskedImage = imageNote(d.MaskedImage)
		d.ImageData = imageNote(d.ImageData)
	}
	return c
}

func imageNote(dataURL string) string {
	if dataURL == "" {
		return ""
	}
	mime, data, err := imaging.ParseDataURL(dataURL)
	if err != nil {
		return "[unreadable image]"
	}
	return fmt.Sprintf("[%s %s]", mime, Bytes(int64(len(data))))
}
