package dashboard

import (
	"strings"

	"github.com/ironsheep/obvix/internal/session"
)

// PageSize is how many sessions a list shows at first and how many each
// "load more" adds.
const PageSize = 8

// Search keeps sessions whose id, start date or any detection label
// contains q, ignoring case. An empty query keeps everything.
func Search(sessions []*session.Session, q string) []*session.Session {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return sessions
	}
	out := make([]*session.Session, 0, len(sessions))
	for _, s := range sessions {
		if matchesQuery(s, q) {
			out = append(out, s)
		}
	}
	return out
}

func matchesQuery(s *session.Session, q string) bool {
	if strings.Contains(strings.ToLower(s.ID), q) {
		return true
	}
	for _, layout := range []string{dayLayout, longLayout, dateLayout} {
		if strings.Contains(strings.ToLower(s.StartTime.Format(layout)), q) {
			return true
		}
	}
	for _, d := range s.Detections {
		if strings.Contains(strings.ToLower(d.Label), q) {
			return true
		}
	}
	return false
}

// Pager tracks how much of a list is visible.
type Pager struct {
	visible int
}

// NewPager shows the first page.
func NewPager() Pager { return Pager{visible: PageSize} }

// More reveals another page.
func (p *Pager) More() { p.visible += PageSize }

// Reset goes back to the first page, as after a new search.
func (p *Pager) Reset() { p.visible = PageSize }

// Visible is the current window size.
func (p Pager) Visible() int { return p.visible }

// Window returns how many of total items to show and how many remain.
func (p Pager) Window(total int) (shown, remaining int) {
	shown = p.visible
	if shown <= 0 {
		shown = PageSize
	}
	if shown > total {
		shown = total
	}
	return shown, total - shown
}

// Page returns the visible prefix of sessions and the count left over.
func Page(sessions []*session.Session, p Pager) ([]*session.Session, int) {
	shown, remaining := p.Window(len(sessions))
	return sessions[:shown], remaining
}
