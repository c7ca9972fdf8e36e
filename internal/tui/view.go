package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ironsheep/obvix/internal/dashboard"
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/store"
)

const defaultWidth = 80

// View renders the full TUI.
func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = defaultWidth
	}
	divider := DividerStyle.Render(strings.Repeat("─", width))

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStats())
	sections = append(sections, divider)

	if m.mode == ModeDetail && m.detail != nil {
		sections = append(sections, m.renderDetail(width))
	} else {
		sections = append(sections, m.renderList(width))
	}

	sections = append(sections, divider)
	if m.confirm != nil {
		sections = append(sections, ConfirmStyle.Render(m.confirm.prompt+" [y/n]"))
	}
	if m.errorMsg != "" {
		sections = append(sections, ErrorStyle.Render("Error: "+m.errorMsg))
	}
	if m.notice != "" {
		sections = append(sections, NoticeStyle.Render(m.notice))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("OBVIX")
	f := "all features"
	if ff := m.Feature(); ff != "" {
		f = string(ff)
	}
	return title + " " + FeatureStyle.Render("["+f+"]") + "  " + renderUsage(m.usage)
}

func renderUsage(u store.Usage) string {
	const barLen = 10
	filled := int(u.Percent / 100 * barLen)
	if filled > barLen {
		filled = barLen
	}

	style := BarFillStyle
	switch {
	case u.Percent > 90:
		style = BarFullStyle
	case u.Percent > dashboard.UsageWarnPercent:
		style = BarWarnStyle
	}

	bar := style.Render(strings.Repeat("█", filled)) + BarEmptyStyle.Render(strings.Repeat("░", barLen-filled))
	return DimStyle.Render("storage ") + bar + DimStyle.Render(fmt.Sprintf(" %.1f%% of %s", u.Percent, dashboard.Bytes(u.Total)))
}

func stat(label string, value any) string {
	return StatLabelStyle.Render(label+" ") + StatValueStyle.Render(fmt.Sprint(value))
}

func (m Model) renderStats() string {
	o := m.report.Overview
	parts := []string{
		stat("sessions", o.TotalSessions),
		stat("detections", o.TotalDetections),
		stat("avg conf", fmt.Sprintf("%d%%", o.AvgConfidence)),
	}
	switch {
	case m.report.Text != nil:
		parts = append(parts, stat("words", m.report.Text.TotalWords))
	case m.report.Classification != nil:
		c := m.report.Classification
		parts = append(parts, stat("images", c.TotalImages), stat("classes", c.UniqueClasses))
	case m.report.FaceLandmark != nil:
		parts = append(parts, stat("faces", m.report.FaceLandmark.TotalFaces))
	}

	line := strings.Join(parts, "  ")
	if top := o.Distribution; len(top) > 0 {
		n := min(3, len(top))
		names := make([]string, n)
		for i := 0; i < n; i++ {
			names[i] = fmt.Sprintf("%s×%d", top[i].Name, top[i].Count)
		}
		line += "  " + DimStyle.Render("top: "+strings.Join(names, ", "))
	}
	return line
}

func (m Model) renderList(width int) string {
	var lines []string

	if m.mode == ModeSearch || m.query != "" {
		cursor := ""
		if m.mode == ModeSearch {
			cursor = "▌"
		}
		lines = append(lines, SearchStyle.Render("/"+m.query+cursor))
	}

	shown, remaining := m.Visible()
	if len(shown) == 0 {
		if m.query != "" {
			lines = append(lines, DimStyle.Render(fmt.Sprintf("  No sessions match %q", m.query)))
		} else {
			lines = append(lines, DimStyle.Render("  No sessions recorded yet"))
		}
		return strings.Join(lines, "\n")
	}

	for i, s := range shown {
		line := fmt.Sprintf("#%-5s  %-15s  %-7s  %4d  %s",
			dashboard.ShortID(s.ID),
			dashboard.FormatDate(s.StartTime),
			dashboard.FormatDuration(s),
			s.DetectionCount,
			dashboard.Preview(s))
		line = truncateToWidth(line, width-2)
		if i == m.selected {
			lines = append(lines, SelectedStyle.Render("> "+line))
		} else {
			lines = append(lines, "  "+line)
		}
	}
	if remaining > 0 {
		lines = append(lines, DimStyle.Render(fmt.Sprintf("  Load more (%d remaining), press m", remaining)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail(width int) string {
	d := m.detail
	s := d.Session

	lines := []string{
		TitleStyle.Render("Session #"+dashboard.ShortID(s.ID)) + "  " + FeatureStyle.Render(string(d.Feature)),
		stat("date", d.Date) + "  " + stat("duration", d.Duration) + "  " +
			stat("events", s.DetectionCount) + "  " + stat("avg conf", fmt.Sprintf("%d%%", d.AvgConfidence)),
	}

	if len(d.Distribution) > 0 {
		lines = append(lines, "", StatLabelStyle.Render("Distribution"))
		for _, c := range d.Distribution {
			lines = append(lines, fmt.Sprintf("  %-24s %d", truncateToWidth(c.Name, 24), c.Count))
		}
	}

	if w := d.Words; w != nil {
		lines = append(lines, "", StatLabelStyle.Render(fmt.Sprintf("Words %d, avg confidence %d%%", w.Total, w.AvgConfidence)))
		for _, b := range w.Buckets {
			lines = append(lines, fmt.Sprintf("  %-8s %s %d", b.Name, BarFillStyle.Render(strings.Repeat("█", min(b.Count, 40))), b.Count))
		}
	}

	lines = append(lines, "", StatLabelStyle.Render("Timeline"))
	limit := m.timelineRows()
	for i, p := range d.Timeline {
		if i == limit {
			lines = append(lines, DimStyle.Render(fmt.Sprintf("  … %d more", len(d.Timeline)-limit)))
			break
		}
		lines = append(lines, truncateToWidth(fmt.Sprintf("  %s  %3d%%  %s", p.Time, p.Score, p.Label), width))
	}
	if imgs := imageCount(s); imgs > 0 {
		lines = append(lines, "", DimStyle.Render(fmt.Sprintf("%d snapshot(s); export with: obvix sessions export %s --images DIR", imgs, s.ID)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) timelineRows() int {
	if m.height == 0 {
		return 10
	}
	return max(3, m.height-20)
}

func imageCount(s *session.Session) int {
	n := 0
	for _, d := range s.Detections {
		for _, img := range []string{d.OriginalImage, d.MaskedImage, d.ImageData} {
			if img != "" {
				n++
			}
		}
	}
	return n
}

func (m Model) renderFooter() string {
	var keys [][2]string
	switch m.mode {
	case ModeConfirm:
		keys = [][2]string{{"y", "confirm"}, {"n", "cancel"}}
	case ModeSearch:
		keys = [][2]string{{"enter", "done"}, {"esc", "done"}}
	case ModeDetail:
		keys = [][2]string{{"esc", "back"}, {"d", "delete"}}
	default:
		keys = [][2]string{
			{"↑↓", "select"}, {"enter", "open"}, {"tab", "feature"}, {"/", "search"},
			{"m", "more"}, {"d", "delete"}, {"c", "clear"}, {"r", "reload"}, {"q", "quit"},
		}
	}

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = FooterKeyStyle.Render(k[0]) + " " + FooterDescStyle.Render(k[1])
	}
	return strings.Join(parts, "  ")
}

func truncateToWidth(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
