package tui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorPurple  = lipgloss.Color("#A855F7")
	ColorRed     = lipgloss.Color("#EF4444")
	ColorGreen   = lipgloss.Color("#22C55E")
	ColorYellow  = lipgloss.Color("#EAB308")
	ColorBlue    = lipgloss.Color("#3B82F6")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
)

// Base styles reused by the views.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPurple)

	FeatureStyle = lipgloss.NewStyle().
			Foreground(ColorBlue)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorPurple).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	ConfirmStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	SearchStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	BarFillStyle = lipgloss.NewStyle().
			Foreground(ColorPurple)

	BarWarnStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	BarFullStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	BarEmptyStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)
)
