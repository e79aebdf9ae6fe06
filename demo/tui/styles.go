package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent    = "#7D56F4"
	colorOK        = "#04B575"
	colorFail      = "#FF5F5F"
	colorMuted     = "#626262"
	colorBright    = "#FAFAFA"
	colorBoxBorder = "#874BFD"
)

var (
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colorAccent)).
		MarginTop(1).
		MarginBottom(1)

	StatusStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colorOK))

	ErrorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colorFail))

	InfoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colorMuted))

	BoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colorBoxBorder)).
		Padding(0, 2)

	HighlightStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colorBright)).
		Background(lipgloss.Color(colorAccent)).
		Padding(0, 1)
)
