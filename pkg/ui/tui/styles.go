package tui

import (
	"github.com/charmbracelet/lipgloss"

	"hyperdrive/pkg/jobs"
)

var (
	starBlue  = lipgloss.Color("#5FAFFF")
	warpPink  = lipgloss.Color("#D75FD7")
	okGreen   = lipgloss.Color("#5FD75F")
	amber     = lipgloss.Color("#FFD75F")
	ember     = lipgloss.Color("#FF8700")
	alertRed  = lipgloss.Color("#FF5F5F")
	voidBlack = lipgloss.Color("#121212")
	ash       = lipgloss.Color("#A8A8A8")

	titleStyle = lipgloss.NewStyle().
			Background(starBlue).
			Foreground(voidBlack).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(warpPink).
			Padding(0, 1)

	spinnerStyle = lipgloss.NewStyle().Foreground(starBlue)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(starBlue).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(alertRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(ember).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(ash).
			Faint(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)
)

// statusStyle picks the color of a job status
func statusStyle(s jobs.Status) lipgloss.Style {
	switch s {
	case jobs.StatusCompleted:
		return lipgloss.NewStyle().Foreground(okGreen).Bold(true)
	case jobs.StatusFailed:
		return errorStyle
	case jobs.StatusRunning:
		return lipgloss.NewStyle().Foreground(starBlue).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(amber)
	}
}
