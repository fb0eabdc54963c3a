package styles

import (
	commport "github.com/allbin/go-commport"
	"github.com/allbin/go-commport/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	// Monitor state styles
	MonitorRunningStyle = lipgloss.NewStyle().
				Foreground(colors.Green).
				Bold(true)

	MonitorPendingStyle = lipgloss.NewStyle().
				Foreground(colors.Yellow).
				Bold(true)

	MonitorStoppedStyle = lipgloss.NewStyle().
				Foreground(colors.Overlay0)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	// Error styles
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red).
			Align(lipgloss.Center)

	// Info styles
	InfoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Align(lipgloss.Center)
)

// MonitorStateStyle picks the style for a monitor state indicator.
func MonitorStateStyle(s commport.MonitorState) lipgloss.Style {
	switch s {
	case commport.MonitorRunning:
		return MonitorRunningStyle
	case commport.MonitorCreated, commport.MonitorStopRequested:
		return MonitorPendingStyle
	default:
		return MonitorStoppedStyle
	}
}

// EventStyle colors an event name by category.
func EventStyle(name string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colors.ForEvent(name)).Bold(true)
}
