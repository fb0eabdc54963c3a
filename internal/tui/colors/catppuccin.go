package colors

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha color palette
var (
	// Base colors
	Base     = lipgloss.Color("#1e1e2e") // Dark background
	Mantle   = lipgloss.Color("#181825") // Darker background
	Surface0 = lipgloss.Color("#313244") // Surface colors
	Surface1 = lipgloss.Color("#45475a")
	Surface2 = lipgloss.Color("#585b70")
	Overlay0 = lipgloss.Color("#6c7086")
	Subtext0 = lipgloss.Color("#a6adc8") // Text colors
	Subtext1 = lipgloss.Color("#bac2de")
	Text     = lipgloss.Color("#cdd6f4") // Main text

	// Accent colors
	Blue   = lipgloss.Color("#89b4fa")
	Sky    = lipgloss.Color("#89dceb")
	Teal   = lipgloss.Color("#94e2d5")
	Green  = lipgloss.Color("#a6e3a1")
	Yellow = lipgloss.Color("#f9e2af")
	Peach  = lipgloss.Color("#fab387")
	Red    = lipgloss.Color("#f38ba8")
	Mauve  = lipgloss.Color("#cba6f7")
)

// Category colors used for event rows, keyed by the category name.
var eventColors = map[string]lipgloss.Color{
	"CTS":                 Blue,
	"DSR":                 Sky,
	"RI":                  Peach,
	"CD":                  Teal,
	"OE":                  Red,
	"PE":                  Red,
	"FE":                  Red,
	"BI":                  Yellow,
	"DATA_AVAILABLE":      Green,
	"OUTPUT_BUFFER_EMPTY": Subtext1,
	"ERROR":               Red,
}

// ForEvent returns the color for an event category name.
func ForEvent(name string) lipgloss.Color {
	if c, ok := eventColors[name]; ok {
		return c
	}
	return Text
}
