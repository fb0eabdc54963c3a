package components

import (
	"fmt"
	"strings"

	commport "github.com/allbin/go-commport"
	"github.com/allbin/go-commport/internal/tui/colors"
	"github.com/allbin/go-commport/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// PortInfo is the snapshot of an open port shown in the status bar.
// Fields that do not apply to the port kind are left empty.
type PortInfo struct {
	Line        string
	FlowControl string
	DTR, RTS    *bool
	Monitors    map[commport.Group]commport.MonitorState
	Groups      []commport.Group
}

type StatusBar struct {
	portName string
	kind     commport.PortKind
	status   string
	err      error
	width    int
	info     *PortInfo
}

func NewStatusBar(portName string, kind commport.PortKind) *StatusBar {
	return &StatusBar{
		portName: portName,
		kind:     kind,
		status:   "Initializing...",
	}
}

func (sb *StatusBar) SetStatus(status string, err error) {
	sb.status = status
	sb.err = err
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetPortInfo(info *PortInfo) {
	sb.info = info
}

func (sb *StatusBar) Status() (string, error) {
	return sb.status, sb.err
}

// monitorSummary renders one indicator per monitor group.
func (sb *StatusBar) monitorSummary() string {
	if sb.info == nil {
		return ""
	}
	var parts []string
	for _, g := range sb.info.Groups {
		st := sb.info.Monitors[g]
		mark := "○"
		if st == commport.MonitorRunning {
			mark = "●"
		}
		parts = append(parts, styles.MonitorStateStyle(st).Render(mark+" "+g.String()))
	}
	return strings.Join(parts, " ")
}

func (sb *StatusBar) lineSummary() string {
	if sb.info == nil {
		return "⚡ " + strings.ToLower(sb.kind.String())
	}
	var parts []string
	if sb.info.Line != "" {
		parts = append(parts, sb.info.Line)
	}
	if sb.info.FlowControl != "" {
		parts = append(parts, "flow "+sb.info.FlowControl)
	}
	if sb.info.DTR != nil {
		parts = append(parts, "DTR:"+checkMark(*sb.info.DTR))
	}
	if sb.info.RTS != nil {
		parts = append(parts, "RTS:"+checkMark(*sb.info.RTS))
	}
	if len(parts) == 0 {
		return "⚡ " + strings.ToLower(sb.kind.String())
	}
	return "⚡ " + strings.Join(parts, " ")
}

func checkMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}

// Render draws the full width status bar.
func (sb *StatusBar) Render(viewMode string, listening bool, events int, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	// Section 1: Mode indicator
	modeBg := colors.Blue
	if viewMode == "VISUAL" {
		modeBg = colors.Mauve
	}
	mode := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(modeBg).
		Bold(true).
		Padding(0, 1).
		Render(viewMode)

	// Section 2: Port name
	port := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.portName)

	// Section 3: Listener indicator
	var listener string
	switch {
	case sb.err != nil:
		listener = lipgloss.NewStyle().Foreground(colors.Red).Render("✗ " + sb.status)
	case listening:
		listener = lipgloss.NewStyle().Foreground(colors.Green).Render("● live")
	default:
		listener = lipgloss.NewStyle().Foreground(colors.Yellow).Render("⏸ paused")
	}

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	monitors := sb.monitorSummary()
	leftParts := []string{mode, port, listener, divider}
	if monitors != "" {
		leftParts = append(leftParts, monitors, divider)
	}
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, leftParts...)

	details := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render(sb.lineSummary())
	count := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(fmt.Sprintf("%d events", events))
	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, count, divider, clock)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	statusBarStyle := lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth)

	content := lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide)
	return statusBarStyle.Render(content)
}

// Header renders the title line above the table.
func (sb *StatusBar) Header() string {
	title := styles.TitleStyle.Render(sb.portName)
	summary := lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Faint(true).
		Render(" | " + strings.TrimPrefix(sb.lineSummary(), "⚡ "))
	return lipgloss.JoinHorizontal(lipgloss.Left, title, summary)
}
