package components

import (
	"fmt"

	"github.com/allbin/go-commport/internal/tui/colors"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type ViewMode int

const (
	ViewModeFollow ViewMode = iota
	ViewModeVisual
)

// MaxRows bounds the rows kept by an EventTable; the oldest are dropped.
const MaxRows = 2000

type EventTable struct {
	table     table.Model
	formatter *DataFormatter
	viewMode  ViewMode
	rows      []EventRow
}

func NewEventTable(width, height int) *EventTable {
	if width < 80 {
		width = 80
	}
	if height < 5 {
		height = 5
	}

	t := table.New(
		table.WithFocused(false),
		table.WithHeight(height),
		table.WithWidth(width),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colors.Subtext0).
		BorderBottom(true).
		Bold(true).
		Foreground(colors.Text)
	s.Selected = s.Selected.
		Foreground(colors.Text).
		Background(colors.Surface1).
		Bold(false)
	t.SetStyles(s)

	et := &EventTable{
		table:     t,
		formatter: NewDataFormatter(true, true),
		viewMode:  ViewModeFollow,
	}
	et.updateColumns(width)
	return et
}

func (et *EventTable) SetSize(width, height int) {
	et.updateColumns(width)
	et.table.SetHeight(height)
	et.table.SetWidth(width)
	et.table.UpdateViewport()
}

func (et *EventTable) updateColumns(width int) {
	mode := et.formatter.GetDisplayMode()
	if width < 80 {
		width = 80
	}

	timeWidth := 14
	eventWidth := 24
	changeWidth := 13
	bytesWidth := 6

	remaining := width - timeWidth - eventWidth - changeWidth - bytesWidth - 12
	if remaining < 20 {
		remaining = 20
	}

	columns := []table.Column{
		{Title: "Time", Width: timeWidth},
		{Title: "Event", Width: eventWidth},
		{Title: "Change", Width: changeWidth},
	}
	switch {
	case mode.ShowHex && mode.ShowASCII:
		hexWidth := remaining * 7 / 10
		columns = append(columns,
			table.Column{Title: "Hex", Width: hexWidth},
			table.Column{Title: "ASCII", Width: remaining - hexWidth})
	case mode.ShowHex:
		columns = append(columns, table.Column{Title: "Hex", Width: remaining})
	case mode.ShowASCII:
		columns = append(columns, table.Column{Title: "ASCII", Width: remaining})
	default:
		columns = append(columns, table.Column{Title: "Data", Width: remaining})
	}
	columns = append(columns, table.Column{Title: "Bytes", Width: bytesWidth})

	// Rows must match the column count before the columns change.
	et.table.SetRows(nil)
	et.table.SetColumns(columns)
	et.refresh()
}

// Add appends a row, dropping the oldest beyond MaxRows.
func (et *EventTable) Add(r EventRow) {
	et.rows = append(et.rows, r)
	if len(et.rows) > MaxRows {
		et.rows = et.rows[len(et.rows)-MaxRows:]
	}
	et.refresh()
	if et.viewMode == ViewModeFollow {
		et.table.GotoBottom()
	}
}

// Len returns the number of rows held.
func (et *EventTable) Len() int { return len(et.rows) }

func (et *EventTable) refresh() {
	rows := make([]table.Row, len(et.rows))
	for i, r := range et.rows {
		rows[i] = et.formatRow(r)
	}
	et.table.SetRows(rows)
	et.table.UpdateViewport()
}

func (et *EventTable) formatRow(r EventRow) table.Row {
	row := table.Row{r.Time.Format("15:04:05.000"), Label(r), Change(r)}

	mode := et.formatter.GetDisplayMode()
	bytes := ""
	if r.IsData() {
		bytes = fmt.Sprintf("%d", len(r.Data))
	}
	switch {
	case mode.ShowHex && mode.ShowASCII:
		row = append(row, Hex(r.Data), ASCII(r.Data))
	case mode.ShowHex:
		row = append(row, Hex(r.Data))
	case mode.ShowASCII:
		row = append(row, ASCII(r.Data))
	default:
		data := ""
		if r.IsData() {
			data = fmt.Sprintf("%d bytes received", len(r.Data))
		}
		row = append(row, data)
	}
	return append(row, bytes)
}

func (et *EventTable) Clear() {
	et.rows = nil
	et.table.SetRows([]table.Row{})
}

func (et *EventTable) ToggleHex() {
	et.formatter.ToggleHex()
	et.updateColumns(et.table.Width())
}

func (et *EventTable) ToggleASCII() {
	et.formatter.ToggleASCII()
	et.updateColumns(et.table.Width())
}

func (et *EventTable) GetDisplayMode() DisplayMode {
	return et.formatter.GetDisplayMode()
}

func (et *EventTable) GetViewMode() ViewMode {
	return et.viewMode
}

func (et *EventTable) SetViewMode(mode ViewMode) {
	et.viewMode = mode
	if mode == ViewModeFollow {
		if len(et.rows) > 0 {
			et.table.SetCursor(len(et.rows) - 1)
		}
		et.table.GotoBottom()
		et.table.Blur()
	} else {
		et.table.Focus()
	}
	et.table.UpdateViewport()
}

func (et *EventTable) Init() tea.Cmd {
	return nil
}

func (et *EventTable) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// Only allow table navigation in visual mode
	if et.viewMode == ViewModeVisual {
		et.table, cmd = et.table.Update(msg)
	}
	return et, cmd
}

func (et *EventTable) View() string {
	return et.table.View()
}

func (et *EventTable) GetViewModeString() string {
	if et.viewMode == ViewModeVisual {
		return "VISUAL"
	}
	return "FOLLOW"
}
