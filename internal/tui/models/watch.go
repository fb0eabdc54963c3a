package models

import (
	"fmt"
	"strings"
	"time"

	commport "github.com/allbin/go-commport"
	"github.com/allbin/go-commport/internal/tui/components"
	"github.com/allbin/go-commport/internal/tui/keys"
	"github.com/allbin/go-commport/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	statusInterval = 500 * time.Millisecond
	breakDuration  = 250 * time.Millisecond
	readChunk      = 4096
)

// EventMsg carries one port event into the model.
type EventMsg struct {
	Event commport.Event
}

// DataMsg carries bytes read after a data available event.
type DataMsg struct {
	Time time.Time
	Data []byte
	Err  error
}

type statusMsg struct {
	info *components.PortInfo
	at   time.Time
}

type listenerMsg struct {
	listening bool
	err       error
}

type actionMsg struct {
	status string
	err    error
}

type eventsClosedMsg struct{}

// WatchConfig wires a watch model to an open port. Listener must be the
// listener that feeds Events; the model unregisters and re-registers it
// to pause and resume delivery.
type WatchConfig struct {
	Port     commport.Port
	Listener commport.Listener
	Events   <-chan commport.Event
	// Input is read whenever a DATA_AVAILABLE event arrives. Nil disables
	// data rows.
	Input *commport.InputStream
}

// WatchModel shows the event stream of one port in a table.
type WatchModel struct {
	cfg WatchConfig

	table     *components.EventTable
	statusBar *components.StatusBar
	keys      keys.WatchKeys
	help      help.Model

	width, height int
	listening     bool
	reading       bool
	events        int
	now           time.Time
}

func NewWatchModel(cfg WatchConfig) *WatchModel {
	return &WatchModel{
		cfg:       cfg,
		table:     components.NewEventTable(80, 20),
		statusBar: components.NewStatusBar(cfg.Port.Name(), cfg.Port.Kind()),
		keys:      keys.NewWatchKeys(),
		help:      help.New(),
		listening: true,
		now:       time.Now(),
	}
}

func (m *WatchModel) Init() tea.Cmd {
	m.statusBar.SetStatus("Listening", nil)
	return tea.Batch(m.waitForEvent(), collectStatus(m.cfg.Port, 0))
}

// waitForEvent blocks on the event channel off the update loop.
func (m *WatchModel) waitForEvent() tea.Cmd {
	events := m.cfg.Events
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg{Event: e}
	}
}

func (m *WatchModel) readData() tea.Cmd {
	in := m.cfg.Input
	return func() tea.Msg {
		buf := make([]byte, readChunk)
		n, err := in.Read(buf)
		return DataMsg{Time: time.Now(), Data: buf[:n], Err: err}
	}
}

// collectStatus snapshots the port after delay. The port methods it calls
// take the dispatch lock, so it never runs on the update loop.
func collectStatus(port commport.Port, delay time.Duration) tea.Cmd {
	snapshot := func(t time.Time) tea.Msg {
		return statusMsg{info: PortSnapshot(port), at: t}
	}
	if delay <= 0 {
		return func() tea.Msg { return snapshot(time.Now()) }
	}
	return tea.Tick(delay, snapshot)
}

// PortSnapshot reads the status bar fields of port.
func PortSnapshot(port commport.Port) *components.PortInfo {
	info := &components.PortInfo{Monitors: make(map[commport.Group]commport.MonitorState)}
	switch p := port.(type) {
	case *commport.SerialPort:
		info.Line = p.LineParams().String()
		info.FlowControl = p.FlowControl().String()
		if v, err := p.DTR(); err == nil {
			info.DTR = &v
		}
		if v, err := p.RTS(); err == nil {
			info.RTS = &v
		}
		info.Groups = []commport.Group{commport.GroupStatus, commport.GroupData}
	case *commport.ParallelPort:
		info.Line = p.Mode().String()
		if st, err := p.PrinterStatus(); err == nil {
			var flags []string
			if st.PaperOut {
				flags = append(flags, "paper-out")
			}
			if st.Busy {
				flags = append(flags, "busy")
			}
			if !st.Selected {
				flags = append(flags, "offline")
			}
			if st.Fault {
				flags = append(flags, "fault")
			}
			if len(flags) > 0 {
				info.Line += " " + strings.Join(flags, ",")
			}
		}
		info.Groups = []commport.Group{commport.GroupError}
	}
	for _, g := range info.Groups {
		info.Monitors[g] = port.MonitorState(g)
	}
	return info
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.statusBar.SetWidth(msg.Width)
		m.table.SetSize(msg.Width, m.tableHeight())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		e := msg.Event
		m.events++
		m.table.Add(components.EventRow{
			Time:     e.Time,
			Name:     e.Category.String(),
			Line:     e.Line.String(),
			OldValue: e.OldValue,
			NewValue: e.NewValue,
		})
		cmds := []tea.Cmd{m.waitForEvent()}
		if e.Category == commport.EventDataAvailable && e.NewValue && m.cfg.Input != nil && !m.reading {
			m.reading = true
			cmds = append(cmds, m.readData())
		}
		return m, tea.Batch(cmds...)

	case DataMsg:
		m.reading = false
		if msg.Err != nil {
			m.statusBar.SetStatus("Read failed", msg.Err)
			return m, nil
		}
		if len(msg.Data) == 0 {
			return m, nil
		}
		m.table.Add(components.EventRow{Time: msg.Time, Name: "RX", Data: msg.Data})
		if len(msg.Data) == readChunk {
			m.reading = true
			return m, m.readData()
		}
		return m, nil

	case statusMsg:
		m.now = msg.at
		m.statusBar.SetPortInfo(msg.info)
		return m, collectStatus(m.cfg.Port, statusInterval)

	case listenerMsg:
		if msg.err != nil {
			m.statusBar.SetStatus("Listener", msg.err)
			return m, nil
		}
		m.listening = msg.listening
		m.statusBar.SetStatus("Listening", nil)
		return m, nil

	case actionMsg:
		m.statusBar.SetStatus(msg.status, msg.err)
		return m, nil

	case eventsClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.table.SetSize(m.width, m.tableHeight())
		return m, nil
	case key.Matches(msg, m.keys.Clear):
		m.table.Clear()
		m.events = 0
		return m, nil
	case key.Matches(msg, m.keys.ToggleHex):
		m.table.ToggleHex()
		return m, nil
	case key.Matches(msg, m.keys.ToggleASCII):
		m.table.ToggleASCII()
		return m, nil
	case key.Matches(msg, m.keys.Pause):
		return m, m.toggleListener()
	case key.Matches(msg, m.keys.VisualMode):
		m.table.SetViewMode(components.ViewModeVisual)
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.table.SetViewMode(components.ViewModeFollow)
		return m, nil
	case key.Matches(msg, m.keys.ToggleDTR):
		return m, m.toggleLine("DTR")
	case key.Matches(msg, m.keys.ToggleRTS):
		return m, m.toggleLine("RTS")
	case key.Matches(msg, m.keys.Break):
		return m, m.sendBreak()
	}

	_, cmd := m.table.Update(msg)
	return m, cmd
}

// toggleListener pauses or resumes delivery. UnregisterListener waits for
// the monitors, which may be blocked handing an event to waitForEvent, so
// it runs as a command.
func (m *WatchModel) toggleListener() tea.Cmd {
	port, l, listening := m.cfg.Port, m.cfg.Listener, m.listening
	return func() tea.Msg {
		if listening {
			port.UnregisterListener()
			return listenerMsg{listening: false}
		}
		if err := port.RegisterListener(l); err != nil {
			return listenerMsg{listening: false, err: err}
		}
		return listenerMsg{listening: true}
	}
}

func (m *WatchModel) toggleLine(name string) tea.Cmd {
	sp, ok := m.cfg.Port.(*commport.SerialPort)
	if !ok {
		return func() tea.Msg {
			return actionMsg{status: name, err: fmt.Errorf("%s is only available on serial ports", name)}
		}
	}
	get, set := sp.DTR, sp.SetDTR
	if name == "RTS" {
		get, set = sp.RTS, sp.SetRTS
	}
	return func() tea.Msg {
		v, err := get()
		if err != nil {
			return actionMsg{status: name, err: err}
		}
		if err := set(!v); err != nil {
			return actionMsg{status: name, err: err}
		}
		state := "LOW"
		if !v {
			state = "HIGH"
		}
		return actionMsg{status: fmt.Sprintf("%s set %s", name, state)}
	}
}

func (m *WatchModel) sendBreak() tea.Cmd {
	sp, ok := m.cfg.Port.(*commport.SerialPort)
	if !ok {
		return func() tea.Msg {
			return actionMsg{status: "Break", err: fmt.Errorf("break is only available on serial ports")}
		}
	}
	return func() tea.Msg {
		if err := sp.SendBreak(breakDuration); err != nil {
			return actionMsg{status: "Break", err: err}
		}
		return actionMsg{status: "Break sent"}
	}
}

func (m *WatchModel) tableHeight() int {
	// header, border, status bar and help
	h := m.height - 4 - lipgloss.Height(m.help.View(m.keys))
	if h < 5 {
		h = 5
	}
	return h
}

func (m *WatchModel) View() string {
	status, err := m.statusBar.Status()
	var notice string
	if err != nil {
		notice = styles.ErrorStyle.Render(fmt.Sprintf("%s: %v", status, err))
	}

	body := styles.ContentBorderStyle.Render(m.table.View())
	bar := m.statusBar.Render(m.table.GetViewModeString(), m.listening, m.events, m.now.Format("15:04:05"))

	parts := []string{m.statusBar.Header(), body}
	if notice != "" {
		parts = append(parts, notice)
	}
	parts = append(parts, bar, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
