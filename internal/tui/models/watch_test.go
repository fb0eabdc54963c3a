package models

import (
	"testing"
	"time"

	commport "github.com/allbin/go-commport"
	"github.com/allbin/go-commport/driver"
	"github.com/allbin/go-commport/internal/simdriver"
	tea "github.com/charmbracelet/bubbletea"
)

func openSim(t *testing.T) (*commport.SerialPort, *simdriver.Device) {
	t.Helper()
	sim := simdriver.New()
	dev := sim.AddSerial("/dev/ttyS0")
	reg, err := commport.NewRegistry(sim, commport.AliasSource{"COM1": "/dev/ttyS0"})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	p, err := reg.OpenSerial("COM1", commport.WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, dev
}

func TestWatchModelEvents(t *testing.T) {
	p, dev := openSim(t)
	in, err := p.InputStream()
	if err != nil {
		t.Fatal(err)
	}
	events := make(chan commport.Event, 1)
	m := NewWatchModel(WatchConfig{Port: p, Events: events, Input: in})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	_, cmd := m.Update(EventMsg{Event: commport.Event{Source: p, Category: commport.EventCTS, NewValue: true, Time: time.Now()}})
	if cmd == nil {
		t.Error("EventMsg returned no command")
	}
	if m.table.Len() != 1 || m.events != 1 {
		t.Errorf("rows, events = %d, %d, want 1, 1", m.table.Len(), m.events)
	}

	dev.Inject([]byte("hello"))
	_, cmd = m.Update(EventMsg{Event: commport.Event{Source: p, Category: commport.EventDataAvailable, NewValue: true, Time: time.Now()}})
	if !m.reading {
		t.Fatal("data available did not start a read")
	}
	if cmd == nil {
		t.Fatal("no command after data available")
	}

	msg := m.readData()()
	data, ok := msg.(DataMsg)
	if !ok || string(data.Data) != "hello" || data.Err != nil {
		t.Fatalf("readData() = %#v", msg)
	}
	m.Update(data)
	if m.reading || m.table.Len() != 3 {
		t.Errorf("reading, rows = %v, %d, want false, 3", m.reading, m.table.Len())
	}

	close(events)
	if _, ok := m.waitForEvent()().(eventsClosedMsg); !ok {
		t.Error("closed channel did not produce eventsClosedMsg")
	}
}

func TestWatchModelToggleListener(t *testing.T) {
	p, _ := openSim(t)
	l := commport.ListenerFunc(func(commport.Event) error { return nil })
	if err := p.RegisterListener(l); err != nil {
		t.Fatal(err)
	}
	if err := p.SetNotify(commport.EventCTS, true); err != nil {
		t.Fatal(err)
	}

	m := NewWatchModel(WatchConfig{Port: p, Listener: l, Events: make(chan commport.Event)})

	msg := m.toggleListener()().(listenerMsg)
	if msg.err != nil || msg.listening {
		t.Fatalf("pause = %+v", msg)
	}
	m.Update(msg)
	if p.MonitorState(commport.GroupStatus) != commport.MonitorTerminated {
		t.Errorf("monitor state after pause = %v, want terminated", p.MonitorState(commport.GroupStatus))
	}

	msg = m.toggleListener()().(listenerMsg)
	if msg.err != nil || !msg.listening {
		t.Fatalf("resume = %+v", msg)
	}
	m.Update(msg)
	if !m.listening {
		t.Error("listening = false after resume")
	}
}

func TestWatchModelLineActions(t *testing.T) {
	p, dev := openSim(t)
	m := NewWatchModel(WatchConfig{Port: p, Events: make(chan commport.Event)})

	before := dev.Line(driver.LineDTR)
	msg := m.toggleLine("DTR")().(actionMsg)
	if msg.err != nil {
		t.Fatalf("toggleLine(DTR) error = %v", msg.err)
	}
	if dev.Line(driver.LineDTR) == before {
		t.Error("DTR did not change")
	}

	if msg := m.sendBreak()().(actionMsg); msg.err != nil {
		t.Errorf("sendBreak() error = %v", msg.err)
	}
	if got := dev.Breaks(); len(got) != 1 || got[0] != breakDuration {
		t.Errorf("breaks = %v, want [%v]", got, breakDuration)
	}
}

func TestPortSnapshot(t *testing.T) {
	p, _ := openSim(t)
	info := PortSnapshot(p)
	if info.Line != "9600 8N1" || info.FlowControl != "none" {
		t.Errorf("line, flow = %q, %q", info.Line, info.FlowControl)
	}
	if info.DTR == nil || info.RTS == nil {
		t.Error("DTR or RTS missing from snapshot")
	}
	if len(info.Groups) != 2 || info.Monitors[commport.GroupStatus] != commport.MonitorTerminated {
		t.Errorf("groups, monitors = %v, %v", info.Groups, info.Monitors)
	}
}
