package commport

import (
	"errors"
	"testing"
	"time"

	"github.com/allbin/go-commport/driver"
	"go.uber.org/atomic"
)

func TestCTSEvent(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/ttyS0")

	sp, err := reg.OpenSerial("COM1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()

	rec := newRecorder()
	if err := sp.RegisterListener(rec); err != nil {
		t.Fatalf("RegisterListener() error = %v", err)
	}
	if err := sp.SetNotify(EventCTS, true); err != nil {
		t.Fatalf("SetNotify(CTS) error = %v", err)
	}

	dev.SetLine(driver.LineCTS, true)
	e := rec.next(t)
	if e.Category != EventCTS || e.OldValue || !e.NewValue {
		t.Errorf("event = %v, want CTS false->true", e)
	}
	if e.Source != Port(sp) {
		t.Errorf("event source = %v, want %v", e.Source, sp)
	}
	if e.Time.IsZero() {
		t.Error("event time is zero")
	}
	rec.none(t, 100*time.Millisecond)

	// DSR is not enabled, so its transition is dropped.
	dev.SetLine(driver.LineDSR, true)
	rec.none(t, 100*time.Millisecond)

	dev.SetLine(driver.LineCTS, false)
	e = rec.next(t)
	if e.Category != EventCTS || !e.OldValue || e.NewValue {
		t.Errorf("event = %v, want CTS true->false", e)
	}
}

func TestSharedStatusMonitor(t *testing.T) {
	reg, _ := newTestRegistry(t)
	sp, err := reg.OpenSerial("COM1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()

	if err := sp.RegisterListener(newRecorder()); err != nil {
		t.Fatalf("RegisterListener() error = %v", err)
	}
	if err := sp.SetNotify(EventCTS, true); err != nil {
		t.Fatalf("SetNotify(CTS) error = %v", err)
	}
	if err := sp.SetNotify(EventDSR, true); err != nil {
		t.Fatalf("SetNotify(DSR) error = %v", err)
	}
	if got := sp.monitorStarts(); got != 1 {
		t.Errorf("monitorStarts() = %d, want 1", got)
	}
	if got := sp.MonitorState(GroupStatus); got != MonitorRunning {
		t.Errorf("MonitorState(status) = %v, want running", got)
	}

	if err := sp.SetNotify(EventCTS, false); err != nil {
		t.Fatalf("SetNotify(CTS, false) error = %v", err)
	}
	if got := sp.MonitorState(GroupStatus); got != MonitorRunning {
		t.Errorf("MonitorState(status) with DSR enabled = %v, want running", got)
	}
	if sp.NotifyEnabled(EventCTS) || !sp.NotifyEnabled(EventDSR) {
		t.Error("NotifyEnabled() does not reflect SetNotify")
	}

	if err := sp.SetNotify(EventDSR, false); err != nil {
		t.Fatalf("SetNotify(DSR, false) error = %v", err)
	}
	if got := sp.MonitorState(GroupStatus); got != MonitorTerminated {
		t.Errorf("MonitorState(status) after disabling all = %v, want terminated", got)
	}

	if err := sp.SetNotify(EventDataAvailable, true); err != nil {
		t.Fatalf("SetNotify(DATA_AVAILABLE) error = %v", err)
	}
	if got := sp.monitorStarts(); got != 2 {
		t.Errorf("monitorStarts() = %d, want 2", got)
	}
	if got := sp.MonitorState(GroupStatus); got != MonitorTerminated {
		t.Errorf("data notify started status monitor: %v", got)
	}
}

func TestSingleListener(t *testing.T) {
	reg, _ := newTestRegistry(t)
	sp, err := reg.OpenSerial("COM1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()

	if err := sp.RegisterListener(nil); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("RegisterListener(nil) error = %v, want ErrUnsupportedOperation", err)
	}
	if err := sp.RegisterListener(newRecorder()); err != nil {
		t.Fatalf("RegisterListener() error = %v", err)
	}
	if err := sp.RegisterListener(newRecorder()); !errors.Is(err, ErrTooManyListeners) {
		t.Errorf("second RegisterListener() error = %v, want ErrTooManyListeners", err)
	}
	sp.UnregisterListener()
	if err := sp.RegisterListener(newRecorder()); err != nil {
		t.Errorf("RegisterListener() after Unregister error = %v", err)
	}
}

func TestRejectedListenerLeavesFirst(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/ttyS0")

	sp, err := reg.OpenSerial("COM1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()

	first, second := newRecorder(), newRecorder()
	if err := sp.RegisterListener(first); err != nil {
		t.Fatalf("RegisterListener() error = %v", err)
	}
	if err := sp.SetNotify(EventCTS, true); err != nil {
		t.Fatalf("SetNotify(CTS) error = %v", err)
	}
	if err := sp.RegisterListener(second); !errors.Is(err, ErrTooManyListeners) {
		t.Fatalf("second RegisterListener() error = %v, want ErrTooManyListeners", err)
	}

	dev.SetLine(driver.LineCTS, true)
	e := first.next(t)
	if e.Category != EventCTS || e.OldValue || !e.NewValue {
		t.Errorf("event = %v, want CTS false->true", e)
	}
	first.none(t, 100*time.Millisecond)
	if n := second.count(); n != 0 {
		t.Errorf("rejected listener got %d events, want 0", n)
	}
}

func TestUnregisterStopsAndResumes(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/ttyS0")

	sp, err := reg.OpenSerial("COM1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()

	rec := newRecorder()
	sp.RegisterListener(rec)
	if err := sp.SetNotify(EventRingIndicator, true); err != nil {
		t.Fatalf("SetNotify(RI) error = %v", err)
	}

	sp.UnregisterListener()
	if got := sp.MonitorState(GroupStatus); got != MonitorTerminated {
		t.Errorf("MonitorState(status) after Unregister = %v, want terminated", got)
	}
	dev.SetLine(driver.LineRI, true)
	rec.none(t, 100*time.Millisecond)

	rec2 := newRecorder()
	if err := sp.RegisterListener(rec2); err != nil {
		t.Fatalf("RegisterListener() error = %v", err)
	}
	if got := sp.MonitorState(GroupStatus); got != MonitorRunning {
		t.Errorf("MonitorState(status) after re-register = %v, want running", got)
	}
	dev.SetLine(driver.LineRI, false)
	if e := rec2.next(t); e.Category != EventRingIndicator || e.NewValue {
		t.Errorf("event = %v, want RI true->false", e)
	}
}

func TestSetNotifyUnsupported(t *testing.T) {
	reg, sim := newTestRegistry(t)

	sp, err := reg.OpenSerial("COM1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()
	if err := sp.SetNotify(EventError, true); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("SetNotify(ERROR) on serial error = %v, want ErrUnsupportedOperation", err)
	}
	if err := sp.SetNotify(Category(99), true); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("SetNotify(99) error = %v, want ErrUnsupportedOperation", err)
	}

	sim.Device("/dev/ttyS1").DisableDataPoll(true)
	sp2, err := reg.OpenSerial("COM2", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial(COM2) error = %v", err)
	}
	defer sp2.Close()
	if err := sp2.SetNotify(EventDataAvailable, true); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("SetNotify(DATA_AVAILABLE) without driver support error = %v, want ErrUnsupportedOperation", err)
	}
	if sp2.NotifyEnabled(EventDataAvailable) {
		t.Error("failed SetNotify left category enabled")
	}

	pp, err := reg.OpenParallel("LPT1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenParallel() error = %v", err)
	}
	defer pp.Close()
	if err := pp.SetNotify(EventCTS, true); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("SetNotify(CTS) on parallel error = %v, want ErrUnsupportedOperation", err)
	}
}

func TestErrorCounterEvents(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/ttyS0")

	sp, err := reg.OpenSerial("COM1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()

	rec := newRecorder()
	sp.RegisterListener(rec)
	for _, c := range []Category{EventOverrunError, EventParityError, EventFramingError, EventBreakInterrupt} {
		if err := sp.SetNotify(c, true); err != nil {
			t.Fatalf("SetNotify(%v) error = %v", c, err)
		}
	}

	tests := []struct {
		inject func()
		want   Category
	}{
		{dev.AddOverrun, EventOverrunError},
		{dev.AddParityError, EventParityError},
		{dev.AddFramingError, EventFramingError},
		{dev.AddBreak, EventBreakInterrupt},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			tt.inject()
			e := rec.next(t)
			if e.Category != tt.want || e.OldValue || !e.NewValue {
				t.Errorf("event = %v, want %v false->true", e, tt.want)
			}
		})
	}
}

func TestOutputBufferEmptyEvent(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/ttyS0")
	dev.SetOutputEmpty(false)

	sp, err := reg.OpenSerial("COM1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()

	rec := newRecorder()
	sp.RegisterListener(rec)
	sp.SetNotify(EventOutputBufferEmpty, true)

	dev.SetOutputEmpty(true)
	if e := rec.next(t); e.Category != EventOutputBufferEmpty {
		t.Errorf("event = %v, want OUTPUT_BUFFER_EMPTY", e)
	}
	dev.SetOutputEmpty(false)
	rec.none(t, 100*time.Millisecond)
}

func TestDataAvailableEvent(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/ttyS0")

	sp, err := reg.OpenSerial("COM1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()

	rec := newRecorder()
	sp.RegisterListener(rec)
	if err := sp.SetNotify(EventDataAvailable, true); err != nil {
		t.Fatalf("SetNotify(DATA_AVAILABLE) error = %v", err)
	}

	dev.Inject([]byte("hello"))
	if e := rec.next(t); e.Category != EventDataAvailable || !e.NewValue {
		t.Errorf("event = %v, want DATA_AVAILABLE", e)
	}

	// More input before draining does not fire again.
	dev.Inject([]byte(" world"))
	rec.none(t, 100*time.Millisecond)

	in, err := sp.InputStream()
	if err != nil {
		t.Fatalf("InputStream() error = %v", err)
	}
	buf := make([]byte, 64)
	if n, _ := in.Read(buf); string(buf[:n]) != "hello world" {
		t.Errorf("Read() = %q, want %q", buf[:n], "hello world")
	}

	// Give the watcher a poll to observe the empty buffer and re-arm.
	time.Sleep(50 * time.Millisecond)
	dev.Inject([]byte("again"))
	if e := rec.next(t); e.Category != EventDataAvailable {
		t.Errorf("event = %v, want DATA_AVAILABLE", e)
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/ttyS0")

	sp, err := reg.OpenSerial("COM1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}

	rec := newRecorder()
	sp.RegisterListener(rec)
	sp.SetNotify(EventCTS, true)
	sp.SetNotify(EventDataAvailable, true)

	start := time.Now()
	if err := sp.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Close() took %v, want under the stop timeout", elapsed)
	}
	for _, g := range []Group{GroupStatus, GroupData} {
		if got := sp.MonitorState(g); got != MonitorTerminated {
			t.Errorf("MonitorState(%v) after Close = %v, want terminated", g, got)
		}
	}

	dev.SetLine(driver.LineCTS, true)
	dev.Inject([]byte("late"))
	rec.none(t, 100*time.Millisecond)

	if err := sp.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if _, closes, _ := dev.Counts(); closes != 1 {
		t.Errorf("driver closes = %d, want 1", closes)
	}
	if err := sp.SetNotify(EventCTS, true); !errors.Is(err, ErrPortClosed) {
		t.Errorf("SetNotify() after Close error = %v, want ErrPortClosed", err)
	}
	if err := sp.RegisterListener(newRecorder()); !errors.Is(err, ErrPortClosed) {
		t.Errorf("RegisterListener() after Close error = %v, want ErrPortClosed", err)
	}
}

func TestCloseAbandonsStuckMonitor(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/ttyS0")

	sp, err := reg.OpenSerial("COM1",
		WithPollInterval(10*time.Millisecond),
		WithStopTimeout(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}

	rec := newRecorder()
	sp.RegisterListener(rec)
	sp.SetNotify(EventCTS, true)
	dev.StallPolls(true)

	done := make(chan error, 1)
	go func() { done <- sp.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Close() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() blocked on a stuck monitor")
	}

	dev.StallPolls(false)
	dev.SetLine(driver.LineCTS, true)
	rec.none(t, 100*time.Millisecond)
	if e, _ := reg.Reserve("COM1"); e.IsOpen() {
		t.Error("entry still open after Close")
	}
}

func TestListenerFaults(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/ttyS0")
	fs := newFaults()

	sp, err := reg.OpenSerial("COM1", fastOptions(WithFaultHandler(fs.handler()))...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()

	listenerErr := errors.New("listener failed")
	calls := make(chan Event, 16)
	sp.RegisterListener(ListenerFunc(func(e Event) error {
		calls <- e
		switch e.Category {
		case EventCTS:
			return listenerErr
		case EventDSR:
			panic("listener panic")
		}
		return nil
	}))
	sp.SetNotify(EventCTS, true)
	sp.SetNotify(EventDSR, true)
	sp.SetNotify(EventCarrierDetect, true)

	dev.SetLine(driver.LineCTS, true)
	<-calls
	f := fs.next(t)
	if f.Category != EventCTS || f.Group != GroupStatus || !errors.Is(f, listenerErr) {
		t.Errorf("fault = %v, want CTS listener error", f)
	}

	dev.SetLine(driver.LineDSR, true)
	<-calls
	f = fs.next(t)
	if f.Category != EventDSR || f.Err == nil {
		t.Errorf("fault = %v, want DSR panic", f)
	}

	// The monitor keeps running after both faults.
	dev.SetLine(driver.LineCD, true)
	select {
	case e := <-calls:
		if e.Category != EventCarrierDetect {
			t.Errorf("event = %v, want CD", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor stopped after listener faults")
	}
}

func TestPollErrorFault(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/ttyS0")
	fs := newFaults()

	sp, err := reg.OpenSerial("COM1", fastOptions(WithFaultHandler(fs.handler()))...)
	if err != nil {
		t.Fatalf("OpenSerial() error = %v", err)
	}
	defer sp.Close()

	rec := newRecorder()
	sp.RegisterListener(rec)
	sp.SetNotify(EventCTS, true)

	cause := errors.New("line disconnected")
	dev.FailPolls(cause)
	f := fs.next(t)
	if f.Category != 0 || !errors.Is(f, ErrIO) || !errors.Is(f, cause) {
		t.Errorf("fault = %v, want ErrIO poll fault", f)
	}

	dev.FailPolls(nil)
	dev.SetLine(driver.LineCTS, true)
	if e := rec.next(t); e.Category != EventCTS {
		t.Errorf("event = %v, want CTS after poll recovery", e)
	}
}

func TestParallelErrorEvents(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/lp0")

	pp, err := reg.OpenParallel("LPT1", fastOptions()...)
	if err != nil {
		t.Fatalf("OpenParallel() error = %v", err)
	}
	defer pp.Close()

	rec := newRecorder()
	pp.RegisterListener(rec)
	if err := pp.SetNotify(EventError, true); err != nil {
		t.Fatalf("SetNotify(ERROR) error = %v", err)
	}
	if got := pp.MonitorState(GroupError); got != MonitorRunning {
		t.Errorf("MonitorState(error) = %v, want running", got)
	}

	dev.SetPrinterStatus(driver.PrinterStatus{PaperOut: true, Selected: true, OutputEmpty: true})
	e := rec.next(t)
	if e.Category != EventError || e.Line != LinePaperOut || !e.NewValue {
		t.Errorf("event = %v, want ERROR/paper-out false->true", e)
	}
}

func TestMonitorStateString(t *testing.T) {
	tests := map[MonitorState]string{
		MonitorCreated:       "created",
		MonitorRunning:       "running",
		MonitorStopRequested: "stop-requested",
		MonitorTerminated:    "terminated",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("MonitorState(%d).String() = %q, want %q", int32(s), got, want)
		}
	}
}

func TestMonitorRequestStop(t *testing.T) {
	m := newMonitor(GroupStatus, nil, time.Millisecond)
	if m.State() != MonitorCreated {
		t.Errorf("State() = %v, want created", m.State())
	}
	m.state.Store(int32(MonitorRunning))
	m.requestStop()
	m.requestStop()
	if m.State() != MonitorStopRequested {
		t.Errorf("State() = %v, want stop-requested", m.State())
	}
	if !m.stopRequested() {
		t.Error("stopRequested() = false after requestStop")
	}
	if exited, _ := m.wait(10 * time.Millisecond); exited {
		t.Error("wait() = true for a goroutine that never ran")
	}
}

// idleWatcher never reports a change.
type idleWatcher struct{ polls *atomic.Int64 }

func (w idleWatcher) poll(stop <-chan struct{}, timeout time.Duration) ([]change, error) {
	w.polls.Inc()
	select {
	case <-stop:
	case <-time.After(timeout):
	}
	return nil, nil
}

func TestMonitorRunAndWait(t *testing.T) {
	w := idleWatcher{polls: atomic.NewInt64(0)}
	m := newMonitor(GroupStatus, w, 5*time.Millisecond)
	m.start(nil)
	if m.State() != MonitorRunning {
		t.Errorf("State() = %v, want running", m.State())
	}
	time.Sleep(20 * time.Millisecond)
	m.requestStop()

	exited, err := m.wait(time.Second)
	if !exited || err != nil {
		t.Fatalf("wait() = %v, %v, want true, nil", exited, err)
	}
	if m.State() != MonitorTerminated {
		t.Errorf("State() = %v, want terminated", m.State())
	}
	if w.polls.Load() == 0 {
		t.Error("watcher was never polled")
	}
}
