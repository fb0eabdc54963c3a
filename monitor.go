package commport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allbin/go-commport/driver"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/atomic"
)

// MonitorState is the lifecycle of a monitor goroutine.
type MonitorState int32

const (
	MonitorCreated MonitorState = iota
	MonitorRunning
	MonitorStopRequested
	MonitorTerminated
)

func (s MonitorState) String() string {
	switch s {
	case MonitorCreated:
		return "created"
	case MonitorRunning:
		return "running"
	case MonitorStopRequested:
		return "stop-requested"
	case MonitorTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("MonitorState(%d)", int32(s))
	}
}

// change is one observed transition.
type change struct {
	category Category
	old, new bool
	line     ErrorLine
}

// watcher turns a driver polling primitive into transitions. poll must
// return within roughly timeout, or sooner when stop is closed.
type watcher interface {
	poll(stop <-chan struct{}, timeout time.Duration) ([]change, error)
}

// newWatcher takes the baseline snapshot for group g synchronously, so
// transitions after it returns are never missed.
func newWatcher(g Group, sess driver.Session) (watcher, error) {
	switch g {
	case GroupStatus:
		ss, ok := sess.(driver.SerialSession)
		if !ok {
			return nil, driver.ErrNotSupported
		}
		st, err := ss.Status()
		if err != nil {
			return nil, err
		}
		return &statusWatcher{sess: ss, prev: st}, nil
	case GroupData:
		ss, ok := sess.(driver.SerialSession)
		if !ok {
			return nil, driver.ErrNotSupported
		}
		if _, err := ss.PollDataAvailable(0); err != nil {
			return nil, err
		}
		return &dataWatcher{sess: ss, armed: true}, nil
	case GroupError:
		ps, ok := sess.(driver.ParallelSession)
		if !ok {
			return nil, driver.ErrNotSupported
		}
		st, err := ps.PrinterStatus()
		if err != nil {
			return nil, err
		}
		return &errorWatcher{sess: ps, prev: st}, nil
	}
	return nil, driver.ErrNotSupported
}

type statusWatcher struct {
	sess driver.SerialSession
	prev driver.SerialStatus
}

func (w *statusWatcher) poll(_ <-chan struct{}, timeout time.Duration) ([]change, error) {
	cur, err := w.sess.PollStatus(w.prev, timeout)
	if err != nil {
		return nil, err
	}
	changes := diffSerialStatus(w.prev, cur)
	w.prev = cur
	return changes, nil
}

// diffSerialStatus lists transitions in a fixed order: input lines, then
// error counters, then output empty. Counters report {false, true} when
// they grow; output empty reports its rising edge only.
func diffSerialStatus(old, cur driver.SerialStatus) []change {
	var out []change
	edge := func(c Category, o, n bool) {
		if o != n {
			out = append(out, change{category: c, old: o, new: n})
		}
	}
	edge(EventCTS, old.CTS, cur.CTS)
	edge(EventDSR, old.DSR, cur.DSR)
	edge(EventRingIndicator, old.RI, cur.RI)
	edge(EventCarrierDetect, old.CD, cur.CD)

	counter := func(c Category, o, n uint32) {
		if n != o {
			out = append(out, change{category: c, old: false, new: true})
		}
	}
	counter(EventOverrunError, old.Overrun, cur.Overrun)
	counter(EventParityError, old.Parity, cur.Parity)
	counter(EventFramingError, old.Framing, cur.Framing)
	counter(EventBreakInterrupt, old.Break, cur.Break)

	if !old.OutputEmpty && cur.OutputEmpty {
		out = append(out, change{category: EventOutputBufferEmpty, old: false, new: true})
	}
	return out
}

// dataWatcher is edge triggered: it reports once when input becomes
// available and re-arms after the input has been drained.
type dataWatcher struct {
	sess  driver.SerialSession
	armed bool
}

func (w *dataWatcher) poll(stop <-chan struct{}, timeout time.Duration) ([]change, error) {
	avail, err := w.sess.PollDataAvailable(timeout)
	if err != nil {
		return nil, err
	}
	switch {
	case avail && w.armed:
		w.armed = false
		return []change{{category: EventDataAvailable, old: false, new: true}}, nil
	case avail:
		// Still undrained; the driver returns immediately, so pace the loop.
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-stop:
		case <-t.C:
		}
	default:
		w.armed = true
	}
	return nil, nil
}

type errorWatcher struct {
	sess driver.ParallelSession
	prev driver.PrinterStatus
}

func (w *errorWatcher) poll(_ <-chan struct{}, timeout time.Duration) ([]change, error) {
	cur, err := w.sess.PollPrinterStatus(w.prev, timeout)
	if err != nil {
		return nil, err
	}
	changes := diffPrinterStatus(w.prev, cur)
	w.prev = cur
	return changes, nil
}

func diffPrinterStatus(old, cur driver.PrinterStatus) []change {
	var out []change
	edge := func(l ErrorLine, o, n bool) {
		if o != n {
			out = append(out, change{category: EventError, old: o, new: n, line: l})
		}
	}
	edge(LinePaperOut, old.PaperOut, cur.PaperOut)
	edge(LineBusy, old.Busy, cur.Busy)
	edge(LineSelected, old.Selected, cur.Selected)
	edge(LineTimedOut, old.TimedOut, cur.TimedOut)
	edge(LineFault, old.Fault, cur.Fault)
	if !old.OutputEmpty && cur.OutputEmpty {
		out = append(out, change{category: EventOutputBufferEmpty, old: false, new: true})
	}
	return out
}

// monitor runs one watcher on its own goroutine until asked to stop.
type monitor struct {
	group    Group
	w        watcher
	interval time.Duration
	state    *atomic.Int32

	wg       conc.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newMonitor(g Group, w watcher, interval time.Duration) *monitor {
	return &monitor{
		group:    g,
		w:        w,
		interval: interval,
		state:    atomic.NewInt32(int32(MonitorCreated)),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (m *monitor) State() MonitorState {
	return MonitorState(m.state.Load())
}

func (m *monitor) start(p *port) {
	m.state.Store(int32(MonitorRunning))
	m.wg.Go(func() { m.run(p) })
}

func (m *monitor) run(p *port) {
	defer close(m.doneCh)
	defer m.state.Store(int32(MonitorTerminated))

	for !m.stopRequested() {
		var (
			changes []change
			err     error
		)
		if r := panics.Try(func() { changes, err = m.w.poll(m.stopCh, m.interval) }); r != nil {
			err = r.AsError()
		}
		if m.stopRequested() {
			return
		}
		if err != nil {
			p.fault(m.group, 0, fmt.Errorf("%w: poll: %w", ErrIO, err))
			if !m.pause() {
				return
			}
			continue
		}
		for _, c := range changes {
			p.dispatch(m, c)
		}
	}
}

// pause waits one interval. It returns false if a stop was requested.
func (m *monitor) pause() bool {
	t := time.NewTimer(m.interval)
	defer t.Stop()
	select {
	case <-m.stopCh:
		return false
	case <-t.C:
		return true
	}
}

func (m *monitor) requestStop() {
	m.stopOnce.Do(func() {
		m.state.CompareAndSwap(int32(MonitorRunning), int32(MonitorStopRequested))
		close(m.stopCh)
	})
}

func (m *monitor) stopRequested() bool {
	select {
	case <-m.stopCh:
		return true
	default:
		return false
	}
}

// wait blocks until the goroutine exits or timeout elapses. A panic that
// escaped the goroutine is returned as err once it has exited.
func (m *monitor) wait(timeout time.Duration) (exited bool, err error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-m.doneCh:
		if r := m.wg.WaitAndRecover(); r != nil {
			return true, r.AsError()
		}
		return true, nil
	case <-t.C:
		return false, nil
	}
}

// watcherError maps a driver failure at monitor start to the caller taxonomy.
func watcherError(g Group, err error) error {
	if errors.Is(err, driver.ErrNotSupported) {
		return fmt.Errorf("%w: %s monitoring: %w", ErrUnsupportedOperation, g, err)
	}
	return fmt.Errorf("%w: %s monitoring: %w", ErrIO, g, err)
}
