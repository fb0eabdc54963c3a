package commport

import (
	"fmt"
	"sync"
	"time"

	"github.com/allbin/go-commport/driver"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/atomic"
)

// Port is the behavior shared by serial and parallel ports.
type Port interface {
	ID() string
	Name() string
	Kind() PortKind
	String() string
	Close() error
	IsClosed() bool

	InputStream() (*InputStream, error)
	OutputStream() (*OutputStream, error)
	SetInputBufferSize(size int)
	InputBufferSize() int
	SetOutputBufferSize(size int)
	OutputBufferSize() int

	EnableReceiveTimeout(d time.Duration) error
	DisableReceiveTimeout()
	ReceiveTimeout() time.Duration
	IsReceiveTimeoutEnabled() bool
	EnableReceiveThreshold(n int) error
	DisableReceiveThreshold()
	ReceiveThreshold() int
	IsReceiveThresholdEnabled() bool
	EnableReceiveFraming(b byte) error
	DisableReceiveFraming()
	IsReceiveFramingEnabled() bool

	SetNotify(c Category, enabled bool) error
	NotifyEnabled(c Category) bool
	RegisterListener(l Listener) error
	UnregisterListener()
	MonitorState(g Group) MonitorState
}

var (
	_ Port = (*SerialPort)(nil)
	_ Port = (*ParallelPort)(nil)
)

// port is the common implementation embedded by SerialPort and ParallelPort.
//
// Lock order: mu, then streamMu, then sessMu. Monitors never take sessMu;
// they hold the session captured when they started. Stream I/O also runs on
// a captured session without holding sessMu, so Close can interrupt a
// blocked read by closing the session.
type port struct {
	id    string
	entry *Entry
	cfg   Config
	log   *logrus.Entry
	self  Port

	// mu guards listener, notify, monitors and closed, and is held for the
	// whole of every dispatch.
	mu       sync.Mutex
	closed   bool
	listener Listener
	notify   categorySet
	monitors map[Group]*monitor
	starts   *atomic.Int64

	streamMu   sync.Mutex
	in         *InputStream
	out        *OutputStream
	outBufSize int

	sessMu sync.RWMutex
	sess   driver.Session

	rcvMu          sync.Mutex
	rcvTimeout     time.Duration
	rcvThreshold   int
	rcvThresholdOn bool
}

func newPortBase(e *Entry, sess driver.Session, cfg Config) *port {
	id := uuid.New().String()
	return &port{
		id:         id,
		entry:      e,
		cfg:        cfg,
		log:        cfg.Logger.WithFields(logrus.Fields{"prefix": "commport", "port": e.Name(), "session": id}),
		monitors:   make(map[Group]*monitor),
		starts:     atomic.NewInt64(0),
		sess:       sess,
		outBufSize: cfg.OutputBufferSize,
	}
}

// ID identifies this open session in logs.
func (p *port) ID() string     { return p.id }
func (p *port) Name() string   { return p.entry.Name() }
func (p *port) Kind() PortKind { return p.entry.Kind() }

func (p *port) String() string {
	return p.Name() + ":" + p.Kind().String()
}

func (p *port) IsClosed() bool {
	p.sessMu.RLock()
	defer p.sessMu.RUnlock()
	return p.sess == nil
}

// withSession runs fn with the live session, holding sessMu shared so Close
// cannot release the device underneath it.
func (p *port) withSession(fn func(driver.Session) error) error {
	p.sessMu.RLock()
	defer p.sessMu.RUnlock()
	if p.sess == nil {
		return fmt.Errorf("%w: %s", ErrPortClosed, p.Name())
	}
	return fn(p.sess)
}

// session returns the live session for calls that may block on the device.
// Once Close has run, calls on the returned session fail in the driver.
func (p *port) session() (driver.Session, error) {
	p.sessMu.RLock()
	defer p.sessMu.RUnlock()
	if p.sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrPortClosed, p.Name())
	}
	return p.sess, nil
}

// Close stops every monitor, flushes output, closes the driver session and
// releases the registry entry. It is safe to call more than once; later
// calls return nil. A driver close failure is returned as ErrIO but the
// entry is released regardless.
func (p *port) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	mons := p.stopMonitorsLocked()
	p.mu.Unlock()

	p.awaitMonitors(mons)

	p.streamMu.Lock()
	if p.out != nil {
		if err := p.out.flushOnClose(); err != nil {
			p.log.WithError(err).Warn("Flushing output on close failed")
		}
	}
	p.in, p.out = nil, nil
	p.streamMu.Unlock()

	p.sessMu.Lock()
	sess := p.sess
	p.sess = nil
	p.sessMu.Unlock()

	var err error
	if sess != nil {
		if cerr := sess.Close(); cerr != nil {
			p.log.WithError(cerr).Warn("Driver close failed")
			err = fmt.Errorf("%w: close %s: %w", ErrIO, p.Name(), cerr)
		}
	}
	p.entry.MarkClosed()
	p.log.Debug("Port closed")
	return err
}

// stopMonitorsLocked requests every monitor to stop and forgets them.
// Callers hold mu and must awaitMonitors after releasing it.
func (p *port) stopMonitorsLocked() []*monitor {
	mons := make([]*monitor, 0, len(p.monitors))
	for g, m := range p.monitors {
		m.requestStop()
		mons = append(mons, m)
		delete(p.monitors, g)
	}
	return mons
}

func (p *port) awaitMonitors(mons []*monitor) {
	for _, m := range mons {
		exited, err := m.wait(p.cfg.StopTimeout)
		if !exited {
			p.log.WithFields(logrus.Fields{
				"group":   m.group.String(),
				"timeout": p.cfg.StopTimeout,
			}).Warn("Monitor did not stop in time, abandoning it")
			continue
		}
		if err != nil {
			p.fault(m.group, 0, err)
		}
	}
}

// SetNotify enables or disables delivery of category c. Enabling the first
// category of a group starts that group's monitor; disabling the last one
// stops it and waits for it to exit.
func (p *port) SetNotify(c Category, enabled bool) error {
	g, ok := groupFor(p.Kind(), c)
	if !ok {
		return fmt.Errorf("%w: %s notifications on %s port", ErrUnsupportedOperation, c, p.Kind())
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPortClosed, p.Name())
	}

	if enabled {
		p.notify.set(c, true)
		if err := p.ensureMonitorLocked(g); err != nil {
			p.notify.set(c, false)
			p.mu.Unlock()
			return err
		}
		p.mu.Unlock()
		return nil
	}

	p.notify.set(c, false)
	var stopped *monitor
	if !p.notify.anyIn(p.Kind(), g) {
		if m := p.monitors[g]; m != nil {
			m.requestStop()
			delete(p.monitors, g)
			stopped = m
		}
	}
	p.mu.Unlock()

	if stopped != nil {
		p.awaitMonitors([]*monitor{stopped})
	}
	return nil
}

func (p *port) NotifyEnabled(c Category) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notify.has(c)
}

// ensureMonitorLocked starts the monitor for g unless one is running.
func (p *port) ensureMonitorLocked(g Group) error {
	if p.monitors[g] != nil {
		return nil
	}

	p.sessMu.RLock()
	sess := p.sess
	p.sessMu.RUnlock()
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrPortClosed, p.Name())
	}

	w, err := newWatcher(g, sess)
	if err != nil {
		return watcherError(g, err)
	}
	m := newMonitor(g, w, p.cfg.PollInterval)
	p.monitors[g] = m
	p.starts.Inc()
	m.start(p)
	p.log.WithField("group", g.String()).Debug("Monitor started")
	return nil
}

func groupsFor(kind PortKind) []Group {
	if kind == PortKindParallel {
		return []Group{GroupError}
	}
	return []Group{GroupStatus, GroupData}
}

// RegisterListener installs the port's single listener. Monitors for groups
// with enabled categories are (re)started.
func (p *port) RegisterListener(l Listener) error {
	if l == nil {
		return fmt.Errorf("%w: nil listener", ErrUnsupportedOperation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%w: %s", ErrPortClosed, p.Name())
	}
	if p.listener != nil {
		return fmt.Errorf("%w: %s already has a listener", ErrTooManyListeners, p.Name())
	}
	p.listener = l

	for _, g := range groupsFor(p.Kind()) {
		if !p.notify.anyIn(p.Kind(), g) {
			continue
		}
		if err := p.ensureMonitorLocked(g); err != nil {
			p.log.WithError(err).WithField("group", g.String()).Warn("Could not restart monitor")
		}
	}
	return nil
}

// UnregisterListener removes the listener and stops all monitors. Enabled
// categories are kept, so a later RegisterListener resumes them.
func (p *port) UnregisterListener() {
	p.mu.Lock()
	p.listener = nil
	mons := p.stopMonitorsLocked()
	p.mu.Unlock()
	p.awaitMonitors(mons)
}

// MonitorState reports the state of the group's current monitor, or
// MonitorTerminated when none is running.
func (p *port) MonitorState(g Group) MonitorState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m := p.monitors[g]; m != nil {
		return m.State()
	}
	return MonitorTerminated
}

// dispatch delivers c to the listener. The checks and the call happen under
// mu, so once a stop has been requested or the listener cleared nothing more
// is delivered.
func (p *port) dispatch(m *monitor, c change) {
	p.mu.Lock()
	if m.stopRequested() || p.listener == nil || !p.notify.has(c.category) {
		p.mu.Unlock()
		return
	}
	ev := Event{
		Source:   p.self,
		Category: c.category,
		OldValue: c.old,
		NewValue: c.new,
		Line:     c.line,
		Time:     time.Now(),
	}
	l := p.listener
	var err error
	if r := panics.Try(func() { err = l.HandleEvent(ev) }); r != nil {
		err = r.AsError()
	}
	p.mu.Unlock()

	if err != nil {
		p.fault(m.group, c.category, err)
	}
}

// fault reports a monitor fault to the logger and the fault handler.
func (p *port) fault(g Group, c Category, err error) {
	f := &MonitorFault{Port: p.Name(), Group: g, Category: c, Err: err}
	entry := p.log.WithError(err).WithField("group", g.String())
	if c != 0 {
		entry = entry.WithField("category", c.String())
	}
	entry.Error("Monitor fault")

	if h := p.cfg.FaultHandler; h != nil {
		if r := panics.Try(func() { h(f) }); r != nil {
			p.log.WithError(r.AsError()).Error("Fault handler panicked")
		}
	}
}

// monitorStarts counts monitor goroutines started over the port's life.
func (p *port) monitorStarts() int64 {
	return p.starts.Load()
}

func (p *port) SetInputBufferSize(int) {}

func (p *port) InputBufferSize() int { return 0 }

// SetOutputBufferSize records the advisory size used for output streams
// created afterwards. Negative sizes are ignored.
func (p *port) SetOutputBufferSize(size int) {
	if size < 0 {
		return
	}
	p.streamMu.Lock()
	p.outBufSize = size
	p.streamMu.Unlock()
}

func (p *port) OutputBufferSize() int {
	p.streamMu.Lock()
	defer p.streamMu.Unlock()
	return p.outBufSize
}

// EnableReceiveTimeout bounds reads to d when the driver supports it. A
// zero duration disables the timeout.
func (p *port) EnableReceiveTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: receive timeout %v", ErrUnsupportedOperation, d)
	}
	p.rcvMu.Lock()
	defer p.rcvMu.Unlock()

	err := p.withSession(func(s driver.Session) error {
		if rt, ok := s.(driver.ReadTimeouter); ok {
			return rt.SetReadTimeout(d)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: receive timeout: %w", ErrUnsupportedOperation, err)
	}
	p.rcvTimeout = d
	return nil
}

func (p *port) DisableReceiveTimeout() {
	if err := p.EnableReceiveTimeout(0); err != nil {
		p.log.WithError(err).Debug("Disabling receive timeout failed")
		p.rcvMu.Lock()
		p.rcvTimeout = 0
		p.rcvMu.Unlock()
	}
}

func (p *port) ReceiveTimeout() time.Duration {
	p.rcvMu.Lock()
	defer p.rcvMu.Unlock()
	return p.rcvTimeout
}

func (p *port) IsReceiveTimeoutEnabled() bool {
	return p.ReceiveTimeout() > 0
}

// EnableReceiveThreshold records a read threshold. Reads are not held back
// to honor it.
func (p *port) EnableReceiveThreshold(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: receive threshold %d", ErrUnsupportedOperation, n)
	}
	p.rcvMu.Lock()
	defer p.rcvMu.Unlock()
	p.rcvThreshold = n
	p.rcvThresholdOn = n > 0
	return nil
}

func (p *port) DisableReceiveThreshold() {
	p.rcvMu.Lock()
	defer p.rcvMu.Unlock()
	p.rcvThreshold = 0
	p.rcvThresholdOn = false
}

func (p *port) ReceiveThreshold() int {
	p.rcvMu.Lock()
	defer p.rcvMu.Unlock()
	return p.rcvThreshold
}

func (p *port) IsReceiveThresholdEnabled() bool {
	p.rcvMu.Lock()
	defer p.rcvMu.Unlock()
	return p.rcvThresholdOn
}

// EnableReceiveFraming always fails: framing is not supported.
func (p *port) EnableReceiveFraming(b byte) error {
	return fmt.Errorf("%w: receive framing", ErrUnsupportedOperation)
}

func (p *port) DisableReceiveFraming() {}

func (p *port) IsReceiveFramingEnabled() bool { return false }
