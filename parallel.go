package commport

import (
	"fmt"
	"sync"

	"github.com/allbin/go-commport/driver"
)

// ParallelMode is an IEEE 1284 port mode.
type ParallelMode int

const (
	ParallelModeAny ParallelMode = iota
	ParallelModeSPP
	ParallelModePS2
	ParallelModeEPP
	ParallelModeECP
	ParallelModeNibble
)

func (m ParallelMode) String() string {
	switch m {
	case ParallelModeAny:
		return "any"
	case ParallelModeSPP:
		return "SPP"
	case ParallelModePS2:
		return "PS/2"
	case ParallelModeEPP:
		return "EPP"
	case ParallelModeECP:
		return "ECP"
	case ParallelModeNibble:
		return "nibble"
	default:
		return fmt.Sprintf("ParallelMode(%d)", int(m))
	}
}

// ParallelPort is an open printer port. Only SPP mode is available.
type ParallelPort struct {
	*port

	suspendMu sync.Mutex
	suspended bool
}

func newParallelPort(e *Entry, sess driver.ParallelSession, cfg Config) *ParallelPort {
	pp := &ParallelPort{port: newPortBase(e, sess, cfg)}
	pp.self = pp
	return pp
}

func (pp *ParallelPort) configure() error {
	if pp.cfg.ReceiveTimeout > 0 {
		return pp.EnableReceiveTimeout(pp.cfg.ReceiveTimeout)
	}
	return nil
}

// Mode always reports SPP.
func (pp *ParallelPort) Mode() ParallelMode { return ParallelModeSPP }

// SetMode always fails; the mode cannot be changed.
func (pp *ParallelPort) SetMode(m ParallelMode) error {
	return fmt.Errorf("%w: parallel mode %s", ErrUnsupportedOperation, m)
}

// Suspend marks output as suspended. Restart clears the mark.
func (pp *ParallelPort) Suspend() {
	pp.suspendMu.Lock()
	pp.suspended = true
	pp.suspendMu.Unlock()
}

func (pp *ParallelPort) Restart() {
	pp.suspendMu.Lock()
	pp.suspended = false
	pp.suspendMu.Unlock()
}

func (pp *ParallelPort) IsOutputSuspended() bool {
	pp.suspendMu.Lock()
	defer pp.suspendMu.Unlock()
	return pp.suspended
}

// OutputBufferFree is the advisory output buffer size minus the bytes
// currently buffered, never negative.
func (pp *ParallelPort) OutputBufferFree() int {
	pp.streamMu.Lock()
	size, out := pp.outBufSize, pp.out
	pp.streamMu.Unlock()

	pending := 0
	if out != nil {
		pending = out.Buffered()
	}
	if size > pending {
		return size - pending
	}
	return 0
}

// PrinterStatus reads all printer status lines at once.
func (pp *ParallelPort) PrinterStatus() (driver.PrinterStatus, error) {
	var st driver.PrinterStatus
	err := pp.withSession(func(s driver.Session) error {
		var err error
		st, err = s.(driver.ParallelSession).PrinterStatus()
		return err
	})
	if err != nil {
		return driver.PrinterStatus{}, fmt.Errorf("%w: printer status on %s: %w", ErrIO, pp.Name(), err)
	}
	return st, nil
}

func (pp *ParallelPort) PaperOut() (bool, error) {
	st, err := pp.PrinterStatus()
	return st.PaperOut, err
}

func (pp *ParallelPort) PrinterBusy() (bool, error) {
	st, err := pp.PrinterStatus()
	return st.Busy, err
}

func (pp *ParallelPort) PrinterSelected() (bool, error) {
	st, err := pp.PrinterStatus()
	return st.Selected, err
}

func (pp *ParallelPort) PrinterTimedOut() (bool, error) {
	st, err := pp.PrinterStatus()
	return st.TimedOut, err
}

func (pp *ParallelPort) PrinterError() (bool, error) {
	st, err := pp.PrinterStatus()
	return st.Fault, err
}
