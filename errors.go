package commport

import (
	"errors"
	"fmt"
)

// Caller-visible error taxonomy. Match with errors.Is; returned errors wrap
// the driver cause where there is one.
var (
	ErrNoSuchPort           = errors.New("no such port")
	ErrPortInUse            = errors.New("port in use")
	ErrIO                   = errors.New("i/o error")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrTooManyListeners     = errors.New("too many listeners")

	// Registry errors
	ErrNotFound      = errors.New("registry entry not found")
	ErrAlreadyOpen   = errors.New("registry entry already open")
	ErrDuplicatePort = errors.New("duplicate port name")

	ErrPortClosed = errors.New("port is closed")
)

// MonitorFault describes a failure inside a monitor goroutine: a driver poll
// error, a listener error or a listener panic. Faults are reported to the
// port's logger and fault handler, never returned to callers.
type MonitorFault struct {
	Port     string
	Group    Group
	Category Category // zero for poll failures
	Err      error
}

func (f *MonitorFault) Error() string {
	if f.Category == 0 {
		return fmt.Sprintf("%s: %s monitor: %v", f.Port, f.Group, f.Err)
	}
	return fmt.Sprintf("%s: %s monitor: %s listener: %v", f.Port, f.Group, f.Category, f.Err)
}

func (f *MonitorFault) Unwrap() error { return f.Err }

// FaultHandler receives monitor faults. It runs on the monitor goroutine.
type FaultHandler func(*MonitorFault)
