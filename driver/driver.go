// Package driver defines the byte-level transport capability that commport
// ports are built on. Concrete drivers live in sub-packages (termios, bugst)
// and in internal/simdriver for tests.
//
// All values crossing this boundary use driver-level encodings: stop bits
// are ordinals (0 = 1.5, 1 = 1, 2 = 2), parity is 0..4 (none, odd, even,
// mark, space) and flow control is the bitmask defined below.
package driver

import (
	"errors"
	"io"
	"time"
)

// Unknown is reported for a line parameter the driver cannot read back.
const Unknown = -1

// ErrNotSupported is returned by drivers for primitives the underlying
// transport does not provide.
var ErrNotSupported = errors.New("operation not supported by driver")

// Stop bit ordinals.
const (
	StopBitsOnePointFive = 0
	StopBitsOne          = 1
	StopBitsTwo          = 2
)

// Parity ordinals.
const (
	ParityNone = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// Flow control bits.
const (
	FlowNone       = 0
	FlowRTSCTSIn   = 1
	FlowRTSCTSOut  = 2
	FlowXonXoffIn  = 4
	FlowXonXoffOut = 8
)

// Line identifies a modem control line.
type Line int

const (
	LineDTR Line = iota
	LineRTS
	LineCTS
	LineDSR
	LineRI
	LineCD
)

func (l Line) String() string {
	switch l {
	case LineDTR:
		return "DTR"
	case LineRTS:
		return "RTS"
	case LineCTS:
		return "CTS"
	case LineDSR:
		return "DSR"
	case LineRI:
		return "RI"
	case LineCD:
		return "CD"
	default:
		return "unknown"
	}
}

// LineParams is the driver view of the serial framing. Any field may be
// Unknown when read back.
type LineParams struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   int
}

// SerialStatus is a snapshot of the input lines and error counters of a
// serial device. Counters only ever grow for the lifetime of a session.
type SerialStatus struct {
	CTS bool
	DSR bool
	RI  bool
	CD  bool

	Overrun uint32
	Parity  uint32
	Framing uint32
	Break   uint32

	OutputEmpty bool
}

// PrinterStatus is a snapshot of the status lines of a parallel device.
type PrinterStatus struct {
	PaperOut    bool
	Busy        bool
	Selected    bool
	TimedOut    bool
	Fault       bool
	OutputEmpty bool
}

// Driver opens sessions on physical devices.
type Driver interface {
	Open(physicalID string) (Session, error)
}

// Session is an open device.
type Session interface {
	io.ReadWriter
	// Flush blocks until written output has been transmitted.
	Flush() error
	Close() error
}

// SerialSession is implemented by sessions on RS-232 style devices.
//
// PollStatus and PollDataAvailable must return within roughly timeout so
// callers can observe cancellation between calls.
type SerialSession interface {
	Session

	LineParams() (LineParams, error)
	SetLineParams(LineParams) error
	FlowControl() (int, error)
	SetFlowControl(mask int) error

	ControlLine(Line) (bool, error)
	SetControlLine(Line, bool) error

	Status() (SerialStatus, error)
	// PollStatus returns as soon as the status differs from prev, or the
	// current status once timeout has elapsed.
	PollStatus(prev SerialStatus, timeout time.Duration) (SerialStatus, error)
	// PollDataAvailable reports whether unread input is available, waiting
	// up to timeout for some to arrive.
	PollDataAvailable(timeout time.Duration) (bool, error)

	SendBreak(d time.Duration) error
}

// ParallelSession is implemented by sessions on printer ports.
type ParallelSession interface {
	Session

	PrinterStatus() (PrinterStatus, error)
	// PollPrinterStatus returns as soon as the status differs from prev, or
	// the current status once timeout has elapsed.
	PollPrinterStatus(prev PrinterStatus, timeout time.Duration) (PrinterStatus, error)
}

// ReadTimeouter is implemented by sessions whose reads can be bounded.
// With a positive duration Read returns (0, nil) once it elapses with no
// data. Zero disables the timeout: Read blocks until at least one byte
// arrives or the session is closed, and Close must release it.
type ReadTimeouter interface {
	SetReadTimeout(d time.Duration) error
}
