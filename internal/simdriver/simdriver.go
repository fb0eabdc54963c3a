// Package simdriver is an in-memory driver.Driver. Tests and the CLI's
// "sim" driver use it to toggle lines, inject input and inject faults
// without hardware.
package simdriver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allbin/go-commport/driver"
)

var (
	ErrUnknownDevice = errors.New("simdriver: unknown device")
	ErrClosed        = errors.New("simdriver: session closed")
	ErrRejected      = errors.New("simdriver: rejected by device")
)

// Driver holds a set of simulated devices keyed by physical id.
type Driver struct {
	mu      sync.Mutex
	devices map[string]*Device
}

func New() *Driver {
	return &Driver{devices: make(map[string]*Device)}
}

// AddSerial registers a serial device with 9600 8N1 line settings.
func (d *Driver) AddSerial(physicalID string) *Device {
	return d.add(physicalID, false)
}

// AddParallel registers a printer port device.
func (d *Driver) AddParallel(physicalID string) *Device {
	return d.add(physicalID, true)
}

func (d *Driver) add(physicalID string, parallel bool) *Device {
	dev := &Device{
		id:       physicalID,
		parallel: parallel,
		changed:  make(chan struct{}),
		line: driver.LineParams{
			BaudRate: 9600,
			DataBits: 8,
			StopBits: driver.StopBitsOne,
			Parity:   driver.ParityNone,
		},
		printer: driver.PrinterStatus{Selected: true, OutputEmpty: true},
	}
	dev.status.OutputEmpty = true

	d.mu.Lock()
	d.devices[physicalID] = dev
	d.mu.Unlock()
	return dev
}

// Device returns the device registered under physicalID, or nil.
func (d *Driver) Device(physicalID string) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.devices[physicalID]
}

// Open implements driver.Driver.
func (d *Driver) Open(physicalID string) (driver.Session, error) {
	dev := d.Device(physicalID)
	if dev == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, physicalID)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.openErr != nil {
		return nil, dev.openErr
	}
	dev.opens++
	base := &session{dev: dev}
	if dev.parallel {
		return &parallelSession{base}, nil
	}
	return &serialSession{base}, nil
}

// Device is one simulated piece of hardware. Its state outlives sessions.
type Device struct {
	id       string
	parallel bool

	mu      sync.Mutex
	changed chan struct{}

	line     driver.LineParams
	flow     int
	dtr, rts bool
	status   driver.SerialStatus
	printer  driver.PrinterStatus

	input   []byte
	output  []byte
	breaks  []time.Duration
	timeout time.Duration

	opens, closes, flushes int

	openErr     error
	closeErr    error
	pollErr     error
	rejectLine  bool
	rejectFlow  bool
	unknownLine bool
	noData      bool
	stall       bool
	blockReads  bool
}

// notify wakes every poller. Callers hold dev.mu.
func (dev *Device) notify() {
	close(dev.changed)
	dev.changed = make(chan struct{})
}

func (dev *Device) update(f func()) {
	dev.mu.Lock()
	f()
	dev.notify()
	dev.mu.Unlock()
}

// SetLine drives an input line (CTS, DSR, RI, CD) or overrides an output
// line (DTR, RTS) as seen by the host.
func (dev *Device) SetLine(l driver.Line, v bool) {
	dev.update(func() {
		switch l {
		case driver.LineCTS:
			dev.status.CTS = v
		case driver.LineDSR:
			dev.status.DSR = v
		case driver.LineRI:
			dev.status.RI = v
		case driver.LineCD:
			dev.status.CD = v
		case driver.LineDTR:
			dev.dtr = v
		case driver.LineRTS:
			dev.rts = v
		}
	})
}

// Line reports the current level of a line.
func (dev *Device) Line(l driver.Line) bool {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.lineLocked(l)
}

func (dev *Device) lineLocked(l driver.Line) bool {
	switch l {
	case driver.LineCTS:
		return dev.status.CTS
	case driver.LineDSR:
		return dev.status.DSR
	case driver.LineRI:
		return dev.status.RI
	case driver.LineCD:
		return dev.status.CD
	case driver.LineDTR:
		return dev.dtr
	case driver.LineRTS:
		return dev.rts
	}
	return false
}

func (dev *Device) AddOverrun()      { dev.update(func() { dev.status.Overrun++ }) }
func (dev *Device) AddParityError()  { dev.update(func() { dev.status.Parity++ }) }
func (dev *Device) AddFramingError() { dev.update(func() { dev.status.Framing++ }) }
func (dev *Device) AddBreak()        { dev.update(func() { dev.status.Break++ }) }

// SetOutputEmpty drives the transmitter-empty condition.
func (dev *Device) SetOutputEmpty(v bool) {
	dev.update(func() {
		dev.status.OutputEmpty = v
		dev.printer.OutputEmpty = v
	})
}

// SetPrinterStatus replaces the printer status lines.
func (dev *Device) SetPrinterStatus(ps driver.PrinterStatus) {
	dev.update(func() { dev.printer = ps })
}

// Inject queues bytes for the host to read.
func (dev *Device) Inject(data []byte) {
	dev.update(func() { dev.input = append(dev.input, data...) })
}

// Written returns a copy of everything the host wrote.
func (dev *Device) Written() []byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return append([]byte(nil), dev.output...)
}

// LineParams returns the device-side framing in driver encoding.
func (dev *Device) LineParams() driver.LineParams {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.line
}

// SetLineParams changes framing behind the host's back.
func (dev *Device) SetLineParams(lp driver.LineParams) {
	dev.update(func() { dev.line = lp })
}

func (dev *Device) FlowControl() int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.flow
}

func (dev *Device) Breaks() []time.Duration {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return append([]time.Duration(nil), dev.breaks...)
}

func (dev *Device) ReadTimeout() time.Duration {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.timeout
}

// Counts returns how many times the device was opened, closed and flushed.
func (dev *Device) Counts() (opens, closes, flushes int) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.opens, dev.closes, dev.flushes
}

func (dev *Device) FailOpen(err error)  { dev.update(func() { dev.openErr = err }) }
func (dev *Device) FailClose(err error) { dev.update(func() { dev.closeErr = err }) }

// FailPolls makes every status and data poll return err until cleared with nil.
func (dev *Device) FailPolls(err error) { dev.update(func() { dev.pollErr = err }) }

// RejectLineParams makes SetLineParams fail.
func (dev *Device) RejectLineParams(v bool) { dev.update(func() { dev.rejectLine = v }) }

// RejectFlowControl makes SetFlowControl fail.
func (dev *Device) RejectFlowControl(v bool) { dev.update(func() { dev.rejectFlow = v }) }

// ReportUnknown makes line parameter read-back report driver.Unknown.
func (dev *Device) ReportUnknown(v bool) { dev.update(func() { dev.unknownLine = v }) }

// DisableDataPoll makes PollDataAvailable return driver.ErrNotSupported.
func (dev *Device) DisableDataPoll(v bool) { dev.update(func() { dev.noData = v }) }

// BlockReads makes Read wait for input or Close instead of returning zero
// bytes.
func (dev *Device) BlockReads(v bool) { dev.update(func() { dev.blockReads = v }) }

// StallPolls makes polls ignore their timeout and block until released or
// the session is closed.
func (dev *Device) StallPolls(v bool) { dev.update(func() { dev.stall = v }) }
