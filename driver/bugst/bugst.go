// Package bugst is a portable driver.Driver built on go.bug.st/serial. It
// serves serial devices only and covers what that library exposes: framing,
// DTR/RTS, modem status polling, break and drain. Flow control, data
// availability polling and line error counters are reported as
// driver.ErrNotSupported.
package bugst

import (
	"fmt"
	"sync"
	"time"

	"github.com/allbin/go-commport/driver"
	"go.bug.st/serial"
)

var (
	_ driver.SerialSession = (*session)(nil)
	_ driver.ReadTimeouter = (*session)(nil)
)

// Driver opens ports with serial.Open.
type Driver struct {
	// Mode is used for every open. Defaults to 9600 8N1.
	Mode serial.Mode
	// ReadTimeout bounds each read. Defaults to 100ms.
	ReadTimeout time.Duration
	// StatusInterval is how often PollStatus samples the modem lines.
	StatusInterval time.Duration
}

func New() *Driver {
	return &Driver{
		Mode: serial.Mode{
			BaudRate: 9600,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		ReadTimeout:    100 * time.Millisecond,
		StatusInterval: 10 * time.Millisecond,
	}
}

func (d *Driver) Open(path string) (driver.Session, error) {
	mode := d.Mode
	p, err := serial.Open(path, &mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if d.ReadTimeout > 0 {
		if err := p.SetReadTimeout(d.ReadTimeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
	}
	return &session{
		port:     p,
		mode:     mode,
		interval: d.StatusInterval,
	}, nil
}

// session remembers the mode and output lines it last set, since the
// library cannot read them back.
type session struct {
	port     serial.Port
	interval time.Duration

	mu   sync.Mutex
	mode serial.Mode
	dtr  bool
	rts  bool
}

func (s *session) Read(b []byte) (int, error)  { return s.port.Read(b) }
func (s *session) Write(b []byte) (int, error) { return s.port.Write(b) }
func (s *session) Flush() error                { return s.port.Drain() }
func (s *session) Close() error                { return s.port.Close() }

// SetReadTimeout with zero blocks reads until data; Close interrupts them.
func (s *session) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		return s.port.SetReadTimeout(serial.NoTimeout)
	}
	return s.port.SetReadTimeout(d)
}

func (s *session) LineParams() (driver.LineParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fromMode(s.mode), nil
}

func (s *session) SetLineParams(lp driver.LineParams) error {
	mode, err := toMode(lp)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.port.SetMode(&mode); err != nil {
		return err
	}
	s.mode = mode
	return nil
}

func (s *session) FlowControl() (int, error) {
	return driver.Unknown, driver.ErrNotSupported
}

func (s *session) SetFlowControl(mask int) error {
	if mask == driver.FlowNone {
		return nil
	}
	return driver.ErrNotSupported
}

func (s *session) ControlLine(l driver.Line) (bool, error) {
	switch l {
	case driver.LineDTR:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.dtr, nil
	case driver.LineRTS:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.rts, nil
	}
	bits, err := s.port.GetModemStatusBits()
	if err != nil {
		return false, err
	}
	switch l {
	case driver.LineCTS:
		return bits.CTS, nil
	case driver.LineDSR:
		return bits.DSR, nil
	case driver.LineRI:
		return bits.RI, nil
	case driver.LineCD:
		return bits.DCD, nil
	}
	return false, fmt.Errorf("line %v: %w", l, driver.ErrNotSupported)
}

func (s *session) SetControlLine(l driver.Line, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch l {
	case driver.LineDTR:
		if err := s.port.SetDTR(on); err != nil {
			return err
		}
		s.dtr = on
	case driver.LineRTS:
		if err := s.port.SetRTS(on); err != nil {
			return err
		}
		s.rts = on
	default:
		return fmt.Errorf("line %v is an input: %w", l, driver.ErrNotSupported)
	}
	return nil
}

// Status reports the modem lines. Counters stay at zero and the output is
// always reported empty.
func (s *session) Status() (driver.SerialStatus, error) {
	bits, err := s.port.GetModemStatusBits()
	if err != nil {
		return driver.SerialStatus{}, err
	}
	return driver.SerialStatus{
		CTS:         bits.CTS,
		DSR:         bits.DSR,
		RI:          bits.RI,
		CD:          bits.DCD,
		OutputEmpty: true,
	}, nil
}

func (s *session) PollStatus(prev driver.SerialStatus, timeout time.Duration) (driver.SerialStatus, error) {
	var cur driver.SerialStatus
	err := driver.PollEvery(timeout, s.interval, func() (bool, error) {
		var err error
		cur, err = s.Status()
		return cur != prev, err
	})
	return cur, err
}

func (s *session) PollDataAvailable(time.Duration) (bool, error) {
	return false, driver.ErrNotSupported
}

func (s *session) SendBreak(d time.Duration) error {
	if d <= 0 {
		d = 250 * time.Millisecond
	}
	return s.port.Break(d)
}

func toMode(lp driver.LineParams) (serial.Mode, error) {
	mode := serial.Mode{BaudRate: lp.BaudRate, DataBits: lp.DataBits}

	switch lp.StopBits {
	case driver.StopBitsOne:
		mode.StopBits = serial.OneStopBit
	case driver.StopBitsOnePointFive:
		mode.StopBits = serial.OnePointFiveStopBits
	case driver.StopBitsTwo:
		mode.StopBits = serial.TwoStopBits
	default:
		return mode, fmt.Errorf("invalid stop bits ordinal %d", lp.StopBits)
	}

	switch lp.Parity {
	case driver.ParityNone:
		mode.Parity = serial.NoParity
	case driver.ParityOdd:
		mode.Parity = serial.OddParity
	case driver.ParityEven:
		mode.Parity = serial.EvenParity
	case driver.ParityMark:
		mode.Parity = serial.MarkParity
	case driver.ParitySpace:
		mode.Parity = serial.SpaceParity
	default:
		return mode, fmt.Errorf("invalid parity ordinal %d", lp.Parity)
	}
	return mode, nil
}

func fromMode(m serial.Mode) driver.LineParams {
	lp := driver.LineParams{
		BaudRate: m.BaudRate,
		DataBits: m.DataBits,
		StopBits: driver.Unknown,
		Parity:   driver.Unknown,
	}
	if lp.DataBits == 0 {
		lp.DataBits = 8
	}

	switch m.StopBits {
	case serial.OneStopBit:
		lp.StopBits = driver.StopBitsOne
	case serial.OnePointFiveStopBits:
		lp.StopBits = driver.StopBitsOnePointFive
	case serial.TwoStopBits:
		lp.StopBits = driver.StopBitsTwo
	}

	switch m.Parity {
	case serial.NoParity:
		lp.Parity = driver.ParityNone
	case serial.OddParity:
		lp.Parity = driver.ParityOdd
	case serial.EvenParity:
		lp.Parity = driver.ParityEven
	case serial.MarkParity:
		lp.Parity = driver.ParityMark
	case serial.SpaceParity:
		lp.Parity = driver.ParitySpace
	}
	return lp
}
