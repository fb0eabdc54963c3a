package commport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allbin/go-commport/driver"
)

// SerialPort is an open RS-232 style port.
//
// Accessors read the live driver state. When the driver cannot answer, or
// the port is closed, they return the last known configuration.
type SerialPort struct {
	*port

	cfgMu sync.Mutex
	line  LineParams
	flow  FlowControl
}

func newSerialPort(e *Entry, sess driver.SerialSession, cfg Config) *SerialPort {
	sp := &SerialPort{
		port: newPortBase(e, sess, cfg),
		line: cfg.Line,
		flow: cfg.FlowControl,
	}
	sp.self = sp
	return sp
}

// configure applies the open-time options.
func (sp *SerialPort) configure() error {
	cfg := sp.cfg
	if cfg.lineSet {
		lp := cfg.Line
		if err := sp.SetLineParams(lp.BaudRate, lp.DataBits, lp.StopBits, lp.Parity); err != nil {
			return err
		}
	} else {
		sp.LineParams()
	}
	if cfg.flowSet {
		if err := sp.SetFlowControl(cfg.FlowControl); err != nil {
			return err
		}
	}
	if cfg.InitialRTS != nil {
		if err := sp.SetRTS(*cfg.InitialRTS); err != nil {
			return fmt.Errorf("failed to set initial RTS: %w", err)
		}
	}
	if cfg.InitialDTR != nil {
		if err := sp.SetDTR(*cfg.InitialDTR); err != nil {
			return fmt.Errorf("failed to set initial DTR: %w", err)
		}
	}
	if cfg.ReceiveTimeout > 0 {
		if err := sp.EnableReceiveTimeout(cfg.ReceiveTimeout); err != nil {
			return err
		}
	}
	return nil
}

func (sp *SerialPort) withSerial(fn func(driver.SerialSession) error) error {
	return sp.withSession(func(s driver.Session) error {
		return fn(s.(driver.SerialSession))
	})
}

// SetLineParams validates and applies the framing. Invalid values and
// driver rejections fail with ErrUnsupportedOperation and leave the
// previous configuration in place.
func (sp *SerialPort) SetLineParams(baud, dataBits int, stopBits StopBits, parity Parity) error {
	lp := LineParams{BaudRate: baud, DataBits: dataBits, StopBits: stopBits, Parity: parity}
	if err := lp.Validate(); err != nil {
		return err
	}

	sp.cfgMu.Lock()
	defer sp.cfgMu.Unlock()

	err := sp.withSerial(func(s driver.SerialSession) error {
		return s.SetLineParams(lp.toDriver())
	})
	if err != nil {
		return fmt.Errorf("%w: set %s on %s: %w", ErrUnsupportedOperation, lp, sp.Name(), err)
	}
	sp.line = lp
	sp.log.WithField("params", lp.String()).Debug("Line parameters set")
	return nil
}

// LineParams returns the live framing, falling back field by field to the
// cached values.
func (sp *SerialPort) LineParams() LineParams {
	sp.cfgMu.Lock()
	defer sp.cfgMu.Unlock()

	var d driver.LineParams
	err := sp.withSerial(func(s driver.SerialSession) error {
		var err error
		d, err = s.LineParams()
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrPortClosed) {
			sp.log.WithError(err).Debug("Reading line parameters failed, using cached values")
		}
		return sp.line
	}
	sp.line = sp.line.mergeDriver(d)
	return sp.line
}

func (sp *SerialPort) BaudRate() int      { return sp.LineParams().BaudRate }
func (sp *SerialPort) DataBits() int      { return sp.LineParams().DataBits }
func (sp *SerialPort) StopBits() StopBits { return sp.LineParams().StopBits }
func (sp *SerialPort) Parity() Parity     { return sp.LineParams().Parity }

// SetFlowControl applies fc. Mixed hardware and software modes are rejected
// before the driver is called; on any failure the previous mode is kept.
func (sp *SerialPort) SetFlowControl(fc FlowControl) error {
	if err := fc.Validate(); err != nil {
		return err
	}

	sp.cfgMu.Lock()
	defer sp.cfgMu.Unlock()

	err := sp.withSerial(func(s driver.SerialSession) error {
		return s.SetFlowControl(int(fc))
	})
	if err != nil {
		return fmt.Errorf("%w: flow control %s on %s: %w", ErrUnsupportedOperation, fc, sp.Name(), err)
	}
	sp.flow = fc
	return nil
}

// FlowControl returns the live flow control mode, or the cached one when
// the driver cannot answer.
func (sp *SerialPort) FlowControl() FlowControl {
	sp.cfgMu.Lock()
	defer sp.cfgMu.Unlock()

	var mask int
	err := sp.withSerial(func(s driver.SerialSession) error {
		var err error
		mask, err = s.FlowControl()
		return err
	})
	if err != nil || mask == driver.Unknown || FlowControl(mask).Validate() != nil {
		return sp.flow
	}
	sp.flow = FlowControl(mask)
	return sp.flow
}

func (sp *SerialPort) setLine(l driver.Line, v bool) error {
	err := sp.withSerial(func(s driver.SerialSession) error {
		return s.SetControlLine(l, v)
	})
	if err != nil {
		return fmt.Errorf("%w: set %s on %s: %w", ErrIO, l, sp.Name(), err)
	}
	return nil
}

func (sp *SerialPort) getLine(l driver.Line) (bool, error) {
	var v bool
	err := sp.withSerial(func(s driver.SerialSession) error {
		var err error
		v, err = s.ControlLine(l)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("%w: read %s on %s: %w", ErrIO, l, sp.Name(), err)
	}
	return v, nil
}

// SetDTR sets DTR signal state
func (sp *SerialPort) SetDTR(state bool) error { return sp.setLine(driver.LineDTR, state) }

// SetRTS sets RTS signal state
func (sp *SerialPort) SetRTS(state bool) error { return sp.setLine(driver.LineRTS, state) }

func (sp *SerialPort) DTR() (bool, error) { return sp.getLine(driver.LineDTR) }
func (sp *SerialPort) RTS() (bool, error) { return sp.getLine(driver.LineRTS) }
func (sp *SerialPort) CTS() (bool, error) { return sp.getLine(driver.LineCTS) }
func (sp *SerialPort) DSR() (bool, error) { return sp.getLine(driver.LineDSR) }
func (sp *SerialPort) RI() (bool, error)  { return sp.getLine(driver.LineRI) }
func (sp *SerialPort) CD() (bool, error)  { return sp.getLine(driver.LineCD) }

// SendBreak holds the line in the break condition for d.
func (sp *SerialPort) SendBreak(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: break duration %v", ErrUnsupportedOperation, d)
	}
	err := sp.withSerial(func(s driver.SerialSession) error { return s.SendBreak(d) })
	if err != nil {
		if errors.Is(err, driver.ErrNotSupported) {
			return fmt.Errorf("%w: break on %s: %w", ErrUnsupportedOperation, sp.Name(), err)
		}
		return fmt.Errorf("%w: break on %s: %w", ErrIO, sp.Name(), err)
	}
	return nil
}
