package simdriver

import (
	"time"

	"github.com/allbin/go-commport/driver"
)

var (
	_ driver.SerialSession   = (*serialSession)(nil)
	_ driver.ParallelSession = (*parallelSession)(nil)
	_ driver.ReadTimeouter   = (*serialSession)(nil)
)

type session struct {
	dev    *Device
	closed bool // guarded by dev.mu
}

func (s *session) Read(p []byte) (int, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	for s.dev.blockReads && !s.closed && len(s.dev.input) == 0 && len(p) > 0 {
		ch := s.dev.changed
		s.dev.mu.Unlock()
		<-ch
		s.dev.mu.Lock()
	}
	if s.closed {
		return 0, ErrClosed
	}
	n := copy(p, s.dev.input)
	s.dev.input = s.dev.input[n:]
	if n > 0 {
		s.dev.notify()
	}
	return n, nil
}

func (s *session) Write(p []byte) (int, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.dev.output = append(s.dev.output, p...)
	return len(p), nil
}

func (s *session) Flush() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.dev.flushes++
	return nil
}

func (s *session) Close() error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.dev.closes++
	s.dev.notify()
	return s.dev.closeErr
}

// wait blocks until done reports true, the session closes or timeout
// elapses. done runs with dev.mu held.
func (s *session) wait(timeout time.Duration, done func() bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.dev.mu.Lock()
		if s.closed {
			s.dev.mu.Unlock()
			return ErrClosed
		}
		if err := s.dev.pollErr; err != nil {
			s.dev.mu.Unlock()
			return err
		}
		stall := s.dev.stall
		if !stall && done() {
			s.dev.mu.Unlock()
			return nil
		}
		ch := s.dev.changed
		s.dev.mu.Unlock()

		if stall {
			<-ch
			continue
		}
		select {
		case <-ch:
		case <-timer.C:
			return nil
		}
	}
}

type serialSession struct {
	*session
}

func (s *serialSession) LineParams() (driver.LineParams, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return driver.LineParams{}, ErrClosed
	}
	if s.dev.unknownLine {
		return driver.LineParams{
			BaudRate: driver.Unknown,
			DataBits: driver.Unknown,
			StopBits: driver.Unknown,
			Parity:   driver.Unknown,
		}, nil
	}
	return s.dev.line, nil
}

func (s *serialSession) SetLineParams(lp driver.LineParams) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.dev.rejectLine || lp.StopBits < 0 || lp.StopBits > 2 || lp.Parity < 0 || lp.Parity > 4 {
		return ErrRejected
	}
	s.dev.line = lp
	s.dev.notify()
	return nil
}

func (s *serialSession) FlowControl() (int, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.dev.flow, nil
}

func (s *serialSession) SetFlowControl(mask int) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.dev.rejectFlow {
		return ErrRejected
	}
	s.dev.flow = mask
	return nil
}

func (s *serialSession) ControlLine(l driver.Line) (bool, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	return s.dev.lineLocked(l), nil
}

func (s *serialSession) SetControlLine(l driver.Line, v bool) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	switch l {
	case driver.LineDTR:
		s.dev.dtr = v
	case driver.LineRTS:
		s.dev.rts = v
	default:
		return driver.ErrNotSupported
	}
	s.dev.notify()
	return nil
}

func (s *serialSession) Status() (driver.SerialStatus, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return driver.SerialStatus{}, ErrClosed
	}
	return s.dev.status, nil
}

func (s *serialSession) PollStatus(prev driver.SerialStatus, timeout time.Duration) (driver.SerialStatus, error) {
	if err := s.wait(timeout, func() bool { return s.dev.status != prev }); err != nil {
		return driver.SerialStatus{}, err
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	return s.dev.status, nil
}

func (s *serialSession) PollDataAvailable(timeout time.Duration) (bool, error) {
	s.dev.mu.Lock()
	noData := s.dev.noData
	s.dev.mu.Unlock()
	if noData {
		return false, driver.ErrNotSupported
	}

	if err := s.wait(timeout, func() bool { return len(s.dev.input) > 0 }); err != nil {
		return false, err
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	return len(s.dev.input) > 0, nil
}

func (s *serialSession) SendBreak(d time.Duration) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.dev.breaks = append(s.dev.breaks, d)
	return nil
}

func (s *serialSession) SetReadTimeout(d time.Duration) error {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.dev.timeout = d
	return nil
}

type parallelSession struct {
	*session
}

func (s *parallelSession) PrinterStatus() (driver.PrinterStatus, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.closed {
		return driver.PrinterStatus{}, ErrClosed
	}
	return s.dev.printer, nil
}

func (s *parallelSession) PollPrinterStatus(prev driver.PrinterStatus, timeout time.Duration) (driver.PrinterStatus, error) {
	if err := s.wait(timeout, func() bool { return s.dev.printer != prev }); err != nil {
		return driver.PrinterStatus{}, err
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	return s.dev.printer, nil
}
