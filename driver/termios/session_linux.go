//go:build linux

package termios

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/allbin/go-commport/driver"
	"golang.org/x/sys/unix"
)

var (
	_ driver.SerialSession   = (*serialSession)(nil)
	_ driver.ParallelSession = (*printerSession)(nil)
	_ driver.ReadTimeouter   = (*serialSession)(nil)
)

var errClosed = errors.New("session closed")

// fdSession holds the parts shared by serial and printer sessions.
type fdSession struct {
	mu       sync.Mutex
	fd       int
	closed   bool
	blocking bool // reads retry empty VTIME slices until data or Close
	interval time.Duration
}

func (s *fdSession) handle() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1, errClosed
	}
	return s.fd, nil
}

func (s *fdSession) readHandle() (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1, false, errClosed
	}
	return s.fd, s.blocking, nil
}

func (s *fdSession) Read(b []byte) (int, error) {
	for {
		fd, blocking, err := s.readHandle()
		if err != nil {
			return 0, err
		}
		n, err := unix.Read(fd, b)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		if err != nil {
			if _, _, cerr := s.readHandle(); cerr != nil {
				return n, cerr
			}
		}
		if n == 0 && err == nil && blocking && len(b) > 0 {
			continue
		}
		return n, err
	}
}

func (s *fdSession) Write(b []byte) (int, error) {
	fd, err := s.handle()
	if err != nil {
		return 0, err
	}
	written := 0
	for written < len(b) {
		n, err := unix.Write(fd, b[written:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func (s *fdSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.closed = true
	return unix.Close(s.fd)
}

type serialSession struct {
	fdSession
}

func (s *serialSession) Flush() error {
	fd, err := s.handle()
	if err != nil {
		return err
	}
	// TCSBRK with a non-zero argument is tcdrain.
	return unix.IoctlSetInt(fd, unix.TCSBRK, 1)
}

func (s *serialSession) termios() (int, *unix.Termios, error) {
	fd, err := s.handle()
	if err != nil {
		return -1, nil, err
	}
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return -1, nil, fmt.Errorf("failed to get termios: %w", err)
	}
	return fd, t, nil
}

func (s *serialSession) LineParams() (driver.LineParams, error) {
	_, t, err := s.termios()
	if err != nil {
		return driver.LineParams{}, err
	}
	return readLineParams(t), nil
}

func (s *serialSession) SetLineParams(lp driver.LineParams) error {
	fd, t, err := s.termios()
	if err != nil {
		return err
	}
	if err := applyLineParams(t, lp); err != nil {
		return err
	}
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

func (s *serialSession) FlowControl() (int, error) {
	_, t, err := s.termios()
	if err != nil {
		return driver.Unknown, err
	}
	return readFlowControl(t), nil
}

func (s *serialSession) SetFlowControl(mask int) error {
	fd, t, err := s.termios()
	if err != nil {
		return err
	}
	applyFlowControl(t, mask)
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

// SetReadTimeout changes VTIME. Zero makes Read wait for data or Close.
func (s *serialSession) SetReadTimeout(d time.Duration) error {
	fd, t, err := s.termios()
	if err != nil {
		return err
	}
	vt, blocking := readTimeoutCc(d)
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = vt
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return err
	}
	s.mu.Lock()
	s.blocking = blocking
	s.mu.Unlock()
	return nil
}

func (s *serialSession) modemBits() (int, error) {
	fd, err := s.handle()
	if err != nil {
		return 0, err
	}
	return unix.IoctlGetInt(fd, unix.TIOCMGET)
}

func (s *serialSession) ControlLine(l driver.Line) (bool, error) {
	bit, ok := lineBit(l)
	if !ok {
		return false, fmt.Errorf("line %v: %w", l, driver.ErrNotSupported)
	}
	bits, err := s.modemBits()
	if err != nil {
		return false, err
	}
	return bits&bit != 0, nil
}

func (s *serialSession) SetControlLine(l driver.Line, on bool) error {
	if l != driver.LineDTR && l != driver.LineRTS {
		return fmt.Errorf("line %v is an input: %w", l, driver.ErrNotSupported)
	}
	bit, _ := lineBit(l)
	fd, err := s.handle()
	if err != nil {
		return err
	}
	req := uint(unix.TIOCMBIC)
	if on {
		req = unix.TIOCMBIS
	}
	return unix.IoctlSetPointerInt(fd, req, bit)
}

// serialIcounter mirrors struct serial_icounter_struct.
type serialIcounter struct {
	cts, dsr, rng, dcd int32
	rx, tx             int32
	frame, overrun     int32
	parity, brk        int32
	bufOverrun         int32
	reserved           [9]int32
}

func (s *serialSession) Status() (driver.SerialStatus, error) {
	fd, err := s.handle()
	if err != nil {
		return driver.SerialStatus{}, err
	}

	var st driver.SerialStatus
	bits, err := unix.IoctlGetInt(fd, unix.TIOCMGET)
	if err != nil {
		return st, fmt.Errorf("failed to get modem status: %w", err)
	}
	decodeModemBits(bits, &st)

	// Not every UART driver keeps counters; without them the error
	// categories simply never fire.
	var ic serialIcounter
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.TIOCGICOUNT), uintptr(unsafe.Pointer(&ic))); errno == 0 {
		st.Overrun = uint32(ic.overrun) + uint32(ic.bufOverrun)
		st.Parity = uint32(ic.parity)
		st.Framing = uint32(ic.frame)
		st.Break = uint32(ic.brk)
	}

	if lsr, err := unix.IoctlGetInt(fd, tiocSerGetLSR); err == nil {
		st.OutputEmpty = lsr&tiocSerTEMT != 0
	} else {
		st.OutputEmpty = true
	}
	return st, nil
}

func (s *serialSession) PollStatus(prev driver.SerialStatus, timeout time.Duration) (driver.SerialStatus, error) {
	var cur driver.SerialStatus
	err := driver.PollEvery(timeout, s.interval, func() (bool, error) {
		var err error
		cur, err = s.Status()
		return cur != prev, err
	})
	return cur, err
}

func (s *serialSession) PollDataAvailable(timeout time.Duration) (bool, error) {
	fd, err := s.handle()
	if err != nil {
		return false, err
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		if n > 0 && fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return false, fmt.Errorf("poll: revents %#x", fds[0].Revents)
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
	}
}

// SendBreak holds the line in break for d. Zero sends the standard break
// of 0.25 to 0.5 seconds.
func (s *serialSession) SendBreak(d time.Duration) error {
	fd, err := s.handle()
	if err != nil {
		return err
	}
	if d <= 0 {
		return unix.IoctlSetInt(fd, unix.TCSBRK, 0)
	}
	if err := unix.IoctlSetInt(fd, unix.TIOCSBRK, 0); err != nil {
		return err
	}
	time.Sleep(d)
	return unix.IoctlSetInt(fd, unix.TIOCCBRK, 0)
}

type printerSession struct {
	fdSession
}

// Read is not supported; printer devices are opened write-only.
func (s *printerSession) Read([]byte) (int, error) {
	if _, err := s.handle(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("read from printer port: %w", driver.ErrNotSupported)
}

// Flush is a no-op; the lp driver writes synchronously.
func (s *printerSession) Flush() error {
	_, err := s.handle()
	return err
}

func (s *printerSession) PrinterStatus() (driver.PrinterStatus, error) {
	fd, err := s.handle()
	if err != nil {
		return driver.PrinterStatus{}, err
	}
	var status int32
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), lpGetStatus, uintptr(unsafe.Pointer(&status))); errno != 0 {
		return driver.PrinterStatus{}, fmt.Errorf("LPGETSTATUS: %w", errno)
	}
	return decodePrinterStatus(int(status)), nil
}

func (s *printerSession) PollPrinterStatus(prev driver.PrinterStatus, timeout time.Duration) (driver.PrinterStatus, error) {
	var cur driver.PrinterStatus
	err := driver.PollEvery(timeout, s.interval, func() (bool, error) {
		var err error
		cur, err = s.PrinterStatus()
		return cur != prev, err
	})
	return cur, err
}
