//go:build linux

// Package termios is a Linux driver.Driver built directly on termios and
// tty ioctls. Serial devices get full line control and status counters;
// /dev/lpN printer ports get status polling through LPGETSTATUS.
package termios

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/allbin/go-commport/driver"
	"golang.org/x/sys/unix"
)

// Driver opens tty and printer devices.
type Driver struct {
	// ReadTimeout bounds each read at open. Defaults to 100ms; tenths of a
	// second is the finest resolution. Zero makes reads wait for data.
	ReadTimeout time.Duration
	// StatusInterval is how often PollStatus samples the lines.
	StatusInterval time.Duration
}

func New() *Driver {
	return &Driver{
		ReadTimeout:    100 * time.Millisecond,
		StatusInterval: 10 * time.Millisecond,
	}
}

// Open implements driver.Driver. Paths under lp* are opened as printer
// ports, everything else as a serial tty.
func (d *Driver) Open(path string) (driver.Session, error) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, "parport") {
		return nil, fmt.Errorf("%s: raw parport devices are not supported, use /dev/lpN: %w", path, driver.ErrNotSupported)
	}
	if strings.HasPrefix(name, "lp") {
		return d.openPrinter(path)
	}
	return d.openSerial(path)
}

func (d *Driver) openSerial(path string) (*serialSession, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if err := makeRaw(fd, d.ReadTimeout); err != nil {
		unix.Close(fd)
		return nil, err
	}

	interval := d.StatusInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	_, blocking := readTimeoutCc(d.ReadTimeout)
	return &serialSession{fdSession{fd: fd, blocking: blocking, interval: interval}}, nil
}

func (d *Driver) openPrinter(path string) (*printerSession, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	interval := d.StatusInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &printerSession{fdSession{fd: fd, interval: interval}}, nil
}

// makeRaw switches fd to raw mode, keeping the current speed and framing.
func makeRaw(fd int, readTimeout time.Duration) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL
	t.Oflag = 0 // No output processing
	t.Lflag = 0 // No line processing (raw mode)
	t.Cflag |= unix.CREAD | unix.CLOCAL

	// Timeout: VMIN=0, VTIME in deciseconds
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME], _ = readTimeoutCc(readTimeout)

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

// readTimeoutCc maps a read timeout onto VTIME. Zero has no VTIME form: it
// becomes one tenth slices that Read repeats until data arrives, so a
// blocked read still notices Close.
func readTimeoutCc(d time.Duration) (vt uint8, blocking bool) {
	if d <= 0 {
		return 1, true
	}
	return vtime(d), false
}

// vtime converts d to VTIME tenths, rounding up and clamping to 255.
func vtime(d time.Duration) uint8 {
	if d <= 0 {
		return 0
	}
	tenths := (d + 100*time.Millisecond - 1) / (100 * time.Millisecond)
	if tenths > 255 {
		tenths = 255
	}
	return uint8(tenths)
}

// applyLineParams writes lp into t. 1.5 stop bits is only representable
// with 5 data bits, where CSTOPB means one and a half.
func applyLineParams(t *unix.Termios, lp driver.LineParams) error {
	speed, err := getBaudRate(lp.BaudRate)
	if err != nil {
		return fmt.Errorf("%w: %d", err, lp.BaudRate)
	}

	var size uint32
	switch lp.DataBits {
	case 5:
		size = unix.CS5
	case 6:
		size = unix.CS6
	case 7:
		size = unix.CS7
	case 8:
		size = unix.CS8
	default:
		return fmt.Errorf("invalid data bits %d", lp.DataBits)
	}

	cflag := t.Cflag &^ (unix.CBAUD | unix.CSIZE | unix.CSTOPB | unix.PARENB | unix.PARODD | unix.CMSPAR)
	cflag |= speed | size

	switch lp.StopBits {
	case driver.StopBitsOne:
	case driver.StopBitsTwo:
		if lp.DataBits == 5 {
			return fmt.Errorf("2 stop bits are not available with 5 data bits")
		}
		cflag |= unix.CSTOPB
	case driver.StopBitsOnePointFive:
		if lp.DataBits != 5 {
			return fmt.Errorf("1.5 stop bits require 5 data bits")
		}
		cflag |= unix.CSTOPB
	default:
		return fmt.Errorf("invalid stop bits ordinal %d", lp.StopBits)
	}

	switch lp.Parity {
	case driver.ParityNone:
	case driver.ParityOdd:
		cflag |= unix.PARENB | unix.PARODD
	case driver.ParityEven:
		cflag |= unix.PARENB
	case driver.ParityMark:
		cflag |= unix.PARENB | unix.CMSPAR | unix.PARODD
	case driver.ParitySpace:
		cflag |= unix.PARENB | unix.CMSPAR
	default:
		return fmt.Errorf("invalid parity ordinal %d", lp.Parity)
	}

	t.Cflag = cflag
	t.Ispeed = speed
	t.Ospeed = speed
	return nil
}

func readLineParams(t *unix.Termios) driver.LineParams {
	lp := driver.LineParams{
		BaudRate: baudFromCflag(t.Cflag),
		StopBits: driver.StopBitsOne,
		Parity:   driver.ParityNone,
	}

	switch t.Cflag & unix.CSIZE {
	case unix.CS5:
		lp.DataBits = 5
	case unix.CS6:
		lp.DataBits = 6
	case unix.CS7:
		lp.DataBits = 7
	default:
		lp.DataBits = 8
	}

	if t.Cflag&unix.CSTOPB != 0 {
		if lp.DataBits == 5 {
			lp.StopBits = driver.StopBitsOnePointFive
		} else {
			lp.StopBits = driver.StopBitsTwo
		}
	}

	if t.Cflag&unix.PARENB != 0 {
		odd := t.Cflag&unix.PARODD != 0
		switch {
		case t.Cflag&unix.CMSPAR != 0 && odd:
			lp.Parity = driver.ParityMark
		case t.Cflag&unix.CMSPAR != 0:
			lp.Parity = driver.ParitySpace
		case odd:
			lp.Parity = driver.ParityOdd
		default:
			lp.Parity = driver.ParityEven
		}
	}
	return lp
}

// applyFlowControl maps the mask onto termios. Linux has a single CRTSCTS
// switch, so either RTS/CTS direction enables both.
func applyFlowControl(t *unix.Termios, mask int) {
	t.Cflag &^= unix.CRTSCTS
	t.Iflag &^= unix.IXON | unix.IXOFF
	if mask&(driver.FlowRTSCTSIn|driver.FlowRTSCTSOut) != 0 {
		t.Cflag |= unix.CRTSCTS
	}
	if mask&driver.FlowXonXoffIn != 0 {
		t.Iflag |= unix.IXOFF
	}
	if mask&driver.FlowXonXoffOut != 0 {
		t.Iflag |= unix.IXON
	}
}

func readFlowControl(t *unix.Termios) int {
	mask := driver.FlowNone
	if t.Cflag&unix.CRTSCTS != 0 {
		mask |= driver.FlowRTSCTSIn | driver.FlowRTSCTSOut
	}
	if t.Iflag&unix.IXOFF != 0 {
		mask |= driver.FlowXonXoffIn
	}
	if t.Iflag&unix.IXON != 0 {
		mask |= driver.FlowXonXoffOut
	}
	return mask
}

// lineBit maps a control line to its TIOCM bit.
func lineBit(l driver.Line) (int, bool) {
	switch l {
	case driver.LineDTR:
		return unix.TIOCM_DTR, true
	case driver.LineRTS:
		return unix.TIOCM_RTS, true
	case driver.LineCTS:
		return unix.TIOCM_CTS, true
	case driver.LineDSR:
		return unix.TIOCM_DSR, true
	case driver.LineRI:
		return unix.TIOCM_RI, true
	case driver.LineCD:
		return unix.TIOCM_CAR, true
	}
	return 0, false
}

func decodeModemBits(bits int, st *driver.SerialStatus) {
	st.CTS = bits&unix.TIOCM_CTS != 0
	st.DSR = bits&unix.TIOCM_DSR != 0
	st.RI = bits&unix.TIOCM_RI != 0
	st.CD = bits&unix.TIOCM_CAR != 0
}

// Line status register request from linux/serial.h.
const (
	tiocSerGetLSR = 0x5459
	tiocSerTEMT   = 0x01
)

// LPGETSTATUS and the status bits from linux/lp.h.
const (
	lpGetStatus = 0x060b

	lpPBusy    = 0x80 // inverted: clear while busy
	lpPOutPa   = 0x20
	lpPSelecd  = 0x10
	lpPErrorP  = 0x08 // active low
	lpPTimeout = 0x01 // unused by the kernel, kept for completeness
)

func decodePrinterStatus(status int) driver.PrinterStatus {
	busy := status&lpPBusy == 0
	return driver.PrinterStatus{
		PaperOut:    status&lpPOutPa != 0,
		Busy:        busy,
		Selected:    status&lpPSelecd != 0,
		TimedOut:    status&lpPTimeout != 0,
		Fault:       status&lpPErrorP == 0,
		OutputEmpty: !busy,
	}
}
