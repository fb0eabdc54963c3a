package commport

import (
	"fmt"
	"io"
	"time"

	"github.com/allbin/go-commport/driver"
	"github.com/sirupsen/logrus"
)

// StopBits is the number of stop bits. The values match the classic comm
// API constants, so 1.5 stop bits is 3.
type StopBits int

const (
	StopBits1   StopBits = 1
	StopBits2   StopBits = 2
	StopBits1_5 StopBits = 3
)

func (s StopBits) String() string {
	switch s {
	case StopBits1:
		return "1"
	case StopBits2:
		return "2"
	case StopBits1_5:
		return "1.5"
	default:
		return fmt.Sprintf("StopBits(%d)", int(s))
	}
}

func (s StopBits) valid() bool {
	return s == StopBits1 || s == StopBits2 || s == StopBits1_5
}

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

func (p Parity) valid() bool {
	return p >= ParityNone && p <= ParitySpace
}

// FlowControl is a bitmask of flow control modes per direction.
type FlowControl int

const (
	FlowControlNone       FlowControl = driver.FlowNone
	FlowControlRTSCTSIn   FlowControl = driver.FlowRTSCTSIn
	FlowControlRTSCTSOut  FlowControl = driver.FlowRTSCTSOut
	FlowControlXonXoffIn  FlowControl = driver.FlowXonXoffIn
	FlowControlXonXoffOut FlowControl = driver.FlowXonXoffOut

	flowControlHardware = FlowControlRTSCTSIn | FlowControlRTSCTSOut
	flowControlSoftware = FlowControlXonXoffIn | FlowControlXonXoffOut
)

// Validate rejects unknown bits and any mix of RTS/CTS with XON/XOFF.
func (f FlowControl) Validate() error {
	if f&^(flowControlHardware|flowControlSoftware) != 0 {
		return fmt.Errorf("%w: flow control %#x has unknown bits", ErrUnsupportedOperation, int(f))
	}
	if f&flowControlHardware != 0 && f&flowControlSoftware != 0 {
		return fmt.Errorf("%w: cannot mix RTS/CTS and XON/XOFF flow control (%s)", ErrUnsupportedOperation, f)
	}
	return nil
}

func (f FlowControl) String() string {
	if f == FlowControlNone {
		return "none"
	}
	var s string
	add := func(bit FlowControl, name string) {
		if f&bit == 0 {
			return
		}
		if s != "" {
			s += "|"
		}
		s += name
	}
	add(FlowControlRTSCTSIn, "rtscts-in")
	add(FlowControlRTSCTSOut, "rtscts-out")
	add(FlowControlXonXoffIn, "xonxoff-in")
	add(FlowControlXonXoffOut, "xonxoff-out")
	if rest := f &^ (flowControlHardware | flowControlSoftware); rest != 0 {
		if s != "" {
			s += "|"
		}
		s += fmt.Sprintf("%#x", int(rest))
	}
	return s
}

// LineParams is the serial framing configuration.
type LineParams struct {
	BaudRate int
	DataBits int
	StopBits StopBits
	Parity   Parity
}

// DefaultLineParams returns 9600 8N1.
func DefaultLineParams() LineParams {
	return LineParams{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: StopBits1,
		Parity:   ParityNone,
	}
}

// Validate checks every field against its allowed range.
func (lp LineParams) Validate() error {
	if lp.BaudRate <= 0 {
		return fmt.Errorf("%w: baud rate %d", ErrUnsupportedOperation, lp.BaudRate)
	}
	if lp.DataBits < 5 || lp.DataBits > 8 {
		return fmt.Errorf("%w: data bits %d", ErrUnsupportedOperation, lp.DataBits)
	}
	if !lp.StopBits.valid() {
		return fmt.Errorf("%w: stop bits %d", ErrUnsupportedOperation, int(lp.StopBits))
	}
	if !lp.Parity.valid() {
		return fmt.Errorf("%w: parity %d", ErrUnsupportedOperation, int(lp.Parity))
	}
	return nil
}

func (lp LineParams) String() string {
	return fmt.Sprintf("%d %d%s%s", lp.BaudRate, lp.DataBits, lp.Parity, lp.StopBits)
}

// stopBitsToOrdinal and stopBitsFromOrdinal hold the fixed driver mapping:
// ordinal 0 is 1.5 stop bits, 1 is one, 2 is two.
func stopBitsToOrdinal(s StopBits) int {
	switch s {
	case StopBits1_5:
		return driver.StopBitsOnePointFive
	case StopBits2:
		return driver.StopBitsTwo
	default:
		return driver.StopBitsOne
	}
}

func stopBitsFromOrdinal(ord int) (StopBits, bool) {
	switch ord {
	case driver.StopBitsOnePointFive:
		return StopBits1_5, true
	case driver.StopBitsOne:
		return StopBits1, true
	case driver.StopBitsTwo:
		return StopBits2, true
	default:
		return 0, false
	}
}

func (lp LineParams) toDriver() driver.LineParams {
	return driver.LineParams{
		BaudRate: lp.BaudRate,
		DataBits: lp.DataBits,
		StopBits: stopBitsToOrdinal(lp.StopBits),
		Parity:   int(lp.Parity),
	}
}

// mergeDriver overlays the fields the driver could report onto lp.
func (lp LineParams) mergeDriver(d driver.LineParams) LineParams {
	out := lp
	if d.BaudRate > 0 {
		out.BaudRate = d.BaudRate
	}
	if d.DataBits >= 5 && d.DataBits <= 8 {
		out.DataBits = d.DataBits
	}
	if s, ok := stopBitsFromOrdinal(d.StopBits); ok {
		out.StopBits = s
	}
	if p := Parity(d.Parity); d.Parity != driver.Unknown && p.valid() {
		out.Parity = p
	}
	return out
}

// Config holds the configuration applied when a port is opened.
type Config struct {
	Line        LineParams
	FlowControl FlowControl
	InitialDTR  *bool
	InitialRTS  *bool

	// ReceiveTimeout bounds reads when the driver supports it. Zero leaves
	// the driver default in place.
	ReceiveTimeout time.Duration

	// PollInterval bounds each driver poll made by monitor goroutines and
	// therefore how quickly they observe a stop request.
	PollInterval time.Duration
	// StopTimeout bounds how long Close and notify changes wait for a
	// monitor goroutine to exit before abandoning it.
	StopTimeout time.Duration

	OutputBufferSize int

	Logger       *logrus.Entry
	FaultHandler FaultHandler

	lineSet bool
	flowSet bool
}

// Option is a functional option for configuring a port
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Line:         DefaultLineParams(),
		FlowControl:  FlowControlNone,
		PollInterval: 100 * time.Millisecond,
		StopTimeout:  5 * time.Second,
		Logger:       discardLogger(),
	}
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// WithLineParams sets the complete framing applied at open.
func WithLineParams(lp LineParams) Option {
	return func(c *Config) error {
		if err := lp.Validate(); err != nil {
			return err
		}
		c.Line = lp
		c.lineSet = true
		return nil
	}
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if rate <= 0 {
			return fmt.Errorf("%w: baud rate %d", ErrUnsupportedOperation, rate)
		}
		c.Line.BaudRate = rate
		c.lineSet = true
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return fmt.Errorf("%w: data bits %d", ErrUnsupportedOperation, bits)
		}
		c.Line.DataBits = bits
		c.lineSet = true
		return nil
	}
}

// WithStopBits sets the number of stop bits
func WithStopBits(bits StopBits) Option {
	return func(c *Config) error {
		if !bits.valid() {
			return fmt.Errorf("%w: stop bits %d", ErrUnsupportedOperation, int(bits))
		}
		c.Line.StopBits = bits
		c.lineSet = true
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		if !parity.valid() {
			return fmt.Errorf("%w: parity %d", ErrUnsupportedOperation, int(parity))
		}
		c.Line.Parity = parity
		c.lineSet = true
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(c *Config) error {
		if err := fc.Validate(); err != nil {
			return err
		}
		c.FlowControl = fc
		c.flowSet = true
		return nil
	}
}

// WithInitialDTR sets DTR right after the port is opened
func WithInitialDTR(state bool) Option {
	return func(c *Config) error {
		c.InitialDTR = &state
		return nil
	}
}

// WithInitialRTS sets RTS right after the port is opened
func WithInitialRTS(state bool) Option {
	return func(c *Config) error {
		c.InitialRTS = &state
		return nil
	}
}

// WithReceiveTimeout enables the receive timeout at open
func WithReceiveTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 {
			return fmt.Errorf("%w: receive timeout %v", ErrUnsupportedOperation, timeout)
		}
		c.ReceiveTimeout = timeout
		return nil
	}
}

// WithPollInterval sets the monitor poll interval
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("%w: poll interval %v", ErrUnsupportedOperation, d)
		}
		c.PollInterval = d
		return nil
	}
}

// WithStopTimeout sets how long a monitor is waited for on stop
func WithStopTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("%w: stop timeout %v", ErrUnsupportedOperation, d)
		}
		c.StopTimeout = d
		return nil
	}
}

// WithOutputBufferSize records the advisory output buffer size
func WithOutputBufferSize(size int) Option {
	return func(c *Config) error {
		if size < 0 {
			return fmt.Errorf("%w: output buffer size %d", ErrUnsupportedOperation, size)
		}
		c.OutputBufferSize = size
		return nil
	}
}

// WithLogger sets the logger used for lifecycle and fault messages
func WithLogger(l *logrus.Entry) Option {
	return func(c *Config) error {
		if l != nil {
			c.Logger = l
		}
		return nil
	}
}

// WithFaultHandler registers a callback for monitor faults
func WithFaultHandler(h FaultHandler) Option {
	return func(c *Config) error {
		c.FaultHandler = h
		return nil
	}
}
