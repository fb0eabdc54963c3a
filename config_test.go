package commport

import (
	"errors"
	"testing"
	"time"

	"github.com/allbin/go-commport/driver"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Line != DefaultLineParams() {
		t.Errorf("Line = %v, want %v", config.Line, DefaultLineParams())
	}
	if config.Line.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", config.Line.BaudRate)
	}
	if config.Line.StopBits != StopBits1 {
		t.Errorf("StopBits = %v, want 1", config.Line.StopBits)
	}
	if config.FlowControl != FlowControlNone {
		t.Errorf("FlowControl = %v, want none", config.FlowControl)
	}
	if config.PollInterval != 100*time.Millisecond {
		t.Errorf("PollInterval = %v, want 100ms", config.PollInterval)
	}
	if config.StopTimeout != 5*time.Second {
		t.Errorf("StopTimeout = %v, want 5s", config.StopTimeout)
	}
	if config.Logger == nil {
		t.Error("Logger is nil")
	}
	if config.lineSet || config.flowSet {
		t.Error("default config marks line or flow as set")
	}
}

func TestFunctionalOptions(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		check   func(Config) bool
		wantErr bool
	}{
		{"baud", WithBaudRate(115200), func(c Config) bool { return c.Line.BaudRate == 115200 && c.lineSet }, false},
		{"baud zero", WithBaudRate(0), nil, true},
		{"data bits 7", WithDataBits(7), func(c Config) bool { return c.Line.DataBits == 7 }, false},
		{"data bits 9", WithDataBits(9), nil, true},
		{"stop bits 2", WithStopBits(StopBits2), func(c Config) bool { return c.Line.StopBits == StopBits2 }, false},
		{"stop bits 1.5", WithStopBits(StopBits1_5), func(c Config) bool { return c.Line.StopBits == StopBits1_5 }, false},
		{"stop bits 4", WithStopBits(4), nil, true},
		{"parity even", WithParity(ParityEven), func(c Config) bool { return c.Line.Parity == ParityEven }, false},
		{"parity 9", WithParity(9), nil, true},
		{"flow rtscts", WithFlowControl(FlowControlRTSCTSIn | FlowControlRTSCTSOut), func(c Config) bool { return c.flowSet }, false},
		{"flow mixed", WithFlowControl(FlowControlRTSCTSIn | FlowControlXonXoffOut), nil, true},
		{"initial dtr", WithInitialDTR(true), func(c Config) bool { return c.InitialDTR != nil && *c.InitialDTR }, false},
		{"initial rts", WithInitialRTS(false), func(c Config) bool { return c.InitialRTS != nil && !*c.InitialRTS }, false},
		{"receive timeout", WithReceiveTimeout(time.Second), func(c Config) bool { return c.ReceiveTimeout == time.Second }, false},
		{"receive timeout negative", WithReceiveTimeout(-time.Second), nil, true},
		{"poll interval", WithPollInterval(time.Millisecond), func(c Config) bool { return c.PollInterval == time.Millisecond }, false},
		{"poll interval zero", WithPollInterval(0), nil, true},
		{"stop timeout zero", WithStopTimeout(0), nil, true},
		{"output buffer", WithOutputBufferSize(512), func(c Config) bool { return c.OutputBufferSize == 512 }, false},
		{"output buffer negative", WithOutputBufferSize(-1), nil, true},
		{"nil logger keeps default", WithLogger(nil), func(c Config) bool { return c.Logger != nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			err := tt.opt(&config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("option error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsupportedOperation) {
				t.Errorf("option error = %v, want ErrUnsupportedOperation", err)
			}
			if tt.check != nil && !tt.check(config) {
				t.Errorf("config after option = %+v", config)
			}
		})
	}
}

func TestWithLineParams(t *testing.T) {
	config := DefaultConfig()
	lp := LineParams{BaudRate: 19200, DataBits: 7, StopBits: StopBits2, Parity: ParityOdd}
	if err := WithLineParams(lp)(&config); err != nil {
		t.Fatalf("WithLineParams() error = %v", err)
	}
	if config.Line != lp {
		t.Errorf("Line = %v, want %v", config.Line, lp)
	}

	bad := lp
	bad.StopBits = 0
	if err := WithLineParams(bad)(&config); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("WithLineParams(stop 0) error = %v, want ErrUnsupportedOperation", err)
	}
	if config.Line != lp {
		t.Errorf("Line changed by rejected option: %v", config.Line)
	}
}

func TestFlowControlValidate(t *testing.T) {
	tests := []struct {
		fc      FlowControl
		wantErr bool
	}{
		{FlowControlNone, false},
		{FlowControlRTSCTSIn, false},
		{FlowControlRTSCTSIn | FlowControlRTSCTSOut, false},
		{FlowControlXonXoffIn | FlowControlXonXoffOut, false},
		{FlowControlXonXoffOut, false},
		{FlowControlRTSCTSIn | FlowControlXonXoffIn, true},
		{FlowControlRTSCTSOut | FlowControlXonXoffIn, true},
		{FlowControl(16), true},
	}

	for _, tt := range tests {
		t.Run(tt.fc.String(), func(t *testing.T) {
			err := tt.fc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFlowControlString(t *testing.T) {
	tests := []struct {
		fc   FlowControl
		want string
	}{
		{FlowControlNone, "none"},
		{FlowControlRTSCTSIn | FlowControlRTSCTSOut, "rtscts-in|rtscts-out"},
		{FlowControlXonXoffOut, "xonxoff-out"},
		{FlowControlXonXoffIn | 32, "xonxoff-in|0x20"},
	}
	for _, tt := range tests {
		if got := tt.fc.String(); got != tt.want {
			t.Errorf("FlowControl(%d).String() = %q, want %q", int(tt.fc), got, tt.want)
		}
	}
}

func TestStopBitsOrdinals(t *testing.T) {
	tests := []struct {
		sb      StopBits
		ordinal int
	}{
		{StopBits1_5, driver.StopBitsOnePointFive},
		{StopBits1, driver.StopBitsOne},
		{StopBits2, driver.StopBitsTwo},
	}

	for _, tt := range tests {
		t.Run(tt.sb.String(), func(t *testing.T) {
			if got := stopBitsToOrdinal(tt.sb); got != tt.ordinal {
				t.Errorf("stopBitsToOrdinal(%v) = %d, want %d", tt.sb, got, tt.ordinal)
			}
			got, ok := stopBitsFromOrdinal(tt.ordinal)
			if !ok || got != tt.sb {
				t.Errorf("stopBitsFromOrdinal(%d) = %v, %v, want %v", tt.ordinal, got, ok, tt.sb)
			}
		})
	}

	if _, ok := stopBitsFromOrdinal(3); ok {
		t.Error("stopBitsFromOrdinal(3) ok = true, want false")
	}
}

func TestLineParamsMergeDriver(t *testing.T) {
	cached := LineParams{BaudRate: 19200, DataBits: 7, StopBits: StopBits2, Parity: ParityEven}

	unknown := driver.LineParams{BaudRate: driver.Unknown, DataBits: driver.Unknown, StopBits: driver.Unknown, Parity: driver.Unknown}
	if got := cached.mergeDriver(unknown); got != cached {
		t.Errorf("mergeDriver(unknown) = %v, want %v", got, cached)
	}

	partial := driver.LineParams{BaudRate: 57600, DataBits: driver.Unknown, StopBits: driver.StopBitsOne, Parity: driver.Unknown}
	want := LineParams{BaudRate: 57600, DataBits: 7, StopBits: StopBits1, Parity: ParityEven}
	if got := cached.mergeDriver(partial); got != want {
		t.Errorf("mergeDriver(partial) = %v, want %v", got, want)
	}
}

func TestLineParamsString(t *testing.T) {
	tests := []struct {
		lp   LineParams
		want string
	}{
		{DefaultLineParams(), "9600 8N1"},
		{LineParams{BaudRate: 1200, DataBits: 5, StopBits: StopBits1_5, Parity: ParityMark}, "1200 5M1.5"},
		{LineParams{BaudRate: 19200, DataBits: 7, StopBits: StopBits2, Parity: ParityEven}, "19200 7E2"},
	}
	for _, tt := range tests {
		if got := tt.lp.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
