package commport

import (
	"errors"
	"io"
	"testing"

	"github.com/allbin/go-commport/driver"
)

func TestParallelPort(t *testing.T) {
	reg, sim := newTestRegistry(t)
	dev := sim.Device("/dev/lp0")

	pp, err := reg.OpenParallel("LPT1", WithOutputBufferSize(32))
	if err != nil {
		t.Fatalf("OpenParallel() error = %v", err)
	}
	defer pp.Close()

	if pp.Kind() != PortKindParallel {
		t.Errorf("Kind() = %v, want PARALLEL", pp.Kind())
	}
	if pp.Mode() != ParallelModeSPP {
		t.Errorf("Mode() = %v, want SPP", pp.Mode())
	}
	if err := pp.SetMode(ParallelModeECP); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("SetMode(ECP) error = %v, want ErrUnsupportedOperation", err)
	}

	pp.Suspend()
	if !pp.IsOutputSuspended() {
		t.Error("IsOutputSuspended() = false after Suspend")
	}
	pp.Restart()
	if pp.IsOutputSuspended() {
		t.Error("IsOutputSuspended() = true after Restart")
	}

	if got := pp.OutputBufferFree(); got != 32 {
		t.Errorf("OutputBufferFree() = %d, want 32", got)
	}
	out, _ := pp.OutputStream()
	io.WriteString(out, "PRINT")
	if got := pp.OutputBufferFree(); got != 27 {
		t.Errorf("OutputBufferFree() = %d, want 27", got)
	}

	dev.SetPrinterStatus(driver.PrinterStatus{PaperOut: true, Busy: true, Fault: true})
	tests := []struct {
		name string
		get  func() (bool, error)
		want bool
	}{
		{"PaperOut", pp.PaperOut, true},
		{"PrinterBusy", pp.PrinterBusy, true},
		{"PrinterSelected", pp.PrinterSelected, false},
		{"PrinterTimedOut", pp.PrinterTimedOut, false},
		{"PrinterError", pp.PrinterError, true},
	}
	for _, tt := range tests {
		got, err := tt.get()
		if err != nil {
			t.Errorf("%s() error = %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParallelClosed(t *testing.T) {
	reg, _ := newTestRegistry(t)
	pp, err := reg.OpenParallel("LPT1")
	if err != nil {
		t.Fatalf("OpenParallel() error = %v", err)
	}
	pp.Close()
	if _, err := pp.PaperOut(); !errors.Is(err, ErrIO) {
		t.Errorf("PaperOut() after Close error = %v, want ErrIO", err)
	}
}

func TestParallelModeString(t *testing.T) {
	tests := map[ParallelMode]string{
		ParallelModeAny:    "any",
		ParallelModeSPP:    "SPP",
		ParallelModePS2:    "PS/2",
		ParallelModeEPP:    "EPP",
		ParallelModeECP:    "ECP",
		ParallelModeNibble: "nibble",
	}
	for m, want := range tests {
		if got := m.String(); got != want {
			t.Errorf("ParallelMode(%d).String() = %q, want %q", int(m), got, want)
		}
	}
}
