package commport

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.bug.st/serial/enumerator"
)

func TestListPorts(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Errorf("ListPorts failed: %v", err)
	}

	for _, port := range ports {
		if !strings.HasPrefix(port, "/dev/") {
			t.Errorf("Port path doesn't start with /dev/: %s", port)
		}
		if !isCharacterDevice(port) {
			t.Errorf("Port is not a character device: %s", port)
		}
	}

	for i := 1; i < len(ports); i++ {
		if ports[i-1] > ports[i] {
			t.Errorf("Ports are not sorted: %s > %s", ports[i-1], ports[i])
		}
	}
}

func TestIsCharacterDevice(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/dev/null", true},
		{"/dev/zero", true},
		{os.TempDir(), false},
		{"/nonexistent", false},
	}

	for _, test := range tests {
		result := isCharacterDevice(test.path)
		if result != test.expected {
			t.Errorf("isCharacterDevice(%s) = %v, expected %v", test.path, result, test.expected)
		}
	}
}

func TestGetPortDescription(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"ttyUSB0", "USB Serial Port"},
		{"ttyACM0", "USB CDC/ACM Device"},
		{"ttyS0", "Standard Serial Port"},
		{"ttyAMA0", "ARM Serial Port"},
		{"ttymxc0", "i.MX Serial Port"},
		{"ttyO0", "OMAP Serial Port"},
		{"ttySAC0", "Samsung Serial Port"},
		{"ttyTHS0", "Tegra Serial Port"},
		{"lp0", "Printer Port"},
		{"parport0", "Parallel Port"},
		{"unknown", "Serial Port"},
	}

	for _, test := range tests {
		result := getPortDescription(test.name)
		if result != test.expected {
			t.Errorf("getPortDescription(%s) = %s, expected %s", test.name, result, test.expected)
		}
	}
}

func TestGetPortInfo(t *testing.T) {
	info, err := GetPortInfo("/dev/null")
	if err != nil {
		t.Fatalf("GetPortInfo failed for /dev/null: %v", err)
	}
	if info.Name != "null" {
		t.Errorf("Expected name 'null', got '%s'", info.Name)
	}
	if info.Path != "/dev/null" {
		t.Errorf("Expected path '/dev/null', got '%s'", info.Path)
	}
	if info.Kind != PortKindSerial {
		t.Errorf("Expected kind SERIAL, got %v", info.Kind)
	}

	_, err = GetPortInfo("/dev/nonexistent")
	if !errors.Is(err, ErrNoSuchPort) {
		t.Errorf("Expected ErrNoSuchPort, got %v", err)
	}
}

func TestMatchPort(t *testing.T) {
	tests := []struct {
		name        string
		shouldMatch bool
		kind        PortKind
	}{
		{"ttyUSB0", true, PortKindSerial},
		{"ttyUSB1", true, PortKindSerial},
		{"ttyACM0", true, PortKindSerial},
		{"ttyS0", true, PortKindSerial},
		{"ttyAMA0", true, PortKindSerial},
		{"lp0", true, PortKindParallel},
		{"parport2", true, PortKindParallel},
		{"tty1", false, 0},    // Virtual terminal
		{"console", false, 0}, // Console
		{"ptmx", false, 0},    // Pseudo-terminal
		{"lpx", false, 0},
		{"random", false, 0},
	}

	for _, test := range tests {
		kind, ok := matchPort(test.name)
		if ok != test.shouldMatch {
			t.Errorf("matchPort(%s) matched = %v, expected %v", test.name, ok, test.shouldMatch)
			continue
		}
		if ok && kind != test.kind {
			t.Errorf("matchPort(%s) kind = %v, expected %v", test.name, kind, test.kind)
		}
	}
}

func TestDeviceScannerDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ttyUSB1", "ttyS0", "lp0", "tty1", "null"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	found, err := DeviceScanner{Dir: dir}.Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	want := []Discovered{
		{Name: filepath.Join(dir, "lp0"), PhysicalID: filepath.Join(dir, "lp0"), Kind: PortKindParallel},
		{Name: filepath.Join(dir, "ttyS0"), PhysicalID: filepath.Join(dir, "ttyS0"), Kind: PortKindSerial},
		{Name: filepath.Join(dir, "ttyUSB1"), PhysicalID: filepath.Join(dir, "ttyUSB1"), Kind: PortKindSerial},
	}
	if len(found) != len(want) {
		t.Fatalf("Discover() = %v, want %v", found, want)
	}
	for i := range want {
		if found[i] != want[i] {
			t.Errorf("Discover()[%d] = %+v, want %+v", i, found[i], want[i])
		}
	}

	// Regular files are not character devices.
	found, err = DeviceScanner{Dir: dir, CharDevicesOnly: true}.Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 0 {
		t.Errorf("Discover() with CharDevicesOnly = %v, want none", found)
	}

	if _, err := (DeviceScanner{Dir: filepath.Join(dir, "missing")}).Discover(); err == nil {
		t.Error("Discover() on missing dir error = nil")
	}
}

func TestEnrichUSBInfo(t *testing.T) {
	info := &PortInfo{Path: "/dev/ttyUSB0"}
	enrichUSBInfo(info, []*enumerator.PortDetails{
		nil,
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "dead"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "A123", Product: "FT232R"},
	})
	if !info.IsUSB || info.VendorID != "0403" || info.ProductID != "6001" ||
		info.SerialNumber != "A123" || info.Product != "FT232R" {
		t.Errorf("enrichUSBInfo() = %+v", info)
	}
}

// BenchmarkListPorts benchmarks the ListPorts function
func BenchmarkListPorts(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, err := ListPorts()
		if err != nil {
			b.Errorf("ListPorts failed: %v", err)
		}
	}
}

// TestListPortsIntegration is an integration test that requires actual system
func TestListPortsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ports, err := ListPorts()
	if err != nil {
		t.Fatalf("ListPorts failed: %v", err)
	}

	t.Logf("Found %d ports:", len(ports))
	for i, port := range ports {
		info, err := GetPortInfo(port)
		if err != nil {
			t.Logf("  %d. %s (error getting info: %v)", i+1, port, err)
		} else {
			t.Logf("  %d. %s (%s)", i+1, port, info.Description)
		}
	}
}
