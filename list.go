package commport

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Regular expressions for different types of port devices
var (
	serialPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
		regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
		regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
		regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
		regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
		regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
		regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
		regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
	}

	parallelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^lp\d+$`),      // Printer ports
		regexp.MustCompile(`^parport\d+$`), // Raw parallel ports
	}
)

// matchPort classifies a /dev entry name.
func matchPort(name string) (PortKind, bool) {
	for _, p := range serialPatterns {
		if p.MatchString(name) {
			return PortKindSerial, true
		}
	}
	for _, p := range parallelPatterns {
		if p.MatchString(name) {
			return PortKindParallel, true
		}
	}
	return 0, false
}

// DeviceScanner discovers character devices under Dir (default /dev). Each
// port is registered under its full device path.
type DeviceScanner struct {
	Dir string
	// CharDevicesOnly drops matching names that are not character devices.
	// Tests that scan a temporary directory leave it false.
	CharDevicesOnly bool
}

func (s DeviceScanner) Discover() ([]Discovered, error) {
	dir := s.Dir
	if dir == "" {
		dir = "/dev"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []Discovered
	for _, entry := range entries {
		kind, ok := matchPort(entry.Name())
		if !ok {
			continue
		}
		fullPath := filepath.Join(dir, entry.Name())
		if s.CharDevicesOnly && !isCharacterDevice(fullPath) {
			continue
		}
		out = append(out, Discovered{Name: fullPath, PhysicalID: fullPath, Kind: kind})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListPorts returns the paths of available serial and parallel ports.
func ListPorts() ([]string, error) {
	found, err := DeviceScanner{CharDevicesOnly: true}.Discover()
	if err != nil {
		return nil, err
	}
	ports := make([]string, len(found))
	for i, d := range found {
		ports[i] = d.PhysicalID
	}
	return ports, nil
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// PortInfo describes a device node.
type PortInfo struct {
	Name         string
	Path         string
	Kind         PortKind
	Description  string
	IsUSB        bool
	VendorID     string
	ProductID    string
	SerialNumber string
	Product      string
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPort, portPath)
	}

	name := filepath.Base(portPath)
	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Kind:        KindForPath(portPath),
		Description: getPortDescription(name),
	}

	if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
		details, err := enumerator.GetDetailedPortsList()
		if err == nil {
			enrichUSBInfo(info, details)
		}
	}
	return info, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	case strings.HasPrefix(name, "lp"):
		return "Printer Port"
	case strings.HasPrefix(name, "parport"):
		return "Parallel Port"
	default:
		return "Serial Port"
	}
}

// enrichUSBInfo copies USB metadata for info.Path from the enumerator list.
func enrichUSBInfo(info *PortInfo, details []*enumerator.PortDetails) {
	for _, d := range details {
		if d == nil || d.Name != info.Path || !d.IsUSB {
			continue
		}
		info.IsUSB = true
		info.VendorID = d.VID
		info.ProductID = d.PID
		info.SerialNumber = d.SerialNumber
		info.Product = d.Product
		return
	}
}
