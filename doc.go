// Package commport provides exclusive access to serial and parallel ports
// with asynchronous notification of hardware line changes.
//
// The package never touches OS handles itself. A driver.Driver supplies
// sessions; driver/termios talks to Linux ttys and printer ports,
// driver/bugst wraps go.bug.st/serial, and internal/simdriver backs the
// tests.
//
// # Basic Usage
//
// Build a registry once at startup, then open ports by logical name:
//
//	reg, err := commport.NewRegistry(termios.New(), commport.MultiSource{
//	    commport.AliasSource{"COM1": "/dev/ttyS0"},
//	    commport.DeviceScanner{},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	port, err := reg.OpenSerial("COM1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	out, _ := port.OutputStream()
//	out.Write([]byte("ATZ\r"))
//
// Opening a port that is already open fails with ErrPortInUse; unknown
// names fail with ErrNoSuchPort.
//
// # Configuration
//
// Line parameters can be applied at open with functional options or later
// on the open port:
//
//	port, err := reg.OpenSerial("COM1",
//	    commport.WithBaudRate(115200),
//	    commport.WithFlowControl(commport.FlowControlRTSCTSIn|commport.FlowControlRTSCTSOut),
//	    commport.WithInitialDTR(true),
//	)
//
//	err = port.SetLineParams(9600, 8, commport.StopBits1, commport.ParityNone)
//
// Invalid values, driver rejections and mixed RTS/CTS with XON/XOFF flow
// control fail with ErrUnsupportedOperation and leave the previous
// configuration in place.
//
// # Events
//
// Each port has at most one listener. Enabling a category starts the
// monitor goroutine for its group if none is running:
//
//	err = port.RegisterListener(commport.ListenerFunc(func(e commport.Event) error {
//	    fmt.Println(e)
//	    return nil
//	}))
//	err = port.SetNotify(commport.EventCTS, true)
//	err = port.SetNotify(commport.EventDataAvailable, true)
//
// Serial line and error categories share the status monitor, data
// availability has its own, and parallel ports have an error monitor.
// Listener errors and panics are reported to the logger and the
// WithFaultHandler callback; the monitor keeps polling.
//
// Close stops every monitor before releasing the device. Once Close
// returns no further events are delivered. A monitor stuck in its driver
// for longer than the stop timeout is abandoned and logged.
//
// # Error Handling
//
// Use errors.Is() for error type checking:
//
//	if errors.Is(err, commport.ErrPortInUse) {
//	    // someone else owns the port
//	}
//
// # Default Configuration
//
//   - BaudRate: 9600
//   - DataBits: 8
//   - StopBits: 1
//   - Parity: None
//   - FlowControl: None
//   - PollInterval: 100ms
//   - StopTimeout: 5s
package commport
