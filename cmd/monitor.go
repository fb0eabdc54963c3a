/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	commport "github.com/allbin/go-commport"
	"github.com/spf13/cobra"
)

var (
	monitorEvents  []string
	monitorTimeout time.Duration
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Monitor port events",
	Long: `Monitor port events in real-time.

Registers a listener on the port, enables the requested event categories and
prints every transition until Ctrl+C.

Examples:
  commport monitor COM1
  commport monitor COM1 --events cts,dsr
  commport monitor /dev/ttyUSB0 --events cd,data_available --timeout 30s
  commport monitor /dev/lp0 --events error

Serial events: cts, dsr, ri, cd, oe, pe, fe, bi, data_available, output_buffer_empty
Parallel events: error, output_buffer_empty`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		port := openAny(name)
		defer port.Close()

		cats, err := parseCategories(monitorEvents, port.Kind())
		if err != nil {
			port.Close()
			fmt.Fprintf(os.Stderr, "Error parsing events: %v\n", err)
			os.Exit(1)
		}

		// Setup signal handler for Ctrl+C
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			fmt.Println("\nStopping monitor...")
			cancel()
		}()

		if sp, ok := port.(*commport.SerialPort); ok {
			printSignalState(sp)
		}

		events, err := subscribe(port, cats)
		if err != nil {
			port.Close()
			fmt.Fprintf(os.Stderr, "Error enabling events: %v\n", err)
			os.Exit(1)
		}
		defer events.stop()

		names := make([]string, len(cats))
		for i, c := range cats {
			names[i] = c.String()
		}
		fmt.Printf("Monitoring %s (events: %s)\n", name, strings.Join(names, ", "))
		fmt.Println("Press Ctrl+C to stop")

		for {
			var timeout <-chan time.Time
			if monitorTimeout > 0 {
				timeout = time.After(monitorTimeout)
			}

			select {
			case <-ctx.Done():
				return
			case <-timeout:
				fmt.Printf("[%s] Timeout - no events\n", time.Now().Format("15:04:05"))
			case e := <-events.C:
				printEvent(e)
			}
		}
	},
}

func printSignalState(sp *commport.SerialPort) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Printf("[%s] Initial state (%s, flow %s):\n", timestamp, sp.LineParams(), sp.FlowControl())
	for _, l := range []struct {
		name string
		read func() (bool, error)
	}{
		{"CTS", sp.CTS}, {"DSR", sp.DSR}, {"RI ", sp.RI}, {"CD ", sp.CD},
	} {
		state, err := l.read()
		if err != nil {
			fmt.Printf("  %s: %v\n", l.name, err)
			continue
		}
		fmt.Printf("  %s: %s\n", l.name, formatSignalState(state))
	}
	fmt.Println()
}

func printEvent(e commport.Event) {
	timestamp := e.Time.Format("15:04:05.000")
	name := e.Category.String()
	if e.Line != commport.LineNone {
		name += " " + e.Line.String()
	}
	fmt.Printf("[%s] %-22s %s -> %s\n", timestamp, name,
		formatSignalState(e.OldValue), formatSignalState(e.NewValue))
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringSliceVarP(&monitorEvents, "events", "e", nil,
		"Events to monitor (comma-separated, default cts,dsr,ri,cd or error for parallel ports)")
	monitorCmd.Flags().DurationVarP(&monitorTimeout, "timeout", "t", 0,
		"Report when no event arrives within this duration (0 = no timeout)")
}
