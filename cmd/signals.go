/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals <port>",
	Short: "Display current modem signal states",
	Long: `Display the current state of all modem control signals.

Shows the state of CTS, DSR, RI, CD, RTS, and DTR signals for the specified port.

Examples:
  commport signals COM1
  commport signals /dev/ttyUSB0

Signal meanings:
  CTS - Clear To Send (input)
  DSR - Data Set Ready (input)
  RI  - Ring Indicator (input)
  CD  - Carrier Detect (input)
  RTS - Request To Send (output)
  DTR - Data Terminal Ready (output)`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		port := openSerial(name)
		defer port.Close()

		lines := []struct {
			label string
			read  func() (bool, error)
		}{
			{"CTS (Clear To Send):       ", port.CTS},
			{"DSR (Data Set Ready):      ", port.DSR},
			{"RI  (Ring Indicator):      ", port.RI},
			{"CD  (Carrier Detect):      ", port.CD},
			{"RTS (Request To Send):     ", port.RTS},
			{"DTR (Data Terminal Ready): ", port.DTR},
		}

		fmt.Printf("Modem Signals for %s:\n\n", name)
		for _, l := range lines {
			state, err := l.read()
			if err != nil {
				port.Close()
				fmt.Fprintf(os.Stderr, "Error reading modem signals: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("  %s%s\n", l.label, formatSignalState(state))
		}
	},
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}
