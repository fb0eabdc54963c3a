/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rtsCmd represents the rts command
var rtsCmd = &cobra.Command{
	Use:   "rts <port> <state>",
	Short: "Control RTS (Request To Send) signal",
	Long: `Manually set the RTS (Request To Send) signal state.

The RTS signal requests permission to transmit. Setting it by hand while
RTS/CTS flow control is enabled is rejected by most drivers.

Examples:
  commport rts COM1 high
  commport rts COM1 low
  commport rts /dev/ttyUSB0 on
  commport rts /dev/ttyUSB0 off

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		state, err := parseSignalState(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		port := openSerial(name)
		defer port.Close()

		if err := port.SetRTS(state); err != nil {
			port.Close()
			fmt.Fprintf(os.Stderr, "Error setting RTS: %v\n", err)
			os.Exit(1)
		}

		// Verify the state was set
		current, err := port.RTS()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not verify RTS state: %v\n", err)
		}

		fmt.Printf("RTS set to %s on %s\n", formatSignalState(current), name)
	},
}

func init() {
	rootCmd.AddCommand(rtsCmd)
}
