/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// dtrCmd represents the dtr command
var dtrCmd = &cobra.Command{
	Use:   "dtr <port> <state>",
	Short: "Control DTR (Data Terminal Ready) signal",
	Long: `Manually set the DTR (Data Terminal Ready) signal state.

The DTR signal indicates that the terminal is ready for communication.

Examples:
  commport dtr COM1 high
  commport dtr COM1 low
  commport dtr /dev/ttyUSB0 on
  commport dtr /dev/ttyUSB0 off

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

		if err := port.SetDTR(state); err != nil {
			port.Close()
			fmt.Fprintf(os.Stderr, "Error setting DTR: %v\n", err)
			os.Exit(1)
		}

		// Verify the state was set
		current, err := port.DTR()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not verify DTR state: %v\n", err)
		}

		fmt.Printf("DTR set to %s on %s\n", formatSignalState(current), name)
	},
}

func init() {
	rootCmd.AddCommand(dtrCmd)
}
