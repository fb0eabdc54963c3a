/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// breakCmd represents the break command
var breakCmd = &cobra.Command{
	Use:   "break <port>",
	Short: "Send a break condition",
	Long: `Hold the transmit line of a serial port in the break condition.

A duration of 0 lets the driver pick its standard break length.

Examples:
  commport break COM1
  commport break /dev/ttyUSB0 --duration 500ms`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		duration, _ := cmd.Flags().GetDuration("duration")

		port := openSerial(name)
		defer port.Close()

		if err := port.SendBreak(duration); err != nil {
			port.Close()
			fmt.Fprintf(os.Stderr, "Error sending break: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Break sent on %s (%s)\n", name, duration)
	},
}

func init() {
	rootCmd.AddCommand(breakCmd)

	breakCmd.Flags().DurationP("duration", "d", 250*time.Millisecond, "Break duration (0 = driver default)")
}
