/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	commport "github.com/allbin/go-commport"
	"github.com/spf13/cobra"
)

// paramsCmd represents the params command
var paramsCmd = &cobra.Command{
	Use:   "params <port>",
	Short: "Show or change serial line parameters",
	Long: `Show the line parameters and flow control of a serial port, or change
them. Only the values given as flags are changed; the rest are kept.

A rejected change leaves the port as it was.

Examples:
  commport params COM1
  commport params COM1 --baud 115200
  commport params /dev/ttyUSB0 --data-bits 7 --parity even --stop-bits 2
  commport params /dev/ttyUSB0 --flow rtscts`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		port := openSerial(name)
		defer port.Close()

		if err := applyParams(cmd, port); err != nil {
			port.Close()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		lp := port.LineParams()
		fmt.Printf("Line Parameters for %s: %s\n\n", name, lp)
		fmt.Printf("  Baud rate:    %d\n", lp.BaudRate)
		fmt.Printf("  Data bits:    %d\n", lp.DataBits)
		fmt.Printf("  Stop bits:    %s\n", lp.StopBits)
		fmt.Printf("  Parity:       %s\n", lp.Parity)
		fmt.Printf("  Flow control: %s\n", port.FlowControl())
	},
}

// applyParams changes the line parameters and flow control named by the
// flags that were set.
func applyParams(cmd *cobra.Command, port *commport.SerialPort) error {
	flags := cmd.Flags()
	lp := port.LineParams()
	changed := false

	if flags.Changed("baud") {
		lp.BaudRate, _ = flags.GetInt("baud")
		changed = true
	}
	if flags.Changed("data-bits") {
		lp.DataBits, _ = flags.GetInt("data-bits")
		changed = true
	}
	if flags.Changed("stop-bits") {
		s, _ := flags.GetString("stop-bits")
		sb, err := parseStopBits(s)
		if err != nil {
			return err
		}
		lp.StopBits = sb
		changed = true
	}
	if flags.Changed("parity") {
		s, _ := flags.GetString("parity")
		p, err := parseParity(s)
		if err != nil {
			return err
		}
		lp.Parity = p
		changed = true
	}

	if changed {
		if err := port.SetLineParams(lp.BaudRate, lp.DataBits, lp.StopBits, lp.Parity); err != nil {
			return fmt.Errorf("setting line parameters: %w", err)
		}
	}

	if flags.Changed("flow") {
		s, _ := flags.GetString("flow")
		fc, err := parseFlowControl(s)
		if err != nil {
			return err
		}
		if err := port.SetFlowControl(fc); err != nil {
			return fmt.Errorf("setting flow control: %w", err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(paramsCmd)

	paramsCmd.Flags().IntP("baud", "b", 9600, "Baud rate")
	paramsCmd.Flags().IntP("data-bits", "d", 8, "Data bits (5-8)")
	paramsCmd.Flags().StringP("stop-bits", "s", "1", "Stop bits: 1, 1.5, 2")
	paramsCmd.Flags().StringP("parity", "p", "none", "Parity: none, odd, even, mark, space")
	paramsCmd.Flags().StringP("flow", "f", "none", "Flow control: none, rtscts, xonxoff, or a list of rtscts-in, rtscts-out, xonxoff-in, xonxoff-out")
}
