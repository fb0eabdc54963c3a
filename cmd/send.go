/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	commport "github.com/allbin/go-commport"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data] <port>",
	Short: "Send data to a port",
	Long: `Send data to a serial or parallel port through its output stream.

This command sends data to the specified port. Data can be provided as:
- Command line argument: send "Hello World" COM1
- From stdin (pipe): echo "test data" | commport send COM1
- Interactive mode: commport send COM1 (prompts for input)

Features include:
- Multiple input methods (argument, stdin, interactive)
- Configurable line parameters and flow control for serial ports
- Buffered output stream with an explicit flush (--buffer flag)
- Automatic line endings (--newline flag)
- Hex input support (--hex flag)
- Connection status feedback with styled output

Example usage:
  commport send "Hello World" COM1
  commport send "AT+GMR" /dev/ttyUSB0 --newline
  commport send "1b40" /dev/lp0 --hex
  echo "test" | commport send COM1
  commport send COM1  # Interactive mode`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		var data string
		var name string

		// Parse arguments: either "send data port" or "send port"
		if len(args) == 1 {
			name = args[0]
			// Check if we have stdin data
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				// No pipe input, use interactive mode
				data = promptForData()
			} else {
				// Read from stdin
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error reading from stdin: %v\n", err)
					os.Exit(1)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		} else {
			data = args[0]
			name = args[1]
		}

		// Get flags
		baudRate, _ := cmd.Flags().GetInt("baud")
		flowControl, _ := cmd.Flags().GetString("flow-control")
		addNewline, _ := cmd.Flags().GetBool("newline")
		hexMode, _ := cmd.Flags().GetBool("hex")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		initialRTS, _ := cmd.Flags().GetBool("initial-rts")
		bufferSize, _ := cmd.Flags().GetInt("buffer")

		// Line options only affect serial ports.
		opts := []commport.Option{commport.WithOutputBufferSize(bufferSize)}
		if cmd.Flags().Changed("baud") {
			opts = append(opts, commport.WithBaudRate(baudRate))
		}
		if cmd.Flags().Changed("flow-control") {
			fc, err := parseFlowControl(flowControl)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			opts = append(opts, commport.WithFlowControl(fc))
		}
		if initialRTS {
			opts = append(opts, commport.WithInitialRTS(true))
		}

		// Process data based on flags
		if hexMode {
			processedData, err := parseHexString(data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid hex data: %v\n", err)
				os.Exit(1)
			}
			data = processedData
		}

		if addNewline && !hexMode {
			data += "\n"
		}

		// Send the data
		if err := sendData(name, data, timeout, opts...); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().IntP("baud", "b", 115200, "Baud rate for serial ports (default: keep the port setting)")
	sendCmd.Flags().StringP("flow-control", "f", "none", "Flow control: none, rtscts, xonxoff")
	sendCmd.Flags().BoolP("newline", "n", false, "Add newline character to the end of data")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "Timeout for sending data (default: 5s)")
	sendCmd.Flags().Bool("initial-rts", false, "Assert RTS on port open")
	sendCmd.Flags().Int("buffer", 0, "Output buffer size in bytes (0 = unbuffered)")
}

func promptForData() string {
	// Styled prompt
	promptStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	fmt.Print(promptStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

func sendData(name, data string, timeout time.Duration, opts ...commport.Option) error {
	// Styled output
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	// Show connection attempt
	fmt.Printf("%s Opening %s...\n", infoStyle.Render("⚡"), name)

	reg, err := openRegistry(name)
	if err != nil {
		return fmt.Errorf("%s %v", errorStyle.Render("✗"), err)
	}
	port, err := reg.Open(name, portOptions(opts...)...)
	if err != nil {
		return fmt.Errorf("%s %v", errorStyle.Render("✗"), err)
	}
	defer port.Close()

	fmt.Printf("%s Connected successfully (%s)\n", successStyle.Render("✓"), describePort(port))

	out, err := port.OutputStream()
	if err != nil {
		return fmt.Errorf("%s %v", errorStyle.Render("✗"), err)
	}

	// Send data
	fmt.Printf("%s Sending %d bytes...\n", infoStyle.Render("📤"), len(data))

	done := make(chan error, 1)
	go func() {
		if _, err := out.Write([]byte(data)); err != nil {
			done <- err
			return
		}
		done <- out.Flush()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s failed to send data: %v", errorStyle.Render("✗"), err)
		}
	case <-time.After(timeout):
		port.Close()
		return fmt.Errorf("%s timed out after %s with %d bytes written", errorStyle.Render("✗"), timeout, out.BytesWritten())
	}

	fmt.Printf("%s Successfully sent %d bytes\n", successStyle.Render("✓"), out.BytesWritten())

	// Show data preview (first 50 chars)
	preview := data
	if len(preview) > 50 {
		preview = preview[:50] + "..."
	}
	// Replace non-printable characters for display
	preview = strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return '·'
		}
		return r
	}, preview)

	fmt.Printf("%s Data: %s\n", infoStyle.Render("📋"), preview)

	return nil
}

// describePort summarizes the configuration of an open port.
func describePort(p commport.Port) string {
	switch cp := p.(type) {
	case *commport.SerialPort:
		return fmt.Sprintf("%s, flow %s", cp.LineParams(), cp.FlowControl())
	case *commport.ParallelPort:
		return "mode " + cp.Mode().String()
	default:
		return p.Kind().String()
	}
}
