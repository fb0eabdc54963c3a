/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	commport "github.com/allbin/go-commport"
	"github.com/allbin/go-commport/internal/tui/models"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var watchEvents []string

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <port>",
	Short: "Watch port events in an interactive table",
	Long: `Open a full screen view of a port's events.

Every enabled event category is shown as a row. When data_available is
enabled the received bytes are read and shown in hex and ASCII.

Examples:
  commport watch COM1
  commport watch /dev/ttyUSB0 --events cts,dsr,ri,cd,data_available
  commport watch /dev/lp0
  commport --driver sim watch SIM0

Key bindings:
  p/space      Pause or resume the listener
  v / esc      Visual (scroll) mode / follow mode
  h / a        Toggle hex / ASCII columns
  d / r        Toggle DTR / RTS
  b            Send a break
  c            Clear events
  ?            Toggle help
  q/ctrl+c     Quit`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		port := openAny(name, commport.WithReceiveTimeout(100*time.Millisecond))
		defer port.Close()

		names := watchEvents
		if len(names) == 0 && port.Kind() == commport.PortKindSerial {
			names = []string{"cts", "dsr", "ri", "cd", "oe", "pe", "fe", "bi", "data_available"}
		}
		cats, err := parseCategories(names, port.Kind())
		if err != nil {
			port.Close()
			fmt.Fprintf(os.Stderr, "Error parsing events: %v\n", err)
			os.Exit(1)
		}

		events, err := subscribe(port, cats)
		if err != nil {
			port.Close()
			fmt.Fprintf(os.Stderr, "Error enabling events: %v\n", err)
			os.Exit(1)
		}
		defer events.stop()

		wc := models.WatchConfig{
			Port:     port,
			Listener: events,
			Events:   events.C,
		}
		if port.NotifyEnabled(commport.EventDataAvailable) {
			if wc.Input, err = port.InputStream(); err != nil {
				port.Close()
				fmt.Fprintf(os.Stderr, "Error opening input stream: %v\n", err)
				os.Exit(1)
			}
		}

		p := tea.NewProgram(models.NewWatchModel(wc), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			events.stop()
			port.Close()
			fmt.Fprintf(os.Stderr, "Error running watch: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringSliceVarP(&watchEvents, "events", "e", nil,
		"Events to show (comma-separated, default all serial status events and data_available, or error for parallel ports)")
}
