/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	commport "github.com/allbin/go-commport"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the ports served by the registry",
	Long: `List every port the registry serves: configured aliases and, unless
--scan=false, the devices found under /dev.

Scanned devices include:
- USB serial adapters (ttyUSB*)
- USB CDC/ACM devices (ttyACM*)
- Standard serial ports (ttyS*)
- ARM/Raspberry Pi ports (ttyAMA*)
- Printer and parallel ports (lp*, parport*)
- And other platform-specific serial devices

Virtual terminals and pseudo-terminals are excluded from the listing.`,
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := openRegistry()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
			os.Exit(1)
		}

		entries := reg.Entries()
		if len(entries) == 0 {
			fmt.Println("No ports found")
			return
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")

		filtered := filterEntries(entries, filterType)
		if len(filtered) == 0 {
			if filterType != "" {
				fmt.Printf("No ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No ports found")
			}
			return
		}

		if tableFormat {
			renderTable(filtered)
		} else {
			renderSimple(filtered)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, standard, arm, parallel, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

// filterEntries filters the registry entries by device type
func filterEntries(entries []*commport.Entry, filterType string) []*commport.Entry {
	if filterType == "" || filterType == "all" {
		return entries
	}

	var filtered []*commport.Entry
	for _, e := range entries {
		name := strings.ToLower(filepath.Base(e.PhysicalID()))
		switch strings.ToLower(filterType) {
		case "usb":
			if strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm") {
				filtered = append(filtered, e)
			}
		case "standard":
			if strings.HasPrefix(name, "ttys") {
				filtered = append(filtered, e)
			}
		case "arm":
			if strings.HasPrefix(name, "ttyama") {
				filtered = append(filtered, e)
			}
		case "parallel":
			if e.Kind() == commport.PortKindParallel {
				filtered = append(filtered, e)
			}
		}
	}
	return filtered
}

// renderTable renders the port list in a styled static table format
func renderTable(entries []*commport.Entry) {
	fmt.Printf("Found %d port(s):\n\n", len(entries))

	nameWidth := 15
	pathWidth := 18
	typeWidth := 18
	stateWidth := 8

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s %s",
		nameWidth, "Name",
		pathWidth, "Path",
		typeWidth, "Type",
		stateWidth, "State",
		"Description")
	fmt.Println(headerStyle.Render(header))

	for _, e := range entries {
		state := "free"
		if e.IsOpen() {
			state = "in use"
		}
		row := fmt.Sprintf("%-*s %-*s %-*s %-*s %s",
			nameWidth, e.Name(),
			pathWidth, e.PhysicalID(),
			typeWidth, getPortType(e),
			stateWidth, state,
			describeEntry(e))
		fmt.Println(cellStyle.Render(row))
	}
}

// renderSimple renders the port list in simple text format
func renderSimple(entries []*commport.Entry) {
	for _, e := range entries {
		if e.Name() == e.PhysicalID() {
			fmt.Println(e.Name())
		} else {
			fmt.Printf("%s -> %s\n", e.Name(), e.PhysicalID())
		}
	}
}

func describeEntry(e *commport.Entry) string {
	info, err := commport.GetPortInfo(e.PhysicalID())
	if err != nil {
		return "Not present"
	}
	if info.Product != "" {
		return info.Description + " (" + info.Product + ")"
	}
	return info.Description
}

// getPortType returns a more specific type classification for the port
func getPortType(e *commport.Entry) string {
	name := strings.ToLower(filepath.Base(e.PhysicalID()))
	switch {
	case strings.HasPrefix(name, "sim:"):
		return "Simulated " + strings.ToLower(e.Kind().String())
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial"
	case strings.HasPrefix(name, "ttysac"):
		return "Samsung Serial"
	case strings.HasPrefix(name, "ttyths"):
		return "Tegra Serial"
	case strings.HasPrefix(name, "ttyo"):
		return "OMAP Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	case strings.HasPrefix(name, "lp"):
		return "Printer Port"
	case strings.HasPrefix(name, "parport"):
		return "Parallel Port"
	case e.Kind() == commport.PortKindParallel:
		return "Parallel Port"
	default:
		return "Serial Port"
	}
}
