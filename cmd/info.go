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

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a port",
	Long: `Display registry and device information about a port, including USB
metadata for USB serial adapters.

Examples:
  commport info COM1
  commport info /dev/ttyUSB0
  commport info /dev/lp0`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		reg, err := openRegistry(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building port registry: %v\n", err)
			os.Exit(1)
		}
		entry, err := reg.Reserve(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting port info: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Port Information: %s\n\n", entry.Name())
		fmt.Printf("  Path:        %s\n", entry.PhysicalID())
		fmt.Printf("  Kind:        %s\n", entry.Kind())

		info, err := commport.GetPortInfo(entry.PhysicalID())
		if err != nil {
			fmt.Printf("  Device:      %v\n", err)
			return
		}
		fmt.Printf("  Description: %s\n", info.Description)

		if info.IsUSB {
			fmt.Println("\nUSB Device Information:")
			if info.VendorID != "" {
				fmt.Printf("  Vendor ID:    %s\n", info.VendorID)
			}
			if info.ProductID != "" {
				fmt.Printf("  Product ID:   %s\n", info.ProductID)
			}
			if info.SerialNumber != "" {
				fmt.Printf("  Serial:       %s\n", info.SerialNumber)
			}
			if info.Product != "" {
				fmt.Printf("  Product:      %s\n", info.Product)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
