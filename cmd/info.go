/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/allbin/go-commport"
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display detailed information about a serial port including USB metadata.

Examples:
  commport info /dev/ttyUSB0
  commport info COM3

On Linux, USB devices also show vendor/product IDs, serial number and
descriptor strings read from sysfs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := commport.GetPortInfo(args[0])
		if err != nil {
			return fmt.Errorf("getting port info: %w", err)
		}

		fmt.Printf("Port Information: %s\n\n", info.Path)
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Description: %s\n", info.Description)

		if info.IsUSB() {
			fmt.Println("\nUSB Device Information:")
			fmt.Printf("  Vendor ID:    %s\n", info.VendorID)
			fmt.Printf("  Product ID:   %s\n", info.ProductID)
			if info.SerialNumber != "" {
				fmt.Printf("  Serial:       %s\n", info.SerialNumber)
			}
			if info.Manufacturer != "" {
				fmt.Printf("  Manufacturer: %s\n", info.Manufacturer)
			}
			if info.Product != "" {
				fmt.Printf("  Product:      %s\n", info.Product)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
