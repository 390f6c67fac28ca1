/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/allbin/go-commport"
	"github.com/allbin/go-commport/internal/tui/styles"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List all available serial ports on the system.

On Linux this scans /dev for communication-capable serial devices:
- USB serial adapters (ttyUSB*)
- USB CDC/ACM devices (ttyACM*)
- Standard serial ports (ttyS*)
- ARM/Raspberry Pi ports (ttyAMA*)
- And other platform-specific serial devices

Virtual terminals and pseudo-terminals are excluded from the listing.
On Windows the COM ports registered by the serial drivers are listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := commport.ListPorts()
		if err != nil {
			return fmt.Errorf("listing ports: %w", err)
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")

		infos := filterPorts(portInfos(ports), filterType)
		if len(infos) == 0 {
			if filterType != "" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return nil
		}

		if tableFormat {
			fmt.Printf("Found %d serial port(s):\n\n", len(infos))
			fmt.Println(renderPortTable(infos))
		} else {
			for _, info := range infos {
				fmt.Println(info.Path)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

// portInfos looks up every port, keeping the bare path when the lookup fails.
func portInfos(ports []string) []commport.PortInfo {
	infos := make([]commport.PortInfo, 0, len(ports))
	for _, p := range ports {
		info, err := commport.GetPortInfo(p)
		if err != nil {
			logger.Debugf("port info for %s: %v", p, err)
			infos = append(infos, commport.PortInfo{Name: filepath.Base(p), Path: p, Description: "Unknown"})
			continue
		}
		infos = append(infos, *info)
	}
	return infos
}

// filterPorts filters the port list based on the specified filter type
func filterPorts(infos []commport.PortInfo, filterType string) []commport.PortInfo {
	if filterType == "" || filterType == "all" {
		return infos
	}

	var filtered []commport.PortInfo
	for _, info := range infos {
		name := strings.ToLower(info.Name)
		var keep bool
		switch strings.ToLower(filterType) {
		case "usb":
			keep = info.IsUSB() || strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm")
		case "standard":
			keep = strings.HasPrefix(name, "ttys") && !strings.HasPrefix(name, "ttysac") || strings.HasPrefix(name, "com")
		case "arm":
			keep = strings.HasPrefix(name, "ttyama")
		}
		if keep {
			filtered = append(filtered, info)
		}
	}
	return filtered
}

const (
	columnKeyPort        = "port"
	columnKeyDescription = "description"
	columnKeyUSB         = "usb"
)

// renderPortTable renders the port list as a static table
func renderPortTable(infos []commport.PortInfo) string {
	columns := []table.Column{
		table.NewColumn(columnKeyPort, "Port", 16),
		table.NewColumn(columnKeyDescription, "Description", 32),
		table.NewColumn(columnKeyUSB, "VID:PID", 11),
	}

	rows := make([]table.Row, 0, len(infos))
	for _, info := range infos {
		usb := "-"
		if info.IsUSB() {
			usb = info.VendorID + ":" + info.ProductID
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPort:        info.Name,
			columnKeyDescription: info.Description,
			columnKeyUSB:         usb,
		}))
	}

	return table.New(columns).
		WithRows(rows).
		BorderRounded().
		HeaderStyle(styles.TableHeaderStyle).
		WithBaseStyle(styles.TableBaseStyle).
		View()
}
