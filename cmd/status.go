/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strconv"

	"github.com/allbin/go-commport"
	"github.com/allbin/go-commport/internal/tui/components"
	"github.com/allbin/go-commport/internal/tui/styles"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <port>",
	Short: "Display line and queue status",
	Long: `Open a port and display the state of every control line and queue.

Shows the modem inputs (CTS, DSR, RI, DCD), the software-controlled outputs
(RTS, DTR, Break) and transmit/receive queue occupancy.

Examples:
  commport status /dev/ttyUSB0
  commport status COM3 --handshake ctsrts

Signal meanings:
  CTS   - Clear To Send (input)
  DSR   - Data Set Ready (input)
  RI    - Ring Indicator (input)
  DCD   - Data Carrier Detect (input)
  RTS   - Request To Send (output)
  DTR   - Data Terminal Ready (output)
  Break - Break condition on the transmit line (output)

An output shown as N/A is driven by the configured handshake.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openPort(args[0], commport.Handler{})
		if err != nil {
			return err
		}
		defer c.Close()

		modem, err := c.ModemStatus()
		if err != nil {
			return fmt.Errorf("reading modem status: %w", err)
		}
		qs, err := c.QueueStatus()
		if err != nil {
			return fmt.Errorf("reading queue status: %w", err)
		}

		fmt.Printf("Status for %s (%s):\n\n", args[0], describeConfig(c.Config(), components.HandshakeName(c.Config())))
		fmt.Println(renderSignalTable(modem, components.LineStates{RTS: c.RTS(), DTR: c.DTR(), Break: c.Break()}))
		fmt.Println(renderQueueTable(qs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

const (
	columnKeySignal    = "signal"
	columnKeyDirection = "direction"
	columnKeyState     = "state"
	columnKeyQueue     = "queue"
	columnKeyUsed      = "used"
	columnKeySize      = "size"
)

func formatSignalState(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func renderSignalTable(modem commport.ModemStatus, lines components.LineStates) string {
	columns := []table.Column{
		table.NewColumn(columnKeySignal, "Signal", 8),
		table.NewColumn(columnKeyDirection, "Dir", 5),
		table.NewColumn(columnKeyState, "State", 7),
	}

	input := func(name string, high bool) table.Row {
		return table.NewRow(table.RowData{
			columnKeySignal:    name,
			columnKeyDirection: "in",
			columnKeyState:     table.NewStyledCell(formatSignalState(high), styles.SignalStyle(high)),
		})
	}
	output := func(name string, s commport.LineState) table.Row {
		return table.NewRow(table.RowData{
			columnKeySignal:    name,
			columnKeyDirection: "out",
			columnKeyState:     table.NewStyledCell(formatLineState(s), styles.LineStyle(s)),
		})
	}

	rows := []table.Row{
		input("CTS", modem.CTS()),
		input("DSR", modem.DSR()),
		input("RI", modem.Ring()),
		input("DCD", modem.RLSD()),
		output("RTS", lines.RTS),
		output("DTR", lines.DTR),
		output("Break", lines.Break),
	}

	return table.New(columns).
		WithRows(rows).
		BorderRounded().
		HeaderStyle(styles.TableHeaderStyle).
		WithBaseStyle(styles.TableBaseStyle).
		View()
}

func queueSize(n int) string {
	if n <= 0 {
		return "?"
	}
	return strconv.Itoa(n)
}

func renderQueueTable(qs commport.QueueStatus) string {
	columns := []table.Column{
		table.NewColumn(columnKeyQueue, "Queue", 8),
		table.NewColumn(columnKeyUsed, "Used", 8),
		table.NewColumn(columnKeySize, "Size", 8),
	}
	rows := []table.Row{
		table.NewRow(table.RowData{columnKeyQueue: "Tx", columnKeyUsed: qs.OutQueue, columnKeySize: queueSize(qs.OutSize)}),
		table.NewRow(table.RowData{columnKeyQueue: "Rx", columnKeyUsed: qs.InQueue, columnKeySize: queueSize(qs.InSize)}),
	}

	t := table.New(columns).
		WithRows(rows).
		BorderRounded().
		HeaderStyle(styles.TableHeaderStyle).
		WithBaseStyle(styles.TableBaseStyle).
		View()

	if holds := qs.String(); qs.Flags != 0 {
		t += "\n" + styles.InfoStyle.Render(holds)
	}
	return t
}
