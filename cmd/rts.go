/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/allbin/go-commport"
	"github.com/spf13/cobra"
)

// outputLine is one of the software-controlled output lines.
type outputLine struct {
	name  string
	set   func(c *commport.Connection, on bool) error
	state func(c *commport.Connection) commport.LineState
}

var (
	rtsLine   = outputLine{"RTS", (*commport.Connection).SetRTS, (*commport.Connection).RTS}
	dtrLine   = outputLine{"DTR", (*commport.Connection).SetDTR, (*commport.Connection).DTR}
	breakLine = outputLine{"Break", (*commport.Connection).SetBreak, (*commport.Connection).Break}
)

// rtsCmd represents the rts command
var rtsCmd = newLineCmd(rtsLine, "rts", `Manually set the RTS (Request To Send) signal state.

RTS is not under software control while --handshake ctsrts is in effect.

Examples:
  commport rts /dev/ttyUSB0 high
  commport rts COM3 off --hold 2s`)

// dtrCmd represents the dtr command
var dtrCmd = newLineCmd(dtrLine, "dtr", `Manually set the DTR (Data Terminal Ready) signal state.

DTR is not under software control while --handshake dsrdtr is in effect.

Examples:
  commport dtr /dev/ttyUSB0 low
  commport dtr COM3 on --hold 500ms`)

// breakCmd represents the break command
var breakCmd = newLineCmd(breakLine, "break", `Assert or remove a break condition on the transmit line.

A break is normally held for a short time and then removed:

Examples:
  commport break /dev/ttyUSB0 on --hold 250ms`)

func newLineCmd(line outputLine, use, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <port> <state>",
		Short: fmt.Sprintf("Control the %s output", line.name),
		Long:  long + "\n\nValid states: high, low, on, off, true, false, 1, 0",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseSignalState(args[1])
			if err != nil {
				return err
			}
			hold, _ := cmd.Flags().GetDuration("hold")
			return setOutputLine(args[0], line, on, hold)
		},
	}
	cmd.Flags().Duration("hold", 0, "Keep the port open this long after setting the line")
	return cmd
}

func setOutputLine(portPath string, line outputLine, on bool, hold time.Duration) error {
	c, err := openPort(portPath, commport.Handler{})
	if err != nil {
		return err
	}
	defer c.Close()

	if line.state(c) == commport.LineUnsupported {
		fmt.Printf("%s is under handshake control on %s\n", line.name, portPath)
		return nil
	}
	if err := line.set(c, on); err != nil {
		return fmt.Errorf("setting %s: %w", line.name, err)
	}
	fmt.Printf("%s set to %s on %s\n", line.name, formatLineState(line.state(c)), portPath)

	if hold > 0 {
		time.Sleep(hold)
		if line.name == breakLine.name && on {
			if err := line.set(c, false); err != nil {
				return fmt.Errorf("clearing %s: %w", line.name, err)
			}
			fmt.Printf("%s set to %s on %s\n", line.name, formatLineState(line.state(c)), portPath)
		}
	}
	return nil
}

func parseSignalState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "high", "on", "true", "1":
		return true, nil
	case "low", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state: %s (valid: high, low, on, off, true, false, 1, 0)", state)
	}
}

func formatLineState(s commport.LineState) string {
	switch s {
	case commport.LineOn:
		return "HIGH"
	case commport.LineOff:
		return "LOW"
	default:
		return s.String()
	}
}

func init() {
	rootCmd.AddCommand(rtsCmd, dtrCmd, breakCmd)
}
