/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/allbin/go-commport"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data] <port>",
	Short: "Send data to a serial port",
	Long: `Send data to a serial port.

Data can be provided as:
- Command line argument: send "Hello World" /dev/ttyUSB0
- From stdin (pipe): echo "test data" | commport send /dev/ttyUSB0
- Interactive mode: commport send /dev/ttyUSB0 (prompts for input)

The data is queued as one write and the command waits for it to be
transmitted within the send timeout (--send-timeout, --send-timeout-per-byte).

Example usage:
  commport send "Hello World" /dev/ttyUSB0
  commport send "AT+GMR" COM3 --line
  commport send "02 06 00 03" /dev/ttyUSB0 --hex
  commport send 13 /dev/ttyUSB0 --hex --immediate
  echo "test" | commport send /dev/ttyUSB0`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data string
		var portPath string

		if len(args) == 1 {
			portPath = args[0]
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				data = promptForData()
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading from stdin: %w", err)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		} else {
			data = args[0]
			portPath = args[1]
		}

		addLine, _ := cmd.Flags().GetBool("line")
		hexMode, _ := cmd.Flags().GetBool("hex")
		immediate, _ := cmd.Flags().GetBool("immediate")

		payload := []byte(data)
		if hexMode {
			var err error
			if payload, err = parseHexString(data); err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
		}

		return sendData(portPath, payload, addLine && !hexMode, immediate)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolP("line", "l", false, "Append the configured line terminator (--newline)")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().Bool("immediate", false, "Send each byte ahead of any queued output")
}

func promptForData() string {
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

// parseHexString converts hex text to bytes. Spaces and 0x prefixes are
// ignored, so "48 65 6C", "0x48 0x65" and "48656C" are all accepted.
func parseHexString(hexStr string) ([]byte, error) {
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")
	hexStr = strings.Join(strings.Fields(hexStr), "")
	if hexStr == "" {
		return nil, fmt.Errorf("empty input")
	}
	if len(hexStr)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even number of digits (got %d)", len(hexStr))
	}

	out := make([]byte, 0, len(hexStr)/2)
	for i := 0; i < len(hexStr); i += 2 {
		hexByte := hexStr[i : i+2]
		b, err := strconv.ParseUint(hexByte, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte '%s'", hexByte)
		}
		out = append(out, byte(b))
	}
	return out, nil
}

func sendData(portPath string, data []byte, addLine, immediate bool) error {
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)

	fmt.Printf("%s Opening %s...\n", infoStyle.Render("⚡"), portPath)

	c, err := openPort(portPath, commport.Handler{})
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("%s Connected successfully\n", successStyle.Render("✓"))

	n := len(data)
	switch {
	case immediate:
		fmt.Printf("%s Sending %d bytes ahead of the queue...\n", infoStyle.Render("📤"), n)
		for _, b := range data {
			if err := c.SendImmediate(b); err != nil {
				return fmt.Errorf("failed to send data: %w", err)
			}
		}
	case addLine:
		fmt.Printf("%s Sending %d bytes...\n", infoStyle.Render("📤"), n+len(c.Config().NewLine))
		if n, err = c.WriteLine(string(data)); err != nil {
			return fmt.Errorf("failed to send data: %w", err)
		}
	default:
		fmt.Printf("%s Sending %d bytes...\n", infoStyle.Render("📤"), n)
		if n, err = c.Write(data); err != nil {
			return fmt.Errorf("failed to send data: %w", err)
		}
	}
	if err := c.Flush(); err != nil {
		return fmt.Errorf("failed to send data: %w", err)
	}

	fmt.Printf("%s Successfully sent %d bytes\n", successStyle.Render("✓"), n)
	fmt.Printf("%s Data: %s\n", infoStyle.Render("📋"), preview(data, 50))
	return nil
}

// preview returns at most limit bytes of data with non-printable bytes
// replaced for display.
func preview(data []byte, limit int) string {
	s := string(data)
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return '·'
		}
		return r
	}, s)
}
