/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allbin/go-commport"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <port> <output-file>",
	Short: "Capture serial data to a file",
	Long: `Capture incoming serial data to a file for later parsing.

Every received byte is written to the output file as it arrives. Runs until
interrupted (Ctrl+C) or until the port reports an error.

The output file is opened in append mode, allowing you to resume captures
without overwriting existing data.

Example usage:
  commport capture /dev/ttyUSB0 data.log
  commport capture /dev/ttyUSB0 output.txt --baud 9600
  commport capture /dev/ttyUSB0 capture.log --console
  commport capture COM3 capture.log --handshake ctsrts -c`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		showConsole, _ := cmd.Flags().GetBool("console")
		bufferSize, _ := cmd.Flags().GetInt("buffer")
		return runCapture(args[0], args[1], bufferSize, showConsole)
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().Int("buffer", 4096, "File write buffer size")
	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
}

// capture copies received bytes to a buffered writer. Its callbacks run
// on the connection's receive goroutine; the counters are read once the
// connection is closed.
type capture struct {
	w       *bufio.Writer
	console io.Writer
	bytes   int64
	err     error
	stop    context.CancelCauseFunc
}

func (c *capture) handler() commport.Handler {
	return commport.Handler{
		OnRxChar: func(b byte) {
			if c.err != nil {
				return
			}
			if err := c.w.WriteByte(b); err != nil {
				c.err = fmt.Errorf("write error: %w", err)
				c.stop(c.err)
				return
			}
			c.bytes++
			if c.console != nil {
				c.console.Write([]byte{b})
			}
		},
		OnError: func(err error) {
			c.stop(fmt.Errorf("read error: %w", err))
		},
	}
}

func runCapture(portPath, outputPath string, bufferSize int, showConsole bool) (err error) {
	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	cp := &capture{w: bufio.NewWriterSize(file, bufferSize), stop: cancel}
	if showConsole {
		cp.console = os.Stdout
	}

	c, err := openPort(portPath, cp.handler())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Capturing data from %s to %s\n", portPath, outputPath)
	if showConsole {
		fmt.Fprintf(os.Stderr, "Console display enabled\n")
	}
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n\n")

	startTime := time.Now()
	<-ctx.Done()

	// Close waits for the receive goroutine, after which the writer is ours.
	err = multierr.Append(c.Close(), cp.w.Flush())
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		err = multierr.Append(cause, err)
	}
	fmt.Fprintf(os.Stderr, "\nCapture complete: %d bytes written in %v\n", cp.bytes, time.Since(startTime).Round(time.Millisecond))
	return err
}
