/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/allbin/go-commport"
	"github.com/allbin/go-commport/internal/tui/models"
	"github.com/spf13/cobra"
)

var (
	monitorEvents   []string
	monitorDuration time.Duration
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Monitor hardware events on a serial port",
	Long: `Print hardware events reported by a serial port as they happen.

Events are reported with a timestamp until Ctrl+C is pressed or --duration
elapses. Received bytes are only shown when "rx" is among the events.

Examples:
  commport monitor /dev/ttyUSB0
  commport monitor /dev/ttyUSB0 --events cts,dsr
  commport monitor COM3 --events rx,break --duration 30s

Available events: rx, txempty, break, ring, cts, dsr, dcd, error`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := parseEventFilter(monitorEvents)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if monitorDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, monitorDuration)
			defer cancel()
		}
		ctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		p := &eventPrinter{out: os.Stdout, filter: filter, now: time.Now}
		c, err := openPort(args[0], p.handler(func(err error) { cancel(err) }))
		if err != nil {
			return err
		}
		defer c.Close()

		modem, err := c.ModemStatus()
		if err != nil {
			return fmt.Errorf("reading modem status: %w", err)
		}
		fmt.Printf("Monitoring %s (events: %s)\n", args[0], strings.Join(monitorEvents, ", "))
		fmt.Println("Press Ctrl+C to stop")
		p.printf("initial state: %s", modem)

		<-ctx.Done()
		p.flushRX()
		if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringSliceVarP(&monitorEvents, "events", "e",
		[]string{"txempty", "break", "ring", "cts", "dsr", "dcd", "error"},
		"Events to report (comma-separated)")
	monitorCmd.Flags().DurationVarP(&monitorDuration, "duration", "d", 0,
		"Stop after this long (0 = until interrupted)")
}

type eventFilter struct {
	rx, txEmpty, brk, ring, err bool
	modem                       commport.ModemStatus
}

func parseEventFilter(names []string) (eventFilter, error) {
	var f eventFilter
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "rx":
			f.rx = true
		case "txempty", "tx":
			f.txEmpty = true
		case "break":
			f.brk = true
		case "ring", "ri":
			f.ring = true
		case "cts":
			f.modem |= commport.ModemCTS
		case "dsr":
			f.modem |= commport.ModemDSR
		case "dcd", "rlsd":
			f.modem |= commport.ModemRLSD
		case "error":
			f.err = true
		default:
			return f, fmt.Errorf("unknown event: %s (valid: rx, txempty, break, ring, cts, dsr, dcd, error)", name)
		}
	}
	return f, nil
}

// eventPrinter writes one timestamped line per event. Received bytes are
// collected and printed as one line ahead of the next event.
type eventPrinter struct {
	out    io.Writer
	filter eventFilter
	now    func() time.Time

	mu sync.Mutex
	rx []byte
}

func (p *eventPrinter) printf(format string, args ...any) {
	fmt.Fprintf(p.out, "[%s] %s\n", p.now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
}

func (p *eventPrinter) flushRX() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rx) > 0 {
		p.printf("rx % X", p.rx)
		p.rx = p.rx[:0]
	}
}

func (p *eventPrinter) event(format string, args ...any) {
	p.flushRX()
	p.printf(format, args...)
}

func (p *eventPrinter) handler(onError func(error)) commport.Handler {
	f := p.filter
	return commport.Handler{
		OnRxChar: func(b byte) {
			if !f.rx {
				return
			}
			p.mu.Lock()
			p.rx = append(p.rx, b)
			full := len(p.rx) >= 16
			p.mu.Unlock()
			if full {
				p.flushRX()
			}
		},
		OnTxDone: func() {
			if f.txEmpty {
				p.event("transmit queue empty")
			}
		},
		OnBreak: func() {
			if f.brk {
				p.event("break detected")
			}
		},
		OnRing: func() {
			if f.ring {
				p.event("ring")
			}
		},
		OnStatusChange: func(changed, state commport.ModemStatus) {
			if changed&f.modem != 0 {
				p.event("%s changed: %s", models.ModemLineNames(changed&f.modem), state)
			}
		},
		OnError: func(err error) {
			if f.err {
				p.event("error: %v", err)
			}
			onError(err)
		},
	}
}
