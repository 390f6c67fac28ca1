package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/allbin/go-commport/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// EntryKind tells what an Entry records.
type EntryKind int

const (
	EntryRX EntryKind = iota
	EntryTX
	EntryEvent
	EntryError
)

// TxStatus tracks a transmitted entry until the write completes.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxSent
	TxFailed
)

// Entry is one line of terminal output. Data holds bytes for RX and TX
// entries, Text holds the message for events and errors.
type Entry struct {
	Timestamp time.Time
	Kind      EntryKind
	Data      []byte
	Text      string
	Status    TxStatus
}

type DisplayMode struct {
	ShowHex   bool
	ShowASCII bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:   showHex,
			ShowASCII: showASCII,
		},
	}
}

func (df *DataFormatter) SetDisplayMode(showHex, showASCII bool) {
	df.mode.ShowHex = showHex
	df.mode.ShowASCII = showASCII
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) indicator(e Entry) string {
	var color lipgloss.Color
	var text string
	switch e.Kind {
	case EntryTX:
		switch e.Status {
		case TxPending:
			color, text = styles.Yellow, "↗ TX ○"
		case TxSent:
			color, text = styles.Green, "↗ TX ✓"
		default:
			color, text = styles.Red, "↗ TX ✗"
		}
	case EntryEvent:
		color, text = styles.Peach, "⚑ EV"
	case EntryError:
		color, text = styles.Red, "✗ ERR"
	default:
		color, text = styles.Sky, "↙ RX"
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(text)
}

// Payload renders the body of an entry without timestamp or indicator.
func (df *DataFormatter) Payload(e Entry) string {
	if e.Kind == EntryEvent || e.Kind == EntryError {
		return e.Text
	}

	var parts []string
	if df.mode.ShowHex {
		parts = append(parts, fmt.Sprintf("HEX: % X", e.Data))
	}
	if df.mode.ShowASCII {
		parts = append(parts, "ASCII: "+printable(e.Data))
	}
	if !df.mode.ShowHex && !df.mode.ShowASCII {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(e.Data)))
	}
	return strings.Join(parts, "  ")
}

func (df *DataFormatter) FormatEntry(e Entry) string {
	timestamp := lipgloss.NewStyle().
		Foreground(styles.Subtext0).
		Render(fmt.Sprintf("[%s]", e.Timestamp.Format("15:04:05.000")))

	return fmt.Sprintf("%s %s: %s", timestamp, df.indicator(e), df.Payload(e))
}

func (df *DataFormatter) FormatEntries(entries []Entry) []string {
	formatted := make([]string, len(entries))
	for i, e := range entries {
		formatted[i] = df.FormatEntry(e)
	}
	return formatted
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}

// printable replaces control and non-ASCII bytes with dots so that received
// data cannot inject terminal escape sequences.
func printable(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 32 && c <= 126 {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
