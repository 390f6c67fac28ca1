package components

import (
	"strings"
	"testing"
	"time"

	"github.com/allbin/go-commport"
)

func TestPayload(t *testing.T) {
	rx := Entry{Kind: EntryRX, Data: []byte("Hi\r\n")}

	tests := []struct {
		name      string
		hex, text bool
		entry     Entry
		want      string
	}{
		{"hex and ascii", true, true, rx, "HEX: 48 69 0D 0A  ASCII: Hi.."},
		{"hex only", true, false, rx, "HEX: 48 69 0D 0A"},
		{"ascii only", false, true, rx, "ASCII: Hi.."},
		{"neither", false, false, rx, "BYTES: 4"},
		{"escape sequence", false, true, Entry{Kind: EntryRX, Data: []byte("\x1b[2J")}, "ASCII: .[2J"},
		{"event", true, true, Entry{Kind: EntryEvent, Text: "ring"}, "ring"},
		{"error", true, true, Entry{Kind: EntryError, Text: "device gone"}, "device gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df := NewDataFormatter(tt.hex, tt.text)
			if got := df.Payload(tt.entry); got != tt.want {
				t.Errorf("Payload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatEntry(t *testing.T) {
	ts := time.Date(2025, 1, 1, 9, 30, 15, 250*int(time.Millisecond), time.UTC)
	df := NewDataFormatter(true, false)

	tests := []struct {
		name  string
		entry Entry
		want  []string
	}{
		{"rx", Entry{Timestamp: ts, Kind: EntryRX, Data: []byte{1}}, []string{"[09:30:15.250]", "RX", "HEX: 01"}},
		{"tx pending", Entry{Timestamp: ts, Kind: EntryTX, Data: []byte{2}, Status: TxPending}, []string{"TX ○", "HEX: 02"}},
		{"tx sent", Entry{Timestamp: ts, Kind: EntryTX, Status: TxSent}, []string{"TX ✓"}},
		{"tx failed", Entry{Timestamp: ts, Kind: EntryTX, Status: TxFailed}, []string{"TX ✗"}},
		{"event", Entry{Timestamp: ts, Kind: EntryEvent, Text: "break detected"}, []string{"EV", "break detected"}},
		{"error", Entry{Timestamp: ts, Kind: EntryError, Text: "timeout"}, []string{"ERR", "timeout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := df.FormatEntry(tt.entry)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("FormatEntry() = %q, want it to contain %q", got, w)
				}
			}
		})
	}
}

func TestToggleDisplayMode(t *testing.T) {
	df := NewDataFormatter(true, true)
	df.ToggleHex()
	if got := df.GetDisplayMode(); got.ShowHex || !got.ShowASCII {
		t.Errorf("after ToggleHex mode = %+v, want ascii only", got)
	}
	df.ToggleASCII()
	if got := df.GetDisplayMode(); got.ShowHex || got.ShowASCII {
		t.Errorf("after ToggleASCII mode = %+v, want neither", got)
	}
}

func TestHandshakeName(t *testing.T) {
	tests := []struct {
		h    commport.Handshake
		want string
	}{
		{commport.HandshakeNone, "none"},
		{commport.HandshakeXonXoff, "XON/XOFF"},
		{commport.HandshakeCtsRts, "RTS/CTS"},
		{commport.HandshakeDsrDtr, "DSR/DTR"},
	}

	for _, tt := range tests {
		t.Run(tt.h.String(), func(t *testing.T) {
			cfg := commport.DefaultConfig()
			cfg.SetHandshake(tt.h)
			if got := HandshakeName(cfg); got != tt.want {
				t.Errorf("HandshakeName() = %q, want %q", got, tt.want)
			}
		})
	}

	cfg := commport.DefaultConfig()
	cfg.TxFlowCTS = true
	if got := HandshakeName(cfg); got != "custom" {
		t.Errorf("HandshakeName() with CTS flow and RTS online = %q, want %q", got, "custom")
	}
}

func TestInputHistory(t *testing.T) {
	in := NewInput()
	in.AddToHistory("one")
	in.AddToHistory("two")
	in.AddToHistory("two")
	in.AddToHistory("   ")
	in.SetValue("draft")

	in.NavigateHistoryUp()
	if got := in.Value(); got != "two" {
		t.Errorf("first up = %q, want %q", got, "two")
	}
	in.NavigateHistoryUp()
	in.NavigateHistoryUp()
	if got := in.Value(); got != "one" {
		t.Errorf("up past oldest = %q, want %q", got, "one")
	}
	in.NavigateHistoryDown()
	if got := in.Value(); got != "two" {
		t.Errorf("down = %q, want %q", got, "two")
	}
	in.NavigateHistoryDown()
	if got := in.Value(); got != "draft" {
		t.Errorf("down past newest = %q, want %q", got, "draft")
	}
}

func TestInputSendingMode(t *testing.T) {
	in := NewInput()
	if got := in.GetSendingMode(); got != SendingModeASCII {
		t.Fatalf("initial mode = %v, want %v", got, SendingModeASCII)
	}
	in.ToggleSendingMode()
	if got := in.GetSendingMode(); got != SendingModeHex {
		t.Errorf("after toggle mode = %v, want %v", got, SendingModeHex)
	}
	in.ToggleSendingMode()
	if got := in.GetSendingMode(); got != SendingModeASCII {
		t.Errorf("after second toggle mode = %v, want %v", got, SendingModeASCII)
	}
}

func TestTerminalMaxLines(t *testing.T) {
	term := NewTerminal(80, 10)
	term.SetMaxLines(2)
	for _, text := range []string{"one", "two", "three"} {
		term.AddEntry(Entry{Kind: EntryEvent, Text: text})
	}

	if len(term.lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(term.lines))
	}
	if !strings.Contains(term.lines[0], "two") || !strings.Contains(term.lines[1], "three") {
		t.Errorf("lines = %q, want the two newest entries", term.lines)
	}

	term.Clear()
	if len(term.lines) != 0 {
		t.Errorf("len(lines) after Clear = %d, want 0", len(term.lines))
	}
}
