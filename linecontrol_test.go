package commport

import (
	"errors"
	"slices"
	"testing"
)

func TestSetLines(t *testing.T) {
	tests := []struct {
		name string
		set  func(c *Connection, on bool) error
		get  func(c *Connection) LineState
		on   EscapeFunction
		off  EscapeFunction
	}{
		{"rts", (*Connection).SetRTS, (*Connection).RTS, EscapeSetRTS, EscapeClrRTS},
		{"dtr", (*Connection).SetDTR, (*Connection).DTR, EscapeSetDTR, EscapeClrDTR},
		{"break", (*Connection).SetBreak, (*Connection).Break, EscapeSetBreak, EscapeClrBreak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDevice()
			c := openTestConnection(t, d)

			if err := tt.set(c, true); err != nil {
				t.Fatalf("set(true) error = %v", err)
			}
			if got := tt.get(c); got != LineOn {
				t.Errorf("state = %v, want %v", got, LineOn)
			}
			if err := tt.set(c, false); err != nil {
				t.Fatalf("set(false) error = %v", err)
			}
			if got := tt.get(c); got != LineOff {
				t.Errorf("state = %v, want %v", got, LineOff)
			}
			if got, want := d.escapeLog(), []EscapeFunction{tt.on, tt.off}; !slices.Equal(got, want) {
				t.Errorf("escapes = %v, want %v", got, want)
			}
		})
	}
}

func TestSetLineUnderHandshake(t *testing.T) {
	d := newFakeDevice()
	c := openTestConnection(t, d, WithHandshake(HandshakeCtsRts))

	if err := c.SetRTS(false); err != nil {
		t.Errorf("SetRTS() error = %v", err)
	}
	if got := c.RTS(); got != LineUnsupported {
		t.Errorf("RTS() = %v, want %v", got, LineUnsupported)
	}
	if got := d.escapeLog(); len(got) != 0 {
		t.Errorf("escapes = %v, want none", got)
	}

	if err := c.SetDTR(false); err != nil {
		t.Errorf("SetDTR() error = %v", err)
	}
	if got := c.DTR(); got != LineOff {
		t.Errorf("DTR() = %v, want %v", got, LineOff)
	}
}

func TestSetLineWhileClosed(t *testing.T) {
	d := newFakeDevice()
	c := newTestConnection(t, d, WithAutoReopen(true))

	if err := c.SetRTS(true); err != nil {
		t.Errorf("SetRTS() on a closed port error = %v", err)
	}
	if got := d.openCount(); got != 0 {
		t.Errorf("device opened %d times by an unsupported line", got)
	}
}

func TestLineStatesAcrossReopen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RTSControl = OutputNone
	d := newFakeDevice()
	c := openTestConnection(t, d, WithConfig(cfg))

	if got := c.RTS(); got != LineOff {
		t.Fatalf("RTS() after Open = %v, want %v", got, LineOff)
	}
	if err := c.SetRTS(true); err != nil {
		t.Fatalf("SetRTS() error = %v", err)
	}
	if err := c.SetBreak(true); err != nil {
		t.Fatalf("SetBreak() error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for name, s := range map[string]LineState{"RTS": c.RTS(), "DTR": c.DTR(), "Break": c.Break()} {
		if s != LineUnsupported {
			t.Errorf("%s() after Close = %v, want %v", name, s, LineUnsupported)
		}
	}

	if ok, err := c.Open(); !ok || err != nil {
		t.Fatalf("Open() = %v, %v", ok, err)
	}
	if got := c.RTS(); got != LineOff {
		t.Errorf("RTS() after reopen = %v, want %v", got, LineOff)
	}
	if got := c.DTR(); got != LineOn {
		t.Errorf("DTR() after reopen = %v, want %v", got, LineOn)
	}
	if got := c.Break(); got != LineOff {
		t.Errorf("Break() after reopen = %v, want %v", got, LineOff)
	}
}

func TestSetLineFailure(t *testing.T) {
	d := newFakeDevice()
	d.escapeErr = errors.New("not supported")
	c := openTestConnection(t, d)

	err := c.SetDTR(false)
	if !errors.Is(err, ErrIO) {
		t.Errorf("SetDTR() error = %v, want %v", err, ErrIO)
	}
	if c.Online() {
		t.Error("Online() = true after line control failure")
	}
	if got := c.DTR(); got != LineUnsupported {
		t.Errorf("DTR() = %v, want %v", got, LineUnsupported)
	}
}
