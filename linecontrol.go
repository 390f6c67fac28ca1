package commport

import "fmt"

// LineState is the software-visible state of an RTS, DTR or Break output.
type LineState uint8

const (
	LineOff         LineState = 0
	LineOn          LineState = 1
	LineUnsupported LineState = 2 // not under software control until the next Open
)

func (s LineState) String() string {
	switch s {
	case LineOff:
		return "OFF"
	case LineOn:
		return "ON"
	case LineUnsupported:
		return "N/A"
	default:
		return "?"
	}
}

func lineStateOf(on bool) LineState {
	if on {
		return LineOn
	}
	return LineOff
}

// RTS returns the current state of the RTS output.
func (c *Connection) RTS() LineState { return c.rts }

// DTR returns the current state of the DTR output.
func (c *Connection) DTR() LineState { return c.dtr }

// Break returns the current state of the break condition.
func (c *Connection) Break() LineState { return c.brk }

// SetRTS drives the RTS output. It does nothing while RTS is not under
// software control, for example when it is used for hardware handshaking.
func (c *Connection) SetRTS(on bool) error {
	return c.setLine(&c.rts, "RTS", on, EscapeSetRTS, EscapeClrRTS)
}

// SetDTR drives the DTR output. It does nothing while DTR is not under
// software control.
func (c *Connection) SetDTR(on bool) error {
	return c.setLine(&c.dtr, "DTR", on, EscapeSetDTR, EscapeClrDTR)
}

// SetBreak asserts or removes a break condition on the transmit line.
func (c *Connection) SetBreak(on bool) error {
	return c.setLine(&c.brk, "break", on, EscapeSetBreak, EscapeClrBreak)
}

func (c *Connection) setLine(state *LineState, name string, on bool, set, clr EscapeFunction) error {
	if *state == LineUnsupported {
		return nil
	}
	if err := c.checkOnline(); err != nil {
		return err
	}

	fn := clr
	if on {
		fn = set
	}
	if err := c.dev.Escape(fn); err != nil {
		return c.fail(fmt.Errorf("%w: unexpected failure setting %s: %w", ErrIO, name, err))
	}
	*state = lineStateOf(on)
	c.log.Debugw("line changed", "port", c.name, "line", name, "state", *state)
	return nil
}
