package commport

import "time"

// Parity represents the parity mode. Values are the native DCB encoding.
type Parity byte

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	default:
		return "?"
	}
}

// StopBits represents the number of stop bits. Values are the native DCB encoding.
type StopBits byte

const (
	StopBitsOne StopBits = iota
	StopBitsOneHalf
	StopBitsTwo
)

func (s StopBits) String() string {
	switch s {
	case StopBitsOne:
		return "1"
	case StopBitsOneHalf:
		return "1.5"
	case StopBitsTwo:
		return "2"
	default:
		return "?"
	}
}

// OutputControl selects how the driver manages an RTS or DTR output line.
type OutputControl byte

const (
	OutputNone      OutputControl = iota // line held off
	OutputOnline                         // line on while the port is open
	OutputHandshake                      // driver uses the line for flow control
	OutputGate                           // line on while transmitting (RTS only)
)

func (o OutputControl) String() string {
	switch o {
	case OutputNone:
		return "none"
	case OutputOnline:
		return "online"
	case OutputHandshake:
		return "handshake"
	case OutputGate:
		return "gate"
	default:
		return "unknown"
	}
}

// Handshake is a named flow-control preset.
type Handshake int

const (
	HandshakeNone Handshake = iota
	HandshakeXonXoff
	HandshakeCtsRts
	HandshakeDsrDtr
)

func (h Handshake) String() string {
	switch h {
	case HandshakeNone:
		return "none"
	case HandshakeXonXoff:
		return "xonxoff"
	case HandshakeCtsRts:
		return "ctsrts"
	case HandshakeDsrDtr:
		return "dsrdtr"
	default:
		return "unknown"
	}
}

const (
	ASCIIXon  byte = 0x11
	ASCIIXoff byte = 0x13
)

// Config holds the configuration for a serial connection. Queue sizes and
// timeouts take effect at the next Open.
type Config struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits

	TxFlowCTS    bool          // transmit gated on CTS
	TxFlowDSR    bool          // transmit gated on DSR
	TxFlowX      bool          // transmit honours Xon/Xoff from the device
	RxFlowX      bool          // receive sends Xon/Xoff to the device
	RTSControl   OutputControl // use of the RTS output
	DTRControl   OutputControl // use of the DTR output
	TxWhenRxXoff bool          // keep transmitting after sending Xoff
	RxGateDSR    bool          // discard received bytes while DSR is off

	XonChar     byte
	XoffChar    byte
	RxHighWater int // receive occupancy that triggers Xoff / RTS / DTR off
	RxLowWater  int // receive occupancy that triggers Xon / RTS / DTR on

	RxQueue int // requested receive queue size, 0 for driver default
	TxQueue int // requested transmit queue size, 0 for driver default

	// A send must complete within SendTimeoutConstant plus
	// SendTimeoutMultiplier per byte. Zero for both disables the limit.
	SendTimeoutConstant   time.Duration
	SendTimeoutMultiplier time.Duration

	AutoReopen    bool   // reopen once when an operation finds the port offline
	CheckAllSends bool   // wait for every Write to complete before returning
	NewLine       string // appended by WriteLine
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	c := Config{
		BaudRate:      115200,
		DataBits:      8,
		Parity:        ParityNone,
		StopBits:      StopBitsOne,
		XonChar:       ASCIIXon,
		XoffChar:      ASCIIXoff,
		RxHighWater:   2048,
		RxLowWater:    512,
		CheckAllSends: true,
		NewLine:       "\r\n",
	}
	c.SetHandshake(HandshakeNone)
	return c
}

// SetHandshake overwrites the flow-control fields with the preset for h.
// Other fields are left untouched.
func (c *Config) SetHandshake(h Handshake) {
	c.TxFlowCTS = false
	c.TxFlowDSR = false
	c.TxFlowX = false
	c.RxFlowX = false
	c.RTSControl = OutputOnline
	c.DTRControl = OutputOnline
	c.TxWhenRxXoff = true
	c.RxGateDSR = false

	switch h {
	case HandshakeXonXoff:
		c.TxFlowX = true
		c.RxFlowX = true
	case HandshakeCtsRts:
		c.TxFlowCTS = true
		c.RTSControl = OutputHandshake
	case HandshakeDsrDtr:
		c.TxFlowDSR = true
		c.DTRControl = OutputHandshake
	}
}

// sendBudget is the time a write of n bytes may take before it is
// considered timed out. Zero means no limit.
func (c Config) sendBudget(n int) time.Duration {
	return c.SendTimeoutConstant + time.Duration(n)*c.SendTimeoutMultiplier
}
