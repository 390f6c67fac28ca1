package commport

// ControlBlock is the device control block handed to the platform layer.
// Field meanings and the Flags bit layout follow the Win32 DCB; other
// platforms translate from it.
type ControlBlock struct {
	BaudRate uint32
	Flags    uint32
	XonLim   uint16
	XoffLim  uint16
	ByteSize byte
	Parity   Parity
	StopBits StopBits
	XonChar  byte
	XoffChar byte
}

// ControlBlock flag bits.
const (
	DCBBinary           uint32 = 0x00000001
	DCBParity           uint32 = 0x00000002
	DCBOutxCTSFlow      uint32 = 0x00000004
	DCBOutxDSRFlow      uint32 = 0x00000008
	DCBDTRControlMask   uint32 = 0x00000030
	DCBDSRSensitivity   uint32 = 0x00000040
	DCBTxContinueOnXoff uint32 = 0x00000080
	DCBOutX             uint32 = 0x00000100
	DCBInX              uint32 = 0x00000200
	DCBErrorChar        uint32 = 0x00000400
	DCBNull             uint32 = 0x00000800
	DCBRTSControlMask   uint32 = 0x00003000
	DCBAbortOnError     uint32 = 0x00004000

	dcbDTRControlShift = 4
	dcbRTSControlShift = 12
)

// DTRControl extracts the DTR output control from the flags.
func (b ControlBlock) DTRControl() OutputControl {
	return OutputControl((b.Flags & DCBDTRControlMask) >> dcbDTRControlShift)
}

// RTSControl extracts the RTS output control from the flags.
func (b ControlBlock) RTSControl() OutputControl {
	return OutputControl((b.Flags & DCBRTSControlMask) >> dcbRTSControlShift)
}

func (b ControlBlock) has(flag uint32) bool {
	return b.Flags&flag != 0
}

// ControlBlock translates the configuration into the native control block.
// No range checking is done here; the device decides what it accepts.
func (c Config) ControlBlock() ControlBlock {
	b := ControlBlock{
		BaudRate: uint32(c.BaudRate),
		Flags:    DCBBinary,
		XonLim:   uint16(c.RxLowWater),
		XoffLim:  uint16(c.RxHighWater),
		ByteSize: byte(c.DataBits),
		Parity:   c.Parity,
		StopBits: c.StopBits,
		XonChar:  c.XonChar,
		XoffChar: c.XoffChar,
	}
	if c.Parity == ParityOdd || c.Parity == ParityEven {
		b.Flags |= DCBParity
	}
	if c.TxFlowCTS {
		b.Flags |= DCBOutxCTSFlow
	}
	if c.TxFlowDSR {
		b.Flags |= DCBOutxDSRFlow
	}
	b.Flags |= (uint32(c.DTRControl) << dcbDTRControlShift) & DCBDTRControlMask
	if c.RxGateDSR {
		b.Flags |= DCBDSRSensitivity
	}
	if c.TxWhenRxXoff {
		b.Flags |= DCBTxContinueOnXoff
	}
	if c.TxFlowX {
		b.Flags |= DCBOutX
	}
	if c.RxFlowX {
		b.Flags |= DCBInX
	}
	b.Flags |= (uint32(c.RTSControl) << dcbRTSControlShift) & DCBRTSControlMask
	return b
}

// initialLineState is the software-visible state of an output line right
// after Open, given how the driver was told to manage it.
func initialLineState(o OutputControl) LineState {
	switch o {
	case OutputNone:
		return LineOff
	case OutputOnline:
		return LineOn
	default:
		return LineUnsupported
	}
}
