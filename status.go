package commport

import (
	"strconv"
	"strings"
)

// ModemStatus is a decoded snapshot of the modem input lines. The bit layout
// is the native MS_*_ON layout reported by the device.
type ModemStatus uint32

const (
	ModemCTS  ModemStatus = 0x0010 // Clear To Send
	ModemDSR  ModemStatus = 0x0020 // Data Set Ready
	ModemRing ModemStatus = 0x0040 // Ring Indicator
	ModemRLSD ModemStatus = 0x0080 // Receive Line Signal Detect (carrier)

	modemMask = ModemCTS | ModemDSR | ModemRing | ModemRLSD
)

// NewModemStatus keeps only the four modem line bits of raw.
func NewModemStatus(raw uint32) ModemStatus {
	return ModemStatus(raw) & modemMask
}

func (m ModemStatus) CTS() bool  { return m&ModemCTS != 0 }
func (m ModemStatus) DSR() bool  { return m&ModemDSR != 0 }
func (m ModemStatus) Ring() bool { return m&ModemRing != 0 }
func (m ModemStatus) RLSD() bool { return m&ModemRLSD != 0 }

func (m ModemStatus) String() string {
	parts := []string{
		"CTS=" + onOff(m.CTS()),
		"DSR=" + onOff(m.DSR()),
		"RLSD=" + onOff(m.RLSD()),
		"RING=" + onOff(m.Ring()),
	}
	return strings.Join(parts, " ")
}

// modemChanges maps the line-transition events onto the matching status bits.
func modemChanges(ev Event) ModemStatus {
	var m ModemStatus
	if ev&EventCTS != 0 {
		m |= ModemCTS
	}
	if ev&EventDSR != 0 {
		m |= ModemDSR
	}
	if ev&EventRLSD != 0 {
		m |= ModemRLSD
	}
	if ev&EventRing != 0 {
		m |= ModemRing
	}
	return m
}

// Queue status flag bits, as reported in COMSTAT.
const (
	QueueCTSHold  uint32 = 0x01
	QueueDSRHold  uint32 = 0x02
	QueueRLSDHold uint32 = 0x04
	QueueXoffHold uint32 = 0x08
	QueueXoffSent uint32 = 0x10
	QueueEOF      uint32 = 0x20
	QueueTxImm    uint32 = 0x40
)

// QueueStatus is a snapshot of transmit and receive queue occupancy.
type QueueStatus struct {
	Flags    uint32
	InQueue  int // bytes waiting in the receive queue
	OutQueue int // bytes waiting in the transmit queue
	InSize   int // receive queue capacity, 0 if unknown
	OutSize  int // transmit queue capacity, 0 if unknown
}

// CTSHold reports transmission waiting for CTS.
func (q QueueStatus) CTSHold() bool { return q.Flags&QueueCTSHold != 0 }

// DSRHold reports transmission waiting for DSR.
func (q QueueStatus) DSRHold() bool { return q.Flags&QueueDSRHold != 0 }

// RLSDHold reports transmission waiting for carrier.
func (q QueueStatus) RLSDHold() bool { return q.Flags&QueueRLSDHold != 0 }

// XoffHold reports transmission waiting after an Xoff was received.
func (q QueueStatus) XoffHold() bool { return q.Flags&QueueXoffHold != 0 }

// XoffSent reports transmission waiting after an Xoff was sent.
func (q QueueStatus) XoffSent() bool { return q.Flags&QueueXoffSent != 0 }

func (q QueueStatus) EOF() bool { return q.Flags&QueueEOF != 0 }

// Immediate reports a priority byte waiting to be sent.
func (q QueueStatus) Immediate() bool { return q.Flags&QueueTxImm != 0 }

func (q QueueStatus) String() string {
	var b strings.Builder
	b.WriteString("Tx: ")
	b.WriteString(queueFill(q.OutQueue, q.OutSize))
	b.WriteString(" Rx: ")
	b.WriteString(queueFill(q.InQueue, q.InSize))
	var holds []string
	if q.CTSHold() {
		holds = append(holds, "CTS")
	}
	if q.DSRHold() {
		holds = append(holds, "DSR")
	}
	if q.RLSDHold() {
		holds = append(holds, "RLSD")
	}
	if q.XoffHold() {
		holds = append(holds, "Rx XOFF")
	}
	if q.XoffSent() {
		holds = append(holds, "Tx XOFF")
	}
	if len(holds) > 0 {
		b.WriteString(" Holding on ")
		b.WriteString(strings.Join(holds, ", "))
	}
	if q.Immediate() {
		b.WriteString(" Immediate")
	}
	return b.String()
}

func queueFill(n, size int) string {
	if size > 0 {
		return strconv.Itoa(n) + "/" + strconv.Itoa(size)
	}
	return strconv.Itoa(n) + "/?"
}

// CommErrors is the set of error conditions reported by the device.
type CommErrors uint32

const (
	CommRxOverflow CommErrors = 0x0001 // receive queue overflow
	CommOverrun    CommErrors = 0x0002 // character buffer overrun
	CommParity     CommErrors = 0x0004 // parity error
	CommFraming    CommErrors = 0x0008 // framing error
	CommBreak      CommErrors = 0x0010 // break condition
	CommTxFull     CommErrors = 0x0100 // transmit queue full
	CommIO         CommErrors = 0x0400 // general I/O error
)

// Fatal is the subset of conditions that end the receive loop.
func (e CommErrors) Fatal() CommErrors {
	return e & (CommFraming | CommIO | CommOverrun | CommRxOverflow | CommParity | CommTxFull)
}

func (e CommErrors) String() string {
	var parts []string
	if e&CommFraming != 0 {
		parts = append(parts, "Framing")
	}
	if e&CommIO != 0 {
		parts = append(parts, "IO")
	}
	if e&CommOverrun != 0 {
		parts = append(parts, "Overrun")
	}
	if e&CommRxOverflow != 0 {
		parts = append(parts, "Receive Overflow")
	}
	if e&CommParity != 0 {
		parts = append(parts, "Parity")
	}
	if e&CommTxFull != 0 {
		parts = append(parts, "Transmit Overflow")
	}
	if e&CommBreak != 0 {
		parts = append(parts, "Break")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
