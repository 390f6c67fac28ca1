package commport

import (
	"context"
	"time"
)

// Event is a set of hardware events reported by WaitEvent. The bit layout is
// the native EV_* layout.
type Event uint32

const (
	EventRxChar  Event = 0x0001 // a byte was received
	EventRxFlag  Event = 0x0002 // the event character was received
	EventTxEmpty Event = 0x0004 // the last byte of the transmit queue was sent
	EventCTS     Event = 0x0008 // CTS changed state
	EventDSR     Event = 0x0010 // DSR changed state
	EventRLSD    Event = 0x0020 // carrier detect changed state
	EventBreak   Event = 0x0040 // a break was detected on input
	EventErr     Event = 0x0080 // a line-status error occurred
	EventRing    Event = 0x0100 // a ring indicator was detected

	// monitoredEvents is the set the receive loop arms on every iteration.
	monitoredEvents = EventRxChar | EventTxEmpty | EventCTS | EventDSR |
		EventRLSD | EventBreak | EventErr | EventRing
)

// EscapeFunction is an extended line-control command.
type EscapeFunction uint32

const (
	EscapeSetXoff  EscapeFunction = 1
	EscapeSetXon   EscapeFunction = 2
	EscapeSetRTS   EscapeFunction = 3
	EscapeClrRTS   EscapeFunction = 4
	EscapeSetDTR   EscapeFunction = 5
	EscapeClrDTR   EscapeFunction = 6
	EscapeSetBreak EscapeFunction = 8
	EscapeClrBreak EscapeFunction = 9
)

// Timeouts configures the device's own request timeouts. NonBlockingReads
// makes reads return at once with whatever is queued.
type Timeouts struct {
	NonBlockingReads bool
	WriteConstant    time.Duration
	WriteMultiplier  time.Duration
}

// WriteRequest is an outstanding asynchronous write.
type WriteRequest interface {
	// Done is closed once the request has completed, failed or been canceled.
	Done() <-chan struct{}
	// Result reports the bytes transferred. Only valid after Done is closed.
	Result() (int, error)
	// Cancel asks the device to abandon the request; Done still closes.
	Cancel() error
}

// Device is the operating system handle to one serial port. The receive
// loop and the caller use it concurrently, but never the same request slot:
// at most one write and one read are outstanding at any time.
type Device interface {
	SetupQueues(rx, tx int) error
	SetTimeouts(t Timeouts) error
	SetState(b ControlBlock) error

	// Write starts an asynchronous write of p.
	Write(p []byte) (WriteRequest, error)
	// Read reads queued bytes without waiting. It returns 0, nil when the
	// receive queue is empty and ErrPending when the request was left
	// outstanding; the caller must then call CancelRead.
	Read(p []byte) (int, error)
	CancelRead() error
	// TransmitImmediate sends b ahead of any queued output.
	TransmitImmediate(b byte) error

	// WaitEvent blocks until one of the events in mask fires or ctx is done.
	WaitEvent(ctx context.Context, mask Event) (Event, error)
	// ClearErrors returns and resets the pending error conditions.
	ClearErrors() (CommErrors, error)
	ModemStatus() (ModemStatus, error)
	QueueStatus() (QueueStatus, error)
	Escape(fn EscapeFunction) error

	// CancelIO abandons every outstanding request on the handle.
	CancelIO() error
	Close() error
}

// OpenFunc acquires the device named name. It returns ErrPortUnavailable
// when another process holds the device exclusively.
type OpenFunc func(name string) (Device, error)
