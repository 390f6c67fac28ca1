//go:build windows

package commport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/windows"
)

var (
	kernel32              = windows.NewLazySystemDLL("kernel32.dll")
	procTransmitCommChar  = kernel32.NewProc("TransmitCommChar")
	procGetCommProperties = kernel32.NewProc("GetCommProperties")
)

// commProp mirrors COMMPROP up to the current queue sizes.
type commProp struct {
	PacketLength       uint16
	PacketVersion      uint16
	ServiceMask        uint32
	Reserved1          uint32
	MaxTxQueue         uint32
	MaxRxQueue         uint32
	MaxBaud            uint32
	ProvSubType        uint32
	ProvCapabilities   uint32
	SettableParams     uint32
	SettableBaud       uint32
	SettableData       uint16
	SettableStopParity uint16
	CurrentTxQueue     uint32
	CurrentRxQueue     uint32
	ProvSpec1          uint32
	ProvSpec2          uint32
	ProvChar           [1]uint16
}

// comDevice is a COM port handle opened for overlapped I/O.
type comDevice struct {
	h windows.Handle

	mu    sync.Mutex
	write *comWrite
	lost  CommErrors // errors cleared by QueueStatus, kept for ClearErrors

	read windows.Overlapped
}

// Ensure comDevice implements Device at compile time
var _ Device = (*comDevice)(nil)

func openDevice(name string) (Device, error) {
	path := name
	if !strings.HasPrefix(path, `\\.\`) {
		path = `\\.\` + path
	}
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}

	h, err := windows.CreateFile(p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,   // exclusive
		nil, // default security attributes
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OVERLAPPED,
		0)
	if err != nil {
		switch err {
		case windows.ERROR_ACCESS_DENIED, windows.ERROR_SHARING_VIOLATION:
			return nil, fmt.Errorf("%w: %w", ErrPortUnavailable, err)
		case windows.ERROR_FILE_NOT_FOUND, windows.ERROR_PATH_NOT_FOUND:
			return nil, fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
		}
		return nil, err
	}

	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("read event: %w", err)
	}
	d := &comDevice{h: h}
	d.read.HEvent = ev
	return d, nil
}

func (d *comDevice) SetupQueues(rx, tx int) error {
	return windows.SetupComm(d.h, uint32(rx), uint32(tx))
}

func (d *comDevice) SetTimeouts(t Timeouts) error {
	ct := windows.CommTimeouts{
		WriteTotalTimeoutConstant:   uint32(t.WriteConstant / time.Millisecond),
		WriteTotalTimeoutMultiplier: uint32(t.WriteMultiplier / time.Millisecond),
	}
	if t.NonBlockingReads {
		ct.ReadIntervalTimeout = 0xFFFFFFFF
	}
	return windows.SetCommTimeouts(d.h, &ct)
}

func (d *comDevice) SetState(b ControlBlock) error {
	var dcb windows.DCB
	if err := windows.GetCommState(d.h, &dcb); err != nil {
		return fmt.Errorf("get comm state: %w", err)
	}
	dcb.DCBlength = uint32(unsafe.Sizeof(dcb))
	dcb.BaudRate = b.BaudRate
	dcb.Flags = b.Flags
	dcb.XonLim = b.XonLim
	dcb.XoffLim = b.XoffLim
	dcb.ByteSize = b.ByteSize
	dcb.Parity = byte(b.Parity)
	dcb.StopBits = byte(b.StopBits)
	dcb.XonChar = b.XonChar
	dcb.XoffChar = b.XoffChar
	return windows.SetCommState(d.h, &dcb)
}

// comWrite is an overlapped write. The buffer and OVERLAPPED stay
// referenced until the request completes.
type comWrite struct {
	h    windows.Handle
	ov   windows.Overlapped
	buf  []byte
	done chan struct{}
	n    uint32
	err  error
}

func (w *comWrite) Done() <-chan struct{} { return w.done }

func (w *comWrite) Result() (int, error) { return int(w.n), w.err }

func (w *comWrite) Cancel() error {
	err := windows.CancelIoEx(w.h, &w.ov)
	if err == windows.ERROR_NOT_FOUND {
		return nil
	}
	return err
}

func (d *comDevice) Write(p []byte) (WriteRequest, error) {
	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, err
	}
	w := &comWrite{h: d.h, buf: append([]byte(nil), p...), done: make(chan struct{})}
	w.ov.HEvent = ev

	d.mu.Lock()
	d.write = w
	d.mu.Unlock()

	err = windows.WriteFile(d.h, w.buf, &w.n, &w.ov)
	switch err {
	case nil:
		windows.CloseHandle(ev)
		close(w.done)
		return w, nil
	case windows.ERROR_IO_PENDING:
		go w.wait()
		return w, nil
	}
	windows.CloseHandle(ev)
	return nil, err
}

func (w *comWrite) wait() {
	defer close(w.done)
	defer windows.CloseHandle(w.ov.HEvent)

	err := windows.GetOverlappedResult(w.h, &w.ov, &w.n, true)
	if err != nil && err != windows.ERROR_OPERATION_ABORTED {
		w.err = err
	}
}

// Read returns queued input at once; the timeouts make the driver complete
// reads with whatever is buffered.
func (d *comDevice) Read(p []byte) (int, error) {
	windows.ResetEvent(d.read.HEvent)
	var n uint32
	err := windows.ReadFile(d.h, p, &n, &d.read)
	switch err {
	case nil:
		return int(n), nil
	case windows.ERROR_IO_PENDING:
		return 0, ErrPending
	}
	return 0, err
}

// CancelRead cancels the pending read and waits until the driver has let
// go of the buffer.
func (d *comDevice) CancelRead() error {
	if err := windows.CancelIoEx(d.h, &d.read); err != nil && err != windows.ERROR_NOT_FOUND {
		return err
	}
	var n uint32
	err := windows.GetOverlappedResult(d.h, &d.read, &n, true)
	if err != nil && err != windows.ERROR_OPERATION_ABORTED {
		return err
	}
	return nil
}

func (d *comDevice) TransmitImmediate(b byte) error {
	r, _, err := procTransmitCommChar.Call(uintptr(d.h), uintptr(b))
	if r == 0 {
		return err
	}
	return nil
}

// WaitEvent arms the event mask and waits for WaitCommEvent to complete.
// Canceling ctx cancels the request.
func (d *comDevice) WaitEvent(ctx context.Context, mask Event) (Event, error) {
	if err := windows.SetCommMask(d.h, uint32(mask)); err != nil {
		return 0, fmt.Errorf("set comm mask: %w", err)
	}

	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(ev)
	ov := &windows.Overlapped{HEvent: ev}

	var fired uint32
	err = windows.WaitCommEvent(d.h, &fired, ov)
	if err == windows.ERROR_IO_PENDING {
		stop := context.AfterFunc(ctx, func() {
			windows.CancelIoEx(d.h, ov)
		})
		var n uint32
		err = windows.GetOverlappedResult(d.h, ov, &n, true)
		stop()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, err
	}
	return Event(fired), nil
}

func (d *comDevice) ClearErrors() (CommErrors, error) {
	var errs uint32
	if err := windows.ClearCommError(d.h, &errs, nil); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	e := CommErrors(errs) | d.lost
	d.lost = 0
	return e, nil
}

func (d *comDevice) ModemStatus() (ModemStatus, error) {
	var bits uint32
	if err := windows.GetCommModemStatus(d.h, &bits); err != nil {
		return 0, err
	}
	return NewModemStatus(bits), nil
}

func (d *comDevice) QueueStatus() (QueueStatus, error) {
	var errs uint32
	var cs windows.ComStat
	if err := windows.ClearCommError(d.h, &errs, &cs); err != nil {
		return QueueStatus{}, err
	}
	d.mu.Lock()
	d.lost |= CommErrors(errs)
	d.mu.Unlock()

	var cp commProp
	cp.PacketLength = uint16(unsafe.Sizeof(cp))
	if r, _, err := procGetCommProperties.Call(uintptr(d.h), uintptr(unsafe.Pointer(&cp))); r == 0 {
		return QueueStatus{}, fmt.Errorf("comm properties: %w", err)
	}

	return QueueStatus{
		Flags:    cs.Flags,
		InQueue:  int(cs.CBInQue),
		OutQueue: int(cs.CBOutQue),
		InSize:   int(cp.CurrentRxQueue),
		OutSize:  int(cp.CurrentTxQueue),
	}, nil
}

func (d *comDevice) Escape(fn EscapeFunction) error {
	return windows.EscapeCommFunction(d.h, uint32(fn))
}

// CancelIO cancels every request on the handle and waits for the
// outstanding write to finish.
func (d *comDevice) CancelIO() error {
	err := windows.CancelIoEx(d.h, nil)
	if errors.Is(err, windows.ERROR_NOT_FOUND) {
		err = nil
	}
	d.mu.Lock()
	w := d.write
	d.mu.Unlock()
	if w != nil {
		<-w.done
	}
	return err
}

func (d *comDevice) Close() error {
	return multierr.Combine(
		d.CancelIO(),
		windows.CloseHandle(d.read.HEvent),
		windows.CloseHandle(d.h),
	)
}
