//go:build linux

package commport

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// eventPollInterval bounds how long WaitEvent sleeps between line checks.
// Linux only signals received data through poll; line and error changes are
// found by comparing TIOCMGET and TIOCGICOUNT snapshots.
const eventPollInterval = 20 * time.Millisecond

// serialCounter mirrors struct serial_icounter_struct.
type serialCounter struct {
	CTS, DSR, RNG, DCD int32
	RX, TX             int32
	Frame, Overrun     int32
	Parity, Brk        int32
	BufOverrun         int32
	Reserved           [9]int32
}

// ttyDevice is a serial device node opened in non-blocking mode.
type ttyDevice struct {
	fd int

	mu       sync.Mutex
	timeouts Timeouts
	block    ControlBlock
	write    *ttyWrite
	txBusy   bool // output was queued since the last TXEMPTY
	modem    int
	counts   serialCounter
	noCounts bool // driver does not support TIOCGICOUNT
	errs     CommErrors
}

// Ensure ttyDevice implements Device at compile time
var _ Device = (*ttyDevice)(nil)

func openDevice(name string) (Device, error) {
	fd, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		switch err {
		case unix.ENOENT, unix.ENODEV, unix.ENXIO:
			return nil, fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
		case unix.EACCES, unix.EPERM:
			return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		case unix.EBUSY:
			return nil, fmt.Errorf("%w: %w", ErrPortUnavailable, err)
		}
		return nil, err
	}

	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%w: %w", ErrPortUnavailable, err)
		}
		return nil, fmt.Errorf("lock: %w", err)
	}
	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("exclusive mode: %w", err)
	}

	d := &ttyDevice{fd: fd}
	d.snapshot()
	return d, nil
}

// SetupQueues is accepted without effect; tty buffer sizes are fixed by the
// kernel.
func (d *ttyDevice) SetupQueues(rx, tx int) error {
	if rx < 0 || tx < 0 {
		return unix.EINVAL
	}
	return nil
}

func (d *ttyDevice) SetTimeouts(t Timeouts) error {
	d.mu.Lock()
	d.timeouts = t
	d.mu.Unlock()
	return nil
}

// SetState translates the control block into termios settings and drives
// the RTS and DTR outputs the driver does not manage itself.
func (d *ttyDevice) SetState(b ControlBlock) error {
	termios, err := unix.IoctlGetTermios(d.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}
	if err := applyControlBlock(termios, b); err != nil {
		return err
	}
	if err := unix.IoctlSetTermios(d.fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}

	if err := d.driveLine(unix.TIOCM_RTS, b.RTSControl()); err != nil {
		return fmt.Errorf("RTS: %w", err)
	}
	if err := d.driveLine(unix.TIOCM_DTR, b.DTRControl()); err != nil {
		return fmt.Errorf("DTR: %w", err)
	}

	d.mu.Lock()
	d.block = b
	d.mu.Unlock()
	d.snapshot()
	return nil
}

func (d *ttyDevice) driveLine(bit int, o OutputControl) error {
	switch o {
	case OutputNone:
		return unix.IoctlSetPointerInt(d.fd, unix.TIOCMBIC, bit)
	case OutputOnline:
		return unix.IoctlSetPointerInt(d.fd, unix.TIOCMBIS, bit)
	}
	return nil
}

// applyControlBlock configures raw mode plus the framing and flow control
// in b. Settings the tty layer cannot express are rejected with EINVAL.
func applyControlBlock(t *unix.Termios, b ControlBlock) error {
	baud, err := getBaudRate(int(b.BaudRate))
	if err != nil {
		return err
	}

	t.Iflag = unix.IGNBRK
	t.Oflag = 0
	t.Lflag = 0
	t.Cflag = unix.CREAD | unix.CLOCAL | baud
	t.Ispeed = baud
	t.Ospeed = baud
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	switch b.ByteSize {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	case 8:
		t.Cflag |= unix.CS8
	default:
		return fmt.Errorf("data bits %d: %w", b.ByteSize, unix.EINVAL)
	}

	switch b.StopBits {
	case StopBitsOne:
	case StopBitsTwo:
		t.Cflag |= unix.CSTOPB
	case StopBitsOneHalf:
		// CSTOPB means 1.5 stop bits with 5 data bits
		if b.ByteSize != 5 {
			return fmt.Errorf("1.5 stop bits with %d data bits: %w", b.ByteSize, unix.EINVAL)
		}
		t.Cflag |= unix.CSTOPB
	default:
		return fmt.Errorf("stop bits %d: %w", b.StopBits, unix.EINVAL)
	}

	switch b.Parity {
	case ParityNone:
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		t.Cflag |= unix.PARENB
	case ParityMark:
		t.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case ParitySpace:
		t.Cflag |= unix.PARENB | unix.CMSPAR
	default:
		return fmt.Errorf("parity %d: %w", b.Parity, unix.EINVAL)
	}
	if b.has(DCBParity) && b.Parity != ParityNone {
		t.Iflag |= unix.INPCK
	}

	if b.has(DCBOutxDSRFlow) || b.has(DCBDSRSensitivity) || b.DTRControl() == OutputHandshake {
		return fmt.Errorf("DSR/DTR flow control: %w", unix.EINVAL)
	}
	if b.RTSControl() == OutputGate {
		return fmt.Errorf("RTS transmit gating: %w", unix.EINVAL)
	}
	if b.has(DCBOutxCTSFlow) || b.RTSControl() == OutputHandshake {
		t.Cflag |= unix.CRTSCTS
	}

	if b.has(DCBOutX) {
		t.Iflag |= unix.IXON
	}
	if b.has(DCBInX) {
		t.Iflag |= unix.IXOFF
	}
	t.Cc[unix.VSTART] = b.XonChar
	t.Cc[unix.VSTOP] = b.XoffChar
	return nil
}

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	switch rate {
	case 50:
		return unix.B50, nil
	case 75:
		return unix.B75, nil
	case 110:
		return unix.B110, nil
	case 134:
		return unix.B134, nil
	case 150:
		return unix.B150, nil
	case 200:
		return unix.B200, nil
	case 300:
		return unix.B300, nil
	case 600:
		return unix.B600, nil
	case 1200:
		return unix.B1200, nil
	case 1800:
		return unix.B1800, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 500000:
		return unix.B500000, nil
	case 576000:
		return unix.B576000, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1152000:
		return unix.B1152000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 2500000:
		return unix.B2500000, nil
	case 3000000:
		return unix.B3000000, nil
	case 3500000:
		return unix.B3500000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, fmt.Errorf("baud rate %d: %w", rate, unix.EINVAL)
	}
}

// ttyWrite is an outstanding write, finished by a goroutine that waits for
// room in the output buffer.
type ttyWrite struct {
	done   chan struct{}
	cancel chan struct{}
	once   sync.Once
	n      int
	err    error
}

func (w *ttyWrite) Done() <-chan struct{} { return w.done }

func (w *ttyWrite) Result() (int, error) { return w.n, w.err }

func (w *ttyWrite) Cancel() error {
	w.once.Do(func() { close(w.cancel) })
	return nil
}

func (d *ttyDevice) Write(p []byte) (WriteRequest, error) {
	w := &ttyWrite{done: make(chan struct{}), cancel: make(chan struct{})}

	n, err := unix.Write(d.fd, p)
	if err != nil && err != unix.EAGAIN {
		return nil, err
	}
	if n < 0 {
		n = 0
	}

	d.mu.Lock()
	d.txBusy = true
	d.write = w
	t := d.timeouts
	d.mu.Unlock()

	w.n = n
	if n == len(p) {
		close(w.done)
		return w, nil
	}

	rest := append([]byte(nil), p[n:]...)
	budget := t.WriteConstant + time.Duration(len(p))*t.WriteMultiplier
	go d.finishWrite(w, rest, budget)
	return w, nil
}

func (d *ttyDevice) finishWrite(w *ttyWrite, rest []byte, budget time.Duration) {
	defer close(w.done)

	var deadline time.Time
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLOUT}}
	for len(rest) > 0 {
		select {
		case <-w.cancel:
			return
		default:
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}

		if _, err := unix.Poll(fds, int(eventPollInterval/time.Millisecond)); err != nil && err != unix.EINTR {
			w.err = err
			return
		}
		n, err := unix.Write(d.fd, rest)
		if err != nil && err != unix.EAGAIN {
			w.err = err
			return
		}
		if n > 0 {
			w.n += n
			rest = rest[n:]
		}
	}
}

// Read returns queued input without waiting.
func (d *ttyDevice) Read(p []byte) (int, error) {
	n, err := unix.Read(d.fd, p)
	if err == unix.EAGAIN || err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CancelRead has nothing to cancel since reads never wait.
func (d *ttyDevice) CancelRead() error { return nil }

func (d *ttyDevice) TransmitImmediate(b byte) error {
	n, err := unix.Write(d.fd, []byte{b})
	if err != nil {
		return err
	}
	if n != 1 {
		return unix.EAGAIN
	}
	return nil
}

// WaitEvent polls the device until one of the events in mask is seen.
func (d *ttyDevice) WaitEvent(ctx context.Context, mask Event) (Event, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		ev, err := d.pendingEvents()
		if err != nil {
			return 0, err
		}
		if ev&mask != 0 {
			return ev & mask, nil
		}

		fds[0].Revents = 0
		if _, err := unix.Poll(fds, int(eventPollInterval/time.Millisecond)); err != nil && err != unix.EINTR {
			return 0, err
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			d.mu.Lock()
			d.errs |= CommIO
			d.mu.Unlock()
		}
	}
}

// pendingEvents compares the line and counter state with the last snapshot.
func (d *ttyDevice) pendingEvents() (Event, error) {
	var ev Event

	inq, err := unix.IoctlGetInt(d.fd, unix.TIOCINQ)
	if err != nil {
		return 0, fmt.Errorf("input queue: %w", err)
	}
	if inq > 0 {
		ev |= EventRxChar
	}

	outq, err := unix.IoctlGetInt(d.fd, unix.TIOCOUTQ)
	if err != nil {
		return 0, fmt.Errorf("output queue: %w", err)
	}

	modem, err := unix.IoctlGetInt(d.fd, unix.TIOCMGET)
	if err != nil {
		return 0, fmt.Errorf("modem lines: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.txBusy && outq == 0 && (d.write == nil || isClosed(d.write.done)) {
		d.txBusy = false
		ev |= EventTxEmpty
	}

	changed := d.modem ^ modem
	d.modem = modem
	if changed&unix.TIOCM_CTS != 0 {
		ev |= EventCTS
	}
	if changed&unix.TIOCM_DSR != 0 {
		ev |= EventDSR
	}
	if changed&unix.TIOCM_CAR != 0 {
		ev |= EventRLSD
	}
	if changed&unix.TIOCM_RI != 0 {
		ev |= EventRing
	}

	if !d.noCounts {
		var cnt serialCounter
		if err := getICount(d.fd, &cnt); err != nil {
			d.noCounts = true
		} else {
			if cnt.Brk != d.counts.Brk {
				ev |= EventBreak
				d.errs |= CommBreak
			}
			if cnt.Frame != d.counts.Frame {
				d.errs |= CommFraming
			}
			if cnt.Overrun != d.counts.Overrun {
				d.errs |= CommOverrun
			}
			if cnt.Parity != d.counts.Parity {
				d.errs |= CommParity
			}
			if cnt.BufOverrun != d.counts.BufOverrun {
				d.errs |= CommRxOverflow
			}
			d.counts = cnt
		}
	}
	// A break alone is reported as EventBreak only.
	if d.errs.Fatal() != 0 {
		ev |= EventErr
	}
	return ev, nil
}

// snapshot records the current line and counter state so that only later
// changes are reported.
func (d *ttyDevice) snapshot() {
	modem, _ := unix.IoctlGetInt(d.fd, unix.TIOCMGET)
	var cnt serialCounter
	err := getICount(d.fd, &cnt)

	d.mu.Lock()
	d.modem = modem
	d.counts = cnt
	d.noCounts = err != nil
	d.mu.Unlock()
}

func getICount(fd int, cnt *serialCounter) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.TIOCGICOUNT, uintptr(unsafe.Pointer(cnt)))
	if errno != 0 {
		return errno
	}
	return nil
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (d *ttyDevice) ClearErrors() (CommErrors, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	errs := d.errs
	d.errs = 0
	return errs, nil
}

func (d *ttyDevice) ModemStatus() (ModemStatus, error) {
	bits, err := unix.IoctlGetInt(d.fd, unix.TIOCMGET)
	if err != nil {
		return 0, err
	}
	return modemFromTIOCM(bits), nil
}

func modemFromTIOCM(bits int) ModemStatus {
	var m ModemStatus
	if bits&unix.TIOCM_CTS != 0 {
		m |= ModemCTS
	}
	if bits&unix.TIOCM_DSR != 0 {
		m |= ModemDSR
	}
	if bits&unix.TIOCM_RI != 0 {
		m |= ModemRing
	}
	if bits&unix.TIOCM_CAR != 0 {
		m |= ModemRLSD
	}
	return m
}

func (d *ttyDevice) QueueStatus() (QueueStatus, error) {
	inq, err := unix.IoctlGetInt(d.fd, unix.TIOCINQ)
	if err != nil {
		return QueueStatus{}, err
	}
	outq, err := unix.IoctlGetInt(d.fd, unix.TIOCOUTQ)
	if err != nil {
		return QueueStatus{}, err
	}
	modem, err := unix.IoctlGetInt(d.fd, unix.TIOCMGET)
	if err != nil {
		return QueueStatus{}, err
	}

	d.mu.Lock()
	cts := d.block.has(DCBOutxCTSFlow)
	d.mu.Unlock()

	q := QueueStatus{InQueue: inq, OutQueue: outq}
	if cts && outq > 0 && modem&unix.TIOCM_CTS == 0 {
		q.Flags |= QueueCTSHold
	}
	return q, nil
}

func (d *ttyDevice) Escape(fn EscapeFunction) error {
	switch fn {
	case EscapeSetRTS:
		return unix.IoctlSetPointerInt(d.fd, unix.TIOCMBIS, unix.TIOCM_RTS)
	case EscapeClrRTS:
		return unix.IoctlSetPointerInt(d.fd, unix.TIOCMBIC, unix.TIOCM_RTS)
	case EscapeSetDTR:
		return unix.IoctlSetPointerInt(d.fd, unix.TIOCMBIS, unix.TIOCM_DTR)
	case EscapeClrDTR:
		return unix.IoctlSetPointerInt(d.fd, unix.TIOCMBIC, unix.TIOCM_DTR)
	case EscapeSetBreak:
		return unix.IoctlSetInt(d.fd, unix.TIOCSBRK, 0)
	case EscapeClrBreak:
		return unix.IoctlSetInt(d.fd, unix.TIOCCBRK, 0)
	case EscapeSetXoff:
		return unix.IoctlSetInt(d.fd, unix.TCXONC, unix.TCOOFF)
	case EscapeSetXon:
		return unix.IoctlSetInt(d.fd, unix.TCXONC, unix.TCOON)
	}
	return fmt.Errorf("escape function %d: %w", fn, unix.EINVAL)
}

// CancelIO abandons the outstanding write and waits for its goroutine.
func (d *ttyDevice) CancelIO() error {
	d.mu.Lock()
	w := d.write
	d.mu.Unlock()
	if w == nil {
		return nil
	}
	err := w.Cancel()
	<-w.done
	return err
}

func (d *ttyDevice) Close() error {
	return multierr.Combine(d.CancelIO(), unix.Close(d.fd))
}
