package commport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeEvent is one WaitEvent completion. Its bytes, errors and modem state
// are applied to the device before the events are reported.
type fakeEvent struct {
	ev    Event
	rx    []byte
	errs  CommErrors
	modem ModemStatus
	err   error
}

// fakeDevice is a Device driven by the test.
type fakeDevice struct {
	events chan fakeEvent

	mu        sync.Mutex
	opens     int
	closes    int
	cancelIOs int
	closed    bool
	busy      bool
	aborted   chan struct{} // closed by CancelIO, failing the pending wait
	openErr   error

	queues   [2]int
	timeouts Timeouts
	block    ControlBlock
	setupErr error
	stateErr error

	rx           []byte
	pendingRead  bool // next Read is left outstanding
	cancelReads  int
	errs         CommErrors
	modem        ModemStatus
	queue        QueueStatus
	escapes      []EscapeFunction
	escapeErr    error
	immediate    []byte
	immediateErr error

	written      []byte
	writes       []*fakeWrite
	writeErr     error
	manualWrites bool // writes stay pending until completed by the test
	shortWrite   int  // when > 0, immediate writes only send this many bytes
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{events: make(chan fakeEvent, 16)}
}

func (d *fakeDevice) open(name string) (Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return nil, fmt.Errorf("%s: %w", name, ErrPortUnavailable)
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opens++
	d.closed = false
	d.aborted = make(chan struct{})
	return d, nil
}

func (d *fakeDevice) inject(e fakeEvent) {
	d.events <- e
}

func (d *fakeDevice) SetupQueues(rx, tx int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queues = [2]int{rx, tx}
	return d.setupErr
}

func (d *fakeDevice) SetTimeouts(t Timeouts) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeouts = t
	return nil
}

func (d *fakeDevice) SetState(b ControlBlock) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stateErr != nil {
		return d.stateErr
	}
	d.block = b
	return nil
}

type fakeWrite struct {
	done  chan struct{}
	count int
	once  sync.Once
	n     int
	err   error
	// sent is what a canceled request reports as transferred
	sent int
}

func (w *fakeWrite) Done() <-chan struct{} { return w.done }

func (w *fakeWrite) Result() (int, error) { return w.n, w.err }

func (w *fakeWrite) Cancel() error {
	w.finish(w.sent, nil)
	return nil
}

func (w *fakeWrite) finish(n int, err error) {
	w.once.Do(func() {
		w.n = n
		w.err = err
		close(w.done)
	})
}

func (d *fakeDevice) Write(p []byte) (WriteRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return nil, d.writeErr
	}
	d.written = append(d.written, p...)
	w := &fakeWrite{done: make(chan struct{}), count: len(p)}
	d.writes = append(d.writes, w)
	if !d.manualWrites {
		n := len(p)
		if d.shortWrite > 0 && d.shortWrite < n {
			n = d.shortWrite
		}
		w.finish(n, nil)
	}
	return w, nil
}

// lastWrite returns the most recent write request.
func (d *fakeDevice) lastWrite() *fakeWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.writes) == 0 {
		return nil
	}
	return d.writes[len(d.writes)-1]
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pendingRead {
		d.pendingRead = false
		return 0, ErrPending
	}
	if len(d.rx) == 0 {
		return 0, nil
	}
	n := copy(p, d.rx[:1])
	d.rx = d.rx[n:]
	return n, nil
}

func (d *fakeDevice) CancelRead() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelReads++
	return nil
}

func (d *fakeDevice) TransmitImmediate(b byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.immediateErr != nil {
		return d.immediateErr
	}
	d.immediate = append(d.immediate, b)
	return nil
}

func (d *fakeDevice) WaitEvent(ctx context.Context, mask Event) (Event, error) {
	d.mu.Lock()
	aborted := d.aborted
	d.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-aborted:
		return 0, errors.New("the I/O operation has been aborted")
	case e := <-d.events:
		d.mu.Lock()
		d.rx = append(d.rx, e.rx...)
		d.errs |= e.errs
		if e.modem != 0 || e.ev&(EventCTS|EventDSR|EventRLSD|EventRing) != 0 {
			d.modem = e.modem
		}
		d.mu.Unlock()
		return e.ev & mask, e.err
	}
}

func (d *fakeDevice) ClearErrors() (CommErrors, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	errs := d.errs
	d.errs = 0
	return errs, nil
}

func (d *fakeDevice) ModemStatus() (ModemStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modem, nil
}

func (d *fakeDevice) QueueStatus() (QueueStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue, nil
}

func (d *fakeDevice) Escape(fn EscapeFunction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.escapeErr != nil {
		return d.escapeErr
	}
	d.escapes = append(d.escapes, fn)
	return nil
}

func (d *fakeDevice) CancelIO() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelIOs++
	if d.aborted != nil {
		select {
		case <-d.aborted:
		default:
			close(d.aborted)
		}
	}
	for _, w := range d.writes {
		w.finish(w.sent, errors.New("operation aborted"))
	}
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.closed = true
	return nil
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

func (d *fakeDevice) escapeLog() []EscapeFunction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]EscapeFunction(nil), d.escapes...)
}

func (d *fakeDevice) writtenBytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.written...)
}

// newTestConnection returns a connection backed by d that is closed when
// the test ends.
func newTestConnection(t *testing.T, d *fakeDevice, opts ...Option) *Connection {
	t.Helper()
	c, err := New("COM9", append([]Option{WithDevice(d.open)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// openTestConnection is newTestConnection followed by a successful Open.
func openTestConnection(t *testing.T, d *fakeDevice, opts ...Option) *Connection {
	t.Helper()
	c := newTestConnection(t, d, opts...)
	ok, err := c.Open()
	if err != nil || !ok {
		t.Fatalf("Open() = %v, %v, want true, nil", ok, err)
	}
	return c
}

// receive waits for a value from ch or fails the test.
func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		var zero T
		return zero
	}
}
