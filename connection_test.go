package commport

import (
	"errors"
	"testing"
	"time"
)

func TestOpenConfiguresDevice(t *testing.T) {
	d := newFakeDevice()
	c := openTestConnection(t, d,
		WithQueueSizes(4096, 1024),
		WithSendTimeout(100*time.Millisecond, time.Millisecond),
	)

	if !c.Online() {
		t.Fatal("Online() = false after Open")
	}
	if d.queues != [2]int{4096, 1024} {
		t.Errorf("queues = %v, want [4096 1024]", d.queues)
	}
	if want := c.Config().ControlBlock(); d.block != want {
		t.Errorf("control block = %+v, want %+v", d.block, want)
	}
	want := Timeouts{NonBlockingReads: true, WriteConstant: 100 * time.Millisecond, WriteMultiplier: time.Millisecond}
	if d.timeouts != want {
		t.Errorf("timeouts = %+v, want %+v", d.timeouts, want)
	}
}

func TestOpenKeepsDriverQueueSizes(t *testing.T) {
	d := newFakeDevice()
	d.setupErr = errors.New("should not be called")
	openTestConnection(t, d)

	if d.queues != [2]int{} {
		t.Errorf("SetupQueues called with %v", d.queues)
	}
}

func TestOpenLineStates(t *testing.T) {
	tests := []struct {
		name string
		h    Handshake
		rts  LineState
		dtr  LineState
	}{
		{"none", HandshakeNone, LineOn, LineOn},
		{"xonxoff", HandshakeXonXoff, LineOn, LineOn},
		{"ctsrts", HandshakeCtsRts, LineUnsupported, LineOn},
		{"dsrdtr", HandshakeDsrDtr, LineOn, LineUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := openTestConnection(t, newFakeDevice(), WithHandshake(tt.h))
			if got := c.RTS(); got != tt.rts {
				t.Errorf("RTS() = %v, want %v", got, tt.rts)
			}
			if got := c.DTR(); got != tt.dtr {
				t.Errorf("DTR() = %v, want %v", got, tt.dtr)
			}
			if got := c.Break(); got != LineOff {
				t.Errorf("Break() = %v, want %v", got, LineOff)
			}
		})
	}
}

func TestOpenAlreadyOnline(t *testing.T) {
	d := newFakeDevice()
	c := openTestConnection(t, d)

	ok, err := c.Open()
	if ok || err != nil {
		t.Errorf("second Open() = %v, %v, want false, nil", ok, err)
	}
	if got := d.openCount(); got != 1 {
		t.Errorf("device opened %d times, want 1", got)
	}
	if !c.Online() {
		t.Error("Online() = false after second Open")
	}
}

func TestOpenPortUnavailable(t *testing.T) {
	d := newFakeDevice()
	d.busy = true
	c := newTestConnection(t, d)

	ok, err := c.Open()
	if ok || err != nil {
		t.Errorf("Open() = %v, %v, want false, nil", ok, err)
	}
	if c.Online() {
		t.Error("Online() = true for a busy port")
	}
}

func TestOpenFailure(t *testing.T) {
	d := newFakeDevice()
	d.openErr = ErrDeviceNotFound
	c := newTestConnection(t, d)

	ok, err := c.Open()
	if ok {
		t.Error("Open() = true, want false")
	}
	if !errors.Is(err, ErrPortOpen) || !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Open() error = %v, want %v wrapping %v", err, ErrPortOpen, ErrDeviceNotFound)
	}
}

func TestOpenBadSettings(t *testing.T) {
	d := newFakeDevice()
	d.stateErr = errors.New("invalid parameter")
	var closes []bool
	c := newTestConnection(t, d, WithHandler(Handler{
		BeforeClose: func(isError bool) { closes = append(closes, isError) },
	}))

	ok, err := c.Open()
	if ok {
		t.Error("Open() = true, want false")
	}
	if !errors.Is(err, ErrBadSettings) {
		t.Errorf("Open() error = %v, want %v", err, ErrBadSettings)
	}
	if c.Online() {
		t.Error("Online() = true after rejected settings")
	}
	if !d.isClosed() {
		t.Error("device not released after rejected settings")
	}
	if len(closes) != 1 || !closes[0] {
		t.Errorf("BeforeClose calls = %v, want [true]", closes)
	}
}

func TestAfterOpenRejects(t *testing.T) {
	d := newFakeDevice()
	var closes []bool
	c := newTestConnection(t, d, WithHandler(Handler{
		AfterOpen:   func(*Connection) bool { return false },
		BeforeClose: func(isError bool) { closes = append(closes, isError) },
	}))

	ok, err := c.Open()
	if ok || err != nil {
		t.Errorf("Open() = %v, %v, want false, nil", ok, err)
	}
	if c.Online() {
		t.Error("Online() = true after AfterOpen rejected")
	}
	if !d.isClosed() {
		t.Error("device not released after AfterOpen rejected")
	}
	if len(closes) != 1 || closes[0] {
		t.Errorf("BeforeClose calls = %v, want [false]", closes)
	}
}

func TestAfterOpenCanWrite(t *testing.T) {
	d := newFakeDevice()
	openTestConnection(t, d, WithHandler(Handler{
		AfterOpen: func(c *Connection) bool {
			_, err := c.WriteLine("ATZ")
			return err == nil
		},
	}))

	if got := string(d.writtenBytes()); got != "ATZ\r\n" {
		t.Errorf("written = %q, want %q", got, "ATZ\r\n")
	}
}

func TestCloseIdempotent(t *testing.T) {
	d := newFakeDevice()
	c := newTestConnection(t, d)

	if err := c.Close(); err != nil {
		t.Errorf("Close() before Open error = %v", err)
	}
	if ok, err := c.Open(); !ok || err != nil {
		t.Fatalf("Open() = %v, %v", ok, err)
	}
	for i := range 3 {
		if err := c.Close(); err != nil {
			t.Errorf("Close() #%d error = %v", i+1, err)
		}
	}
	if d.closes != 1 {
		t.Errorf("device closed %d times, want 1", d.closes)
	}
	if d.cancelIOs != 1 {
		t.Errorf("CancelIO called %d times, want 1", d.cancelIOs)
	}
	if c.Online() {
		t.Error("Online() = true after Close")
	}
}

func TestOperationsOffline(t *testing.T) {
	d := newFakeDevice()
	c := newTestConnection(t, d)

	ops := map[string]func() error{
		"Write":         func() error { _, err := c.Write([]byte("x")); return err },
		"Flush":         c.Flush,
		"SendImmediate": func() error { return c.SendImmediate('x') },
		"ModemStatus":   func() error { _, err := c.ModemStatus(); return err },
		"QueueStatus":   func() error { _, err := c.QueueStatus(); return err },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrOffline) {
				t.Errorf("%s() error = %v, want %v", name, err, ErrOffline)
			}
		})
	}
	if got := d.openCount(); got != 0 {
		t.Errorf("device opened %d times without AutoReopen", got)
	}
}

func TestAutoReopen(t *testing.T) {
	tests := []struct {
		name    string
		busy    bool
		openErr error
		wantErr error
	}{
		{"reopens", false, nil, nil},
		{"port busy", true, nil, ErrPortUnavailable},
		{"device gone", false, ErrDeviceNotFound, ErrDeviceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDevice()
			attempts := 0
			c := openTestConnection(t, d, WithAutoReopen(true), WithDevice(func(name string) (Device, error) {
				attempts++
				return d.open(name)
			}))
			d.writeErr = errors.New("device removed")
			if _, err := c.WriteString("lost"); !errors.Is(err, ErrIO) {
				t.Fatalf("WriteString() error = %v, want %v", err, ErrIO)
			}
			if c.Online() {
				t.Fatal("Online() = true after a failed write")
			}
			d.writeErr = nil
			d.busy = tt.busy
			d.openErr = tt.openErr

			_, err := c.WriteString("hello")

			if attempts != 2 {
				t.Errorf("open attempts = %d, want 2", attempts)
			}
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("WriteString() error = %v", err)
				}
				if !c.Online() {
					t.Error("Online() = false after reopen")
				}
				if got := string(d.writtenBytes()); got != "hello" {
					t.Errorf("written = %q, want %q", got, "hello")
				}
				return
			}
			if !errors.Is(err, ErrOffline) || !errors.Is(err, tt.wantErr) {
				t.Errorf("WriteString() error = %v, want %v wrapping %v", err, ErrOffline, tt.wantErr)
			}
		})
	}
}

func TestAutoReopenAfterClose(t *testing.T) {
	tests := []struct {
		name   string
		opened bool
	}{
		{"explicit close", true},
		{"never opened", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDevice()
			c := newTestConnection(t, d, WithAutoReopen(true))
			if tt.opened {
				if ok, err := c.Open(); !ok || err != nil {
					t.Fatalf("Open() = %v, %v", ok, err)
				}
				if err := c.Close(); err != nil {
					t.Fatalf("Close() error = %v", err)
				}
			}
			opens := d.openCount()

			_, err := c.WriteString("x")

			if !errors.Is(err, ErrOffline) {
				t.Errorf("WriteString() error = %v, want %v", err, ErrOffline)
			}
			if got := d.openCount(); got != opens {
				t.Errorf("device opened %d times, want %d", got, opens)
			}
			if got := string(d.writtenBytes()); got != "" {
				t.Errorf("written = %q, want nothing", got)
			}

			// Open arms reopening again.
			if ok, err := c.Open(); !ok || err != nil {
				t.Fatalf("Open() = %v, %v", ok, err)
			}
			if _, err := c.WriteString("y"); err != nil {
				t.Errorf("WriteString() after Open error = %v", err)
			}
		})
	}
}

func TestStatusQueries(t *testing.T) {
	d := newFakeDevice()
	d.modem = ModemCTS | ModemRLSD
	d.queue = QueueStatus{InQueue: 2, OutQueue: 7, InSize: 4096}
	c := openTestConnection(t, d)

	m, err := c.ModemStatus()
	if err != nil {
		t.Fatalf("ModemStatus() error = %v", err)
	}
	if !m.CTS() || m.DSR() || !m.RLSD() || m.Ring() {
		t.Errorf("ModemStatus() = %v, want CTS and RLSD on", m)
	}

	q, err := c.QueueStatus()
	if err != nil {
		t.Fatalf("QueueStatus() error = %v", err)
	}
	if q != d.queue {
		t.Errorf("QueueStatus() = %+v, want %+v", q, d.queue)
	}
}
