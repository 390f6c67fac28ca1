package commport

import (
	"errors"
	"strings"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

func TestWrite(t *testing.T) {
	d := newFakeDevice()
	c := openTestConnection(t, d)

	n, err := c.Write([]byte("hello"))
	if n != 5 || err != nil {
		t.Fatalf("Write() = %d, %v, want 5, nil", n, err)
	}
	if err := c.WriteByte('!'); err != nil {
		t.Fatalf("WriteByte() error = %v", err)
	}
	if got := string(d.writtenBytes()); got != "hello!" {
		t.Errorf("written = %q, want %q", got, "hello!")
	}
}

func TestWriteEmpty(t *testing.T) {
	d := newFakeDevice()
	c := openTestConnection(t, d)

	n, err := c.Write(nil)
	if n != 0 || err != nil {
		t.Errorf("Write(nil) = %d, %v, want 0, nil", n, err)
	}
	if len(d.writes) != 0 {
		t.Errorf("device saw %d writes, want 0", len(d.writes))
	}
}

func TestWriteLine(t *testing.T) {
	tests := []struct {
		name    string
		newLine string
		want    string
	}{
		{"crlf", "\r\n", "AT\r\n"},
		{"lf", "\n", "AT\n"},
		{"none", "", "AT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.NewLine = tt.newLine
			d := newFakeDevice()
			c := openTestConnection(t, d, WithConfig(cfg))

			n, err := c.WriteLine("AT")
			if err != nil {
				t.Fatalf("WriteLine() error = %v", err)
			}
			if n != len(tt.want) {
				t.Errorf("WriteLine() = %d, want %d", n, len(tt.want))
			}
			if got := string(d.writtenBytes()); got != tt.want {
				t.Errorf("written = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteDeviceFailure(t *testing.T) {
	d := newFakeDevice()
	d.writeErr = errors.New("handle is invalid")
	c := openTestConnection(t, d)

	_, err := c.Write([]byte("x"))
	if !errors.Is(err, ErrIO) {
		t.Errorf("Write() error = %v, want %v", err, ErrIO)
	}
	if c.Online() {
		t.Error("Online() = true after write failure")
	}
	if !d.isClosed() {
		t.Error("device not released after write failure")
	}
}

// waitForTimer blocks until the code under test has armed a timer.
func waitForTimer(t *testing.T, fc *clocktesting.FakeClock) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !fc.HasWaiters() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for send timer")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWriteSendTimeout(t *testing.T) {
	tests := []struct {
		name    string
		sent    int
		wantErr error
	}{
		{"partial", 2, ErrSendTimeout},
		{"nothing sent", 0, ErrSendTimeout},
		{"completed while canceling", 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := clocktesting.NewFakeClock(time.Now())
			d := newFakeDevice()
			d.manualWrites = true
			c := openTestConnection(t, d,
				WithClock(fc),
				WithSendTimeout(100*time.Millisecond, 10*time.Millisecond),
			)

			result := make(chan error, 1)
			go func() {
				_, err := c.Write([]byte("12345"))
				result <- err
			}()

			waitForTimer(t, fc)
			d.lastWrite().sent = tt.sent
			fc.Step(149 * time.Millisecond)
			select {
			case err := <-result:
				t.Fatalf("Write() returned %v before the budget expired", err)
			case <-time.After(20 * time.Millisecond):
			}
			fc.Step(time.Millisecond)

			err := receive(t, result)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Write() error = %v, want nil", err)
				}
				if !c.Online() {
					t.Error("Online() = false after a completed write")
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Write() error = %v, want %v", err, tt.wantErr)
			}
			if c.Online() {
				t.Error("Online() = true after send timeout")
			}
		})
	}
}

func TestWriteShortCompletion(t *testing.T) {
	d := newFakeDevice()
	d.shortWrite = 3
	c := openTestConnection(t, d)

	_, err := c.Write([]byte("12345"))
	if !errors.Is(err, ErrSendTimeout) {
		t.Fatalf("Write() error = %v, want %v", err, ErrSendTimeout)
	}
	if !strings.Contains(err.Error(), "3 of 5 bytes sent") {
		t.Errorf("Write() error = %q, want byte counts", err)
	}
}

func TestFlushCompletionError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckAllSends = false
	d := newFakeDevice()
	d.manualWrites = true
	c := openTestConnection(t, d, WithConfig(cfg))

	if n, err := c.Write([]byte("abc")); n != 3 || err != nil {
		t.Fatalf("Write() = %d, %v, want 3, nil", n, err)
	}
	d.lastWrite().finish(1, errors.New("device not functioning"))

	if err := c.Flush(); !errors.Is(err, ErrIO) {
		t.Errorf("Flush() error = %v, want %v", err, ErrIO)
	}
	if c.Online() {
		t.Error("Online() = true after failed completion")
	}
}

func TestFlushWithoutPendingWrite(t *testing.T) {
	c := openTestConnection(t, newFakeDevice())
	if err := c.Flush(); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
}

func TestWriteWaitsForPreviousWrite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckAllSends = false
	d := newFakeDevice()
	d.manualWrites = true
	c := openTestConnection(t, d, WithConfig(cfg))

	if _, err := c.WriteString("first"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	first := d.lastWrite()

	result := make(chan error, 1)
	go func() {
		_, err := c.WriteString("second")
		result <- err
	}()

	select {
	case err := <-result:
		t.Fatalf("second write returned %v while the first was pending", err)
	case <-time.After(20 * time.Millisecond):
	}
	if got := string(d.writtenBytes()); got != "first" {
		t.Errorf("written = %q, want %q", got, "first")
	}

	first.finish(5, nil)
	if err := receive(t, result); err != nil {
		t.Fatalf("second WriteString() error = %v", err)
	}
	if got := string(d.writtenBytes()); got != "firstsecond" {
		t.Errorf("written = %q, want %q", got, "firstsecond")
	}
}

func TestSendImmediate(t *testing.T) {
	d := newFakeDevice()
	c := openTestConnection(t, d)

	if err := c.SendImmediate(ASCIIXoff); err != nil {
		t.Fatalf("SendImmediate() error = %v", err)
	}
	if string(d.immediate) != string([]byte{ASCIIXoff}) {
		t.Errorf("immediate = %v, want [%#x]", d.immediate, ASCIIXoff)
	}

	d.immediateErr = errors.New("not supported")
	if err := c.SendImmediate('x'); !errors.Is(err, ErrIO) {
		t.Errorf("SendImmediate() error = %v, want %v", err, ErrIO)
	}
	if c.Online() {
		t.Error("Online() = true after failed immediate send")
	}
}
