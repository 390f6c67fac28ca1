package commport

import (
	"fmt"
	"io"
	"time"
)

// Ensure Connection implements the io writer interfaces at compile time
var (
	_ io.Writer       = (*Connection)(nil)
	_ io.ByteWriter   = (*Connection)(nil)
	_ io.StringWriter = (*Connection)(nil)
)

// pendingWrite is the single outstanding write request.
type pendingWrite struct {
	req   WriteRequest
	count int
}

// Write queues p for transmission as one request. A write still in flight
// from an earlier call is completed first, so this blocks for at most that
// write's send timeout. With CheckAllSends the new request is also waited
// for before returning.
func (c *Connection) Write(p []byte) (int, error) {
	if err := c.checkOnline(); err != nil {
		return 0, err
	}
	if err := c.checkResult(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	req, err := c.dev.Write(p)
	if err != nil {
		return 0, c.fail(fmt.Errorf("%w: write: %w", ErrIO, err))
	}
	c.pending = &pendingWrite{req: req, count: len(p)}

	if c.cfg.CheckAllSends {
		if err := c.checkResult(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// WriteByte queues a single byte.
func (c *Connection) WriteByte(b byte) error {
	_, err := c.Write([]byte{b})
	return err
}

// WriteString queues the bytes of s.
func (c *Connection) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// WriteLine queues s followed by the configured line terminator.
func (c *Connection) WriteLine(s string) (int, error) {
	return c.Write([]byte(s + c.cfg.NewLine))
}

// Flush blocks until the outstanding write, if any, has been transmitted or
// its send timeout has expired.
func (c *Connection) Flush() error {
	if err := c.checkOnline(); err != nil {
		return err
	}
	return c.checkResult()
}

// SendImmediate transmits b ahead of any queued bytes.
func (c *Connection) SendImmediate(b byte) error {
	if err := c.checkOnline(); err != nil {
		return err
	}
	if err := c.dev.TransmitImmediate(b); err != nil {
		return c.fail(fmt.Errorf("%w: transmission failure: %w", ErrIO, err))
	}
	return nil
}

// checkResult waits for the outstanding write within its send budget.
func (c *Connection) checkResult() error {
	w := c.pending
	if w == nil {
		return nil
	}
	c.pending = nil

	var expired <-chan time.Time
	if budget := c.cfg.sendBudget(w.count); budget > 0 {
		t := c.clock.NewTimer(budget)
		defer t.Stop()
		expired = t.C()
	}

	timedOut := false
	select {
	case <-w.req.Done():
	case <-expired:
		timedOut = true
		if err := w.req.Cancel(); err != nil {
			c.log.Debugf("%s: cancel timed out write: %v", c.name, err)
		}
		<-w.req.Done()
	}

	sent, err := w.req.Result()
	switch {
	case sent >= w.count:
		return nil
	case timedOut || err == nil:
		c.log.Warnf("%s: send timeout, %d of %d bytes sent", c.name, sent, w.count)
		return c.fail(fmt.Errorf("%w: %d of %d bytes sent", ErrSendTimeout, sent, w.count))
	default:
		return c.fail(fmt.Errorf("%w: write completion: %w", ErrIO, err))
	}
}
