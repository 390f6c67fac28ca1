package commport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// receiver is one run of the receive goroutine.
type receiver struct {
	cancel context.CancelFunc
	done   chan struct{}

	// detached hands the device to the receive goroutine for release when
	// the connection is closed from one of its own callbacks.
	detached atomic.Bool
}

// startMonitor starts the receive goroutine for the current device.
func (c *Connection) startMonitor() {
	ctx, cancel := context.WithCancel(context.Background())
	r := &receiver{cancel: cancel, done: make(chan struct{})}
	c.rx = r
	go c.monitor(ctx, c.dev, r)
}

// stopMonitor cancels the receive goroutine, runs abort to abandon the
// device's outstanding requests and waits for the goroutine to exit. The
// context is canceled before abort so that an aborted wait reads as a stop.
// It reports whether the caller should release the device. While a callback
// is running the goroutine is not waited for, since the callback may be
// the caller; it releases the device itself once the callback returns.
func (c *Connection) stopMonitor(abort func()) bool {
	r := c.rx
	if r == nil {
		abort()
		return true
	}
	c.rx = nil

	detach := c.dispatching.Load()
	if detach {
		r.detached.Store(true)
	}
	r.cancel()
	abort()
	if !detach {
		<-r.done
		return true
	}
	select {
	case <-r.done:
		return r.detached.CompareAndSwap(true, false)
	default:
		return false
	}
}

// monitor waits for device events and dispatches them until ctx is
// canceled or the device fails. A failure is stored for the owner to pick
// up; the device itself is left alone unless it was detached.
func (c *Connection) monitor(ctx context.Context, dev Device, r *receiver) {
	defer close(r.done)
	defer func() {
		if r.detached.CompareAndSwap(true, false) {
			if err := dev.Close(); err != nil {
				c.log.Warnf("%s: release handle: %v", c.name, err)
			}
		}
	}()

	buf := make([]byte, 1)
	for {
		err := c.monitorOnce(ctx, dev, buf)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			c.log.Debugf("%s: receive loop stopped", c.name)
			return
		}

		c.log.Errorf("%s: receive loop failed: %v", c.name, err)
		if c.errs.store(err) {
			c.dispatch(func() { c.handler.rxError(err) })
		}
		return
	}
}

// monitorOnce handles one batch of events.
func (c *Connection) monitorOnce(ctx context.Context, dev Device, buf []byte) error {
	ev, err := dev.WaitEvent(ctx, monitoredEvents)
	if err != nil {
		return fmt.Errorf("%w: wait for events: %w", ErrIO, err)
	}

	if ev&EventErr != 0 {
		flags, err := dev.ClearErrors()
		if err != nil {
			return fmt.Errorf("%w: clear errors: %w", ErrIO, err)
		}
		return &DeviceError{Flags: flags}
	}

	if ev&EventRxChar != 0 {
		if err := c.drain(ctx, dev, buf); err != nil {
			return err
		}
	}
	if ev&EventTxEmpty != 0 {
		c.dispatch(c.handler.txDone)
	}
	if ev&EventBreak != 0 {
		c.dispatch(c.handler.breakDetected)
	}
	if ev&EventRing != 0 {
		c.dispatch(c.handler.ring)
	}

	if changed := modemChanges(ev); changed != 0 {
		state, err := dev.ModemStatus()
		if err != nil {
			return fmt.Errorf("%w: modem status: %w", ErrIO, err)
		}
		c.dispatch(func() { c.handler.statusChange(changed, state) })
	}
	return nil
}

// drain reads single bytes until the receive queue is empty.
func (c *Connection) drain(ctx context.Context, dev Device, buf []byte) error {
	for ctx.Err() == nil {
		n, err := dev.Read(buf)
		switch {
		case errors.Is(err, ErrPending):
			if err := dev.CancelRead(); err != nil {
				return fmt.Errorf("%w: cancel read: %w", ErrIO, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("%w: read: %w", ErrIO, err)
		case n == 0:
			return nil
		}
		b := buf[0]
		c.dispatch(func() { c.handler.rxChar(b) })
	}
	return ctx.Err()
}

// dispatch runs a handler callback on the receive goroutine.
func (c *Connection) dispatch(fn func()) {
	c.dispatching.Store(true)
	defer c.dispatching.Store(false)
	fn()
}
