package commport

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Connection is a full-duplex connection to one serial device. Received
// bytes and line events are delivered to the Handler from a background
// goroutine started by Open; everything else is called by a single owner.
type Connection struct {
	name    string
	cfg     Config
	handler Handler
	openDev OpenFunc
	clock   clock.Clock
	log     *zap.SugaredLogger

	dev     Device
	online  atomic.Bool
	closing bool
	errs    errorSlot

	// reopen arms AutoReopen after a successful Open; Close disarms it.
	reopen bool

	rx          *receiver
	dispatching atomic.Bool // a Handler callback is running on the receive goroutine

	pending *pendingWrite

	rts LineState
	dtr LineState
	brk LineState
}

// Option is a functional option for configuring a connection
type Option func(*Connection) error

// New creates a connection to the device called name. The port is not
// opened until Open is called.
func New(name string, opts ...Option) (*Connection, error) {
	c := &Connection{
		name:    name,
		cfg:     DefaultConfig(),
		openDev: openDevice,
		clock:   clock.RealClock{},
		log:     zap.NewNop().Sugar(),
		rts:     LineUnsupported,
		dtr:     LineUnsupported,
		brk:     LineUnsupported,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithConfig replaces the whole configuration
func WithConfig(cfg Config) Option {
	return func(c *Connection) error {
		c.cfg = cfg
		return nil
	}
}

// WithBaudRate sets the baud rate. Whether the rate is usable is decided by
// the device at Open.
func WithBaudRate(rate int) Option {
	return func(c *Connection) error {
		if rate <= 0 {
			return ErrInvalidConfig
		}
		c.cfg.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits
func WithDataBits(bits int) Option {
	return func(c *Connection) error {
		c.cfg.DataBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Connection) error {
		c.cfg.Parity = parity
		return nil
	}
}

// WithStopBits sets the number of stop bits
func WithStopBits(bits StopBits) Option {
	return func(c *Connection) error {
		c.cfg.StopBits = bits
		return nil
	}
}

// WithHandshake applies a flow-control preset
func WithHandshake(h Handshake) Option {
	return func(c *Connection) error {
		c.cfg.SetHandshake(h)
		return nil
	}
}

// WithQueueSizes requests driver queue sizes. Zero keeps the driver default.
func WithQueueSizes(rx, tx int) Option {
	return func(c *Connection) error {
		if rx < 0 || tx < 0 {
			return ErrInvalidConfig
		}
		c.cfg.RxQueue = rx
		c.cfg.TxQueue = tx
		return nil
	}
}

// WithSendTimeout sets the send budget to constant plus perByte for every
// byte in a write.
func WithSendTimeout(constant, perByte time.Duration) Option {
	return func(c *Connection) error {
		if constant < 0 || perByte < 0 {
			return ErrInvalidConfig
		}
		c.cfg.SendTimeoutConstant = constant
		c.cfg.SendTimeoutMultiplier = perByte
		return nil
	}
}

// WithAutoReopen makes operations that find the port closed by an error try
// to open it once before failing. An explicit Close is never undone.
func WithAutoReopen(enable bool) Option {
	return func(c *Connection) error {
		c.cfg.AutoReopen = enable
		return nil
	}
}

// WithHandler sets the event callbacks
func WithHandler(h Handler) Option {
	return func(c *Connection) error {
		c.handler = h
		return nil
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Connection) error {
		if logger != nil {
			c.log = logger
		}
		return nil
	}
}

// WithClock sets the clock used to time sends
func WithClock(clk clock.Clock) Option {
	return func(c *Connection) error {
		if clk == nil {
			return ErrInvalidConfig
		}
		c.clock = clk
		return nil
	}
}

// WithDevice replaces the platform device opener
func WithDevice(open OpenFunc) Option {
	return func(c *Connection) error {
		if open == nil {
			return ErrInvalidConfig
		}
		c.openDev = open
		return nil
	}
}

// Name returns the device name given to New.
func (c *Connection) Name() string { return c.name }

// Config returns a copy of the current configuration.
func (c *Connection) Config() Config { return c.cfg }

// SetConfig replaces the configuration. It takes effect at the next Open.
func (c *Connection) SetConfig(cfg Config) { c.cfg = cfg }

// Open opens and configures the port and starts reception. It returns
// false without an error when the port is already open, when another
// process holds the device, or when Handler.AfterOpen rejects it.
func (c *Connection) Open() (bool, error) {
	if c.online.Load() {
		return false, nil
	}

	dev, err := c.openDev(c.name)
	if err != nil {
		if errors.Is(err, ErrPortUnavailable) {
			c.log.Infof("%s: held by another process", c.name)
			return false, nil
		}
		return false, fmt.Errorf("%w: %s: %w", ErrPortOpen, c.name, err)
	}
	c.dev = dev
	c.pending = nil
	c.errs.clear()
	c.online.Store(true)

	if err := c.configure(); err != nil {
		return false, c.fail(fmt.Errorf("%w: %s: %w", ErrBadSettings, c.name, err))
	}

	c.brk = LineOff
	c.rts = initialLineState(c.cfg.RTSControl)
	c.dtr = initialLineState(c.cfg.DTRControl)

	c.startMonitor()
	c.log.Infof("%s: opened at %d %d%s%s", c.name, c.cfg.BaudRate, c.cfg.DataBits, c.cfg.Parity, c.cfg.StopBits)

	if !c.handler.afterOpen(c) {
		c.log.Infof("%s: rejected after open", c.name)
		if err := c.close(false); err != nil {
			c.log.Warnf("%s: close after rejected open: %v", c.name, err)
		}
		return false, nil
	}
	c.reopen = c.cfg.AutoReopen
	return true, nil
}

// configure applies queue sizes, timeouts and the control block.
func (c *Connection) configure() error {
	if c.cfg.RxQueue != 0 || c.cfg.TxQueue != 0 {
		if err := c.dev.SetupQueues(c.cfg.RxQueue, c.cfg.TxQueue); err != nil {
			return fmt.Errorf("queue sizes: %w", err)
		}
	}
	if err := c.dev.SetState(c.cfg.ControlBlock()); err != nil {
		return fmt.Errorf("control block: %w", err)
	}
	t := Timeouts{
		NonBlockingReads: true,
		WriteConstant:    c.cfg.SendTimeoutConstant,
		WriteMultiplier:  c.cfg.SendTimeoutMultiplier,
	}
	if err := c.dev.SetTimeouts(t); err != nil {
		return fmt.Errorf("timeouts: %w", err)
	}
	return nil
}

// Close stops reception and releases the device. Closing a connection that
// is not open does nothing. A closed connection is not reopened
// automatically until the next successful Open.
func (c *Connection) Close() error {
	c.reopen = false
	return c.close(false)
}

func (c *Connection) close(isError bool) error {
	if !c.online.Load() || c.closing {
		return nil
	}

	c.closing = true
	defer func() { c.closing = false }()
	c.handler.beforeClose(isError)

	var err error
	release := c.stopMonitor(func() {
		if cerr := c.dev.CancelIO(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("cancel I/O: %w", cerr))
		}
	})
	if release {
		if cerr := c.dev.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("release handle: %w", cerr))
		}
	}

	c.online.Store(false)
	c.dev = nil
	c.pending = nil
	c.rts, c.dtr, c.brk = LineUnsupported, LineUnsupported, LineUnsupported
	c.errs.clear()

	if isError {
		c.log.Warnf("%s: closed on error", c.name)
	} else {
		c.log.Infof("%s: closed", c.name)
	}
	return err
}

// fail closes the connection after a failure and returns err.
func (c *Connection) fail(err error) error {
	if c.closing {
		return err
	}
	if cerr := c.close(true); cerr != nil {
		c.log.Warnf("%s: close after failure: %v", c.name, cerr)
	}
	return err
}

// checkOnline surfaces a failure of the receive goroutine and, when the
// port went offline on an error, reopens it if AutoReopen is set.
func (c *Connection) checkOnline() error {
	if err := c.errs.take(); err != nil {
		return c.fail(fmt.Errorf("receive loop: %w", err))
	}
	if c.online.Load() {
		return nil
	}
	if !c.reopen {
		return ErrOffline
	}

	c.log.Infof("%s: offline, reopening", c.name)
	ok, err := c.Open()
	if err != nil {
		return fmt.Errorf("%w: reopen: %w", ErrOffline, err)
	}
	if !ok {
		return fmt.Errorf("%w: %w", ErrOffline, ErrPortUnavailable)
	}
	return nil
}

// Online reports whether the port is open and healthy. A pending failure of
// the receive goroutine closes the port.
func (c *Connection) Online() bool {
	if !c.online.Load() {
		return false
	}
	return c.checkOnline() == nil
}

// ModemStatus reads the current state of the modem input lines.
func (c *Connection) ModemStatus() (ModemStatus, error) {
	if err := c.checkOnline(); err != nil {
		return 0, err
	}
	s, err := c.dev.ModemStatus()
	if err != nil {
		return 0, c.fail(fmt.Errorf("%w: modem status: %w", ErrIO, err))
	}
	return s, nil
}

// QueueStatus reads the current transmit and receive queue occupancy.
func (c *Connection) QueueStatus() (QueueStatus, error) {
	if err := c.checkOnline(); err != nil {
		return QueueStatus{}, err
	}
	s, err := c.dev.QueueStatus()
	if err != nil {
		return QueueStatus{}, c.fail(fmt.Errorf("%w: queue status: %w", ErrIO, err))
	}
	return s, nil
}

// errorSlot hands one failure from the receive goroutine to the owner.
// The first error stored wins until it is taken.
type errorSlot struct {
	p atomic.Pointer[error]
}

func (s *errorSlot) store(err error) bool {
	return s.p.CompareAndSwap(nil, &err)
}

func (s *errorSlot) take() error {
	if p := s.p.Swap(nil); p != nil {
		return *p
	}
	return nil
}

func (s *errorSlot) clear() {
	s.p.Store(nil)
}
