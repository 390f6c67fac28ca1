// Package commport provides an event-driven, full-duplex serial port
// connection for Windows and Linux.
//
// A Connection owns one device. Open configures the port from a Config and
// starts a receive goroutine that waits for hardware events and delivers
// them to a Handler; writes are queued as asynchronous requests and checked
// against a send timeout.
//
// # Basic Usage
//
// Open a port with the default configuration (115200 8N1, no flow control):
//
//	c, err := commport.New("COM3", commport.WithHandler(commport.Handler{
//	    OnRxChar: func(b byte) { fmt.Printf("%c", b) },
//	    OnError:  func(err error) { log.Println(err) },
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if ok, err := c.Open(); !ok {
//	    log.Fatalf("port not available: %v", err)
//	}
//	defer c.Close()
//
//	_, err = c.WriteLine("AT")
//
// Open reports false without an error when another process holds the port,
// so callers can retry later.
//
// # Configuration Options
//
//	c, err := commport.New("/dev/ttyUSB0",
//	    commport.WithBaudRate(9600),
//	    commport.WithParity(commport.ParityEven),
//	    commport.WithHandshake(commport.HandshakeCtsRts),
//	    commport.WithSendTimeout(100*time.Millisecond, time.Millisecond),
//	    commport.WithAutoReopen(true),
//	)
//
// Configuration changes take effect at the next Open.
//
// # Sending
//
// Each Write is handed to the driver as one request. A new Write first
// waits for the previous one; with Config.CheckAllSends every Write waits
// for its own completion. A request that does not finish within
// SendTimeoutConstant plus SendTimeoutMultiplier per byte fails with
// ErrSendTimeout and closes the connection.
//
// # Line Control
//
// RTS, DTR and Break report LineOn, LineOff or LineUnsupported. A line the
// driver uses for handshaking is unsupported, and setting it does nothing.
//
//	err = c.SetDTR(false)
//	err = c.SetBreak(true)
//
// # Error Handling
//
// Failures close the connection. A failure of the receive goroutine is
// passed to Handler.OnError and returned by the next operation:
//
//	if errors.Is(err, commport.ErrDevice) {
//	    var de *commport.DeviceError
//	    errors.As(err, &de)
//	    fmt.Println(de.Flags) // e.g. "Overrun, Parity"
//	}
//
// # Port Discovery
//
//	ports, err := commport.ListPorts()
//	for _, p := range ports {
//	    info, _ := commport.GetPortInfo(p)
//	    fmt.Printf("%s: %s\n", info.Path, info.Description)
//	}
//
// # Platform Support
//
// Windows uses overlapped I/O and native comm events. Linux emulates the
// event model with poll and periodic line status checks; DSR/DTR
// handshaking and RTS transmit gating are rejected there with
// ErrBadSettings.
package commport
