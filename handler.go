package commport

// Handler receives connection events. Every field is optional.
//
// AfterOpen and BeforeClose run on the goroutine calling Open or Close. The
// remaining callbacks run on the connection's receive goroutine, one at a
// time and in the order the device reported the events; they must not block
// for long since reception stalls while they run. They may call Close, in
// which case the device is released once the callback returns.
type Handler struct {
	// AfterOpen runs once the port is configured and receiving. Returning
	// false closes the port again and makes Open report false.
	AfterOpen func(c *Connection) bool

	// BeforeClose runs before the port is closed. isError is true when the
	// close was forced by a failure.
	BeforeClose func(isError bool)

	OnRxChar func(b byte)

	// OnTxDone runs when the transmit queue has been emptied.
	OnTxDone func()

	// OnBreak runs when a break condition is detected on the input line.
	OnBreak func()

	// OnRing runs when the ring indicator is signaled, in addition to
	// OnStatusChange.
	OnRing func()

	// OnStatusChange receives the lines that changed and the new state of
	// all modem inputs.
	OnStatusChange func(changed, state ModemStatus)

	// OnError runs when the receive goroutine stops because of a failure.
	// The same error is returned by the next operation on the connection.
	OnError func(err error)
}

func (h *Handler) afterOpen(c *Connection) bool {
	if h.AfterOpen == nil {
		return true
	}
	return h.AfterOpen(c)
}

func (h *Handler) beforeClose(isError bool) {
	if h.BeforeClose != nil {
		h.BeforeClose(isError)
	}
}

func (h *Handler) rxChar(b byte) {
	if h.OnRxChar != nil {
		h.OnRxChar(b)
	}
}

func (h *Handler) txDone() {
	if h.OnTxDone != nil {
		h.OnTxDone()
	}
}

func (h *Handler) breakDetected() {
	if h.OnBreak != nil {
		h.OnBreak()
	}
}

func (h *Handler) ring() {
	if h.OnRing != nil {
		h.OnRing()
	}
}

func (h *Handler) statusChange(changed, state ModemStatus) {
	if h.OnStatusChange != nil {
		h.OnStatusChange(changed, state)
	}
}

func (h *Handler) rxError(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}
