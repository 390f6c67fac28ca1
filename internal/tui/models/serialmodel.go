package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/allbin/go-commport"
	"github.com/allbin/go-commport/internal/tui/components"
	tea "github.com/charmbracelet/bubbletea"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	if m == InputModeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

// ErrNotConnected is returned by Do before a connection has been set.
var ErrNotConnected = errors.New("not connected")

const (
	// DefaultMaxEntries bounds the terminal history.
	DefaultMaxEntries = 5000

	// RxInterval is how often received bytes are collected into an entry.
	RxInterval = 50 * time.Millisecond

	maxRxEntry = 64
)

type ConnectionStatusMsg struct {
	Connected bool
	Error     error
}

// EntryMsg carries an entry produced outside the UI goroutine.
type EntryMsg components.Entry

// TxResultMsg reports the outcome of the write behind entry ID and whether
// the connection was online afterwards.
type TxResultMsg struct {
	ID     int
	Err    error
	Online bool
}

// SignalsMsg carries the line states after a change.
type SignalsMsg struct {
	Lines components.LineStates
	Modem commport.ModemStatus
}

// ModemMsg carries the modem inputs after a change.
type ModemMsg commport.ModemStatus

// RxTickMsg triggers collection of buffered received bytes.
type RxTickMsg time.Time

// RxTick schedules the next RxTickMsg.
func RxTick() tea.Cmd {
	return tea.Tick(RxInterval, func(t time.Time) tea.Msg { return RxTickMsg(t) })
}

// SerialModel holds the connection and the terminal history shared by the
// interactive commands.
type SerialModel struct {
	portPath string

	connMu sync.Mutex
	conn   *commport.Connection

	connected bool
	err       error
	ready     bool
	inputMode InputMode

	// entries[i] has ID base+i; base grows as old entries are dropped.
	entries    []components.Entry
	base       int
	maxEntries int

	// received bytes not yet turned into an entry, filled by the
	// connection's receive goroutine
	rxMu    sync.Mutex
	rxBuf   []byte
	rxStart time.Time
	now     func() time.Time
}

func NewSerialModel(portPath string) *SerialModel {
	return &SerialModel{
		portPath:   portPath,
		inputMode:  InputModeNormal,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
}

func (m *SerialModel) GetPortPath() string {
	return m.portPath
}

func (m *SerialModel) SetConnection(c *commport.Connection) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.conn = c
}

// Do runs fn with the connection. Calls are serialized so that commands
// running in their own goroutines never use the connection concurrently.
func (m *SerialModel) Do(fn func(c *commport.Connection) error) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if m.conn == nil {
		return ErrNotConnected
	}
	return fn(m.conn)
}

// Signals reads the current line states.
func (m *SerialModel) Signals() (SignalsMsg, error) {
	var msg SignalsMsg
	err := m.Do(func(c *commport.Connection) error {
		msg.Lines = components.LineStates{RTS: c.RTS(), DTR: c.DTR(), Break: c.Break()}
		var err error
		msg.Modem, err = c.ModemStatus()
		return err
	})
	return msg, err
}

func (m *SerialModel) IsConnected() bool {
	return m.connected
}

func (m *SerialModel) SetConnected(connected bool) {
	m.connected = connected
}

func (m *SerialModel) GetError() error {
	return m.err
}

func (m *SerialModel) SetError(err error) {
	m.err = err
}

func (m *SerialModel) IsReady() bool {
	return m.ready
}

func (m *SerialModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *SerialModel) SetMaxEntries(n int) {
	m.maxEntries = n
}

// AddEntry appends e to the history and returns its ID.
func (m *SerialModel) AddEntry(e components.Entry) int {
	m.entries = append(m.entries, e)
	if m.maxEntries > 0 && len(m.entries) > m.maxEntries {
		drop := len(m.entries) - m.maxEntries
		m.entries = append(m.entries[:0], m.entries[drop:]...)
		m.base += drop
	}
	return m.base + len(m.entries) - 1
}

// SetTxStatus updates the status of the TX entry with the given ID. It
// reports false when the entry has already been dropped.
func (m *SerialModel) SetTxStatus(id int, status components.TxStatus) bool {
	i := id - m.base
	if i < 0 || i >= len(m.entries) || m.entries[i].Kind != components.EntryTX {
		return false
	}
	m.entries[i].Status = status
	return true
}

func (m *SerialModel) Entries() []components.Entry {
	return m.entries
}

func (m *SerialModel) ClearData() {
	m.base += len(m.entries)
	m.entries = nil
}

func (m *SerialModel) GetInputMode() InputMode {
	return m.inputMode
}

func (m *SerialModel) SetInputMode(mode InputMode) {
	m.inputMode = mode
}

func (m *SerialModel) IsInInsertMode() bool {
	return m.inputMode == InputModeInsert
}

// AppendRX buffers a received byte. It returns a full entry once the
// buffer reaches its limit.
func (m *SerialModel) AppendRX(b byte) (components.Entry, bool) {
	m.rxMu.Lock()
	defer m.rxMu.Unlock()
	if len(m.rxBuf) == 0 {
		m.rxStart = m.now()
	}
	m.rxBuf = append(m.rxBuf, b)
	if len(m.rxBuf) >= maxRxEntry {
		return m.takeRXLocked()
	}
	return components.Entry{}, false
}

// TakeRX returns the buffered bytes as an entry, if there are any.
func (m *SerialModel) TakeRX() (components.Entry, bool) {
	m.rxMu.Lock()
	defer m.rxMu.Unlock()
	return m.takeRXLocked()
}

func (m *SerialModel) takeRXLocked() (components.Entry, bool) {
	if len(m.rxBuf) == 0 {
		return components.Entry{}, false
	}
	e := components.Entry{Timestamp: m.rxStart, Kind: components.EntryRX, Data: m.rxBuf}
	m.rxBuf = nil
	return e, true
}

// Handler returns connection callbacks that report through send. Buffered
// received bytes are sent ahead of every event so the history keeps the
// order the device reported.
func (m *SerialModel) Handler(send func(tea.Msg)) commport.Handler {
	event := func(format string, args ...any) {
		if e, ok := m.TakeRX(); ok {
			send(EntryMsg(e))
		}
		send(EntryMsg(components.Entry{
			Timestamp: m.now(),
			Kind:      components.EntryEvent,
			Text:      fmt.Sprintf(format, args...),
		}))
	}

	return commport.Handler{
		OnRxChar: func(b byte) {
			if e, ok := m.AppendRX(b); ok {
				send(EntryMsg(e))
			}
		},
		OnTxDone: func() {
			event("transmit queue empty")
		},
		OnBreak: func() {
			event("break detected")
		},
		OnRing: func() {
			event("ring")
		},
		OnStatusChange: func(changed, state commport.ModemStatus) {
			event("%s changed: %s", ModemLineNames(changed), state)
			send(ModemMsg(state))
		},
		OnError: func(err error) {
			if e, ok := m.TakeRX(); ok {
				send(EntryMsg(e))
			}
			send(EntryMsg(components.Entry{
				Timestamp: m.now(),
				Kind:      components.EntryError,
				Text:      err.Error(),
			}))
			send(ConnectionStatusMsg{Connected: false, Error: err})
		},
	}
}

// ModemLineNames lists the lines set in m, e.g. "CTS, DSR".
func ModemLineNames(m commport.ModemStatus) string {
	var names []string
	if m.CTS() {
		names = append(names, "CTS")
	}
	if m.DSR() {
		names = append(names, "DSR")
	}
	if m.RLSD() {
		names = append(names, "RLSD")
	}
	if m.Ring() {
		names = append(names, "RING")
	}
	return strings.Join(names, ", ")
}

// Cleanup closes the connection.
func (m *SerialModel) Cleanup() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}
