/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/allbin/go-commport"
	"github.com/allbin/go-commport/internal/tui/components"
	"github.com/allbin/go-commport/internal/tui/keys"
	"github.com/allbin/go-commport/internal/tui/models"
	"github.com/allbin/go-commport/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <port>",
	Short: "Connect to a serial port with bidirectional communication",
	Long: `Connect to a serial port with an interactive terminal interface.

Features include:
- Received data, transmit completion and line events with timestamps
- ASCII and hex sending, with history
- ASCII and hex display modes
- RTS, DTR and break control from the keyboard
- Live modem line indicators (CTS, DSR, RI, DCD)

Port settings come from the global flags (--baud, --handshake, ...).
The interface owns the terminal, so library logging is discarded unless
--log-file is given.

Example usage:
  commport connect /dev/ttyUSB0
  commport connect /dev/ttyUSB0 --baud 9600
  commport connect COM3 --handshake ctsrts --send-timeout 2s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := portConfig(viper.GetViper())
		if err != nil {
			return err
		}
		logFile, _ := cmd.Flags().GetString("log-file")
		history, _ := cmd.Flags().GetInt("history")
		return runConnectTUI(args[0], cfg, logFile, history)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().String("log-file", "", "Write connection logs to this file")
	connectCmd.Flags().Int("history", models.DefaultMaxEntries, "Number of entries kept in the terminal")
}

// lineSetMsg reports an output line changed from the keyboard.
type lineSetMsg struct {
	name    string
	state   commport.LineState
	signals models.SignalsMsg
}

const (
	inputHeight     = 3
	statusBarHeight = 1
	borderHeight    = 1
)

// connectModel represents the Bubble Tea model for the connect command
type connectModel struct {
	*models.SerialModel
	cfg       commport.Config
	terminal  *components.Terminal
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.ConnectKeys
	width     int
	height    int
}

func newConnectModel(portPath string, cfg commport.Config) *connectModel {
	m := &connectModel{
		SerialModel: models.NewSerialModel(portPath),
		cfg:         cfg,
		terminal:    components.NewTerminal(0, 0),
		statusBar:   components.NewStatusBar(portPath),
		input:       components.NewInput(),
		help:        help.New(),
		keys:        keys.NewConnectKeys(),
	}
	m.statusBar.SetConnecting()
	m.statusBar.SetConfig(cfg)
	return m
}

// tuiLogger returns a logger that stays off the terminal.
func tuiLogger(logFile string) (*zap.SugaredLogger, error) {
	if logFile == "" {
		return zap.NewNop().Sugar(), nil
	}
	zc := zap.NewDevelopmentConfig()
	zc.OutputPaths = []string{logFile}
	zc.ErrorOutputPaths = []string{logFile}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	return l.Sugar(), nil
}

func runConnectTUI(portPath string, cfg commport.Config, logFile string, history int) error {
	log, err := tuiLogger(logFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	m := newConnectModel(portPath, cfg)
	m.SetMaxEntries(history)
	m.terminal.SetMaxLines(history)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	c, err := commport.New(portPath,
		commport.WithConfig(cfg),
		commport.WithHandler(m.Handler(p.Send)),
		commport.WithLogger(log),
	)
	if err != nil {
		return err
	}
	m.SetConnection(c)

	_, err = p.Run()
	if cerr := m.Cleanup(); cerr != nil {
		log.Warnf("closing %s: %v", portPath, cerr)
	}
	return err
}

func (m *connectModel) Init() tea.Cmd {
	return tea.Batch(m.openCmd(), models.RxTick())
}

func (m *connectModel) openCmd() tea.Cmd {
	return func() tea.Msg {
		var ok bool
		err := m.Do(func(c *commport.Connection) error {
			var err error
			ok, err = c.Open()
			return err
		})
		if err == nil && !ok {
			err = fmt.Errorf("%s: %w", m.GetPortPath(), commport.ErrPortUnavailable)
		}
		return models.ConnectionStatusMsg{Connected: err == nil, Error: err}
	}
}

func (m *connectModel) signalsCmd() tea.Cmd {
	return func() tea.Msg {
		// Line states are valid even when the modem query fails.
		msg, _ := m.Signals()
		return msg
	}
}

func (m *connectModel) sendCmd(id int, data []byte) tea.Cmd {
	return func() tea.Msg {
		var online bool
		err := m.Do(func(c *commport.Connection) error {
			defer func() { online = c.Online() }()
			if _, err := c.Write(data); err != nil {
				return err
			}
			return c.Flush()
		})
		return models.TxResultMsg{ID: id, Err: err, Online: online}
	}
}

func (m *connectModel) toggleLineCmd(line outputLine) tea.Cmd {
	return func() tea.Msg {
		var state commport.LineState
		err := m.Do(func(c *commport.Connection) error {
			if line.state(c) == commport.LineUnsupported {
				return fmt.Errorf("%s is not under software control", line.name)
			}
			if err := line.set(c, line.state(c) != commport.LineOn); err != nil {
				return err
			}
			state = line.state(c)
			return nil
		})
		if err != nil {
			return errorEntry(fmt.Errorf("setting %s: %w", line.name, err))
		}
		signals, _ := m.Signals()
		return lineSetMsg{name: line.name, state: state, signals: signals}
	}
}

func (m *connectModel) queueStatusCmd() tea.Cmd {
	return func() tea.Msg {
		var qs commport.QueueStatus
		err := m.Do(func(c *commport.Connection) error {
			var err error
			qs, err = c.QueueStatus()
			return err
		})
		if err != nil {
			return errorEntry(err)
		}
		return eventEntry(qs.String())
	}
}

func eventEntry(text string) models.EntryMsg {
	return models.EntryMsg{Timestamp: time.Now(), Kind: components.EntryEvent, Text: text}
}

func errorEntry(err error) models.EntryMsg {
	return models.EntryMsg{Timestamp: time.Now(), Kind: components.EntryError, Text: err.Error()}
}

func (m *connectModel) addEntry(e components.Entry) int {
	id := m.AddEntry(e)
	if m.IsReady() {
		m.terminal.AddEntry(e)
	}
	return id
}

// payload converts the input line to the bytes to send and the bytes to
// show in the history.
func (m *connectModel) payload(text string) (data, display []byte, err error) {
	if m.input.GetSendingMode() == components.SendingModeHex {
		data, err = parseHexString(text)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid hex input: %w", err)
		}
		return data, data, nil
	}
	return []byte(text + m.cfg.NewLine), []byte(text), nil
}

func (m *connectModel) layout() {
	helpHeight := 0
	if m.help.ShowAll {
		helpHeight = lipgloss.Height(m.help.View(m.keys))
	}
	m.terminal.SetSize(m.width, max(m.height-inputHeight-statusBarHeight-borderHeight-helpHeight, 1))
	m.input.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)
	m.help.Width = m.width
}

func (m *connectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		if !m.IsReady() {
			m.SetReady(true)
			m.terminal.Refresh(m.Entries())
		}

	case models.ConnectionStatusMsg:
		m.SetConnected(msg.Connected)
		m.SetError(msg.Error)
		if msg.Connected {
			m.statusBar.SetConnected()
		} else {
			m.statusBar.SetDisconnected(msg.Error)
			if msg.Error != nil && !errors.Is(msg.Error, commport.ErrPortUnavailable) {
				m.addEntry(components.Entry(errorEntry(msg.Error)))
			}
		}
		cmds = append(cmds, m.signalsCmd())

	case models.RxTickMsg:
		if e, ok := m.TakeRX(); ok {
			m.addEntry(e)
		}
		cmds = append(cmds, models.RxTick())

	case models.EntryMsg:
		m.addEntry(components.Entry(msg))

	case models.ModemMsg:
		m.statusBar.SetModem(commport.ModemStatus(msg))

	case models.SignalsMsg:
		m.statusBar.SetLines(msg.Lines)
		m.statusBar.SetModem(msg.Modem)

	case lineSetMsg:
		m.addEntry(components.Entry(eventEntry(fmt.Sprintf("%s set to %s", msg.name, msg.state))))
		m.statusBar.SetLines(msg.signals.Lines)
		m.statusBar.SetModem(msg.signals.Modem)

	case models.TxResultMsg:
		status := components.TxSent
		if msg.Err != nil {
			status = components.TxFailed
		}
		m.SetTxStatus(msg.ID, status)
		m.terminal.Refresh(m.Entries())
		if msg.Err != nil {
			m.addEntry(components.Entry(errorEntry(msg.Err)))
		}
		if msg.Online != m.IsConnected() {
			m.SetConnected(msg.Online)
			if msg.Online {
				m.statusBar.SetConnected()
			} else {
				m.statusBar.SetDisconnected(msg.Err)
			}
			cmds = append(cmds, m.signalsCmd())
		}

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			switch {
			case msg.Type == tea.KeyCtrlC:
				return m, tea.Quit
			case key.Matches(msg, m.keys.Escape):
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, nil
			case key.Matches(msg, m.keys.Enter):
				if text := m.input.Value(); text != "" {
					data, display, err := m.payload(text)
					if err != nil {
						m.addEntry(components.Entry(errorEntry(err)))
						return m, nil
					}
					id := m.addEntry(components.Entry{
						Timestamp: time.Now(),
						Kind:      components.EntryTX,
						Data:      display,
						Status:    components.TxPending,
					})
					m.input.AddToHistory(text)
					m.input.SetValue("")
					return m, m.sendCmd(id, data)
				}
				return m, nil
			case key.Matches(msg, m.keys.HistoryUp):
				m.input.NavigateHistoryUp()
				return m, nil
			case key.Matches(msg, m.keys.HistoryDown):
				m.input.NavigateHistoryDown()
				return m, nil
			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.InsertMode):
			m.SetInputMode(models.InputModeInsert)
			cmds = append(cmds, m.input.Focus())
		case key.Matches(msg, m.keys.Clear):
			m.ClearData()
			m.terminal.Clear()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.layout()
		case key.Matches(msg, m.keys.ToggleHex):
			m.terminal.ToggleHex()
			m.terminal.Refresh(m.Entries())
		case key.Matches(msg, m.keys.ToggleASCII):
			m.terminal.ToggleASCII()
			m.terminal.Refresh(m.Entries())
		case key.Matches(msg, m.keys.ToggleSendMode):
			m.input.ToggleSendingMode()
		case key.Matches(msg, m.keys.ToggleRTS):
			cmds = append(cmds, m.toggleLineCmd(rtsLine))
		case key.Matches(msg, m.keys.ToggleDTR):
			cmds = append(cmds, m.toggleLineCmd(dtrLine))
		case key.Matches(msg, m.keys.ToggleBreak):
			cmds = append(cmds, m.toggleLineCmd(breakLine))
		case key.Matches(msg, m.keys.QueueStatus):
			cmds = append(cmds, m.queueStatusCmd())
		case key.Matches(msg, m.keys.Up):
			m.terminal.LineUp()
		case key.Matches(msg, m.keys.Down):
			m.terminal.LineDown()
		case key.Matches(msg, m.keys.GotoTop):
			m.terminal.GotoTop()
		case key.Matches(msg, m.keys.GotoBottom):
			m.terminal.GotoBottom()
		}

	case tea.MouseMsg:
		_, cmd := m.terminal.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *connectModel) View() string {
	content := "Initializing..."
	if m.IsReady() {
		content = m.terminal.View()
	}

	inputMode := m.GetInputMode().String()
	parts := []string{
		styles.ContentBorderStyle.Render(content),
	}
	if m.help.ShowAll {
		parts = append(parts, m.help.View(m.keys))
	}
	parts = append(parts,
		m.input.View(m.IsInInsertMode()),
		m.statusBar.View(inputMode, m.input.GetSendingMode().String(), m.IsConnected(), time.Now().Format("15:04:05")),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
