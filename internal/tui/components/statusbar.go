package components

import (
	"fmt"

	"github.com/allbin/go-commport"
	"github.com/allbin/go-commport/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// LineStates holds the software-controlled outputs shown in the status bar.
type LineStates struct {
	RTS   commport.LineState
	DTR   commport.LineState
	Break commport.LineState
}

type StatusBar struct {
	portPath string
	status   string
	err      error
	width    int
	cfg      *commport.Config
	lines    LineStates
	modem    commport.ModemStatus
}

func NewStatusBar(portPath string) *StatusBar {
	return &StatusBar{
		portPath: portPath,
		status:   "Initializing...",
		lines:    LineStates{commport.LineUnsupported, commport.LineUnsupported, commport.LineUnsupported},
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetConfig(cfg commport.Config) {
	sb.cfg = &cfg
}

func (sb *StatusBar) SetLines(lines LineStates) {
	sb.lines = lines
}

func (sb *StatusBar) SetModem(m commport.ModemStatus) {
	sb.modem = m
}

func (sb *StatusBar) SetConnecting() {
	sb.status = "Connecting..."
	sb.err = nil
}

func (sb *StatusBar) SetConnected() {
	sb.status = "Connected"
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	sb.err = err
	if err != nil {
		sb.status = fmt.Sprintf("Connection failed: %v", err)
	} else {
		sb.status = "Disconnected"
	}
}

// HandshakeName names the flow control a configuration uses.
func HandshakeName(cfg commport.Config) string {
	switch {
	case cfg.TxFlowCTS && cfg.RTSControl == commport.OutputHandshake:
		return "RTS/CTS"
	case cfg.TxFlowDSR && cfg.DTRControl == commport.OutputHandshake:
		return "DSR/DTR"
	case cfg.TxFlowX || cfg.RxFlowX:
		return "XON/XOFF"
	case cfg.TxFlowCTS || cfg.TxFlowDSR:
		return "custom"
	default:
		return "none"
	}
}

func (sb *StatusBar) connectionDetails() string {
	if sb.cfg == nil {
		return "⚡ serial"
	}
	return fmt.Sprintf("⚡ %d %d%s%s %s",
		sb.cfg.BaudRate,
		sb.cfg.DataBits,
		sb.cfg.Parity,
		sb.cfg.StopBits,
		HandshakeName(*sb.cfg))
}

// signals renders the output lines followed by the modem inputs.
func (sb *StatusBar) signals() string {
	out := []struct {
		name  string
		state commport.LineState
	}{{"RTS", sb.lines.RTS}, {"DTR", sb.lines.DTR}, {"BRK", sb.lines.Break}}

	var parts []string
	for _, o := range out {
		parts = append(parts, styles.LineStyle(o.state).Render(o.name))
	}
	parts = append(parts, " ")
	in := []struct {
		name string
		high bool
	}{{"CTS", sb.modem.CTS()}, {"DSR", sb.modem.DSR()}, {"RI", sb.modem.Ring()}, {"DCD", sb.modem.RLSD()}}
	for _, i := range in {
		parts = append(parts, styles.SignalStyle(i.high).Render(i.name))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinHorizontal(lipgloss.Left, joinSpaced(parts)...))
}

func joinSpaced(parts []string) []string {
	out := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, p)
	}
	return out
}

// View renders a single line with the input mode, port, connection state,
// line states, settings and clock.
func (sb *StatusBar) View(inputMode, sendingMode string, connected bool, timestamp string) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	modeBg := styles.Blue
	if inputMode == "INSERT" {
		modeBg = styles.Green
	}
	mode := lipgloss.NewStyle().
		Foreground(styles.Base).
		Background(modeBg).
		Bold(true).
		Padding(0, 1).
		Render(inputMode)

	port := lipgloss.NewStyle().
		Foreground(styles.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.portPath)

	var indicator string
	switch {
	case sb.err != nil:
		indicator = lipgloss.NewStyle().Foreground(styles.Red).Render("✗")
	case connected:
		indicator = lipgloss.NewStyle().Foreground(styles.Green).Render("●")
	case sb.status == "Connecting...":
		indicator = lipgloss.NewStyle().Foreground(styles.Yellow).Render("○")
	default:
		indicator = lipgloss.NewStyle().Foreground(styles.Red).Render("○")
	}

	divider := lipgloss.NewStyle().
		Foreground(styles.Surface2).
		Padding(0, 1).
		Render("│")

	left := []string{mode, port, indicator}
	if inputMode == "INSERT" {
		left = append(left, lipgloss.NewStyle().
			Foreground(styles.Peach).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode)))
	}
	left = append(left, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	details := lipgloss.NewStyle().
		Foreground(styles.Subtext0).
		Padding(0, 1).
		Render(sb.connectionDetails())
	clock := lipgloss.NewStyle().
		Foreground(styles.Subtext1).
		Padding(0, 1).
		Render(timestamp)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, sb.signals(), divider, details, divider, clock)

	spacerWidth := max(width-lipgloss.Width(leftSide)-lipgloss.Width(rightSide), 1)
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(styles.Text).
		Background(styles.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}

// Status returns the last connection status text and error.
func (sb *StatusBar) Status() (string, error) {
	return sb.status, sb.err
}
