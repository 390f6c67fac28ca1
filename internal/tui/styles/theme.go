package styles

import (
	"github.com/allbin/go-commport"
	"github.com/charmbracelet/lipgloss"
)

// Catppuccin Mocha palette
var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Surface2 = lipgloss.Color("#585b70")
	Overlay0 = lipgloss.Color("#6c7086")
	Subtext0 = lipgloss.Color("#a6adc8")
	Subtext1 = lipgloss.Color("#bac2de")
	Text     = lipgloss.Color("#cdd6f4")

	Blue   = lipgloss.Color("#89b4fa")
	Sky    = lipgloss.Color("#89dceb")
	Teal   = lipgloss.Color("#94e2d5")
	Green  = lipgloss.Color("#a6e3a1")
	Yellow = lipgloss.Color("#f9e2af")
	Peach  = lipgloss.Color("#fab387")
	Red    = lipgloss.Color("#f38ba8")
	Mauve  = lipgloss.Color("#cba6f7")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Mauve).
			Background(Surface0).
			Padding(0, 1)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(Surface1)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Surface2).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Red)

	InfoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Mauve)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Mauve)

	TableBaseStyle = lipgloss.NewStyle().
			Foreground(Text).
			BorderForeground(Surface2).
			Align(lipgloss.Left)
)

// LineStyle colours an output line by state: on is green, off is muted and
// a line under handshake control is dimmed further.
func LineStyle(s commport.LineState) lipgloss.Style {
	switch s {
	case commport.LineOn:
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case commport.LineOff:
		return lipgloss.NewStyle().Foreground(Overlay0)
	default:
		return lipgloss.NewStyle().Foreground(Surface2).Faint(true)
	}
}

// SignalStyle colours a modem input.
func SignalStyle(high bool) lipgloss.Style {
	if high {
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(Overlay0)
}
