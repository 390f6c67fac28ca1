package components

import (
	"strings"

	"github.com/allbin/go-commport/internal/tui/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type SendingMode int

const (
	SendingModeASCII SendingMode = iota
	SendingModeHex
)

const (
	asciiPlaceholder = "Type message and press Enter to send..."
	hexPlaceholder   = "Enter hex (e.g. 48656C6C6F or 48 65 6C 6C 6F)..."

	maxHistory = 100
)

func (s SendingMode) String() string {
	if s == SendingModeHex {
		return "HEX"
	}
	return "ASCII"
}

type Input struct {
	textInput     textinput.Model
	sendingMode   SendingMode
	history       []string
	historyIndex  int
	currentInput  string // input being edited before history navigation started
	terminalWidth int
}

func NewInput() *Input {
	ti := textinput.New()
	ti.Placeholder = asciiPlaceholder
	ti.CharLimit = 256
	ti.Prompt = ""

	return &Input{
		textInput:    ti,
		sendingMode:  SendingModeASCII,
		historyIndex: -1,
	}
}

func (i *Input) SetWidth(width int) {
	i.terminalWidth = width
	// border(2) + padding(2) + prompt(1) + space(1)
	i.textInput.Width = max(width-6, 20)
}

func (i *Input) Focus() tea.Cmd {
	return i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

func (i *Input) ToggleSendingMode() {
	if i.sendingMode == SendingModeASCII {
		i.sendingMode = SendingModeHex
		i.textInput.Placeholder = hexPlaceholder
	} else {
		i.sendingMode = SendingModeASCII
		i.textInput.Placeholder = asciiPlaceholder
	}
}

func (i *Input) GetSendingMode() SendingMode {
	return i.sendingMode
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

func (i *Input) View(isInsertMode bool) string {
	promptSymbol, promptColor := ">", styles.Green
	if i.sendingMode == SendingModeHex {
		promptSymbol, promptColor = "#", styles.Yellow
	}
	prompt := lipgloss.NewStyle().Foreground(promptColor).Bold(true).Render(promptSymbol)

	var content string
	if isInsertMode {
		content = lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", i.textInput.View())
	} else {
		hint := lipgloss.NewStyle().
			Foreground(styles.Overlay0).
			Render("Press 'i' to enter insert mode")
		content = lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", hint)
	}

	// RoundedBorder and the horizontal padding take four columns.
	style := styles.InputStyle.
		Width(max(i.terminalWidth-4, 10)).
		AlignHorizontal(lipgloss.Left)
	if isInsertMode {
		style = style.BorderForeground(styles.Green)
	}
	return style.Render(content)
}

// AddToHistory records a sent line unless it is blank or repeats the last one.
func (i *Input) AddToHistory(command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	if len(i.history) > 0 && i.history[len(i.history)-1] == command {
		return
	}

	i.history = append(i.history, command)
	if len(i.history) > maxHistory {
		i.history = i.history[1:]
	}
	i.historyIndex = -1
	i.currentInput = ""
}

func (i *Input) NavigateHistoryUp() {
	if len(i.history) == 0 {
		return
	}

	if i.historyIndex == -1 {
		i.currentInput = i.textInput.Value()
		i.historyIndex = len(i.history) - 1
	} else if i.historyIndex > 0 {
		i.historyIndex--
	}
	i.textInput.SetValue(i.history[i.historyIndex])
}

func (i *Input) NavigateHistoryDown() {
	if len(i.history) == 0 || i.historyIndex == -1 {
		return
	}

	if i.historyIndex < len(i.history)-1 {
		i.historyIndex++
		i.textInput.SetValue(i.history[i.historyIndex])
		return
	}
	i.historyIndex = -1
	i.textInput.SetValue(i.currentInput)
	i.currentInput = ""
}
