package keys

import "github.com/charmbracelet/bubbles/key"

// ConnectKeys adds sending and line control to the terminal keys.
type ConnectKeys struct {
	TerminalKeys
	Enter          key.Binding
	ToggleSendMode key.Binding
	HistoryUp      key.Binding
	HistoryDown    key.Binding
	ToggleRTS      key.Binding
	ToggleDTR      key.Binding
	ToggleBreak    key.Binding
	QueueStatus    key.Binding
}

func NewConnectKeys() ConnectKeys {
	return ConnectKeys{
		TerminalKeys:   NewTerminalKeys(),
		Enter:          bind("enter", "send", "enter", "ctrl+s"),
		ToggleSendMode: bind("tab", "ascii/hex input", "tab"),
		HistoryUp:      bind("↑", "previous input", "up"),
		HistoryDown:    bind("↓", "next input", "down"),
		ToggleRTS:      bind("r", "toggle RTS", "r"),
		ToggleDTR:      bind("d", "toggle DTR", "d"),
		ToggleBreak:    bind("b", "toggle break", "b"),
		QueueStatus:    bind("s", "queue status", "s"),
	}
}

func (k ConnectKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.InsertMode, k.Enter, k.ToggleRTS, k.ToggleDTR, k.Quit}
}

func (k ConnectKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.InsertMode, k.Escape, k.Enter, k.ToggleSendMode},
		{k.ToggleRTS, k.ToggleDTR, k.ToggleBreak, k.QueueStatus},
		{k.Clear, k.ToggleHex, k.ToggleASCII},
		{k.Up, k.Down, k.GotoTop, k.GotoBottom},
		{k.Help, k.Quit},
	}
}
