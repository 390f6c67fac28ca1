package keys

import "github.com/charmbracelet/bubbles/key"

// bind creates a binding whose help shows the given label and description.
func bind(label, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

// CommonKeys are shared by every interactive command.
type CommonKeys struct {
	Quit       key.Binding
	Help       key.Binding
	InsertMode key.Binding
	Escape     key.Binding
}

func NewCommonKeys() CommonKeys {
	return CommonKeys{
		Quit:       bind("q", "quit", "q", "Q", "ctrl+c"),
		Help:       bind("?", "toggle help", "?"),
		InsertMode: bind("i", "insert mode", "i", "I"),
		Escape:     bind("esc", "normal mode", "esc"),
	}
}

// TerminalKeys adds scrolling and display toggles for commands that show
// a log of entries.
type TerminalKeys struct {
	CommonKeys
	Clear       key.Binding
	ToggleHex   key.Binding
	ToggleASCII key.Binding
	Up          key.Binding
	Down        key.Binding
	GotoTop     key.Binding
	GotoBottom  key.Binding
}

func NewTerminalKeys() TerminalKeys {
	return TerminalKeys{
		CommonKeys:  NewCommonKeys(),
		Clear:       bind("c", "clear log", "c"),
		ToggleHex:   bind("h", "hex display", "h"),
		ToggleASCII: bind("a", "ascii display", "a"),
		Up:          bind("↑/k", "scroll up", "up", "k"),
		Down:        bind("↓/j", "scroll down", "down", "j"),
		GotoTop:     bind("g", "oldest", "g", "home"),
		GotoBottom:  bind("G", "newest", "G", "end"),
	}
}

func (k TerminalKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Clear, k.Quit}
}

func (k TerminalKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Clear, k.ToggleHex, k.ToggleASCII},
		{k.Up, k.Down, k.GotoTop, k.GotoBottom},
		{k.Help, k.Quit},
	}
}
