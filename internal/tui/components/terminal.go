package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Terminal is a scrolling view of formatted entries. It follows new output
// while scrolled to the bottom and stays put otherwise.
type Terminal struct {
	viewport  viewport.Model
	formatter *DataFormatter
	lines     []string
	maxLines  int // 0 keeps every line
}

func NewTerminal(width, height int) *Terminal {
	return &Terminal{
		viewport:  viewport.New(width, height),
		formatter: NewDataFormatter(true, true),
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
}

func (t *Terminal) GetViewport() viewport.Model {
	return t.viewport
}

func (t *Terminal) SetMaxLines(n int) {
	t.maxLines = n
}

func (t *Terminal) Formatter() *DataFormatter {
	return t.formatter
}

func (t *Terminal) AddEntry(e Entry) {
	follow := t.viewport.AtBottom()
	t.lines = append(t.lines, t.formatter.FormatEntry(e))
	if t.maxLines > 0 && len(t.lines) > t.maxLines {
		t.lines = t.lines[len(t.lines)-t.maxLines:]
	}
	t.viewport.SetContent(strings.Join(t.lines, "\n"))
	if follow {
		t.viewport.GotoBottom()
	}
}

// Refresh re-renders every entry, used after the display mode or a TX
// status changes.
func (t *Terminal) Refresh(entries []Entry) {
	follow := t.viewport.AtBottom()
	t.lines = t.formatter.FormatEntries(entries)
	t.viewport.SetContent(strings.Join(t.lines, "\n"))
	if follow {
		t.viewport.GotoBottom()
	}
}

func (t *Terminal) Clear() {
	t.lines = nil
	t.viewport.SetContent("")
	t.viewport.GotoTop()
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
}

func (t *Terminal) ToggleASCII() {
	t.formatter.ToggleASCII()
}

func (t *Terminal) GetDisplayMode() DisplayMode {
	return t.formatter.GetDisplayMode()
}

func (t *Terminal) LineUp()     { t.viewport.LineUp(1) }
func (t *Terminal) LineDown()   { t.viewport.LineDown(1) }
func (t *Terminal) GotoTop()    { t.viewport.GotoTop() }
func (t *Terminal) GotoBottom() { t.viewport.GotoBottom() }

func (t *Terminal) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Key messages are handled by the owning model so that the viewport
	// does not consume its bindings.
	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t.viewport, cmd
	default:
		return t.viewport, nil
	}
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
