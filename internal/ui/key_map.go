package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	titles key.Binding
	tab    key.Binding
	back   key.Binding
	start  key.Binding
	stop   key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		titles: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "titles")),
		tab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next list")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		start:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "start")),
		stop:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.tab},
		{k.titles, k.back},
		{k.start, k.stop, k.quit},
	}
}
