package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up            key.Binding
	down          key.Binding
	markRead      key.Binding
	back          key.Binding
	reconnect     key.Binding
	notifications key.Binding
	markAll       key.Binding
	quit          key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		markRead:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "mark read")),
		back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		reconnect:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reconnect")),
		notifications: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "notifications")),
		markAll:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mark all read")),
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.reconnect, k.notifications, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.markRead, k.back},
		{k.reconnect, k.notifications, k.markAll, k.quit},
	}
}
