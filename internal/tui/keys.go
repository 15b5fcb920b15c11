package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Choose  key.Binding
	Prev    key.Binding
	Next    key.Binding
	Jump    key.Binding
	Mark    key.Binding
	Submit  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Dismiss key.Binding
	Start   key.Binding
	Quit    key.Binding
	Help    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "option up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "option down")),
		Choose:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "choose")),
		Prev:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous")),
		Next:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
		Jump:    key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "jump")),
		Mark:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mark for review")),
		Submit:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "submit")),
		Confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
		Dismiss: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
		Start:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start exam")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Choose, k.Prev, k.Next, k.Mark, k.Submit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Choose},
		{k.Prev, k.Next, k.Jump},
		{k.Mark, k.Submit, k.Dismiss},
		{k.Help, k.Quit},
	}
}
