package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Start   key.Binding
	Stop    key.Binding
	Pause   key.Binding
	VolUp   key.Binding
	VolDown key.Binding
	StopAll key.Binding
	Slot    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev sound")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next sound")),
		Start:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start")),
		Stop:    key.NewBinding(key.WithKeys("backspace", "s"), key.WithHelp("s", "stop")),
		Pause:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause")),
		VolUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "master volume")),
		VolDown: key.NewBinding(key.WithKeys("-", "_")),
		StopAll: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop all")),
		Slot:    key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8"), key.WithHelp("1-8", "stop slot")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Pause, k.VolUp, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Start, k.Stop},
		{k.Pause, k.VolUp, k.StopAll, k.Slot},
		{k.Help, k.Quit},
	}
}
