package viewer

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Pause key.Binding
	Up    key.Binding
	Down  key.Binding
	Top   key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Up, k.Down, k.Top, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Quit},
		{k.Up, k.Down, k.Top},
	}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Pause: key.NewBinding(key.WithKeys(" ", "space", "p"), key.WithHelp("space", "play/pause")),
		Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("up/k", "prev chunk")),
		Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("down/j", "next chunk")),
		Top:   key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first chunk")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}
