package ui

import "github.com/charmbracelet/bubbles/key"

type fileKeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Submit    key.Binding
	SubmitAll key.Binding
	Cancel    key.Binding
	Play      key.Binding
	Download  key.Binding
	Copy      key.Binding
	Filter    key.Binding
	Speak     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func newFileKeyMap() fileKeyMap {
	return fileKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit/retry"),
		),
		SubmitAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "submit all"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "remove"),
		),
		Play: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "play/stop"),
		),
		Download: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "download"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy url"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Speak: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "speak text"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k fileKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Play, k.Cancel, k.Filter, k.Speak, k.Help, k.Quit}
}

func (k fileKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Submit, k.SubmitAll},
		{k.Cancel, k.Play, k.Download, k.Copy},
		{k.Filter, k.Speak, k.Help, k.Quit},
	}
}

type speakKeyMap struct {
	Speak key.Binding
	Stop  key.Binding
	Files key.Binding
	Quit  key.Binding
}

func newSpeakKeyMap() speakKeyMap {
	return speakKeyMap{
		Speak: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "speak"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop"),
		),
		Files: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "files"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

func (k speakKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Speak, k.Stop, k.Files, k.Quit}
}

func (k speakKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
