package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the keybindings
type keyMap struct {
	Quit        key.Binding
	SwitchFocus key.Binding
	Open        key.Binding
	Close       key.Binding
	Refresh     key.Binding
	Delete      key.Binding
	Rescrape    key.Binding
	PrevTab     key.Binding
	NextTab     key.Binding
	Copy        key.Binding
	ExportJSON  key.Binding
	ExportCSV   key.Binding
	DownloadAll key.Binding
	Screenshot  key.Binding
	Dismiss     key.Binding
	Up          key.Binding
	Down        key.Binding
	ToggleHelp  key.Binding
}

var keys = keyMap{
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	SwitchFocus: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch focus")),
	Open:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/submit")),
	Close:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close detail")),
	Refresh:     key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("^r", "refresh")),
	Delete:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Rescrape:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "re-run")),
	PrevTab:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev tab")),
	NextTab:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next tab")),
	Copy:        key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy section")),
	ExportJSON:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export json")),
	ExportCSV:   key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "export csv")),
	DownloadAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "download images")),
	Screenshot:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save screenshot")),
	Dismiss:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss notice")),
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	ToggleHelp:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.SwitchFocus, k.Open, k.Close, k.Delete, k.Rescrape, k.Copy, k.ToggleHelp}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Close, k.SwitchFocus},
		{k.Delete, k.Rescrape, k.Refresh, k.PrevTab, k.NextTab},
		{k.Copy, k.ExportJSON, k.ExportCSV, k.DownloadAll, k.Screenshot, k.Dismiss, k.ToggleHelp, k.Quit},
	}
}
