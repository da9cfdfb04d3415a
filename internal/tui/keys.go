package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the keyboard shortcuts
type keyMap struct {
	Quit   key.Binding
	Back   key.Binding
	Cancel key.Binding
	Focus  key.Binding
	Help   key.Binding

	Up     key.Binding
	Down   key.Binding
	Select key.Binding

	PrevPage key.Binding
	NextPage key.Binding
	PageSize key.Binding
	Create   key.Binding
	Edit     key.Binding
	Toggle   key.Binding
	Delete   key.Binding
	Reload   key.Binding

	Confirm key.Binding
	Deny    key.Binding
	Switch  key.Binding
	Stay    key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "alt+left"),
		key.WithHelp("esc", "back"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Focus: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "sidebar/content"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	PrevPage: key.NewBinding(
		key.WithKeys("left", "pgup", "h"),
		key.WithHelp("←", "prev page"),
	),
	NextPage: key.NewBinding(
		key.WithKeys("right", "pgdown", "l"),
		key.WithHelp("→", "next page"),
	),
	PageSize: key.NewBinding(
		key.WithKeys("z"),
		key.WithHelp("z", "rows per page"),
	),
	Create: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "create user"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("t", " "),
		key.WithHelp("t", "toggle status"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d", "delete"),
		key.WithHelp("d", "delete"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y", "enter"),
		key.WithHelp("y/enter", "confirm"),
	),
	Deny: key.NewBinding(
		key.WithKeys("n", "esc"),
		key.WithHelp("n/esc", "cancel"),
	),
	Switch: key.NewBinding(
		key.WithKeys("left", "right", "tab", "h", "l"),
		key.WithHelp("←/→", "choose"),
	),
	Stay: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "stay logged in"),
	),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Focus, k.Back, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Focus},
		{k.Create, k.Edit, k.Toggle, k.Delete},
		{k.PrevPage, k.NextPage, k.PageSize, k.Reload},
		{k.Back, k.Help, k.Quit},
	}
}
