package confirm

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists the dialog bindings.
type KeyMap struct {
	Toggle  key.Binding
	Select  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns the bindings shown in the dialog footer.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys("left", "right", "h", "l", "tab", "shift+tab"),
			key.WithHelp("←/→", "switch"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "choose"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "yes"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n", "N", "esc", "q", "ctrl+c"),
			key.WithHelp("n/esc", "no"),
		),
	}
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.Toggle, k.Select, k.Confirm, k.Cancel}
}
