package keys

import "github.com/charmbracelet/bubbles/key"

// Common key bindings used across TUI commands
type CommonKeys struct {
	Quit key.Binding
	Help key.Binding
}

func NewCommonKeys() CommonKeys {
	return CommonKeys{
		Quit: key.NewBinding(
			key.WithKeys("q", "Q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
	}
}

// WatchKeys are the bindings of the event watch view.
type WatchKeys struct {
	CommonKeys
	Clear       key.Binding
	ToggleHex   key.Binding
	ToggleASCII key.Binding
	Pause       key.Binding
	VisualMode  key.Binding
	Escape      key.Binding
	Up          key.Binding
	Down        key.Binding
	GotoTop     key.Binding
	GotoBottom  key.Binding
	ToggleDTR   key.Binding
	ToggleRTS   key.Binding
	Break       key.Binding
}

func NewWatchKeys() WatchKeys {
	return WatchKeys{
		CommonKeys: NewCommonKeys(),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear events"),
		),
		ToggleHex: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "toggle hex"),
		),
		ToggleASCII: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle ascii"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p/space", "pause listener"),
		),
		VisualMode: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "visual mode"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "follow mode"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		GotoTop: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "goto top"),
		),
		GotoBottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "goto bottom"),
		),
		ToggleDTR: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "toggle DTR"),
		),
		ToggleRTS: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "toggle RTS"),
		),
		Break: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "send break"),
		),
	}
}

func (k WatchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Pause, k.VisualMode, k.Clear, k.Quit}
}

func (k WatchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Clear, k.ToggleHex, k.ToggleASCII},
		{k.VisualMode, k.Escape, k.Up, k.Down, k.GotoTop, k.GotoBottom},
		{k.ToggleDTR, k.ToggleRTS, k.Break},
		{k.Help, k.Quit},
	}
}
