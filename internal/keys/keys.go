// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the viewer keybindings.
type KeyMap struct {
	// Figures
	NextFigure  key.Binding
	PrevFigure  key.Binding
	CloseFigure key.Binding

	// Runs
	MoreRuns key.Binding
	FewerRuns key.Binding
	Pin       key.Binding
	Unpin     key.Binding

	// Panels
	Details      key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
	ToggleStatus key.Binding

	// General
	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextFigure: key.NewBinding(
			key.WithKeys("tab", "l", "right"),
			key.WithHelp("tab/l", "next figure"),
		),
		PrevFigure: key.NewBinding(
			key.WithKeys("shift+tab", "h", "left"),
			key.WithHelp("S-tab/h", "previous figure"),
		),
		CloseFigure: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close figure"),
		),

		MoreRuns: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "keep more runs"),
		),
		FewerRuns: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "keep fewer runs"),
		),
		Pin: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pin latest run"),
		),
		Unpin: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "unpin all"),
		),

		Details: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "run details"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll details"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll details"),
		),
		ToggleStatus: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "toggle status bar"),
		),

		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns keybindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextFigure, k.MoreRuns, k.FewerRuns, k.Pin, k.Help, k.Quit}
}

// FullHelp returns keybindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextFigure, k.PrevFigure, k.CloseFigure},
		{k.MoreRuns, k.FewerRuns, k.Pin, k.Unpin},
		{k.Details, k.ScrollUp, k.ScrollDown, k.ToggleStatus},
		{k.Help, k.Quit},
	}
}
