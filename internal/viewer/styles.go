package viewer

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/skywidgets/internal/builders"
)

// paletteHex maps the builders' C0..C9 color names to terminal colors.
var paletteHex = map[string]string{
	"C0": "#1f77b4",
	"C1": "#ff7f0e",
	"C2": "#2ca02c",
	"C3": "#d62728",
	"C4": "#9467bd",
	"C5": "#8c564b",
	"C6": "#e377c2",
	"C7": "#7f7f7f",
	"C8": "#bcbd22",
	"C9": "#17becf",
}

// lineColor resolves a line's style color. In-progress lines use the
// terminal's foreground so they read as "black" on either background.
func lineColor(name string) lipgloss.TerminalColor {
	if hex, ok := paletteHex[name]; ok {
		return lipgloss.Color(hex)
	}
	if name == builders.SentinelColor || name == "" {
		return lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}
	}
	// Anything else is passed through, e.g. "#aabbcc" or an ANSI index.
	return lipgloss.Color(name)
}

var (
	subtleColor    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlightColor = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(subtleColor)
	activeTabStyle = tabStyle.
			Foreground(highlightColor).
			Bold(true).
			Underline(true)

	titleStyle = lipgloss.NewStyle().Bold(true)
	axisStyle  = lipgloss.NewStyle().Foreground(subtleColor)
	emptyStyle = lipgloss.NewStyle().Foreground(subtleColor).Italic(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#343433", Dark: "#C1C6B2"}).
			Background(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#353533"})

	detailsStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(subtleColor).
			Padding(0, 1)
)
