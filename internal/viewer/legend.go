package viewer

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"

	"github.com/zjrosen/skywidgets/internal/plotspec"
)

const maxLabelWidth = 28

// clipLabel shortens s to at most width cells without splitting a
// grapheme cluster, ending it with "…" when cut.
func clipLabel(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= width {
		return s
	}
	var sb strings.Builder
	used := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if used+w > width-1 {
			break
		}
		sb.WriteString(cluster)
		used += w
	}
	return sb.String() + "…"
}

// renderLegend lists each line as a colored swatch and its label, wrapping
// entries onto as many rows as width requires.
func renderLegend(lines []*plotspec.LineSpec, width int) string {
	if len(lines) == 0 || width <= 0 {
		return ""
	}
	var rows []string
	var row strings.Builder
	rowW := 0
	for _, line := range lines {
		swatch := "━━"
		if line.Style().String("linestyle") == "dashed" {
			swatch = "╍╍"
		}
		label := clipLabel(line.Label(), min(maxLabelWidth, width-3))
		entry := lipgloss.NewStyle().Foreground(lineColor(line.Style().String("color"))).Render(swatch) + " " + label
		entryW := runewidth.StringWidth(swatch) + 1 + runewidth.StringWidth(label)

		if rowW > 0 && rowW+2+entryW > width {
			rows = append(rows, row.String())
			row.Reset()
			rowW = 0
		}
		if rowW > 0 {
			row.WriteString("  ")
			rowW += 2
		}
		row.WriteString(entry)
		rowW += entryW
	}
	rows = append(rows, row.String())
	for i, r := range rows {
		rows[i] = ansi.Truncate(r, width, "…")
	}
	return strings.Join(rows, "\n")
}
