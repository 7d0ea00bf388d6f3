package viewer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/skywidgets/internal/plotspec"
)

const maxTabTitle = 24

func tabZoneID(i int) string {
	return fmt.Sprintf("figure-tab-%d", i)
}

// renderTabs draws one clickable tab per figure. Tabs that would overflow
// width are replaced by a "+N" counter.
func renderTabs(figures []*plotspec.FigureSpec, active, width int) string {
	if len(figures) == 0 {
		return emptyStyle.Render("no figures yet")
	}
	var sb strings.Builder
	used := 0
	for i, fig := range figures {
		style := tabStyle
		if i == active {
			style = activeTabStyle
		}
		title := clipLabel(fig.Title(), maxTabTitle)
		if title == "" {
			title = fmt.Sprintf("figure %d", i+1)
		}
		tab := style.Render(title)
		w := ansi.StringWidth(tab)
		more := fmt.Sprintf(" +%d", len(figures)-i)
		if used+w+len(more) > width && i < len(figures)-1 {
			sb.WriteString(tabStyle.Render(more))
			break
		}
		sb.WriteString(zone.Mark(tabZoneID(i), tab))
		used += w
	}
	return sb.String()
}
