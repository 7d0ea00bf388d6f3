package viewer

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/zjrosen/skywidgets/internal/plotspec"
)

const (
	minChartWidth  = 20
	minChartHeight = 5
)

// series is one line's data ready to draw.
type series struct {
	label  string
	x, y   []float64
	color  lipgloss.TerminalColor
	dashed bool
}

// collectSeries evaluates every line of ax. Lines whose function fails are
// left out and their errors returned.
func collectSeries(ctx context.Context, ax *plotspec.AxesSpec) ([]series, []error) {
	var out []series
	var errs []error
	for _, line := range ax.Lines.Items() {
		x, y, err := line.Data(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", line.Label(), err))
			continue
		}
		s := series{
			label:  line.Label(),
			color:  lineColor(line.Style().String("color")),
			dashed: line.Style().String("linestyle") == "dashed",
		}
		n := min(len(x.Data), len(y.Data))
		for i := 0; i < n; i++ {
			if finite(x.Data[i]) && finite(y.Data[i]) {
				s.x = append(s.x, x.Data[i])
				s.y = append(s.y, y.Data[i])
			}
		}
		out = append(out, s)
	}
	return out, errs
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type bounds struct {
	xmin, xmax, ymin, ymax float64
}

// dataBounds spans every point; ok is false when there are none. Flat
// ranges are widened so every point maps inside the plot.
func dataBounds(ss []series) (b bounds, ok bool) {
	b = bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, s := range ss {
		for i := range s.x {
			b.xmin, b.xmax = math.Min(b.xmin, s.x[i]), math.Max(b.xmax, s.x[i])
			b.ymin, b.ymax = math.Min(b.ymin, s.y[i]), math.Max(b.ymax, s.y[i])
			ok = true
		}
	}
	if !ok {
		return bounds{}, false
	}
	b.xmin, b.xmax = widen(b.xmin, b.xmax)
	b.ymin, b.ymax = widen(b.ymin, b.ymax)
	return b, true
}

func widen(lo, hi float64) (float64, float64) {
	if hi > lo {
		return lo, hi
	}
	pad := math.Abs(lo) * 0.1
	if pad == 0 {
		pad = 0.5
	}
	return lo - pad, hi + pad
}

func tick(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// renderChart draws ss into a width x height block with y ticks on the left
// and x ticks plus the x label underneath.
func renderChart(ss []series, xLabel, yLabel string, width, height int) string {
	if width < minChartWidth || height < minChartHeight {
		return emptyStyle.Render("(too small)")
	}
	b, ok := dataBounds(ss)
	if !ok {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, emptyStyle.Render("waiting for data"))
	}

	rows := height - 2
	yTicks := map[int]string{0: tick(b.ymax), rows - 1: tick(b.ymin)}
	if rows >= 5 {
		yTicks[rows/2] = tick((b.ymin + b.ymax) / 2)
	}
	labelW := 0
	for _, t := range yTicks {
		labelW = max(labelW, len(t))
	}
	cols := width - labelW - 1

	c := newCanvas(cols, rows)
	pw, ph := c.Size()
	px := func(v float64) int { return int(math.Round((v - b.xmin) / (b.xmax - b.xmin) * float64(pw-1))) }
	py := func(v float64) int { return ph - 1 - int(math.Round((v-b.ymin)/(b.ymax-b.ymin)*float64(ph-1))) }

	for _, s := range ss {
		if len(s.x) == 1 {
			c.Set(px(s.x[0]), py(s.y[0]), s.color)
			continue
		}
		for i := 1; i < len(s.x); i++ {
			c.Line(px(s.x[i-1]), py(s.y[i-1]), px(s.x[i]), py(s.y[i]), s.color, s.dashed)
		}
	}

	var sb strings.Builder
	for r, row := range c.Rows() {
		t, ok := yTicks[r]
		edge := "│"
		if ok {
			edge = "┤"
		}
		sb.WriteString(axisStyle.Render(fmt.Sprintf("%*s%s", labelW, t, edge)))
		sb.WriteString(row)
		sb.WriteByte('\n')
	}
	sb.WriteString(axisStyle.Render(strings.Repeat(" ", labelW) + "└" + strings.Repeat("─", cols)))
	sb.WriteByte('\n')
	sb.WriteString(axisStyle.Render(strings.Repeat(" ", labelW+1) + xAxisLine(tick(b.xmin), axisCaption(xLabel, yLabel), tick(b.xmax), cols)))
	return sb.String()
}

func axisCaption(xLabel, yLabel string) string {
	switch {
	case xLabel == "" && yLabel == "":
		return ""
	case yLabel == "":
		return xLabel
	case xLabel == "":
		return yLabel
	}
	return yLabel + " v " + xLabel
}

// xAxisLine puts lo at the left edge, hi at the right edge and the caption
// centred between them, dropping the caption when it does not fit.
func xAxisLine(lo, caption, hi string, width int) string {
	gap := width - runewidth.StringWidth(lo) - runewidth.StringWidth(hi)
	if gap < 1 {
		return ansi.Truncate(lo, width, "")
	}
	capW := runewidth.StringWidth(caption)
	if capW > gap-2 {
		return lo + strings.Repeat(" ", gap) + hi
	}
	left := (gap - capW) / 2
	return lo + strings.Repeat(" ", left) + caption + strings.Repeat(" ", gap-capW-left) + hi
}
