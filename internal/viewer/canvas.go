package viewer

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// braille dot bits for a 2x4 cell, indexed [y][x].
var brailleBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// canvas is a braille pixel grid: each terminal cell holds 2x4 pixels. A
// cell takes the color of the last pixel drawn into it.
type canvas struct {
	cols, rows int
	dots       []rune
	colors     []lipgloss.TerminalColor
}

func newCanvas(cols, rows int) *canvas {
	return &canvas{
		cols:   cols,
		rows:   rows,
		dots:   make([]rune, cols*rows),
		colors: make([]lipgloss.TerminalColor, cols*rows),
	}
}

// Size returns the pixel dimensions.
func (c *canvas) Size() (w, h int) { return c.cols * 2, c.rows * 4 }

// Set lights pixel (x, y), y growing downwards. Out-of-range pixels are
// ignored.
func (c *canvas) Set(x, y int, color lipgloss.TerminalColor) {
	if x < 0 || y < 0 || x >= c.cols*2 || y >= c.rows*4 {
		return
	}
	i := (y/4)*c.cols + x/2
	c.dots[i] |= brailleBits[y%4][x%2]
	c.colors[i] = color
}

// Line draws from (x0, y0) to (x1, y1). With dashed set, every other run of
// three pixels is skipped.
func (c *canvas) Line(x0, y0, x1, y1 int, color lipgloss.TerminalColor, dashed bool) {
	dx, sx := abs(x1-x0), sign(x1-x0)
	dy, sy := -abs(y1-y0), sign(y1-y0)
	err := dx + dy
	for step := 0; ; step++ {
		if !dashed || (step/3)%2 == 0 {
			c.Set(x0, y0, color)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// Rows renders one string per terminal row.
func (c *canvas) Rows() []string {
	out := make([]string, c.rows)
	var sb strings.Builder
	for r := 0; r < c.rows; r++ {
		sb.Reset()
		for col := 0; col < c.cols; col++ {
			i := r*c.cols + col
			if c.dots[i] == 0 {
				sb.WriteByte(' ')
				continue
			}
			ch := string(0x2800 + c.dots[i])
			if c.colors[i] != nil {
				ch = lipgloss.NewStyle().Foreground(c.colors[i]).Render(ch)
			}
			sb.WriteString(ch)
		}
		out[r] = sb.String()
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
