package watch

import "strings"

// Braille cells pack 2x4 dots each; the canvas exposes world coordinates
// and maps them through a square viewport onto the dot grid.
var dotBits = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

type canvas struct {
	cols, rows int
	cells      [][]rune

	// viewport: world point (cx, cy) maps to the canvas center, and
	// half the canvas height spans `half` world units.
	cx, cy, half float64
}

func newCanvas(cols, rows int) *canvas {
	c := &canvas{cols: cols, rows: rows, cells: make([][]rune, rows), half: 1}
	for i := range c.cells {
		c.cells[i] = make([]rune, cols)
	}
	c.clear()
	return c
}

func (c *canvas) setView(cx, cy, half float64) {
	c.cx, c.cy, c.half = cx, cy, half
}

func (c *canvas) clear() {
	for i := range c.cells {
		for j := range c.cells[i] {
			c.cells[i][j] = 0x2800
		}
	}
}

// toDots converts world coordinates to dot-grid coordinates, y up.
func (c *canvas) toDots(x, y float64) (int, int) {
	h := float64(c.rows * 4)
	scale := h / (2 * c.half)
	dx := float64(c.cols) + (x-c.cx)*scale
	dy := h/2 - (y-c.cy)*scale
	return int(dx), int(dy)
}

func (c *canvas) setDot(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.cols || row >= c.rows {
		return
	}
	c.cells[row][col] |= dotBits[y%4][x%2]
}

func (c *canvas) plot(x, y float64) {
	c.setDot(c.toDots(x, y))
}

// mark draws a 3x3 dot blob, used for joints and targets.
func (c *canvas) mark(x, y float64) {
	px, py := c.toDots(x, y)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			c.setDot(px+dx, py+dy)
		}
	}
}

// segment draws a world-space line with Bresenham over the dot grid.
func (c *canvas) segment(x1, y1, x2, y2 float64) {
	ax, ay := c.toDots(x1, y1)
	bx, by := c.toDots(x2, y2)

	dx, dy := abs(bx-ax), abs(by-ay)
	sx, sy := 1, 1
	if ax > bx {
		sx = -1
	}
	if ay > by {
		sy = -1
	}
	err := dx - dy
	for {
		c.setDot(ax, ay)
		if ax == bx && ay == by {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			ax += sx
		}
		if e2 < dx {
			err += dx
			ay += sy
		}
	}
}

func (c *canvas) String() string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
