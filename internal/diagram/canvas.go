package diagram

import "strings"

// canvas is a fixed-size grid of runes the layout draws boxes and
// connectors onto. Crossing line characters merge into junctions instead of
// overwriting each other.
type canvas struct {
	width, height int
	cells         []rune
}

func newCanvas(width, height int) *canvas {
	c := &canvas{
		width:  width,
		height: height,
		cells:  make([]rune, width*height),
	}
	for i := range c.cells {
		c.cells[i] = ' '
	}
	return c
}

func (c *canvas) set(x, y int, r rune) {
	if x < 0 || x >= c.width || y < 0 || y >= c.height {
		return
	}
	idx := y*c.width + x
	if existing := c.cells[idx]; existing != ' ' && existing != 0 {
		c.cells[idx] = combine(existing, r)
		return
	}
	c.cells[idx] = r
}

// setText writes a string left-to-right starting at (x, y).
func (c *canvas) setText(x, y int, text string) {
	for _, r := range text {
		c.set(x, y, r)
		x++
	}
}

func (c *canvas) hline(x1, x2, y int) {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	for x := x1; x <= x2; x++ {
		c.set(x, y, '─')
	}
}

func (c *canvas) vline(x, y1, y2 int) {
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	for y := y1; y <= y2; y++ {
		c.set(x, y, '│')
	}
}

func (c *canvas) String() string {
	var b strings.Builder
	for y := 0; y < c.height; y++ {
		line := strings.TrimRight(string(c.cells[y*c.width:(y+1)*c.width]), " ")
		b.WriteString(line)
		if y < c.height-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// combine merges two overlapping line runes into the matching junction.
// Arrowheads and box corners win over plain lines; unknown pairs keep the
// newer rune.
func combine(existing, new rune) rune {
	if isSolid(new) {
		return new
	}
	if isSolid(existing) {
		return existing
	}
	pair := string([]rune{existing, new})
	switch pair {
	case "─│", "│─", "┼─", "┼│":
		return '┼'
	case "─┐", "┐─":
		return '┬'
	case "─┘", "┘─":
		return '┴'
	case "│┐", "┐│", "│┌", "┌│":
		return '├'
	case "│┘", "┘│", "│└", "└│":
		return '┤'
	}
	return new
}

func isSolid(r rune) bool {
	switch r {
	case '▶', '▼', '◀', '▲':
		return true
	}
	return false
}
