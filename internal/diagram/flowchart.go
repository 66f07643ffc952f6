// Package diagram lays out a small flowchart dialect (the common
// "graph TD; A[Start] --> B[Done]" subset) as box-and-arrow terminal art.
// Invalid or incomplete source is rejected with an error; while a diagram
// block is still streaming that is the expected outcome, and the caller
// falls back to the previous successful layout.
package diagram

import (
	"context"
	"fmt"
	"strings"

	runewidth "github.com/mattn/go-runewidth"

	"streammark/internal/logger"
)

const (
	boxPadding = 2 // spaces between border and label
	boxMinimum = 8 // narrower boxes look broken
	boxHeight  = 3
	rowGap     = 2 // connector space between stacked boxes
	colGap     = 4 // connector space between side-by-side boxes
)

type node struct {
	id    string
	label string
	width int
}

type edge struct {
	from, to int // indices into graph.nodes
	label    string
}

type graph struct {
	vertical bool
	nodes    []*node
	edges    []edge
	index    map[string]int
}

// FlowchartEngine implements render.DiagramEngine for the flowchart dialect.
type FlowchartEngine struct {
	log *logger.LogEntry
}

// NewFlowchartEngine creates the engine.
func NewFlowchartEngine() *FlowchartEngine {
	return &FlowchartEngine{log: logger.Named("diagram")}
}

// Render parses and lays out one diagram.
func (e *FlowchartEngine) Render(ctx context.Context, source string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g, err := parse(source)
	if err != nil {
		return "", err
	}
	if g.vertical {
		return layoutVertical(g), nil
	}
	return layoutHorizontal(g), nil
}

func parse(source string) (*graph, error) {
	g := &graph{index: map[string]int{}}
	sawHeader := false

	for _, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		if !sawHeader {
			vertical, err := parseHeader(line)
			if err != nil {
				return nil, err
			}
			g.vertical = vertical
			sawHeader = true
			continue
		}
		if err := parseStatement(g, line); err != nil {
			return nil, err
		}
	}
	if !sawHeader {
		return nil, fmt.Errorf("missing graph header")
	}
	if len(g.nodes) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}
	return g, nil
}

func parseHeader(line string) (vertical bool, err error) {
	fields := strings.Fields(line)
	if fields[0] != "graph" && fields[0] != "flowchart" {
		return false, fmt.Errorf("expected graph header, got %q", fields[0])
	}
	if len(fields) == 1 {
		return true, nil
	}
	switch fields[1] {
	case "TD", "TB":
		return true, nil
	case "LR":
		return false, nil
	default:
		return false, fmt.Errorf("unsupported direction %q", fields[1])
	}
}

// parseStatement handles one node or edge line. Chains (A --> B --> C)
// produce one edge per hop.
func parseStatement(g *graph, line string) error {
	parts := strings.Split(line, "-->")
	if len(parts) == 1 {
		_, err := internNode(g, parts[0])
		return err
	}
	for i := 0; i < len(parts)-1; i++ {
		lhs := strings.TrimSpace(parts[i])
		rhs := strings.TrimSpace(parts[i+1])
		label := ""
		// 0 hop 之后的段可以带 |label| 前缀：A -->|yes| B。
		if strings.HasPrefix(rhs, "|") {
			end := strings.Index(rhs[1:], "|")
			if end < 0 {
				return fmt.Errorf("unterminated edge label in %q", line)
			}
			label = strings.TrimSpace(rhs[1 : end+1])
			rhs = strings.TrimSpace(rhs[end+2:])
		}
		if i > 0 {
			// Middle segments already consumed their own label prefix.
			lhs = stripEdgeLabel(lhs)
		}
		from, err := internNode(g, lhs)
		if err != nil {
			return err
		}
		to, err := internNode(g, rhs)
		if err != nil {
			return err
		}
		g.edges = append(g.edges, edge{from: from, to: to, label: label})
	}
	return nil
}

func stripEdgeLabel(ref string) string {
	if strings.HasPrefix(ref, "|") {
		if end := strings.Index(ref[1:], "|"); end >= 0 {
			return strings.TrimSpace(ref[end+2:])
		}
	}
	return ref
}

// internNode parses a node reference (ID, ID[label], ID(label), ID{label})
// and returns its index, creating it on first sight.
func internNode(g *graph, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, fmt.Errorf("dangling edge")
	}
	id := ref
	label := ""
	idx := strings.IndexAny(ref, "[({")
	if idx >= 0 {
		closer := map[byte]byte{'[': ']', '(': ')', '{': '}'}[ref[idx]]
		if ref[len(ref)-1] != closer {
			return 0, fmt.Errorf("unterminated node label in %q", ref)
		}
		id = strings.TrimSpace(ref[:idx])
		label = strings.TrimSpace(ref[idx+1 : len(ref)-1])
	}
	if id == "" || strings.ContainsAny(id, " \t[](){}") {
		return 0, fmt.Errorf("invalid node reference %q", ref)
	}
	if existing, ok := g.index[id]; ok {
		if label != "" {
			g.nodes[existing].label = label
			g.nodes[existing].width = boxWidth(label)
		}
		return existing, nil
	}
	if label == "" {
		label = id
	}
	g.nodes = append(g.nodes, &node{id: id, label: label, width: boxWidth(label)})
	g.index[id] = len(g.nodes) - 1
	return len(g.nodes) - 1, nil
}

func boxWidth(label string) int {
	w := runewidth.StringWidth(label) + 2*boxPadding + 2
	if w < boxMinimum {
		w = boxMinimum
	}
	return w
}

// layoutVertical stacks boxes top to bottom in appearance order. Edges to
// the immediately following box connect inline; everything else routes along
// per-edge lanes on the right margin.
func layoutVertical(g *graph) string {
	maxWidth := 0
	for _, n := range g.nodes {
		if n.width > maxWidth {
			maxWidth = n.width
		}
	}
	lanes := 0
	for _, e := range g.edges {
		if e.to != e.from+1 {
			lanes++
		}
	}
	width := maxWidth + 2 + lanes*2 + 1
	height := len(g.nodes)*boxHeight + (len(g.nodes)-1)*rowGap
	c := newCanvas(width, height)

	cx := maxWidth / 2
	top := func(i int) int { return i * (boxHeight + rowGap) }
	mid := func(i int) int { return top(i) + boxHeight/2 }

	for i, n := range g.nodes {
		drawBox(c, cx-n.width/2, top(i), n)
	}

	lane := 0
	for _, e := range g.edges {
		if e.to == e.from+1 {
			y := top(e.from) + boxHeight
			c.set(cx, y, '│')
			c.set(cx, y+1, '▼')
			if e.label != "" {
				c.setText(cx+2, y, e.label)
			}
			continue
		}
		lx := maxWidth + 2 + lane*2
		lane++
		sy, ty := mid(e.from), mid(e.to)
		sRight := cx - g.nodes[e.from].width/2 + g.nodes[e.from].width - 1
		tRight := cx - g.nodes[e.to].width/2 + g.nodes[e.to].width - 1
		c.hline(sRight+1, lx-1, sy)
		c.hline(tRight+2, lx-1, ty)
		c.vline(lx, minInt(sy, ty)+1, maxInt(sy, ty)-1)
		if ty > sy {
			c.set(lx, sy, '┐')
			c.set(lx, ty, '┘')
		} else {
			c.set(lx, sy, '┘')
			c.set(lx, ty, '┐')
		}
		c.set(tRight+1, ty, '◀')
	}
	return c.String()
}

// layoutHorizontal places boxes left to right; non-adjacent edges route
// below the row.
func layoutHorizontal(g *graph) string {
	width := 0
	for i, n := range g.nodes {
		width += n.width
		if i > 0 {
			width += colGap
		}
	}
	lanes := 0
	for _, e := range g.edges {
		if e.to != e.from+1 {
			lanes++
		}
	}
	height := boxHeight + lanes*2 + 1
	c := newCanvas(width, height)

	lefts := make([]int, len(g.nodes))
	x := 0
	for i, n := range g.nodes {
		lefts[i] = x
		drawBox(c, x, 0, n)
		x += n.width + colGap
	}
	midY := boxHeight / 2
	centerX := func(i int) int { return lefts[i] + g.nodes[i].width/2 }

	lane := 0
	for _, e := range g.edges {
		if e.to == e.from+1 {
			sx := lefts[e.from] + g.nodes[e.from].width
			tx := lefts[e.to]
			c.hline(sx, tx-2, midY)
			c.set(tx-1, midY, '▶')
			continue
		}
		ly := boxHeight + lane*2 + 1
		lane++
		sx, tx := centerX(e.from), centerX(e.to)
		c.vline(sx, boxHeight, ly-1)
		c.vline(tx, boxHeight+1, ly-1)
		c.hline(minInt(sx, tx)+1, maxInt(sx, tx)-1, ly)
		if tx > sx {
			c.set(sx, ly, '└')
			c.set(tx, ly, '┘')
		} else {
			c.set(sx, ly, '┘')
			c.set(tx, ly, '└')
		}
		c.set(tx, boxHeight, '▲')
	}
	return c.String()
}

func drawBox(c *canvas, x, y int, n *node) {
	w := n.width
	c.set(x, y, '┌')
	c.set(x+w-1, y, '┐')
	c.set(x, y+2, '└')
	c.set(x+w-1, y+2, '┘')
	for i := 1; i < w-1; i++ {
		c.set(x+i, y, '─')
		c.set(x+i, y+2, '─')
	}
	c.set(x, y+1, '│')
	c.set(x+w-1, y+1, '│')
	inner := w - 2
	pad := (inner - runewidth.StringWidth(n.label)) / 2
	c.setText(x+1+pad, y+1, n.label)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
