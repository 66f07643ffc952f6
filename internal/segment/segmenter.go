package segment

import (
	"strings"
)

// DefaultDiagramTags 默认的 diagram fence 标签集合：
// 流程图方言 + 原始矢量图。其余标签一律按代码块处理。
var DefaultDiagramTags = []string{"mermaid", "svg"}

// Options configures a Segmenter.
type Options struct {
	// DiagramTags overrides the fence tags routed to KindDiagram.
	// Nil means DefaultDiagramTags; an empty non-nil slice disables
	// diagram routing entirely.
	DiagramTags []string
}

// Segmenter splits a markdown buffer into an ordered block list.
// It is a pure function object: Segment has no side effects and is
// deterministic and idempotent for a fixed input.
type Segmenter struct {
	diagramTags map[string]struct{}
}

// New creates a Segmenter.
func New(opts Options) *Segmenter {
	tags := opts.DiagramTags
	if tags == nil {
		tags = DefaultDiagramTags
	}
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			set[tag] = struct{}{}
		}
	}
	return &Segmenter{diagramTags: set}
}

// Segment scans the buffer line by line and produces the ordered block list.
// A fence-open line starts a Code or Diagram block which consumes lines until
// a matching closing fence; reaching end-of-buffer first leaves the block
// open (Closed=false), the normal steady state mid-stream. Everything
// outside fences accumulates into text blocks. Nested fences are not
// supported: inside an open block only the exact closing delimiter is
// recognized, any other fence-looking line is literal content.
func (s *Segmenter) Segment(buffer string) []Block {
	if buffer == "" {
		return nil
	}

	lines := strings.Split(buffer, "\n")
	// A trailing newline yields one empty artifact element; it belongs to no
	// block and would otherwise surface as a phantom empty text block.
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var (
		blocks    []Block
		textLines []string
	)

	flushText := func() {
		if len(textLines) == 0 {
			return
		}
		blocks = append(blocks, Block{
			Kind:    KindText,
			Content: strings.Join(textLines, "\n"),
			Closed:  true,
			Index:   len(blocks),
		})
		textLines = textLines[:0]
	}

	for i := 0; i < len(lines); i++ {
		marker, tag, ok := parseFenceOpen(lines[i])
		if !ok {
			textLines = append(textLines, lines[i])
			continue
		}
		flushText()

		kind := KindCode
		if _, diagram := s.diagramTags[tag]; diagram {
			kind = KindDiagram
		}

		var body []string
		closed := false
		for i++; i < len(lines); i++ {
			if isFenceClose(lines[i], marker) {
				closed = true
				break
			}
			body = append(body, lines[i])
		}
		blocks = append(blocks, Block{
			Kind:     kind,
			Content:  strings.Join(body, "\n"),
			Language: tag,
			Closed:   closed,
			Index:    len(blocks),
		})
	}
	flushText()
	return blocks
}

// parseFenceOpen recognizes a fence-open line: three or more identical fence
// runes, optionally followed by a language tag. The tag is lowercased; only
// its first whitespace-separated field counts.
func parseFenceOpen(line string) (marker string, tag string, ok bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		// Four or more leading spaces is indented code, not a fence.
		return "", "", false
	}
	if trimmed == "" {
		return "", "", false
	}
	r := trimmed[0]
	if r != '`' && r != '~' {
		return "", "", false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == r {
		n++
	}
	if n < 3 {
		return "", "", false
	}
	rest := strings.TrimSpace(trimmed[n:])
	if r == '`' && strings.ContainsRune(rest, '`') {
		// Backtick in the info string invalidates a backtick fence.
		return "", "", false
	}
	if fields := strings.Fields(rest); len(fields) > 0 {
		tag = strings.ToLower(fields[0])
	}
	return trimmed[:n], tag, true
}

// isFenceClose matches a closing fence for the given opening marker: the same
// rune repeated at least as many times, nothing else but whitespace.
func isFenceClose(line, marker string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < len(marker) {
		return false
	}
	r := marker[0]
	n := 0
	for n < len(trimmed) && trimmed[n] == r {
		n++
	}
	return n >= len(marker) && n == len(trimmed)
}
