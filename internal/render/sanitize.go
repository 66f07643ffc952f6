package render

import "strings"

// SanitizeMarkup is the default sanitizer: it strips control characters and
// terminal escape sequences that could move the cursor, retitle the window or
// otherwise escape the block's own pane, while preserving SGR sequences (the
// inline style attributes theme coloring depends on). Box-drawing and arrow
// runes pass through untouched, which is the vector subset diagrams render
// with.
func SanitizeMarkup(markup string) string {
	if !needsSanitize(markup) {
		return markup
	}
	var b strings.Builder
	b.Grow(len(markup))
	runes := []rune(markup)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == 0x1b {
			i = consumeEscape(runes, i, &b)
			continue
		}
		if isControlRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func needsSanitize(markup string) bool {
	for _, r := range markup {
		if r == 0x1b || isControlRune(r) {
			return true
		}
	}
	return false
}

// isControlRune 过滤 C0/C1 控制字符，保留换行与制表符。
func isControlRune(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	if r < 0x20 || r == 0x7f {
		return true
	}
	return r >= 0x80 && r <= 0x9f
}

// consumeEscape scans one escape sequence starting at runes[i] (ESC) and
// writes it to b only if it is a safe SGR sequence. It returns the index of
// the last consumed rune.
func consumeEscape(runes []rune, i int, b *strings.Builder) int {
	if i+1 >= len(runes) {
		return i
	}
	switch runes[i+1] {
	case '[':
		// CSI: parameters then a final byte. Only the SGR final byte 'm'
		// survives; cursor movement, erase and scroll controls do not.
		j := i + 2
		for j < len(runes) && (runes[j] == ';' || runes[j] == ':' || (runes[j] >= '0' && runes[j] <= '9')) {
			j++
		}
		if j < len(runes) && runes[j] == 'm' {
			for k := i; k <= j; k++ {
				b.WriteRune(runes[k])
			}
		}
		if j >= len(runes) {
			return len(runes) - 1
		}
		return j
	case ']':
		// OSC: runs until BEL or ST. Always dropped (hyperlinks, titles).
		j := i + 2
		for j < len(runes) {
			if runes[j] == 0x07 {
				return j
			}
			if runes[j] == 0x1b && j+1 < len(runes) && runes[j+1] == '\\' {
				return j + 1
			}
			j++
		}
		return len(runes) - 1
	default:
		// Two-rune escapes (charset selection, DECSC, ...) are dropped.
		return i + 1
	}
}
