package render

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	runewidth "github.com/mattn/go-runewidth"

	"streammark/internal/logger"
	"streammark/internal/segment"
)

// MarkdownOptions configures the structured-text renderer.
type MarkdownOptions struct {
	// Theme is a glamour standard style name; empty or "auto" selects the
	// terminal-background-aware style.
	Theme string
	// Width is the word-wrap width. Zero disables wrapping.
	Width int
}

// MarkdownRenderer converts prose blocks to styled terminal markup via
// glamour. Inline micro-syntaxes (spoiler, keyboard key, highlight) are
// expanded in a pre-pass before conversion.
//
// The underlying glamour renderer is built lazily and rebuilt when the width
// or theme changes; conversion itself never fails, broken markdown falls
// back to the raw source.
type MarkdownRenderer struct {
	mu     sync.Mutex
	theme  string
	width  int
	reveal bool
	tr     *glamour.TermRenderer
	log    *logger.LogEntry
}

// NewMarkdownRenderer creates the prose renderer.
func NewMarkdownRenderer(opts MarkdownOptions) *MarkdownRenderer {
	return &MarkdownRenderer{
		theme: opts.Theme,
		width: opts.Width,
		log:   logger.Named("render.markdown"),
	}
}

// Kind implements BlockRenderer.
func (m *MarkdownRenderer) Kind() segment.Kind { return segment.KindText }

// SetWidth updates the wrap width and drops the cached converter.
func (m *MarkdownRenderer) SetWidth(width int) {
	if m == nil || width < 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.width == width {
		return
	}
	m.width = width
	m.tr = nil
}

// SetTheme switches the glamour style and drops the cached converter.
func (m *MarkdownRenderer) SetTheme(theme string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.theme == theme {
		return
	}
	m.theme = theme
	m.tr = nil
}

// SetRevealSpoilers 切换 spoiler span 的显隐。返回值表示是否发生变化，
// 调用方据此决定是否需要整面重渲染。
func (m *MarkdownRenderer) SetRevealSpoilers(reveal bool) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reveal == reveal {
		return false
	}
	m.reveal = reveal
	return true
}

// RevealSpoilers reports the current spoiler visibility.
func (m *MarkdownRenderer) RevealSpoilers() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reveal
}

// Render implements BlockRenderer. It never returns an error for textual
// input; conversion failures degrade to the raw source.
func (m *MarkdownRenderer) Render(ctx context.Context, blk segment.Block) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	source := expandMicroSpans(blk.Content, m.reveal)
	out := m.convertLocked(source)
	return strings.TrimRight(out, "\n"), nil
}

// convertLocked runs glamour with a panic guard: a converter crash on a
// half-streamed construct must not take the surface down.
func (m *MarkdownRenderer) convertLocked(source string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("panic", r).Warn("markdown converter panicked, mounting raw source")
			result = source
		}
	}()

	if m.tr == nil {
		tr, err := m.buildRenderer()
		if err != nil {
			m.log.Warnf("markdown converter unavailable: %v", err)
			return source
		}
		m.tr = tr
	}
	rendered, err := m.tr.Render(source)
	if err != nil {
		return source
	}
	return rendered
}

func (m *MarkdownRenderer) buildRenderer() (*glamour.TermRenderer, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(m.width),
		glamour.WithEmoji(),
	}
	theme := strings.TrimSpace(m.theme)
	if theme == "" || theme == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(theme))
	}
	return glamour.NewTermRenderer(opts...)
}

var (
	spoilerRE = regexp.MustCompile(`\|\|([^|\n]+)\|\|`)
	kbdRE     = regexp.MustCompile(`\[\[([^\[\]\n]+)\]\]`)
	markRE    = regexp.MustCompile(`==([^=\n]+)==`)
)

// expandMicroSpans rewrites the inline micro-syntaxes into plain markdown
// before conversion: ||spoiler|| masks (or reveals) its content,
// [[key]] becomes inline code, ==text== becomes strong emphasis.
func expandMicroSpans(source string, reveal bool) string {
	out := spoilerRE.ReplaceAllStringFunc(source, func(match string) string {
		inner := match[2 : len(match)-2]
		if reveal {
			return inner
		}
		return strings.Repeat("▒", runewidth.StringWidth(inner))
	})
	out = kbdRE.ReplaceAllString(out, "`$1`")
	out = markRE.ReplaceAllString(out, "**$1**")
	return out
}
