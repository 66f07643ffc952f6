package render

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/singleflight"

	"streammark/internal/logger"
	"streammark/internal/segment"
)

// ErrEngineUnavailable marks a (theme, language) pair whose engine could not
// be constructed. Callers degrade to plain text; they never see a hard error.
var ErrEngineUnavailable = fmt.Errorf("highlight: engine unavailable")

type engineKey struct {
	theme    string
	language string
}

// highlightEngine is one constructed (theme, language) pair: a coalesced
// lexer plus the resolved style and formatter.
type highlightEngine struct {
	lexer     chroma.Lexer
	style     *chroma.Style
	formatter chroma.Formatter
}

// HighlighterState is the process-wide cache of constructed highlight
// engines, shared across all blocks and surfaces. Construction is serialized
// per key: concurrent first requests for the same pair await one in-flight
// build instead of racing to duplicate it.
type HighlighterState struct {
	mu       sync.RWMutex
	engines  map[engineKey]*highlightEngine
	degraded map[engineKey]error
	group    singleflight.Group
	log      *logger.LogEntry
}

// NewHighlighterState creates an empty engine cache.
func NewHighlighterState() *HighlighterState {
	return &HighlighterState{
		engines:  map[engineKey]*highlightEngine{},
		degraded: map[engineKey]error{},
		log:      logger.Named("render.highlight"),
	}
}

// engine returns the cached engine for the key, constructing it on first
// use. A degraded key keeps returning ErrEngineUnavailable without retrying.
func (h *HighlighterState) engine(key engineKey) (*highlightEngine, error) {
	h.mu.RLock()
	eng := h.engines[key]
	degraded := h.degraded[key]
	h.mu.RUnlock()
	if eng != nil {
		return eng, nil
	}
	if degraded != nil {
		return nil, degraded
	}

	v, err, _ := h.group.Do(key.theme+"\x00"+key.language, func() (any, error) {
		return h.construct(key)
	})
	if err != nil {
		h.mu.Lock()
		h.degraded[key] = err
		h.mu.Unlock()
		return nil, err
	}
	eng = v.(*highlightEngine)
	h.mu.Lock()
	h.engines[key] = eng
	h.mu.Unlock()
	return eng, nil
}

func (h *HighlighterState) construct(key engineKey) (*highlightEngine, error) {
	lexer := lexers.Get(key.language)
	if lexer == nil {
		// 再按文件扩展名猜一次，覆盖 "yml"、"Dockerfile" 一类的标签。
		lexer = lexers.Match("file." + key.language)
	}
	if lexer == nil {
		return nil, fmt.Errorf("%w: no lexer for %q", ErrEngineUnavailable, key.language)
	}
	style := styles.Get(key.theme)
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return nil, fmt.Errorf("%w: no terminal formatter", ErrEngineUnavailable)
	}
	h.log.WithField("language", key.language).WithField("theme", key.theme).Debug("constructed highlight engine")
	return &highlightEngine{
		lexer:     chroma.Coalesce(lexer),
		style:     style,
		formatter: formatter,
	}, nil
}

// Highlight renders code for a (theme, language) pair. Any failure (unknown
// language, tokenise error, formatter error) degrades to the plain source;
// the error return is informational only.
func (h *HighlighterState) Highlight(code, language, theme string) (string, error) {
	key := engineKey{theme: theme, language: strings.ToLower(language)}
	eng, err := h.engine(key)
	if err != nil {
		return code, err
	}
	iterator, err := eng.lexer.Tokenise(nil, code)
	if err != nil {
		return code, fmt.Errorf("highlight: tokenise: %w", err)
	}
	var b strings.Builder
	if err := eng.formatter.Format(&b, eng.style, iterator); err != nil {
		return code, fmt.Errorf("highlight: format: %w", err)
	}
	return b.String(), nil
}

// Suggest returns the closest known language name for an unrecognized fence
// tag, or empty when nothing is plausible.
func (h *HighlighterState) Suggest(language string) string {
	if strings.TrimSpace(language) == "" {
		return ""
	}
	matches := fuzzy.Find(strings.ToLower(language), lexers.Names(true))
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

// CodeOptions configures the code block renderer.
type CodeOptions struct {
	// Theme is a chroma style name ("monokai", "github", ...).
	Theme string
	// State shares an engine cache across renderers; nil builds a private one.
	State *HighlighterState
}

// CodeRenderer routes Code blocks through the shared highlighter state.
// Highlighting degrades gracefully: an unsupported language or a broken
// engine yields the escaped plain source, never an empty or missing block.
type CodeRenderer struct {
	mu    sync.RWMutex
	theme string
	state *HighlighterState
	log   *logger.LogEntry
}

// NewCodeRenderer creates the code renderer.
func NewCodeRenderer(opts CodeOptions) *CodeRenderer {
	state := opts.State
	if state == nil {
		state = NewHighlighterState()
	}
	return &CodeRenderer{
		theme: opts.Theme,
		state: state,
		log:   logger.Named("render.code"),
	}
}

// Kind implements BlockRenderer.
func (c *CodeRenderer) Kind() segment.Kind { return segment.KindCode }

// SetTheme switches the chroma style for subsequent renders.
func (c *CodeRenderer) SetTheme(theme string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = theme
}

// Theme returns the current chroma style name.
func (c *CodeRenderer) Theme() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.theme
}

// Render implements BlockRenderer. It only errors on context cancellation.
func (c *CodeRenderer) Render(ctx context.Context, blk segment.Block) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out, err := c.state.Highlight(blk.Content, blk.Language, c.Theme())
	if err != nil {
		entry := c.log.WithField("language", blk.Language)
		if suggestion := c.state.Suggest(blk.Language); suggestion != "" && suggestion != blk.Language {
			entry = entry.WithField("suggestion", suggestion)
		}
		entry.Debugf("highlighting degraded: %v", err)
	}
	return out, nil
}
