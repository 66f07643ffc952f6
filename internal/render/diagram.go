package render

import (
	"context"
	"fmt"
	"sync"

	"streammark/internal/logger"
	"streammark/internal/segment"
)

// ErrNoDiagramEngine means the block's language tag has no registered
// engine. The mount controller's fallback policy absorbs it like any other
// render failure.
var ErrNoDiagramEngine = fmt.Errorf("diagram: no engine for tag")

// DiagramEngine lays out one diagram source into terminal markup. Render
// must reject invalid or incomplete source with an error; while the block
// is still streaming that is the expected common case, and the caller
// redisplays the last valid output instead.
type DiagramEngine interface {
	Render(ctx context.Context, source string) (string, error)
}

// DiagramOptions configures the diagram renderer.
type DiagramOptions struct {
	// Engines maps fence tags ("mermaid", ...) to layout engines.
	Engines map[string]DiagramEngine
}

// DiagramRenderer routes Diagram blocks to the engine registered for their
// fence tag. It holds no per-block state; the anti-flicker memory lives in
// the mount controller's RenderState.
type DiagramRenderer struct {
	mu      sync.RWMutex
	engines map[string]DiagramEngine
	log     *logger.LogEntry
}

// NewDiagramRenderer creates the diagram renderer.
func NewDiagramRenderer(opts DiagramOptions) *DiagramRenderer {
	engines := make(map[string]DiagramEngine, len(opts.Engines))
	for tag, engine := range opts.Engines {
		if engine != nil {
			engines[tag] = engine
		}
	}
	return &DiagramRenderer{
		engines: engines,
		log:     logger.Named("render.diagram"),
	}
}

// Kind implements BlockRenderer.
func (d *DiagramRenderer) Kind() segment.Kind { return segment.KindDiagram }

// RegisterEngine installs an engine for a fence tag.
func (d *DiagramRenderer) RegisterEngine(tag string, engine DiagramEngine) {
	if d == nil || engine == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engines[tag] = engine
}

// Render implements BlockRenderer. Errors propagate so the mount controller
// can apply the last-valid-output fallback.
func (d *DiagramRenderer) Render(ctx context.Context, blk segment.Block) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.RLock()
	engine := d.engines[blk.Language]
	d.mu.RUnlock()
	if engine == nil {
		return "", fmt.Errorf("%w %q", ErrNoDiagramEngine, blk.Language)
	}
	out, err := engine.Render(ctx, blk.Content)
	if err != nil {
		return "", fmt.Errorf("diagram %q: %w", blk.Language, err)
	}
	return out, nil
}
